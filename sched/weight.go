package sched

import (
	"math"

	"github.com/pascaldekloe/verse/command"
)

// weight is the exponential share weight for a bucket's priority
// relative to DEFAULT (spec.md §4.3: "r_prio is an exponential weight
// derived from the bucket's priority relative to DEFAULT"). A priority
// 16 points away from DEFAULT doubles (or halves) the share; the base
// is arbitrary but monotonic and symmetric around DEFAULT, which is all
// spec.md §8 property #5 requires.
func weight(priority uint8) float64 {
	delta := float64(int(priority) - int(command.DefaultPriority))
	return math.Pow(2, delta/16)
}

// sumWeight totals weight() over a set of buckets.
func sumWeight(buckets []*command.Bucket) float64 {
	var sum float64
	for _, b := range buckets {
		sum += weight(b.Priority)
	}
	return sum
}

// share returns bucket's floor-divided slice of budget octets, per
// spec.md §4.3's "share = remaining × r_prio / Σ r_prio".
func share(budget int, b *command.Bucket, sumW float64) int {
	if sumW == 0 {
		return 0
	}
	return int(float64(budget) * weight(b.Priority) / sumW)
}
