package syscmd

import "github.com/pascaldekloe/verse/wire"

// FeatureCmd is the decoded payload shared by CHANGE_L, CHANGE_R,
// CONFIRM_L and CONFIRM_R: a feature id followed by zero or more values
// whose type and count are derived from the feature id and the
// remaining length, per spec.md §4.1. Count 0 is legal ("propose
// nothing / confirm empty").
type FeatureCmd struct {
	Feature    wire.FeatureID
	U8Values   []uint8
	F32Values  []float32
	StrValues  []string
}

// FeatureCmdPayload encodes just the feature-id-plus-values body of a
// CHANGE_L/CHANGE_R/CONFIRM_L/CONFIRM_R command, without the outer
// id+length system-command frame (use Put or PutFeatureCmd for that).
func FeatureCmdPayload(c FeatureCmd) []byte {
	p := wire.PutU8(nil, uint8(c.Feature))
	switch c.Feature.Kind() {
	case wire.KindU8:
		p = wire.PutU8Values(p, c.U8Values)
	case wire.KindF32:
		p = wire.PutF32Values(p, c.F32Values)
	case wire.KindString:
		p = wire.PutStringValues(p, c.StrValues)
	}
	return p
}

// PutFeatureCmd frames a CHANGE_L/CHANGE_R/CONFIRM_L/CONFIRM_R command.
// id must be one of those four ID constants.
func PutFeatureCmd(b []byte, id ID, c FeatureCmd) []byte {
	return Put(b, id, FeatureCmdPayload(c))
}

// ParseFeatureCmd decodes a CHANGE_L/CHANGE_R/CONFIRM_L/CONFIRM_R
// payload. Unknown feature ids decode successfully with no values; the
// caller is expected to skip them with a warning per spec.md §4.8.
func ParseFeatureCmd(payload []byte) (c FeatureCmd, ok bool) {
	fid, rest, ok := wire.U8(payload)
	if !ok {
		return c, false
	}
	feature := wire.FeatureID(fid)
	c.Feature = feature

	switch feature.Kind() {
	case wire.KindU8:
		// count derived from remaining length: one octet per value
		c.U8Values, _, ok = wire.U8Values(rest, len(rest))
	case wire.KindF32:
		c.F32Values, _, ok = wire.F32Values(rest, len(rest)/4)
	case wire.KindString:
		var vals []string
		for len(rest) > 0 {
			var s string
			s, rest, ok = wire.String(rest)
			if !ok {
				return c, false
			}
			vals = append(vals, s)
		}
		c.StrValues = vals
		ok = true
	}
	return c, ok
}
