// Package command implements the generic command model shared by every
// system and node/tag/layer family (spec.md §3, "Generic command", and
// §4.2). A Command is opaque payload plus the three fields the transport
// layer needs to schedule, dedupe and retransmit it; the node/tag/layer
// semantics themselves are an external collaborator's concern.
package command

// DefaultPriority is the priority applied when none is set, per spec.md
// §3 ("priority octet (default 128; higher=more urgent)").
const DefaultPriority uint8 = 128

// SystemRangeEnd is the first id outside the system-command range;
// ids 0..31 are reserved for system commands, 32+ for node/tag/layer
// families (spec.md §3).
const SystemRangeEnd uint8 = 32

// Command is one queued unit of work, system or node.
type Command struct {
	ID uint8

	// Address is the overwrite key: two commands with an equal,
	// non-empty Address compete for the same slot in a priority
	// bucket, and the later push wins (spec.md §4.2). An empty
	// Address means the command never overwrites another.
	Address []byte

	Priority uint8 // 0 = most urgent is NOT the convention; higher = more urgent

	Payload []byte

	// Coalesce allows this command's id to be combined with an
	// adjacent command that shares the same id and an address prefix
	// when CMD_COMPRESS=ADDR_SHARE is negotiated (spec.md §4.2, §4.3).
	// Some families are declared non-coalescing (e.g. one-shot system
	// commands) and set this to false.
	Coalesce bool
}

// New returns a Command with DefaultPriority applied.
func New(id uint8, address, payload []byte) *Command {
	return &Command{ID: id, Address: address, Payload: payload, Priority: DefaultPriority, Coalesce: true}
}

// IsSystem reports whether the command id lies in the system range.
func (c *Command) IsSystem() bool {
	return c.ID < SystemRangeEnd
}

func sameAddress(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SharedPrefix returns the count of leading octets a and b have in
// common, used by the packer to decide how many address octets an
// address-share compressed group can omit per command.
func SharedPrefix(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// SignalKind identifies a fake command: a signal exchanged between the
// core and the embedding application that is never serialized onto the
// wire (spec.md §4.2).
type SignalKind uint8

const (
	ConnectAccept SignalKind = iota
	ConnectTerminate
	UserAuthenticate
)

// String names a SignalKind.
func (k SignalKind) String() string {
	switch k {
	case ConnectAccept:
		return "CONNECT_ACCEPT"
	case ConnectTerminate:
		return "CONNECT_TERMINATE"
	case UserAuthenticate:
		return "USER_AUTHENTICATE"
	default:
		return "SIGNAL(?)"
	}
}

// ReasonCode is the CONNECT_TERMINATE payload from spec.md §7.
type ReasonCode uint8

const (
	ReasonReserved ReasonCode = iota
	ReasonHostUnknown
	ReasonServerDown
	ReasonAuthFailed
	ReasonTimeout
	ReasonError
	ReasonServer // graceful remote shutdown
)

// Signal is a fake command: it carries no wire representation. Queue
// holds *Command values only, so a Signal does not travel through it.
type Signal struct {
	Kind   SignalKind
	Reason ReasonCode // meaningful only for ConnectTerminate
}

// Event holds either a decoded Command or a Signal raised by the
// transport layer itself. The incoming queue is a Queue of Commands and
// does not hold Events.
type Event struct {
	Command *Command
	Signal  *Signal
}
