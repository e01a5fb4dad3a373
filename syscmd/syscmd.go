// Package syscmd codes the system-command tagged union from spec.md §3
// ("Packet") and §4.1: ACK, NAK, USER_AUTH_{REQUEST,FAILURE,SUCCESS},
// CHANGE_L, CHANGE_R, CONFIRM_L, CONFIRM_R. These ids occupy the
// system-command range 0..31 (command.SystemRangeEnd); everything at 32
// and above belongs to the opaque node/tag/layer command stream.
package syscmd

import "github.com/pascaldekloe/verse/wire"

// ID identifies a system command kind.
type ID uint8

const (
	Reserved         ID = 0
	ACK              ID = 1
	NAK              ID = 2
	UserAuthRequest  ID = 3
	UserAuthFailure  ID = 4
	UserAuthSuccess  ID = 5
	ChangeL          ID = 6
	ChangeR          ID = 7
	ConfirmL         ID = 8
	ConfirmR         ID = 9
)

// String names an ID for logging.
func (id ID) String() string {
	switch id {
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	case UserAuthRequest:
		return "USER_AUTH_REQUEST"
	case UserAuthFailure:
		return "USER_AUTH_FAILURE"
	case UserAuthSuccess:
		return "USER_AUTH_SUCCESS"
	case ChangeL:
		return "CHANGE_L"
	case ChangeR:
		return "CHANGE_R"
	case ConfirmL:
		return "CONFIRM_L"
	case ConfirmR:
		return "CONFIRM_R"
	default:
		return "SYS(?)"
	}
}

// Command is one decoded system command plus the raw payload a typed
// accessor can further decode.
type Command struct {
	ID      ID
	Payload []byte
}

// Put appends a framed system command: id, length prefix, payload.
func Put(b []byte, id ID, payload []byte) []byte {
	b = wire.PutU8(b, uint8(id))
	b = wire.PutLength(b, len(payload))
	return append(b, payload...)
}

// Parse decodes the next framed system command from the head of b. It
// returns ok=false without consuming anything when id >= 32 (the start
// of the node-command range) so the caller can hand the remainder to the
// node-command decoder, per spec.md §4.4 ("terminated when the decoder
// encounters an id >= 32").
func Parse(b []byte) (cmd Command, rest []byte, ok bool) {
	if len(b) == 0 {
		return Command{}, b, false
	}
	if b[0] >= 32 {
		return Command{}, b, false
	}

	id, rest, ok := wire.U8(b)
	if !ok {
		return Command{}, b, false
	}
	n, rest, ok := wire.Length(rest)
	if !ok || len(rest) < n {
		// truncated: skip the rest of the datagram per spec.md §4.1
		return Command{}, nil, false
	}
	return Command{ID: ID(id), Payload: rest[:n]}, rest[n:], true
}

// ParseAll decodes every system command from b until a node-command id
// (>=32) or the end of buffer is reached, returning the unconsumed
// remainder (the opaque node-command body, if any).
func ParseAll(b []byte) (cmds []Command, body []byte) {
	cursor := b
	for {
		cmd, rest, ok := Parse(cursor)
		if !ok {
			return cmds, cursor
		}
		cmds = append(cmds, cmd)
		cursor = rest
	}
}
