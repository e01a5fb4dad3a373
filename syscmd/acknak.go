package syscmd

import "github.com/pascaldekloe/verse/wire"

// PutAck frames an ACK run whose highest acknowledged payload id is k.
// The low end of the run is implicit: it is one past whichever id the
// previous ACK/NAK run in the same packet (or the peer's last known
// ank_id) ended on, per the coalescing rule in spec.md §4.5.
func PutAck(b []byte, k uint32) []byte {
	return Put(b, ACK, wire.PutU32(nil, k))
}

// PutNak frames a NAK run ending at payload id k.
func PutNak(b []byte, k uint32) []byte {
	return Put(b, NAK, wire.PutU32(nil, k))
}

// RunEnd decodes the payload id ending an ACK or NAK run.
func RunEnd(payload []byte) (k uint32, ok bool) {
	k, _, ok = wire.U32(payload)
	return k, ok
}
