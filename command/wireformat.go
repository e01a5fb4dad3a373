package command

import "github.com/pascaldekloe/verse/wire"

// PackOne frames a single node command. It is the shareLen==len(Address)
// degenerate case of PackGroup (a "group" of one, sharing its whole
// address with nobody), which keeps a single command and a compressed
// group structurally identical on the wire: a decoder never has to
// guess which shape follows an id+length pair, it always calls
// UnpackGroup.
func PackOne(b []byte, c *Command) []byte {
	return append(b, PackGroup([]*Command{c}, len(c.Address))...)
}

// SizeOf reports the octets PackOne would write for c.
func SizeOf(c *Command) int {
	addrLen := len(c.Address)
	payLen := len(c.Payload)
	body := 2 + addrLen + wire.EncodedLen(payLen) + payLen
	return 1 + wire.EncodedLen(body) + body
}

// UnpackOne decodes a single node command framed by PackOne. addrLen is
// the number of address octets the command family (id) carries; it is
// a property of the family, known to the caller.
func UnpackOne(b []byte, addrLen int) (c *Command, rest []byte, ok bool) {
	cmds, rest, ok := UnpackGroup(b, addrLen)
	if !ok || len(cmds) != 1 {
		return nil, b, false
	}
	return cmds[0], rest, true
}

// PackGroup frames N consecutive commands that share ID and an address
// prefix of shareLen octets into one address-share-compressed group, per
// spec.md §3 ("Generic command", compressed wire form) and §4.3: id,
// length of the whole group body, a count, the shared prefix, then each
// command's suffix (remaining address octets plus its payload),
// individually length-prefixed.
func PackGroup(cmds []*Command, shareLen int) []byte {
	if len(cmds) == 0 {
		return nil
	}
	id := cmds[0].ID

	var body []byte
	body = wire.PutU8(body, uint8(len(cmds)))
	body = wire.PutU8(body, uint8(shareLen))
	body = append(body, cmds[0].Address[:shareLen]...)

	for _, c := range cmds {
		suffix := make([]byte, 0, len(c.Address)-shareLen+len(c.Payload))
		suffix = append(suffix, c.Address[shareLen:]...)
		suffix = append(suffix, c.Payload...)
		body = wire.PutLength(body, len(suffix))
		body = append(body, suffix...)
	}

	b := wire.PutU8(nil, id)
	b = wire.PutLength(b, len(body))
	return append(b, body...)
}

// UnpackGroup decodes a PackGroup frame back into its original commands,
// in the same order (spec.md §8 property #4). addrLen is the address
// length for the family identified by the group's id, same convention as
// UnpackOne. Since PackOne is just PackGroup of one, this is also the
// only decoder a node-command body walk needs.
func UnpackGroup(b []byte, addrLen int) (cmds []*Command, rest []byte, ok bool) {
	id, rest, ok := wire.U8(b)
	if !ok {
		return nil, b, false
	}
	groupLen, rest, ok := wire.Length(rest)
	if !ok || len(rest) < groupLen {
		return nil, nil, false
	}
	body := rest[:groupLen]
	rest = rest[groupLen:]

	count, body, ok := wire.U8(body)
	if !ok {
		return nil, nil, false
	}
	shareLen, body, ok := wire.U8(body)
	if !ok || len(body) < int(shareLen) || int(shareLen) > addrLen {
		return nil, nil, false
	}
	prefix := body[:shareLen]
	body = body[shareLen:]

	addrTail := addrLen - int(shareLen)
	cmds = make([]*Command, 0, count)
	for i := 0; i < int(count); i++ {
		var sufLen int
		sufLen, body, ok = wire.Length(body)
		if !ok || len(body) < sufLen || sufLen < addrTail {
			return nil, nil, false
		}
		suffix := body[:sufLen]
		body = body[sufLen:]

		addr := make([]byte, 0, addrLen)
		addr = append(addr, prefix...)
		addr = append(addr, suffix[:addrTail]...)
		payload := append([]byte(nil), suffix[addrTail:]...)

		cmds = append(cmds, &Command{ID: id, Address: addr, Payload: payload, Priority: DefaultPriority, Coalesce: true})
	}
	return cmds, rest, true
}
