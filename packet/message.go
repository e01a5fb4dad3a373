package packet

import (
	"errors"

	"github.com/pascaldekloe/verse/syscmd"
	"github.com/pascaldekloe/verse/wire"
)

// MessageHeaderSize is the stream PDU header: version+reserved nibble,
// a reserved octet, and a 16-bit total length (spec.md §4.4, §6).
const MessageHeaderSize = 4

var ErrShortMessage = errors.New("verse: message shorter than its declared length")

// Message is the in-memory form of one reliable-stream PDU. During the
// handshake it carries only system commands; once TCP/TLS is also the
// data plane, it additionally carries a node-command Body within the
// advertised length (spec.md §4.4).
type Message struct {
	Version uint8
	Sys     []syscmd.Command
	Body    []byte
}

// Marshal encodes the message including its length-prefixed header.
func (m *Message) Marshal() ([]byte, error) {
	var payload []byte
	for _, c := range m.Sys {
		payload = syscmd.Put(payload, c.ID, c.Payload)
	}
	payload = append(payload, m.Body...)

	total := MessageHeaderSize + len(payload)
	if total > MaxPacketSize {
		return nil, ErrTooLarge
	}

	b := make([]byte, 0, total)
	b = append(b, (Version&0xF)<<4)
	b = append(b, 0) // reserved
	b = wire.PutU16(b, uint16(total))
	b = append(b, payload...)
	return b, nil
}

// UnmarshalMessage decodes a complete message, including its header, from
// raw. raw must contain at least the bytes the header's length field
// declares; callers reading from a stream determine that length first
// via PeekLength.
func UnmarshalMessage(raw []byte) (*Message, error) {
	if len(raw) < MessageHeaderSize {
		return nil, ErrShortBuffer
	}
	version := raw[0] >> 4
	if version != Version {
		return nil, ErrVersion
	}
	length, _, ok := wire.U16(raw[2:4])
	if !ok || int(length) > len(raw) {
		return nil, ErrShortMessage
	}

	m := &Message{Version: version}
	rest := raw[MessageHeaderSize:length]
	m.Sys, m.Body = syscmd.ParseAll(rest)
	return m, nil
}

// PeekLength reads the total message length from a header that has
// already been received, without requiring the full body to be present
// yet. It mirrors the teacher's partial-read carry-over design (spec.md
// §3, "Stream connection": "a partial message can carry over a read").
func PeekLength(header [MessageHeaderSize]byte) (uint16, error) {
	if header[0]>>4 != Version {
		return 0, ErrVersion
	}
	length, _, ok := wire.U16(header[2:4])
	if !ok {
		return 0, ErrShortMessage
	}
	return length, nil
}
