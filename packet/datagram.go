// Package packet implements the datagram and stream framing from
// spec.md §4.4 and §6: the 16-octet datagram header plus its system
// commands and opaque node-command body, and the 4-octet stream message
// header with the same system-command area.
package packet

import (
	"errors"

	"github.com/pascaldekloe/verse/syscmd"
	"github.com/pascaldekloe/verse/wire"
)

// Version is the only protocol version this implementation speaks. A
// peer advertising a different version is dropped per spec.md §6.
const Version = 1

// Limits from spec.md §6.
const (
	MaxPacketSize        = 65535
	MaxSystemCommands    = 64
	DefaultMTU           = 1452
	HeaderSize           = 16
)

// Flags are the datagram header's five defined bits (spec.md §3, §6).
type Flags uint8

const (
	FlagPAY Flags = 0x80
	FlagACK Flags = 0x40
	FlagANK Flags = 0x20
	FlagSYN Flags = 0x10
	FlagFIN Flags = 0x08
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Header is the fixed 16-octet datagram header.
type Header struct {
	Version   uint8 // high nibble of octet 0; always Version on the wire
	Flags     Flags
	Window    uint16 // pre-shifted advertised window
	PayloadID uint32
	AckNakID  uint32
	AnkID     uint32
}

var (
	ErrShortBuffer = errors.New("verse: datagram shorter than the 16-octet header")
	ErrVersion     = errors.New("verse: datagram protocol version mismatch")
	ErrTooManySys  = errors.New("verse: too many system commands in one datagram")
	ErrTooLarge    = errors.New("verse: datagram exceeds MaxPacketSize")
)

// Datagram is the in-memory form of one outgoing or incoming UDP
// payload: header, up to MaxSystemCommands system commands, and an
// optional opaque body of packed node commands (spec.md §3, "Packet").
type Datagram struct {
	Header  Header
	Sys     []syscmd.Command
	Body    []byte // packed node commands, ids >= 32
}

// Marshal encodes the datagram. PAY datagrams must carry a non-zero
// PayloadID unless they are pure ACK packets (spec.md §3 invariant).
func (d *Datagram) Marshal() ([]byte, error) {
	if len(d.Sys) > MaxSystemCommands {
		return nil, ErrTooManySys
	}

	b := make([]byte, 0, HeaderSize+64+len(d.Body))

	b = append(b, (Version&0xF)<<4)
	b = append(b, byte(d.Header.Flags))
	b = wire.PutU16(b, d.Header.Window)
	b = wire.PutU32(b, d.Header.PayloadID)
	b = wire.PutU32(b, d.Header.AckNakID)
	b = wire.PutU32(b, d.Header.AnkID)

	for _, c := range d.Sys {
		b = syscmd.Put(b, c.ID, c.Payload)
	}

	b = append(b, d.Body...)

	if len(b) > MaxPacketSize {
		return nil, ErrTooLarge
	}
	return b, nil
}

// Unmarshal decodes a datagram from raw bytes.
func Unmarshal(raw []byte) (*Datagram, error) {
	if len(raw) < HeaderSize {
		return nil, ErrShortBuffer
	}

	version := raw[0] >> 4
	if version != Version {
		return nil, ErrVersion
	}

	d := &Datagram{}
	d.Header.Version = version
	d.Header.Flags = Flags(raw[1])

	var ok bool
	d.Header.Window, _, ok = wire.U16(raw[2:4])
	if !ok {
		return nil, ErrShortBuffer
	}
	d.Header.PayloadID, _, ok = wire.U32(raw[4:8])
	if !ok {
		return nil, ErrShortBuffer
	}
	d.Header.AckNakID, _, ok = wire.U32(raw[8:12])
	if !ok {
		return nil, ErrShortBuffer
	}
	d.Header.AnkID, _, ok = wire.U32(raw[12:16])
	if !ok {
		return nil, ErrShortBuffer
	}

	rest := raw[HeaderSize:]
	cmds, body := syscmd.ParseAll(rest)
	if len(cmds) > MaxSystemCommands {
		return nil, ErrTooManySys
	}
	d.Sys = cmds
	d.Body = body

	return d, nil
}
