package packet

import (
	"testing"

	"github.com/pascaldekloe/verse/syscmd"
)

func TestDatagramRoundTrip(t *testing.T) {
	d := &Datagram{
		Header: Header{
			Version:   Version,
			Flags:     FlagPAY | FlagACK,
			Window:    512,
			PayloadID: 42,
			AckNakID:  41,
			AnkID:     40,
		},
		Sys: []syscmd.Command{
			{ID: syscmd.ACK, Payload: []byte{0, 0, 0, 41}},
		},
		Body: []byte{32, 3, 1, 2, 3},
	}

	raw, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(raw) < HeaderSize {
		t.Fatalf("too short: %d", len(raw))
	}
	if raw[0]>>4 != Version {
		t.Errorf("version nibble = %d, want %d", raw[0]>>4, Version)
	}

	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Header != d.Header {
		t.Errorf("Header = %+v, want %+v", got.Header, d.Header)
	}
	if len(got.Sys) != 1 || got.Sys[0].ID != syscmd.ACK {
		t.Errorf("Sys = %+v", got.Sys)
	}
	if string(got.Body) != string(d.Body) {
		t.Errorf("Body = %v, want %v", got.Body, d.Body)
	}
}

func TestHeaderSizeIsSixteen(t *testing.T) {
	d := &Datagram{}
	raw, err := d.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != HeaderSize {
		t.Errorf("empty datagram encodes to %d octets, want exactly %d", len(raw), HeaderSize)
	}
}

func TestVersionMismatchRejected(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[0] = 2 << 4 // version 2
	if _, err := Unmarshal(raw); err != ErrVersion {
		t.Errorf("Unmarshal with bad version = %v, want ErrVersion", err)
	}
}
