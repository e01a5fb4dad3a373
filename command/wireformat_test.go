package command

import "testing"

func TestPackUnpackOneRoundTrip(t *testing.T) {
	c := New(40, []byte{1, 2, 3}, []byte("hello"))
	b := PackOne(nil, c)

	got, rest, ok := UnpackOne(b, 3)
	if !ok {
		t.Fatalf("UnpackOne failed")
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0", len(rest))
	}
	if got.ID != c.ID || string(got.Address) != string(c.Address) || string(got.Payload) != string(c.Payload) {
		t.Errorf("got %+v, want %+v", got, c)
	}
	if n := SizeOf(c); n != len(b) {
		t.Errorf("SizeOf = %d, want %d", n, len(b))
	}
}

// TestPackGroupRoundTrip exercises spec.md §8 property #4: N commands
// sharing an id and an address prefix pack into one compressed group and
// unpack back to the same N commands in order.
func TestPackGroupRoundTrip(t *testing.T) {
	cmds := []*Command{
		New(40, []byte{1, 2, 0}, []byte("a")),
		New(40, []byte{1, 2, 1}, []byte("b")),
		New(40, []byte{1, 2, 2}, []byte("c")),
	}
	share := SharedPrefix(cmds[0].Address, cmds[1].Address)
	if share != 2 {
		t.Fatalf("SharedPrefix = %d, want 2", share)
	}

	b := PackGroup(cmds, share)
	got, rest, ok := UnpackGroup(b, 3)
	if !ok {
		t.Fatalf("UnpackGroup failed")
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0", len(rest))
	}
	if len(got) != len(cmds) {
		t.Fatalf("got %d commands, want %d", len(got), len(cmds))
	}
	for i, c := range cmds {
		if got[i].ID != c.ID || string(got[i].Address) != string(c.Address) || string(got[i].Payload) != string(c.Payload) {
			t.Errorf("command %d = %+v, want %+v", i, got[i], c)
		}
	}
}

func TestSharedPrefixNoCommonality(t *testing.T) {
	if n := SharedPrefix([]byte{1, 2}, []byte{9, 9}); n != 0 {
		t.Errorf("SharedPrefix = %d, want 0", n)
	}
}
