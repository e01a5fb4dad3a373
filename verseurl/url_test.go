package verseurl

import "testing"

func TestParseUDPNoneHostname(t *testing.T) {
	u, err := Parse("verse-udp-none://game.example.com:40000")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.Transport != TransportUDP || u.Security != SecurityNone {
		t.Errorf("got transport=%q security=%q", u.Transport, u.Security)
	}
	if u.Family != FamilyHostname || u.Node != "game.example.com" || u.Service != "40000" {
		t.Errorf("got family=%v node=%q service=%q", u.Family, u.Node, u.Service)
	}
}

func TestParseIPv6Literal(t *testing.T) {
	u, err := Parse("verse-tcp-tls://[2001:db8::1]:443")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.Family != FamilyIPv6 {
		t.Errorf("family = %v, want ipv6", u.Family)
	}
	if u.Node != "2001:db8::1" {
		t.Errorf("node = %q", u.Node)
	}
	if u.Service != "443" {
		t.Errorf("service = %q", u.Service)
	}
}

func TestParseAnyPort(t *testing.T) {
	u, err := Parse("verse-udp-dtls://0.0.0.0:*")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.Family != FamilyIPv4 {
		t.Errorf("family = %v, want ipv4", u.Family)
	}
	if u.Service != AnyPort {
		t.Errorf("service = %q, want %q", u.Service, AnyPort)
	}
}

func TestParseRejectsUnknownScheme(t *testing.T) {
	if _, err := Parse("verse-tcp-rot13://host"); err != ErrScheme {
		t.Errorf("err = %v, want ErrScheme", err)
	}
	if _, err := Parse("http://host"); err != ErrScheme {
		t.Errorf("err = %v, want ErrScheme", err)
	}
}

func TestParseRejectsBadPort(t *testing.T) {
	if _, err := Parse("verse-udp-none://host:0"); err != ErrPort {
		t.Errorf("err = %v, want ErrPort", err)
	}
	if _, err := Parse("verse-udp-none://host:abc"); err != ErrPort {
		t.Errorf("err = %v, want ErrPort", err)
	}
}

func TestEqualWithPort(t *testing.T) {
	a, _ := Parse("verse-udp-none://10.0.0.1:9000")
	b, _ := Parse("verse-udp-none://10.0.0.1:9000")
	c, _ := Parse("verse-udp-none://10.0.0.1:9001")

	if !a.Equal(b) || !a.EqualWithPort(b) {
		t.Error("identical URLs should be equal with port")
	}
	if !a.Equal(c) {
		t.Error("same host, different port: families still equal")
	}
	if a.EqualWithPort(c) {
		t.Error("same host, different port: should not be EqualWithPort")
	}
}

func TestRoundTripString(t *testing.T) {
	raw := "verse-wss-tls://[::1]:8443"
	u, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := u.String(); got != raw {
		t.Errorf("String() = %q, want %q", got, raw)
	}
}
