package syscmd

import (
	"reflect"
	"testing"

	"github.com/pascaldekloe/verse/wire"
)

func TestUserAuthRequestRoundTrip(t *testing.T) {
	want := UserAuthRequest{Username: "alice", Method: AuthPassword, Data: "s3cret"}
	b := PutUserAuthRequest(nil, want)
	cmd, rest, ok := Parse(b)
	if !ok || len(rest) != 0 || cmd.ID != UserAuthRequest {
		t.Fatalf("Parse failed: %v, %v, %v", cmd, rest, ok)
	}
	got, ok := ParseUserAuthRequest(cmd.Payload)
	if !ok || got != want {
		t.Errorf("ParseUserAuthRequest = %+v, want %+v", got, want)
	}
}

func TestUserAuthFailureRoundTrip(t *testing.T) {
	want := UserAuthFailure{Methods: []AuthMethod{AuthPassword}}
	b := PutUserAuthFailure(nil, want)
	cmd, _, ok := Parse(b)
	if !ok {
		t.Fatal("Parse failed")
	}
	got, ok := ParseUserAuthFailure(cmd.Payload)
	if !ok || !reflect.DeepEqual(got, want) {
		t.Errorf("ParseUserAuthFailure = %+v, want %+v", got, want)
	}
}

func TestFeatureCmdRoundTripString(t *testing.T) {
	want := FeatureCmd{Feature: wire.FeatureHostURL, StrValues: []string{"verse-udp-dtls://host:3000"}}
	b := PutFeatureCmd(nil, ChangeL, want)
	cmd, _, ok := Parse(b)
	if !ok || cmd.ID != ChangeL {
		t.Fatalf("Parse failed: %v, %v", cmd, ok)
	}
	got, ok := ParseFeatureCmd(cmd.Payload)
	if !ok || !reflect.DeepEqual(got.StrValues, want.StrValues) || got.Feature != want.Feature {
		t.Errorf("ParseFeatureCmd = %+v, want %+v", got, want)
	}
}

func TestFeatureCmdEmptyValuesLegal(t *testing.T) {
	want := FeatureCmd{Feature: wire.FeatureFlowControl}
	b := PutFeatureCmd(nil, ConfirmL, want)
	cmd, _, ok := Parse(b)
	if !ok {
		t.Fatal("Parse failed")
	}
	got, ok := ParseFeatureCmd(cmd.Payload)
	if !ok || len(got.U8Values) != 0 {
		t.Errorf("expected empty value list, got %+v", got)
	}
}

func TestParseStopsAtNodeRange(t *testing.T) {
	b := PutAck(nil, 5)
	b = append(b, 32, 1, 0xAB) // a node command id=32
	cmds, body := ParseAll(b)
	if len(cmds) != 1 || cmds[0].ID != ACK {
		t.Fatalf("expected exactly one system command, got %v", cmds)
	}
	if len(body) != 3 || body[0] != 32 {
		t.Errorf("expected node-command body left intact, got %v", body)
	}
}
