package protocol_test

import (
	"testing"

	"github.com/danielmorandini/medusa/codec"
	"github.com/danielmorandini/medusa/protocol"
)

func TestCallRoundTrip(t *testing.T) {
	call := protocol.NewCall("play", "42", "subtitles.srt")

	for _, c := range []codec.Codec{codec.Msgpack, codec.Protobuf} {
		b, err := c.Marshal(call.Value())
		if err != nil {
			t.Fatal(err)
		}

		v, _, err := c.Unmarshal(b)
		if err != nil {
			t.Fatal(err)
		}

		pc, err := protocol.ParseCall(v)
		if err != nil {
			t.Fatal(err)
		}

		if pc.Method != "play" {
			t.Fatalf("unexpected method: found %v, wanted play", pc.Method)
		}
		if len(pc.Args) != 2 || pc.Args[0] != "42" || pc.Args[1] != "subtitles.srt" {
			t.Fatalf("unexpected args: %v", pc.Args)
		}
	}
}

func TestParseCall(t *testing.T) {
	if _, err := protocol.ParseCall("play"); err == nil {
		t.Fatal("a string is not a call")
	}

	two := map[string]interface{}{"play": []interface{}{}, "stop": []interface{}{}}
	if _, err := protocol.ParseCall(two); err == nil {
		t.Fatal("calls cannot be batched")
	}

	if _, err := protocol.ParseCall(map[string]interface{}{"play": "42"}); err == nil {
		t.Fatal("arguments must be a list")
	}

	c, err := protocol.ParseCall(map[interface{}]interface{}{"state": nil})
	if err != nil {
		t.Fatal(err)
	}
	if c.Method != "state" || len(c.Args) != 0 {
		t.Fatalf("unexpected call: %v", c)
	}

	if _, err := protocol.ParseCall(map[interface{}]interface{}{1: nil}); err == nil {
		t.Fatal("method names are strings")
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := protocol.ParseIdentity("room1")
	if err != nil {
		t.Fatal(err)
	}
	if id != "room1" {
		t.Fatalf("found %v, wanted room1", id)
	}

	if _, err := protocol.ParseIdentity(""); err == nil {
		t.Fatal("empty identities are not allowed")
	}
	if _, err := protocol.ParseIdentity(int64(1)); err == nil {
		t.Fatal("identities are strings")
	}
}

func TestIsVersionSupported(t *testing.T) {
	if !protocol.IsVersionSupported(protocol.Version) {
		t.Fatalf("own version %v not supported", protocol.Version)
	}
	if !protocol.IsVersionSupported("1.4.2") {
		t.Fatal("minor versions should be compatible")
	}
	if protocol.IsVersionSupported("2.0.0") {
		t.Fatal("major versions should not be compatible")
	}
	if protocol.IsVersionSupported("not-a-version") {
		t.Fatal("garbage accepted as version")
	}
}
