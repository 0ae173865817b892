package transport

import (
	"strings"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(MessageTransportSetGain, GainPayload{ID: "drone", GainDB: -6.5})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	wire, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeMessage(wire)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if decoded.Type != MessageTransportSetGain {
		t.Errorf("type = %q, want %q", decoded.Type, MessageTransportSetGain)
	}

	var p GainPayload
	if err := decoded.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if p.ID != "drone" || p.GainDB != -6.5 {
		t.Errorf("payload = %+v", p)
	}
}

func TestMessageWithoutPayload(t *testing.T) {
	msg, err := NewMessage(MessageTransportStop, nil)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if len(msg.Payload) != 0 {
		t.Errorf("payload = %q, want empty", msg.Payload)
	}

	var p PlayPayload
	if err := msg.DecodePayload(&p); err == nil {
		t.Error("DecodePayload on an empty envelope should fail")
	}
}

func TestDecodeMessageRejectsMalformedInput(t *testing.T) {
	if _, err := DecodeMessage(nil); err == nil {
		t.Error("empty data should be rejected")
	}
	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Error("malformed json should be rejected")
	}
	if _, err := DecodeMessage([]byte(`{"payload":{}}`)); err == nil {
		t.Error("missing type should be rejected")
	}
}

func TestEncodeRejectsEmptyType(t *testing.T) {
	msg := &Message{}
	if _, err := msg.Encode(); err == nil {
		t.Error("encoding a typeless message should fail")
	}
}

func TestPayloadFieldNames(t *testing.T) {
	msg, err := NewMessage(MessageTransportCrossfade, CrossfadePayload{
		FromID: "a", ToID: "b", DurationMs: 1500,
	})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	got := string(msg.Payload)
	for _, key := range []string{`"fromId"`, `"toId"`, `"duration"`} {
		if !strings.Contains(got, key) {
			t.Errorf("payload %s missing key %s", got, key)
		}
	}
}
