package wire

import (
	"encoding/json"
	"testing"
)

func TestDecodeWrappedDialect(t *testing.T) {
	raw := []byte(`{"type":"auth","timestamp":123,"data":{"playerName":"Alice"}}`)
	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Type != TypeAuth || in.Timestamp != 123 {
		t.Fatalf("envelope = %q/%d, want auth/123", in.Type, in.Timestamp)
	}
	var name string
	ok, err := in.Field("playerName", &name)
	if !ok || err != nil || name != "Alice" {
		t.Fatalf("playerName = %q (ok=%v, err=%v), want Alice", name, ok, err)
	}
}

func TestDecodeFlatDialect(t *testing.T) {
	raw := []byte(`{"type":"chat_message","timestamp":456,"message":"hi"}`)
	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var msg string
	ok, err := in.Field("message", &msg)
	if !ok || err != nil || msg != "hi" {
		t.Fatalf("message = %q (ok=%v, err=%v), want hi", msg, ok, err)
	}
}

func TestDecodeDataFieldWinsOverFlat(t *testing.T) {
	raw := []byte(`{"type":"chat_message","message":"outer","data":{"message":"inner"}}`)
	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var msg string
	if _, err := in.Field("message", &msg); err != nil {
		t.Fatalf("Field: %v", err)
	}
	if msg != "inner" {
		t.Fatalf("message = %q, want the data-wrapped value to win", msg)
	}
}

func TestFieldAbsent(t *testing.T) {
	in, err := Decode([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var ts int64
	ok, err := in.Field("timestamp", &ts)
	if ok || err != nil {
		t.Fatalf("absent field reported ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestEncodeEmitsWrappedEnvelope(t *testing.T) {
	data, err := Encode(TypePong, map[string]int64{"timestamp": 789})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypePong {
		t.Fatalf("type = %q, want pong", env.Type)
	}
	if env.Timestamp == 0 {
		t.Fatal("expected a stamped timestamp")
	}
	var payload map[string]int64
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload["timestamp"] != 789 {
		t.Fatalf("payload timestamp = %d, want 789", payload["timestamp"])
	}
}

func TestNormalizeItemKind(t *testing.T) {
	cases := map[string]string{
		"speed_potion": "speed_potion",
		"kill_sword":   "kill_sword",
		"sword":        "kill_sword",
		"coin":         "coin",
		"banana":       "",
	}
	for in, want := range cases {
		if got := NormalizeItemKind(in); got != want {
			t.Errorf("NormalizeItemKind(%q) = %q, want %q", in, got, want)
		}
	}
}
