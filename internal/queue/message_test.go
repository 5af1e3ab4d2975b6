package queue

import (
	"strings"
	"testing"
)

func TestEncodeMessageUsesWireNames(t *testing.T) {
	payload, err := EncodeMessage(Message{
		RecordID:   "rec-123",
		Kind:       KindReminder,
		EnqueuedAt: "2026-01-30T22:00:00Z",
		Version:    MessageVersion,
	})
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	body := string(payload)
	for _, want := range []string{`"recordId":"rec-123"`, `"kind":"reminder"`, `"version":1`} {
		if !strings.Contains(body, want) {
			t.Fatalf("payload %s missing %s", body, want)
		}
	}
	if strings.Contains(body, "requestId") {
		t.Fatalf("empty requestId should be omitted: %s", body)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{bad")); err == nil {
		t.Fatalf("expected decode error")
	}
	msg, err := DecodeMessage([]byte(`{"recordId":"r1","kind":"request","version":1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.RecordID != "r1" || msg.Kind != KindRequest {
		t.Fatalf("unexpected message %+v", msg)
	}
}
