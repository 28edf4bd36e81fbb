package qrcode

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec(0)
	payloads := []string{
		Payload(uuid.New()),
		Payload(uuid.New()),
		"ticket:not-a-uuid",
		"https://example.com/verify?ticket=42",
		strings.Repeat("A", 120),
	}
	for _, payload := range payloads {
		png, err := codec.Encode(payload)
		if err != nil {
			t.Fatalf("encode %q: %v", payload, err)
		}
		got, err := Decode(png)
		if err != nil {
			t.Fatalf("decode %q: %v", payload, err)
		}
		if got != payload {
			t.Fatalf("round trip mismatch: want %q got %q", payload, got)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	codec := NewCodec(DefaultSize)
	payload := Payload(uuid.MustParse("6f1c1d7e-3b1a-4e55-9a55-0c3f6f0a9b10"))
	a, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical PNG output for identical payload")
	}
	if !bytes.HasPrefix(a, []byte("\x89PNG")) {
		t.Fatalf("expected PNG signature")
	}
}

func TestEncodeRejectsOversizedAndEmptyPayload(t *testing.T) {
	codec := NewCodec(DefaultSize)
	if _, err := codec.Encode(strings.Repeat("x", 8000)); err == nil {
		t.Fatalf("expected capacity error")
	}
	if _, err := codec.Encode(""); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Fatalf("expected error for non-image input")
	}
}

func TestParsePayload(t *testing.T) {
	id := uuid.New()
	for _, in := range []string{id.String(), Payload(id), "  " + Payload(id) + "\n"} {
		got, err := ParsePayload(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != id {
			t.Fatalf("parse %q: want %s got %s", in, id, got)
		}
	}
	if _, err := ParsePayload("ticket:nope"); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("expected ErrInvalidTicket, got %v", err)
	}
}
