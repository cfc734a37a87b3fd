package common

import (
	"bytes"
	"testing"
)

func TestHexRoundTrip(t *testing.T) {
	in := []byte{0x01, 0xab, 0xff}

	s := EncodeToString(in)
	if s != "0X01ABFF" {
		t.Fatalf("expected 0X01ABFF, got %s", s)
	}

	out, err := DecodeFromString(s)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("expected %x, got %x", in, out)
	}

	if _, err := DecodeFromString("01AB"); err == nil {
		t.Fatalf("expected an error for a string without prefix")
	}
}
