package rsp

import "testing"

func TestPushHexU8(t *testing.T) {
	b := NewByteBuffer()
	b.PushHexU8(0xA5)
	if b.String() != "a5" {
		t.Fatalf("got %q", b.String())
	}
}

func TestPushHexU32LEByteReversed(t *testing.T) {
	b := NewByteBuffer()
	b.PushHexU32LE(0x12345678)
	if b.String() != "78563412" {
		t.Fatalf("got %q", b.String())
	}
}

func TestPushBytesAndClear(t *testing.T) {
	b := NewByteBuffer()
	b.PushBytes([]byte("abc"))
	if b.Len() != 3 {
		t.Fatalf("len = %d", b.Len())
	}
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after Clear, got %d", b.Len())
	}
}
