package rsp

import (
	"fmt"
	"net"
	"testing"
	"time"
)

func hexChecksum(payload string) string {
	var sum uint8
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	return fmt.Sprintf("%02x", sum)
}

func TestReceivePacketAcksOnValidChecksum(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	codec := NewCodec(server)

	resultCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		payload, err := codec.ReceivePacket()
		resultCh <- payload
		errCh <- err
	}()

	frame := "$ping#" + hexChecksum("ping")
	go client.Write([]byte(frame))

	ack := make([]byte, 1)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Read(ack); err != nil {
		t.Fatal(err)
	}
	if ack[0] != '+' {
		t.Fatalf("expected ack, got %q", ack)
	}

	payload := <-resultCh
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if string(payload) != "ping" {
		t.Fatalf("got %q", payload)
	}
}

func TestReceivePacketNacksOnBadChecksum(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	codec := NewCodec(server)

	resultCh := make(chan []byte, 1)
	go func() {
		payload, _ := codec.ReceivePacket()
		resultCh <- payload
	}()

	go client.Write([]byte("$ping#00")) // wrong checksum

	nack := make([]byte, 1)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Read(nack); err != nil {
		t.Fatal(err)
	}
	if nack[0] != '-' {
		t.Fatalf("expected nack, got %q", nack)
	}

	// Retransmit with the correct checksum; the pending ReceivePacket call
	// should accept it and ack.
	go client.Write([]byte("$ping#" + hexChecksum("ping")))
	ack := make([]byte, 1)
	if _, err := client.Read(ack); err != nil {
		t.Fatal(err)
	}
	if ack[0] != '+' {
		t.Fatalf("expected ack, got %q", ack)
	}

	payload := <-resultCh
	if string(payload) != "ping" {
		t.Fatalf("got %q", payload)
	}
}

func TestSendResponseWaitsForAck(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	codec := NewCodec(server)

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- codec.SendResponse([]byte("OK"))
	}()

	buf := make([]byte, 64)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	want := "$OK#" + hexChecksum("OK")
	if string(buf[:n]) != want {
		t.Fatalf("got %q want %q", buf[:n], want)
	}

	go client.Write([]byte("+"))
	if err := <-sendErr; err != nil {
		t.Fatal(err)
	}
}

func TestNoAckModeSuppressesAckNack(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	codec := NewCodec(server)
	codec.NoAckMode = true

	resultCh := make(chan []byte, 1)
	go func() {
		payload, _ := codec.ReceivePacket()
		resultCh <- payload
	}()

	// Even with a deliberately wrong checksum, no-ack mode accepts the
	// frame as-is and never writes +/-.
	go client.Write([]byte("$abc#00"))

	select {
	case payload := <-resultCh:
		if string(payload) != "abc" {
			t.Fatalf("got %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet in no-ack mode")
	}
}
