package protocol

import (
	"bufio"
	"bytes"
	"testing"
)

func TestDetectBinary(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x80, 0x00, 0x00}))
	d, err := Detect(r)
	if err != nil {
		t.Fatal(err)
	}
	if d != DialectBinary {
		t.Fatalf("expected binary dialect, got %v", d)
	}
	// the peeked byte must still be readable by whoever handles the connection
	first, _ := r.ReadByte()
	if first != 0x80 {
		t.Fatalf("peek must not consume the byte, got %x", first)
	}
}

func TestDetectText(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("get foo\r\n")))
	d, err := Detect(r)
	if err != nil {
		t.Fatal(err)
	}
	if d != DialectText {
		t.Fatalf("expected text dialect, got %v", d)
	}
	line, _ := r.ReadString('\n')
	if line != "get foo\r\n" {
		t.Fatalf("peek must not have consumed any bytes, got %q", line)
	}
}
