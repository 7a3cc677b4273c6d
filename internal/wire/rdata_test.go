package wire

import (
	"bytes"
	"testing"

	"github.com/quietwire/madns/internal/protocol"
)

func TestRdataARoundTrip(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	a := AData{Addr: [4]byte{192, 0, 2, 1}}
	n, err := EncodeRdata(&buf, a, sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	decoded, err := DecodeRdata(buf, protocol.TypeA, 0, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.(AData) != a {
		t.Fatalf("got %v, want %v", decoded, a)
	}
}

func TestRdataAAAARoundTrip(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	aaaa := AAAAData{Groups: [8]uint16{0x2001, 0x0db8, 0, 0, 0, 0, 0, 1}}
	n, err := EncodeRdata(&buf, aaaa, sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 16 {
		t.Fatalf("expected 16 bytes, got %d", n)
	}
	decoded, err := DecodeRdata(buf, protocol.TypeAAAA, 0, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.(AAAAData) != aaaa {
		t.Fatalf("got %v, want %v", decoded, aaaa)
	}
}

func TestRdataSRVRoundTrip(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	srv := SRVData{Priority: 0, Weight: 1, Port: 8080, Target: "host.local"}
	n, err := EncodeRdata(&buf, srv, sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := DecodeRdata(buf, protocol.TypeSRV, 0, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decoded.(SRVData)
	if got != srv {
		t.Fatalf("got %v, want %v", got, srv)
	}
}

func TestRdataTXTEmpty(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	n, err := EncodeRdata(&buf, TXTData{}, sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || buf[0] != 0x00 {
		t.Fatalf("expected single zero byte, got % x", buf)
	}
	decoded, err := DecodeRdata(buf, protocol.TypeTXT, 0, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	txt := decoded.(TXTData)
	if len(txt.Strings) != 1 || len(txt.Strings[0]) != 0 {
		t.Fatalf("expected one empty string entry, got %v", txt.Strings)
	}
}

func TestRdataTXTRoundTrip(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	txt := TXTData{Strings: [][]byte{[]byte("a=1"), []byte("b=2")}}
	n, err := EncodeRdata(&buf, txt, sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := DecodeRdata(buf, protocol.TypeTXT, 0, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decoded.(TXTData)
	if len(got.Strings) != 2 || !bytes.Equal(got.Strings[0], txt.Strings[0]) || !bytes.Equal(got.Strings[1], txt.Strings[1]) {
		t.Fatalf("got %v, want %v", got.Strings, txt.Strings)
	}
}

func TestRdataNSECBitmap(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	n := NSECData{NextName: "example.com", Types: []protocol.TypeCode{protocol.TypeA, protocol.TypeNS, protocol.TypeCNAME}}
	_, err := EncodeRdata(&buf, n, sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Name "example.com" is 13 bytes (07 example 03 com 00).
	window := buf[13:]
	want := []byte{0x00, 0x01, 0x64}
	if !bytes.Equal(window, want) {
		t.Fatalf("got % x, want % x", window, want)
	}
}

func TestRdataNSECRoundTrip(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	n := NSECData{NextName: "example.com", Types: []protocol.TypeCode{protocol.TypeA, protocol.TypeNS, protocol.TypeCNAME}}
	encoded, err := EncodeRdata(&buf, n, sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := DecodeRdata(buf, protocol.TypeNSEC, 0, encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decoded.(NSECData)
	if got.NextName != n.NextName || len(got.Types) != len(n.Types) {
		t.Fatalf("got %v, want %v", got, n)
	}
}

func TestRdataNSECUndersizedRdlengthIsRejected(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	n := NSECData{NextName: "example.com", Types: []protocol.TypeCode{protocol.TypeA}}
	if _, err := EncodeRdata(&buf, n, sm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// "example.com" alone encodes to 13 bytes (07 example 03 com 00); a
	// declared rdlength of 10 is shorter than just the next_name, so
	// nameEnd lands past the declared rdata end. This must be rejected,
	// not panic on a high<low slice of msg.
	_, err := DecodeRdata(buf, protocol.TypeNSEC, 0, 10)
	if err == nil {
		t.Fatal("expected error for undersized rdlength, got nil")
	}
}

func TestRdataUnknownPassthrough(t *testing.T) {
	buf := make([]byte, 0)
	sm := make(SuffixMap)
	u := UnknownData{Bytes: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	n, err := EncodeRdata(&buf, u, sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := DecodeRdata(buf, protocol.TypeCode(9999), 0, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decoded.(UnknownData)
	if !bytes.Equal(got.Bytes, u.Bytes) {
		t.Fatalf("got % x, want % x", got.Bytes, u.Bytes)
	}
}
