package protocol

import "testing"

func TestMulticastGroups(t *testing.T) {
	v4 := MulticastGroupIPv4()
	if v4.IP.String() != MulticastAddrIPv4 || v4.Port != Port {
		t.Fatalf("unexpected ipv4 group: %v", v4)
	}
	v6 := MulticastGroupIPv6()
	if v6.IP.String() != MulticastAddrIPv6 || v6.Port != Port {
		t.Fatalf("unexpected ipv6 group: %v", v6)
	}
}

func TestTypeCodeString(t *testing.T) {
	cases := map[TypeCode]string{
		TypeA: "A", TypeAAAA: "AAAA", TypeCNAME: "CNAME", TypePTR: "PTR",
		TypeSRV: "SRV", TypeTXT: "TXT", TypeNSEC: "NSEC", TypeANY: "ANY",
		TypeCode(9999): "UNKNOWN",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("TypeCode(%d).String() = %q, want %q", code, got, want)
		}
	}
}

func TestTypeCodeIsSupported(t *testing.T) {
	if !TypeA.IsSupported() {
		t.Error("expected TypeA supported")
	}
	if TypeANY.IsSupported() {
		t.Error("expected TypeANY (question-only wildcard) unsupported as a record type")
	}
}
