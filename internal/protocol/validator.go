// Package protocol implements mDNS protocol validation and constants.
package protocol

import (
	"fmt"
	"strings"
)

// ValidateName validates a DNS name per RFC 1035 §3.1: total wire length
// ≤255 bytes, each label ≤63 bytes, no empty labels, labels restricted to
// [a-zA-Z0-9_-] with no leading/trailing hyphen. The trailing dot, if
// present, is treated as the canonical-form terminator and stripped
// before validation.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	name = strings.TrimSuffix(name, ".")
	labels := strings.Split(name, ".")

	wireLength := 1 // root terminator
	for _, label := range labels {
		wireLength += 1 + len(label)
	}
	if wireLength > MaxNameLength {
		return fmt.Errorf("name %q exceeds maximum wire length %d bytes (got %d)", name, MaxNameLength, wireLength)
	}

	for i, label := range labels {
		if err := validateLabel(label, i); err != nil {
			return fmt.Errorf("name %q: %w", name, err)
		}
	}
	return nil
}

func validateLabel(label string, position int) error {
	if label == "" {
		return fmt.Errorf("empty label at position %d", position)
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("label %q exceeds maximum length %d bytes", label, MaxLabelLength)
	}
	if strings.HasPrefix(label, "-") {
		return fmt.Errorf("label %q starts with hyphen", label)
	}
	if strings.HasSuffix(label, "-") {
		return fmt.Errorf("label %q ends with hyphen", label)
	}
	for i, ch := range label {
		if !isValidDNSChar(ch) {
			return fmt.Errorf("invalid character %q in label %q (position %d)", ch, label, i)
		}
	}
	return nil
}

// isValidDNSChar reports whether ch is legal in a DNS label. Underscore
// is not part of RFC 1035 but is required for DNS-SD service labels
// (RFC 6763 §7, e.g. "_http._tcp").
func isValidDNSChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' ||
		ch == '_'
}

// ValidateRecordType reports whether t is one of the named record types
// accepted by TypeCode.IsSupported.
func ValidateRecordType(t TypeCode) error {
	if !t.IsSupported() {
		return fmt.Errorf("unsupported record type %d", uint16(t))
	}
	return nil
}

// ValidateResponse checks the header flags of a received message against
// RFC 6762 §18: the QR bit must be set (it is a response), OPCODE must
// be the standard query opcode, and RCODE must be zero. Responses
// failing any of these checks must be silently discarded per §18.11.
func ValidateResponse(flags uint16) error {
	if flags&FlagQR == 0 {
		return fmt.Errorf("QR bit not set (flags 0x%04X)", flags)
	}
	if opcode := (flags >> 11) & 0x0F; opcode != OpcodeQuery {
		return fmt.Errorf("non-zero OPCODE %d (flags 0x%04X)", opcode, flags)
	}
	if rcode := flags & 0x000F; rcode != RCodeNoError {
		return fmt.Errorf("non-zero RCODE %d (flags 0x%04X)", rcode, flags)
	}
	return nil
}
