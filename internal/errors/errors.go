// Package errors defines the structured error types returned by the wire
// codec and transport layers.
//
// All four kinds carry enough context to locate the failure (operation,
// byte offset where applicable) and are distinct pointer types, so
// callers can use errors.As instead of string matching. Only SocketError
// wraps an underlying cause and implements Unwrap; the three codec
// errors carry no cause.
package errors

import (
	"fmt"
)

// InsufficientData is returned when a decode operation needs more bytes
// than remain in the message — a truncated header, a label length byte
// past the end of the buffer, an RDATA shorter than RDLENGTH declares.
type InsufficientData struct {
	Operation string
	Offset    int
	Needed    int
	Available int
}

func (e *InsufficientData) Error() string {
	return fmt.Sprintf("insufficient data during %s at offset %d: need %d bytes, have %d",
		e.Operation, e.Offset, e.Needed, e.Available)
}

// InvalidLabelLength is returned when a name label's length is out of
// the legal 1-63 range, or when a TXT entry is longer than 255 bytes.
// The 255-byte total name length is not checked by the codec.
type InvalidLabelLength struct {
	Offset int
	Length int
}

func (e *InvalidLabelLength) Error() string {
	return fmt.Sprintf("invalid label length %d at offset %d", e.Length, e.Offset)
}

// CircularCompressionPointer is returned when decoding a compressed name
// encounters a pointer that targets an offset already visited while
// decoding the same name.
type CircularCompressionPointer struct {
	Offset      int
	TargetOffset int
}

func (e *CircularCompressionPointer) Error() string {
	return fmt.Sprintf("circular compression pointer at offset %d targets already-visited offset %d",
		e.Offset, e.TargetOffset)
}

// SocketError represents a failure establishing or using a multicast
// socket: binding, joining a group, setting socket options, or I/O.
type SocketError struct {
	Operation string
	Err       error
	Details   string
}

func (e *SocketError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("socket error during %s: %v (%s)", e.Operation, e.Err, e.Details)
	}
	return fmt.Sprintf("socket error during %s: %v", e.Operation, e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}
