// Package wire implements the mDNS/DNS message codec: names with suffix
// compression, per-type rdata, the fixed header, and the question/
// resource/message framing built on top of them.
package wire

import (
	"strings"

	"github.com/quietwire/madns/internal/errors"
	"github.com/quietwire/madns/internal/protocol"
)

// SuffixMap tracks, during a single message encode, the absolute byte
// offset at which each dotted-name suffix was first written, so a later
// occurrence of the same suffix can be replaced by a compression
// pointer instead of being written out again.
type SuffixMap map[string]int

// EncodeName appends name (dotted, no trailing dot; "" is the root) to
// buf, compressing against any suffix already present in suffixMap.
// buf must be the single buffer used for the whole message being built,
// since pointer offsets are absolute within it.
func EncodeName(buf *[]byte, name string, suffixMap SuffixMap) error {
	var labels []string
	if name != "" {
		labels = strings.Split(name, ".")
	}

	for i := 0; i < len(labels); i++ {
		suffix := strings.Join(labels[i:], ".")
		if offset, ok := suffixMap[suffix]; ok {
			ptr := uint16(0xC000) | uint16(offset)
			*buf = append(*buf, byte(ptr>>8), byte(ptr))
			return nil
		}

		label := labels[i]
		if len(label) == 0 || len(label) > protocol.MaxLabelLength {
			return &errors.InvalidLabelLength{Offset: len(*buf), Length: len(label)}
		}

		offset := len(*buf)
		if offset <= 0x3FFF {
			suffixMap[suffix] = offset
		}
		*buf = append(*buf, byte(len(label)))
		*buf = append(*buf, label...)
	}

	*buf = append(*buf, 0x00)
	return nil
}

// DecodeName reads a (possibly compressed) name starting at offset in
// msg. It returns the dotted name and the cursor immediately past the
// name's own encoding in msg — which, for a compressed name, is just
// past the two pointer bytes, never into the pointed-to region. Cycle
// detection tracks every pointer target visited while decoding this one
// name; a repeat target fails with CircularCompressionPointer.
func DecodeName(msg []byte, offset int) (string, int, error) {
	var labels []string
	cursor := offset
	visited := make(map[int]bool)
	outerSet := false
	outerNext := 0
	jumps := 0

	for {
		if cursor >= len(msg) {
			return "", 0, &errors.InsufficientData{
				Operation: "decode name", Offset: cursor, Needed: 1, Available: len(msg) - cursor,
			}
		}

		length := msg[cursor]

		if length == 0x00 {
			cursor++
			if !outerSet {
				outerNext = cursor
			}
			break
		}

		if length&protocol.CompressionMask == protocol.CompressionMask {
			if cursor+1 >= len(msg) {
				return "", 0, &errors.InsufficientData{
					Operation: "decode name pointer", Offset: cursor, Needed: 2, Available: len(msg) - cursor,
				}
			}
			target := int(length&0x3F)<<8 | int(msg[cursor+1])
			if !outerSet {
				outerNext = cursor + 2
				outerSet = true
			}
			if visited[target] {
				return "", 0, &errors.CircularCompressionPointer{Offset: cursor, TargetOffset: target}
			}
			visited[target] = true
			jumps++
			if jumps > protocol.MaxCompressionPointers {
				return "", 0, &errors.CircularCompressionPointer{Offset: cursor, TargetOffset: target}
			}
			cursor = target
			continue
		}

		if length&0xC0 != 0 {
			return "", 0, &errors.InvalidLabelLength{Offset: cursor, Length: int(length)}
		}

		labelStart := cursor + 1
		labelEnd := labelStart + int(length)
		if labelEnd > len(msg) {
			return "", 0, &errors.InsufficientData{
				Operation: "decode label", Offset: labelStart, Needed: int(length), Available: len(msg) - labelStart,
			}
		}
		labels = append(labels, string(msg[labelStart:labelEnd]))
		cursor = labelEnd
	}

	if !outerSet {
		outerNext = cursor
	}
	return strings.Join(labels, "."), outerNext, nil
}
