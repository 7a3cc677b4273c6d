// Package recordset provides small conveniences layered on top of the
// wire codec's Question/ResourceRecord/Rdata types: known-answer
// question construction for InterfaceWorker, and a map[string]string
// view over TXT records for callers that don't want to hand-roll the
// DNS-SD "key=value" length-prefix loop themselves.
package recordset

import (
	"strings"

	"github.com/quietwire/madns/internal/protocol"
	"github.com/quietwire/madns/internal/wire"
)

// BuildQuestion constructs a plain (non-unicast-response) question for
// name/t, the form InterfaceWorker sends for both the initial query and
// any known-answer seeding.
func BuildQuestion(name string, t protocol.TypeCode) wire.Question {
	return wire.Question{Name: name, Type: t, Class: protocol.ClassIN}
}

// TXTPairs interprets a TXTData's byte strings as RFC 6763 §6.4
// "key=value" entries. An entry without an '=' is kept as a key with an
// empty value, matching the RFC's boolean-attribute convention; a
// zero-length entry is skipped. Order is not preserved; use TXTData.Strings directly
// when entry order or duplicate keys matter.
func TXTPairs(txt wire.TXTData) map[string]string {
	pairs := make(map[string]string, len(txt.Strings))
	for _, entry := range txt.Strings {
		if len(entry) == 0 {
			continue
		}
		s := string(entry)
		if idx := strings.IndexByte(s, '='); idx >= 0 {
			pairs[s[:idx]] = s[idx+1:]
		} else {
			pairs[s] = ""
		}
	}
	return pairs
}

// EncodeTXTPairs builds a TXTData from a map in the "key=value" form
// TXTPairs decodes. Iteration order of a Go map is unspecified, so
// callers needing deterministic wire output should build wire.TXTData
// directly instead.
func EncodeTXTPairs(pairs map[string]string) wire.TXTData {
	if len(pairs) == 0 {
		return wire.TXTData{}
	}
	strs := make([][]byte, 0, len(pairs))
	for k, v := range pairs {
		strs = append(strs, []byte(k+"="+v))
	}
	return wire.TXTData{Strings: strs}
}
