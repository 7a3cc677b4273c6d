package wire

import (
	"encoding/binary"

	"github.com/quietwire/madns/internal/errors"
	"github.com/quietwire/madns/internal/protocol"
)

// Rdata is the tagged union of per-type resource record payloads. Each
// concrete type below is one variant; UnknownData is the catch-all that
// keeps decode total over any RDLENGTH-bounded byte run whose type code
// this codec doesn't otherwise know.
type Rdata interface {
	isRdata()
}

type AData struct{ Addr [4]byte }

type AAAAData struct{ Groups [8]uint16 }

type CNAMEData struct{ Name string }

type PTRData struct{ Name string }

type SRVData struct {
	Priority, Weight, Port uint16
	Target                 string
}

// TXTData is an ordered sequence of byte strings, each at most 255
// bytes. An empty TXTData encodes as a single zero-length entry, which
// decodes back as a TXTData holding one empty string.
type TXTData struct{ Strings [][]byte }

type NSECData struct {
	NextName string
	Types    []protocol.TypeCode
}

type UnknownData struct{ Bytes []byte }

func (AData) isRdata()       {}
func (AAAAData) isRdata()    {}
func (CNAMEData) isRdata()   {}
func (PTRData) isRdata()     {}
func (SRVData) isRdata()     {}
func (TXTData) isRdata()     {}
func (NSECData) isRdata()    {}
func (UnknownData) isRdata() {}

// EncodeRdata appends the wire form of r to buf (which must be the
// whole-message buffer; name-bearing variants compress against
// suffixMap) and returns the byte length written, i.e. the record's
// RDLENGTH.
func EncodeRdata(buf *[]byte, r Rdata, suffixMap SuffixMap) (int, error) {
	start := len(*buf)

	switch v := r.(type) {
	case AData:
		*buf = append(*buf, v.Addr[:]...)

	case AAAAData:
		for _, g := range v.Groups {
			*buf = append(*buf, byte(g>>8), byte(g))
		}

	case CNAMEData:
		if err := EncodeName(buf, v.Name, suffixMap); err != nil {
			return 0, err
		}

	case PTRData:
		if err := EncodeName(buf, v.Name, suffixMap); err != nil {
			return 0, err
		}

	case SRVData:
		var fixed [6]byte
		binary.BigEndian.PutUint16(fixed[0:2], v.Priority)
		binary.BigEndian.PutUint16(fixed[2:4], v.Weight)
		binary.BigEndian.PutUint16(fixed[4:6], v.Port)
		*buf = append(*buf, fixed[:]...)
		if err := EncodeName(buf, v.Target, suffixMap); err != nil {
			return 0, err
		}

	case TXTData:
		if len(v.Strings) == 0 {
			*buf = append(*buf, 0x00)
			break
		}
		for _, s := range v.Strings {
			if len(s) > 255 {
				return 0, &errors.InvalidLabelLength{Offset: len(*buf), Length: len(s)}
			}
			*buf = append(*buf, byte(len(s)))
			*buf = append(*buf, s...)
		}

	case NSECData:
		if err := EncodeName(buf, v.NextName, suffixMap); err != nil {
			return 0, err
		}
		if err := encodeNSECBitmap(buf, v.Types); err != nil {
			return 0, err
		}

	case UnknownData:
		*buf = append(*buf, v.Bytes...)

	default:
		return 0, &errors.InsufficientData{Operation: "encode rdata", Offset: start, Needed: 0, Available: 0}
	}

	return len(*buf) - start, nil
}

// DecodeRdata decodes the rdata of a record of type t, occupying
// msg[rdataStart:rdataStart+rdlength]. msg is the full message so
// name-bearing variants can follow compression pointers anywhere in it.
func DecodeRdata(msg []byte, t protocol.TypeCode, rdataStart, rdlength int) (Rdata, error) {
	if rdataStart+rdlength > len(msg) {
		return nil, &errors.InsufficientData{
			Operation: "decode rdata", Offset: rdataStart, Needed: rdlength, Available: len(msg) - rdataStart,
		}
	}
	window := msg[rdataStart : rdataStart+rdlength]

	switch t {
	case protocol.TypeA:
		if len(window) != 4 {
			return nil, &errors.InsufficientData{Operation: "decode A", Offset: rdataStart, Needed: 4, Available: len(window)}
		}
		var d AData
		copy(d.Addr[:], window)
		return d, nil

	case protocol.TypeAAAA:
		if len(window) != 16 {
			return nil, &errors.InsufficientData{Operation: "decode AAAA", Offset: rdataStart, Needed: 16, Available: len(window)}
		}
		var d AAAAData
		for i := range d.Groups {
			d.Groups[i] = binary.BigEndian.Uint16(window[i*2 : i*2+2])
		}
		return d, nil

	case protocol.TypeCNAME:
		name, _, err := DecodeName(msg, rdataStart)
		if err != nil {
			return nil, err
		}
		return CNAMEData{Name: name}, nil

	case protocol.TypePTR:
		name, _, err := DecodeName(msg, rdataStart)
		if err != nil {
			return nil, err
		}
		return PTRData{Name: name}, nil

	case protocol.TypeSRV:
		if len(window) < 6 {
			return nil, &errors.InsufficientData{Operation: "decode SRV", Offset: rdataStart, Needed: 6, Available: len(window)}
		}
		target, _, err := DecodeName(msg, rdataStart+6)
		if err != nil {
			return nil, err
		}
		return SRVData{
			Priority: binary.BigEndian.Uint16(window[0:2]),
			Weight:   binary.BigEndian.Uint16(window[2:4]),
			Port:     binary.BigEndian.Uint16(window[4:6]),
			Target:   target,
		}, nil

	case protocol.TypeTXT:
		var strs [][]byte
		pos := 0
		for pos < len(window) {
			l := int(window[pos])
			pos++
			if pos+l > len(window) {
				return nil, &errors.InsufficientData{
					Operation: "decode TXT entry", Offset: rdataStart + pos, Needed: l, Available: len(window) - pos,
				}
			}
			entry := make([]byte, l)
			copy(entry, window[pos:pos+l])
			strs = append(strs, entry)
			pos += l
		}
		return TXTData{Strings: strs}, nil

	case protocol.TypeNSEC:
		nextName, nameEnd, err := DecodeName(msg, rdataStart)
		if err != nil {
			return nil, err
		}
		rdataEnd := rdataStart + rdlength
		if nameEnd > rdataEnd {
			return nil, &errors.InsufficientData{
				Operation: "decode NSEC next name", Offset: rdataStart, Needed: nameEnd - rdataStart, Available: rdlength,
			}
		}
		types, err := decodeNSECBitmap(msg[nameEnd:rdataEnd])
		if err != nil {
			return nil, err
		}
		return NSECData{NextName: nextName, Types: types}, nil

	default:
		cp := make([]byte, len(window))
		copy(cp, window)
		return UnknownData{Bytes: cp}, nil
	}
}

// encodeNSECBitmap groups types into 256-wide windows and emits each as
// <block:u8><bitmap_len:u8><bitmap bytes>, MSB-first within each byte,
// per RFC 4034 §4.1.
func encodeNSECBitmap(buf *[]byte, types []protocol.TypeCode) error {
	windows := make(map[int]map[int]bool)
	for _, t := range types {
		block := int(t) / 256
		bytePos := (int(t) % 256) / 8
		if windows[block] == nil {
			windows[block] = make(map[int]bool)
		}
		windows[block][bytePos] = true
	}

	blocks := make([]int, 0, len(windows))
	for b := range windows {
		blocks = append(blocks, b)
	}
	sortInts(blocks)

	for _, block := range blocks {
		maxByte := 0
		for bytePos := range windows[block] {
			if bytePos > maxByte {
				maxByte = bytePos
			}
		}
		bitmap := make([]byte, maxByte+1)
		for _, t := range types {
			if int(t)/256 != block {
				continue
			}
			bytePos := (int(t) % 256) / 8
			bit := 7 - (int(t) % 8)
			bitmap[bytePos] |= 1 << uint(bit)
		}
		*buf = append(*buf, byte(block), byte(len(bitmap)))
		*buf = append(*buf, bitmap...)
	}
	return nil
}

func decodeNSECBitmap(window []byte) ([]protocol.TypeCode, error) {
	var types []protocol.TypeCode
	pos := 0
	for pos < len(window) {
		if pos+2 > len(window) {
			return nil, &errors.InsufficientData{Operation: "decode NSEC window header", Offset: pos, Needed: 2, Available: len(window) - pos}
		}
		block := int(window[pos])
		bitmapLen := int(window[pos+1])
		pos += 2
		if pos+bitmapLen > len(window) {
			return nil, &errors.InsufficientData{Operation: "decode NSEC bitmap", Offset: pos, Needed: bitmapLen, Available: len(window) - pos}
		}
		bitmap := window[pos : pos+bitmapLen]
		pos += bitmapLen
		for i, b := range bitmap {
			for bit := 0; bit < 8; bit++ {
				if b&(1<<uint(7-bit)) != 0 {
					types = append(types, protocol.TypeCode(block*256+i*8+bit))
				}
			}
		}
	}
	return types, nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
