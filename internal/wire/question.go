package wire

import (
	"encoding/binary"

	"github.com/quietwire/madns/internal/errors"
	"github.com/quietwire/madns/internal/protocol"
)

// Question is a single entry of the message's question section.
type Question struct {
	Name            string
	Type            protocol.TypeCode
	Class           protocol.ClassCode
	UnicastResponse bool
}

// EncodeQuestion appends q's wire form to buf.
func EncodeQuestion(buf *[]byte, q Question, suffixMap SuffixMap) error {
	if err := EncodeName(buf, q.Name, suffixMap); err != nil {
		return err
	}
	var typeClass [4]byte
	binary.BigEndian.PutUint16(typeClass[0:2], uint16(q.Type))
	classWord := uint16(q.Class)
	if q.UnicastResponse {
		classWord |= protocol.ClassHighBit
	}
	binary.BigEndian.PutUint16(typeClass[2:4], classWord)
	*buf = append(*buf, typeClass[:]...)
	return nil
}

// DecodeQuestion reads one question starting at offset in msg, returning
// the cursor past it.
func DecodeQuestion(msg []byte, offset int) (Question, int, error) {
	name, cursor, err := DecodeName(msg, offset)
	if err != nil {
		return Question{}, 0, err
	}
	if cursor+4 > len(msg) {
		return Question{}, 0, &errors.InsufficientData{Operation: "decode question type/class", Offset: cursor, Needed: 4, Available: len(msg) - cursor}
	}
	t := binary.BigEndian.Uint16(msg[cursor : cursor+2])
	classWord := binary.BigEndian.Uint16(msg[cursor+2 : cursor+4])
	q := Question{
		Name:            name,
		Type:            protocol.TypeCode(t),
		Class:           protocol.ClassCode(classWord &^ protocol.ClassHighBit),
		UnicastResponse: classWord&protocol.ClassHighBit != 0,
	}
	return q, cursor + 4, nil
}

// ResourceRecord is a single entry of an answer/authority/additional
// section.
type ResourceRecord struct {
	Name       string
	Type       protocol.TypeCode
	Class      protocol.ClassCode
	CacheFlush bool
	TTL        uint32
	Rdata      Rdata
}

// EncodeResourceRecord appends rr's wire form to buf.
func EncodeResourceRecord(buf *[]byte, rr ResourceRecord, suffixMap SuffixMap) error {
	if err := EncodeName(buf, rr.Name, suffixMap); err != nil {
		return err
	}

	classWord := uint16(rr.Class)
	if rr.CacheFlush {
		classWord |= protocol.ClassHighBit
	}

	var head [8]byte
	binary.BigEndian.PutUint16(head[0:2], uint16(rr.Type))
	binary.BigEndian.PutUint16(head[2:4], classWord)
	binary.BigEndian.PutUint32(head[4:8], rr.TTL)
	*buf = append(*buf, head[:]...)

	rdlengthPos := len(*buf)
	*buf = append(*buf, 0x00, 0x00) // placeholder, patched below

	rdlen, err := EncodeRdata(buf, rr.Rdata, suffixMap)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16((*buf)[rdlengthPos:rdlengthPos+2], uint16(rdlen))
	return nil
}

// DecodeResourceRecord reads one resource record starting at offset in
// msg, returning the cursor past it.
func DecodeResourceRecord(msg []byte, offset int) (ResourceRecord, int, error) {
	name, cursor, err := DecodeName(msg, offset)
	if err != nil {
		return ResourceRecord{}, 0, err
	}
	if cursor+10 > len(msg) {
		return ResourceRecord{}, 0, &errors.InsufficientData{Operation: "decode resource record header", Offset: cursor, Needed: 10, Available: len(msg) - cursor}
	}
	t := binary.BigEndian.Uint16(msg[cursor : cursor+2])
	classWord := binary.BigEndian.Uint16(msg[cursor+2 : cursor+4])
	ttl := binary.BigEndian.Uint32(msg[cursor+4 : cursor+8])
	rdlength := int(binary.BigEndian.Uint16(msg[cursor+8 : cursor+10]))
	rdataStart := cursor + 10

	typeCode := protocol.TypeCode(t)
	rdata, err := DecodeRdata(msg, typeCode, rdataStart, rdlength)
	if err != nil {
		return ResourceRecord{}, 0, err
	}

	rr := ResourceRecord{
		Name:       name,
		Type:       typeCode,
		Class:      protocol.ClassCode(classWord &^ protocol.ClassHighBit),
		CacheFlush: classWord&protocol.ClassHighBit != 0,
		TTL:        ttl,
		Rdata:      rdata,
	}
	return rr, rdataStart + rdlength, nil
}
