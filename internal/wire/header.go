package wire

import (
	"encoding/binary"

	"github.com/quietwire/madns/internal/errors"
)

// Header is the fixed 12-byte DNS message header per RFC 1035 §4.1.1.
type Header struct {
	ID                                 uint16
	QR, AA, TC, RD, RA                 bool
	Opcode                             uint8 // 4 bits
	Z                                  uint8 // 3 bits, reserved
	Rcode                              uint8 // 4 bits
	QDCount, ANCount, NSCount, ARCount uint16
}

// Flags packs h's QR/Opcode/AA/TC/RD/RA/Z/Rcode fields into the 16-bit
// wire flags word, for protocol.ValidateResponse and anything else that
// needs the raw bit pattern rather than the decoded fields.
func (h Header) Flags() uint16 {
	var flags uint16
	if h.QR {
		flags |= 1 << 15
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.AA {
		flags |= 1 << 10
	}
	if h.TC {
		flags |= 1 << 9
	}
	if h.RD {
		flags |= 1 << 8
	}
	if h.RA {
		flags |= 1 << 7
	}
	flags |= uint16(h.Z&0x07) << 4
	flags |= uint16(h.Rcode & 0x0F)
	return flags
}

// EncodeHeader appends the 12-byte wire form of h to buf. Counts are
// not derived here — MessageCodec overwrites them from actual section
// lengths before calling this.
func EncodeHeader(buf *[]byte, h Header) {
	var fixed [12]byte
	binary.BigEndian.PutUint16(fixed[0:2], h.ID)
	binary.BigEndian.PutUint16(fixed[2:4], h.Flags())
	binary.BigEndian.PutUint16(fixed[4:6], h.QDCount)
	binary.BigEndian.PutUint16(fixed[6:8], h.ANCount)
	binary.BigEndian.PutUint16(fixed[8:10], h.NSCount)
	binary.BigEndian.PutUint16(fixed[10:12], h.ARCount)
	*buf = append(*buf, fixed[:]...)
}

// DecodeHeader reads the 12-byte header at the start of msg.
func DecodeHeader(msg []byte) (Header, error) {
	if len(msg) < 12 {
		return Header{}, &errors.InsufficientData{Operation: "decode header", Offset: 0, Needed: 12, Available: len(msg)}
	}
	flags := binary.BigEndian.Uint16(msg[2:4])
	return Header{
		ID:      binary.BigEndian.Uint16(msg[0:2]),
		QR:      flags&(1<<15) != 0,
		Opcode:  uint8((flags >> 11) & 0x0F),
		AA:      flags&(1<<10) != 0,
		TC:      flags&(1<<9) != 0,
		RD:      flags&(1<<8) != 0,
		RA:      flags&(1<<7) != 0,
		Z:       uint8((flags >> 4) & 0x07),
		Rcode:   uint8(flags & 0x0F),
		QDCount: binary.BigEndian.Uint16(msg[4:6]),
		ANCount: binary.BigEndian.Uint16(msg[6:8]),
		NSCount: binary.BigEndian.Uint16(msg[8:10]),
		ARCount: binary.BigEndian.Uint16(msg[10:12]),
	}, nil
}
