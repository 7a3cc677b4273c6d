package wire

// Message is a full DNS message: header plus the four ordered sections.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}

// EncodeMessage serializes m to a fresh byte slice. The header's counts
// are overwritten from the actual section lengths regardless of what
// m.Header carries; a single suffix map threads across every section so
// names compress against anything written earlier in the message.
func EncodeMessage(m Message) ([]byte, error) {
	h := m.Header
	h.QDCount = uint16(len(m.Questions))
	h.ANCount = uint16(len(m.Answers))
	h.NSCount = uint16(len(m.Authorities))
	h.ARCount = uint16(len(m.Additionals))

	buf := make([]byte, 0, 128)
	EncodeHeader(&buf, h)

	suffixMap := make(SuffixMap)

	for _, q := range m.Questions {
		if err := EncodeQuestion(&buf, q, suffixMap); err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Answers {
		if err := EncodeResourceRecord(&buf, rr, suffixMap); err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Authorities {
		if err := EncodeResourceRecord(&buf, rr, suffixMap); err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Additionals {
		if err := EncodeResourceRecord(&buf, rr, suffixMap); err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// DecodeMessage parses a full message from msg, requiring at least 12
// header bytes, then exactly the number of questions/answers/
// authorities/additionals the header's counts declare. It returns the
// decoded message and any bytes left over past the last section.
func DecodeMessage(msg []byte) (Message, []byte, error) {
	h, err := DecodeHeader(msg)
	if err != nil {
		return Message{}, nil, err
	}

	cursor := 12
	m := Message{Header: h}

	m.Questions = make([]Question, 0, h.QDCount)
	for i := uint16(0); i < h.QDCount; i++ {
		q, next, err := DecodeQuestion(msg, cursor)
		if err != nil {
			return Message{}, nil, err
		}
		m.Questions = append(m.Questions, q)
		cursor = next
	}

	decodeRRs := func(count uint16) ([]ResourceRecord, error) {
		rrs := make([]ResourceRecord, 0, count)
		for i := uint16(0); i < count; i++ {
			rr, next, err := DecodeResourceRecord(msg, cursor)
			if err != nil {
				return nil, err
			}
			rrs = append(rrs, rr)
			cursor = next
		}
		return rrs, nil
	}

	if m.Answers, err = decodeRRs(h.ANCount); err != nil {
		return Message{}, nil, err
	}
	if m.Authorities, err = decodeRRs(h.NSCount); err != nil {
		return Message{}, nil, err
	}
	if m.Additionals, err = decodeRRs(h.ARCount); err != nil {
		return Message{}, nil, err
	}

	return m, msg[cursor:], nil
}
