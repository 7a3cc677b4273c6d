package wire

import "testing"

// FuzzDecodeMessage checks that the decoder never panics on arbitrary
// input; the returned message and error are not inspected.
func FuzzDecodeMessage(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0xC0, 0x00})
	f.Add(mustEncodeSeed())

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _, _ = DecodeMessage(data)
	})
}

func mustEncodeSeed() []byte {
	buf, err := EncodeMessage(Message{
		Header:    Header{ID: 1, QR: true},
		Questions: []Question{{Name: "local", Type: 1, Class: 1}},
	})
	if err != nil {
		return nil
	}
	return buf
}

// FuzzDecodeName specifically exercises the compression-pointer cycle
// guard, which is the highest-risk path for an infinite loop on hostile
// input.
func FuzzDecodeName(f *testing.F) {
	f.Add([]byte{0xC0, 0x00}, 0)
	f.Add([]byte{0x03, 'c', 'o', 'm', 0x00}, 0)

	f.Fuzz(func(t *testing.T, data []byte, offset int) {
		if offset < 0 || offset > len(data) {
			return
		}
		_, _, _ = DecodeName(data, offset)
	})
}
