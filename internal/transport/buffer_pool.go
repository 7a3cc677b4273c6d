package transport

import (
	"sync"
	"time"
)

// zeroTime clears a previously-set read deadline.
var zeroTime time.Time

// bufferPool holds 9000-byte receive buffers, sized for jumbo mDNS
// messages (RFC 6762 §17 allows responses well over the classic
// 512-byte DNS ceiling), reused across Receive calls to keep the
// per-packet hot path allocation-free.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 9000)
		return &buf
	},
}

// GetBuffer returns a pooled 9000-byte buffer. Callers must return it
// with PutBuffer, typically via defer.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer zeroes and returns a buffer obtained from GetBuffer. The
// buffer must not be used afterward.
func PutBuffer(bufPtr *[]byte) {
	buf := *bufPtr
	for i := range buf {
		buf[i] = 0
	}
	bufferPool.Put(bufPtr)
}
