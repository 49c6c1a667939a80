// Package pool reuses the buffers full page renders are written into.
package pool

import (
	"bytes"
	"sync"
)

// maxRetained is the largest buffer returned to the pool. Larger ones are
// left for the GC.
const maxRetained = 256 << 10

var buffers = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer returns an empty buffer.
func GetBuffer() *bytes.Buffer {
	buf := buffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool. buf must not be used afterwards.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxRetained {
		return
	}
	buffers.Put(buf)
}
