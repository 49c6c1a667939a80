package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBufferIsEmpty(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("<form>")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Zero(t, again.Len())
	PutBuffer(again)
}

func TestPutBufferDropsLarge(t *testing.T) {
	PutBuffer(nil)
	PutBuffer(bytes.NewBuffer(make([]byte, 0, maxRetained+1)))
	assert.Zero(t, GetBuffer().Len())
}
