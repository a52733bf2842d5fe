package iohandler

import (
	"bytes"
)

// Memory is a Handler over an in-memory buffer.
type Memory struct {
	r      *bytes.Reader
	closed bool
}

// NewMemory returns a Handler reading p. The buffer is not copied.
func NewMemory(p []byte) *Memory {
	return &Memory{r: bytes.NewReader(p)}
}

func (m *Memory) Read(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	return m.r.Read(p)
}

func (m *Memory) Seek(offset int64, whence int) (int64, error) {
	if m.closed {
		return 0, ErrClosed
	}
	return m.r.Seek(offset, whence)
}

func (m *Memory) Tell() int64 {
	return m.r.Size() - int64(m.r.Len())
}

func (m *Memory) EOF() bool {
	return m.r.Len() == 0
}

func (m *Memory) Size() int64 {
	return m.r.Size()
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}
