// Package mem provides an in-memory pst.File for tests and tools.
package mem

import (
	"bytes"
	"io"
	"sync"

	"github.com/dacapoday/pst"
)

// File is an in-memory implementation of the pst.File interface.
// It is safe for concurrent use by multiple goroutines.
//
// File requires no initialization - just declare and use:
//
//	var f File
//	f.Load(image)
type File struct {
	rw     sync.RWMutex
	data   []byte
	closed bool
}

var _ pst.File = new(File)

// New returns a File holding a copy of data.
func New(data []byte) *File {
	file := new(File)
	file.Load(data)
	return file
}

// Load replaces the file content with a copy of data and reopens a closed
// file.
func (file *File) Load(data []byte) {
	file.rw.Lock()
	file.data = bytes.Clone(data)
	file.closed = false
	file.rw.Unlock()
}

// Close discards the content. Reads after Close return pst.ErrClosed.
func (file *File) Close() error {
	file.rw.Lock()
	file.data = nil
	file.closed = true
	file.rw.Unlock()
	return nil
}

// Size returns the current size of the file in bytes.
func (file *File) Size() int64 {
	file.rw.RLock()
	defer file.rw.RUnlock()
	return int64(len(file.data))
}

// Bytes returns a copy of the content.
func (file *File) Bytes() []byte {
	file.rw.RLock()
	defer file.rw.RUnlock()
	return bytes.Clone(file.data)
}

// ReadFrom reads data from r until EOF and replaces the entire file content.
// It implements io.ReaderFrom interface.
func (file *File) ReadFrom(r io.Reader) (n int64, err error) {
	var buf bytes.Buffer
	n, err = buf.ReadFrom(r)
	if err != nil {
		return
	}
	file.rw.Lock()
	file.data = buf.Bytes()
	file.closed = false
	file.rw.Unlock()
	return
}

// WriteAt writes len(p) bytes from p at offset off, growing the file with
// zero bytes as needed. Tests use it to corrupt a file image in place.
func (file *File) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	file.rw.Lock()
	defer file.rw.Unlock()
	if file.closed {
		return 0, pst.ErrClosed
	}
	if end := off + int64(len(p)); end > int64(len(file.data)) {
		file.data = append(file.data, make([]byte, end-int64(len(file.data)))...)
	}
	return copy(file.data[off:], p), nil
}

// ReadAt reads len(p) bytes into p starting at offset off.
// It implements io.ReaderAt interface: a short read returns io.EOF.
func (file *File) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	file.rw.RLock()
	defer file.rw.RUnlock()
	if file.closed {
		return 0, pst.ErrClosed
	}
	if off >= int64(len(file.data)) {
		return 0, io.EOF
	}
	n = copy(p, file.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return
}
