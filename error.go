package pst

import "errors"

var (
	ErrClosed                = errors.New("closed")
	ErrFileFormat            = errors.New("invalid file format")
	ErrCorruptPage           = errors.New("corrupt page")
	ErrIndexCorrupt          = errors.New("corrupt index")
	ErrCorruptBlock          = errors.New("corrupt block")
	ErrTruncatedBlock        = errors.New("truncated block")
	ErrCorruptHeap           = errors.New("corrupt heap")
	ErrCorruptTable          = errors.New("corrupt table")
	ErrNodeNotFound          = errors.New("node not found")
	ErrHeapIndexOutOfRange   = errors.New("heap index out of range")
	ErrPropertyNotFound      = errors.New("property not found")
	ErrRowOutOfRange         = errors.New("row out of range")
	ErrUnsupportedType       = errors.New("unsupported property type")
	ErrNamedPropertyNotFound = errors.New("named property not found")
	ErrInvalidEntryID        = errors.New("invalid entry id")
	ErrForeignEntryID        = errors.New("foreign entry id")
)
