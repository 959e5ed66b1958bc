// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package block reads and validates the data blocks of a PST file.
//
// A block is located through the block BTree, read whole (payload, padding
// and trailer), checked against its trailer and, for external blocks,
// decoded with the file's cipher. Internal blocks (XBLOCK, SLBLOCK, ...) are
// never encoded.
package block

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/bptree"
	"github.com/dacapoday/pst/crypt"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/metrics"
	"github.com/dacapoday/pst/page"
)

var (
	ErrCorruptBlock = pst.ErrCorruptBlock
	ErrNodeNotFound = pst.ErrNodeNotFound
)

// Index resolves a BlockID to its location, see bptree.BlockIndex.
type Index interface {
	Find(key uint64) (bptree.BlockEntry, error)
}

// Reader reads blocks. It keeps no state between reads and is safe for
// concurrent use.
type Reader struct {
	file    io.ReaderAt
	format  pst.Format
	index   Index
	cipher  crypt.Cipher
	metrics *metrics.Metrics
}

// Option configures a Reader.
type Option func(*Reader)

// WithMetrics sets the counters updated on every read.
func WithMetrics(m *metrics.Metrics) Option {
	return func(reader *Reader) {
		reader.metrics = m
	}
}

// New returns a Reader over file. External blocks are decoded with cipher.
func New(file io.ReaderAt, format pst.Format, index Index, cipher crypt.Cipher, opts ...Option) *Reader {
	reader := &Reader{
		file:   file,
		format: format,
		index:  index,
		cipher: cipher,
	}
	for _, opt := range opts {
		opt(reader)
	}
	if reader.metrics == nil {
		reader.metrics = metrics.New(nil)
	}
	return reader
}

// Open returns a Reader for the file described by h, resolving blocks
// through the block BTree read from pages.
func Open(file io.ReaderAt, h *header.Header, pages *page.Allocator, opts ...Option) (*Reader, error) {
	cipher, err := crypt.New(h.CryptMethod)
	if err != nil {
		return nil, err
	}
	index := bptree.NewBlockIndex(pages, h.Root.BlockBTree, h.MaxDepth())
	return New(file, h.Format, index, cipher, opts...), nil
}

// Format returns the layout variant of the blocks.
func (reader *Reader) Format() pst.Format {
	return reader.format
}

// Entry returns the block BTree record of bid.
func (reader *Reader) Entry(bid pst.BlockID) (entry bptree.BlockEntry, err error) {
	if entry, err = reader.index.Find(uint64(bid)); err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			err = fmt.Errorf("block(%v) missing from block BTree: %w: %w", bid, ErrCorruptBlock, err)
		} else {
			err = fmt.Errorf("lookup block(%v) failed: %w", bid, err)
		}
	}
	return
}

// ReadBlock returns the decoded payload of bid. The slice is owned by the
// caller.
func (reader *Reader) ReadBlock(bid pst.BlockID) (data []byte, err error) {
	entry, err := reader.Entry(bid)
	if err != nil {
		return
	}

	ref := entry.Ref
	buf := make([]byte, reader.format.BlockSize(int(entry.Size)))
	n, err := reader.file.ReadAt(buf, int64(ref.Offset))
	if n < len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		if closed(err) {
			err = fmt.Errorf("read block(%v): %w", bid, pst.ErrClosed)
			return
		}
		err = fmt.Errorf("read block(%v) failed: %w: %w", bid, ErrCorruptBlock, err)
		return
	}
	err = nil
	reader.metrics.BlocksRead.Inc()

	trailer, err := decodeTrailer(reader.format, buf)
	if err == nil {
		err = trailer.verify(ref, entry.Size, buf)
	}
	if err != nil {
		reader.metrics.ChecksumFailures.WithLabelValues("block").Inc()
		err = fmt.Errorf("block(%v) at %#x: %w", bid, ref.Offset, err)
		return
	}

	data = buf[:entry.Size:entry.Size]
	if !trailer.ID.IsInternal() {
		reader.cipher.Decode(data, crypt.Key(trailer.ID))
	}
	reader.metrics.BlockBytesRead.Add(float64(len(data)))
	return
}

// Trailer is the BLOCKTRAILER ending each block.
//
// Unicode: cb, wSig, dwCRC, bid(8). ANSI: cb, wSig, bid(4), dwCRC.
type Trailer struct {
	Size      uint16
	Signature uint16
	CRC       uint32
	ID        pst.BlockID
}

func decodeTrailer(format pst.Format, buf []byte) (trailer Trailer, err error) {
	size := format.BlockTrailerSize()
	if len(buf) < size {
		err = fmt.Errorf("%w: %d bytes hold no trailer", ErrCorruptBlock, len(buf))
		return
	}
	t := buf[len(buf)-size:]
	trailer.Size = binary.LittleEndian.Uint16(t)
	trailer.Signature = binary.LittleEndian.Uint16(t[2:])
	if format == pst.ANSI {
		trailer.ID = pst.BlockID(binary.LittleEndian.Uint32(t[4:]))
		trailer.CRC = binary.LittleEndian.Uint32(t[8:])
	} else {
		trailer.CRC = binary.LittleEndian.Uint32(t[4:])
		trailer.ID = pst.BlockID(binary.LittleEndian.Uint64(t[8:]))
	}
	return
}

func (trailer Trailer) verify(ref pst.BlockRef, size uint16, buf []byte) error {
	switch {
	case trailer.Size != size:
		return fmt.Errorf("%w: trailer size %d, block BTree size %d", ErrCorruptBlock, trailer.Size, size)
	case trailer.ID.Key() != ref.ID.Key():
		return fmt.Errorf("%w: trailer id %v, expected %v", ErrCorruptBlock, trailer.ID, ref.ID)
	case trailer.Signature != pst.Signature(ref.Offset, trailer.ID):
		return fmt.Errorf("%w: signature %#x, expected %#x", ErrCorruptBlock, trailer.Signature, pst.Signature(ref.Offset, trailer.ID))
	}
	if sum := pst.Checksum(buf[:size]); sum != trailer.CRC {
		return fmt.Errorf("%w: checksum %#x, expected %#x", ErrCorruptBlock, trailer.CRC, sum)
	}
	return nil
}

// closed reports whether a read failed because the file was closed.
func closed(err error) bool {
	return errors.Is(err, pst.ErrClosed) || errors.Is(err, fs.ErrClosed)
}
