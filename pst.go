// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package pst defines the identifiers, checksums and errors shared by the
// components of a read-only Personal Storage Table (PST) engine.
//
// A PST file is a paged heap indexed by two B-trees: the node BTree maps a
// NodeID to the blocks holding the node's data, and the block BTree maps a
// BlockID to the block's physical location. Sub-packages layer the
// Heap-on-Node allocator, property contexts and table contexts on top.
package pst

import "io"

// File provides read access to a PST backend.
// The File interface is the minimum implementation required.
//
// The *os.File type satisfies this interface.
type File interface {
	io.ReaderAt
	io.Closer
}

// Format identifies the on-disk layout variant.
type Format uint8

const (
	// ANSI files use 32-bit block ids and a 512-byte header.
	ANSI Format = iota + 1
	// Unicode files use 64-bit block ids and a 564-byte header.
	Unicode
)

func (format Format) String() string {
	switch format {
	case ANSI:
		return "ANSI"
	case Unicode:
		return "Unicode"
	default:
		return "unknown"
	}
}

// PageSize is the size of every page in the file.
const PageSize = 512

// MaxBlockSize is the largest physical block, trailer included.
const MaxBlockSize = 8192

// BlockTrailerSize returns the size of the trailer that ends each block.
func (format Format) BlockTrailerSize() int {
	if format == ANSI {
		return 12
	}
	return 16
}

// IDSize returns the width of a BlockID (and BREF offset) on disk.
func (format Format) IDSize() int {
	if format == ANSI {
		return 4
	}
	return 8
}

// MaxBlockData returns the largest payload a single data block can carry.
func (format Format) MaxBlockData() int {
	return MaxBlockSize - format.BlockTrailerSize()
}

// BlockSize returns the physical size of a block carrying size payload bytes.
func (format Format) BlockSize(size int) int {
	return (size + format.BlockTrailerSize() + 63) &^ 63
}
