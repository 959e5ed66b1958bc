// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package subnode reads the subnode trees that hang off nodes: an SLBLOCK
// of SLENTRY records, or an SIBLOCK pointing at SLBLOCKs.
package subnode

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/dacapoday/pst"
)

var (
	ErrCorruptBlock = pst.ErrCorruptBlock
	ErrNodeNotFound = pst.ErrNodeNotFound
)

// TypeSubnode is the btype of SLBLOCK and SIBLOCK.
const TypeSubnode = 0x02

// BlockReader reads decoded block payloads, see block.Reader.
type BlockReader interface {
	ReadBlock(bid pst.BlockID) ([]byte, error)
	Format() pst.Format
}

// Entry is an SLENTRY.
type Entry struct {
	ID   pst.NodeID
	Data pst.BlockID
	Sub  pst.BlockID
}

// Tree is a subnode tree. The zero root is an empty tree.
type Tree struct {
	reader BlockReader
	root   pst.BlockID
}

// New returns the subnode tree rooted at root.
func New(reader BlockReader, root pst.BlockID) *Tree {
	return &Tree{reader: reader, root: root}
}

// Root returns the root BlockID.
func (tree *Tree) Root() pst.BlockID {
	return tree.root
}

// block is an SLBLOCK (level 0) or SIBLOCK (level 1) payload.
type block struct {
	data   []byte
	format pst.Format
	head   int
	size   int
}

func (tree *Tree) read(bid pst.BlockID, level int) (b block, err error) {
	data, err := tree.reader.ReadBlock(bid)
	if err != nil {
		return
	}
	format := tree.reader.Format()
	if len(data) < 4 || data[0] != TypeSubnode {
		err = fmt.Errorf("%w: subnode block(%v) has no subnode header", ErrCorruptBlock, bid)
		return
	}
	if level >= 0 && int(data[1]) != level {
		err = fmt.Errorf("%w: subnode block(%v) has level %d, expected %d", ErrCorruptBlock, bid, data[1], level)
		return
	}
	if data[1] > 1 {
		err = fmt.Errorf("%w: subnode block(%v) has level %d", ErrCorruptBlock, bid, data[1])
		return
	}

	b = block{data: data, format: format, head: 8, size: 3 * format.IDSize()}
	if format == pst.ANSI {
		b.head = 4
	}
	if data[1] == 1 {
		b.size = 2 * format.IDSize()
	}
	if need := b.head + b.count()*b.size; need > len(data) {
		err = fmt.Errorf("%w: subnode block(%v) lists %d entries in %d bytes", ErrCorruptBlock, bid, b.count(), len(data))
		b = block{}
	}
	return
}

func (b block) level() int {
	return int(b.data[1])
}

func (b block) count() int {
	return int(binary.LittleEndian.Uint16(b.data[2:]))
}

func (b block) id(index, field int) uint64 {
	buf := b.data[b.head+index*b.size+field*b.format.IDSize():]
	if b.format == pst.ANSI {
		return uint64(binary.LittleEndian.Uint32(buf))
	}
	return binary.LittleEndian.Uint64(buf)
}

func (b block) nid(index int) pst.NodeID {
	return pst.NodeID(b.id(index, 0))
}

func (b block) entry(index int) Entry {
	return Entry{
		ID:   b.nid(index),
		Data: pst.BlockID(b.id(index, 1)),
		Sub:  pst.BlockID(b.id(index, 2)),
	}
}

// Find returns the entry of nid, or ErrNodeNotFound.
func (tree *Tree) Find(nid pst.NodeID) (entry Entry, err error) {
	if tree.root == 0 {
		err = fmt.Errorf("subnode(%v): %w", nid, ErrNodeNotFound)
		return
	}
	b, err := tree.read(tree.root, -1)
	if err != nil {
		return
	}
	if b.level() == 1 {
		i := b.count() - 1
		for i >= 0 && b.nid(i) > nid {
			i--
		}
		if i < 0 {
			err = fmt.Errorf("subnode(%v): %w", nid, ErrNodeNotFound)
			return
		}
		if b, err = tree.read(pst.BlockID(b.id(i, 1)), 0); err != nil {
			return
		}
	}
	for i := range b.count() {
		if b.nid(i) == nid {
			entry = b.entry(i)
			return
		}
	}
	err = fmt.Errorf("subnode(%v): %w", nid, ErrNodeNotFound)
	return
}

// All returns an iterator over every entry in stored order. Iteration stops
// after the first error.
func (tree *Tree) All() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if tree.root == 0 {
			return
		}
		b, err := tree.read(tree.root, -1)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		if b.level() == 0 {
			yieldLeaf(b, yield)
			return
		}
		for i := range b.count() {
			leaf, err := tree.read(pst.BlockID(b.id(i, 1)), 0)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yieldLeaf(leaf, yield) {
				return
			}
		}
	}
}

func yieldLeaf(leaf block, yield func(Entry, error) bool) bool {
	for i := range leaf.count() {
		if !yield(leaf.entry(i), nil) {
			return false
		}
	}
	return true
}
