// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package bptree searches the node and block BTrees of a PST file.
//
// Both trees share one page layout and one descent: branch pages route a key
// to the last child whose key is not above it, and leaf pages hold the
// records. A descent may never go deeper than the root level, and every child
// must sit exactly one level below its parent, so a corrupt or cyclic page
// graph fails with ErrIndexCorrupt instead of looping.
package bptree

import (
	"fmt"
	"iter"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/page"
)

// Index is a read-only BTree whose leaves hold records of type R.
// It keeps no cursor and is safe for concurrent use.
type Index[R Record] struct {
	pages    *page.Allocator
	typ      page.Type
	root     pst.BlockRef
	maxLevel int
	decode   func(pst.Format, []byte) R
}

type (
	NodeIndex  = Index[NodeEntry]
	BlockIndex = Index[BlockEntry]
)

// NewNodeIndex returns the node BTree rooted at root. maxDepth bounds the
// number of levels, see header.Header.MaxDepth.
func NewNodeIndex(pages *page.Allocator, root pst.BlockRef, maxDepth int) *NodeIndex {
	return &NodeIndex{
		pages:    pages,
		typ:      page.TypeNBT,
		root:     root,
		maxLevel: maxDepth - 1,
		decode:   decodeNodeEntry,
	}
}

// NewBlockIndex returns the block BTree rooted at root.
func NewBlockIndex(pages *page.Allocator, root pst.BlockRef, maxDepth int) *BlockIndex {
	return &BlockIndex{
		pages:    pages,
		typ:      page.TypeBBT,
		root:     root,
		maxLevel: maxDepth - 1,
		decode:   decodeBlockEntry,
	}
}

// Root returns the BREF of the root page.
func (index *Index[R]) Root() pst.BlockRef {
	return index.root
}

// Level returns the level of the root page; leaves are level 0.
func (index *Index[R]) Level() (int, error) {
	root, err := index.readPage(index.root, -1)
	if err != nil {
		return 0, err
	}
	return int(root.Level()), nil
}

// readPage reads the page ref points to. parent is the level of the page
// holding ref, or -1 for the root.
func (index *Index[R]) readPage(ref pst.BlockRef, parent int) (btpage Page, err error) {
	p, err := index.pages.ReadPageType(int64(ref.Offset), index.typ)
	if err != nil {
		err = fmt.Errorf("read %v page(%v) failed: %w", index.typ, ref, err)
		return
	}
	if id := p.ID(); id != ref.ID {
		err = fmt.Errorf("page(%#x) has id %v, referenced as %v: %w", ref.Offset, id, ref.ID, ErrIndexCorrupt)
		return
	}
	if btpage, err = Decode(p); err != nil {
		return
	}
	level := int(btpage.Level())
	switch {
	case parent < 0 && level > index.maxLevel:
		err = fmt.Errorf("%v root level %d exceeds %d: %w", index.typ, level, index.maxLevel, ErrIndexCorrupt)
	case parent >= 0 && level != parent-1:
		err = fmt.Errorf("page(%#x) level %d below level %d: %w", ref.Offset, level, parent, ErrIndexCorrupt)
	}
	if err != nil {
		btpage = Page{}
	}
	return
}

// Find returns the record with key. Block keys are looked up with bit 0
// masked. It returns ErrNodeNotFound when no record matches.
func (index *Index[R]) Find(key uint64) (record R, err error) {
	if index.typ == page.TypeBBT {
		key &^= 1
	}
	ref, parent := index.root, -1
	for {
		var btpage Page
		if btpage, err = index.readPage(ref, parent); err != nil {
			return
		}
		count := btpage.Count()
		if btpage.Level() == 0 {
			i, ok := find(count, func(i uint16) int { return compare(key, btpage.Key(i)) })
			if !ok {
				err = fmt.Errorf("%v key %#x: %w", index.typ, key, ErrNodeNotFound)
				return
			}
			record = index.decode(btpage.Format(), btpage.Entry(i))
			return
		}

		i := search(count, func(i uint16) int {
			if btpage.Key(i) <= key {
				return 1
			}
			return -1
		})
		if i == 0 {
			err = fmt.Errorf("%v key %#x: %w", index.typ, key, ErrNodeNotFound)
			return
		}
		ref, parent = btpage.Child(i-1), int(btpage.Level())
	}
}

// All returns an iterator over every record in key order. Iteration stops
// after the first error.
func (index *Index[R]) All() iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		index.walk(index.root, -1, yield)
	}
}

func (index *Index[R]) walk(ref pst.BlockRef, parent int, yield func(R, error) bool) bool {
	btpage, err := index.readPage(ref, parent)
	if err != nil {
		var zero R
		yield(zero, err)
		return false
	}
	format := btpage.Format()
	for i := range btpage.Count() {
		if btpage.Level() == 0 {
			if !yield(index.decode(format, btpage.Entry(i)), nil) {
				return false
			}
			continue
		}
		if !index.walk(btpage.Child(i), int(btpage.Level()), yield) {
			return false
		}
	}
	return true
}

func compare(x, y uint64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
