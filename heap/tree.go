// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package heap

import (
	"encoding/binary"
	"fmt"
	"iter"
)

// Record is a BTH leaf record. Both slices are views into the heap.
type Record struct {
	Key  []byte
	Data []byte
}

// Tree is a BTree-on-Heap.
//
// BTHHEADER: bType 0xB5, cbKey, cbEnt, bIdxLevels, hidRoot. Index levels
// hold {key, hid} records; the leaf level holds {key, data}.
type Tree struct {
	heap     *Heap
	keySize  int
	dataSize int
	levels   int
	root     ID
}

// OpenTree decodes the BTHHEADER stored at id.
func OpenTree(heap *Heap, id ID) (tree *Tree, err error) {
	head, err := heap.Item(id)
	if err != nil {
		return
	}
	if len(head) < 8 || head[0] != ClientTree {
		err = fmt.Errorf("%w: %v holds no BTH header", ErrCorruptHeap, id)
		return
	}
	keySize, dataSize := int(head[1]), int(head[2])
	switch keySize {
	case 2, 4, 8, 16:
	default:
		err = fmt.Errorf("%w: BTH key size %d", ErrCorruptHeap, keySize)
		return
	}
	if dataSize < 1 || dataSize > 32 {
		err = fmt.Errorf("%w: BTH data size %d", ErrCorruptHeap, dataSize)
		return
	}
	tree = &Tree{
		heap:     heap,
		keySize:  keySize,
		dataSize: dataSize,
		levels:   int(head[3]),
		root:     ID(binary.LittleEndian.Uint32(head[4:])),
	}
	return
}

// KeySize returns cbKey.
func (tree *Tree) KeySize() int {
	return tree.keySize
}

// DataSize returns cbEnt.
func (tree *Tree) DataSize() int {
	return tree.dataSize
}

// Levels returns bIdxLevels.
func (tree *Tree) Levels() int {
	return tree.levels
}

// records returns the item id refers to, split into records of size.
func (tree *Tree) records(id ID, level int) (item []byte, size int, err error) {
	if item, err = tree.heap.Item(id); err != nil {
		return
	}
	size = tree.keySize + tree.dataSize
	if level > 0 {
		size = tree.keySize + 4
	}
	if len(item)%size != 0 {
		err = fmt.Errorf("%w: BTH level %d item %v of %d bytes, record size %d", ErrCorruptHeap, level, id, len(item), size)
	}
	return
}

// compareKey compares little-endian unsigned keys of equal width.
func compareKey(x, y []byte) int {
	for i := len(x) - 1; i >= 0; i-- {
		switch {
		case x[i] < y[i]:
			return -1
		case x[i] > y[i]:
			return 1
		}
	}
	return 0
}

// Find returns the data stored under key, which must be KeySize bytes.
// ok is false when no record matches.
func (tree *Tree) Find(key []byte) (data []byte, ok bool, err error) {
	if len(key) != tree.keySize {
		err = fmt.Errorf("%w: BTH key of %d bytes, expected %d", ErrCorruptHeap, len(key), tree.keySize)
		return
	}
	if tree.root == 0 {
		return
	}
	id := tree.root
	for level := tree.levels; ; level-- {
		var item []byte
		var size int
		if item, size, err = tree.records(id, level); err != nil {
			return
		}
		n := len(item) / size
		if level == 0 {
			for i := range n {
				record := item[i*size : (i+1)*size]
				if compareKey(record[:tree.keySize], key) == 0 {
					data, ok = record[tree.keySize:], true
					return
				}
			}
			return
		}

		next := -1
		for i := range n {
			if compareKey(item[i*size:i*size+tree.keySize], key) > 0 {
				break
			}
			next = i
		}
		if next < 0 {
			return
		}
		id = ID(binary.LittleEndian.Uint32(item[next*size+tree.keySize:]))
	}
}

// All returns an iterator over every leaf record in stored order.
// Iteration stops after the first error.
func (tree *Tree) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if tree.root != 0 {
			tree.walk(tree.root, tree.levels, yield)
		}
	}
}

func (tree *Tree) walk(id ID, level int, yield func(Record, error) bool) bool {
	item, size, err := tree.records(id, level)
	if err != nil {
		yield(Record{}, err)
		return false
	}
	for i := 0; i < len(item); i += size {
		record := item[i : i+size]
		if level > 0 {
			child := ID(binary.LittleEndian.Uint32(record[tree.keySize:]))
			if !tree.walk(child, level-1, yield) {
				return false
			}
			continue
		}
		if !yield(Record{Key: record[:tree.keySize], Data: record[tree.keySize:]}, nil) {
			return false
		}
	}
	return true
}
