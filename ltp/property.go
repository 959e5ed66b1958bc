// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package ltp

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/dacapoday/pst/heap"
)

// record is a decoded PC BTH record.
type record struct {
	tag  Tag
	hnid uint32 // the value itself for inline types
}

func decodeRecord(key, data []byte) record {
	return record{
		tag:  MakeTag(binary.LittleEndian.Uint16(key), Type(binary.LittleEndian.Uint16(data))),
		hnid: binary.LittleEndian.Uint32(data[2:]),
	}
}

// PropertyContext is a decoded property context. It holds no cursor and
// every lookup starts from the root, so it is safe for concurrent use.
type PropertyContext struct {
	node Node
	heap *heap.Heap
	tree *heap.Tree
	options
}

// OpenPropertyContext decodes the property context stored in node.
func OpenPropertyContext(node Node, opts ...Option) (pc *PropertyContext, err error) {
	blocks, err := node.Blocks()
	if err != nil {
		return
	}
	hn, err := heap.Load(blocks)
	if err != nil {
		err = fmt.Errorf("node(%v): %w", node.ID(), err)
		return
	}
	if sig := hn.ClientSignature(); sig != heap.ClientProperty {
		err = fmt.Errorf("node(%v) heap client %#x is not a property context: %w", node.ID(), sig, ErrCorruptHeap)
		return
	}
	tree, err := heap.OpenTree(hn, hn.UserRoot())
	if err != nil {
		err = fmt.Errorf("node(%v): %w", node.ID(), err)
		return
	}
	if tree.KeySize() != 2 || tree.DataSize() != 6 {
		err = fmt.Errorf("node(%v) property BTH has %d/%d byte records: %w", node.ID(), tree.KeySize(), tree.DataSize(), ErrCorruptHeap)
		return
	}
	pc = &PropertyContext{node: node, heap: hn, tree: tree, options: newOptions(opts)}
	return
}

// Heap returns the underlying heap.
func (pc *PropertyContext) Heap() *heap.Heap {
	return pc.heap
}

func (pc *PropertyContext) find(id uint16) (r record, err error) {
	data, ok, err := pc.tree.Find(binary.LittleEndian.AppendUint16(nil, id))
	if err != nil {
		return
	}
	if !ok {
		err = fmt.Errorf("node(%v) property %#04x: %w", pc.node.ID(), id, ErrPropertyNotFound)
		return
	}
	r = decodeRecord(binary.LittleEndian.AppendUint16(nil, id), data)
	return
}

// bytes returns the stored bytes of r.
func (pc *PropertyContext) bytes(r record) (b []byte, err error) {
	if r.tag.Type().inline() {
		b = binary.LittleEndian.AppendUint32(nil, r.hnid)[:r.tag.Type().Size()]
		return
	}
	b, err = hnidBytes(pc.node, pc.heap, r.hnid)
	if err != nil {
		err = fmt.Errorf("node(%v) property %v: %w", pc.node.ID(), r.tag, err)
	}
	return
}

func (pc *PropertyContext) value(r record) (v Value, err error) {
	b, err := pc.bytes(r)
	if err != nil {
		return
	}
	x, err := decode(r.tag.Type(), b, pc.codepage)
	if err != nil {
		err = fmt.Errorf("node(%v) property %v: %w", pc.node.ID(), r.tag, err)
		return
	}
	v = Value{Tag: r.tag, Value: x}
	return
}

// Get returns the property with id.
func (pc *PropertyContext) Get(id uint16) (v Value, err error) {
	r, err := pc.find(id)
	if err != nil {
		return
	}
	return pc.value(r)
}

// Lookup returns the property tag refers to; a stored value of another type
// is reported as ErrPropertyNotFound.
func (pc *PropertyContext) Lookup(tag Tag) (v Value, err error) {
	r, err := pc.find(tag.ID())
	if err != nil {
		return
	}
	if r.tag != tag {
		err = fmt.Errorf("node(%v) property %v stored as %v: %w", pc.node.ID(), tag, r.tag.Type(), ErrPropertyNotFound)
		return
	}
	return pc.value(r)
}

// Raw returns the tag and the stored bytes of the property with id, without
// decoding them.
func (pc *PropertyContext) Raw(id uint16) (tag Tag, b []byte, err error) {
	r, err := pc.find(id)
	if err != nil {
		return
	}
	tag = r.tag
	b, err = pc.bytes(r)
	return
}

// Tags returns the tags of every property in ascending id order.
func (pc *PropertyContext) Tags() (tags []Tag, err error) {
	for rec, err := range pc.tree.All() {
		if err != nil {
			return nil, err
		}
		tags = append(tags, decodeRecord(rec.Key, rec.Data).tag)
	}
	return
}

// All returns an iterator over every property in ascending id order. Each
// call starts a new iteration. Iteration stops after the first error.
func (pc *PropertyContext) All() iter.Seq2[Value, error] {
	return func(yield func(Value, error) bool) {
		for rec, err := range pc.tree.All() {
			if err != nil {
				yield(Value{}, err)
				return
			}
			v, err := pc.value(decodeRecord(rec.Key, rec.Data))
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}
