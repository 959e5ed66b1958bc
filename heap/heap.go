// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package heap reads the Heap-on-Node (HN) allocator layered over node data,
// and the BTree-on-Heap (BTH) stored in it.
//
// A heap spans the blocks of a node's data tree. Each block starts with a
// header (HNHDR for block 0, HNBITMAPHDR for blocks 8, 136, 264, ... and
// HNPAGEHDR otherwise) whose first field locates the block's page map; the
// page map lists the start offsets of the block's allocations. An allocation
// is addressed by an ID holding the block index and a 1-based slot.
package heap

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/dacapoday/pst"
)

var (
	ErrCorruptHeap         = pst.ErrCorruptHeap
	ErrHeapIndexOutOfRange = pst.ErrHeapIndexOutOfRange
)

// Signature is the bSig of an HNHDR.
const Signature = 0xEC

// Client signatures of the HNHDR.
const (
	ClientTable    = 0x7C // table context
	ClientTree     = 0xB5 // BTree-on-Heap
	ClientProperty = 0xBC // property context
)

// MaxItemSize is the largest allocation a heap holds.
const MaxItemSize = 3580

// ID is a heap id: hidType (5 bits, zero), hidIndex (11 bits, 1-based) and
// hidBlockIndex (16 bits).
type ID uint32

// MakeID returns the id of slot index in block.
func MakeID(block, index int) ID {
	return ID(block<<16 | (index&0x7FF)<<5)
}

// Type returns hidType, zero for heap ids.
func (id ID) Type() pst.NodeType {
	return pst.NodeType(id & 0x1F)
}

// Index returns the 1-based slot.
func (id ID) Index() int {
	return int(id>>5) & 0x7FF
}

// Block returns the block index.
func (id ID) Block() int {
	return int(id >> 16)
}

func (id ID) String() string {
	return fmt.Sprintf("HID(%d:%d)", id.Block(), id.Index())
}

// IsHID reports whether an HNID is a heap id rather than a subnode NodeID.
func IsHID(hnid uint32) bool {
	return hnid&0x1F == 0
}

// HeaderSize returns the size of the header that starts block i.
func HeaderSize(i int) int {
	switch {
	case i == 0:
		return 12
	case i >= 8 && (i-8)%128 == 0:
		return 66
	default:
		return 2
	}
}

type segment struct {
	data    []byte
	offsets []uint16 // rgibAlloc, cAlloc+1 entries
}

// Heap is a decoded Heap-on-Node. Items returned by a Heap are views into
// the node data and must not be modified.
type Heap struct {
	segments []segment
	client   uint8
	userRoot ID
}

// Load decodes the heap spread over the blocks of a node's data tree.
func Load(blocks [][]byte) (heap *Heap, err error) {
	if len(blocks) == 0 {
		err = fmt.Errorf("%w: no blocks", ErrCorruptHeap)
		return
	}
	first := blocks[0]
	if len(first) < HeaderSize(0) {
		err = fmt.Errorf("%w: block 0 of %d bytes", ErrCorruptHeap, len(first))
		return
	}
	if first[2] != Signature {
		err = fmt.Errorf("%w: signature %#x", ErrCorruptHeap, first[2])
		return
	}

	heap = &Heap{
		segments: make([]segment, len(blocks)),
		client:   first[3],
		userRoot: ID(binary.LittleEndian.Uint32(first[4:])),
	}
	for i, data := range blocks {
		if heap.segments[i], err = loadSegment(i, data); err != nil {
			heap = nil
			return
		}
	}
	return
}

func loadSegment(i int, data []byte) (seg segment, err error) {
	head := HeaderSize(i)
	if len(data) < head {
		err = fmt.Errorf("%w: block %d of %d bytes", ErrCorruptHeap, i, len(data))
		return
	}
	pm := int(binary.LittleEndian.Uint16(data))
	if pm < head || pm+4 > len(data) {
		err = fmt.Errorf("%w: block %d page map at %d of %d bytes", ErrCorruptHeap, i, pm, len(data))
		return
	}
	count := int(binary.LittleEndian.Uint16(data[pm:]))
	end := pm + 4 + 2*(count+1)
	if end > len(data) {
		err = fmt.Errorf("%w: block %d page map of %d allocations overruns %d bytes", ErrCorruptHeap, i, count, len(data))
		return
	}
	offsets := make([]uint16, count+1)
	for j := range offsets {
		offsets[j] = binary.LittleEndian.Uint16(data[pm+4+2*j:])
	}
	if int(offsets[0]) < head || int(offsets[count]) > pm || !slices.IsSorted(offsets) {
		err = fmt.Errorf("%w: block %d allocations %v outside [%d, %d]", ErrCorruptHeap, i, offsets, head, pm)
		return
	}
	seg = segment{data: data, offsets: offsets}
	return
}

// ClientSignature returns bClientSig.
func (heap *Heap) ClientSignature() uint8 {
	return heap.client
}

// UserRoot returns hidUserRoot.
func (heap *Heap) UserRoot() ID {
	return heap.userRoot
}

// Segments returns the number of blocks the heap spans.
func (heap *Heap) Segments() int {
	return len(heap.segments)
}

// Allocations returns the number of slots in block i.
func (heap *Heap) Allocations(i int) int {
	if i < 0 || i >= len(heap.segments) {
		return 0
	}
	return len(heap.segments[i].offsets) - 1
}

// FillLevels returns the fill level of every block, 0 (empty) to 15 (full),
// as recorded by HNHDR and HNBITMAPHDR.
func (heap *Heap) FillLevels() []uint8 {
	levels := make([]uint8, len(heap.segments))
	for i := range levels {
		var table []byte
		var j int
		if i < 8 {
			table, j = heap.segments[0].data[8:12], i
		} else {
			k := 8 + (i-8)/128*128
			table, j = heap.segments[k].data[2:66], i-k
		}
		b := table[j/2]
		if j%2 == 0 {
			levels[i] = b & 0x0F
		} else {
			levels[i] = b >> 4
		}
	}
	return levels
}

// Item returns the allocation id refers to.
func (heap *Heap) Item(id ID) (item []byte, err error) {
	if id.Type() != pst.NodeTypeHID {
		err = fmt.Errorf("%w: %#x is not a heap id", ErrCorruptHeap, uint32(id))
		return
	}
	block, index := id.Block(), id.Index()
	if block >= len(heap.segments) {
		err = fmt.Errorf("%v: block beyond %d: %w", id, len(heap.segments), ErrHeapIndexOutOfRange)
		return
	}
	seg := heap.segments[block]
	if index == 0 || index >= len(seg.offsets) {
		err = fmt.Errorf("%v: slot beyond %d: %w", id, len(seg.offsets)-1, ErrHeapIndexOutOfRange)
		return
	}
	item = seg.data[seg.offsets[index-1]:seg.offsets[index]:seg.offsets[index]]
	return
}
