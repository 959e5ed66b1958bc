// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package namedprop resolves named properties through the name-to-id map
// node: (property set GUID, name or numeric id) pairs to the property ids
// 0x8000 and above that carry them, and back.
package namedprop

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/ltp"
)

var (
	ErrNamedPropertyNotFound = pst.ErrNamedPropertyNotFound
	ErrCorruptHeap           = pst.ErrCorruptHeap
)

// Property ids of the map's property context.
const (
	propBucketCount = 0x0001
	propGUIDStream  = 0x0002
	propEntryStream = 0x0003
	propNameStream  = 0x0004
	propBucketBase  = 0x1000
)

// FirstID is the lowest property id a named property is mapped to.
const FirstID = 0x8000

const entrySize = 8

// entry is a NAMEID record.
type entry struct {
	key   uint32 // numeric id, string offset or, in buckets, the string CRC
	kind  uint16 // wGuid<<1 | N
	index uint16
}

func (e entry) guid() uint16 { return e.kind >> 1 }
func (e entry) named() bool  { return e.kind&1 != 0 }
func (e entry) id() uint16   { return FirstID + e.index }
func decodeEntry(b []byte) entry {
	return entry{
		key:   binary.LittleEndian.Uint32(b),
		kind:  binary.LittleEndian.Uint16(b[4:]),
		index: binary.LittleEndian.Uint16(b[6:]),
	}
}

// Map is the name-to-id map. It is read-only and safe for concurrent use.
type Map struct {
	pc      *ltp.PropertyContext
	buckets uint32
	guids   []uuid.UUID
	entries []entry
	names   []byte
	byIndex map[uint16]int
}

// Open decodes the name-to-id map stored in node.
func Open(node ltp.Node, opts ...ltp.Option) (*Map, error) {
	pc, err := ltp.OpenPropertyContext(node, opts...)
	if err != nil {
		return nil, err
	}
	return Load(pc)
}

// Load decodes the name-to-id map from its property context.
func Load(pc *ltp.PropertyContext) (m *Map, err error) {
	m = &Map{pc: pc, byIndex: map[uint16]int{}}

	v, err := pc.Get(propBucketCount)
	if err != nil {
		return nil, err
	}
	count, ok := v.Int()
	if !ok || count < 0 {
		return nil, fmt.Errorf("name-to-id map bucket count %v: %w", v, ErrCorruptHeap)
	}
	m.buckets = uint32(count)

	guids, err := m.stream(propGUIDStream)
	if err != nil {
		return
	}
	if len(guids)%16 != 0 {
		return nil, fmt.Errorf("name-to-id map GUID stream of %d bytes: %w", len(guids), ErrCorruptHeap)
	}
	for b := guids; len(b) > 0; b = b[16:] {
		m.guids = append(m.guids, ltp.DecodeGUID(b))
	}

	entries, err := m.stream(propEntryStream)
	if err != nil {
		return
	}
	if len(entries)%entrySize != 0 {
		return nil, fmt.Errorf("name-to-id map entry stream of %d bytes: %w", len(entries), ErrCorruptHeap)
	}
	for b := entries; len(b) > 0; b = b[entrySize:] {
		e := decodeEntry(b)
		if _, dup := m.byIndex[e.index]; dup || uint32(e.index)+FirstID > 0xFFFF {
			return nil, fmt.Errorf("name-to-id map entry index %d: %w", e.index, ErrCorruptHeap)
		}
		m.byIndex[e.index] = len(m.entries)
		m.entries = append(m.entries, e)
	}

	if m.names, err = m.stream(propNameStream); err != nil {
		return
	}
	return
}

// stream reads a binary stream; a missing stream is empty.
func (m *Map) stream(id uint16) ([]byte, error) {
	v, err := m.pc.Get(id)
	if err != nil {
		if errors.Is(err, ltp.ErrPropertyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	b, ok := v.Bytes()
	if !ok {
		return nil, fmt.Errorf("name-to-id map property %v: %w", v.Tag, ErrCorruptHeap)
	}
	return b, nil
}

// Len returns the number of named properties.
func (m *Map) Len() int {
	return len(m.entries)
}

// guidIndex returns wGuid of guid.
func (m *Map) guidIndex(guid uuid.UUID) (uint16, bool) {
	switch guid {
	case PSMAPI:
		return 1, true
	case PSPublicStrings:
		return 2, true
	}
	for i, g := range m.guids {
		if g == guid {
			return uint16(3 + i), true
		}
	}
	return 0, false
}

func (m *Map) guid(w uint16) (uuid.UUID, error) {
	switch w {
	case 0:
		return uuid.Nil, nil
	case 1:
		return PSMAPI, nil
	case 2:
		return PSPublicStrings, nil
	}
	if i := int(w) - 3; i < len(m.guids) {
		return m.guids[i], nil
	}
	return uuid.Nil, fmt.Errorf("name-to-id map GUID index %d of %d: %w", w, len(m.guids)+3, ErrCorruptHeap)
}

// name reads the string at off of the string stream.
func (m *Map) name(off uint32) (string, error) {
	if uint64(off)+4 > uint64(len(m.names)) {
		return "", fmt.Errorf("name-to-id map string at %d: %w", off, ErrCorruptHeap)
	}
	size := binary.LittleEndian.Uint32(m.names[off:])
	end := uint64(off) + 4 + uint64(size)
	if end > uint64(len(m.names)) {
		return "", fmt.Errorf("name-to-id map string at %d of %d bytes: %w", off, size, ErrCorruptHeap)
	}
	return ltp.DecodeUnicode(m.names[off+4 : end])
}

func (m *Map) property(e entry) (prop Property, err error) {
	if prop.GUID, err = m.guid(e.guid()); err != nil {
		return
	}
	prop.ID = e.id()
	if !e.named() {
		prop.Name = ByID(e.key)
		return
	}
	text, err := m.name(e.key)
	if err != nil {
		return
	}
	prop.Name = ByName(text)
	return
}

// Resolve returns the property id guid and name are mapped to.
func (m *Map) Resolve(guid uuid.UUID, name Name) (id uint16, err error) {
	notFound := fmt.Errorf("named property {%v %v}: %w", guid, name, ErrNamedPropertyNotFound)
	w, ok := m.guidIndex(guid)
	if !ok {
		return 0, notFound
	}
	kind, key := w<<1, name.ID
	if name.Kind == KindString {
		kind |= 1
		key = pst.Checksum(ltp.EncodeUnicode(name.Text))
	}

	// bucket entries carry the name CRC in place of the string offset
	matches := func(e entry) (bool, error) {
		if e.kind != kind {
			return false, nil
		}
		if name.Kind == KindID {
			return e.key == key, nil
		}
		i, ok := m.byIndex[e.index]
		if !ok {
			return false, fmt.Errorf("name-to-id map bucket entry %d has no entry: %w", e.index, ErrCorruptHeap)
		}
		text, err := m.name(m.entries[i].key)
		return err == nil && text == name.Text, err
	}

	if m.buckets == 0 {
		for _, e := range m.entries {
			if ok, err = matches(e); err != nil {
				return
			}
			if ok {
				return e.id(), nil
			}
		}
		return 0, notFound
	}

	bucket, err := m.stream(propBucketBase + uint16((key^uint32(kind))%m.buckets))
	if err != nil {
		return
	}
	if len(bucket)%entrySize != 0 {
		return 0, fmt.Errorf("name-to-id map bucket of %d bytes: %w", len(bucket), ErrCorruptHeap)
	}
	for b := bucket; len(b) > 0; b = b[entrySize:] {
		e := decodeEntry(b)
		if e.key != key {
			continue
		}
		if ok, err = matches(e); err != nil {
			return
		}
		if ok {
			return e.id(), nil
		}
	}
	return 0, notFound
}

// ReverseResolve returns the named property mapped to id.
func (m *Map) ReverseResolve(id uint16) (prop Property, err error) {
	var i int
	var ok bool
	if id >= FirstID {
		i, ok = m.byIndex[id-FirstID]
	}
	if !ok {
		err = fmt.Errorf("property id %#04x: %w", id, ErrNamedPropertyNotFound)
		return
	}
	return m.property(m.entries[i])
}

// All returns an iterator over the named properties in entry stream order.
func (m *Map) All() iter.Seq2[Property, error] {
	return func(yield func(Property, error) bool) {
		for _, e := range m.entries {
			prop, err := m.property(e)
			if !yield(prop, err) || err != nil {
				return
			}
		}
	}
}
