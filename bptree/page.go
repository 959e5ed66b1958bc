package bptree

import (
	"encoding/binary"
	"fmt"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/page"
)

// Page is a BTPAGE: a node or block BTree page.
//
// Unicode body: rgentries[488], cEnt, cEntMax, cbEnt, cLevel, dwPadding.
// ANSI body: rgentries[496], cEnt, cEntMax, cbEnt, cLevel.
// Level 0 pages hold leaf entries; higher levels hold BTENTRY{btkey, BREF}.
type Page struct {
	page.Page
	entries []byte
	count   uint16
	size    uint16
	level   uint8
}

// EntriesSize returns the size of the rgentries area.
func EntriesSize(format pst.Format) int {
	if format == pst.ANSI {
		return 496
	}
	return 488
}

// EntrySize returns cbEnt for pages of typ at level.
func EntrySize(format pst.Format, typ page.Type, level uint8) int {
	ansi := format == pst.ANSI
	switch {
	case level > 0 && ansi:
		return 12
	case level > 0:
		return 24
	case typ == page.TypeBBT && ansi:
		return 12
	case typ == page.TypeBBT:
		return 24
	case ansi:
		return 16
	default:
		return 32
	}
}

// Decode validates the BTPAGE layout of p.
func Decode(p page.Page) (btpage Page, err error) {
	format := p.Format()
	body := p.Body()
	n := EntriesSize(format)
	count, max, size, level := body[n], body[n+1], body[n+2], body[n+3]

	if want := EntrySize(format, p.Type(), level); int(size) != want {
		err = fmt.Errorf("page(%#x) level %d entry size %d, expected %d: %w", p.Offset(), level, size, want, ErrIndexCorrupt)
		return
	}
	if count > max || int(count)*int(size) > n {
		err = fmt.Errorf("page(%#x) holds %d/%d entries of %d bytes: %w", p.Offset(), count, max, size, ErrIndexCorrupt)
		return
	}

	btpage = Page{
		Page:    p,
		entries: body[:int(count)*int(size)],
		count:   uint16(count),
		size:    uint16(size),
		level:   level,
	}
	for i := uint16(1); i < btpage.count; i++ {
		if btpage.Key(i-1) >= btpage.Key(i) {
			err = fmt.Errorf("page(%#x) key %#x at %d not above %#x: %w", p.Offset(), btpage.Key(i), i, btpage.Key(i-1), ErrIndexCorrupt)
			btpage = Page{}
			return
		}
	}
	return
}

// Count returns cEnt.
func (btpage Page) Count() uint16 {
	return btpage.count
}

// Level returns cLevel.
func (btpage Page) Level() uint8 {
	return btpage.level
}

// Entry returns the raw entry at index.
func (btpage Page) Entry(index uint16) []byte {
	beg := int(index) * int(btpage.size)
	return btpage.entries[beg : beg+int(btpage.size)]
}

// Key returns the key of the entry at index. Block keys have bit 0 masked.
func (btpage Page) Key(index uint16) uint64 {
	entry := btpage.Entry(index)
	var key uint64
	if btpage.Format() == pst.ANSI {
		key = uint64(binary.LittleEndian.Uint32(entry))
	} else {
		key = binary.LittleEndian.Uint64(entry)
	}
	if btpage.Type() == page.TypeBBT {
		key &^= 1
	}
	return key
}

// Child returns the BREF of the BTENTRY at index.
// Only call this method on pages above level 0.
func (btpage Page) Child(index uint16) pst.BlockRef {
	return decodeRef(btpage.Format(), btpage.Entry(index)[btpage.Format().IDSize():])
}

func decodeRef(format pst.Format, buf []byte) pst.BlockRef {
	if format == pst.ANSI {
		return pst.BlockRef{
			ID:     pst.BlockID(binary.LittleEndian.Uint32(buf)),
			Offset: uint64(binary.LittleEndian.Uint32(buf[4:])),
		}
	}
	return pst.BlockRef{
		ID:     pst.BlockID(binary.LittleEndian.Uint64(buf)),
		Offset: binary.LittleEndian.Uint64(buf[8:]),
	}
}

// search returns the first index for which f is not positive.
func search(n uint16, f func(uint16) int) uint16 {
	var i, j uint16 = 0, n
	for i < j {
		h := (i + j) >> 1
		if f(h) > 0 {
			i = h + 1
		} else {
			j = h
		}
	}
	return i
}

func find(n uint16, f func(uint16) int) (uint16, bool) {
	i := search(n, f)
	return i, i < n && f(i) == 0
}
