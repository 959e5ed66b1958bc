package overflow

import (
	"encoding/binary"
	"fmt"

	"github.com/dacapoday/pst"
)

// Page is the payload of an XBLOCK (level 1) or XXBLOCK (level 2):
// btype 0x01, cLevel, cEnt, lcbTotal, then cEnt BlockIDs.
type Page []byte

const HeadSize = 8

// TypeData is the btype of data tree pages.
const TypeData = 0x01

// Type returns btype.
func (page Page) Type() uint8 {
	return page[0]
}

// Level returns cLevel.
func (page Page) Level() uint8 {
	return page[1]
}

// Count returns cEnt.
func (page Page) Count() uint16 {
	return binary.LittleEndian.Uint16(page[2:])
}

// Total returns lcbTotal, the byte count of the data the page describes.
func (page Page) Total() uint32 {
	return binary.LittleEndian.Uint32(page[4:])
}

// ID returns the BlockID at index.
func (page Page) ID(format pst.Format, index uint16) pst.BlockID {
	if format == pst.ANSI {
		return pst.BlockID(binary.LittleEndian.Uint32(page[HeadSize+4*int(index):]))
	}
	return pst.BlockID(binary.LittleEndian.Uint64(page[HeadSize+8*int(index):]))
}

func (page Page) validate(format pst.Format, bid pst.BlockID, level uint8) error {
	if len(page) < HeadSize {
		return fmt.Errorf("%w: data tree block(%v) of %d bytes", ErrCorruptBlock, bid, len(page))
	}
	if typ := page.Type(); typ != TypeData {
		return fmt.Errorf("%w: data tree block(%v) has btype %#x", ErrCorruptBlock, bid, typ)
	}
	if page.Level() != level {
		return fmt.Errorf("%w: data tree block(%v) has level %d, expected %d", ErrCorruptBlock, bid, page.Level(), level)
	}
	if need := HeadSize + int(page.Count())*format.IDSize(); need > len(page) {
		return fmt.Errorf("%w: data tree block(%v) lists %d ids in %d bytes", ErrCorruptBlock, bid, page.Count(), len(page))
	}
	return nil
}
