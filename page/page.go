// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package page reads and validates the fixed-size pages of a PST file.
package page

import (
	"encoding/binary"
	"fmt"

	"github.com/dacapoday/pst"
)

// Type is the ptype field of a page trailer.
type Type uint8

const (
	TypeBBT   Type = 0x80 // block BTree page
	TypeNBT   Type = 0x81 // node BTree page
	TypeFMap  Type = 0x82
	TypePMap  Type = 0x83
	TypeAMap  Type = 0x84
	TypeFPMap Type = 0x85
	TypeDList Type = 0x86
)

func (typ Type) String() string {
	switch typ {
	case TypeBBT:
		return "BBT"
	case TypeNBT:
		return "NBT"
	case TypeFMap:
		return "FMap"
	case TypePMap:
		return "PMap"
	case TypeAMap:
		return "AMap"
	case TypeFPMap:
		return "FPMap"
	case TypeDList:
		return "DList"
	default:
		return fmt.Sprintf("Type(%#x)", uint8(typ))
	}
}

// signed reports whether wSig is computed for pages of this type.
func (typ Type) signed() bool {
	return typ == TypeBBT || typ == TypeNBT || typ == TypeDList
}

// Page is a validated, immutable page.
//
// Unicode trailer (16 bytes at 496): ptype, ptypeRepeat, wSig, dwCRC, bid(8).
// ANSI trailer (12 bytes at 500): ptype, ptypeRepeat, wSig, bid(4), dwCRC.
type Page struct {
	data   []byte
	offset int64
	format pst.Format
}

// Make wraps a raw page buffer without validating it.
func Make(data []byte, offset int64, format pst.Format) Page {
	return Page{data: data, offset: offset, format: format}
}

// BodySize returns the number of bytes preceding the trailer.
func BodySize(format pst.Format) int {
	if format == pst.ANSI {
		return pst.PageSize - 12
	}
	return pst.PageSize - 16
}

func (page Page) trailer() []byte {
	return page.data[BodySize(page.format):]
}

// Offset returns the absolute offset the page was read from.
func (page Page) Offset() int64 {
	return page.offset
}

// Format returns the layout variant of the page.
func (page Page) Format() pst.Format {
	return page.format
}

// Body returns the page content preceding the trailer.
func (page Page) Body() []byte {
	return page.data[:BodySize(page.format)]
}

// Type returns ptype.
func (page Page) Type() Type {
	return Type(page.trailer()[0])
}

// Signature returns wSig.
func (page Page) Signature() uint16 {
	return binary.LittleEndian.Uint16(page.trailer()[2:])
}

// CRC returns dwCRC.
func (page Page) CRC() uint32 {
	if page.format == pst.ANSI {
		return binary.LittleEndian.Uint32(page.trailer()[8:])
	}
	return binary.LittleEndian.Uint32(page.trailer()[4:])
}

// ID returns the page BlockID recorded in the trailer.
func (page Page) ID() pst.BlockID {
	if page.format == pst.ANSI {
		return pst.BlockID(binary.LittleEndian.Uint32(page.trailer()[4:]))
	}
	return pst.BlockID(binary.LittleEndian.Uint64(page.trailer()[8:]))
}

func (page Page) validate() error {
	trailer := page.trailer()
	if trailer[0] != trailer[1] {
		return fmt.Errorf("page(%#x) type %#x repeated as %#x: %w", page.offset, trailer[0], trailer[1], ErrCorruptPage)
	}
	if sum, chksum := page.CRC(), pst.Checksum(page.Body()); sum != chksum {
		return fmt.Errorf("page(%#x) checksum %#x, expected %#x: %w", page.offset, sum, chksum, ErrCorruptPage)
	}
	if typ := page.Type(); typ.signed() {
		if sig, want := page.Signature(), pst.Signature(uint64(page.offset), page.ID()); sig != want {
			return fmt.Errorf("page(%#x) signature %#x, expected %#x: %w", page.offset, sig, want, ErrCorruptPage)
		}
	}
	return nil
}
