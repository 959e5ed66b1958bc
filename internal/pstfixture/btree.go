package pstfixture

import (
	"encoding/binary"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/header"
)

// Page types written by the fixture.
const (
	TypeBBT byte = 0x80
	TypeNBT byte = 0x81
)

type leaf struct {
	key  uint64
	data []byte
	ref  pst.BlockRef // page holding the entries, for parents
}

// EntrySize returns cbEnt for BTree pages of typ at level.
func EntrySize(format pst.Format, typ byte, level int) int {
	switch {
	case format == pst.ANSI && level > 0:
		return 12
	case format == pst.ANSI && typ == TypeBBT:
		return 12
	case format == pst.ANSI:
		return 16
	case level > 0:
		return 24
	case typ == TypeBBT:
		return 24
	default:
		return 32
	}
}

// EntriesSize returns the size of the rgentries area of a BTree page.
func EntriesSize(format pst.Format) int {
	if format == pst.ANSI {
		return 496
	}
	return 488
}

func (b *Builder) capacity(typ byte, level int) int {
	max := EntriesSize(b.Format) / EntrySize(b.Format, typ, level)
	limit := b.LeafCapacity
	if level > 0 {
		limit = b.BranchCapacity
	}
	if limit > 0 && limit < max {
		return limit
	}
	return max
}

func (b *Builder) writeBTree(file []byte, offset int64, typ byte, entries []leaf) ([]byte, int64, pst.BlockRef, int) {
	level := 0
	for {
		capacity := b.capacity(typ, level)
		var parents []leaf
		beg := 0
		for {
			end := min(beg+capacity, len(entries))
			items := make([][]byte, 0, end-beg)
			for _, entry := range entries[beg:end] {
				items = append(items, entry.data)
			}
			id := b.newPageID()
			page := EncodeBTPage(b.Format, typ, level, items, offset, id)
			ref := pst.BlockRef{ID: id, Offset: uint64(offset)}
			b.offsets[id] = offset
			b.pages = append(b.pages, ref)
			file = append(file, page...)
			offset += int64(len(page))

			var key uint64
			if beg < len(entries) {
				key = entries[beg].key
			}
			parents = append(parents, leaf{key: key, data: EncodeBTEntry(b.Format, key, ref), ref: ref})
			beg = end
			if beg >= len(entries) {
				break
			}
		}
		if len(parents) == 1 {
			return file, offset, parents[0].ref, level
		}
		entries = parents
		level++
	}
}

// EncodeBTEntry encodes an intermediate BTENTRY.
func EncodeBTEntry(format pst.Format, key uint64, ref pst.BlockRef) []byte {
	if format == pst.ANSI {
		buf := make([]byte, 12)
		binary.LittleEndian.PutUint32(buf, uint32(key))
		binary.LittleEndian.PutUint32(buf[4:], uint32(ref.ID))
		binary.LittleEndian.PutUint32(buf[8:], uint32(ref.Offset))
		return buf
	}
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf, key)
	binary.LittleEndian.PutUint64(buf[8:], uint64(ref.ID))
	binary.LittleEndian.PutUint64(buf[16:], ref.Offset)
	return buf
}

func (b *Builder) encodeBBTEntry(id pst.BlockID, offset int64, size int) []byte {
	if b.Format == pst.ANSI {
		buf := make([]byte, 12)
		binary.LittleEndian.PutUint32(buf, uint32(id))
		binary.LittleEndian.PutUint32(buf[4:], uint32(offset))
		binary.LittleEndian.PutUint16(buf[8:], uint16(size))
		binary.LittleEndian.PutUint16(buf[10:], 2)
		return buf
	}
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf, uint64(id))
	binary.LittleEndian.PutUint64(buf[8:], uint64(offset))
	binary.LittleEndian.PutUint16(buf[16:], uint16(size))
	binary.LittleEndian.PutUint16(buf[18:], 2)
	return buf
}

func (b *Builder) encodeNBTEntry(node Node) []byte {
	return EncodeNBTEntry(b.Format, node)
}

// EncodeNBTEntry encodes a leaf NBTENTRY.
func EncodeNBTEntry(format pst.Format, node Node) []byte {
	if format == pst.ANSI {
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint32(buf, uint32(node.ID))
		binary.LittleEndian.PutUint32(buf[4:], uint32(node.Data))
		binary.LittleEndian.PutUint32(buf[8:], uint32(node.Sub))
		binary.LittleEndian.PutUint32(buf[12:], uint32(node.Parent))
		return buf
	}
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint64(buf, uint64(node.ID))
	binary.LittleEndian.PutUint64(buf[8:], uint64(node.Data))
	binary.LittleEndian.PutUint64(buf[16:], uint64(node.Sub))
	binary.LittleEndian.PutUint32(buf[24:], uint32(node.Parent))
	return buf
}

// EncodeBTPage encodes a BTPAGE of typ at level holding entries, with a
// trailer valid for a page stored at offset under id.
func EncodeBTPage(format pst.Format, typ byte, level int, entries [][]byte, offset int64, id pst.BlockID) []byte {
	page := make([]byte, pst.PageSize)
	size := EntrySize(format, typ, level)
	n := EntriesSize(format)
	for i, entry := range entries {
		copy(page[i*size:], entry)
	}
	page[n] = byte(len(entries))
	page[n+1] = byte(n / size)
	page[n+2] = byte(size)
	page[n+3] = byte(level)
	SealPage(format, page, typ, offset, id)
	return page
}

// SealPage writes the trailer of a page stored at offset under id.
func SealPage(format pst.Format, page []byte, typ byte, offset int64, id pst.BlockID) {
	body := 496
	if format == pst.ANSI {
		body = 500
	}
	t := page[body:]
	t[0], t[1] = typ, typ
	sig := uint16(0)
	if typ == TypeBBT || typ == TypeNBT || typ == TypeDList {
		sig = pst.Signature(uint64(offset), id)
	}
	binary.LittleEndian.PutUint16(t[2:], sig)
	if format == pst.ANSI {
		binary.LittleEndian.PutUint32(t[4:], uint32(id))
		binary.LittleEndian.PutUint32(t[8:], pst.Checksum(page[:body]))
		return
	}
	binary.LittleEndian.PutUint32(t[4:], pst.Checksum(page[:body]))
	binary.LittleEndian.PutUint64(t[8:], uint64(id))
}

func (b *Builder) encodeHeader(eof uint64) []byte {
	buf := make([]byte, header.UnicodeSize)
	binary.LittleEndian.PutUint32(buf, header.Magic)
	binary.LittleEndian.PutUint16(buf[8:], header.MagicClient)
	binary.LittleEndian.PutUint16(buf[12:], 19)
	buf[14], buf[15] = 0x01, 0x01

	if b.Format == pst.ANSI {
		binary.LittleEndian.PutUint16(buf[10:], 15)
		binary.LittleEndian.PutUint32(buf[24:], uint32(b.nextBlock+1)<<2)
		binary.LittleEndian.PutUint32(buf[28:], uint32(b.nextPage+1)<<2)
		binary.LittleEndian.PutUint32(buf[32:], 1)
		root := buf[164:204]
		binary.LittleEndian.PutUint32(root[4:], uint32(eof))
		binary.LittleEndian.PutUint32(root[20:], uint32(b.nbtRoot.ID))
		binary.LittleEndian.PutUint32(root[24:], uint32(b.nbtRoot.Offset))
		binary.LittleEndian.PutUint32(root[28:], uint32(b.bbtRoot.ID))
		binary.LittleEndian.PutUint32(root[32:], uint32(b.bbtRoot.Offset))
		root[36] = 0x02
		buf[460] = 0x80
		buf[461] = byte(b.Crypt)
		binary.LittleEndian.PutUint32(buf[4:], pst.Checksum(buf[8:8+471]))
		return buf[:header.ANSISize]
	}

	binary.LittleEndian.PutUint16(buf[10:], header.VersionUnicode)
	binary.LittleEndian.PutUint64(buf[32:], (b.nextPage+1)<<2)
	binary.LittleEndian.PutUint32(buf[40:], 1)
	root := buf[180:252]
	binary.LittleEndian.PutUint64(root[4:], eof)
	binary.LittleEndian.PutUint64(root[36:], uint64(b.nbtRoot.ID))
	binary.LittleEndian.PutUint64(root[44:], b.nbtRoot.Offset)
	binary.LittleEndian.PutUint64(root[52:], uint64(b.bbtRoot.ID))
	binary.LittleEndian.PutUint64(root[60:], b.bbtRoot.Offset)
	root[68] = 0x02
	buf[512] = 0x80
	buf[513] = byte(b.Crypt)
	binary.LittleEndian.PutUint64(buf[516:], (b.nextBlock+1)<<2)
	binary.LittleEndian.PutUint32(buf[4:], pst.Checksum(buf[8:8+471]))
	binary.LittleEndian.PutUint32(buf[524:], pst.Checksum(buf[8:524]))
	return buf
}
