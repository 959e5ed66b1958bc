// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree

import (
	"encoding/binary"

	"github.com/dacapoday/pst"
)

// Record is a leaf entry of a BTree.
type Record interface {
	NodeEntry | BlockEntry
}

// NodeEntry is a leaf record of the node BTree.
type NodeEntry struct {
	ID     pst.NodeID
	Data   pst.BlockID // data tree root
	Sub    pst.BlockID // subnode tree root, zero for none
	Parent pst.NodeID
}

// BlockEntry is a leaf record of the block BTree.
type BlockEntry struct {
	Ref      pst.BlockRef
	Size     uint16 // cb, the stored payload size
	RefCount uint16
}

func decodeNodeEntry(format pst.Format, entry []byte) NodeEntry {
	if format == pst.ANSI {
		return NodeEntry{
			ID:     pst.NodeID(binary.LittleEndian.Uint32(entry)),
			Data:   pst.BlockID(binary.LittleEndian.Uint32(entry[4:])),
			Sub:    pst.BlockID(binary.LittleEndian.Uint32(entry[8:])),
			Parent: pst.NodeID(binary.LittleEndian.Uint32(entry[12:])),
		}
	}
	return NodeEntry{
		ID:     pst.NodeID(binary.LittleEndian.Uint64(entry)),
		Data:   pst.BlockID(binary.LittleEndian.Uint64(entry[8:])),
		Sub:    pst.BlockID(binary.LittleEndian.Uint64(entry[16:])),
		Parent: pst.NodeID(binary.LittleEndian.Uint32(entry[24:])),
	}
}

func decodeBlockEntry(format pst.Format, entry []byte) BlockEntry {
	ref := decodeRef(format, entry)
	n := 2 * format.IDSize()
	return BlockEntry{
		Ref:      ref,
		Size:     binary.LittleEndian.Uint16(entry[n:]),
		RefCount: binary.LittleEndian.Uint16(entry[n+2:]),
	}
}
