// Package pstfixture writes small, valid PST files for tests.
//
// A Builder collects blocks and nodes, then Build lays them out after the
// header, encodes the block and node BTrees into pages and returns the file
// image. Heaps, property contexts, table contexts and the named property
// map are built on top with the helpers in this package.
package pstfixture

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/crypt"
	"github.com/dacapoday/pst/header"
)

// Node is one node BTree record.
type Node struct {
	ID     pst.NodeID
	Data   pst.BlockID
	Sub    pst.BlockID
	Parent pst.NodeID
}

// SubnodeEntry is one record of a subnode tree.
type SubnodeEntry struct {
	ID   pst.NodeID
	Data pst.BlockID
	Sub  pst.BlockID
}

// Content is the data a node (or subnode) stores: a data tree and the
// subnodes its values spill into.
type Content struct {
	Data     pst.BlockID
	Subnodes []SubnodeEntry
}

type block struct {
	id   pst.BlockID
	data []byte // plain payload
}

// Builder assembles a PST file image.
type Builder struct {
	Format pst.Format
	Crypt  header.CryptMethod

	// LeafCapacity and BranchCapacity cap the entries per BTree page when
	// non-zero, which forces deeper trees in small files.
	LeafCapacity   int
	BranchCapacity int

	// TreeFanout caps the records per heap item of a BTree-on-Heap when
	// non-zero, which forces index levels.
	TreeFanout int

	// RowPadding is appended as unused bytes to every row matrix block a
	// table context stores in a subnode.
	RowPadding int

	// DensityList, when set, is written at DensityListOffset and blocks
	// start on the page after it.
	DensityList *DensityList

	cipher      crypt.Cipher
	nextBlock   uint64
	nextPage    uint64
	nextSubnode uint32
	blocks      []block
	nodes       []Node

	offsets  map[pst.BlockID]int64
	nbtRoot  pst.BlockRef
	bbtRoot  pst.BlockRef
	nbtLevel int
	bbtLevel int
	pages    []pst.BlockRef
}

// New returns a Builder for format and crypt method.
func New(format pst.Format, method header.CryptMethod) *Builder {
	cipher, err := crypt.New(method)
	if err != nil {
		panic(err)
	}
	return &Builder{
		Format:    format,
		Crypt:     method,
		cipher:    cipher,
		nextBlock: 0x40,
		nextPage:  0x400,
	}
}

func (b *Builder) newBlockID(internal bool) pst.BlockID {
	b.nextBlock++
	id := pst.BlockID(b.nextBlock << 2)
	if internal {
		id |= 0x2
	}
	return id
}

func (b *Builder) newPageID() pst.BlockID {
	b.nextPage++
	return pst.BlockID(b.nextPage << 2)
}

// AddBlock stores data in a single external block.
func (b *Builder) AddBlock(data []byte) pst.BlockID {
	if len(data) > b.Format.MaxBlockData() {
		panic(fmt.Sprintf("pstfixture: block of %d bytes", len(data)))
	}
	id := b.newBlockID(false)
	b.blocks = append(b.blocks, block{id: id, data: data})
	return id
}

// AddInternalBlock stores data in a single internal block.
func (b *Builder) AddInternalBlock(data []byte) pst.BlockID {
	id := b.newBlockID(true)
	b.blocks = append(b.blocks, block{id: id, data: data})
	return id
}

// AddData stores data in as many blocks as needed, chained by XBLOCKs.
func (b *Builder) AddData(data []byte) pst.BlockID {
	max := b.Format.MaxBlockData()
	if len(data) <= max {
		return b.AddBlock(data)
	}
	var segments [][]byte
	for len(data) > 0 {
		n := min(max, len(data))
		segments = append(segments, data[:n])
		data = data[n:]
	}
	return b.AddSegments(segments)
}

// AddSegments stores each segment in its own block. More than one segment
// is chained by an XBLOCK, or an XXBLOCK when one XBLOCK cannot hold them.
func (b *Builder) AddSegments(segments [][]byte) pst.BlockID {
	if len(segments) == 1 {
		return b.AddBlock(segments[0])
	}
	ids := make([]pst.BlockID, len(segments))
	total := 0
	for i, segment := range segments {
		ids[i] = b.AddBlock(segment)
		total += len(segment)
	}
	return b.addXBlocks(ids, total, segments)
}

func (b *Builder) xblockCapacity() int {
	return (b.Format.MaxBlockData() - 8) / b.Format.IDSize()
}

func (b *Builder) addXBlocks(ids []pst.BlockID, total int, segments [][]byte) pst.BlockID {
	capacity := b.xblockCapacity()
	if len(ids) <= capacity {
		return b.AddInternalBlock(b.encodeXBlock(1, ids, total))
	}
	var children []pst.BlockID
	for beg := 0; beg < len(ids); beg += capacity {
		end := min(beg+capacity, len(ids))
		size := 0
		for _, segment := range segments[beg:end] {
			size += len(segment)
		}
		children = append(children, b.AddInternalBlock(b.encodeXBlock(1, ids[beg:end], size)))
	}
	return b.AddInternalBlock(b.encodeXBlock(2, children, total))
}

// encodeXBlock returns an XBLOCK (level 1) or XXBLOCK (level 2) payload.
func (b *Builder) encodeXBlock(level uint8, ids []pst.BlockID, total int) []byte {
	size := b.Format.IDSize()
	buf := make([]byte, 8+len(ids)*size)
	buf[0] = 0x01
	buf[1] = level
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(ids)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(total))
	for i, id := range ids {
		b.putID(buf[8+i*size:], uint64(id))
	}
	return buf
}

// AddXBlock stores a hand-made XBLOCK, e.g. one declaring a wrong total.
func (b *Builder) AddXBlock(ids []pst.BlockID, total int) pst.BlockID {
	return b.AddInternalBlock(b.encodeXBlock(1, ids, total))
}

func (b *Builder) putID(buf []byte, v uint64) {
	if b.Format == pst.ANSI {
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return
	}
	binary.LittleEndian.PutUint64(buf, v)
}

// AddSubnodes stores a subnode tree; see AddSubnodeTree.
func (b *Builder) AddSubnodes(entries []SubnodeEntry) pst.BlockID {
	return b.AddSubnodeTree(entries, 0)
}

// AddSubnodeTree stores entries in SLBLOCKs of at most leafSize entries (zero
// means as many as fit), adding an SIBLOCK when more than one leaf is needed.
func (b *Builder) AddSubnodeTree(entries []SubnodeEntry, leafSize int) pst.BlockID {
	if len(entries) == 0 {
		return 0
	}
	entries = slices.Clone(entries)
	slices.SortFunc(entries, func(x, y SubnodeEntry) int { return compare(uint64(x.ID), uint64(y.ID)) })

	head, size := 8, 24
	if b.Format == pst.ANSI {
		head, size = 4, 12
	}
	if max := (b.Format.MaxBlockData() - head) / size; leafSize <= 0 || leafSize > max {
		leafSize = max
	}

	encodeLeaf := func(entries []SubnodeEntry) []byte {
		buf := make([]byte, head+len(entries)*size)
		buf[0] = 0x02
		binary.LittleEndian.PutUint16(buf[2:], uint16(len(entries)))
		idSize := b.Format.IDSize()
		for i, entry := range entries {
			item := buf[head+i*size:]
			b.putID(item, uint64(entry.ID))
			b.putID(item[idSize:], uint64(entry.Data))
			b.putID(item[2*idSize:], uint64(entry.Sub))
		}
		return buf
	}
	if len(entries) <= leafSize {
		return b.AddInternalBlock(encodeLeaf(entries))
	}

	idSize := b.Format.IDSize()
	var index []byte
	count := 0
	for beg := 0; beg < len(entries); beg += leafSize {
		end := min(beg+leafSize, len(entries))
		leaf := b.AddInternalBlock(encodeLeaf(entries[beg:end]))
		item := make([]byte, 2*idSize)
		b.putID(item, uint64(entries[beg].ID))
		b.putID(item[idSize:], uint64(leaf))
		index = append(index, item...)
		count++
	}
	buf := make([]byte, head, head+len(index))
	buf[0] = 0x02
	buf[1] = 0x01
	binary.LittleEndian.PutUint16(buf[2:], uint16(count))
	return b.AddInternalBlock(append(buf, index...))
}

// AddNode records a node whose content is already stored.
func (b *Builder) AddNode(nid, parent pst.NodeID, content Content) {
	node := Node{ID: nid, Data: content.Data, Parent: parent}
	if len(content.Subnodes) != 0 {
		node.Sub = b.AddSubnodes(content.Subnodes)
	}
	b.AddRawNode(node)
}

// AddRawNode records a node BTree entry as is.
func (b *Builder) AddRawNode(node Node) {
	b.nodes = append(b.nodes, node)
}

// Subnode stores content as a subnode entry for an owning node.
func (b *Builder) Subnode(nid pst.NodeID, content Content) SubnodeEntry {
	entry := SubnodeEntry{ID: nid, Data: content.Data}
	if len(content.Subnodes) != 0 {
		entry.Sub = b.AddSubnodes(content.Subnodes)
	}
	return entry
}

// Offset returns the file offset of a block or page after Build.
func (b *Builder) Offset(id pst.BlockID) int64 {
	offset, ok := b.offsets[id]
	if !ok {
		panic(fmt.Sprintf("pstfixture: unknown block %v", id))
	}
	return offset
}

// NodeBTree returns the node BTree root after Build.
func (b *Builder) NodeBTree() pst.BlockRef { return b.nbtRoot }

// BlockBTree returns the block BTree root after Build.
func (b *Builder) BlockBTree() pst.BlockRef { return b.bbtRoot }

// NodeBTreeLevel returns the level of the node BTree root after Build.
func (b *Builder) NodeBTreeLevel() int { return b.nbtLevel }

// Pages returns the BTree pages written by Build.
func (b *Builder) Pages() []pst.BlockRef { return b.pages }

// Nodes returns the node records added so far.
func (b *Builder) Nodes() []Node { return slices.Clone(b.nodes) }

// Blocks returns the ids of the blocks added so far.
func (b *Builder) Blocks() []pst.BlockID {
	ids := make([]pst.BlockID, len(b.blocks))
	for i, block := range b.blocks {
		ids[i] = block.id
	}
	return ids
}

// Build lays out blocks and BTree pages and returns the file image.
func (b *Builder) Build() []byte {
	headerSize := header.UnicodeSize
	if b.Format == pst.ANSI {
		headerSize = header.ANSISize
	}
	offset := int64(0x400)
	var dlist pst.BlockID
	if b.DensityList != nil {
		dlist = b.newPageID()
		offset = DensityListOffset + pst.PageSize
	}
	file := make([]byte, offset)
	b.offsets = make(map[pst.BlockID]int64)
	b.pages = nil

	blocks := slices.Clone(b.blocks)
	slices.SortFunc(blocks, func(x, y block) int { return compare(uint64(x.id), uint64(y.id)) })

	trailer := b.Format.BlockTrailerSize()
	for _, block := range blocks {
		data := slices.Clone(block.data)
		if !block.id.IsInternal() {
			b.cipher.Encode(data, crypt.Key(block.id))
		}
		size := b.Format.BlockSize(len(data))
		buf := make([]byte, size)
		copy(buf, data)
		t := buf[size-trailer:]
		binary.LittleEndian.PutUint16(t, uint16(len(data)))
		binary.LittleEndian.PutUint16(t[2:], pst.Signature(uint64(offset), block.id))
		if b.Format == pst.ANSI {
			binary.LittleEndian.PutUint32(t[4:], uint32(block.id))
			binary.LittleEndian.PutUint32(t[8:], pst.Checksum(data))
		} else {
			binary.LittleEndian.PutUint32(t[4:], pst.Checksum(data))
			binary.LittleEndian.PutUint64(t[8:], uint64(block.id))
		}
		b.offsets[block.id] = offset
		file = append(file, buf...)
		offset += int64(size)
	}

	if rem := offset % pst.PageSize; rem != 0 {
		pad := pst.PageSize - rem
		file = append(file, make([]byte, pad)...)
		offset += pad
	}

	bbt := make([]leaf, len(blocks))
	for i, block := range blocks {
		bbt[i] = leaf{key: uint64(block.id), data: b.encodeBBTEntry(block.id, b.offsets[block.id], len(block.data))}
	}
	nodes := slices.Clone(b.nodes)
	slices.SortFunc(nodes, func(x, y Node) int { return compare(uint64(x.ID), uint64(y.ID)) })
	nbt := make([]leaf, len(nodes))
	for i, node := range nodes {
		nbt[i] = leaf{key: uint64(node.ID), data: b.encodeNBTEntry(node)}
	}

	file, offset, b.bbtRoot, b.bbtLevel = b.writeBTree(file, offset, TypeBBT, bbt)
	file, offset, b.nbtRoot, b.nbtLevel = b.writeBTree(file, offset, TypeNBT, nbt)

	if b.DensityList != nil {
		copy(file[DensityListOffset:], EncodeDensityList(b.Format, *b.DensityList, dlist))
		b.offsets[dlist] = DensityListOffset
	}

	head := b.encodeHeader(uint64(offset))
	copy(file, head[:headerSize])
	return file
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
