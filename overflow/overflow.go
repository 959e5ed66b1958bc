// Package overflow reads data trees: node data too large for one block is
// split across external data blocks listed by an XBLOCK, or by an XXBLOCK
// whose entries are XBLOCKs. The tree is never deeper than two levels.
package overflow

import (
	"fmt"

	"github.com/dacapoday/pst"
)

// BlockReader reads decoded block payloads, see block.Reader.
type BlockReader interface {
	ReadBlock(bid pst.BlockID) ([]byte, error)
	Format() pst.Format
}

// Blocks returns the data blocks of the data tree rooted at bid, in order.
// An external bid is a data tree of one block. The concatenated length must
// equal the lcbTotal of every XBLOCK and XXBLOCK, else ErrTruncatedBlock.
func Blocks(reader BlockReader, bid pst.BlockID) (blocks [][]byte, err error) {
	data, err := reader.ReadBlock(bid)
	if err != nil {
		return
	}
	if !bid.IsInternal() {
		blocks = [][]byte{data}
		return
	}

	format := reader.Format()
	page := Page(data)
	if len(page) >= 2 && page[1] == 2 {
		if err = page.validate(format, bid, 2); err != nil {
			return
		}
		for i := range page.Count() {
			var children [][]byte
			child := page.ID(format, i)
			if !child.IsInternal() {
				err = fmt.Errorf("%w: XXBLOCK(%v) lists data block(%v)", ErrCorruptBlock, bid, child)
				return
			}
			if data, err = reader.ReadBlock(child); err != nil {
				return
			}
			if children, err = leaves(reader, child, Page(data)); err != nil {
				return
			}
			blocks = append(blocks, children...)
		}
	} else if blocks, err = leaves(reader, bid, page); err != nil {
		return
	}

	if size := total(blocks); size != int(page.Total()) {
		err = fmt.Errorf("%w: data tree(%v) holds %d bytes, expected %d", ErrTruncatedBlock, bid, size, page.Total())
		blocks = nil
	}
	return
}

// leaves reads the data blocks listed by an XBLOCK.
func leaves(reader BlockReader, bid pst.BlockID, page Page) (blocks [][]byte, err error) {
	format := reader.Format()
	if err = page.validate(format, bid, 1); err != nil {
		return
	}
	blocks = make([][]byte, 0, page.Count())
	for i := range page.Count() {
		child := page.ID(format, i)
		if child.IsInternal() {
			err = fmt.Errorf("%w: XBLOCK(%v) lists internal block(%v)", ErrCorruptBlock, bid, child)
			return
		}
		var data []byte
		if data, err = reader.ReadBlock(child); err != nil {
			return
		}
		blocks = append(blocks, data)
	}
	if size := total(blocks); size != int(page.Total()) {
		err = fmt.Errorf("%w: XBLOCK(%v) holds %d bytes, expected %d", ErrTruncatedBlock, bid, size, page.Total())
		blocks = nil
	}
	return
}

// Read returns the data tree rooted at bid as one slice.
func Read(reader BlockReader, bid pst.BlockID) (body []byte, err error) {
	blocks, err := Blocks(reader, bid)
	if err != nil {
		return
	}
	if len(blocks) == 1 {
		body = blocks[0]
		return
	}
	body = make([]byte, 0, total(blocks))
	for _, block := range blocks {
		body = append(body, block...)
	}
	return
}

func total(blocks [][]byte) (size int) {
	for _, block := range blocks {
		size += len(block)
	}
	return
}
