// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package ltp

import (
	"encoding/binary"
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/dacapoday/pst/heap"
)

// Row id and row version columns present in every table.
const (
	ColumnRowID      = 0x67F2
	ColumnRowVersion = 0x67F3
)

const (
	infoSize   = 22
	columnSize = 8
)

// Column describes where a column's cells live in a row.
type Column struct {
	Tag    Tag
	Offset int // of the cell in the row
	Width  int
	Bit    int // in the cell existence bitmap
}

// Row is one decoded table row. Cells whose existence bit is clear are left
// out of Values.
type Row struct {
	ID     uint32
	Index  int
	Values []Value
}

// Get returns the value of the column with id.
func (row Row) Get(id uint16) (Value, bool) {
	for _, v := range row.Values {
		if v.Tag.ID() == id {
			return v, true
		}
	}
	return Value{}, false
}

// TableContext is a decoded table context. Rows are decoded on demand and
// the context keeps no cursor, so it is safe for concurrent use.
type TableContext struct {
	node    Node
	heap    *heap.Heap
	index   *heap.Tree
	columns []Column
	ends    [4]int // 4-byte, 2-byte, 1-byte and bitmap ends

	// row matrix, rows never straddle blocks
	blocks [][]byte
	starts []int // first row of each block
	rows   int
	options
}

// OpenTableContext decodes the table context stored in node.
func OpenTableContext(node Node, opts ...Option) (tc *TableContext, err error) {
	blocks, err := node.Blocks()
	if err != nil {
		return
	}
	hn, err := heap.Load(blocks)
	if err != nil {
		err = fmt.Errorf("node(%v): %w", node.ID(), err)
		return
	}
	if sig := hn.ClientSignature(); sig != heap.ClientTable {
		err = fmt.Errorf("node(%v) heap client %#x is not a table context: %w", node.ID(), sig, ErrCorruptTable)
		return
	}
	tc = &TableContext{node: node, heap: hn, options: newOptions(opts)}
	if err = tc.load(); err != nil {
		tc = nil
		err = fmt.Errorf("node(%v): %w", node.ID(), err)
	}
	return
}

func (tc *TableContext) load() (err error) {
	info, err := tc.heap.Item(tc.heap.UserRoot())
	if err != nil {
		return
	}
	if len(info) < infoSize || info[0] != heap.ClientTable {
		return fmt.Errorf("TCINFO of %d bytes: %w", len(info), ErrCorruptTable)
	}
	count := int(info[1])
	if len(info) < infoSize+columnSize*count {
		return fmt.Errorf("TCINFO of %d bytes for %d columns: %w", len(info), count, ErrCorruptTable)
	}
	for i := range tc.ends {
		tc.ends[i] = int(binary.LittleEndian.Uint16(info[2+2*i:]))
	}
	if !slices.IsSorted(tc.ends[:]) || tc.ends[3]-tc.ends[2] != (count+7)/8 {
		return fmt.Errorf("TCINFO row layout %v for %d columns: %w", tc.ends, count, ErrCorruptTable)
	}

	tc.columns = make([]Column, count)
	for i := range tc.columns {
		b := info[infoSize+columnSize*i:]
		column := Column{
			Tag:    MakeTag(binary.LittleEndian.Uint16(b[2:]), Type(binary.LittleEndian.Uint16(b))),
			Offset: int(binary.LittleEndian.Uint16(b[4:])),
			Width:  int(b[6]),
			Bit:    int(b[7]),
		}
		if column.Width < column.Tag.Type().cellSize() || column.Offset+column.Width > tc.ends[2] || column.Bit >= count {
			return fmt.Errorf("TCOLDESC %v at %d+%d bit %d: %w", column.Tag, column.Offset, column.Width, column.Bit, ErrCorruptTable)
		}
		if i > 0 && tc.columns[i-1].Tag.ID() >= column.Tag.ID() {
			return fmt.Errorf("TCOLDESC %v out of order: %w", column.Tag, ErrCorruptTable)
		}
		tc.columns[i] = column
	}

	if tc.index, err = heap.OpenTree(tc.heap, heap.ID(binary.LittleEndian.Uint32(info[10:]))); err != nil {
		return
	}
	if tc.index.KeySize() != 4 || (tc.index.DataSize() != 2 && tc.index.DataSize() != 4) {
		return fmt.Errorf("row index BTH has %d/%d byte records: %w", tc.index.KeySize(), tc.index.DataSize(), ErrCorruptTable)
	}

	rows := binary.LittleEndian.Uint32(info[14:])
	switch {
	case rows == 0:
	case heap.IsHID(rows):
		var item []byte
		if item, err = tc.heap.Item(heap.ID(rows)); err != nil {
			return
		}
		tc.blocks = [][]byte{item}
	default:
		var data [][]byte
		if data, err = hnidBlocks(tc.node, rows); err != nil {
			return
		}
		tc.blocks = data
	}

	size := tc.RowSize()
	if size == 0 && len(tc.blocks) != 0 {
		return fmt.Errorf("row matrix of empty rows: %w", ErrCorruptTable)
	}
	// a block ends with unused bytes when rows do not fill it
	tc.starts = make([]int, len(tc.blocks))
	for i, block := range tc.blocks {
		tc.starts[i] = tc.rows
		tc.rows += len(block) / size
	}
	return
}

// RowSize returns the size of one row of the row matrix.
func (tc *TableContext) RowSize() int {
	return tc.ends[3]
}

// Columns returns the column descriptors in ascending id order.
func (tc *TableContext) Columns() []Column {
	return slices.Clone(tc.columns)
}

// Heap returns the underlying heap.
func (tc *TableContext) Heap() *heap.Heap {
	return tc.heap
}

// RowCount returns the number of rows.
func (tc *TableContext) RowCount() int {
	return tc.rows
}

func (tc *TableContext) raw(i int) []byte {
	b := sort.Search(len(tc.starts), func(b int) bool { return tc.starts[b] > i }) - 1
	size := tc.RowSize()
	off := (i - tc.starts[b]) * size
	return tc.blocks[b][off : off+size]
}

// Row decodes row i in natural order.
func (tc *TableContext) Row(i int) (row Row, err error) {
	if i < 0 || i >= tc.rows {
		err = fmt.Errorf("node(%v) row %d of %d: %w", tc.node.ID(), i, tc.rows, ErrRowOutOfRange)
		return
	}
	raw := tc.raw(i)
	ceb := raw[tc.ends[2]:]
	row = Row{
		ID:     binary.LittleEndian.Uint32(raw),
		Index:  i,
		Values: make([]Value, 0, len(tc.columns)),
	}
	for _, column := range tc.columns {
		if ceb[column.Bit/8]&(1<<(7-column.Bit%8)) == 0 {
			continue
		}
		var v Value
		if v, err = tc.cell(column, raw[column.Offset:column.Offset+column.Width]); err != nil {
			err = fmt.Errorf("node(%v) row %d: %w", tc.node.ID(), i, err)
			return
		}
		row.Values = append(row.Values, v)
	}
	return
}

func (tc *TableContext) cell(column Column, cell []byte) (v Value, err error) {
	typ := column.Tag.Type()
	b := cell
	if size := typ.Size(); size == 0 || size > 8 {
		if b, err = hnidBytes(tc.node, tc.heap, binary.LittleEndian.Uint32(cell)); err != nil {
			err = fmt.Errorf("column %v: %w", column.Tag, err)
			return
		}
	}
	x, err := decode(typ, b, tc.codepage)
	if err != nil {
		err = fmt.Errorf("column %v: %w", column.Tag, err)
		return
	}
	v = Value{Tag: column.Tag, Value: x}
	return
}

// Rows returns an iterator over the rows in natural order. Each call starts
// a new iteration. Iteration stops after the first error.
func (tc *TableContext) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for i := range tc.rows {
			row, err := tc.Row(i)
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// FindRow returns the row with rowID through the row index.
func (tc *TableContext) FindRow(rowID uint32) (row Row, err error) {
	data, ok, err := tc.index.Find(binary.LittleEndian.AppendUint32(nil, rowID))
	if err != nil {
		return
	}
	if !ok {
		err = fmt.Errorf("node(%v) row id %#x: %w", tc.node.ID(), rowID, ErrRowOutOfRange)
		return
	}
	var i int
	if len(data) == 2 {
		i = int(binary.LittleEndian.Uint16(data))
	} else {
		i = int(binary.LittleEndian.Uint32(data))
	}
	return tc.Row(i)
}
