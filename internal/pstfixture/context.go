package pstfixture

import (
	"encoding/binary"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/dacapoday/pst"
)

// Property types as stored on disk.
const (
	TypeNull     uint16 = 0x0001
	TypeInt16    uint16 = 0x0002
	TypeInt32    uint16 = 0x0003
	TypeFloat32  uint16 = 0x0004
	TypeFloat64  uint16 = 0x0005
	TypeCurrency uint16 = 0x0006
	TypeAppTime  uint16 = 0x0007
	TypeError    uint16 = 0x000A
	TypeBool     uint16 = 0x000B
	TypeObject   uint16 = 0x000D
	TypeInt64    uint16 = 0x0014
	TypeString8  uint16 = 0x001E
	TypeUnicode  uint16 = 0x001F
	TypeTime     uint16 = 0x0040
	TypeGUID     uint16 = 0x0048
	TypeBinary   uint16 = 0x0102
	TypeMulti    uint16 = 0x1000
)

// Property is a raw property value.
type Property struct {
	ID   uint16
	Type uint16
	Data []byte
}

func le16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
func le64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func Int16(id uint16, v int16) Property { return Property{id, TypeInt16, le16(uint16(v))} }
func Int32(id uint16, v int32) Property { return Property{id, TypeInt32, le32(uint32(v))} }
func Int64(id uint16, v int64) Property { return Property{id, TypeInt64, le64(uint64(v))} }

func Float32(id uint16, v float32) Property {
	return Property{id, TypeFloat32, le32(math.Float32bits(v))}
}

func Float64(id uint16, v float64) Property {
	return Property{id, TypeFloat64, le64(math.Float64bits(v))}
}

func Bool(id uint16, v bool) Property {
	if v {
		return Property{id, TypeBool, []byte{1}}
	}
	return Property{id, TypeBool, []byte{0}}
}

func Binary(id uint16, v []byte) Property { return Property{id, TypeBinary, v} }

// Time stores t as a FILETIME.
func Time(id uint16, t time.Time) Property { return Property{id, TypeTime, le64(FileTime(t))} }

// String stores s as UTF-16LE without a terminator.
func String(id uint16, s string) Property { return Property{id, TypeUnicode, UTF16(s)} }

// String8 stores s in Windows-1252 with a NUL terminator.
func String8(id uint16, s string) Property {
	data, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return Property{id, TypeString8, append(data, 0)}
}

func GUID(id uint16, v uuid.UUID) Property { return Property{id, TypeGUID, GUIDBytes(v)} }

// Object stores a reference to subnode nid holding size bytes.
func Object(id uint16, nid pst.NodeID, size uint32) Property {
	return Property{id, TypeObject, append(le32(uint32(nid)), le32(size)...)}
}

func MultiInt32(id uint16, values ...int32) Property {
	var data []byte
	for _, v := range values {
		data = binary.LittleEndian.AppendUint32(data, uint32(v))
	}
	return Property{id, TypeMulti | TypeInt32, data}
}

func MultiString(id uint16, values ...string) Property {
	items := make([][]byte, len(values))
	for i, v := range values {
		items[i] = UTF16(v)
	}
	return Property{id, TypeMulti | TypeUnicode, counted(items)}
}

func MultiBinary(id uint16, values ...[]byte) Property {
	return Property{id, TypeMulti | TypeBinary, counted(values)}
}

func MultiGUID(id uint16, values ...uuid.UUID) Property {
	data := le32(uint32(len(values)))
	for _, v := range values {
		data = append(data, GUIDBytes(v)...)
	}
	return Property{id, TypeMulti | TypeGUID, data}
}

// counted encodes a count, an offset table and the items.
func counted(items [][]byte) []byte {
	data := le32(uint32(len(items)))
	offset := 4 * (len(items) + 1)
	for _, item := range items {
		data = binary.LittleEndian.AppendUint32(data, uint32(offset))
		offset += len(item)
	}
	for _, item := range items {
		data = append(data, item...)
	}
	return data
}

// UTF16 encodes s as UTF-16LE.
func UTF16(s string) []byte {
	data, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return data
}

// GUIDBytes returns the on-disk form of a GUID: Data1, Data2 and Data3
// little-endian, Data4 as is.
func GUIDBytes(v uuid.UUID) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data, binary.BigEndian.Uint32(v[0:4]))
	binary.LittleEndian.PutUint16(data[4:], binary.BigEndian.Uint16(v[4:6]))
	binary.LittleEndian.PutUint16(data[6:], binary.BigEndian.Uint16(v[6:8]))
	copy(data[8:], v[8:])
	return data
}

// FileTime converts t to 100-nanosecond intervals since 1601-01-01 UTC.
func FileTime(t time.Time) uint64 {
	return uint64(t.Unix()+11644473600)*10_000_000 + uint64(t.Nanosecond()/100)
}

func inline(typ uint16) bool {
	switch typ {
	case TypeNull, TypeInt16, TypeInt32, TypeFloat32, TypeError, TypeBool:
		return true
	}
	return false
}

func (b *Builder) newSubnodeID() pst.NodeID {
	b.nextSubnode++
	return pst.MakeNodeID(pst.NodeTypeLTP, b.nextSubnode)
}

// hnid stores data in the heap, or in a new subnode when it does not fit.
func (b *Builder) hnid(heap *Heap, data []byte, subnodes *[]SubnodeEntry) uint32 {
	if len(data) == 0 {
		return 0
	}
	if len(data) <= MaxHeapItem {
		return heap.Allocate(data)
	}
	nid := b.newSubnodeID()
	*subnodes = append(*subnodes, SubnodeEntry{ID: nid, Data: b.AddData(data)})
	return uint32(nid)
}

// PropertyContext stores props as a property context.
func (b *Builder) PropertyContext(props []Property) Content {
	props = slices.Clone(props)
	slices.SortFunc(props, func(x, y Property) int { return compare(uint64(x.ID), uint64(y.ID)) })

	heap := NewHeap(ClientProperty, b.Format.MaxBlockData())
	var content Content
	records := make([]Record, len(props))
	for i, prop := range props {
		var value uint32
		if inline(prop.Type) {
			var buf [4]byte
			copy(buf[:], prop.Data)
			value = binary.LittleEndian.Uint32(buf[:])
		} else {
			value = b.hnid(heap, prop.Data, &content.Subnodes)
		}
		data := append(le16(prop.Type), le32(value)...)
		records[i] = Record{Key: le16(prop.ID), Data: data}
	}
	heap.SetUserRoot(heap.BuildTree(2, 6, records, b.TreeFanout))
	content.Data = b.AddSegments(heap.Bytes())
	return content
}

// Column describes a table column.
type Column struct {
	ID   uint16
	Type uint16
}

// Row is one table row. Values missing for a column leave the cell absent.
type Row struct {
	ID     uint32
	Values []Property
}

// Table row id and version columns.
const (
	ColumnRowID      uint16 = 0x67F2
	ColumnRowVersion uint16 = 0x67F3
)

func cellWidth(typ uint16) int {
	switch typ {
	case TypeBool:
		return 1
	case TypeInt16:
		return 2
	case TypeInt64, TypeFloat64, TypeCurrency, TypeAppTime, TypeTime:
		return 8
	default:
		return 4
	}
}

func cellInline(typ uint16) bool {
	switch typ {
	case TypeBool, TypeInt16, TypeInt32, TypeFloat32, TypeError,
		TypeInt64, TypeFloat64, TypeCurrency, TypeAppTime, TypeTime:
		return true
	}
	return false
}

type columnDesc struct {
	Column
	offset int
	width  int
	bit    int
}

// TableContext stores rows as a table context. The row matrix goes to a
// subnode with rowsPerBlock rows per block when rowsPerBlock is non-zero or
// the rows do not fit one heap item.
func (b *Builder) TableContext(columns []Column, rows []Row, rowsPerBlock int) Content {
	columns = slices.DeleteFunc(slices.Clone(columns), func(c Column) bool {
		return c.ID == ColumnRowID || c.ID == ColumnRowVersion
	})
	slices.SortFunc(columns, func(x, y Column) int { return compare(uint64(x.ID), uint64(y.ID)) })

	descs := []columnDesc{
		{Column: Column{ColumnRowID, TypeInt32}, offset: 0, width: 4, bit: 0},
		{Column: Column{ColumnRowVersion, TypeInt32}, offset: 4, width: 4, bit: 1},
	}
	for i, column := range columns {
		descs = append(descs, columnDesc{Column: column, width: cellWidth(column.Type), bit: i + 2})
	}
	offset := 8
	var ends [4]int
	for g, width := range []int{8, 4, 2, 1} {
		for i := range descs[2:] {
			desc := &descs[2+i]
			if desc.width == width {
				desc.offset = offset
				offset += width
			}
		}
		switch g {
		case 1:
			ends[0] = offset
		case 2:
			ends[1] = offset
		case 3:
			ends[2] = offset
		}
	}
	rowSize := offset + (len(descs)+7)/8
	ends[3] = rowSize

	heap := NewHeap(ClientTable, b.Format.MaxBlockData())
	var content Content

	indexSize := 4
	if b.Format == pst.ANSI {
		indexSize = 2
	}
	index := make([]Record, len(rows))
	for i, row := range rows {
		data := make([]byte, indexSize)
		if indexSize == 2 {
			binary.LittleEndian.PutUint16(data, uint16(i))
		} else {
			binary.LittleEndian.PutUint32(data, uint32(i))
		}
		index[i] = Record{Key: le32(row.ID), Data: data}
	}
	slices.SortFunc(index, func(x, y Record) int {
		return compare(uint64(binary.LittleEndian.Uint32(x.Key)), uint64(binary.LittleEndian.Uint32(y.Key)))
	})
	rowIndex := heap.BuildTree(4, indexSize, index, b.TreeFanout)

	matrix := make([][]byte, len(rows))
	for i, row := range rows {
		buf := make([]byte, rowSize)
		ceb := buf[offset:]
		binary.LittleEndian.PutUint32(buf, row.ID)
		ceb[0] |= 0xC0
		for _, desc := range descs[2:] {
			j := slices.IndexFunc(row.Values, func(p Property) bool { return p.ID == desc.ID })
			if j < 0 {
				continue
			}
			value := row.Values[j].Data
			if cellInline(desc.Type) {
				copy(buf[desc.offset:desc.offset+desc.width], value)
			} else {
				binary.LittleEndian.PutUint32(buf[desc.offset:], b.hnid(heap, value, &content.Subnodes))
			}
			ceb[desc.bit/8] |= 1 << (7 - desc.bit%8)
		}
		matrix[i] = buf
	}

	var rowsHNID uint32
	if len(rows) != 0 {
		max := (b.Format.MaxBlockData() - b.RowPadding) / rowSize
		if rowsPerBlock <= 0 && b.RowPadding == 0 && len(rows)*rowSize <= MaxHeapItem {
			rowsHNID = heap.Allocate(slices.Concat(matrix...))
		} else {
			if rowsPerBlock <= 0 || rowsPerBlock > max {
				rowsPerBlock = max
			}
			var segments [][]byte
			for beg := 0; beg < len(matrix); beg += rowsPerBlock {
				segment := slices.Concat(matrix[beg:min(beg+rowsPerBlock, len(matrix))]...)
				segments = append(segments, append(segment, make([]byte, b.RowPadding)...))
			}
			nid := b.newSubnodeID()
			content.Subnodes = append(content.Subnodes, SubnodeEntry{ID: nid, Data: b.AddSegments(segments)})
			rowsHNID = uint32(nid)
		}
	}

	info := make([]byte, 22, 22+8*len(descs))
	info[0] = ClientTable
	info[1] = byte(len(descs))
	for i, end := range ends {
		binary.LittleEndian.PutUint16(info[2+2*i:], uint16(end))
	}
	binary.LittleEndian.PutUint32(info[10:], rowIndex)
	binary.LittleEndian.PutUint32(info[14:], rowsHNID)
	sorted := slices.Clone(descs)
	slices.SortFunc(sorted, func(x, y columnDesc) int { return compare(uint64(x.ID), uint64(y.ID)) })
	for _, desc := range sorted {
		info = binary.LittleEndian.AppendUint16(info, desc.Type)
		info = binary.LittleEndian.AppendUint16(info, desc.ID)
		info = binary.LittleEndian.AppendUint16(info, uint16(desc.offset))
		info = append(info, byte(desc.width), byte(desc.bit))
	}
	heap.SetUserRoot(heap.Allocate(info))
	content.Data = b.AddSegments(heap.Bytes())
	return content
}
