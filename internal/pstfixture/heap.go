package pstfixture

import (
	"encoding/binary"
	"fmt"
)

// Heap client signatures.
const (
	ClientTable    byte = 0x7C
	ClientTree     byte = 0xB5
	ClientProperty byte = 0xBC
)

// MaxHeapItem is the largest item a heap allocation may hold.
const MaxHeapItem = 3580

// Heap builds the segments of a Heap-on-Node.
type Heap struct {
	client   byte
	userRoot uint32
	max      int
	segments [][][]byte
}

// NewHeap returns an empty heap whose segments fit blocks of maxSegment bytes.
func NewHeap(client byte, maxSegment int) *Heap {
	return &Heap{client: client, max: maxSegment, segments: [][][]byte{nil}}
}

// HID composes a heap id.
func HID(segment, index int) uint32 {
	return uint32(segment)<<16 | uint32(index)<<5
}

func headSize(segment int) int {
	switch {
	case segment == 0:
		return 12
	case segment >= 8 && (segment-8)%128 == 0:
		return 66
	default:
		return 2
	}
}

func segmentSize(segment int, items [][]byte) int {
	size := headSize(segment)
	for _, item := range items {
		size += len(item)
	}
	size = (size + 1) &^ 1
	return size + 4 + 2*(len(items)+1)
}

// Allocate stores data and returns its heap id.
func (heap *Heap) Allocate(data []byte) uint32 {
	if len(data) > MaxHeapItem {
		panic(fmt.Sprintf("pstfixture: heap item of %d bytes", len(data)))
	}
	last := len(heap.segments) - 1
	items := append(heap.segments[last], data)
	if segmentSize(last, items) > heap.max || len(items) > 0x7FF {
		heap.segments = append(heap.segments, nil)
		last++
		items = [][]byte{data}
	}
	heap.segments[last] = items
	return HID(last, len(items))
}

// NewSegment starts a new segment for subsequent allocations.
func (heap *Heap) NewSegment() {
	heap.segments = append(heap.segments, nil)
}

// SetUserRoot sets hidUserRoot.
func (heap *Heap) SetUserRoot(hid uint32) {
	heap.userRoot = hid
}

func fillLevel(free int) byte {
	bounds := []int{3584, 2560, 2048, 1792, 1536, 1280, 1024, 768, 512, 256, 128, 64, 32, 16, 8}
	for level, bound := range bounds {
		if free >= bound {
			return byte(level)
		}
	}
	return 15
}

// Bytes encodes every segment.
func (heap *Heap) Bytes() [][]byte {
	out := make([][]byte, len(heap.segments))
	levels := make([]byte, len(heap.segments))
	for i, items := range heap.segments {
		levels[i] = fillLevel(heap.max - segmentSize(i, items))
	}

	for i, items := range heap.segments {
		buf := make([]byte, headSize(i), segmentSize(i, items))
		offsets := []uint16{uint16(len(buf))}
		for _, item := range items {
			buf = append(buf, item...)
			offsets = append(offsets, uint16(len(buf)))
		}
		if len(buf)%2 != 0 {
			buf = append(buf, 0)
		}
		binary.LittleEndian.PutUint16(buf, uint16(len(buf)))

		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(items)))
		buf = binary.LittleEndian.AppendUint16(buf, 0)
		for _, offset := range offsets {
			buf = binary.LittleEndian.AppendUint16(buf, offset)
		}

		switch headSize(i) {
		case 12:
			buf[2] = 0xEC
			buf[3] = heap.client
			binary.LittleEndian.PutUint32(buf[4:], heap.userRoot)
			putFillLevels(buf[8:12], levels, 0, 8)
		case 66:
			putFillLevels(buf[2:66], levels, i, 128)
		}
		out[i] = buf
	}
	return out
}

func putFillLevels(dst []byte, levels []byte, beg, count int) {
	for j := 0; j < count; j++ {
		if beg+j >= len(levels) {
			return
		}
		level := levels[beg+j] & 0x0F
		if j%2 == 0 {
			dst[j/2] |= level
		} else {
			dst[j/2] |= level << 4
		}
	}
}

// Record is a BTree-on-Heap record.
type Record struct {
	Key  []byte
	Data []byte
}

// BuildTree stores sorted records as a BTree-on-Heap and returns the
// BTHHEADER heap id. perItem caps the records per heap item when non-zero.
func (heap *Heap) BuildTree(keySize, dataSize int, records []Record, perItem int) uint32 {
	levels := 0
	var root uint32
	if len(records) > 0 {
		size := keySize + dataSize
		if max := MaxHeapItem / size; perItem <= 0 || perItem > max {
			perItem = max
		}
		for {
			var index []Record
			for beg := 0; beg < len(records); beg += perItem {
				end := min(beg+perItem, len(records))
				item := make([]byte, 0, (end-beg)*size)
				for _, record := range records[beg:end] {
					item = append(item, record.Key...)
					item = append(item, record.Data...)
				}
				hid := heap.Allocate(item)
				index = append(index, Record{Key: records[beg].Key, Data: binary.LittleEndian.AppendUint32(nil, hid)})
			}
			if len(index) == 1 {
				root = binary.LittleEndian.Uint32(index[0].Data)
				break
			}
			records = index
			size = keySize + 4
			if max := MaxHeapItem / size; perItem > max {
				perItem = max
			}
			levels++
		}
	}

	head := make([]byte, 8)
	head[0] = ClientTree
	head[1] = byte(keySize)
	head[2] = byte(dataSize)
	head[3] = byte(levels)
	binary.LittleEndian.PutUint32(head[4:], root)
	return heap.Allocate(head)
}
