package heap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/dacapoday/pst/internal/pstfixture"
)

const maxSegment = 8176

func TestItem(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	builder := pstfixture.NewHeap(ClientProperty, maxSegment)
	want := make(map[ID][]byte)
	for range 300 {
		data := make([]byte, rng.IntN(600))
		for i := range data {
			data[i] = byte(rng.UintN(256))
		}
		want[ID(builder.Allocate(data))] = data
	}

	heap, err := Load(builder.Bytes())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if heap.Segments() < 2 {
		t.Fatalf("heap spans %d blocks", heap.Segments())
	}
	if heap.ClientSignature() != ClientProperty {
		t.Errorf("client signature %#x", heap.ClientSignature())
	}

	for id, data := range want {
		item, err := heap.Item(id)
		if err != nil {
			t.Fatalf("Item(%v) failed: %v", id, err)
		}
		if !bytes.Equal(item, data) {
			t.Fatalf("Item(%v) = %d bytes, want %d", id, len(item), len(data))
		}
		offsets := heap.segments[id.Block()].offsets
		if size := int(offsets[id.Index()] - offsets[id.Index()-1]); size != len(item) {
			t.Fatalf("Item(%v) length %d, page map gives %d", id, len(item), size)
		}
	}

	total := 0
	for i := range heap.Segments() {
		offsets := heap.segments[i].offsets
		for j := 1; j < len(offsets); j++ {
			if offsets[j] < offsets[j-1] {
				t.Fatalf("block %d allocations overlap at slot %d", i, j)
			}
		}
		total += heap.Allocations(i)
	}
	if total != len(want) {
		t.Errorf("%d allocations, want %d", total, len(want))
	}
}

func TestItemOutOfRange(t *testing.T) {
	builder := pstfixture.NewHeap(ClientTable, maxSegment)
	id := ID(builder.Allocate([]byte("one")))
	heap, err := Load(builder.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	for _, bad := range []ID{MakeID(0, 2), MakeID(0, 0), MakeID(1, 1), MakeID(0, 0x7FF)} {
		if _, err := heap.Item(bad); !errors.Is(err, ErrHeapIndexOutOfRange) {
			t.Errorf("Item(%v): err=%v", bad, err)
		}
	}
	if _, err := heap.Item(id | 0x01); !errors.Is(err, ErrCorruptHeap) {
		t.Errorf("Item of a NodeID: err=%v", err)
	}
}

func TestFillLevels(t *testing.T) {
	builder := pstfixture.NewHeap(ClientProperty, maxSegment)
	item := make([]byte, 3500)
	for range 20 {
		builder.Allocate(item)
	}
	builder.Allocate([]byte("tail"))

	heap, err := Load(builder.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	levels := heap.FillLevels()
	if len(levels) != 11 {
		t.Fatalf("%d fill levels, want 11", len(levels))
	}
	for i, level := range levels[:10] {
		if level != 6 {
			t.Errorf("block %d fill level %d, want 6", i, level)
		}
	}
	if levels[10] != 0 {
		t.Errorf("last block fill level %d, want 0", levels[10])
	}
	if got := len(heap.segments[8].data) - len(heap.segments[9].data); got != HeaderSize(8)-HeaderSize(9) {
		t.Errorf("block 8 header size differs by %d", got)
	}
}

func TestLoadCorrupt(t *testing.T) {
	builder := pstfixture.NewHeap(ClientProperty, maxSegment)
	builder.Allocate([]byte("first"))
	builder.Allocate([]byte("second"))
	good := builder.Bytes()[0]

	corrupt := func(edit func([]byte)) [][]byte {
		data := bytes.Clone(good)
		edit(data)
		return [][]byte{data}
	}
	pm := int(binary.LittleEndian.Uint16(good))
	cases := map[string][][]byte{
		"empty":     nil,
		"short":     {good[:8]},
		"signature": corrupt(func(b []byte) { b[2] = 0 }),
		"page map":  corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b, uint16(len(b))) }),
		"count":     corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b[pm:], 100) }),
		"unsorted":  corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b[pm+6:], uint16(pm)) }),
		"header":    corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b[pm+4:], 4) }),
	}
	for name, blocks := range cases {
		if _, err := Load(blocks); !errors.Is(err, ErrCorruptHeap) {
			t.Errorf("%s: err=%v", name, err)
		}
	}
}
