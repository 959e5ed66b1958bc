package heap

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/dacapoday/pst/internal/pstfixture"
)

func buildTree(t *testing.T, n, perItem int) (*Tree, []pstfixture.Record) {
	t.Helper()
	builder := pstfixture.NewHeap(ClientTree, maxSegment)
	records := make([]pstfixture.Record, n)
	for i := range records {
		key := binary.LittleEndian.AppendUint32(nil, uint32(i*3+1))
		data := binary.LittleEndian.AppendUint16(nil, uint16(i))
		records[i] = pstfixture.Record{Key: key, Data: data}
	}
	root := builder.BuildTree(4, 2, records, perItem)

	heap, err := Load(builder.Bytes())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	tree, err := OpenTree(heap, ID(root))
	if err != nil {
		t.Fatalf("OpenTree failed: %v", err)
	}
	return tree, records
}

func TestTreeFind(t *testing.T) {
	for _, perItem := range []int{0, 4} {
		tree, records := buildTree(t, 200, perItem)
		if perItem != 0 && tree.Levels() < 2 {
			t.Fatalf("perItem %d: %d index levels", perItem, tree.Levels())
		}
		for _, record := range records {
			data, ok, err := tree.Find(record.Key)
			if err != nil || !ok {
				t.Fatalf("Find(%x): ok=%v err=%v", record.Key, ok, err)
			}
			if string(data) != string(record.Data) {
				t.Fatalf("Find(%x) = %x, want %x", record.Key, data, record.Data)
			}
		}
		for _, key := range []uint32{0, 2, 3, 1 << 30} {
			if _, ok, err := tree.Find(binary.LittleEndian.AppendUint32(nil, key)); ok || err != nil {
				t.Fatalf("Find(%d) absent: ok=%v err=%v", key, ok, err)
			}
		}
		if _, _, err := tree.Find([]byte{1, 2}); !errors.Is(err, ErrCorruptHeap) {
			t.Fatalf("Find with short key: err=%v", err)
		}
	}
}

func TestTreeAll(t *testing.T) {
	tree, records := buildTree(t, 100, 3)
	i := 0
	for record, err := range tree.All() {
		if err != nil {
			t.Fatal(err)
		}
		if string(record.Key) != string(records[i].Key) {
			t.Fatalf("record %d key %x, want %x", i, record.Key, records[i].Key)
		}
		i++
	}
	if i != len(records) {
		t.Fatalf("All yielded %d records, want %d", i, len(records))
	}

	for range tree.All() {
		break
	}
}

func TestTreeEmpty(t *testing.T) {
	tree, _ := buildTree(t, 0, 0)
	if _, ok, err := tree.Find([]byte{1, 0, 0, 0}); ok || err != nil {
		t.Fatalf("Find on empty tree: ok=%v err=%v", ok, err)
	}
	for range tree.All() {
		t.Fatal("empty tree yielded a record")
	}
}

func TestTreeCorrupt(t *testing.T) {
	builder := pstfixture.NewHeap(ClientTree, maxSegment)
	badKey := builder.Allocate([]byte{ClientTree, 3, 4, 0, 0, 0, 0, 0})
	badData := builder.Allocate([]byte{ClientTree, 4, 0, 0, 0, 0, 0, 0})
	notTree := builder.Allocate([]byte{ClientTable, 4, 4, 0, 0, 0, 0, 0})
	ragged := builder.Allocate([]byte{1, 2, 3, 4, 5})
	badRoot := builder.Allocate(binary.LittleEndian.AppendUint32([]byte{ClientTree, 4, 4, 0}, ragged))
	heap, err := Load(builder.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []uint32{badKey, badData, notTree} {
		if _, err := OpenTree(heap, ID(id)); !errors.Is(err, ErrCorruptHeap) {
			t.Errorf("OpenTree(%v): err=%v", ID(id), err)
		}
	}
	tree, err := OpenTree(heap, ID(badRoot))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := tree.Find([]byte{1, 0, 0, 0}); !errors.Is(err, ErrCorruptHeap) {
		t.Errorf("Find in ragged item: err=%v", err)
	}
}
