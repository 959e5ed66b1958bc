package overflow

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/block"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/pstfixture"
	"github.com/dacapoday/pst/mem"
	"github.com/dacapoday/pst/page"
)

func open(t *testing.T, b *pstfixture.Builder) *block.Reader {
	t.Helper()
	file := mem.New(b.Build())
	h, err := header.Read(file)
	if err != nil {
		t.Fatalf("read header failed: %v", err)
	}
	reader, err := block.Open(file, h, page.New(file, h.Format))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return reader
}

func TestReadSingleBlock(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptCyclic)
	bid := b.AddData([]byte("hello world"))
	reader := open(t, b)

	blocks, err := Blocks(reader, bid)
	if err != nil {
		t.Fatalf("Blocks failed: %v", err)
	}
	if len(blocks) != 1 || string(blocks[0]) != "hello world" {
		t.Fatalf("Blocks = %q", blocks)
	}
}

func TestReadXBlock(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		b := pstfixture.New(format, header.CryptPermute)
		data := bytes.Repeat([]byte("hello world"), 2048)
		bid := b.AddData(data)
		if !bid.IsInternal() {
			t.Fatalf("%v: %d bytes stored in one block", format, len(data))
		}
		reader := open(t, b)

		blocks, err := Blocks(reader, bid)
		if err != nil {
			t.Fatalf("%v: Blocks failed: %v", format, err)
		}
		if want := (len(data) + format.MaxBlockData() - 1) / format.MaxBlockData(); len(blocks) != want {
			t.Errorf("%v: %d blocks, want %d", format, len(blocks), want)
		}
		body, err := Read(reader, bid)
		if err != nil {
			t.Fatalf("%v: Read failed: %v", format, err)
		}
		if !bytes.Equal(body, data) {
			t.Errorf("%v: data mismatch: got %d bytes, want %d bytes", format, len(body), len(data))
		}
	}
}

func TestReadXXBlock(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptNone)
	segments := make([][]byte, 1100)
	var data []byte
	for i := range segments {
		segments[i] = []byte{byte(i), byte(i >> 8)}
		data = append(data, segments[i]...)
	}
	bid := b.AddSegments(segments)
	reader := open(t, b)

	root, err := reader.ReadBlock(bid)
	if err != nil {
		t.Fatal(err)
	}
	if level := Page(root).Level(); level != 2 {
		t.Fatalf("root level %d, want 2", level)
	}

	blocks, err := Blocks(reader, bid)
	if err != nil {
		t.Fatalf("Blocks failed: %v", err)
	}
	if len(blocks) != len(segments) {
		t.Fatalf("%d blocks, want %d", len(blocks), len(segments))
	}
	body, err := Read(reader, bid)
	if err != nil || !bytes.Equal(body, data) {
		t.Fatalf("Read: %d bytes, err=%v", len(body), err)
	}
}

func TestReadTruncated(t *testing.T) {
	b := pstfixture.New(pst.ANSI, header.CryptNone)
	ids := []pst.BlockID{b.AddBlock([]byte("abc")), b.AddBlock([]byte("def"))}
	short := b.AddXBlock(ids, 7)
	long := b.AddXBlock(ids, 5)
	reader := open(t, b)

	for _, bid := range []pst.BlockID{short, long} {
		if _, err := Read(reader, bid); !errors.Is(err, ErrTruncatedBlock) {
			t.Fatalf("Read(%v): err=%v", bid, err)
		}
	}
}

func TestReadCorrupt(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptNone)
	data := b.AddBlock([]byte("abc"))

	// btype of a subnode block
	wrongType := b.AddInternalBlock([]byte{0x02, 0x00, 0x00, 0x00, 0, 0, 0, 0})
	// lists more ids than it holds
	overrun := b.AddInternalBlock([]byte{0x01, 0x01, 0x05, 0x00, 3, 0, 0, 0})
	// XBLOCK listing an XBLOCK
	nested := b.AddXBlock([]pst.BlockID{b.AddXBlock([]pst.BlockID{data}, 3)}, 3)
	reader := open(t, b)

	for _, bid := range []pst.BlockID{wrongType, overrun, nested} {
		if _, err := Blocks(reader, bid); !errors.Is(err, ErrCorruptBlock) {
			t.Fatalf("Blocks(%v): err=%v", bid, err)
		}
	}
}
