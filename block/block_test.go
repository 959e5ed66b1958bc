package block

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/crypt"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/metrics"
	"github.com/dacapoday/pst/internal/pstfixture"
	"github.com/dacapoday/pst/mem"
	"github.com/dacapoday/pst/page"
)

func open(t *testing.T, file *mem.File, opts ...Option) *Reader {
	t.Helper()
	h, err := header.Read(file)
	if err != nil {
		t.Fatalf("read header failed: %v", err)
	}
	reader, err := Open(file, h, page.New(file, h.Format), opts...)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return reader
}

func randomBlocks(rng *rand.Rand, n, max int) [][]byte {
	blocks := make([][]byte, n)
	for i := range blocks {
		data := make([]byte, rng.IntN(max+1))
		for j := range data {
			data[j] = byte(rng.UintN(256))
		}
		blocks[i] = data
	}
	return blocks
}

func TestReadBlock(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		for _, method := range []header.CryptMethod{header.CryptNone, header.CryptPermute, header.CryptCyclic} {
			b := pstfixture.New(format, method)
			blocks := randomBlocks(rng, 20, format.MaxBlockData())
			blocks = append(blocks, nil, bytes.Repeat([]byte{0xAB}, format.MaxBlockData()))
			ids := make([]pst.BlockID, len(blocks))
			for i, data := range blocks {
				ids[i] = b.AddBlock(data)
			}
			internal := b.AddInternalBlock([]byte("internal payload"))

			m := metrics.New(nil)
			reader := open(t, mem.New(b.Build()), WithMetrics(m))
			for i, bid := range ids {
				data, err := reader.ReadBlock(bid)
				if err != nil {
					t.Fatalf("%v/%v: ReadBlock(%v) failed: %v", format, method, bid, err)
				}
				if !bytes.Equal(data, blocks[i]) {
					t.Fatalf("%v/%v: ReadBlock(%v) payload mismatch", format, method, bid)
				}
			}
			data, err := reader.ReadBlock(internal)
			if err != nil || string(data) != "internal payload" {
				t.Fatalf("%v/%v: internal block = %q, %v", format, method, data, err)
			}
			if got := testutil.ToFloat64(m.BlocksRead); got != float64(len(ids)+1) {
				t.Errorf("%v/%v: blocks read = %v", format, method, got)
			}
		}
	}
}

func TestReadBlockEncoded(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptPermute)
	plain := []byte("subject line that must not be stored in clear")
	bid := b.AddBlock(plain)
	image := b.Build()
	if bytes.Contains(image, plain) {
		t.Fatal("payload stored unencoded")
	}

	data, err := open(t, mem.New(image)).ReadBlock(bid)
	if err != nil || !bytes.Equal(data, plain) {
		t.Fatalf("ReadBlock = %q, %v", data, err)
	}
}

func TestReadBlockCorrupt(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		b := pstfixture.New(format, header.CryptNone)
		bid := b.AddBlock([]byte("some payload"))
		other := b.AddBlock([]byte("other payload"))
		file := mem.New(b.Build())

		m := metrics.New(nil)
		reader := open(t, file, WithMetrics(m))
		file.WriteAt([]byte{'S'}, b.Offset(bid))
		if _, err := reader.ReadBlock(bid); !errors.Is(err, ErrCorruptBlock) {
			t.Fatalf("%v: checksum mismatch not detected: %v", format, err)
		}
		if got := testutil.ToFloat64(m.ChecksumFailures.WithLabelValues("block")); got != 1 {
			t.Errorf("%v: checksum failures = %v", format, got)
		}

		// A trailer naming another block.
		size := format.BlockSize(len("other payload"))
		trailer := make([]byte, format.BlockTrailerSize())
		file.WriteAt(trailer, b.Offset(other)+int64(size-len(trailer)))
		if _, err := reader.ReadBlock(other); !errors.Is(err, ErrCorruptBlock) {
			t.Fatalf("%v: bad trailer not detected: %v", format, err)
		}

		if _, err := reader.ReadBlock(0x7FFC); !errors.Is(err, ErrCorruptBlock) {
			t.Fatalf("%v: missing block: err=%v", format, err)
		}
	}
}

func TestReadBlockShort(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptNone)
	bid := b.AddBlock(make([]byte, 100))
	image := b.Build()

	h, err := header.Read(mem.New(image))
	if err != nil {
		t.Fatal(err)
	}
	pages := page.New(mem.New(image), pst.Unicode)
	truncated := mem.New(image[:b.Offset(bid)+50])
	reader, err := Open(truncated, h, pages)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reader.ReadBlock(bid); !errors.Is(err, ErrCorruptBlock) {
		t.Fatalf("short read: err=%v", err)
	}
}

func TestReadBlockTrailerKey(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		b := pstfixture.New(format, header.CryptCyclic)
		plain := []byte("payload keyed by the id of its own trailer")
		bid := b.AddBlock(plain)
		file := mem.New(b.Build())

		// Re-encode the block under its trailer id with reserved bit 0 set;
		// the block BTree still references it without.
		marked := bid | 0x1
		data := slices.Clone(plain)
		crypt.Cyclic.Encode(data, crypt.Key(marked))
		offset := b.Offset(bid)
		file.WriteAt(data, offset)

		trailer := make([]byte, format.BlockTrailerSize())
		binary.LittleEndian.PutUint16(trailer, uint16(len(plain)))
		binary.LittleEndian.PutUint16(trailer[2:], pst.Signature(uint64(offset), marked))
		if format == pst.ANSI {
			binary.LittleEndian.PutUint32(trailer[4:], uint32(marked))
			binary.LittleEndian.PutUint32(trailer[8:], pst.Checksum(data))
		} else {
			binary.LittleEndian.PutUint32(trailer[4:], pst.Checksum(data))
			binary.LittleEndian.PutUint64(trailer[8:], uint64(marked))
		}
		file.WriteAt(trailer, offset+int64(format.BlockSize(len(plain))-len(trailer)))

		got, err := open(t, file).ReadBlock(bid)
		if err != nil || !bytes.Equal(got, plain) {
			t.Fatalf("%v: ReadBlock = %q, %v", format, got, err)
		}
	}
}

func TestReadBlockClosed(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptNone)
	bid := b.AddBlock([]byte("payload"))
	file := mem.New(b.Build())
	reader := open(t, file)

	// the block BTree page stays cached
	if _, err := reader.ReadBlock(bid); err != nil {
		t.Fatal(err)
	}
	file.Close()
	_, err := reader.ReadBlock(bid)
	if !errors.Is(err, pst.ErrClosed) || errors.Is(err, ErrCorruptBlock) {
		t.Fatalf("read after close: err=%v", err)
	}
}
