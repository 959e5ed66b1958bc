package page

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/metrics"
	"github.com/dacapoday/pst/internal/pstfixture"
	"github.com/dacapoday/pst/mem"
)

func fixture(t *testing.T, format pst.Format) (*pstfixture.Builder, *mem.File) {
	t.Helper()
	b := pstfixture.New(format, header.CryptNone)
	for i := range 40 {
		b.AddNode(pst.MakeNodeID(pst.NodeTypeNormalMessage, uint32(i+1)), pst.NIDRootFolder,
			pstfixture.Content{Data: b.AddBlock([]byte{byte(i)})})
	}
	return b, mem.New(b.Build())
}

func TestReadPage(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		b, file := fixture(t, format)
		allocator := New(file, format)
		for _, ref := range b.Pages() {
			page, err := allocator.ReadPage(int64(ref.Offset))
			if err != nil {
				t.Fatalf("%v: ReadPage(%v) failed: %v", format, ref, err)
			}
			if page.ID() != ref.ID {
				t.Errorf("%v: page id %v, want %v", format, page.ID(), ref.ID)
			}
			if typ := page.Type(); typ != TypeBBT && typ != TypeNBT {
				t.Errorf("%v: page type %v", format, typ)
			}
			if len(page.Body()) != BodySize(format) {
				t.Errorf("%v: body size %d", format, len(page.Body()))
			}
		}
	}
}

func TestReadPageType(t *testing.T) {
	b, file := fixture(t, pst.Unicode)
	allocator := New(file, pst.Unicode)
	root := b.NodeBTree()

	if _, err := allocator.ReadPageType(int64(root.Offset), TypeNBT); err != nil {
		t.Fatalf("ReadPageType failed: %v", err)
	}
	if _, err := allocator.ReadPageType(int64(root.Offset), TypeBBT); !errors.Is(err, ErrCorruptPage) {
		t.Fatalf("ReadPageType with wrong type: err=%v", err)
	}
}

func TestReadPageCorrupt(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		b, file := fixture(t, format)
		offset := int64(b.NodeBTree().Offset)

		m := metrics.New(nil)
		allocator := New(file, format, WithMetrics(m))
		file.WriteAt([]byte{0xFF}, offset+3)
		if _, err := allocator.ReadPage(offset); !errors.Is(err, ErrCorruptPage) {
			t.Fatalf("%v: checksum mismatch not detected: %v", format, err)
		}
		if got := testutil.ToFloat64(m.ChecksumFailures.WithLabelValues("page")); got != 1 {
			t.Errorf("%v: checksum failures = %v, want 1", format, got)
		}
	}
}

func TestReadPageSignature(t *testing.T) {
	b, file := fixture(t, pst.Unicode)
	ref := b.NodeBTree()

	// Move the root page one page further: checksum still holds, the
	// signature no longer matches the offset.
	data := file.Bytes()
	moved := int64(len(data))
	file.WriteAt(data[ref.Offset:ref.Offset+pst.PageSize], moved)

	allocator := New(file, pst.Unicode)
	if _, err := allocator.ReadPage(moved); !errors.Is(err, ErrCorruptPage) {
		t.Fatalf("signature mismatch not detected: %v", err)
	}
}

func TestReadPageShort(t *testing.T) {
	_, file := fixture(t, pst.ANSI)
	allocator := New(file, pst.ANSI)
	if _, err := allocator.ReadPage(file.Size() - 100); !errors.Is(err, ErrCorruptPage) {
		t.Fatalf("short read: err=%v", err)
	}
	if _, err := allocator.ReadPage(-pst.PageSize); !errors.Is(err, ErrCorruptPage) {
		t.Fatalf("negative offset: err=%v", err)
	}
}

func TestReadPageCache(t *testing.T) {
	b, file := fixture(t, pst.Unicode)
	offset := int64(b.NodeBTree().Offset)

	m := metrics.New(nil)
	allocator := New(file, pst.Unicode, WithMetrics(m))
	first, err := allocator.ReadPage(offset)
	if err != nil {
		t.Fatal(err)
	}
	second, err := allocator.ReadPage(offset)
	if err != nil {
		t.Fatal(err)
	}
	if first.CRC() != second.CRC() || first.ID() != second.ID() {
		t.Fatal("repeated reads differ")
	}
	if got := testutil.ToFloat64(m.PagesRead); got != 1 {
		t.Errorf("pages read = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PageCacheHits); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}

	uncached := New(file, pst.Unicode, WithCacheSize(0), WithMetrics(metrics.New(nil)))
	for range 3 {
		if _, err := uncached.ReadPage(offset); err != nil {
			t.Fatal(err)
		}
	}
	if got := testutil.ToFloat64(uncached.metrics.PagesRead); got != 3 {
		t.Errorf("uncached pages read = %v, want 3", got)
	}
}

func TestReadPageClosed(t *testing.T) {
	b, file := fixture(t, pst.Unicode)
	offset := int64(b.NodeBTree().Offset)

	m := metrics.New(nil)
	allocator := New(file, pst.Unicode, WithCacheSize(0), WithMetrics(m))
	file.Close()
	_, err := allocator.ReadPage(offset)
	if !errors.Is(err, pst.ErrClosed) || errors.Is(err, ErrCorruptPage) {
		t.Fatalf("read after close: err=%v", err)
	}
	if got := testutil.ToFloat64(m.ChecksumFailures.WithLabelValues("page")); got != 0 {
		t.Errorf("checksum failures = %v, want 0", got)
	}
}
