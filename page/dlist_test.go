package page

import (
	"errors"
	"testing"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/pstfixture"
	"github.com/dacapoday/pst/mem"
)

func densityFixture(t *testing.T, format pst.Format, dl pstfixture.DensityList) *mem.File {
	t.Helper()
	b := pstfixture.New(format, header.CryptNone)
	b.AddNode(pst.MakeNodeID(pst.NodeTypeNormalMessage, 1), pst.NIDRootFolder,
		pstfixture.Content{Data: b.AddBlock([]byte("data"))})
	b.DensityList = &dl
	return mem.New(b.Build())
}

func TestDensityList(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		capacity := maxDensityEntries(format)
		entries := make([]pstfixture.DensityListEntry, capacity)
		for i := range entries {
			entries[i] = pstfixture.DensityListEntry{Page: uint32(i*7 + 1), FreeSlots: uint16(i * 31 % 0x1000)}
		}
		entries[capacity-1] = pstfixture.DensityListEntry{Page: 0xFFFFF, FreeSlots: 0xFFF}

		for _, count := range []int{0, 1, capacity} {
			file := densityFixture(t, format, pstfixture.DensityList{
				BackfillComplete: count%2 == 1,
				CurrentPage:      uint32(count + 2),
				Entries:          entries[len(entries)-count:],
			})
			dl, err := New(file, format).ReadDensityList()
			if err != nil {
				t.Fatalf("%v/%d: ReadDensityList failed: %v", format, count, err)
			}
			if dl.BackfillComplete() != (count%2 == 1) {
				t.Errorf("%v/%d: backfill complete = %v", format, count, dl.BackfillComplete())
			}
			if dl.CurrentPage() != uint32(count+2) {
				t.Errorf("%v/%d: current page = %d", format, count, dl.CurrentPage())
			}
			got := dl.Entries()
			if len(got) != count {
				t.Fatalf("%v/%d: %d entries", format, count, len(got))
			}
			for i, entry := range got {
				want := entries[len(entries)-count+i]
				if entry.Page() != want.Page || entry.FreeSlots() != want.FreeSlots {
					t.Errorf("%v/%d: entry %d = %v, want %+v", format, count, i, entry, want)
				}
			}
		}
	}
}

func TestDensityListCorrupt(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		reseal := func(t *testing.T, edit func(body []byte)) *mem.File {
			t.Helper()
			file := densityFixture(t, format, pstfixture.DensityList{Entries: []pstfixture.DensityListEntry{{Page: 1}}})
			page := file.Bytes()[DensityListOffset : DensityListOffset+pst.PageSize]
			edit(page[:BodySize(format)])
			id := Make(page, DensityListOffset, format).ID()
			pstfixture.SealPage(format, page, pstfixture.TypeDList, DensityListOffset, id)
			file.WriteAt(page, DensityListOffset)
			return file
		}

		for name, edit := range map[string]func([]byte){
			"count":     func(body []byte) { body[1] = byte(maxDensityEntries(format) + 1) },
			"wPadding":  func(body []byte) { body[2] = 1 },
			"rgPadding": func(body []byte) { body[len(body)-1] = 1 },
		} {
			file := reseal(t, edit)
			if _, err := New(file, format).ReadDensityList(); !errors.Is(err, ErrCorruptPage) {
				t.Errorf("%v: %s: err=%v", format, name, err)
			}
		}

		// checksum
		file := densityFixture(t, format, pstfixture.DensityList{})
		file.WriteAt([]byte{0xFF}, DensityListOffset+4)
		if _, err := New(file, format).ReadDensityList(); !errors.Is(err, ErrCorruptPage) {
			t.Errorf("%v: checksum: err=%v", format, err)
		}

		// no density list page
		b := pstfixture.New(format, header.CryptNone)
		b.AddNode(pst.MakeNodeID(pst.NodeTypeNormalMessage, 1), pst.NIDRootFolder,
			pstfixture.Content{Data: b.AddBlock([]byte("data"))})
		if _, err := New(mem.New(b.Build()), format).ReadDensityList(); !errors.Is(err, ErrCorruptPage) {
			t.Errorf("%v: missing page: err=%v", format, err)
		}
	}
}
