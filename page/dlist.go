package page

import (
	"encoding/binary"
	"fmt"

	"github.com/dacapoday/pst"
)

// DensityListOffset is the fixed file offset of the density list page.
const DensityListOffset = 0x4200

// DensityEntry is a DLISTPAGEENT: an AMap page number and its free slots.
type DensityEntry uint32

// Page returns the AMap page number.
func (entry DensityEntry) Page() uint32 {
	return uint32(entry) & 0x000F_FFFF
}

// FreeSlots returns the number of free 512-byte slots of the AMap page.
func (entry DensityEntry) FreeSlots() uint16 {
	return uint16(entry >> 20)
}

func (entry DensityEntry) String() string {
	return fmt.Sprintf("page %d: %d free", entry.Page(), entry.FreeSlots())
}

// DensityList is a read-only view over the DLISTPAGE.
//
// Body: bFlags, cEntDList, wPadding, ulCurrentPage, rgDListPageEnt,
// rgPadding(12).
type DensityList struct {
	page Page
}

// maxDensityEntries returns the capacity of rgDListPageEnt.
func maxDensityEntries(format pst.Format) int {
	return (BodySize(format) - 8 - 12) / 4
}

// NewDensityList checks the layout of a DLISTPAGE.
func NewDensityList(page Page) (dl DensityList, err error) {
	if typ := page.Type(); typ != TypeDList {
		err = fmt.Errorf("page(%#x) has type %v, expected %v: %w", page.offset, typ, TypeDList, ErrCorruptPage)
		return
	}
	body := page.Body()
	if count, limit := int(body[1]), maxDensityEntries(page.format); count > limit {
		err = fmt.Errorf("density list page(%#x) has %d entries, at most %d fit: %w", page.offset, count, limit, ErrCorruptPage)
		return
	}
	if binary.LittleEndian.Uint16(body[2:]) != 0 {
		err = fmt.Errorf("density list page(%#x) wPadding is not zero: %w", page.offset, ErrCorruptPage)
		return
	}
	for _, b := range body[len(body)-12:] {
		if b != 0 {
			err = fmt.Errorf("density list page(%#x) rgPadding is not zero: %w", page.offset, ErrCorruptPage)
			return
		}
	}
	dl.page = page
	return
}

// ReadDensityList reads and checks the density list page.
func (allocator *Allocator) ReadDensityList() (dl DensityList, err error) {
	page, err := allocator.ReadPageType(DensityListOffset, TypeDList)
	if err != nil {
		return
	}
	return NewDensityList(page)
}

// BackfillComplete reports whether the backfill of the free space is done.
func (dl DensityList) BackfillComplete() bool {
	return dl.page.Body()[0]&0x01 != 0
}

// CurrentPage returns the AMap page currently used for allocations.
func (dl DensityList) CurrentPage() uint32 {
	return binary.LittleEndian.Uint32(dl.page.Body()[4:])
}

// Len returns the number of entries.
func (dl DensityList) Len() int {
	return int(dl.page.Body()[1])
}

// Entry returns entry i.
func (dl DensityList) Entry(i int) DensityEntry {
	return DensityEntry(binary.LittleEndian.Uint32(dl.page.Body()[8+4*i:]))
}

// Entries returns all entries, in page order.
func (dl DensityList) Entries() []DensityEntry {
	entries := make([]DensityEntry, dl.Len())
	for i := range entries {
		entries[i] = dl.Entry(i)
	}
	return entries
}

// Page returns the underlying page.
func (dl DensityList) Page() Page {
	return dl.page
}
