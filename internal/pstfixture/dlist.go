package pstfixture

import (
	"encoding/binary"

	"github.com/dacapoday/pst"
)

const (
	TypeDList byte = 0x86

	// DensityListOffset is where Build writes the density list page.
	DensityListOffset = 0x4200
)

// DensityList is the content of a DLISTPAGE.
type DensityList struct {
	BackfillComplete bool
	CurrentPage      uint32
	Entries          []DensityListEntry
}

// DensityListEntry is one DLISTPAGEENT.
type DensityListEntry struct {
	Page      uint32
	FreeSlots uint16
}

// EncodeDensityList encodes dl as a sealed page stored at
// DensityListOffset under id.
func EncodeDensityList(format pst.Format, dl DensityList, id pst.BlockID) []byte {
	page := make([]byte, pst.PageSize)
	if dl.BackfillComplete {
		page[0] = 0x01
	}
	page[1] = byte(len(dl.Entries))
	binary.LittleEndian.PutUint32(page[4:], dl.CurrentPage)
	for i, entry := range dl.Entries {
		binary.LittleEndian.PutUint32(page[8+4*i:], entry.Page&0xFFFFF|uint32(entry.FreeSlots)<<20)
	}
	SealPage(format, page, TypeDList, DensityListOffset, id)
	return page
}
