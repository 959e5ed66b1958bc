package pstfixture

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/dacapoday/pst"
)

// Property sets with reserved GUID indexes.
var (
	PSMAPI          = uuid.MustParse("00020328-0000-0000-c000-000000000046")
	PSPublicStrings = uuid.MustParse("00020329-0000-0000-c000-000000000046")
	PSETIDCommon    = uuid.MustParse("00062008-0000-0000-c000-000000000046")
	PSInternetHeads = uuid.MustParse("00020386-0000-0000-c000-000000000046")
)

// NamedProperty is a named property mapped to property id 0x8000+index.
type NamedProperty struct {
	GUID uuid.UUID
	ID   uint32
	Name string // non-empty for string names
}

// NameToIDMap stores named as the name-to-id map property context, hashed
// into buckets buckets. Zero buckets leaves the entries unindexed.
func (b *Builder) NameToIDMap(named []NamedProperty, buckets int) Content {
	var guids, entries, strings []byte
	indexes := map[uuid.UUID]uint16{PSMAPI: 1, PSPublicStrings: 2}
	bucket := make([][]byte, buckets)

	for i, prop := range named {
		guid, ok := indexes[prop.GUID]
		if !ok {
			guid = uint16(3 + len(guids)/16)
			indexes[prop.GUID] = guid
			guids = append(guids, GUIDBytes(prop.GUID)...)
		}

		kind := guid << 1
		id, key := prop.ID, prop.ID
		if prop.Name != "" {
			kind |= 1
			name := UTF16(prop.Name)
			id = uint32(len(strings))
			key = pst.Checksum(name)
			strings = binary.LittleEndian.AppendUint32(strings, uint32(len(name)))
			strings = append(strings, name...)
			for len(strings)%4 != 0 {
				strings = append(strings, 0)
			}
		}

		entries = binary.LittleEndian.AppendUint32(entries, id)
		entries = binary.LittleEndian.AppendUint16(entries, kind)
		entries = binary.LittleEndian.AppendUint16(entries, uint16(i))

		if buckets == 0 {
			continue
		}
		h := (key ^ uint32(kind)) % uint32(buckets)
		bucket[h] = binary.LittleEndian.AppendUint32(bucket[h], key)
		bucket[h] = binary.LittleEndian.AppendUint16(bucket[h], kind)
		bucket[h] = binary.LittleEndian.AppendUint16(bucket[h], uint16(i))
	}

	props := []Property{
		Int32(0x0001, int32(buckets)),
		Binary(0x0002, guids),
		Binary(0x0003, entries),
		Binary(0x0004, strings),
	}
	for i, data := range bucket {
		props = append(props, Binary(uint16(0x1000+i), data))
	}
	return b.PropertyContext(props)
}
