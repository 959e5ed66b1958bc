package namedprop

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/block"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/pstfixture"
	"github.com/dacapoday/pst/mem"
	"github.com/dacapoday/pst/node"
	"github.com/dacapoday/pst/page"
)

func open(t *testing.T, format pst.Format, named []pstfixture.NamedProperty, buckets int) *Map {
	t.Helper()
	b := pstfixture.New(format, header.CryptPermute)
	b.AddNode(pst.NIDNameToIDMap, 0, b.NameToIDMap(named, buckets))
	file := mem.New(b.Build())
	h, err := header.Read(file)
	require.NoError(t, err)
	reader, err := block.Open(file, h, page.New(file, h.Format))
	require.NoError(t, err)
	for _, n := range b.Nodes() {
		if n.ID == pst.NIDNameToIDMap {
			m, err := Open(node.New(reader, n.ID, n.Data, n.Sub))
			require.NoError(t, err)
			return m
		}
	}
	t.Fatal("name-to-id map not built")
	return nil
}

func name(prop pstfixture.NamedProperty) Name {
	if prop.Name != "" {
		return ByName(prop.Name)
	}
	return ByID(prop.ID)
}

func namedProperties(n int) []pstfixture.NamedProperty {
	sets := []uuid.UUID{PSMAPI, PSPublicStrings, pstfixture.PSETIDCommon, pstfixture.PSInternetHeads}
	named := make([]pstfixture.NamedProperty, n)
	for i := range named {
		prop := pstfixture.NamedProperty{GUID: sets[i%len(sets)]}
		if i%3 == 0 {
			prop.Name = fmt.Sprintf("x-property-%d", i)
		} else {
			prop.ID = uint32(0x8500 + i)
		}
		named[i] = prop
	}
	return named
}

func TestResolve(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		for _, buckets := range []int{0, 1, 7, 251} {
			named := namedProperties(300)
			m := open(t, format, named, buckets)
			require.Equal(t, len(named), m.Len())

			for i, prop := range named {
				id, err := m.Resolve(prop.GUID, name(prop))
				require.NoError(t, err, "%v %v", prop.GUID, name(prop))
				require.Equal(t, uint16(FirstID+i), id)

				back, err := m.ReverseResolve(id)
				require.NoError(t, err)
				require.Equal(t, Property{GUID: prop.GUID, Name: name(prop), ID: id}, back)
			}

			var n int
			for prop, err := range m.All() {
				require.NoError(t, err)
				require.Equal(t, uint16(FirstID+n), prop.ID)
				n++
			}
			require.Equal(t, len(named), n)
		}
	}
}

func TestResolveAbsent(t *testing.T) {
	named := namedProperties(40)
	m := open(t, pst.Unicode, named, 13)

	for _, test := range []struct {
		guid uuid.UUID
		name Name
	}{
		{PSMAPI, ByID(0x1)},
		{PSPublicStrings, ByName("x-property-1")}, // id-named in the map
		{PSMAPI, ByName("x-property-3")},          // right name, other set
		{PSPublicStrings, ByName("X-Property-1")},
		{uuid.MustParse("11111111-2222-3333-4444-555555555555"), ByID(0x8501)},
		{pstfixture.PSETIDCommon, ByID(0x8500 + 3)}, // string-named at 3
	} {
		_, err := m.Resolve(test.guid, test.name)
		require.ErrorIs(t, err, ErrNamedPropertyNotFound, "%v %v", test.guid, test.name)
	}

	for _, id := range []uint16{0, 0x0037, 0x7FFF, FirstID + 40, 0xFFFF} {
		_, err := m.ReverseResolve(id)
		require.ErrorIs(t, err, ErrNamedPropertyNotFound, "%#x", id)
	}
}

func TestEmpty(t *testing.T) {
	m := open(t, pst.Unicode, nil, 17)
	require.Zero(t, m.Len())
	_, err := m.Resolve(PSMAPI, ByID(0x8000))
	require.ErrorIs(t, err, ErrNamedPropertyNotFound)
}
