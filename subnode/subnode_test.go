package subnode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/pst"
	pstblock "github.com/dacapoday/pst/block"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/pstfixture"
	"github.com/dacapoday/pst/mem"
	"github.com/dacapoday/pst/page"
)

func open(t *testing.T, b *pstfixture.Builder) *pstblock.Reader {
	t.Helper()
	file := mem.New(b.Build())
	h, err := header.Read(file)
	require.NoError(t, err)
	reader, err := pstblock.Open(file, h, page.New(file, h.Format))
	require.NoError(t, err)
	return reader
}

func entries(b *pstfixture.Builder, n int) []pstfixture.SubnodeEntry {
	list := make([]pstfixture.SubnodeEntry, n)
	for i := range list {
		list[i] = pstfixture.SubnodeEntry{
			ID:   pst.MakeNodeID(pst.NodeTypeAttachment, uint32(n-i)),
			Data: b.AddBlock([]byte{byte(i)}),
		}
	}
	return list
}

func TestTree(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		for _, leafSize := range []int{0, 3} {
			b := pstfixture.New(format, header.CryptNone)
			list := entries(b, 10)
			root := b.AddSubnodeTree(list, leafSize)
			tree := New(open(t, b), root)

			for _, want := range list {
				got, err := tree.Find(want.ID)
				require.NoError(t, err)
				require.Equal(t, Entry{ID: want.ID, Data: want.Data, Sub: want.Sub}, got)
			}
			_, err := tree.Find(pst.MakeNodeID(pst.NodeTypeAttachment, 99))
			require.ErrorIs(t, err, ErrNodeNotFound)
			_, err = tree.Find(1)
			require.ErrorIs(t, err, ErrNodeNotFound)

			var ids []pst.NodeID
			for entry, err := range tree.All() {
				require.NoError(t, err)
				ids = append(ids, entry.ID)
			}
			require.Len(t, ids, len(list))
			require.IsIncreasing(t, ids)
		}
	}
}

func TestEmptyTree(t *testing.T) {
	tree := New(nil, 0)
	_, err := tree.Find(0x21)
	require.ErrorIs(t, err, ErrNodeNotFound)
	for range tree.All() {
		t.Fatal("empty tree yielded an entry")
	}
}

func TestCorruptTree(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptNone)
	notSubnode := b.AddInternalBlock([]byte{0x01, 0x01, 0, 0, 0, 0, 0, 0})
	overrun := b.AddInternalBlock([]byte{0x02, 0x00, 0x09, 0x00, 0, 0, 0, 0})
	leaf := b.AddSubnodes(entries(b, 2))
	// SIBLOCK whose child is itself an SIBLOCK
	inner := b.AddInternalBlock(siblock(0x21, leaf))
	deep := b.AddInternalBlock(siblock(0x21, inner))
	reader := open(t, b)

	for _, root := range []pst.BlockID{notSubnode, overrun} {
		_, err := New(reader, root).Find(0x21)
		require.ErrorIs(t, err, ErrCorruptBlock)
	}
	_, err := New(reader, deep).Find(0x25)
	require.ErrorIs(t, err, ErrCorruptBlock)
}

func siblock(nid pst.NodeID, child pst.BlockID) []byte {
	buf := []byte{0x02, 0x01, 0x01, 0x00, 0, 0, 0, 0}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(nid))
	return binary.LittleEndian.AppendUint64(buf, uint64(child))
}
