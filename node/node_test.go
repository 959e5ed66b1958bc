package node

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

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
	require.NoError(t, err)
	reader, err := block.Open(file, h, page.New(file, h.Format))
	require.NoError(t, err)
	return reader
}

func TestNode(t *testing.T) {
	for _, format := range []pst.Format{pst.ANSI, pst.Unicode} {
		b := pstfixture.New(format, header.CryptCyclic)
		data := bytes.Repeat([]byte("node data "), 2000)
		first := []byte("first subnode")
		second := bytes.Repeat([]byte{0xAB}, 9000)
		firstID := pst.MakeNodeID(pst.NodeTypeLTP, 1)
		secondID := pst.MakeNodeID(pst.NodeTypeAttachment, 2)
		sub := b.AddSubnodes([]pstfixture.SubnodeEntry{
			{ID: firstID, Data: b.AddData(first)},
			{ID: secondID, Data: b.AddData(second)},
		})
		root := b.AddData(data)
		reader := open(t, b)

		n := New(reader, pst.NIDRootFolder, root, sub)
		require.Equal(t, pst.NIDRootFolder, n.ID())
		require.Equal(t, root, n.Data())
		require.Equal(t, sub, n.Sub())
		require.Equal(t, format, n.Format())

		blocks, err := n.Blocks()
		require.NoError(t, err)
		require.Greater(t, len(blocks), 1)
		require.Equal(t, data, bytes.Join(blocks, nil))

		blocks, err = n.SubnodeBlocks(firstID)
		require.NoError(t, err)
		require.Equal(t, [][]byte{first}, blocks)
		s, err := n.Subnode(secondID)
		require.NoError(t, err)
		require.Equal(t, secondID, s.ID())
		blocks, err = s.Blocks()
		require.NoError(t, err)
		require.Equal(t, second, bytes.Join(blocks, nil))

		_, err = n.Subnode(pst.MakeNodeID(pst.NodeTypeLTP, 3))
		require.ErrorIs(t, err, pst.ErrNodeNotFound)

		var ids []pst.NodeID
		for entry, err := range n.Subnodes() {
			require.NoError(t, err)
			ids = append(ids, entry.ID)
		}
		require.Equal(t, []pst.NodeID{firstID, secondID}, ids)
	}
}

func TestNodeWithoutData(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptNone)
	n := New(open(t, b), pst.NIDRootFolder, 0, 0)
	_, err := n.Blocks()
	require.ErrorIs(t, err, pst.ErrCorruptBlock)
	_, err = n.SubnodeBlocks(pst.MakeNodeID(pst.NodeTypeLTP, 1))
	require.ErrorIs(t, err, pst.ErrNodeNotFound)

	for range n.Subnodes() {
		t.Fatal("empty subnode tree yields entries")
	}
}
