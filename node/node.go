// Package node joins the data tree and the subnode tree of a node, the unit
// the property and table contexts are decoded from.
package node

import (
	"fmt"
	"iter"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/overflow"
	"github.com/dacapoday/pst/subnode"
)

// BlockReader reads decoded block payloads, see block.Reader.
type BlockReader interface {
	ReadBlock(bid pst.BlockID) ([]byte, error)
	Format() pst.Format
}

// Node is a node or subnode: its data tree and its subnode tree.
type Node struct {
	reader   BlockReader
	id       pst.NodeID
	data     pst.BlockID
	subnodes *subnode.Tree
}

// New returns the node id whose data tree is rooted at data and whose
// subnode tree is rooted at sub (zero for none).
func New(reader BlockReader, id pst.NodeID, data, sub pst.BlockID) *Node {
	return &Node{
		reader:   reader,
		id:       id,
		data:     data,
		subnodes: subnode.New(reader, sub),
	}
}

// ID returns the NodeID.
func (node *Node) ID() pst.NodeID {
	return node.id
}

// Data returns the data tree root.
func (node *Node) Data() pst.BlockID {
	return node.data
}

// Sub returns the subnode tree root, zero for none.
func (node *Node) Sub() pst.BlockID {
	return node.subnodes.Root()
}

// Format returns the layout variant of the file the node belongs to.
func (node *Node) Format() pst.Format {
	return node.reader.Format()
}

// Blocks returns the data blocks of the node in order.
func (node *Node) Blocks() ([][]byte, error) {
	if node.data == 0 {
		return nil, fmt.Errorf("node(%v) has no data: %w", node.id, pst.ErrCorruptBlock)
	}
	blocks, err := overflow.Blocks(node.reader, node.data)
	if err != nil {
		return nil, fmt.Errorf("read node(%v) data failed: %w", node.id, err)
	}
	return blocks, nil
}

// Subnode returns the subnode nid of this node.
func (node *Node) Subnode(nid pst.NodeID) (*Node, error) {
	entry, err := node.subnodes.Find(nid)
	if err != nil {
		return nil, fmt.Errorf("node(%v): %w", node.id, err)
	}
	return New(node.reader, entry.ID, entry.Data, entry.Sub), nil
}

// SubnodeBlocks returns the data blocks of the subnode nid.
func (node *Node) SubnodeBlocks(nid pst.NodeID) ([][]byte, error) {
	sub, err := node.Subnode(nid)
	if err != nil {
		return nil, err
	}
	return sub.Blocks()
}

// Subnodes returns an iterator over the entries of the subnode tree.
func (node *Node) Subnodes() iter.Seq2[subnode.Entry, error] {
	return node.subnodes.All()
}
