// Package ltp decodes the lists, tables and properties layer: property
// contexts (a BTree-on-Heap of property records) and table contexts (a row
// matrix described by column descriptors) stored in a node's heap.
package ltp

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/heap"
)

var (
	ErrCorruptHeap      = pst.ErrCorruptHeap
	ErrCorruptTable     = pst.ErrCorruptTable
	ErrPropertyNotFound = pst.ErrPropertyNotFound
	ErrRowOutOfRange    = pst.ErrRowOutOfRange
	ErrUnsupportedType  = pst.ErrUnsupportedType
)

// Node is the storage a context is decoded from, see node.Node.
type Node interface {
	ID() pst.NodeID
	// Blocks returns the node's data blocks in order.
	Blocks() ([][]byte, error)
	// SubnodeBlocks returns the data blocks of one of the node's subnodes.
	SubnodeBlocks(nid pst.NodeID) ([][]byte, error)
}

type options struct {
	codepage encoding.Encoding
}

// Option configures how values are decoded.
type Option func(*options)

// WithCodepage sets the code page of String8 values. The default is
// Windows-1252.
func WithCodepage(codepage encoding.Encoding) Option {
	return func(o *options) {
		if codepage != nil {
			o.codepage = codepage
		}
	}
}

func newOptions(opts []Option) options {
	o := options{codepage: charmap.Windows1252}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func concat(blocks [][]byte) []byte {
	if len(blocks) == 1 {
		return blocks[0]
	}
	var size int
	for _, block := range blocks {
		size += len(block)
	}
	data := make([]byte, 0, size)
	for _, block := range blocks {
		data = append(data, block...)
	}
	return data
}

// hnidBytes returns the bytes an HNID refers to: a heap item, the data of a
// subnode or nothing for zero.
func hnidBytes(node Node, hn *heap.Heap, hnid uint32) ([]byte, error) {
	switch {
	case hnid == 0:
		return []byte{}, nil
	case heap.IsHID(hnid):
		return hn.Item(heap.ID(hnid))
	}
	blocks, err := hnidBlocks(node, hnid)
	if err != nil {
		return nil, err
	}
	return concat(blocks), nil
}

func hnidBlocks(node Node, nid uint32) ([][]byte, error) {
	return node.SubnodeBlocks(pst.NodeID(nid))
}
