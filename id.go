// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package pst

import "fmt"

// NodeID identifies a node. The low 5 bits hold the NodeType and the
// remaining bits the index.
type NodeID uint32

// NodeType is the type field of a NodeID.
type NodeType uint8

const (
	NodeTypeHID                 NodeType = 0x00
	NodeTypeInternal            NodeType = 0x01
	NodeTypeNormalFolder        NodeType = 0x02
	NodeTypeSearchFolder        NodeType = 0x03
	NodeTypeNormalMessage       NodeType = 0x04
	NodeTypeAttachment          NodeType = 0x05
	NodeTypeSearchUpdateQueue   NodeType = 0x06
	NodeTypeSearchCriteria      NodeType = 0x07
	NodeTypeAssocMessage        NodeType = 0x08
	NodeTypeContentsTableIndex  NodeType = 0x0A
	NodeTypeReceiveFolderTable  NodeType = 0x0B
	NodeTypeOutgoingQueueTable  NodeType = 0x0C
	NodeTypeHierarchyTable      NodeType = 0x0D
	NodeTypeContentsTable       NodeType = 0x0E
	NodeTypeAssocContentsTable  NodeType = 0x0F
	NodeTypeSearchContentsTable NodeType = 0x10
	NodeTypeAttachmentTable     NodeType = 0x11
	NodeTypeRecipientTable      NodeType = 0x12
	NodeTypeSearchTableIndex    NodeType = 0x13
	NodeTypeLTP                 NodeType = 0x1F
)

var nodeTypeNames = map[NodeType]string{
	NodeTypeHID:                 "HID",
	NodeTypeInternal:            "Internal",
	NodeTypeNormalFolder:        "NormalFolder",
	NodeTypeSearchFolder:        "SearchFolder",
	NodeTypeNormalMessage:       "NormalMessage",
	NodeTypeAttachment:          "Attachment",
	NodeTypeSearchUpdateQueue:   "SearchUpdateQueue",
	NodeTypeSearchCriteria:      "SearchCriteria",
	NodeTypeAssocMessage:        "AssocMessage",
	NodeTypeContentsTableIndex:  "ContentsTableIndex",
	NodeTypeReceiveFolderTable:  "ReceiveFolderTable",
	NodeTypeOutgoingQueueTable:  "OutgoingQueueTable",
	NodeTypeHierarchyTable:      "HierarchyTable",
	NodeTypeContentsTable:       "ContentsTable",
	NodeTypeAssocContentsTable:  "AssocContentsTable",
	NodeTypeSearchContentsTable: "SearchContentsTable",
	NodeTypeAttachmentTable:     "AttachmentTable",
	NodeTypeRecipientTable:      "RecipientTable",
	NodeTypeSearchTableIndex:    "SearchTableIndex",
	NodeTypeLTP:                 "LTP",
}

func (typ NodeType) String() string {
	if name, ok := nodeTypeNames[typ]; ok {
		return name
	}
	return fmt.Sprintf("NodeType(%#x)", uint8(typ))
}

// IsTable reports whether nodes of typ store a table context rather than a
// property context.
func (typ NodeType) IsTable() bool {
	switch typ {
	case NodeTypeContentsTableIndex, NodeTypeReceiveFolderTable,
		NodeTypeOutgoingQueueTable, NodeTypeHierarchyTable,
		NodeTypeContentsTable, NodeTypeAssocContentsTable,
		NodeTypeSearchContentsTable, NodeTypeAttachmentTable,
		NodeTypeRecipientTable, NodeTypeSearchTableIndex:
		return true
	}
	return false
}

// Well-known node ids.
const (
	NIDMessageStore              NodeID = 0x21
	NIDNameToIDMap               NodeID = 0x61
	NIDNormalFolderTemplate      NodeID = 0xA1
	NIDSearchFolderTemplate      NodeID = 0xC1
	NIDRootFolder                NodeID = 0x122
	NIDSearchManagementQueue     NodeID = 0x1E1
	NIDSearchActivityList        NodeID = 0x201
	NIDSearchDomainObject        NodeID = 0x261
	NIDSearchGathererQueue       NodeID = 0x281
	NIDSearchGathererDescriptor  NodeID = 0x2A1
	NIDSearchGathererFolderQueue NodeID = 0x321
)

// MakeNodeID composes a NodeID from a type and an index.
func MakeNodeID(typ NodeType, index uint32) NodeID {
	return NodeID(index<<5 | uint32(typ&0x1F))
}

// Type returns the type field.
func (nid NodeID) Type() NodeType {
	return NodeType(nid & 0x1F)
}

// Index returns the index field.
func (nid NodeID) Index() uint32 {
	return uint32(nid) >> 5
}

// Sibling returns the node sharing this node's index with another type,
// e.g. the contents table of a folder.
func (nid NodeID) Sibling(typ NodeType) NodeID {
	return nid&^0x1F | NodeID(typ&0x1F)
}

func (nid NodeID) String() string {
	return fmt.Sprintf("%#x", uint32(nid))
}

// BlockID identifies a block or a page. Bit 1 marks internal blocks,
// bit 0 is reserved and ignored on lookup.
type BlockID uint64

// IsInternal reports whether the block holds engine metadata (XBLOCK,
// XXBLOCK, SLBLOCK, SIBLOCK) rather than node data.
func (bid BlockID) IsInternal() bool {
	return bid&0x2 != 0
}

// Index returns the block index.
func (bid BlockID) Index() uint64 {
	return uint64(bid) >> 2
}

// Key returns the value used to search the block BTree.
func (bid BlockID) Key() uint64 {
	return uint64(bid) &^ 0x1
}

func (bid BlockID) String() string {
	return fmt.Sprintf("%#x", uint64(bid))
}

// BlockRef pairs a BlockID with the absolute file offset of the block.
type BlockRef struct {
	ID     BlockID
	Offset uint64
}

func (ref BlockRef) String() string {
	return fmt.Sprintf("{%v@%#x}", ref.ID, ref.Offset)
}
