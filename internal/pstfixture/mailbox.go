package pstfixture

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/header"
)

// Node ids used by Mailbox.
const (
	NIDInbox         = pst.NIDRootFolder
	NIDHierarchy     = pst.NodeID(0x12D)
	NIDContents      = pst.NodeID(0x12E)
	NIDAssocContents = pst.NodeID(0x12F)
	NIDMessage       = pst.NodeID(0x144)
	NIDRecipients    = pst.NodeID(0x692)
	NIDAttachments   = pst.NodeID(0x671)
	NIDAttachment    = pst.NodeID(0x8025)
)

// Mailbox describes a small mailbox: a store, a name map, an Inbox with its
// tables and one message with a recipient and an attachment.
type Mailbox struct {
	RecordKey   uuid.UUID
	DisplayName string
	Subject     string
	Body        string
	Delivered   time.Time
	Attachment  []byte
	Named       []NamedProperty
	DensityList *DensityList
}

// NewMailbox returns the default mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		RecordKey:   uuid.MustParse("8f7b5c2a-61d4-4e8b-9a0c-3b2e1d4f5a6b"),
		DisplayName: "Personal Folders",
		Subject:     "Hello",
		Body:        strings.Repeat("The quick brown fox jumps over the lazy dog. ", 300),
		Delivered:   time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC),
		Attachment:  []byte("attachment payload"),
		Named: []NamedProperty{
			{GUID: PSETIDCommon, ID: 0x8501},
			{GUID: PSPublicStrings, Name: "Keywords"},
			{GUID: PSMAPI, ID: 0x0037},
			{GUID: PSInternetHeads, Name: "x-mailer"},
			{GUID: PSETIDCommon, ID: 0x8503},
		},
		DensityList: &DensityList{
			BackfillComplete: true,
			CurrentPage:      1,
			Entries:          []DensityListEntry{{Page: 1, FreeSlots: 120}, {Page: 0x3, FreeSlots: 0xFFF}},
		},
	}
}

// EntryID builds the 24-byte entry id of nid in the store with recordKey.
func EntryID(recordKey uuid.UUID, nid pst.NodeID) []byte {
	buf := make([]byte, 4, 24)
	buf = append(buf, recordKey[:]...)
	return binary.LittleEndian.AppendUint32(buf, uint32(nid))
}

// Build writes the mailbox and returns the builder and the file image.
func (m *Mailbox) Build(format pst.Format, method header.CryptMethod) (*Builder, []byte) {
	b := New(format, method)
	b.DensityList = m.DensityList

	store := b.PropertyContext([]Property{
		Binary(0x0FF9, m.RecordKey[:]),
		String(0x3001, m.DisplayName),
		Binary(0x35E0, EntryID(m.RecordKey, NIDInbox)),
	})
	b.AddNode(pst.NIDMessageStore, 0, store)
	b.AddNode(pst.NIDNameToIDMap, 0, b.NameToIDMap(m.Named, 251))

	inbox := b.PropertyContext([]Property{
		String(0x3001, "Inbox"),
		Int32(0x3602, 1),
		Int32(0x3603, 1),
		Bool(0x360A, false),
		String(0x3613, "IPF.Note"),
	})
	b.AddNode(NIDInbox, NIDInbox, inbox)
	b.AddNode(NIDHierarchy, NIDInbox, b.TableContext([]Column{
		{0x3001, TypeUnicode}, {0x3602, TypeInt32}, {0x360A, TypeBool},
	}, nil, 0))

	contents := []Column{
		{0x001A, TypeUnicode}, {0x0017, TypeInt32}, {0x0037, TypeUnicode},
		{0x0E06, TypeTime}, {0x0E07, TypeInt32}, {0x0E08, TypeInt32},
	}
	b.AddNode(NIDContents, NIDInbox, b.TableContext(contents, []Row{{
		ID: uint32(NIDMessage),
		Values: []Property{
			String(0x001A, "IPM.Note"),
			Int32(0x0017, 1),
			String(0x0037, m.Subject),
			Time(0x0E06, m.Delivered),
			Int32(0x0E07, 0x01),
			Int32(0x0E08, int32(len(m.Body))),
		},
	}}, 0))
	b.AddNode(NIDAssocContents, NIDInbox, b.TableContext(contents, nil, 0))

	attachment := b.PropertyContext([]Property{
		Int32(0x0E20, int32(len(m.Attachment))),
		Binary(0x3701, m.Attachment),
		String(0x3704, "notes.txt"),
		Int32(0x3705, 1),
	})
	recipients := b.TableContext([]Column{
		{0x0C15, TypeInt32}, {0x3001, TypeUnicode}, {0x3003, TypeUnicode},
	}, []Row{{
		ID: 0,
		Values: []Property{
			Int32(0x0C15, 1),
			String(0x3001, "Ada Lovelace"),
			String(0x3003, "ada@example.com"),
		},
	}}, 0)
	attachments := b.TableContext([]Column{
		{0x0E20, TypeInt32}, {0x3704, TypeUnicode}, {0x3705, TypeInt32},
	}, []Row{{
		ID: uint32(NIDAttachment),
		Values: []Property{
			Int32(0x0E20, int32(len(m.Attachment))),
			String(0x3704, "notes.txt"),
			Int32(0x3705, 1),
		},
	}}, 0)

	message := b.PropertyContext([]Property{
		String(0x001A, "IPM.Note"),
		Int32(0x0017, 1),
		String(0x0037, m.Subject),
		Time(0x0E06, m.Delivered),
		Int32(0x0E07, 0x01),
		String(0x1000, m.Body),
		Int32(0x8000, 15),
		String(0x8003, "pstlens"),
	})
	message.Subnodes = append(message.Subnodes,
		b.Subnode(NIDRecipients, recipients),
		b.Subnode(NIDAttachments, attachments),
		b.Subnode(NIDAttachment, attachment),
	)
	b.AddNode(NIDMessage, NIDInbox, message)

	return b, b.Build()
}
