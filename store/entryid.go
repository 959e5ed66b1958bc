package store

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dacapoday/pst"
)

var (
	ErrInvalidEntryID = pst.ErrInvalidEntryID
	ErrForeignEntryID = pst.ErrForeignEntryID
)

// EntryIDSize is the size of an EntryID: flags, the store record key and
// the NodeID.
const EntryIDSize = 24

const propRecordKey = 0x0FF9

// RecordKey returns the record key of the message store, the GUID every
// EntryID of this file carries.
func (s *Store[F]) RecordKey() (uuid.UUID, error) {
	return s.recordKey.get(func() (key uuid.UUID, err error) {
		pc, err := s.OpenNode(pst.NIDMessageStore)
		if err != nil {
			return
		}
		v, err := pc.Get(propRecordKey)
		if err != nil {
			return
		}
		b, ok := v.Bytes()
		if !ok || len(b) != len(key) {
			err = fmt.Errorf("message store record key %v: %w", v, pst.ErrCorruptHeap)
			return
		}
		copy(key[:], b)
		return
	})
}

// EntryID returns the EntryID of nid.
func (s *Store[F]) EntryID(nid pst.NodeID) ([]byte, error) {
	key, err := s.RecordKey()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4, EntryIDSize)
	buf = append(buf, key[:]...)
	return binary.LittleEndian.AppendUint32(buf, uint32(nid)), nil
}

// ResolveEntryID returns the NodeID an EntryID refers to. The node must
// exist in this store.
func (s *Store[F]) ResolveEntryID(entryID []byte) (nid pst.NodeID, err error) {
	if len(entryID) < EntryIDSize {
		err = fmt.Errorf("entry id of %d bytes: %w", len(entryID), ErrInvalidEntryID)
		return
	}
	if flags := binary.LittleEndian.Uint32(entryID); flags != 0 {
		err = fmt.Errorf("entry id flags %#x: %w", flags, ErrInvalidEntryID)
		return
	}
	key, err := s.RecordKey()
	if err != nil {
		return
	}
	if !bytes.Equal(entryID[4:20], key[:]) {
		err = fmt.Errorf("entry id of store %x: %w", entryID[4:20], ErrForeignEntryID)
		return
	}
	nid = pst.NodeID(binary.LittleEndian.Uint32(entryID[20:]))
	if _, err = s.Node(nid); err != nil {
		nid = 0
	}
	return
}

// ResolveEntryIDString resolves either the hex form of an EntryID or a bare
// hex NodeID, with or without a 0x prefix.
func (s *Store[F]) ResolveEntryIDString(text string) (nid pst.NodeID, err error) {
	text = strings.TrimSpace(text)
	digits := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	switch {
	case len(digits) == 2*EntryIDSize:
		var entryID []byte
		if entryID, err = hex.DecodeString(digits); err != nil {
			err = fmt.Errorf("entry id %q: %w: %w", text, ErrInvalidEntryID, err)
			return
		}
		return s.ResolveEntryID(entryID)
	case len(digits) > 0 && len(digits) <= 8:
		var v uint64
		if v, err = strconv.ParseUint(digits, 16, 32); err != nil {
			err = fmt.Errorf("node id %q: %w: %w", text, ErrInvalidEntryID, err)
			return
		}
		nid = pst.NodeID(v)
		if _, err = s.Node(nid); err != nil {
			nid = 0
		}
		return
	}
	err = fmt.Errorf("entry id %q: %w", text, ErrInvalidEntryID)
	return
}
