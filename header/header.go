// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package header decodes the PST file header and its ROOT structure.
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/dacapoday/pst"
)

var ErrFileFormat = pst.ErrFileFormat

const (
	Magic       = 0x4E444221 // "!BDN"
	MagicClient = 0x4D53     // "SM"

	VersionUnicode = 23

	UnicodeSize = 564
	ANSISize    = 512

	sentinel = 0x80
)

// CryptMethod is the bCryptMethod field selecting the block cipher.
type CryptMethod uint8

const (
	CryptNone    CryptMethod = 0x00
	CryptPermute CryptMethod = 0x01
	CryptCyclic  CryptMethod = 0x02
)

func (method CryptMethod) String() string {
	switch method {
	case CryptNone:
		return "none"
	case CryptPermute:
		return "permute"
	case CryptCyclic:
		return "cyclic"
	default:
		return fmt.Sprintf("CryptMethod(%#x)", uint8(method))
	}
}

// Header represents the decoded file header.
type Header struct {
	Format         pst.Format  // derived from wVer
	Version        uint16      // wVer
	ClientVersion  uint16      // wVerClient
	PlatformCreate uint8       // bPlatformCreate
	PlatformAccess uint8       // bPlatformAccess
	NextPage       pst.BlockID // bidNextP
	NextBlock      pst.BlockID // bidNextB
	Unique         uint32      // dwUnique
	NodeCounters   [32]uint32  // rgnid
	Root           Root        // ROOT
	CryptMethod    CryptMethod // bCryptMethod
}

// Root holds the file size, allocation state and BTree roots.
type Root struct {
	FileEOF    uint64       // ibFileEof
	AMapLast   uint64       // ibAMapLast
	AMapFree   uint64       // cbAMapFree
	PMapFree   uint64       // cbPMapFree
	NodeBTree  pst.BlockRef // BREFNBT
	BlockBTree pst.BlockRef // BREFBBT
	AMapValid  uint8        // fAMapValid
}

// MaxDepth bounds the height of any BTree in the file: log2 of the number of
// pages below ibFileEof, plus one for the leaf level.
func (header *Header) MaxDepth() int {
	pages := header.Root.FileEOF / pst.PageSize
	if pages < 2 {
		return 1
	}
	return bits.Len64(pages) + 1
}

// Read reads and decodes the header at offset 0 of r.
func Read(r io.ReaderAt) (header *Header, err error) {
	buf := make([]byte, UnicodeSize)
	n, err := r.ReadAt(buf, 0)
	if n < ANSISize {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		err = fmt.Errorf("read header failed: %w: %w", ErrFileFormat, err)
		return
	}
	err = nil

	header = new(Header)
	if err = Decode(buf[:n], header); err != nil {
		header = nil
	}
	return
}

// Decode decodes buf into header and validates magic, version and CRCs.
func Decode(buf []byte, header *Header) (err error) {
	if len(buf) < ANSISize {
		return fmt.Errorf("%w: header too short (%d bytes)", ErrFileFormat, len(buf))
	}
	if magic := binary.LittleEndian.Uint32(buf); magic != Magic {
		return fmt.Errorf("%w: bad magic %#x", ErrFileFormat, magic)
	}
	if magic := binary.LittleEndian.Uint16(buf[8:]); magic != MagicClient {
		return fmt.Errorf("%w: bad client magic %#x", ErrFileFormat, magic)
	}
	if sum, chksum := binary.LittleEndian.Uint32(buf[4:]), pst.Checksum(buf[8:8+471]); sum != chksum {
		return fmt.Errorf("%w: partial checksum %#x, expected %#x", ErrFileFormat, sum, chksum)
	}

	header.Version = binary.LittleEndian.Uint16(buf[10:])
	header.ClientVersion = binary.LittleEndian.Uint16(buf[12:])
	header.PlatformCreate = buf[14]
	header.PlatformAccess = buf[15]
	switch {
	case header.Version == 14 || header.Version == 15:
		header.Format = pst.ANSI
		return decodeANSI(buf, header)
	case header.Version == VersionUnicode:
		header.Format = pst.Unicode
		return decodeUnicode(buf, header)
	default:
		return fmt.Errorf("%w: unsupported version %d", ErrFileFormat, header.Version)
	}
}

func decodeUnicode(buf []byte, header *Header) (err error) {
	if len(buf) < UnicodeSize {
		return fmt.Errorf("%w: unicode header too short (%d bytes)", ErrFileFormat, len(buf))
	}
	if sum, chksum := binary.LittleEndian.Uint32(buf[524:]), pst.Checksum(buf[8:524]); sum != chksum {
		return fmt.Errorf("%w: full checksum %#x, expected %#x", ErrFileFormat, sum, chksum)
	}

	header.NextPage = pst.BlockID(binary.LittleEndian.Uint64(buf[32:]))
	header.Unique = binary.LittleEndian.Uint32(buf[40:])
	decodeNodeCounters(buf[44:172], header)

	root := buf[180:252]
	header.Root = Root{
		FileEOF:  binary.LittleEndian.Uint64(root[4:]),
		AMapLast: binary.LittleEndian.Uint64(root[12:]),
		AMapFree: binary.LittleEndian.Uint64(root[20:]),
		PMapFree: binary.LittleEndian.Uint64(root[28:]),
		NodeBTree: pst.BlockRef{
			ID:     pst.BlockID(binary.LittleEndian.Uint64(root[36:])),
			Offset: binary.LittleEndian.Uint64(root[44:]),
		},
		BlockBTree: pst.BlockRef{
			ID:     pst.BlockID(binary.LittleEndian.Uint64(root[52:])),
			Offset: binary.LittleEndian.Uint64(root[60:]),
		},
		AMapValid: root[68],
	}

	if buf[512] != sentinel {
		return fmt.Errorf("%w: bad sentinel %#x", ErrFileFormat, buf[512])
	}
	header.NextBlock = pst.BlockID(binary.LittleEndian.Uint64(buf[516:]))
	return decodeCryptMethod(buf[513], header)
}

func decodeANSI(buf []byte, header *Header) (err error) {
	header.NextBlock = pst.BlockID(binary.LittleEndian.Uint32(buf[24:]))
	header.NextPage = pst.BlockID(binary.LittleEndian.Uint32(buf[28:]))
	header.Unique = binary.LittleEndian.Uint32(buf[32:])
	decodeNodeCounters(buf[36:164], header)

	root := buf[164:204]
	header.Root = Root{
		FileEOF:  uint64(binary.LittleEndian.Uint32(root[4:])),
		AMapLast: uint64(binary.LittleEndian.Uint32(root[8:])),
		AMapFree: uint64(binary.LittleEndian.Uint32(root[12:])),
		PMapFree: uint64(binary.LittleEndian.Uint32(root[16:])),
		NodeBTree: pst.BlockRef{
			ID:     pst.BlockID(binary.LittleEndian.Uint32(root[20:])),
			Offset: uint64(binary.LittleEndian.Uint32(root[24:])),
		},
		BlockBTree: pst.BlockRef{
			ID:     pst.BlockID(binary.LittleEndian.Uint32(root[28:])),
			Offset: uint64(binary.LittleEndian.Uint32(root[32:])),
		},
		AMapValid: root[36],
	}

	if buf[460] != sentinel {
		return fmt.Errorf("%w: bad sentinel %#x", ErrFileFormat, buf[460])
	}
	return decodeCryptMethod(buf[461], header)
}

func decodeNodeCounters(buf []byte, header *Header) {
	for i := range header.NodeCounters {
		header.NodeCounters[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
}

func decodeCryptMethod(b byte, header *Header) error {
	switch method := CryptMethod(b); method {
	case CryptNone, CryptPermute, CryptCyclic:
		header.CryptMethod = method
		return nil
	default:
		return fmt.Errorf("%w: unsupported crypt method %v", ErrFileFormat, method)
	}
}
