// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package crypt implements the reversible byte transforms applied to
// external data blocks.
//
// The transform is selected once per file by the header's bCryptMethod and
// keyed per block by the low 32 bits of the BlockID. Every Cipher is a pure
// function of (data, key) and is safe for concurrent use.
package crypt

import (
	"fmt"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/header"
)

// Cipher transforms block payloads in place.
type Cipher interface {
	Encode(data []byte, key uint32)
	Decode(data []byte, key uint32)
	Method() header.CryptMethod
}

var (
	None    Cipher = none{}
	Permute Cipher = permute{}
	Cyclic  Cipher = cyclic{}
)

// New returns the Cipher for method.
func New(method header.CryptMethod) (Cipher, error) {
	switch method {
	case header.CryptNone:
		return None, nil
	case header.CryptPermute:
		return Permute, nil
	case header.CryptCyclic:
		return Cyclic, nil
	default:
		return nil, fmt.Errorf("%w: unsupported crypt method %v", pst.ErrFileFormat, method)
	}
}

// Key returns the cipher key of a block.
func Key(bid pst.BlockID) uint32 {
	return uint32(bid)
}

type none struct{}

func (none) Encode([]byte, uint32)      {}
func (none) Decode([]byte, uint32)      {}
func (none) Method() header.CryptMethod { return header.CryptNone }

type permute struct{}

func (permute) Encode(data []byte, _ uint32) {
	for i, b := range data {
		data[i] = tableR[b]
	}
}

func (permute) Decode(data []byte, _ uint32) {
	for i, b := range data {
		data[i] = tableI[b]
	}
}

func (permute) Method() header.CryptMethod { return header.CryptPermute }

type cyclic struct{}

// Encode and Decode are the same three-rotor transform.
func (cyclic) Encode(data []byte, key uint32) { cycle(data, key) }
func (cyclic) Decode(data []byte, key uint32) { cycle(data, key) }

func (cyclic) Method() header.CryptMethod { return header.CryptCyclic }

func cycle(data []byte, key uint32) {
	w := uint16(key ^ key>>16)
	for i, b := range data {
		lo, hi := byte(w), byte(w>>8)
		b += lo
		b = tableR[b]
		b += hi
		b = tableS[b]
		b -= hi
		b = tableI[b]
		b -= lo
		data[i] = b
		w++
	}
}
