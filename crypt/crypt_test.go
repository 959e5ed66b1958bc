package crypt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/header"
)

func TestTables(t *testing.T) {
	var seen [256]bool
	for i := range 256 {
		if tableI[tableR[i]] != byte(i) {
			t.Fatalf("tableI[tableR[%d]] = %d", i, tableI[tableR[i]])
		}
		if tableS[tableS[i]] != byte(i) {
			t.Fatalf("tableS is not an involution at %d", i)
		}
		seen[tableR[i]] = true
	}
	for i, ok := range seen {
		if !ok {
			t.Fatalf("tableR misses %d", i)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	plain := make([]byte, 1000)
	for i := range plain {
		plain[i] = byte(i * 7)
	}

	for _, cipher := range []Cipher{None, Permute, Cyclic} {
		for _, key := range []uint32{0, 1, 0x12345678, 0xFFFFFFFF} {
			data := append([]byte(nil), plain...)
			cipher.Encode(data, key)
			if cipher != None && bytes.Equal(data, plain) {
				t.Errorf("%v: encode(key=%#x) left data unchanged", cipher.Method(), key)
			}
			cipher.Decode(data, key)
			if !bytes.Equal(data, plain) {
				t.Errorf("%v: decode(encode(x)) != x for key %#x", cipher.Method(), key)
			}
		}
	}
}

func TestPermuteKnownValues(t *testing.T) {
	data := []byte{0x00, 0x01, 0xFF}
	Permute.Encode(data, 0)
	if want := []byte{0x41, 0x36, 0x3d}; !bytes.Equal(data, want) {
		t.Fatalf("Permute.Encode = %x, want %x", data, want)
	}
}

func TestCyclicKeyed(t *testing.T) {
	a := []byte("same payload")
	b := []byte("same payload")
	Cyclic.Encode(a, 4)
	Cyclic.Encode(b, 8)
	if bytes.Equal(a, b) {
		t.Fatal("cyclic cipher ignores the key")
	}
}

func TestNew(t *testing.T) {
	for method, want := range map[header.CryptMethod]Cipher{
		header.CryptNone:    None,
		header.CryptPermute: Permute,
		header.CryptCyclic:  Cyclic,
	} {
		got, err := New(method)
		if err != nil || got != want {
			t.Errorf("New(%v) = %v, %v", method, got, err)
		}
	}

	if _, err := New(0x10); !errors.Is(err, pst.ErrFileFormat) {
		t.Errorf("New(0x10) error = %v, want ErrFileFormat", err)
	}
}
