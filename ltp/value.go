// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package ltp

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/dacapoday/pst"
)

// Currency is a PtypCurrency value: a count of 1/10000 units.
type Currency int64

// AppTime is a PtypFloatingTime value: days since 1899-12-30.
type AppTime float64

// ErrorCode is a PtypErrorCode value.
type ErrorCode uint32

// Object is a PtypObject value: a subnode and the size of its data.
type Object struct {
	ID   pst.NodeID
	Size uint32
}

// Value is a decoded property value. Value holds, by type:
//
//	Null                     nil
//	Int16, Int32, Int64      int16, int32, int64
//	Float32, Float64         float32, float64
//	Currency, AppTime        Currency, AppTime
//	Error                    ErrorCode
//	Bool                     bool
//	Time                     time.Time (UTC)
//	String8, Unicode         string
//	Binary (and others)      []byte
//	GUID                     uuid.UUID
//	Object                   Object
//	Multi<T>                 a slice of the element type
type Value struct {
	Tag   Tag
	Value any
}

// Type returns the property type.
func (v Value) Type() Type {
	return v.Tag.Type()
}

// Int returns integer values widened to int64.
func (v Value) Int() (int64, bool) {
	switch x := v.Value.(type) {
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case Currency:
		return int64(x), true
	case ErrorCode:
		return int64(x), true
	}
	return 0, false
}

// Float returns floating point values widened to float64.
func (v Value) Float() (float64, bool) {
	switch x := v.Value.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case AppTime:
		return float64(x), true
	}
	return 0, false
}

// Bool returns a Bool value.
func (v Value) Bool() (b bool, ok bool) {
	b, ok = v.Value.(bool)
	return
}

// Time returns a Time value.
func (v Value) Time() (t time.Time, ok bool) {
	t, ok = v.Value.(time.Time)
	return
}

// Text returns a String8 or Unicode value.
func (v Value) Text() (s string, ok bool) {
	s, ok = v.Value.(string)
	return
}

// Bytes returns a Binary value.
func (v Value) Bytes() (b []byte, ok bool) {
	b, ok = v.Value.([]byte)
	return
}

// GUID returns a GUID value.
func (v Value) GUID() (g uuid.UUID, ok bool) {
	g, ok = v.Value.(uuid.UUID)
	return
}

// Object returns an Object value.
func (v Value) Object() (o Object, ok bool) {
	o, ok = v.Value.(Object)
	return
}

func (v Value) String() string {
	switch x := v.Value.(type) {
	case nil:
		return "<null>"
	case []byte:
		return hex.EncodeToString(x)
	case string:
		return fmt.Sprintf("%q", x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case Object:
		return fmt.Sprintf("object(%v, %d bytes)", x.ID, x.Size)
	case [][]byte:
		items := make([]string, len(x))
		for i, b := range x {
			items[i] = hex.EncodeToString(b)
		}
		return "[" + strings.Join(items, " ") + "]"
	default:
		return fmt.Sprint(x)
	}
}

var utf16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeGUID decodes a GUID stored with Data1, Data2 and Data3 little-endian.
func DecodeGUID(b []byte) uuid.UUID {
	var g uuid.UUID
	binary.BigEndian.PutUint32(g[0:], binary.LittleEndian.Uint32(b))
	binary.BigEndian.PutUint16(g[4:], binary.LittleEndian.Uint16(b[4:]))
	binary.BigEndian.PutUint16(g[6:], binary.LittleEndian.Uint16(b[6:]))
	copy(g[8:], b[8:16])
	return g
}

// EncodeGUID is the inverse of DecodeGUID.
func EncodeGUID(g uuid.UUID) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b, binary.BigEndian.Uint32(g[0:]))
	binary.LittleEndian.PutUint16(b[4:], binary.BigEndian.Uint16(g[4:]))
	binary.LittleEndian.PutUint16(b[6:], binary.BigEndian.Uint16(g[6:]))
	copy(b[8:], g[8:])
	return b
}

// fileTimeEpoch is 1601-01-01 in seconds relative to the Unix epoch.
const fileTimeEpoch = -11644473600

// FileTime converts a FILETIME (100 ns ticks since 1601-01-01 UTC).
func FileTime(ticks uint64) time.Time {
	secs := int64(ticks/10_000_000) + fileTimeEpoch
	return time.Unix(secs, int64(ticks%10_000_000)*100).UTC()
}

// DecodeUnicode decodes UTF-16LE text, dropping one trailing NUL.
func DecodeUnicode(b []byte) (string, error) {
	s, err := utf16.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(s), "\x00"), nil
}

// EncodeUnicode encodes s as UTF-16LE without a terminator.
func EncodeUnicode(s string) []byte {
	b, err := utf16.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return b
}

// DecodeString8 decodes text in codepage, dropping trailing NULs.
func DecodeString8(b []byte, codepage encoding.Encoding) (string, error) {
	b = bytes.TrimRight(b, "\x00")
	s, err := codepage.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(s), nil
}

func errValue(typ Type, size int) error {
	return fmt.Errorf("%w: %v value of %d bytes", ErrCorruptHeap, typ, size)
}

// decode converts the stored bytes of a value of typ.
func decode(typ Type, b []byte, codepage encoding.Encoding) (any, error) {
	if typ.IsMulti() {
		return decodeMulti(typ, b, codepage)
	}
	if size := typ.Size(); size > 0 && len(b) < size {
		return nil, errValue(typ, len(b))
	}
	switch typ {
	case TypeNull, TypeUnspecified:
		return nil, nil
	case TypeInt16:
		return int16(binary.LittleEndian.Uint16(b)), nil
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(b)), nil
	case TypeFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case TypeError:
		return ErrorCode(binary.LittleEndian.Uint32(b)), nil
	case TypeBool:
		return b[0] != 0, nil
	case TypeInt64:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case TypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case TypeCurrency:
		return Currency(binary.LittleEndian.Uint64(b)), nil
	case TypeAppTime:
		return AppTime(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case TypeTime:
		return FileTime(binary.LittleEndian.Uint64(b)), nil
	case TypeGUID:
		return DecodeGUID(b), nil
	case TypeObject:
		if len(b) < 8 {
			return nil, errValue(typ, len(b))
		}
		return Object{
			ID:   pst.NodeID(binary.LittleEndian.Uint32(b)),
			Size: binary.LittleEndian.Uint32(b[4:]),
		}, nil
	case TypeString8:
		return DecodeString8(b, codepage)
	case TypeUnicode:
		return DecodeUnicode(b)
	case TypeBinary, TypeServerID, TypeRestriction, TypeRuleAction:
		return b, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, typ)
}

func decodeMulti(typ Type, b []byte, codepage encoding.Encoding) (any, error) {
	base := typ.Base()
	switch base {
	case TypeString8, TypeUnicode, TypeBinary:
		items, err := split(typ, b)
		if err != nil {
			return nil, err
		}
		if base == TypeBinary {
			return items, nil
		}
		values := make([]string, len(items))
		for i, item := range items {
			v, err := decode(base, item, codepage)
			if err != nil {
				return nil, err
			}
			values[i] = v.(string)
		}
		return values, nil
	case TypeGUID:
		if len(b) >= 4 {
			if n := binary.LittleEndian.Uint32(b); 4+16*int(n) == len(b) {
				b = b[4:]
			}
		}
		return fixed(typ, b, 16, DecodeGUID)
	case TypeInt16:
		return fixed(typ, b, 2, func(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) })
	case TypeInt32:
		return fixed(typ, b, 4, func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) })
	case TypeFloat32:
		return fixed(typ, b, 4, func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) })
	case TypeInt64:
		return fixed(typ, b, 8, func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) })
	case TypeFloat64:
		return fixed(typ, b, 8, func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) })
	case TypeCurrency:
		return fixed(typ, b, 8, func(b []byte) Currency { return Currency(binary.LittleEndian.Uint64(b)) })
	case TypeAppTime:
		return fixed(typ, b, 8, func(b []byte) AppTime { return AppTime(math.Float64frombits(binary.LittleEndian.Uint64(b))) })
	case TypeTime:
		return fixed(typ, b, 8, func(b []byte) time.Time { return FileTime(binary.LittleEndian.Uint64(b)) })
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, typ)
}

func fixed[T any](typ Type, b []byte, size int, conv func([]byte) T) ([]T, error) {
	if len(b)%size != 0 {
		return nil, errValue(typ, len(b))
	}
	values := make([]T, len(b)/size)
	for i := range values {
		values[i] = conv(b[i*size:])
	}
	return values, nil
}

// split decodes ulCount, rgulDataOffsets and the items they delimit.
func split(typ Type, b []byte) ([][]byte, error) {
	if len(b) == 0 {
		return [][]byte{}, nil
	}
	if len(b) < 4 {
		return nil, errValue(typ, len(b))
	}
	count := int(binary.LittleEndian.Uint32(b))
	if count > (len(b)-4)/4 {
		return nil, errValue(typ, len(b))
	}
	offsets := make([]int, count+1)
	for i := range count {
		offsets[i] = int(binary.LittleEndian.Uint32(b[4+4*i:]))
	}
	offsets[count] = len(b)
	items := make([][]byte, count)
	for i := range items {
		beg, end := offsets[i], offsets[i+1]
		if beg < 4+4*count || beg > end || end > len(b) {
			return nil, fmt.Errorf("%w: %v item %d at [%d, %d) of %d bytes", ErrCorruptHeap, typ, i, beg, end, len(b))
		}
		items[i] = b[beg:end:end]
	}
	return items, nil
}
