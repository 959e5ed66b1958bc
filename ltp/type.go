package ltp

import "fmt"

// Type is a property type (PtypXxx).
type Type uint16

const (
	TypeUnspecified Type = 0x0000
	TypeNull        Type = 0x0001
	TypeInt16       Type = 0x0002
	TypeInt32       Type = 0x0003
	TypeFloat32     Type = 0x0004
	TypeFloat64     Type = 0x0005
	TypeCurrency    Type = 0x0006
	TypeAppTime     Type = 0x0007
	TypeError       Type = 0x000A
	TypeBool        Type = 0x000B
	TypeObject      Type = 0x000D
	TypeInt64       Type = 0x0014
	TypeString8     Type = 0x001E
	TypeUnicode     Type = 0x001F
	TypeTime        Type = 0x0040
	TypeGUID        Type = 0x0048
	TypeServerID    Type = 0x00FB
	TypeRestriction Type = 0x00FD
	TypeRuleAction  Type = 0x00FE
	TypeBinary      Type = 0x0102

	// TypeMulti flags a multi-valued type.
	TypeMulti Type = 0x1000

	TypeMultiInt16    = TypeMulti | TypeInt16
	TypeMultiInt32    = TypeMulti | TypeInt32
	TypeMultiFloat32  = TypeMulti | TypeFloat32
	TypeMultiFloat64  = TypeMulti | TypeFloat64
	TypeMultiCurrency = TypeMulti | TypeCurrency
	TypeMultiAppTime  = TypeMulti | TypeAppTime
	TypeMultiInt64    = TypeMulti | TypeInt64
	TypeMultiString8  = TypeMulti | TypeString8
	TypeMultiUnicode  = TypeMulti | TypeUnicode
	TypeMultiTime     = TypeMulti | TypeTime
	TypeMultiGUID     = TypeMulti | TypeGUID
	TypeMultiBinary   = TypeMulti | TypeBinary
)

var typeNames = map[Type]string{
	TypeUnspecified: "Unspecified",
	TypeNull:        "Null",
	TypeInt16:       "Int16",
	TypeInt32:       "Int32",
	TypeFloat32:     "Float32",
	TypeFloat64:     "Float64",
	TypeCurrency:    "Currency",
	TypeAppTime:     "AppTime",
	TypeError:       "Error",
	TypeBool:        "Bool",
	TypeObject:      "Object",
	TypeInt64:       "Int64",
	TypeString8:     "String8",
	TypeUnicode:     "Unicode",
	TypeTime:        "Time",
	TypeGUID:        "GUID",
	TypeServerID:    "ServerID",
	TypeRestriction: "Restriction",
	TypeRuleAction:  "RuleAction",
	TypeBinary:      "Binary",
}

func (typ Type) String() string {
	if typ.IsMulti() {
		return "Multi" + typ.Base().String()
	}
	if name, ok := typeNames[typ]; ok {
		return name
	}
	return fmt.Sprintf("Type(%#04x)", uint16(typ))
}

// IsMulti reports whether typ is multi-valued.
func (typ Type) IsMulti() bool {
	return typ&TypeMulti != 0
}

// Base returns the element type of a multi-valued type.
func (typ Type) Base() Type {
	return typ &^ TypeMulti
}

// Size returns the width of a fixed-size value, or 0 for variable-size types.
func (typ Type) Size() int {
	switch typ {
	case TypeNull:
		return 0
	case TypeBool:
		return 1
	case TypeInt16:
		return 2
	case TypeInt32, TypeFloat32, TypeError:
		return 4
	case TypeInt64, TypeFloat64, TypeCurrency, TypeAppTime, TypeTime:
		return 8
	case TypeGUID:
		return 16
	}
	return 0
}

// inline reports whether a property context stores the value in the record.
func (typ Type) inline() bool {
	switch typ {
	case TypeNull, TypeInt16, TypeInt32, TypeFloat32, TypeError, TypeBool:
		return true
	}
	return false
}

// cellSize returns the width of a table context cell of typ: fixed values
// up to 8 bytes are stored in the row, others as a 4-byte HNID.
func (typ Type) cellSize() int {
	switch size := typ.Size(); {
	case typ == TypeNull:
		return 4
	case size > 0 && size <= 8:
		return size
	default:
		return 4
	}
}

// Tag is a property tag: the property id in the high 16 bits and the type
// in the low 16 bits.
type Tag uint32

// MakeTag returns the tag of id and typ.
func MakeTag(id uint16, typ Type) Tag {
	return Tag(uint32(id)<<16 | uint32(typ))
}

// ID returns the property id.
func (tag Tag) ID() uint16 {
	return uint16(tag >> 16)
}

// Type returns the property type.
func (tag Tag) Type() Type {
	return Type(tag)
}

// IsNamed reports whether the id falls in the named property range.
func (tag Tag) IsNamed() bool {
	return tag.ID() >= 0x8000
}

func (tag Tag) String() string {
	return fmt.Sprintf("%#04x:%v", tag.ID(), tag.Type())
}
