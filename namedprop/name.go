package namedprop

import (
	"fmt"

	"github.com/google/uuid"
)

// Property sets with reserved GUID indexes.
var (
	PSMAPI          = uuid.MustParse("00020328-0000-0000-c000-000000000046")
	PSPublicStrings = uuid.MustParse("00020329-0000-0000-c000-000000000046")
)

// Kind says how a named property is named.
type Kind uint8

const (
	KindID Kind = iota
	KindString
)

// Name is the numeric id or string name of a named property within its
// property set.
type Name struct {
	Kind Kind
	ID   uint32
	Text string
}

// ByID returns a numeric name.
func ByID(id uint32) Name {
	return Name{Kind: KindID, ID: id}
}

// ByName returns a string name.
func ByName(name string) Name {
	return Name{Kind: KindString, Text: name}
}

func (name Name) String() string {
	if name.Kind == KindString {
		return fmt.Sprintf("%q", name.Text)
	}
	return fmt.Sprintf("%#x", name.ID)
}

// Property is one entry of the map: the property set, the name and the
// property id (0x8000 and above) it is mapped to.
type Property struct {
	GUID uuid.UUID
	Name Name
	ID   uint16
}

func (prop Property) String() string {
	return fmt.Sprintf("%#04x {%v %v}", prop.ID, prop.GUID, prop.Name)
}
