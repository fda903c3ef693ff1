package pack

import (
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
)

// Type identifies a purchasable bundle of avatar-rendering minutes
type Type string

const (
	TypeStarter Type = "starter"
	TypeCreator Type = "creator"
	TypeStudio  Type = "studio"
)

// ErrInvalidType is returned for a pack type outside the catalog
var ErrInvalidType = shared.NewDomainError("INVALID_PACK_TYPE", "Unknown pack type")

// Definition is the static catalog entry of a pack type
type Definition struct {
	Type       Type
	Minutes    int64
	PriceCents int64
	// ValidityMonths is how long a purchased pack stays usable; 0 means it never expires
	ValidityMonths int
}

var catalog = map[Type]Definition{
	TypeStarter: {Type: TypeStarter, Minutes: 10, PriceCents: 1900, ValidityMonths: 12},
	TypeCreator: {Type: TypeCreator, Minutes: 30, PriceCents: 4900, ValidityMonths: 12},
	TypeStudio:  {Type: TypeStudio, Minutes: 100, PriceCents: 14900},
}

// String returns the string representation of Type
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the pack type is in the catalog
func (t Type) IsValid() bool {
	_, ok := catalog[t]
	return ok
}

// Definition returns the catalog entry for the type
func (t Type) Definition() (Definition, error) {
	def, ok := catalog[t]
	if !ok {
		return Definition{}, ErrInvalidType.WithMessage(fmt.Sprintf("unknown pack type: %q", t))
	}
	return def, nil
}

// ParseType parses a string into a pack Type
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", ErrInvalidType.WithMessage(fmt.Sprintf("unknown pack type: %q", s))
	}
	return t, nil
}

// Catalog returns every pack definition ordered by size
func Catalog() []Definition {
	return []Definition{catalog[TypeStarter], catalog[TypeCreator], catalog[TypeStudio]}
}
