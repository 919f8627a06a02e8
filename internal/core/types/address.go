package types

import "fmt"

// AddressMode tells how a backend locates its entries
type AddressMode int

const (
	// AddressPath is a slash separated path
	AddressPath AddressMode = iota

	// AddressID is an opaque backend identifier
	AddressID
)

func (m AddressMode) String() string {
	switch m {
	case AddressPath:
		return "path"
	case AddressID:
		return "id"
	default:
		return "unknown"
	}
}

// Address points at an entry within a single provider.
// Translating addresses between providers is left to callers.
type Address struct {
	Mode  AddressMode `json:"mode"`
	Value string      `json:"value"`
}

// Path returns a path address
func Path(p string) Address {
	return Address{Mode: AddressPath, Value: p}
}

// ID returns an opaque id address
func ID(id string) Address {
	return Address{Mode: AddressID, Value: id}
}

// IsZero reports whether the address is unset
func (a Address) IsZero() bool {
	return a.Value == ""
}

func (a Address) String() string {
	if a.Mode == AddressID {
		return fmt.Sprintf("id:%s", a.Value)
	}
	return a.Value
}
