// Package property implements the property host and client facades of
// spec.md §4.6-§4.10: the metadata catalog, value store, Common Rules
// JSON header codec, chunked subscription fan-out, and the standard
// typed properties.
package property

import "midici/internal/ciconst"

// CanSet enumerates the legal values of PropertyMetadata.CanSet.
type CanSet string

const (
	CanSetNone    CanSet = "none"
	CanSetFull    CanSet = "full"
	CanSetPartial CanSet = "partial"
)

// Column is one entry of PropertyMetadata.Columns.
type Column struct {
	Property string
	Link     string
	Title    string
}

// Metadata describes one property in the catalog, per spec.md §3.
type Metadata struct {
	PropertyID     string
	CanGet         bool
	CanSet         CanSet
	CanSubscribe   bool
	RequireResID   bool
	MediaTypes     []string
	Encodings      []string
	Schema         string
	CanPaginate    bool
	Columns        []Column
	Originator     ciconst.Originator
}

// builtinMetadata returns the always-present metadata for a built-in
// property ID, used both to seed the catalog and to recognize a set
// target as read-only.
func builtinMetadata(id string) Metadata {
	return Metadata{
		PropertyID:   id,
		CanGet:       true,
		CanSet:       CanSetNone,
		CanSubscribe: false,
		MediaTypes:   []string{"application/json"},
		Encodings:    []string{"ASCII", "Mcoded7", "zlib+Mcoded7"},
		Originator:   ciconst.OriginatorSystem,
	}
}

// IsBuiltin reports whether id names one of the four always-present
// synthetic properties.
func IsBuiltin(id string) bool {
	switch id {
	case ciconst.PropertyDeviceInfo, ciconst.PropertyChannelList, ciconst.PropertyJSONSchema, ciconst.PropertyResourceList:
		return true
	default:
		return false
	}
}
