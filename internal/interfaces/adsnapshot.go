// File: internal/interfaces/adsnapshot.go
package interfaces

import (
	"time"

	"github.com/deploymenttheory/go-adexplorer/internal/types"
	"github.com/google/uuid"
)

// HeaderReader provides access to the decoded snapshot file header
type HeaderReader interface {
	// Server returns the name of the server the snapshot was captured from
	Server() string

	// CaptureTime returns the capture instant derived from the raw FILETIME
	CaptureTime() time.Time

	// Filetime returns the raw Windows FILETIME of the capture instant
	Filetime() uint64

	// ObjectCount returns the number of objects in the snapshot
	ObjectCount() uint32

	// MappingOffset returns the absolute offset of the object-offset table
	MappingOffset() uint64

	// TreeviewOffset returns the absolute offset of the treeview block, or 0
	TreeviewOffset() uint64

	// SignatureValid reports whether the on-disk magic matched "win"
	SignatureValid() bool
}

// PropertyResolver resolves schema property definitions by name or index.
// Property names compare case-insensitively, matching directory semantics.
type PropertyResolver interface {
	// PropertyByName returns the property definition and its table index,
	// or found=false when the schema does not declare the name
	PropertyByName(name string) (def types.PropertyDefinition, index int, found bool)

	// PropertyByIndex returns the definition at a table index
	PropertyByIndex(index int) (types.PropertyDefinition, error)

	// PropertyCount returns the number of schema properties
	PropertyCount() int
}

// ClassResolver exposes the class schema table
type ClassResolver interface {
	// ClassGUID returns the schemaIDGUID registered for a class name
	ClassGUID(name string) (uuid.UUID, bool)

	// Classes returns every class definition in table order
	Classes() []types.ClassDefinition
}

// ObjectRecord is a lazy, read-only view over one object record. No
// attribute is decoded until requested; decoded values are cached per view.
type ObjectRecord interface {
	// RecordSize returns the declared byte size of the record
	RecordSize() uint32

	// Attribute decodes the named attribute. An attribute missing from the
	// record's mapping table yields (nil, false, nil) - absence, not error.
	Attribute(name string) (value interface{}, present bool, err error)

	// StringAttribute returns the first value of a string-typed attribute
	StringAttribute(name string) (string, bool, error)

	// StringsAttribute returns all values of a string-typed attribute
	StringsAttribute(name string) ([]string, bool, error)

	// IntAttribute returns the first value of an integer-typed attribute
	IntAttribute(name string) (int64, bool, error)

	// BytesAttribute returns the first raw value of a binary attribute
	BytesAttribute(name string) ([]byte, bool, error)

	// AttributeNames lists the names of every attribute in the record's
	// mapping table, in property-table order
	AttributeNames() ([]string, error)

	// Attributes decodes every mapped attribute into a name -> value map
	Attributes() (map[string]interface{}, error)
}

// ObjectReader enumerates object records in file order. File order is the
// only stable enumeration order; index assignment everywhere depends on it.
type ObjectReader interface {
	// ObjectCount returns the number of records in the offset table
	ObjectCount() int

	// ObjectOffset returns the absolute byte offset of the record at index
	ObjectOffset(index int) (uint64, error)

	// ObjectAt returns a lazy record view for the object at index
	ObjectAt(index int) (ObjectRecord, error)
}
