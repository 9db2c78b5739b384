package types

import "github.com/google/uuid"

// Snapshot container layout. All integers are little-endian and all offsets
// are absolute byte positions in the snapshot file unless noted otherwise.
const (
	// Magic is the 3-byte ASCII signature at the start of every snapshot.
	Magic = "win"

	HeaderSize = 0x248

	// Fixed header field offsets.
	SigOffset           = 0x000
	VersionOffset       = 0x004
	FiletimeOffset      = 0x008
	ServerOffset        = 0x010 // UTF-16LE, ServerFieldChars wide chars
	NumObjectsOffset    = 0x218
	NumPropertiesOffset = 0x21C
	NumClassesOffset    = 0x220
	PropertyTableOffset = 0x228
	ClassTableOffset    = 0x230
	MappingOffset       = 0x238
	TreeviewOffsetPos   = 0x240

	// ServerFieldChars is the wide-character capacity of the server name
	// field, NUL padded.
	ServerFieldChars = 260
)

// FiletimeEpochDelta converts a Windows FILETIME (100ns ticks since
// 1601-01-01) to Unix seconds: unix = filetime/10_000_000 - FiletimeEpochDelta.
const FiletimeEpochDelta = 11644473600

// ADS property types as declared in the property table. Attribute decoding
// is driven entirely by these; an unlisted value must be rejected.
const (
	AdsTypeDNString             = 1
	AdsTypeCaseExactString      = 2
	AdsTypeCaseIgnoreString     = 3
	AdsTypePrintableString      = 4
	AdsTypeNumericString        = 5
	AdsTypeBoolean              = 6
	AdsTypeInteger              = 7
	AdsTypeOctetString          = 8
	AdsTypeUTCTime              = 9
	AdsTypeLargeInteger         = 10
	AdsTypeObjectClass          = 12
	AdsTypeNTSecurityDescriptor = 25
)

// SnapshotHeader is the decoded fixed-layout file header.
type SnapshotHeader struct {
	Signature      [3]byte
	Version        uint32
	Filetime       uint64 // raw Windows FILETIME of the capture instant
	FiletimeUnix   int64  // derived Unix seconds
	Server         string
	NumObjects     uint32
	NumProperties  uint32
	NumClasses     uint32
	PropertyOffset uint64
	ClassOffset    uint64
	MappingOffset  uint64 // object-offset table position
	TreeviewOffset uint64 // 0 means no treeview block
}

// SignatureValid reports whether the on-disk signature matched Magic.
// A corrupted signature is repaired on enrichment output, not rejected.
func (h *SnapshotHeader) SignatureValid() bool {
	return string(h.Signature[:]) == Magic
}

// PropertyDefinition is one entry of the property schema table.
// On disk: [uint32 nameByteLen][UTF-16LE name][uint32 adsType][16-byte GUID].
type PropertyDefinition struct {
	Name         string
	AdsType      uint32
	SchemaIDGUID uuid.UUID
}

// ClassDefinition is one entry of the class schema table.
// On disk: [uint32 nameByteLen][UTF-16LE name][16-byte GUID].
type ClassDefinition struct {
	Name         string
	SchemaIDGUID uuid.UUID
}

// MappingEntry maps a property index to the signed byte offset of its value
// area, relative to the start of the object record.
type MappingEntry struct {
	PropertyIndex uint32
	ValueOffset   int32
}

// Object record framing: [uint32 recordSize][uint32 tableCount]
// [tableCount x MappingEntry][value area].
const (
	RecordHeaderSize = 8
	MappingEntrySize = 8
)

// ComputerAccountType is the sAMAccountType value of machine accounts.
const ComputerAccountType = 805306369

// userAccountControl bits the cache builder inspects.
const (
	UACAccountDisabled    = 0x0002
	UACServerTrustAccount = 0x2000
)

// systemFlags bit marking a crossRef object as an NC replica root.
const SystemFlagCrossRefNC = 0x2
