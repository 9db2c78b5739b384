package snapshot

import (
	"encoding/binary"
	"time"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// headerReader implements the HeaderReader interface
type headerReader struct {
	header *types.SnapshotHeader
}

// NewHeaderReader parses the fixed snapshot header from raw bytes.
// A corrupted signature does not fail the parse: the rest of the header is
// position-fixed, and enrichment repairs the signature on output.
func NewHeaderReader(data []byte, endian binary.ByteOrder) (interfaces.HeaderReader, error) {
	header, err := ParseHeader(data, endian)
	if err != nil {
		return nil, err
	}
	return &headerReader{header: header}, nil
}

// ParseHeader decodes raw bytes into a SnapshotHeader structure
func ParseHeader(data []byte, endian binary.ByteOrder) (*types.SnapshotHeader, error) {
	if len(data) < types.HeaderSize {
		return nil, types.FormatErrorf("header truncated: have %d bytes, need %d", len(data), types.HeaderSize)
	}

	h := &types.SnapshotHeader{}
	copy(h.Signature[:], data[types.SigOffset:types.SigOffset+3])
	h.Version = endian.Uint32(data[types.VersionOffset : types.VersionOffset+4])
	h.Filetime = endian.Uint64(data[types.FiletimeOffset : types.FiletimeOffset+8])
	h.FiletimeUnix = int64(h.Filetime/10_000_000) - types.FiletimeEpochDelta

	server, err := DecodeWideString(data[types.ServerOffset : types.ServerOffset+types.ServerFieldChars*2])
	if err != nil {
		return nil, types.FormatErrorf("invalid server name field: %v", err)
	}
	h.Server = server

	h.NumObjects = endian.Uint32(data[types.NumObjectsOffset : types.NumObjectsOffset+4])
	h.NumProperties = endian.Uint32(data[types.NumPropertiesOffset : types.NumPropertiesOffset+4])
	h.NumClasses = endian.Uint32(data[types.NumClassesOffset : types.NumClassesOffset+4])
	h.PropertyOffset = endian.Uint64(data[types.PropertyTableOffset : types.PropertyTableOffset+8])
	h.ClassOffset = endian.Uint64(data[types.ClassTableOffset : types.ClassTableOffset+8])
	h.MappingOffset = endian.Uint64(data[types.MappingOffset : types.MappingOffset+8])
	h.TreeviewOffset = endian.Uint64(data[types.TreeviewOffsetPos : types.TreeviewOffsetPos+8])

	return h, nil
}

func (hr *headerReader) Server() string {
	return hr.header.Server
}

func (hr *headerReader) CaptureTime() time.Time {
	return time.Unix(hr.header.FiletimeUnix, 0).UTC()
}

func (hr *headerReader) Filetime() uint64 {
	return hr.header.Filetime
}

func (hr *headerReader) ObjectCount() uint32 {
	return hr.header.NumObjects
}

func (hr *headerReader) MappingOffset() uint64 {
	return hr.header.MappingOffset
}

func (hr *headerReader) TreeviewOffset() uint64 {
	return hr.header.TreeviewOffset
}

func (hr *headerReader) SignatureValid() bool {
	return hr.header.SignatureValid()
}

// Header returns the underlying decoded header
func (hr *headerReader) Header() *types.SnapshotHeader {
	return hr.header
}
