package treeview

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/parsers/snapshot"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// SyntheticObject records where a fabricated container record was placed.
type SyntheticObject struct {
	DN     string
	Index  int
	Offset uint64
}

// Synthesizer fabricates minimal object records for container DNs that the
// treeview needs but the snapshot does not contain. Each record carries a
// single mapped attribute, distinguishedName, and is valid under the same
// record format the reader parses.
type Synthesizer struct {
	properties interfaces.PropertyResolver
	endian     binary.ByteOrder
}

func NewSynthesizer(properties interfaces.PropertyResolver, endian binary.ByteOrder) *Synthesizer {
	return &Synthesizer{properties: properties, endian: endian}
}

// Synthesize builds records for every missing DN, shortest first so a
// parent's offset is always assigned before any of its children. Indices
// continue from realObjectCount; offsets run from startOffset. The returned
// map is keyed by case-folded DN.
func (s *Synthesizer) Synthesize(missingDNs []string, realObjectCount int, startOffset uint64) (map[string]SyntheticObject, []byte, error) {
	if len(missingDNs) == 0 {
		return map[string]SyntheticObject{}, nil, nil
	}

	_, dnPropIdx, found := s.properties.PropertyByName("distinguishedName")
	if !found {
		return nil, nil, types.FormatErrorf("schema has no distinguishedName property, cannot synthesize containers")
	}

	sorted := append([]string{}, missingDNs...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	objects := make(map[string]SyntheticObject, len(sorted))
	var buf bytes.Buffer
	offset := startOffset
	index := realObjectCount

	for _, dn := range sorted {
		record, err := s.encodeRecord(dn, uint32(dnPropIdx))
		if err != nil {
			return nil, nil, err
		}

		objects[strings.ToLower(dn)] = SyntheticObject{DN: dn, Index: index, Offset: offset}
		buf.Write(record)
		offset += uint64(len(record))
		index++
	}

	return objects, buf.Bytes(), nil
}

// encodeRecord emits one minimal record:
// [uint32 recordSize][uint32 tableCount=1][mapping: dnPropIdx, valueOffset]
// [uint32 numValues=1][uint32 stringOffset=8][UTF-16LE dn NUL-terminated].
func (s *Synthesizer) encodeRecord(dn string, dnPropIdx uint32) ([]byte, error) {
	encoded, err := snapshot.EncodeWideString(dn)
	if err != nil {
		return nil, types.FormatErrorf("synthetic record for %q: %v", dn, err)
	}

	valueOffset := types.RecordHeaderSize + types.MappingEntrySize // one mapping entry
	valueArea := 4 + 4 + len(encoded)                              // count + offset + string
	recordSize := valueOffset + valueArea

	buf := bytes.NewBuffer(make([]byte, 0, recordSize))
	var scratch [4]byte

	writeU32 := func(v uint32) {
		s.endian.PutUint32(scratch[:], v)
		buf.Write(scratch[:])
	}

	writeU32(uint32(recordSize))
	writeU32(1) // tableCount
	writeU32(dnPropIdx)
	writeU32(uint32(valueOffset))
	writeU32(1) // numValues
	writeU32(8) // string offset, relative to the attribute start
	buf.Write(encoded)

	return buf.Bytes(), nil
}
