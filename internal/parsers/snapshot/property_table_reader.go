package snapshot

import (
	"encoding/binary"
	"strings"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
	"github.com/google/uuid"
)

// propertyTableReader implements the PropertyResolver interface
type propertyTableReader struct {
	properties []types.PropertyDefinition
	byName     map[string]int // case-folded name -> table index
}

// NewPropertyTableReader parses count consecutive property definitions
// starting at the beginning of data. Entry layout:
// [uint32 nameByteLen][UTF-16LE name][uint32 adsType][16-byte schemaIDGUID].
func NewPropertyTableReader(data []byte, count uint32, endian binary.ByteOrder) (interfaces.PropertyResolver, error) {
	properties := make([]types.PropertyDefinition, 0, count)
	byName := make(map[string]int, count)

	pos := 0
	for i := uint32(0); i < count; i++ {
		name, next, err := readTableEntryName(data, pos, endian)
		if err != nil {
			return nil, types.FormatErrorf("property %d: %v", i, err)
		}
		pos = next

		if len(data) < pos+4+16 {
			return nil, types.FormatErrorf("property %d (%s): entry truncated", i, name)
		}
		adsType := endian.Uint32(data[pos : pos+4])
		pos += 4

		guid, err := uuid.FromBytes(data[pos : pos+16])
		if err != nil {
			return nil, types.FormatErrorf("property %d (%s): bad schemaIDGUID: %v", i, name, err)
		}
		pos += 16

		properties = append(properties, types.PropertyDefinition{
			Name:         name,
			AdsType:      adsType,
			SchemaIDGUID: guid,
		})
		byName[strings.ToLower(name)] = int(i)
	}

	return &propertyTableReader{properties: properties, byName: byName}, nil
}

// readTableEntryName reads a length-prefixed UTF-16LE name at pos and
// returns it with the position just past it.
func readTableEntryName(data []byte, pos int, endian binary.ByteOrder) (string, int, error) {
	if len(data) < pos+4 {
		return "", 0, types.FormatErrorf("name length truncated at %d", pos)
	}
	nameLen := int(endian.Uint32(data[pos : pos+4]))
	pos += 4

	if nameLen < 0 || len(data) < pos+nameLen {
		return "", 0, types.FormatErrorf("name of %d bytes truncated at %d", nameLen, pos)
	}
	name, err := DecodeWideString(data[pos : pos+nameLen])
	if err != nil {
		return "", 0, err
	}
	return name, pos + nameLen, nil
}

func (pr *propertyTableReader) PropertyByName(name string) (types.PropertyDefinition, int, bool) {
	idx, ok := pr.byName[strings.ToLower(name)]
	if !ok {
		return types.PropertyDefinition{}, 0, false
	}
	return pr.properties[idx], idx, true
}

func (pr *propertyTableReader) PropertyByIndex(index int) (types.PropertyDefinition, error) {
	if index < 0 || index >= len(pr.properties) {
		return types.PropertyDefinition{}, types.FormatErrorf("property index %d out of range (table has %d)", index, len(pr.properties))
	}
	return pr.properties[index], nil
}

func (pr *propertyTableReader) PropertyCount() int {
	return len(pr.properties)
}
