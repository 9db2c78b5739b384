package snapshot

import (
	"encoding/binary"
	"strings"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
	"github.com/google/uuid"
)

// classTableReader implements the ClassResolver interface
type classTableReader struct {
	classes []types.ClassDefinition
	byName  map[string]int
}

// NewClassTableReader parses count consecutive class definitions starting at
// the beginning of data. Entry layout:
// [uint32 nameByteLen][UTF-16LE name][16-byte schemaIDGUID].
func NewClassTableReader(data []byte, count uint32, endian binary.ByteOrder) (interfaces.ClassResolver, error) {
	classes := make([]types.ClassDefinition, 0, count)
	byName := make(map[string]int, count)

	pos := 0
	for i := uint32(0); i < count; i++ {
		name, next, err := readTableEntryName(data, pos, endian)
		if err != nil {
			return nil, types.FormatErrorf("class %d: %v", i, err)
		}
		pos = next

		if len(data) < pos+16 {
			return nil, types.FormatErrorf("class %d (%s): entry truncated", i, name)
		}
		guid, err := uuid.FromBytes(data[pos : pos+16])
		if err != nil {
			return nil, types.FormatErrorf("class %d (%s): bad schemaIDGUID: %v", i, name, err)
		}
		pos += 16

		classes = append(classes, types.ClassDefinition{Name: name, SchemaIDGUID: guid})
		byName[strings.ToLower(name)] = int(i)
	}

	return &classTableReader{classes: classes, byName: byName}, nil
}

func (cr *classTableReader) ClassGUID(name string) (uuid.UUID, bool) {
	idx, ok := cr.byName[strings.ToLower(name)]
	if !ok {
		return uuid.UUID{}, false
	}
	return cr.classes[idx].SchemaIDGUID, true
}

func (cr *classTableReader) Classes() []types.ClassDefinition {
	out := make([]types.ClassDefinition, len(cr.classes))
	copy(out, cr.classes)
	return out
}
