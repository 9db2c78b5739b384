package snapshot

import (
	"encoding/binary"
	"sort"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// objectRecord is a lazy view over one object record. The backing slice is
// read-only; decoded values are cached per view, keyed by property index.
type objectRecord struct {
	data       []byte
	endian     binary.ByteOrder
	properties interfaces.PropertyResolver
	tableCount uint32
	mapping    map[uint32]int32 // property index -> value offset
	decoded    map[uint32]interface{}
}

// NewObjectRecord parses the record framing and mapping table from data,
// which must span exactly one record. Attribute values are not touched
// until requested.
func NewObjectRecord(data []byte, properties interfaces.PropertyResolver, endian binary.ByteOrder) (interfaces.ObjectRecord, error) {
	if len(data) < types.RecordHeaderSize {
		return nil, types.FormatErrorf("object record truncated: %d bytes", len(data))
	}

	recordSize := endian.Uint32(data[0:4])
	if int(recordSize) != len(data) {
		return nil, types.FormatErrorf("record size %d does not match span %d", recordSize, len(data))
	}

	tableCount := endian.Uint32(data[4:8])
	tableEnd := types.RecordHeaderSize + int(tableCount)*types.MappingEntrySize
	if tableEnd > len(data) {
		return nil, types.FormatErrorf("mapping table of %d entries exceeds record size %d", tableCount, recordSize)
	}

	mapping := make(map[uint32]int32, tableCount)
	for i := 0; i < int(tableCount); i++ {
		base := types.RecordHeaderSize + i*types.MappingEntrySize
		propIdx := endian.Uint32(data[base : base+4])
		valOff := int32(endian.Uint32(data[base+4 : base+8]))
		mapping[propIdx] = valOff
	}

	return &objectRecord{
		data:       data,
		endian:     endian,
		properties: properties,
		tableCount: tableCount,
		mapping:    mapping,
		decoded:    make(map[uint32]interface{}),
	}, nil
}

func (r *objectRecord) RecordSize() uint32 {
	return r.endian.Uint32(r.data[0:4])
}

func (r *objectRecord) Attribute(name string) (interface{}, bool, error) {
	def, idx, found := r.properties.PropertyByName(name)
	if !found {
		return nil, false, nil
	}

	off, mapped := r.mapping[uint32(idx)]
	if !mapped {
		return nil, false, nil
	}

	if cached, ok := r.decoded[uint32(idx)]; ok {
		return cached, true, nil
	}

	value, err := r.decodeValue(def, off)
	if err != nil {
		return nil, true, err
	}
	r.decoded[uint32(idx)] = value
	return value, true, nil
}

// decodeValue decodes the attribute value area at off, driven entirely by
// the property's declared type. Unknown types fail closed.
func (r *objectRecord) decodeValue(def types.PropertyDefinition, off int32) (interface{}, error) {
	if off < 0 || int(off)+4 > len(r.data) {
		return nil, types.FormatErrorf("attribute %s: value offset %d outside record", def.Name, off)
	}
	base := int(off)
	count := int(r.endian.Uint32(r.data[base : base+4]))

	switch def.AdsType {
	case types.AdsTypeDNString, types.AdsTypeCaseExactString, types.AdsTypeCaseIgnoreString,
		types.AdsTypePrintableString, types.AdsTypeNumericString, types.AdsTypeObjectClass:
		return r.decodeStrings(def.Name, base, count)

	case types.AdsTypeBoolean:
		if err := r.checkValueCount(def.Name, base, count, 4); err != nil {
			return nil, err
		}
		values := make([]bool, 0, count)
		pos := base + 4
		for i := 0; i < count; i++ {
			if pos+4 > len(r.data) {
				return nil, types.FormatErrorf("attribute %s: boolean value %d truncated", def.Name, i)
			}
			values = append(values, r.endian.Uint32(r.data[pos:pos+4]) != 0)
			pos += 4
		}
		return values, nil

	case types.AdsTypeInteger:
		if err := r.checkValueCount(def.Name, base, count, 4); err != nil {
			return nil, err
		}
		values := make([]int64, 0, count)
		pos := base + 4
		for i := 0; i < count; i++ {
			if pos+4 > len(r.data) {
				return nil, types.FormatErrorf("attribute %s: integer value %d truncated", def.Name, i)
			}
			values = append(values, int64(int32(r.endian.Uint32(r.data[pos:pos+4]))))
			pos += 4
		}
		return values, nil

	case types.AdsTypeUTCTime, types.AdsTypeLargeInteger:
		if err := r.checkValueCount(def.Name, base, count, 8); err != nil {
			return nil, err
		}
		values := make([]int64, 0, count)
		pos := base + 4
		for i := 0; i < count; i++ {
			if pos+8 > len(r.data) {
				return nil, types.FormatErrorf("attribute %s: 64-bit value %d truncated", def.Name, i)
			}
			values = append(values, int64(r.endian.Uint64(r.data[pos:pos+8])))
			pos += 8
		}
		return values, nil

	case types.AdsTypeOctetString, types.AdsTypeNTSecurityDescriptor:
		return r.decodeOctets(def.Name, base, count)

	default:
		return nil, types.FormatErrorf("attribute %s: unsupported property type %d", def.Name, def.AdsType)
	}
}

// checkValueCount bounds a declared value count by the bytes remaining in
// the record: every element occupies at least elemSize bytes after the count
// word. A corrupt count must be rejected before it sizes an allocation.
func (r *objectRecord) checkValueCount(name string, base, count, elemSize int) error {
	if count < 0 || count*elemSize > len(r.data)-base-4 {
		return types.FormatErrorf("attribute %s: value count %d exceeds record size", name, count)
	}
	return nil
}

// decodeStrings reads [n x uint32 offsets][UTF-16LE NUL-terminated strings];
// offsets are relative to the attribute start.
func (r *objectRecord) decodeStrings(name string, base, count int) ([]string, error) {
	if err := r.checkValueCount(name, base, count, 4); err != nil {
		return nil, err
	}

	values := make([]string, 0, count)
	for i := 0; i < count; i++ {
		offPos := base + 4 + i*4
		if offPos+4 > len(r.data) {
			return nil, types.FormatErrorf("attribute %s: string offset %d truncated", name, i)
		}
		strOff := base + int(r.endian.Uint32(r.data[offPos:offPos+4]))
		if strOff < 0 || strOff > len(r.data) {
			return nil, types.FormatErrorf("attribute %s: string %d offset outside record", name, i)
		}

		// Scan to the NUL wide char, bounded by the record.
		end := strOff
		terminated := false
		for end+1 < len(r.data) {
			if r.data[end] == 0 && r.data[end+1] == 0 {
				terminated = true
				break
			}
			end += 2
		}
		if !terminated {
			return nil, types.FormatErrorf("attribute %s: string %d unterminated", name, i)
		}
		s, err := DecodeWideString(r.data[strOff : end+2])
		if err != nil {
			return nil, types.FormatErrorf("attribute %s: string %d: %v", name, i, err)
		}
		values = append(values, s)
	}
	return values, nil
}

// decodeOctets reads [n x uint32 lengths][concatenated payloads].
func (r *objectRecord) decodeOctets(name string, base, count int) ([][]byte, error) {
	if err := r.checkValueCount(name, base, count, 4); err != nil {
		return nil, err
	}

	lengths := make([]int, 0, count)
	pos := base + 4
	for i := 0; i < count; i++ {
		if pos+4 > len(r.data) {
			return nil, types.FormatErrorf("attribute %s: octet length %d truncated", name, i)
		}
		lengths = append(lengths, int(r.endian.Uint32(r.data[pos:pos+4])))
		pos += 4
	}

	values := make([][]byte, 0, count)
	for i, l := range lengths {
		if l < 0 || pos+l > len(r.data) {
			return nil, types.FormatErrorf("attribute %s: octet value %d of %d bytes truncated", name, i, l)
		}
		values = append(values, append([]byte{}, r.data[pos:pos+l]...))
		pos += l
	}
	return values, nil
}

func (r *objectRecord) AttributeNames() ([]string, error) {
	indices := make([]int, 0, len(r.mapping))
	for idx := range r.mapping {
		indices = append(indices, int(idx))
	}
	sort.Ints(indices)

	names := make([]string, 0, len(indices))
	for _, idx := range indices {
		def, err := r.properties.PropertyByIndex(idx)
		if err != nil {
			return nil, err
		}
		names = append(names, def.Name)
	}
	return names, nil
}

func (r *objectRecord) Attributes() (map[string]interface{}, error) {
	names, err := r.AttributeNames()
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]interface{}, len(names))
	for _, name := range names {
		value, present, err := r.Attribute(name)
		if err != nil {
			return nil, err
		}
		if present {
			attrs[name] = value
		}
	}
	return attrs, nil
}

func (r *objectRecord) StringAttribute(name string) (string, bool, error) {
	values, present, err := r.StringsAttribute(name)
	if err != nil || !present || len(values) == 0 {
		return "", present && len(values) > 0, err
	}
	return values[0], true, nil
}

func (r *objectRecord) StringsAttribute(name string) ([]string, bool, error) {
	value, present, err := r.Attribute(name)
	if err != nil || !present {
		return nil, present, err
	}
	values, ok := value.([]string)
	if !ok {
		return nil, true, types.FormatErrorf("attribute %s is not string-typed", name)
	}
	return values, true, nil
}

func (r *objectRecord) IntAttribute(name string) (int64, bool, error) {
	value, present, err := r.Attribute(name)
	if err != nil || !present {
		return 0, present, err
	}
	values, ok := value.([]int64)
	if !ok {
		return 0, true, types.FormatErrorf("attribute %s is not integer-typed", name)
	}
	if len(values) == 0 {
		return 0, false, nil
	}
	return values[0], true, nil
}

func (r *objectRecord) BytesAttribute(name string) ([]byte, bool, error) {
	value, present, err := r.Attribute(name)
	if err != nil || !present {
		return nil, present, err
	}
	values, ok := value.([][]byte)
	if !ok || len(values) == 0 {
		return nil, false, nil
	}
	return values[0], true, nil
}
