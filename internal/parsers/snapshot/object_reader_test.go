package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

func testProperties(t *testing.T) interfaces.PropertyResolver {
	t.Helper()
	var buf bytes.Buffer
	appendPropertyEntry(t, &buf, "distinguishedName", types.AdsTypeDNString, uuid.New())
	appendPropertyEntry(t, &buf, "userAccountControl", types.AdsTypeInteger, uuid.New())
	appendPropertyEntry(t, &buf, "objectSid", types.AdsTypeOctetString, uuid.New())
	appendPropertyEntry(t, &buf, "lastLogon", types.AdsTypeLargeInteger, uuid.New())
	appendPropertyEntry(t, &buf, "isDeleted", types.AdsTypeBoolean, uuid.New())
	appendPropertyEntry(t, &buf, "weirdAttribute", 20, uuid.New())

	resolver, err := NewPropertyTableReader(buf.Bytes(), 6, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewPropertyTableReader failed: %v", err)
	}
	return resolver
}

func encodeStringsValue(t *testing.T, values []string) []byte {
	t.Helper()
	var payload bytes.Buffer
	offsets := make([]uint32, len(values))
	base := 4 + 4*len(values)
	for i, v := range values {
		offsets[i] = uint32(base + payload.Len())
		encoded, err := EncodeWideString(v)
		if err != nil {
			t.Fatalf("EncodeWideString failed: %v", err)
		}
		payload.Write(encoded)
	}

	var out bytes.Buffer
	var field [4]byte
	binary.LittleEndian.PutUint32(field[:], uint32(len(values)))
	out.Write(field[:])
	for _, off := range offsets {
		binary.LittleEndian.PutUint32(field[:], off)
		out.Write(field[:])
	}
	out.Write(payload.Bytes())
	return out.Bytes()
}

func encodeUint32Value(values []uint32) []byte {
	out := make([]byte, 4+4*len(values))
	binary.LittleEndian.PutUint32(out, uint32(len(values)))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4+4*i:], v)
	}
	return out
}

func encodeUint64Value(values []uint64) []byte {
	out := make([]byte, 4+8*len(values))
	binary.LittleEndian.PutUint32(out, uint32(len(values)))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[4+8*i:], v)
	}
	return out
}

func encodeOctetValue(values [][]byte) []byte {
	var out bytes.Buffer
	var field [4]byte
	binary.LittleEndian.PutUint32(field[:], uint32(len(values)))
	out.Write(field[:])
	for _, v := range values {
		binary.LittleEndian.PutUint32(field[:], uint32(len(v)))
		out.Write(field[:])
	}
	for _, v := range values {
		out.Write(v)
	}
	return out.Bytes()
}

// buildRecord assembles a full record from property-index/value-area pairs.
func buildRecord(propIndices []uint32, valueAreas [][]byte) []byte {
	tableEnd := types.RecordHeaderSize + len(propIndices)*types.MappingEntrySize

	offsets := make([]int32, len(valueAreas))
	pos := tableEnd
	for i, area := range valueAreas {
		offsets[i] = int32(pos)
		pos += len(area)
	}

	out := make([]byte, pos)
	binary.LittleEndian.PutUint32(out[0:], uint32(pos))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(propIndices)))
	for i, idx := range propIndices {
		base := types.RecordHeaderSize + i*types.MappingEntrySize
		binary.LittleEndian.PutUint32(out[base:], idx)
		binary.LittleEndian.PutUint32(out[base+4:], uint32(offsets[i]))
	}
	pos = tableEnd
	for _, area := range valueAreas {
		copy(out[pos:], area)
		pos += len(area)
	}
	return out
}

func TestObjectRecord_DecodeTypes(t *testing.T) {
	props := testProperties(t)
	sid := []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05, 0x12, 0x00, 0x00, 0x00}

	data := buildRecord(
		[]uint32{0, 1, 2, 3, 4},
		[][]byte{
			encodeStringsValue(t, []string{"CN=x,DC=example,DC=com"}),
			encodeUint32Value([]uint32{0x0202}),
			encodeOctetValue([][]byte{sid}),
			encodeUint64Value([]uint64{132448000000000000}),
			encodeUint32Value([]uint32{0, 1}),
		},
	)

	record, err := NewObjectRecord(data, props, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewObjectRecord failed: %v", err)
	}

	if record.RecordSize() != uint32(len(data)) {
		t.Errorf("RecordSize() = %d, want %d", record.RecordSize(), len(data))
	}

	dn, present, err := record.StringAttribute("distinguishedName")
	if err != nil || !present {
		t.Fatalf("StringAttribute(distinguishedName) = (%v, %v), want present", present, err)
	}
	if dn != "CN=x,DC=example,DC=com" {
		t.Errorf("dn = %q", dn)
	}

	uac, present, err := record.IntAttribute("userAccountControl")
	if err != nil || !present || uac != 0x0202 {
		t.Errorf("IntAttribute(userAccountControl) = (%d, %v, %v), want (514, true, nil)", uac, present, err)
	}

	raw, present, err := record.BytesAttribute("objectSid")
	if err != nil || !present || !bytes.Equal(raw, sid) {
		t.Errorf("BytesAttribute(objectSid) = (%x, %v, %v)", raw, present, err)
	}

	logon, present, err := record.IntAttribute("lastLogon")
	if err != nil || !present || logon != 132448000000000000 {
		t.Errorf("IntAttribute(lastLogon) = (%d, %v, %v)", logon, present, err)
	}

	deleted, present, err := record.Attribute("isDeleted")
	if err != nil || !present {
		t.Fatalf("Attribute(isDeleted) = (%v, %v)", present, err)
	}
	if !reflect.DeepEqual(deleted, []bool{false, true}) {
		t.Errorf("isDeleted = %v, want [false true]", deleted)
	}
}

func TestObjectRecord_AbsentAttribute(t *testing.T) {
	props := testProperties(t)
	data := buildRecord(
		[]uint32{0},
		[][]byte{encodeStringsValue(t, []string{"CN=x"})},
	)

	record, err := NewObjectRecord(data, props, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewObjectRecord failed: %v", err)
	}

	// Unmapped property: absent, not an error.
	value, present, err := record.Attribute("objectSid")
	if value != nil || present || err != nil {
		t.Errorf("Attribute(objectSid) = (%v, %v, %v), want (nil, false, nil)", value, present, err)
	}

	// Unknown property name behaves the same.
	value, present, err = record.Attribute("noSuchAttribute")
	if value != nil || present || err != nil {
		t.Errorf("Attribute(noSuchAttribute) = (%v, %v, %v), want (nil, false, nil)", value, present, err)
	}
}

func TestObjectRecord_UnsupportedType(t *testing.T) {
	props := testProperties(t)
	data := buildRecord(
		[]uint32{5},
		[][]byte{encodeUint32Value([]uint32{1})},
	)

	record, err := NewObjectRecord(data, props, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewObjectRecord failed: %v", err)
	}

	_, present, err := record.Attribute("weirdAttribute")
	if !present {
		t.Error("present = false, want true")
	}
	if err == nil {
		t.Fatal("expected error for unsupported property type, got nil")
	}
	var formatErr *types.FormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("error %v is not a FormatError", err)
	}
}

func TestObjectRecord_UnterminatedString(t *testing.T) {
	props := testProperties(t)

	// One string value running to the record end without a NUL pair:
	// [count=1][offset=8]['A' 'B' as UTF-16LE, no terminator].
	area := make([]byte, 12)
	binary.LittleEndian.PutUint32(area, 1)
	binary.LittleEndian.PutUint32(area[4:], 8)
	copy(area[8:], []byte{'A', 0, 'B', 0})
	data := buildRecord([]uint32{0}, [][]byte{area})

	record, err := NewObjectRecord(data, props, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewObjectRecord failed: %v", err)
	}

	_, present, err := record.Attribute("distinguishedName")
	if !present {
		t.Error("present = false, want true")
	}
	if err == nil {
		t.Fatal("expected error for an unterminated string value, got nil")
	}
	var formatErr *types.FormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("error %v is not a FormatError", err)
	}
}

func TestObjectRecord_OversizedValueCount(t *testing.T) {
	props := testProperties(t)

	// A corrupt count word must be rejected before it sizes an allocation.
	cases := []struct {
		attr    string
		propIdx uint32
	}{
		{"distinguishedName", 0},
		{"userAccountControl", 1},
		{"objectSid", 2},
		{"lastLogon", 3},
	}
	for _, c := range cases {
		data := buildRecord([]uint32{c.propIdx}, [][]byte{encodeUint32Value([]uint32{0})})

		// The value area starts right after the single mapping entry.
		countPos := types.RecordHeaderSize + types.MappingEntrySize
		binary.LittleEndian.PutUint32(data[countPos:], 0xFFFFFFFF)

		record, err := NewObjectRecord(data, props, binary.LittleEndian)
		if err != nil {
			t.Fatalf("%s: NewObjectRecord failed: %v", c.attr, err)
		}

		_, _, err = record.Attribute(c.attr)
		if err == nil {
			t.Fatalf("%s: expected error for oversized value count, got nil", c.attr)
		}
		var formatErr *types.FormatError
		if !errors.As(err, &formatErr) {
			t.Errorf("%s: error %v is not a FormatError", c.attr, err)
		}
	}
}

func TestObjectRecord_BadFraming(t *testing.T) {
	props := testProperties(t)
	data := buildRecord([]uint32{0}, [][]byte{encodeStringsValue(t, []string{"CN=x"})})

	// Size field disagrees with the record span.
	tooLong := append(append([]byte{}, data...), 0x00)
	if _, err := NewObjectRecord(tooLong, props, binary.LittleEndian); err == nil {
		t.Error("expected error for span mismatch, got nil")
	}

	// Mapping table runs past the end of the record.
	broken := append([]byte{}, data...)
	binary.LittleEndian.PutUint32(broken[4:], 1000)
	if _, err := NewObjectRecord(broken, props, binary.LittleEndian); err == nil {
		t.Error("expected error for oversized mapping table, got nil")
	}
}

func TestObjectRecord_AttributeEnumeration(t *testing.T) {
	props := testProperties(t)
	data := buildRecord(
		[]uint32{2, 0}, // deliberately out of index order
		[][]byte{
			encodeOctetValue([][]byte{{0xde, 0xad}}),
			encodeStringsValue(t, []string{"CN=x"}),
		},
	)

	record, err := NewObjectRecord(data, props, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewObjectRecord failed: %v", err)
	}

	names, err := record.AttributeNames()
	if err != nil {
		t.Fatalf("AttributeNames failed: %v", err)
	}
	want := []string{"distinguishedName", "objectSid"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("AttributeNames = %v, want %v", names, want)
	}

	attrs, err := record.Attributes()
	if err != nil {
		t.Fatalf("Attributes failed: %v", err)
	}
	if len(attrs) != 2 {
		t.Errorf("Attributes() has %d entries, want 2", len(attrs))
	}
	if !reflect.DeepEqual(attrs["distinguishedName"], []string{"CN=x"}) {
		t.Errorf("distinguishedName = %v", attrs["distinguishedName"])
	}
}
