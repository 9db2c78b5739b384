package services

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	parser "github.com/deploymenttheory/go-adexplorer/internal/parsers/snapshot"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// fixtureProperties is the schema every test snapshot carries. Order matters:
// the position is the property index recorded in object mapping tables.
var fixtureProperties = []types.PropertyDefinition{
	{Name: "distinguishedName", AdsType: types.AdsTypeDNString},
	{Name: "objectClass", AdsType: types.AdsTypeObjectClass},
	{Name: "objectSid", AdsType: types.AdsTypeOctetString},
	{Name: "systemFlags", AdsType: types.AdsTypeInteger},
	{Name: "userAccountControl", AdsType: types.AdsTypeInteger},
	{Name: "sAMAccountType", AdsType: types.AdsTypeInteger},
	{Name: "nCName", AdsType: types.AdsTypeDNString},
	{Name: "dNSHostName", AdsType: types.AdsTypeCaseIgnoreString},
	{Name: "certificateTemplates", AdsType: types.AdsTypeCaseIgnoreString},
	{Name: "name", AdsType: types.AdsTypeCaseIgnoreString},
}

var fixtureClasses = []string{
	"top", "domain", "organizationalUnit", "computer", "crossRef",
	"pkiEnrollmentService", "configuration", "dMD", "container",
}

// fixtureObject maps attribute names to values: []string for string-typed
// properties, []uint32 for integers, [][]byte for octet strings.
type fixtureObject map[string]interface{}

// snapshotFixture assembles a complete snapshot file:
// header | records | property table | class table | offset table | treeview.
type snapshotFixture struct {
	sig      string
	server   string
	filetime uint64
	objects  []fixtureObject
	treeview []byte // nil means an unpopulated placeholder
}

func newFixture(objects []fixtureObject) *snapshotFixture {
	return &snapshotFixture{
		sig:      types.Magic,
		server:   "DC01.EXAMPLE.COM",
		filetime: uint64(1700000000+types.FiletimeEpochDelta) * 10_000_000,
		objects:  objects,
	}
}

func (f *snapshotFixture) write(t *testing.T, dir string) string {
	t.Helper()

	le := binary.LittleEndian

	var records bytes.Buffer
	offsets := make([]uint64, len(f.objects))
	for i, obj := range f.objects {
		offsets[i] = uint64(types.HeaderSize + records.Len())
		records.Write(encodeFixtureRecord(t, obj, le))
	}

	var propTable bytes.Buffer
	for _, def := range fixtureProperties {
		writeTableName(t, &propTable, def.Name, le)
		var field [4]byte
		le.PutUint32(field[:], def.AdsType)
		propTable.Write(field[:])
		guid := uuid.NewSHA1(uuid.NameSpaceOID, []byte(def.Name))
		raw, _ := guid.MarshalBinary()
		propTable.Write(raw)
	}

	var classTable bytes.Buffer
	for _, name := range fixtureClasses {
		writeTableName(t, &classTable, name, le)
		guid := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
		raw, _ := guid.MarshalBinary()
		classTable.Write(raw)
	}

	propOffset := uint64(types.HeaderSize + records.Len())
	classOffset := propOffset + uint64(propTable.Len())
	mappingOffset := classOffset + uint64(classTable.Len())
	treeviewOffset := mappingOffset + uint64(8*len(f.objects))

	treeviewRegion := f.treeview
	if treeviewRegion == nil {
		treeviewRegion = make([]byte, 8)
		le.PutUint64(treeviewRegion, types.TreeviewMagicUnpopulated)
	}

	data := make([]byte, types.HeaderSize)
	copy(data[types.SigOffset:], f.sig)
	le.PutUint32(data[types.VersionOffset:], 1)
	le.PutUint64(data[types.FiletimeOffset:], f.filetime)
	encoded, err := parser.EncodeWideString(f.server)
	if err != nil {
		t.Fatalf("EncodeWideString failed: %v", err)
	}
	copy(data[types.ServerOffset:], encoded)
	le.PutUint32(data[types.NumObjectsOffset:], uint32(len(f.objects)))
	le.PutUint32(data[types.NumPropertiesOffset:], uint32(len(fixtureProperties)))
	le.PutUint32(data[types.NumClassesOffset:], uint32(len(fixtureClasses)))
	le.PutUint64(data[types.PropertyTableOffset:], propOffset)
	le.PutUint64(data[types.ClassTableOffset:], classOffset)
	le.PutUint64(data[types.MappingOffset:], mappingOffset)
	le.PutUint64(data[types.TreeviewOffsetPos:], treeviewOffset)

	data = append(data, records.Bytes()...)
	data = append(data, propTable.Bytes()...)
	data = append(data, classTable.Bytes()...)
	var field [8]byte
	for _, off := range offsets {
		le.PutUint64(field[:], off)
		data = append(data, field[:]...)
	}
	data = append(data, treeviewRegion...)

	path := filepath.Join(dir, "snapshot.dat")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func writeTableName(t *testing.T, buf *bytes.Buffer, name string, endian binary.ByteOrder) {
	t.Helper()
	encoded, err := parser.EncodeWideString(name)
	if err != nil {
		t.Fatalf("EncodeWideString failed: %v", err)
	}
	var field [4]byte
	endian.PutUint32(field[:], uint32(len(encoded)))
	buf.Write(field[:])
	buf.Write(encoded)
}

func propertyIndex(t *testing.T, name string) int {
	t.Helper()
	for i, def := range fixtureProperties {
		if def.Name == name {
			return i
		}
	}
	t.Fatalf("fixture schema has no property %q", name)
	return -1
}

func encodeFixtureRecord(t *testing.T, obj fixtureObject, endian binary.ByteOrder) []byte {
	t.Helper()

	indices := make([]int, 0, len(obj))
	byIndex := make(map[int]interface{}, len(obj))
	for name, value := range obj {
		idx := propertyIndex(t, name)
		indices = append(indices, idx)
		byIndex[idx] = value
	}
	sort.Ints(indices)

	areas := make([][]byte, 0, len(indices))
	for _, idx := range indices {
		areas = append(areas, encodeFixtureValue(t, fixtureProperties[idx].AdsType, byIndex[idx], endian))
	}

	tableEnd := types.RecordHeaderSize + len(indices)*types.MappingEntrySize
	size := tableEnd
	for _, a := range areas {
		size += len(a)
	}

	out := make([]byte, size)
	endian.PutUint32(out[0:], uint32(size))
	endian.PutUint32(out[4:], uint32(len(indices)))
	pos := tableEnd
	for i, idx := range indices {
		base := types.RecordHeaderSize + i*types.MappingEntrySize
		endian.PutUint32(out[base:], uint32(idx))
		endian.PutUint32(out[base+4:], uint32(int32(pos)))
		copy(out[pos:], areas[i])
		pos += len(areas[i])
	}
	return out
}

func encodeFixtureValue(t *testing.T, adsType uint32, value interface{}, endian binary.ByteOrder) []byte {
	t.Helper()

	switch adsType {
	case types.AdsTypeDNString, types.AdsTypeCaseExactString, types.AdsTypeCaseIgnoreString,
		types.AdsTypePrintableString, types.AdsTypeNumericString, types.AdsTypeObjectClass:
		values := value.([]string)
		var payload bytes.Buffer
		offsets := make([]uint32, len(values))
		base := 4 + 4*len(values)
		for i, s := range values {
			offsets[i] = uint32(base + payload.Len())
			encoded, err := parser.EncodeWideString(s)
			if err != nil {
				t.Fatalf("EncodeWideString failed: %v", err)
			}
			payload.Write(encoded)
		}
		out := make([]byte, base)
		endian.PutUint32(out, uint32(len(values)))
		for i, off := range offsets {
			endian.PutUint32(out[4+4*i:], off)
		}
		return append(out, payload.Bytes()...)

	case types.AdsTypeBoolean, types.AdsTypeInteger:
		values := value.([]uint32)
		out := make([]byte, 4+4*len(values))
		endian.PutUint32(out, uint32(len(values)))
		for i, v := range values {
			endian.PutUint32(out[4+4*i:], v)
		}
		return out

	case types.AdsTypeUTCTime, types.AdsTypeLargeInteger:
		values := value.([]uint64)
		out := make([]byte, 4+8*len(values))
		endian.PutUint32(out, uint32(len(values)))
		for i, v := range values {
			endian.PutUint64(out[4+8*i:], v)
		}
		return out

	case types.AdsTypeOctetString, types.AdsTypeNTSecurityDescriptor:
		values := value.([][]byte)
		out := make([]byte, 4+4*len(values))
		endian.PutUint32(out, uint32(len(values)))
		for i, v := range values {
			endian.PutUint32(out[4+4*i:], uint32(len(v)))
		}
		for _, v := range values {
			out = append(out, v...)
		}
		return out

	default:
		t.Fatalf("fixture cannot encode property type %d", adsType)
		return nil
	}
}

// forestObjects is the standard directory: a domain NC where OU=A exists only
// as a DN component, plus minimal Configuration and Schema NCs.
func forestObjects() []fixtureObject {
	domainSID := []byte{
		0x01, 0x04,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x15, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
	}
	return []fixtureObject{
		{
			"distinguishedName": []string{"DC=example,DC=com"},
			"objectClass":       []string{"top", "domain"},
			"objectSid":         [][]byte{domainSID},
			"name":              []string{"example"},
		},
		{
			"distinguishedName": []string{"OU=B,OU=A,DC=example,DC=com"},
			"objectClass":       []string{"top", "organizationalUnit"},
		},
		{
			"distinguishedName": []string{"CN=x,OU=B,OU=A,DC=example,DC=com"},
			"objectClass":       []string{"top"},
		},
		{
			"distinguishedName": []string{"CN=y,OU=B,OU=A,DC=example,DC=com"},
			"objectClass":       []string{"top"},
		},
		{
			"distinguishedName": []string{"CN=Configuration,DC=example,DC=com"},
			"objectClass":       []string{"top", "configuration"},
		},
		{
			"distinguishedName": []string{"CN=Sites,CN=Configuration,DC=example,DC=com"},
			"objectClass":       []string{"top", "container"},
		},
		{
			"distinguishedName": []string{"CN=Schema,CN=Configuration,DC=example,DC=com"},
			"objectClass":       []string{"top", "dMD"},
		},
		{
			"distinguishedName": []string{"CN=attributeSchema,CN=Schema,CN=Configuration,DC=example,DC=com"},
			"objectClass":       []string{"top"},
		},
	}
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		CacheDir:     t.TempDir(),
		CacheEnabled: false,
		OutputDir:    t.TempDir(),
		QueueDepth:   4,
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}
