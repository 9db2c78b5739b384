package services

import (
	"encoding/binary"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	parser "github.com/deploymenttheory/go-adexplorer/internal/parsers/snapshot"
	"github.com/deploymenttheory/go-adexplorer/internal/treeview"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// Snapshot provides random access to one AD Explorer snapshot file: the
// decoded header, the property and class schema tables, the object-offset
// table and lazy object record views. The backing file is read-only.
type Snapshot struct {
	file          *os.File
	path          string
	size          int64
	endian        binary.ByteOrder
	header        *types.SnapshotHeader
	properties    interfaces.PropertyResolver
	classes       interfaces.ClassResolver
	objectOffsets []uint64
	log           *logrus.Logger
}

// OpenSnapshot opens a snapshot file and loads its header, schema tables
// and object-offset table. Object records themselves stay on disk until
// requested. A corrupted signature is logged, not rejected: the rest of the
// header is position-fixed and enrichment repairs the signature on output.
func OpenSnapshot(path string, log *logrus.Logger) (*Snapshot, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &types.IOError{Op: "open", Path: path, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &types.IOError{Op: "stat", Path: path, Err: err}
	}

	snap := &Snapshot{
		file:   file,
		path:   path,
		size:   info.Size(),
		endian: binary.LittleEndian,
		log:    log,
	}

	if err := snap.load(); err != nil {
		file.Close()
		return nil, err
	}
	return snap, nil
}

func (s *Snapshot) load() error {
	headerData := make([]byte, types.HeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(s.file, 0, int64(types.HeaderSize)), headerData); err != nil {
		return types.FormatErrorf("header truncated: %v", err)
	}

	header, err := parser.ParseHeader(headerData, s.endian)
	if err != nil {
		return err
	}
	s.header = header

	if !header.SignatureValid() {
		s.log.WithField("path", s.path).Warn("snapshot signature is corrupted, will repair on enrichment output")
	}

	propData, err := s.readRegion(header.PropertyOffset)
	if err != nil {
		return types.FormatErrorf("property table: %v", err)
	}
	properties, err := parser.NewPropertyTableReader(propData, header.NumProperties, s.endian)
	if err != nil {
		return err
	}
	s.properties = properties

	classData, err := s.readRegion(header.ClassOffset)
	if err != nil {
		return types.FormatErrorf("class table: %v", err)
	}
	classes, err := parser.NewClassTableReader(classData, header.NumClasses, s.endian)
	if err != nil {
		return err
	}
	s.classes = classes

	if err := s.loadObjectOffsets(); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"server":  header.Server,
		"time":    header.FiletimeUnix,
		"objects": header.NumObjects,
	}).Debug("snapshot opened")

	return nil
}

// readRegion reads from start up to the next header-declared region (or end
// of file), which bounds a variable-length table without knowing its exact
// size up front.
func (s *Snapshot) readRegion(start uint64) ([]byte, error) {
	if start >= uint64(s.size) {
		return nil, types.FormatErrorf("region offset 0x%x beyond file size %d", start, s.size)
	}

	end := uint64(s.size)
	candidates := []uint64{s.header.PropertyOffset, s.header.ClassOffset, s.header.MappingOffset, s.header.TreeviewOffset}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	for _, c := range candidates {
		if c > start && c < end {
			end = c
		}
	}

	data := make([]byte, end-start)
	if _, err := s.file.ReadAt(data, int64(start)); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

// loadObjectOffsets reads the object-offset table: numObjects consecutive
// absolute 8-byte offsets, in file order. File order is the only stable
// object enumeration order and index assignment depends on it.
func (s *Snapshot) loadObjectOffsets() error {
	count := int(s.header.NumObjects)
	tableSize := int64(count) * 8
	if int64(s.header.MappingOffset)+tableSize > s.size {
		return types.FormatErrorf("object-offset table of %d entries exceeds file size", count)
	}

	data := make([]byte, tableSize)
	if _, err := s.file.ReadAt(data, int64(s.header.MappingOffset)); err != nil {
		return types.FormatErrorf("object-offset table: %v", err)
	}

	s.objectOffsets = make([]uint64, count)
	for i := 0; i < count; i++ {
		s.objectOffsets[i] = s.endian.Uint64(data[i*8 : i*8+8])
	}
	return nil
}

// Header returns the decoded snapshot header.
func (s *Snapshot) Header() *types.SnapshotHeader {
	return s.header
}

// Properties returns the property schema table.
func (s *Snapshot) Properties() interfaces.PropertyResolver {
	return s.properties
}

// Classes returns the class schema table.
func (s *Snapshot) Classes() interfaces.ClassResolver {
	return s.classes
}

func (s *Snapshot) ObjectCount() int {
	return len(s.objectOffsets)
}

func (s *Snapshot) ObjectOffset(index int) (uint64, error) {
	if index < 0 || index >= len(s.objectOffsets) {
		return 0, types.FormatErrorf("object index %d out of range (%d objects)", index, len(s.objectOffsets))
	}
	return s.objectOffsets[index], nil
}

// ObjectAt returns a lazy record view for the object at index. The record's
// declared size bounds the read exactly; consecutive records may not
// overlap.
func (s *Snapshot) ObjectAt(index int) (interfaces.ObjectRecord, error) {
	offset, err := s.ObjectOffset(index)
	if err != nil {
		return nil, err
	}

	var sizeBuf [4]byte
	if _, err := s.file.ReadAt(sizeBuf[:], int64(offset)); err != nil {
		return nil, types.FormatErrorf("object %d at 0x%x: %v", index, offset, err)
	}
	recordSize := s.endian.Uint32(sizeBuf[:])
	if recordSize < types.RecordHeaderSize || int64(offset)+int64(recordSize) > s.size {
		return nil, types.FormatErrorf("object %d at 0x%x: invalid record size %d", index, offset, recordSize)
	}

	data := make([]byte, recordSize)
	if _, err := s.file.ReadAt(data, int64(offset)); err != nil {
		return nil, types.FormatErrorf("object %d at 0x%x: %v", index, offset, err)
	}
	return parser.NewObjectRecord(data, s.properties, s.endian)
}

// TreeviewRegion returns the raw bytes from the treeview offset to the end
// of the file, or nil when the header declares no treeview.
func (s *Snapshot) TreeviewRegion() ([]byte, error) {
	offset := s.header.TreeviewOffset
	if offset == 0 || offset >= uint64(s.size) {
		return nil, nil
	}
	data := make([]byte, uint64(s.size)-offset)
	if _, err := s.file.ReadAt(data, int64(offset)); err != nil && err != io.EOF {
		return nil, &types.IOError{Op: "read", Path: s.path, Err: err}
	}
	return data, nil
}

// CaptureTime returns the capture instant derived from the raw FILETIME.
func (s *Snapshot) CaptureTime() time.Time {
	return time.Unix(s.header.FiletimeUnix, 0).UTC()
}

// TreeviewStatus classifies the treeview region without decoding it.
func (s *Snapshot) TreeviewStatus() types.TreeviewStatus {
	if s.header.TreeviewOffset == 0 {
		return types.TreeviewInvalid
	}
	region, err := s.TreeviewRegion()
	if err != nil {
		return types.TreeviewInvalid
	}
	return treeview.NewTreeviewReader(region, s.endian).Status()
}

// Path returns the snapshot file path.
func (s *Snapshot) Path() string {
	return s.path
}

// Size returns the snapshot file size in bytes.
func (s *Snapshot) Size() int64 {
	return s.size
}

// Endian returns the integer byte order of the file.
func (s *Snapshot) Endian() binary.ByteOrder {
	return s.endian
}

func (s *Snapshot) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
