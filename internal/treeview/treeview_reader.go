package treeview

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// treeviewReader implements the TreeviewReader interface over the raw bytes
// of a snapshot's treeview region (from treeviewOffset to end of file).
type treeviewReader struct {
	data   []byte
	endian binary.ByteOrder
}

// NewTreeviewReader wraps the treeview region of a snapshot. The slice may
// be empty or truncated; Status reports what is actually there.
func NewTreeviewReader(data []byte, endian binary.ByteOrder) interfaces.TreeviewReader {
	return &treeviewReader{data: data, endian: endian}
}

// Status classifies the region. A populated magic with a truncated header
// counts as missing, matching how the native tool abandons half-written
// blocks.
func (tr *treeviewReader) Status() types.TreeviewStatus {
	if len(tr.data) < 8 {
		return types.TreeviewMissing
	}
	magic := tr.endian.Uint64(tr.data[0:8])
	switch magic {
	case types.TreeviewMagicPopulated:
		// Minimum viable header: numNCs + reserved + three required NCs.
		if len(tr.data) < 8+20 {
			return types.TreeviewMissing
		}
		return types.TreeviewPopulated
	case types.TreeviewMagicUnpopulated:
		return types.TreeviewUnpopulated
	default:
		return types.TreeviewInvalid
	}
}

func (tr *treeviewReader) Header() (*types.TreeviewHeader, error) {
	if tr.Status() != types.TreeviewPopulated {
		return nil, types.FormatErrorf("treeview is %s, cannot decode header", tr.Status())
	}

	h := &types.TreeviewHeader{
		Magic:    tr.endian.Uint64(tr.data[0:8]),
		NumNCs:   tr.endian.Uint32(tr.data[8:12]),
		Reserved: tr.endian.Uint32(tr.data[12:16]),
	}

	end := types.TreeviewHeaderFixedSize + int(h.NumNCs)*4
	if len(tr.data) < end {
		return nil, types.FormatErrorf("treeview header with %d NCs truncated", h.NumNCs)
	}
	h.SectionOffsets = make([]uint32, h.NumNCs)
	for i := range h.SectionOffsets {
		pos := types.TreeviewHeaderFixedSize + i*4
		h.SectionOffsets[i] = tr.endian.Uint32(tr.data[pos : pos+4])
	}
	return h, nil
}

// Section decodes one NC section back into a tree of object offsets.
// Decoded nodes carry offsets only; DNs and indices are not stored in the
// wire format.
func (tr *treeviewReader) Section(index int) (*types.TreeNode, error) {
	h, err := tr.Header()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= int(h.NumNCs) {
		return nil, types.FormatErrorf("section index %d out of range (%d NCs)", index, h.NumNCs)
	}

	sectionStart := int(h.SectionOffsets[index])
	visited := make(map[int]bool)
	return tr.decodeEntry(sectionStart, visited)
}

// decodeEntry parses the parent-node entry at an absolute byte position in
// the treeview region, following relative child offsets recursively.
func (tr *treeviewReader) decodeEntry(pos int, visited map[int]bool) (*types.TreeNode, error) {
	if visited[pos] {
		return nil, types.FormatErrorf("treeview entry cycle at offset %d", pos)
	}
	visited[pos] = true

	if pos < 0 || pos+16 > len(tr.data) {
		return nil, types.FormatErrorf("treeview entry at %d truncated", pos)
	}

	objOffset := tr.endian.Uint64(tr.data[pos : pos+8])
	nWith := int(tr.endian.Uint32(tr.data[pos+8 : pos+12]))
	nWithout := int(tr.endian.Uint32(tr.data[pos+12 : pos+16]))

	arrayEnd := pos + 16 + nWith*4 + nWithout*8
	if arrayEnd > len(tr.data) {
		return nil, types.FormatErrorf("treeview entry at %d: child arrays truncated", pos)
	}

	node := &types.TreeNode{ObjectOffset: objOffset}

	for i := 0; i < nWith; i++ {
		relPos := pos + 16 + i*4
		rel := int(int32(tr.endian.Uint32(tr.data[relPos : relPos+4])))
		child, err := tr.decodeEntry(pos+rel, visited)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	inlineBase := pos + 16 + nWith*4
	for i := 0; i < nWithout; i++ {
		off := tr.endian.Uint64(tr.data[inlineBase+i*8 : inlineBase+i*8+8])
		node.Children = append(node.Children, &types.TreeNode{ObjectOffset: off})
	}

	return node, nil
}
