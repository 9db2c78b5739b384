package treeview

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// sectionEncoder implements the SectionEncoder interface
type sectionEncoder struct {
	endian binary.ByteOrder
}

func NewSectionEncoder(endian binary.ByteOrder) interfaces.SectionEncoder {
	return &sectionEncoder{endian: endian}
}

// EncodeSection serializes one NC tree. Childless nodes never get their own
// entry: their object offset is inlined into the parent's entry, which keeps
// the encoding compact since most directory objects are leaves. Entry
// positions are measured in 4-byte words; child references between entries
// are relative word offsets stored in bytes, so a section is relocatable as
// a unit.
func (se *sectionEncoder) EncodeSection(root *types.TreeNode) ([]byte, error) {
	if len(root.Children) == 0 {
		// The wire format has no representation for a childless root: an
		// entry exists to enumerate children.
		return nil, types.FormatErrorf("NC root %q has no children, cannot encode section", root.DN)
	}

	flat := flatten(root)

	// Pass 1: decide inlining. A child with no children of its own lives
	// only inside its parent's entry.
	inline := make(map[int]bool)
	markInlineLeaves(root, inline)

	// Pass 2: assign word positions to every standalone entry in flattened
	// order, skipping inlined leaves.
	positions := make(map[int]int, len(flat))
	words := 0
	for _, node := range flat {
		if inline[node.ObjectIndex] {
			continue
		}
		if len(node.Children) == 0 {
			// Reachable only for a childless non-root entry that escaped
			// inlining, which the tree builder never produces.
			return nil, types.FormatErrorf("standalone entry %q has no children", node.DN)
		}
		positions[node.ObjectIndex] = words

		entry := types.ParentNode{ObjectOffset: node.ObjectOffset}
		for _, c := range node.Children {
			if len(c.Children) > 0 {
				entry.ChildOffsets = append(entry.ChildOffsets, 0)
			} else {
				entry.InlineChildOffsets = append(entry.InlineChildOffsets, 0)
			}
		}
		words += entry.EncodedWords()
	}

	out := make([]byte, words*types.TreeviewWordSize)
	for _, node := range flat {
		if inline[node.ObjectIndex] {
			continue
		}
		se.writeEntry(out, node, positions)
	}
	return out, nil
}

func (se *sectionEncoder) writeEntry(out []byte, node *types.TreeNode, positions map[int]int) {
	wordPos := positions[node.ObjectIndex]
	pos := wordPos * types.TreeviewWordSize

	var withChildren, withoutChildren []*types.TreeNode
	for _, c := range node.Children {
		if len(c.Children) > 0 {
			withChildren = append(withChildren, c)
		} else {
			withoutChildren = append(withoutChildren, c)
		}
	}

	se.endian.PutUint64(out[pos:pos+8], node.ObjectOffset)
	se.endian.PutUint32(out[pos+8:pos+12], uint32(len(withChildren)))
	se.endian.PutUint32(out[pos+12:pos+16], uint32(len(withoutChildren)))

	cursor := pos + 16
	for _, c := range withChildren {
		rel := (positions[c.ObjectIndex] - wordPos) * types.TreeviewWordSize
		se.endian.PutUint32(out[cursor:cursor+4], uint32(int32(rel)))
		cursor += 4
	}
	for _, c := range withoutChildren {
		se.endian.PutUint64(out[cursor:cursor+8], c.ObjectOffset)
		cursor += 8
	}
}

func flatten(node *types.TreeNode) []*types.TreeNode {
	result := []*types.TreeNode{node}
	for _, c := range node.Children {
		result = append(result, flatten(c)...)
	}
	return result
}

func markInlineLeaves(node *types.TreeNode, inline map[int]bool) {
	for _, c := range node.Children {
		if len(c.Children) == 0 {
			inline[c.ObjectIndex] = true
		} else {
			markInlineLeaves(c, inline)
		}
	}
}

// EncodeTreeview binds encoded NC sections behind the treeview header.
// Section offsets are relative to the start of the returned block; section
// order must already follow the fixed NC order.
func EncodeTreeview(sections [][]byte, endian binary.ByteOrder) []byte {
	headerSize := types.TreeviewHeaderFixedSize + len(sections)*4
	total := headerSize
	for _, s := range sections {
		total += len(s)
	}

	out := make([]byte, 0, total)
	var scratch [8]byte

	endian.PutUint64(scratch[:8], types.TreeviewMagicPopulated)
	out = append(out, scratch[:8]...)
	endian.PutUint32(scratch[:4], uint32(len(sections)))
	out = append(out, scratch[:4]...)
	endian.PutUint32(scratch[:4], 0) // reserved
	out = append(out, scratch[:4]...)

	offset := headerSize
	for _, s := range sections {
		endian.PutUint32(scratch[:4], uint32(offset))
		out = append(out, scratch[:4]...)
		offset += len(s)
	}
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}
