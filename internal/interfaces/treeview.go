// File: internal/interfaces/treeview.go
package interfaces

import "github.com/deploymenttheory/go-adexplorer/internal/types"

// TreeviewReader inspects and decodes the treeview block of a snapshot
type TreeviewReader interface {
	// Status classifies the treeview region without decoding it
	Status() types.TreeviewStatus

	// Header decodes the treeview header; only valid for a populated block
	Header() (*types.TreeviewHeader, error)

	// Section decodes the parent-node entries of one NC section into a
	// tree of object offsets, for verification and round-trip checks
	Section(index int) (*types.TreeNode, error)
}

// SectionEncoder serializes one reconstructed NC tree into the wire format
type SectionEncoder interface {
	// EncodeSection renders a tree as a sequence of parent-node entries.
	// A root without children cannot be represented and fails fast.
	EncodeSection(root *types.TreeNode) ([]byte, error)
}
