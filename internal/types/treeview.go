package types

// Treeview block magics. The first marks a populated index written by the
// native tool (or by us); the second an allocated-but-empty placeholder,
// which is treated the same as a missing treeview.
const (
	TreeviewMagicPopulated   uint64 = 0xFFFFFFFFFFFFFFFE
	TreeviewMagicUnpopulated uint64 = 0xFFFFFFFFFFFFFFFF
)

// TreeviewHeaderFixedSize is the header size before the per-NC offset array:
// [uint64 magic][uint32 numNCs][uint32 reserved].
const TreeviewHeaderFixedSize = 16

// TreeviewWordSize is the unit of parent-node entry positions. Relative
// child offsets are stored in bytes but are always word multiples.
const TreeviewWordSize = 4

// TreeviewStatus classifies the treeview region of a snapshot.
type TreeviewStatus int

const (
	TreeviewInvalid TreeviewStatus = iota
	TreeviewMissing
	TreeviewUnpopulated
	TreeviewPopulated
)

func (s TreeviewStatus) String() string {
	switch s {
	case TreeviewInvalid:
		return "invalid"
	case TreeviewMissing:
		return "missing"
	case TreeviewUnpopulated:
		return "unpopulated"
	case TreeviewPopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// TreeviewHeader binds the per-NC sections together. SectionOffsets are
// byte offsets relative to the start of the treeview block, one per NC, in
// the fixed section order (Domain, Configuration, Schema, then optional
// DomainDnsZones and ForestDnsZones).
type TreeviewHeader struct {
	Magic          uint64
	NumNCs         uint32
	Reserved       uint32
	SectionOffsets []uint32
}

// ParentNode is the decoded form of one standalone treeview entry. Only
// nodes with at least one child get an entry; childless nodes appear solely
// as inline object offsets inside their parent.
type ParentNode struct {
	ObjectOffset       uint64
	ChildOffsets       []int32  // relative byte offsets to child entries
	InlineChildOffsets []uint64 // absolute object offsets of leaf children
}

// EncodedWords returns the entry size in words:
// header(4 words) + one word per child entry + two words per inline leaf.
func (p *ParentNode) EncodedWords() int {
	return 4 + len(p.ChildOffsets) + 2*len(p.InlineChildOffsets)
}

// TreeNode is one node of a reconstructed NC hierarchy. ObjectIndex is the
// real object index, or a negative placeholder id for a synthesized
// container whose record does not exist in the snapshot yet. Children keep
// discovery order.
type TreeNode struct {
	DN           string
	ObjectIndex  int
	ObjectOffset uint64
	Children     []*TreeNode
}

// IsSynthetic reports whether the node stands in for an absent container.
func (n *TreeNode) IsSynthetic() bool {
	return n.ObjectIndex < 0
}
