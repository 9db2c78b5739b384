package treeview

import (
	"strings"

	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// Entry is one DN index record handed to the tree builder: the original-case
// DN, the object's file-order index and its record byte offset.
type Entry struct {
	DN     string
	Index  int
	Offset uint64
}

// ParentDN extracts the immediate parent of an LDAP DN by locating the
// first unescaped comma. A comma preceded by a backslash is part of the
// value (CN=Smith\, John) and must not split. Returns "" for a root DN.
func ParentDN(dn string) string {
	for i := 0; i < len(dn); i++ {
		if dn[i] == ',' && (i == 0 || dn[i-1] != '\\') {
			if i+1 < len(dn) {
				return dn[i+1:]
			}
			return ""
		}
	}
	return ""
}

// Builder reconstructs NC hierarchies from a flat DN index. Synthetic
// placeholder ids are negative and strictly decreasing, unique across every
// tree built by the same Builder (one Builder per enrichment run).
type Builder struct {
	nextSynthetic int
}

func NewBuilder() *Builder {
	return &Builder{nextSynthetic: -1}
}

// nodeInfo is the planning record for one DN, keyed case-insensitively.
type nodeInfo struct {
	dn        string // original case
	index     int    // negative for synthetic placeholders
	offset    uint64 // zero until backfilled for synthetics
	synthetic bool
}

// TreePlan is the immutable planning result for one naming context: every
// member DN (real and synthetic), the parent/child edges, and the DNs that
// need synthetic object records. The final tree is built only after all
// synthetic offsets are known.
type TreePlan struct {
	rootKey  string
	info     map[string]*nodeInfo
	children map[string][]string
	// MissingDNs lists synthesized ancestor DNs in discovery order,
	// original case preserved.
	MissingDNs []string

	// UnreachableDNs lists members with no ancestor path to the selected
	// root, in discovery order. They are omitted from the encoded section;
	// an absent NC root object is the usual cause.
	UnreachableDNs []string
}

// RootDN returns the original-case DN selected as the NC root.
func (p *TreePlan) RootDN() string {
	return p.info[p.rootKey].dn
}

// Plan filters the DN index with the membership predicate (applied to the
// case-folded DN), computes every parent/child edge, and registers a
// synthetic placeholder for each ancestor container that satisfies the
// predicate, is absent from the index and is not the NC root itself. The
// upward walk stops at ncRootDN or at the first already-known ancestor.
// Returns nil when no DN matches the predicate.
func (b *Builder) Plan(ncRootDN string, member func(lowerDN string) bool, entries []Entry) (*TreePlan, error) {
	plan := &TreePlan{
		info:     make(map[string]*nodeInfo),
		children: make(map[string][]string),
	}
	ncRootKey := strings.ToLower(ncRootDN)

	var realKeys []string
	for _, e := range entries {
		key := strings.ToLower(e.DN)
		if !member(key) {
			continue
		}
		plan.info[key] = &nodeInfo{dn: e.DN, index: e.Index, offset: e.Offset}
		realKeys = append(realKeys, key)
	}

	if len(plan.info) == 0 {
		return nil, nil
	}

	var synthetic []string
	for _, key := range realKeys {
		if key == ncRootKey {
			continue
		}

		node := plan.info[key]
		parent := ParentDN(node.dn)
		if parent == "" {
			continue
		}

		// Walk upward, inventing placeholders for absent ancestors.
		current := parent
		for current != "" {
			curKey := strings.ToLower(current)
			if curKey == ncRootKey {
				break
			}
			if _, known := plan.info[curKey]; known {
				break
			}
			if member(curKey) {
				plan.info[curKey] = &nodeInfo{
					dn:        current,
					index:     b.nextSynthetic,
					synthetic: true,
				}
				b.nextSynthetic--
				plan.MissingDNs = append(plan.MissingDNs, current)
				synthetic = append(synthetic, curKey)
			}
			current = ParentDN(current)
		}

		parentKey := strings.ToLower(parent)
		if _, known := plan.info[parentKey]; known {
			plan.children[parentKey] = append(plan.children[parentKey], key)
		}
	}

	// Synthetic containers hook into their own parents after the real
	// objects, preserving discovery order within each parent.
	for _, key := range synthetic {
		parent := ParentDN(plan.info[key].dn)
		if parent == "" {
			continue
		}
		parentKey := strings.ToLower(parent)
		if _, known := plan.info[parentKey]; known {
			plan.children[parentKey] = append(plan.children[parentKey], key)
		}
	}

	// The tree root is the shortest DN in the final member set. Child DNs
	// always contain their parent DN as a suffix, so length is a depth
	// proxy. A length tie between distinct DNs is flagged, not resolved.
	allKeys := make([]string, 0, len(plan.info))
	for key := range plan.info {
		allKeys = append(allKeys, key)
	}
	rootKey := shortestKey(allKeys)
	for _, key := range allKeys {
		if key != rootKey && len(key) == len(rootKey) {
			return nil, types.IntegrityErrorf("ambiguous NC root: %q and %q have equal length", plan.info[rootKey].dn, plan.info[key].dn)
		}
	}
	plan.rootKey = rootKey

	// Members outside the root's subtree cannot be encoded. Discovery order
	// keeps the report deterministic.
	reached := make(map[string]bool, len(plan.info))
	var walk func(key string)
	walk = func(key string) {
		reached[key] = true
		for _, childKey := range plan.children[key] {
			walk(childKey)
		}
	}
	walk(rootKey)
	if len(reached) < len(plan.info) {
		for _, key := range append(append([]string{}, realKeys...), synthetic...) {
			if !reached[key] {
				plan.UnreachableDNs = append(plan.UnreachableDNs, plan.info[key].dn)
			}
		}
	}

	return plan, nil
}

// shortestKey returns the shortest key, lexicographically first among
// equals so the ambiguity check above is deterministic.
func shortestKey(keys []string) string {
	root := keys[0]
	for _, k := range keys[1:] {
		if len(k) < len(root) || (len(k) == len(root) && k < root) {
			root = k
		}
	}
	return root
}

// Build materializes the final tree. syntheticOffsets must map every DN in
// MissingDNs (case-folded) to its assigned record offset; the tree is built
// in one pass once those are known, never mutated afterwards.
func (p *TreePlan) Build(syntheticOffsets map[string]uint64) (*types.TreeNode, error) {
	return p.buildNode(p.rootKey, syntheticOffsets)
}

func (p *TreePlan) buildNode(key string, syntheticOffsets map[string]uint64) (*types.TreeNode, error) {
	info := p.info[key]
	node := &types.TreeNode{
		DN:           info.dn,
		ObjectIndex:  info.index,
		ObjectOffset: info.offset,
	}
	if info.synthetic {
		offset, ok := syntheticOffsets[key]
		if !ok {
			return nil, types.IntegrityErrorf("no synthetic record assigned for %q", info.dn)
		}
		node.ObjectOffset = offset
	}

	for _, childKey := range p.children[key] {
		child, err := p.buildNode(childKey, syntheticOffsets)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
