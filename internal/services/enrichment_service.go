package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-adexplorer/internal/treeview"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// EnrichmentService reconstructs a snapshot's treeview index and splices it
// into a copy of the input file. The input file is never mutated; a failed
// run removes its partial output.
type EnrichmentService struct {
	config *Config
	log    *logrus.Logger
}

func NewEnrichmentService(config *Config, log *logrus.Logger) *EnrichmentService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EnrichmentService{config: config, log: log}
}

// EnrichedPath derives the output name by inserting an ".enriched" infix
// before the final extension, or appending it when there is none.
func EnrichedPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	if ext != "" {
		stem := strings.TrimSuffix(base, ext)
		return filepath.Join(dir, stem+".enriched"+ext)
	}
	return filepath.Join(dir, base+".enriched")
}

// ncSection pairs an NC tree plan with its position in the fixed section
// order: Domain, Configuration, Schema, then the optional DNS zone NCs.
type ncSection struct {
	name string
	plan *treeview.TreePlan
}

// Enrich runs the full pipeline. A snapshot whose treeview is already
// populated is reported as done without writing anything; an
// allocated-but-empty or truncated treeview is reconstructed.
func (es *EnrichmentService) Enrich(snapshotPath string) (string, error) {
	snap, err := OpenSnapshot(snapshotPath, es.log)
	if err != nil {
		return "", err
	}
	defer snap.Close()

	status := snap.TreeviewStatus()
	switch status {
	case types.TreeviewPopulated:
		es.log.Info("treeview already populated, nothing to do")
		return "", nil
	case types.TreeviewInvalid:
		return "", types.FormatErrorf("treeview region is invalid, cannot enrich")
	default:
		es.log.WithField("status", status.String()).Info("reconstructing treeview")
	}

	index, err := es.loadOrBuildIndex(snap)
	if err != nil {
		return "", err
	}

	sections, err := es.planSections(index)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, sec := range sections {
		missing = append(missing, sec.plan.MissingDNs...)
	}

	synth := treeview.NewSynthesizer(snap.Properties(), snap.Endian())
	synthetics, synthData, err := synth.Synthesize(missing, snap.ObjectCount(), snap.Header().TreeviewOffset)
	if err != nil {
		return "", err
	}
	if len(synthetics) > 0 {
		es.log.WithField("count", len(synthetics)).Info("creating synthetic containers")
	}

	syntheticOffsets := make(map[string]uint64, len(synthetics))
	for key, obj := range synthetics {
		syntheticOffsets[key] = obj.Offset
	}

	encoder := treeview.NewSectionEncoder(snap.Endian())
	encoded := make([][]byte, 0, len(sections))
	for _, sec := range sections {
		tree, err := sec.plan.Build(syntheticOffsets)
		if err != nil {
			return "", fmt.Errorf("%s NC: %w", sec.name, err)
		}
		data, err := encoder.EncodeSection(tree)
		if err != nil {
			return "", fmt.Errorf("%s NC: %w", sec.name, err)
		}
		encoded = append(encoded, data)
	}

	block := treeview.EncodeTreeview(encoded, snap.Endian())

	outputPath := EnrichedPath(snapshotPath)
	if err := es.writeEnriched(snap, outputPath, synthData, block); err != nil {
		os.Remove(outputPath)
		return "", err
	}

	es.log.WithField("path", outputPath).Info("enriched snapshot written")
	return outputPath, nil
}

func (es *EnrichmentService) loadOrBuildIndex(snap *Snapshot) (*Index, error) {
	header := snap.Header()
	if es.config.CacheEnabled {
		if cached, ok := LoadIndexCache(es.config.CacheDir, header.Filetime, header.Server, es.log); ok {
			return cached, nil
		}
	}

	index, err := BuildIndex(snap, es.log)
	if err != nil {
		return nil, err
	}
	if es.config.CacheEnabled {
		if err := StoreIndexCache(es.config.CacheDir, index, es.log); err != nil {
			es.log.WithError(err).Warn("could not persist index cache")
		}
	}
	return index, nil
}

// planSections derives the NC roots from the domain root and plans each NC
// tree. Domain, Configuration and Schema are required; the DNS zone NCs are
// included only when the snapshot contains them.
func (es *EnrichmentService) planSections(index *Index) ([]ncSection, error) {
	domainRoot := index.RootDomainDN
	if domainRoot == "" {
		return nil, types.IntegrityErrorf("no domain root found in snapshot")
	}

	configRoot := "CN=Configuration," + domainRoot
	schemaRoot := "CN=Schema," + configRoot
	domainDNSRoot := "DC=DomainDnsZones," + domainRoot
	forestDNSRoot := "DC=ForestDnsZones," + domainRoot

	es.log.WithFields(logrus.Fields{
		"domain": domainRoot,
		"config": configRoot,
		"schema": schemaRoot,
	}).Debug("naming context roots")

	domainKey := strings.ToLower(domainRoot)
	configKey := strings.ToLower(configRoot)
	schemaKey := strings.ToLower(schemaRoot)
	domainDNSKey := strings.ToLower(domainDNSRoot)
	forestDNSKey := strings.ToLower(forestDNSRoot)

	entries := index.TreeEntries()
	builder := treeview.NewBuilder()

	type ncSpec struct {
		name     string
		root     string
		member   func(string) bool
		required bool
	}
	specs := []ncSpec{
		{"Domain", domainRoot, func(dn string) bool {
			return strings.HasSuffix(dn, domainKey) &&
				!strings.HasSuffix(dn, configKey) &&
				!strings.HasSuffix(dn, domainDNSKey) &&
				!strings.HasSuffix(dn, forestDNSKey)
		}, true},
		{"Configuration", configRoot, func(dn string) bool {
			return strings.HasSuffix(dn, configKey) && !strings.HasSuffix(dn, schemaKey)
		}, true},
		{"Schema", schemaRoot, func(dn string) bool {
			return strings.HasSuffix(dn, schemaKey)
		}, true},
		{"DomainDnsZones", domainDNSRoot, func(dn string) bool {
			return strings.HasSuffix(dn, domainDNSKey)
		}, false},
		{"ForestDnsZones", forestDNSRoot, func(dn string) bool {
			return strings.HasSuffix(dn, forestDNSKey)
		}, false},
	}

	var sections []ncSection
	var missingRequired []string
	for _, spec := range specs {
		plan, err := builder.Plan(spec.root, spec.member, entries)
		if err != nil {
			return nil, fmt.Errorf("%s NC: %w", spec.name, err)
		}
		if plan == nil {
			if spec.required {
				missingRequired = append(missingRequired, spec.name)
			}
			continue
		}
		if len(plan.UnreachableDNs) > 0 {
			es.log.WithFields(logrus.Fields{
				"nc":    spec.name,
				"count": len(plan.UnreachableDNs),
				"first": plan.UnreachableDNs[0],
			}).Warn("members outside the NC root subtree are omitted from the treeview")
		}
		sections = append(sections, ncSection{name: spec.name, plan: plan})
	}
	if len(missingRequired) > 0 {
		return nil, types.IntegrityErrorf("missing required naming context(s): %s", strings.Join(missingRequired, ", "))
	}
	return sections, nil
}

// writeEnriched copies the input byte for byte, then patches the copy:
// signature repair, header treeview offset when synthetics were appended,
// synthetic records at the old treeview position, the new treeview block
// after them, and a truncate at its end.
func (es *EnrichmentService) writeEnriched(snap *Snapshot, outputPath string, synthData, block []byte) error {
	if err := copyFile(snap.Path(), outputPath); err != nil {
		return err
	}

	out, err := os.OpenFile(outputPath, os.O_RDWR, 0o644)
	if err != nil {
		return &types.IOError{Op: "open", Path: outputPath, Err: err}
	}
	defer out.Close()

	header := snap.Header()
	if !header.SignatureValid() {
		es.log.Info("repairing snapshot signature")
		if _, err := out.WriteAt([]byte(types.Magic), types.SigOffset); err != nil {
			return &types.IOError{Op: "write", Path: outputPath, Err: err}
		}
	}

	oldOffset := header.TreeviewOffset
	newOffset := oldOffset + uint64(len(synthData))
	if len(synthData) > 0 {
		var buf [8]byte
		snap.Endian().PutUint64(buf[:], newOffset)
		if _, err := out.WriteAt(buf[:], types.TreeviewOffsetPos); err != nil {
			return &types.IOError{Op: "write", Path: outputPath, Err: err}
		}
		if _, err := out.WriteAt(synthData, int64(oldOffset)); err != nil {
			return &types.IOError{Op: "write", Path: outputPath, Err: err}
		}
		es.log.WithFields(logrus.Fields{
			"old": fmt.Sprintf("0x%x", oldOffset),
			"new": fmt.Sprintf("0x%x", newOffset),
		}).Debug("treeview offset moved past synthetic records")
	}

	if _, err := out.WriteAt(block, int64(newOffset)); err != nil {
		return &types.IOError{Op: "write", Path: outputPath, Err: err}
	}
	if err := out.Truncate(int64(newOffset) + int64(len(block))); err != nil {
		return &types.IOError{Op: "truncate", Path: outputPath, Err: err}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return &types.IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return &types.IOError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &types.IOError{Op: "copy", Path: dst, Err: err}
	}
	return out.Close()
}
