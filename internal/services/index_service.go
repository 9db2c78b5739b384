package services

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	parser "github.com/deploymenttheory/go-adexplorer/internal/parsers/snapshot"
	"github.com/deploymenttheory/go-adexplorer/internal/treeview"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// DNEntry is one record of the DN index, in file order.
type DNEntry struct {
	DN     string `json:"dn"`
	Index  int    `json:"index"`
	Offset uint64 `json:"offset"`
}

// Index holds every cache produced by the single preprocessing pass over a
// snapshot. Filetime and Server key the side-cache: a stored index is valid
// only for the exact capture instant it was built from.
type Index struct {
	Filetime uint64 `json:"filetime"`
	Server   string `json:"server"`

	// Entries is the DN index in file order; DNByKey maps the case-folded
	// DN back into it. Directory DNs are globally unique after case
	// folding, so a collision means a corrupt snapshot.
	Entries []DNEntry      `json:"entries"`
	DNByKey map[string]int `json:"dn_by_key"` // case-folded DN -> position in Entries

	// SIDCache maps SID strings to object indices.
	SIDCache map[string]int `json:"sid_cache"`

	// Domains maps case-folded NC root DNs to object indices, first
	// discovery wins. RootDomainDN is the DN of the first object carrying
	// the domain class, in file order.
	Domains      map[string]int `json:"domains"`
	RootDomainDN string         `json:"root_domain_dn"`

	// ComputerSIDs maps case-folded DNS host names of enabled machine
	// accounts to their SID strings.
	ComputerSIDs map[string]string `json:"computer_sids"`

	// DomainControllers lists the DNs of accounts with the server trust
	// bit set, in file order.
	DomainControllers []string `json:"domain_controllers"`

	// CertTemplates maps certificate template names to the enrollment
	// service CAs that publish them.
	CertTemplates map[string][]string `json:"cert_templates"`

	// ObjectTypeGUIDs maps case-folded class names to their schemaIDGUID
	// strings.
	ObjectTypeGUIDs map[string]string `json:"object_type_guids"`
}

func newIndex(filetime uint64, server string) *Index {
	return &Index{
		Filetime:        filetime,
		Server:          server,
		DNByKey:         make(map[string]int),
		SIDCache:        make(map[string]int),
		Domains:         make(map[string]int),
		ComputerSIDs:    make(map[string]string),
		CertTemplates:   make(map[string][]string),
		ObjectTypeGUIDs: make(map[string]string),
	}
}

// LookupDN resolves a DN case-insensitively to its object index.
func (ix *Index) LookupDN(dn string) (int, bool) {
	pos, ok := ix.DNByKey[strings.ToLower(dn)]
	if !ok {
		return 0, false
	}
	return ix.Entries[pos].Index, true
}

// TreeEntries adapts the DN index for the tree builder.
func (ix *Index) TreeEntries() []treeview.Entry {
	entries := make([]treeview.Entry, len(ix.Entries))
	for i, e := range ix.Entries {
		entries[i] = treeview.Entry{DN: e.DN, Index: e.Index, Offset: e.Offset}
	}
	return entries
}

// indexSource is what the preprocessing pass reads from a snapshot.
type indexSource interface {
	interfaces.ObjectReader
	Header() *types.SnapshotHeader
	Classes() interfaces.ClassResolver
}

// BuildIndex runs the preprocessing pass: one forward scan over all objects
// in file order, extracting the attributes the caches need. Must not be
// parallelized naively: NC-root registration keeps the first object seen in
// file order.
func BuildIndex(snap indexSource, log *logrus.Logger) (*Index, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	header := snap.Header()
	ix := newIndex(header.Filetime, header.Server)

	for _, class := range snap.Classes().Classes() {
		ix.ObjectTypeGUIDs[strings.ToLower(class.Name)] = class.SchemaIDGUID.String()
	}

	count := snap.ObjectCount()
	for idx := 0; idx < count; idx++ {
		record, err := snap.ObjectAt(idx)
		if err != nil {
			return nil, err
		}
		if err := ix.addObject(snap, idx, record); err != nil {
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"sids":      len(ix.SIDCache),
		"dns":       len(ix.Entries),
		"domains":   len(ix.Domains),
		"computers": len(ix.ComputerSIDs),
		"dcs":       len(ix.DomainControllers),
	}).Info("preprocessing complete")

	return ix, nil
}

func (ix *Index) addObject(snap interfaces.ObjectReader, idx int, record interfaces.ObjectRecord) error {
	classes, _, err := record.StringsAttribute("objectClass")
	if err != nil {
		return err
	}
	classSet := make(map[string]bool, len(classes))
	for _, c := range classes {
		classSet[strings.ToLower(c)] = true
	}

	sidString := ""
	if sidBytes, present, err := record.BytesAttribute("objectSid"); err != nil {
		return err
	} else if present {
		sidString, err = parser.FormatSID(sidBytes)
		if err != nil {
			return err
		}
		ix.SIDCache[sidString] = idx
	}

	dn, hasDN, err := record.StringAttribute("distinguishedName")
	if err != nil {
		return err
	}
	if hasDN && dn != "" {
		key := strings.ToLower(dn)
		if pos, exists := ix.DNByKey[key]; exists {
			if ix.Entries[pos].Index != idx {
				return types.IntegrityErrorf("duplicate DN %q for objects %d and %d", dn, ix.Entries[pos].Index, idx)
			}
		} else {
			offset, err := snap.ObjectOffset(idx)
			if err != nil {
				return err
			}
			ix.DNByKey[key] = len(ix.Entries)
			ix.Entries = append(ix.Entries, DNEntry{DN: dn, Index: idx, Offset: offset})
		}
	}

	systemFlags, _, err := record.IntAttribute("systemFlags")
	if err != nil {
		return err
	}
	uac, _, err := record.IntAttribute("userAccountControl")
	if err != nil {
		return err
	}
	accountType, _, err := record.IntAttribute("sAMAccountType")
	if err != nil {
		return err
	}

	// NC roots: domain objects directly, crossRef replicas via their
	// nCName. First object in file order wins.
	if classSet["domain"] && hasDN {
		key := strings.ToLower(dn)
		if _, known := ix.Domains[key]; !known {
			ix.Domains[key] = idx
		}
		if ix.RootDomainDN == "" {
			ix.RootDomainDN = dn
		}
	}
	if classSet["crossref"] && systemFlags&types.SystemFlagCrossRefNC != 0 {
		ncName, present, err := record.StringAttribute("nCName")
		if err != nil {
			return err
		}
		if present && ncName != "" {
			key := strings.ToLower(ncName)
			if _, known := ix.Domains[key]; !known {
				ix.Domains[key] = idx
			}
		}
	}

	if uac&types.UACServerTrustAccount != 0 && hasDN {
		ix.DomainControllers = append(ix.DomainControllers, dn)
	}

	if accountType == types.ComputerAccountType && uac&types.UACAccountDisabled == 0 {
		host, present, err := record.StringAttribute("dNSHostName")
		if err != nil {
			return err
		}
		if present && host != "" && sidString != "" {
			ix.ComputerSIDs[strings.ToLower(host)] = sidString
		}
	}

	if classSet["pkienrollmentservice"] {
		templates, _, err := record.StringsAttribute("certificateTemplates")
		if err != nil {
			return err
		}
		caName, _, err := record.StringAttribute("name")
		if err != nil {
			return err
		}
		for _, tmpl := range templates {
			ix.CertTemplates[tmpl] = append(ix.CertTemplates[tmpl], caName)
		}
	}

	return nil
}
