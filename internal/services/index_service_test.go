package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

func buildFixtureIndex(t *testing.T, objects []fixtureObject) *Index {
	t.Helper()
	path := newFixture(objects).write(t, t.TempDir())
	snap, err := OpenSnapshot(path, quietLogger())
	require.NoError(t, err)
	defer snap.Close()

	index, err := BuildIndex(snap, quietLogger())
	require.NoError(t, err)
	return index
}

func TestBuildIndex_DNIndex(t *testing.T) {
	index := buildFixtureIndex(t, forestObjects())

	// File order is preserved and lookups are case-insensitive.
	require.Len(t, index.Entries, 8)
	assert.Equal(t, "DC=example,DC=com", index.Entries[0].DN)
	assert.Equal(t, 0, index.Entries[0].Index)

	idx, ok := index.LookupDN("ou=b,ou=a,dc=EXAMPLE,dc=com")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = index.LookupDN("OU=A,DC=example,DC=com")
	assert.False(t, ok, "a DN present only as a component must not resolve")
}

func TestBuildIndex_DomainAndSIDCaches(t *testing.T) {
	index := buildFixtureIndex(t, forestObjects())

	assert.Equal(t, "DC=example,DC=com", index.RootDomainDN)
	assert.Equal(t, map[string]int{"dc=example,dc=com": 0}, index.Domains)

	idx, ok := index.SIDCache["S-1-5-21-1-2-3"]
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	guid, ok := index.ObjectTypeGUIDs["organizationalunit"]
	require.True(t, ok)
	assert.NotEmpty(t, guid)
}

func TestBuildIndex_AccountCaches(t *testing.T) {
	workstationSID := []byte{
		0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0xe9, 0x03, 0x00, 0x00,
	}
	objects := append(forestObjects(),
		fixtureObject{
			"distinguishedName":  []string{"CN=WS01,DC=example,DC=com"},
			"objectClass":        []string{"top", "computer"},
			"objectSid":          [][]byte{workstationSID},
			"sAMAccountType":     []uint32{types.ComputerAccountType},
			"userAccountControl": []uint32{0x1000},
			"dNSHostName":        []string{"WS01.example.com"},
		},
		fixtureObject{
			"distinguishedName":  []string{"CN=OLD01,DC=example,DC=com"},
			"objectClass":        []string{"top", "computer"},
			"sAMAccountType":     []uint32{types.ComputerAccountType},
			"userAccountControl": []uint32{0x1000 | types.UACAccountDisabled},
			"dNSHostName":        []string{"OLD01.example.com"},
		},
		fixtureObject{
			"distinguishedName":  []string{"CN=DC01,OU=Domain Controllers,DC=example,DC=com"},
			"objectClass":        []string{"top", "computer"},
			"userAccountControl": []uint32{0x1000 | types.UACServerTrustAccount},
		},
	)

	index := buildFixtureIndex(t, objects)

	assert.Equal(t, map[string]string{"ws01.example.com": "S-1-5-1001"}, index.ComputerSIDs,
		"disabled machine accounts stay out of the computer cache")
	assert.Equal(t, []string{"CN=DC01,OU=Domain Controllers,DC=example,DC=com"}, index.DomainControllers)
}

func TestBuildIndex_CrossRefAndCertTemplates(t *testing.T) {
	objects := append(forestObjects(),
		fixtureObject{
			"distinguishedName": []string{"CN=DomainDnsZones,CN=Partitions,CN=Configuration,DC=example,DC=com"},
			"objectClass":       []string{"top", "crossRef"},
			"systemFlags":       []uint32{types.SystemFlagCrossRefNC | 1},
			"nCName":            []string{"DC=DomainDnsZones,DC=example,DC=com"},
		},
		fixtureObject{
			"distinguishedName":    []string{"CN=CA01,CN=Enrollment Services,CN=Configuration,DC=example,DC=com"},
			"objectClass":          []string{"top", "pkiEnrollmentService"},
			"certificateTemplates": []string{"User", "Machine"},
			"name":                 []string{"CA01"},
		},
	)

	index := buildFixtureIndex(t, objects)

	idx, ok := index.Domains["dc=domaindnszones,dc=example,dc=com"]
	require.True(t, ok)
	assert.Equal(t, 8, idx)

	assert.Equal(t, map[string][]string{
		"User":    {"CA01"},
		"Machine": {"CA01"},
	}, index.CertTemplates)
}

func TestBuildIndex_DuplicateDN(t *testing.T) {
	objects := append(forestObjects(), fixtureObject{
		"distinguishedName": []string{"cn=X,ou=b,OU=A,DC=example,DC=com"},
		"objectClass":       []string{"top"},
	})

	path := newFixture(objects).write(t, t.TempDir())
	snap, err := OpenSnapshot(path, quietLogger())
	require.NoError(t, err)
	defer snap.Close()

	_, err = BuildIndex(snap, quietLogger())
	require.Error(t, err)
	var integrityErr *types.IntegrityError
	assert.ErrorAs(t, err, &integrityErr)
}
