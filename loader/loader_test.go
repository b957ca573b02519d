package loader

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marfl/fbas-analyzer/fbas"
	ft "github.com/marfl/fbas-analyzer/internal/testutils/fbastest"
)

func TestFormatFromFilename(t *testing.T) {
	require.Equal(t, FormatYAML, FormatFromFilename("nodes.yaml"))
	require.Equal(t, FormatYAML, FormatFromFilename("/tmp/NODES.YML"))
	require.Equal(t, FormatJSON, FormatFromFilename("nodes.json"))
	require.Equal(t, FormatJSON, FormatFromFilename("nodes"))
}

func TestLoadFbasFile_workedExample(t *testing.T) {
	f, err := LoadFbasFile("testdata/correct.json")
	require.NoError(t, err)
	require.Equal(t, 11, f.NodeCount())
	require.Equal(t, ft.WorkedExample(t).Fingerprint(), f.Fingerprint())

	// empty quorum set makes the node an observer
	require.Nil(t, f.QuorumSet(7))
	n, ok := f.Node(7)
	require.True(t, ok)
	require.Equal(t, "watcher", n.Name)
	require.Equal(t, "NODE07", f.PublicKey(7))
}

func TestLoadFbasFile_nestedYAML(t *testing.T) {
	f, err := LoadFbasFile("testdata/nested.yaml")
	require.NoError(t, err)
	require.Equal(t, 4, f.NodeCount())
	require.Equal(t, ft.IDs(0, 1, 2), f.NodesWithQuorumSet().IDs())

	qs := f.QuorumSet(0)
	require.NotNil(t, qs)
	require.Equal(t, 3, qs.Threshold)
	require.Len(t, qs.InnerQuorumSets, 1)
	require.Equal(t, ft.IDs(0, 1, 2, 3), qs.ContainedNodes().IDs())

	require.True(t, f.IsQuorum(fbas.NodeIDSetOf(0, 1, 2)))
	require.False(t, f.IsQuorum(fbas.NodeIDSetOf(0, 1)))
}

func TestLoadFbas_errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFbasFile("testdata/no_such_file.json")
		require.Error(t, err)
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := LoadFbas(strings.NewReader(`{"publicKey":`), FormatJSON)
		require.ErrorContains(t, err, "decoding node list")
	})
	t.Run("unsupported format", func(t *testing.T) {
		_, err := LoadFbas(strings.NewReader(`[]`), Format("toml"))
		require.ErrorContains(t, err, `unsupported format "toml"`)
	})
	t.Run("duplicate public key", func(t *testing.T) {
		_, err := LoadFbas(strings.NewReader(`[{"publicKey":"A"},{"publicKey":"A"}]`), FormatJSON)
		require.ErrorIs(t, err, ErrDuplicatePublicKey)
	})
	t.Run("invalid threshold", func(t *testing.T) {
		_, err := LoadFbas(strings.NewReader(`[{"publicKey":"A","quorumSet":{"threshold":2,"validators":["A"]}}]`), FormatJSON)
		require.ErrorIs(t, err, fbas.ErrInvalidThreshold)
	})
	t.Run("zero threshold with validators", func(t *testing.T) {
		_, err := LoadFbas(strings.NewReader(`[{"publicKey":"A","quorumSet":{"threshold":0,"validators":["A"]}}]`), FormatJSON)
		require.ErrorIs(t, err, fbas.ErrInvalidThreshold)
	})
	t.Run("unknown validator", func(t *testing.T) {
		_, err := LoadFbasFile("testdata/unknown_validator.json")
		require.ErrorIs(t, err, ErrUnknownValidator)
		require.ErrorContains(t, err, `"GX"`)
	})
}

func TestLoadFbas_addUnknownValidators(t *testing.T) {
	f, err := LoadFbasFile("testdata/unknown_validator.json", AddUnknownValidators())
	require.NoError(t, err)
	require.Equal(t, 3, f.NodeCount())
	require.Equal(t, "GX", f.PublicKey(2))
	require.Nil(t, f.QuorumSet(2))
	require.Equal(t, ft.IDs(0, 2), f.QuorumSet(0).Validators)
	// GX never agrees, so GA can't be satisfied
	require.True(t, f.SatisfiableNodes().IsEmpty())
}

func TestExportFbas_roundTrip(t *testing.T) {
	f, err := LoadFbasFile("testdata/nested.yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(ExportFbas(f)))
	g, err := LoadFbas(&buf, FormatJSON)
	require.NoError(t, err)
	require.Equal(t, f.Fingerprint(), g.Fingerprint())
	n, _ := g.Node(0)
	require.Equal(t, "a", n.Name)
}

func TestLoadOrganizations(t *testing.T) {
	f, err := LoadFbasFile("testdata/correct.json")
	require.NoError(t, err)

	orgs, err := LoadOrganizationsFile("testdata/correct_orgs.json", f)
	require.NoError(t, err)
	require.Equal(t, 2, orgs.Len())
	org, ok := orgs.OrganizationOf(1)
	require.True(t, ok)
	require.Equal(t, "org-a", org.ID)
	require.Equal(t, "Org A", org.Name)
	require.Equal(t, ft.IDs(0, 1), org.Members.IDs())
	_, ok = orgs.OrganizationOf(2)
	require.False(t, ok)

	t.Run("yaml", func(t *testing.T) {
		f, err := LoadFbasFile("testdata/nested.yaml")
		require.NoError(t, err)
		orgs, err := LoadOrganizationsFile("testdata/nested_orgs.yaml", f)
		require.NoError(t, err)
		require.Equal(t, 1, orgs.Len())
		require.Equal(t, ft.IDs(0, 1), orgs.Group(1).IDs())
	})
	t.Run("unknown validator", func(t *testing.T) {
		_, err := LoadOrganizations(strings.NewReader(`[{"id":"x","validators":["NOPE"]}]`), FormatJSON, f)
		require.ErrorIs(t, err, fbas.ErrUnknownNode)
	})
	t.Run("duplicate membership", func(t *testing.T) {
		_, err := LoadOrganizations(strings.NewReader(`[{"id":"x","validators":["NODE00"]},{"id":"y","validators":["NODE00"]}]`), FormatJSON, f)
		require.ErrorIs(t, err, fbas.ErrDuplicateMembership)
	})
}

func TestLabeler(t *testing.T) {
	f, err := LoadFbasFile("testdata/correct.json")
	require.NoError(t, err)

	byKey := NewLabeler(f, false)
	require.Equal(t, "NODE00", byKey.Label(0))
	require.Equal(t, "", byKey.Label(100))

	byName := NewLabeler(f, true)
	require.Equal(t, []string{"alpha", "NODE10"}, byName.Set(fbas.NodeIDSetOf(0, 10)))
	require.Equal(t, [][]string{{"alpha", "beta"}, {}}, byName.Sets(fbas.NodeIDSets{fbas.NodeIDSetOf(0, 1), {}}))
}
