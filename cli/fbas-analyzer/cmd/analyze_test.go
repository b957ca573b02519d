package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type rawOutput struct {
	Results struct {
		QuorumIntersection   *bool       `json:"quorumIntersection"`
		IntersectionWitness  [][]uint32  `json:"intersectionWitness"`
		MinimalQuorums       *[][]uint32 `json:"minimalQuorums"`
		MinimalBlockingSets  *[][]uint32 `json:"minimalBlockingSets"`
		MinimalSplittingSets *[][]uint32 `json:"minimalSplittingSets"`
		TopTier              []uint32    `json:"topTier"`
	} `json:"results"`
	SymmetricClusters []json.RawMessage          `json:"symmetricClusters"`
	Description       map[string]any             `json:"description"`
	Stats             map[string]json.RawMessage `json:"stats"`
}

type prettyOutput struct {
	Results           prettyResults   `json:"results"`
	SymmetricClusters []prettyCluster `json:"symmetricClusters"`
}

func decodeOutput[T any](t *testing.T, out *testConsoleWriter) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out.String()), &v), out.String())
	return v
}

func TestAnalyze_defaultQuery(t *testing.T) {
	out, err := execute(t, "analyze testdata/correct.json")
	require.NoError(t, err)

	res := decodeOutput[rawOutput](t, out)
	require.NotNil(t, res.Results.QuorumIntersection)
	require.True(t, *res.Results.QuorumIntersection)
	require.Empty(t, res.Results.IntersectionWitness)
	require.Nil(t, res.Results.MinimalBlockingSets)
	require.Nil(t, res.Results.MinimalSplittingSets)
	require.Nil(t, res.SymmetricClusters)
	require.Nil(t, res.Stats)
}

func TestAnalyze_queries(t *testing.T) {
	out, err := execute(t, "analyze testdata/correct.json -q quorums,blocking,splitting,top-tier,symmetric --stats --workers 2")
	require.NoError(t, err)

	res := decodeOutput[rawOutput](t, out)
	top := [][]uint32{{0, 1}, {0, 10}, {1, 10}}
	require.Equal(t, top, *res.Results.MinimalQuorums)
	require.Equal(t, top, *res.Results.MinimalBlockingSets)
	require.Equal(t, [][]uint32{{0}, {1}, {10}}, *res.Results.MinimalSplittingSets)
	require.Equal(t, []uint32{0, 1, 10}, res.Results.TopTier)
	require.Len(t, res.SymmetricClusters, 1)
	require.Contains(t, res.Stats, "quorums")
	require.Contains(t, res.Stats, "blocking")
	require.NotContains(t, res.Stats, "shrunk-quorums")
}

func TestAnalyze_pretty(t *testing.T) {
	out, err := execute(t, "analyze testdata/correct.json -q quorums,symmetric --pretty --names")
	require.NoError(t, err)

	res := decodeOutput[prettyOutput](t, out)
	mq, ok := res.Results.MinimalQuorums.Get()
	require.True(t, ok)
	require.Equal(t, [][]string{{"alpha", "beta"}, {"alpha", "NODE10"}, {"beta", "NODE10"}}, mq)
	tt, ok := res.Results.TopTier.Get()
	require.True(t, ok)
	require.Equal(t, []string{"alpha", "beta", "NODE10"}, tt)
	require.False(t, res.Results.MinimalBlockingSets.IsKnown())

	require.Len(t, res.SymmetricClusters, 1)
	require.Equal(t, []string{"alpha", "beta", "NODE10"}, res.SymmetricClusters[0].Members)
	require.Equal(t, 2, res.SymmetricClusters[0].QuorumSet.Threshold)
	require.Equal(t, []string{"NODE00", "NODE01", "NODE10"}, res.SymmetricClusters[0].QuorumSet.Validators)
}

func TestAnalyze_describeYAML(t *testing.T) {
	out, err := execute(t, "analyze testdata/correct.json --describe -o yaml")
	require.NoError(t, err)
	s := out.String()
	require.Contains(t, s, "description:\n")
	require.Contains(t, s, "    nodes: 11\n")
	require.Contains(t, s, "    quorumIntersection: true\n")
	require.Contains(t, s, "    topTierSize: 3\n")
}

func TestAnalyze_mergeByOrganizations(t *testing.T) {
	out, err := execute(t, "analyze testdata/correct.json -q quorums --organizations testdata/correct_orgs.json --merge-by-organizations")
	require.NoError(t, err)

	res := decodeOutput[rawOutput](t, out)
	// org-a alone satisfies the top tier
	require.Equal(t, [][]uint32{{0, 1}}, *res.Results.MinimalQuorums)
}

func TestAnalyze_errors(t *testing.T) {
	_, err := execute(t, "analyze testdata/correct.json -q everything")
	require.ErrorContains(t, err, `unknown query "everything"`)

	_, err = execute(t, "analyze testdata/correct.json --merge-by-organizations")
	require.ErrorContains(t, err, "requires --organizations")

	_, err = execute(t, "analyze testdata/correct.json -o csv")
	require.ErrorContains(t, err, `unsupported output format "csv"`)

	_, err = execute(t, "analyze testdata/correct.json --organizations testdata/no_such_orgs.json")
	require.ErrorContains(t, err, "loading organizations")
}

func TestAnalyze_metricsFile(t *testing.T) {
	metricsFile := filepath.Join(t.TempDir(), "fbas.prom")
	_, err := execute(t, "analyze testdata/correct.json -q quorums --metrics-file "+metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	metrics := string(data)
	require.Contains(t, metrics, `fbas_fbas_nodes{stage="original"} 11`)
	require.Contains(t, metrics, `fbas_fbas_nodes{stage="shrunk"} 3`)
	require.Contains(t, metrics, `fbas_query_cached{query="quorums"} 0`)
	require.Regexp(t, `fbas_search_hits\{query="quorums"\} \d+`, metrics)
	require.Contains(t, metrics, "# TYPE fbas_query_duration_seconds gauge")
}

func TestAnalyze_resultCache(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "cache", "results.db")
	_, err := execute(t, "analyze testdata/correct.json -q quorums,blocking --cache-db "+dbFile)
	require.NoError(t, err)

	// second run loads results from the cache
	out, err := execute(t, "analyze testdata/correct.json -q quorums,blocking --stats --cache-db "+dbFile)
	require.NoError(t, err)
	res := decodeOutput[rawOutput](t, out)
	require.JSONEq(t, `true`, string(mustField(t, res.Stats["quorums"], "cached")))
	require.JSONEq(t, `true`, string(mustField(t, res.Stats["blocking"], "cached")))

	out, err = execute(t, "cache list --cache-db "+dbFile)
	require.NoError(t, err)
	require.Len(t, out.lines, 2)
	for _, k := range out.lines {
		require.Regexp(t, `^[0-9a-f]{64}/nodes/(quorums|blocking)$`, k)
	}

	out, err = execute(t, "cache list --network testdata/correct.json --cache-db "+dbFile)
	require.NoError(t, err)
	require.Len(t, out.lines, 2)

	out, err = execute(t, "cache purge --cache-db "+dbFile)
	require.NoError(t, err)
	require.Equal(t, "Deleted 2 cached results", out.String())

	out, err = execute(t, "cache list --cache-db "+dbFile)
	require.NoError(t, err)
	require.Empty(t, out.lines)
}

func mustField(t *testing.T, obj json.RawMessage, name string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(obj, &m))
	v, ok := m[name]
	require.True(t, ok, "field %q missing in %s", name, obj)
	return v
}
