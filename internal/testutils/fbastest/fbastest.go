/*
Package fbastest contains FBAS builders used by tests of multiple packages.
*/
package fbastest

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marfl/fbas-analyzer/fbas"
)

// QSet is shorthand for creating quorum set.
func QSet(threshold int, validators []fbas.NodeID, inner ...*fbas.QuorumSet) *fbas.QuorumSet {
	return &fbas.QuorumSet{Threshold: threshold, Validators: validators, InnerQuorumSets: inner}
}

// IDs is shorthand for slice of node IDs.
func IDs(ids ...fbas.NodeID) []fbas.NodeID {
	return ids
}

// Sets creates set collection from nested slices.
func Sets(ids ...[]fbas.NodeID) fbas.NodeIDSets {
	return fbas.NodeIDSetsFromIDs(ids)
}

// New creates FBAS where node i has quorum set qsets[i], nil means no quorum set.
func New(t testing.TB, qsets ...*fbas.QuorumSet) *fbas.Fbas {
	t.Helper()
	nodes := make([]fbas.Node, len(qsets))
	for i, qs := range qsets {
		nodes[i] = fbas.Node{PublicKey: fmt.Sprintf("NODE%02d", i), QuorumSet: qs}
	}
	f, err := fbas.New(nodes)
	require.NoError(t, err)
	return f
}

// Symmetric returns FBAS of n nodes where every node requires "threshold" of all n nodes.
func Symmetric(t testing.TB, n, threshold int) *fbas.Fbas {
	t.Helper()
	all := make([]fbas.NodeID, n)
	for i := range all {
		all[i] = fbas.NodeID(i)
	}
	qsets := make([]*fbas.QuorumSet, n)
	for i := range qsets {
		qsets[i] = QSet(threshold, all)
	}
	return New(t, qsets...)
}

/*
WorkedExample returns FBAS of 11 nodes where nodes 0, 1 and 10 form the top tier
(each requires 2 of {0, 1, 10}). Nodes 2-4 trust the top tier, 5 and 6 trust
node 2, 7 is an observer and 8, 9 can't be satisfied.
*/
func WorkedExample(t testing.TB) *fbas.Fbas {
	t.Helper()
	top := IDs(0, 1, 10)
	return New(t,
		QSet(2, top),
		QSet(2, top),
		QSet(2, top),
		QSet(2, top),
		QSet(2, top),
		QSet(1, IDs(2)),
		QSet(1, IDs(2)),
		nil,
		QSet(2, IDs(7, 8)),
		QSet(1, IDs(8)),
		QSet(2, top),
	)
}

// DisjointClusters returns two separate 2-of-3 clusters: {0,1,2} and {3,4,5}.
func DisjointClusters(t testing.TB) *fbas.Fbas {
	t.Helper()
	a, b := IDs(0, 1, 2), IDs(3, 4, 5)
	return New(t,
		QSet(2, a), QSet(2, a), QSet(2, a),
		QSet(2, b), QSet(2, b), QSet(2, b),
	)
}

// Star returns FBAS where every node (including the hub 0) requires node 0.
func Star(t testing.TB, n int) *fbas.Fbas {
	t.Helper()
	qsets := make([]*fbas.QuorumSet, n)
	for i := range qsets {
		qsets[i] = QSet(1, IDs(0))
	}
	return New(t, qsets...)
}

/*
Random generates FBAS of n nodes with random (possibly nested) quorum sets. Some
nodes are left without quorum set.
*/
func Random(t testing.TB, rng *rand.Rand, n int) *fbas.Fbas {
	t.Helper()
	qsets := make([]*fbas.QuorumSet, n)
	for i := range qsets {
		if rng.Intn(8) == 0 {
			continue
		}
		qsets[i] = randomQSet(rng, n, 2)
	}
	return New(t, qsets...)
}

func randomQSet(rng *rand.Rand, n, depth int) *fbas.QuorumSet {
	qs := &fbas.QuorumSet{}
	cnt := 1 + rng.Intn(min(n, 5))
	for _, v := range rng.Perm(n)[:cnt] {
		qs.Validators = append(qs.Validators, fbas.NodeID(v))
	}
	if depth > 0 && rng.Intn(3) == 0 {
		qs.InnerQuorumSets = append(qs.InnerQuorumSets, randomQSet(rng, n, depth-1))
	}
	qs.Threshold = 1 + rng.Intn(qs.Size())
	return qs
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

/*
BruteForceMinimal enumerates all subsets of "candidates" and returns the minimal
sets satisfying "pred". Only usable for small candidate sets, meant for verifying
the search results.
*/
func BruteForceMinimal(candidates fbas.NodeIDSet, pred func(s fbas.NodeIDSet) bool) fbas.NodeIDSets {
	ids := candidates.IDs()
	var hits fbas.NodeIDSets
	for mask := 0; mask < 1<<len(ids); mask++ {
		s := fbas.NewNodeIDSet(0)
		for i, id := range ids {
			if mask&(1<<i) != 0 {
				s = s.With(id)
			}
		}
		if pred(s) {
			hits = append(hits, s)
		}
	}
	return hits.Minimal()
}
