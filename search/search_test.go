package search

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/marfl/fbas-analyzer/fbas"
	ft "github.com/marfl/fbas-analyzer/internal/testutils/fbastest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type allQueries struct {
	quorums, blocking, splitting fbas.NodeIDSets
	intersection                 IntersectionResult
}

func runAll(t *testing.T, f *fbas.Fbas, opts ...Option) allQueries {
	t.Helper()
	ctx := context.Background()
	var res allQueries
	var err error
	res.quorums, _, err = MinimalQuorums(ctx, f, opts...)
	require.NoError(t, err)
	res.blocking, _, err = MinimalBlockingSets(ctx, f, opts...)
	require.NoError(t, err)
	res.splitting, err = MinimalSplittingSets(ctx, res.quorums)
	require.NoError(t, err)
	res.intersection, _, err = HasQuorumIntersection(ctx, f, opts...)
	require.NoError(t, err)
	return res
}

func TestWorkedExample(t *testing.T) {
	res := runAll(t, ft.WorkedExample(t))
	require.Equal(t, [][]fbas.NodeID{{0, 1}, {0, 10}, {1, 10}}, res.quorums.IDs())
	require.Equal(t, [][]fbas.NodeID{{0, 1}, {0, 10}, {1, 10}}, res.blocking.IDs())
	require.Equal(t, [][]fbas.NodeID{{0}, {1}, {10}}, res.splitting.IDs())
	require.Equal(t, IntersectionResult{Intersects: true}, res.intersection)
	require.Equal(t, ft.IDs(0, 1, 10), res.quorums.InvolvedNodes().IDs())
}

func TestDisjointClusters(t *testing.T) {
	f := ft.DisjointClusters(t)
	res := runAll(t, f)
	require.Len(t, res.quorums, 6)
	require.False(t, res.intersection.Intersects)
	require.Len(t, res.intersection.Witness, 2)
	a, b := res.intersection.Witness[0], res.intersection.Witness[1]
	require.False(t, a.Intersects(b))
	require.True(t, res.quorums.Contains(a))
	require.True(t, res.quorums.Contains(b))

	require.Equal(t, [][]fbas.NodeID{{}}, res.splitting.IDs())
	// two nodes from both clusters
	require.Len(t, res.blocking, 9)
	for _, s := range res.blocking {
		require.Equal(t, 4, s.Len())
	}

	wr := IntersectionFromQuorums(res.quorums)
	require.False(t, wr.Intersects)
	require.Equal(t, [][]fbas.NodeID{{0, 1}, {3, 4}}, wr.Witness.IDs())
}

func TestStar(t *testing.T) {
	res := runAll(t, ft.Star(t, 5))
	require.Equal(t, [][]fbas.NodeID{{0}}, res.quorums.IDs())
	require.Equal(t, [][]fbas.NodeID{{0}}, res.blocking.IDs())
	require.Empty(t, res.splitting)
	require.True(t, res.intersection.Intersects)
}

func TestVacuousCases(t *testing.T) {
	t.Run("empty FBAS", func(t *testing.T) {
		res := runAll(t, ft.New(t))
		require.Empty(t, res.quorums)
		require.Equal(t, [][]fbas.NodeID{{}}, res.blocking.IDs())
		require.Empty(t, res.splitting)
		require.True(t, res.intersection.Intersects)
		require.Nil(t, res.intersection.Witness)
	})

	t.Run("no quorums", func(t *testing.T) {
		res := runAll(t, ft.New(t, nil, ft.QSet(1, ft.IDs(0)), ft.QSet(2, ft.IDs(0, 1))))
		require.Empty(t, res.quorums)
		require.Equal(t, [][]fbas.NodeID{{}}, res.blocking.IDs())
		require.Empty(t, res.splitting)
		require.True(t, res.intersection.Intersects)
	})
}

func TestSymmetric(t *testing.T) {
	res := runAll(t, ft.Symmetric(t, 10, 7))
	require.Len(t, res.quorums, 120)
	require.Len(t, res.blocking, 210)
	require.Len(t, res.splitting, 210)
	for _, s := range res.splitting {
		require.Equal(t, 4, s.Len())
	}
	require.True(t, res.intersection.Intersects)

	// threshold too low for intersection
	res = runAll(t, ft.Symmetric(t, 6, 3))
	require.False(t, res.intersection.Intersects)
	require.Len(t, res.quorums, 20)
}

func TestAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 80; i++ {
		f := ft.Random(t, rng, 2+rng.Intn(9))
		res := runAll(t, f, WithWorkers(1+rng.Intn(4)))

		all := f.AllNodes()
		wantMQ := ft.BruteForceMinimal(all, f.ContainsQuorum)
		require.Equal(t, wantMQ.IDs(), res.quorums.IDs(), "minimal quorums of FBAS %d", i)
		for _, q := range res.quorums {
			require.True(t, f.IsQuorum(q))
		}

		wantMB := ft.BruteForceMinimal(all, f.IsBlocking)
		require.Equal(t, wantMB.IDs(), res.blocking.IDs(), "minimal blocking sets of FBAS %d", i)

		wantSplit := ft.BruteForceMinimal(all, func(s fbas.NodeIDSet) bool {
			for a := range wantMQ {
				for b := a + 1; b < len(wantMQ); b++ {
					if wantMQ[a].Intersection(wantMQ[b]).IsSubsetOf(s) {
						return true
					}
				}
			}
			return false
		})
		require.Equal(t, wantSplit.IDs(), res.splitting.IDs(), "minimal splitting sets of FBAS %d", i)

		// disjoint quorums exist iff the complement of some minimal quorum contains a quorum
		disjoint := false
		for _, q := range wantMQ {
			disjoint = disjoint || f.ContainsQuorum(all.Difference(q))
		}
		require.Equal(t, !disjoint, res.intersection.Intersects, "intersection of FBAS %d", i)
		require.Equal(t, IntersectionFromQuorums(res.quorums).Intersects, res.intersection.Intersects)
		if !res.intersection.Intersects {
			w := res.intersection.Witness
			require.False(t, w[0].Intersects(w[1]))
			require.True(t, wantMQ.Contains(w[0]))
			require.True(t, wantMQ.Contains(w[1]))
		}

		// every returned blocking set hits every minimal quorum
		for _, b := range res.blocking {
			for _, q := range res.quorums {
				require.True(t, b.Intersects(q))
			}
		}
	}
}

func TestMinimality(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 20; i++ {
		f := ft.Random(t, rng, 10+rng.Intn(6))
		res := runAll(t, f)
		for name, sets := range map[string]fbas.NodeIDSets{"quorums": res.quorums, "blocking": res.blocking, "splitting": res.splitting} {
			for a := range sets {
				for b := range sets {
					if a != b {
						require.False(t, sets[a].IsSubsetOf(sets[b]), "%s of FBAS %d: %v ⊆ %v", name, i, sets[a], sets[b])
					}
				}
			}
		}
		for _, q := range res.quorums {
			for _, id := range q.IDs() {
				require.False(t, f.ContainsQuorum(q.Without(id)))
			}
		}
		for _, b := range res.blocking {
			require.True(t, f.IsBlocking(b))
			for _, id := range b.IDs() {
				require.False(t, f.IsBlocking(b.Without(id)))
			}
		}
	}
}

func TestMinimalSets_workersGiveSameResult(t *testing.T) {
	f := ft.Symmetric(t, 9, 5)
	ctx := context.Background()
	seq, seqStats, err := MinimalQuorums(ctx, f, WithWorkers(1))
	require.NoError(t, err)
	par, _, err := MinimalQuorums(ctx, f, WithWorkers(8))
	require.NoError(t, err)
	require.Equal(t, seq.IDs(), par.IDs())
	require.Equal(t, 126, seqStats.Hits)
	require.Positive(t, seqStats.Visited)
	require.Positive(t, seqStats.Evaluations)
	require.False(t, seqStats.Stopped)
}

func TestMinimalSets_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := MinimalQuorums(ctx, ft.Symmetric(t, 12, 8))
	require.ErrorIs(t, err, context.Canceled)

	_, err = MinimalSplittingSets(ctx, ft.Sets(ft.IDs(0, 1), ft.IDs(1, 2)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestMinimalSets_cancelledDuringSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evaluations := 0
	_, _, err := MinimalSets(ctx, Problem{
		Name:       "never",
		Candidates: fbas.FullNodeIDSet(30),
		NewPredicate: func() Predicate {
			return PredicateFunc(func(s fbas.NodeIDSet) bool {
				if evaluations++; evaluations == 1000 {
					cancel()
				}
				return false
			})
		},
	}, WithWorkers(1))
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, evaluations, 1000)
}

func TestMinimalSets_stop(t *testing.T) {
	var seen fbas.NodeIDSets
	res, stats, err := MinimalQuorums(context.Background(), ft.Symmetric(t, 7, 4), WithWorkers(1), WithStop(func(hit fbas.NodeIDSet) bool {
		seen = append(seen, hit)
		return len(seen) == 3
	}))
	require.NoError(t, err)
	require.True(t, stats.Stopped)
	require.Len(t, res, 3)
	require.Equal(t, seen.Sorted().IDs(), res.IDs())
}

func TestMinimalSets_customPredicate(t *testing.T) {
	// sets of at least two nodes from {1,3,5}
	target := fbas.NodeIDSetOf(1, 3, 5)
	res, stats, err := MinimalSets(context.Background(), Problem{
		Name:       "custom",
		Candidates: fbas.FullNodeIDSet(6),
		NewPredicate: func() Predicate {
			return PredicateFunc(func(s fbas.NodeIDSet) bool { return s.Intersection(target).Len() >= 2 })
		},
	})
	require.NoError(t, err)
	require.Equal(t, [][]fbas.NodeID{{1, 3}, {1, 5}, {3, 5}}, res.IDs())
	require.Equal(t, 3, stats.Hits)
}
