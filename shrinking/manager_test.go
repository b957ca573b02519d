package shrinking

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marfl/fbas-analyzer/fbas"
	ft "github.com/marfl/fbas-analyzer/internal/testutils/fbastest"
)

func set(ids ...fbas.NodeID) fbas.NodeIDSet { return fbas.NodeIDSetOf(ids...) }

func TestNew_workedExample(t *testing.T) {
	f := ft.WorkedExample(t)
	m, err := New(f)
	require.NoError(t, err)

	require.Same(t, f, m.Original())
	require.Equal(t, 3, m.Shrunk().NodeCount())
	require.Equal(t, Stats{
		OriginalNodes:      11,
		UnsatisfiableNodes: 3,
		UnreferencedNodes:  5,
		ShrunkNodes:        3,
		QuorumSetClasses:   1,
	}, m.Stats())

	sid, err := m.ShrinkID(10)
	require.NoError(t, err)
	require.EqualValues(t, 2, sid)
	require.Equal(t, ft.IDs(10), m.Group(2).IDs())

	s, err := m.ShrinkSet(set(0, 10))
	require.NoError(t, err)
	require.Equal(t, ft.IDs(0, 2), s.IDs())
	require.Equal(t, ft.IDs(0, 1, 10), m.UnshrinkSet(fbas.FullNodeIDSet(3)).IDs())

	// shrunk top tier requires 2 of 3
	require.True(t, m.Shrunk().IsQuorum(set(0, 2)))
	require.False(t, m.Shrunk().IsQuorum(set(1)))
}

func TestShrinkSet_unmapped(t *testing.T) {
	m, err := New(ft.WorkedExample(t))
	require.NoError(t, err)

	for _, id := range []fbas.NodeID{2, 7, 8, 100} {
		_, err := m.ShrinkSet(set(0, id))
		require.ErrorIs(t, err, ErrUnmappedNode)
		var une UnmappedNodeError
		require.ErrorAs(t, err, &une)
		require.Equal(t, id, une.ID)
	}
}

func TestUnshrinkSet_outOfRangePanics(t *testing.T) {
	m, err := New(ft.WorkedExample(t))
	require.NoError(t, err)
	require.Panics(t, func() { m.UnshrinkSet(set(5)) })
}

func TestNew_keepUnreferenced(t *testing.T) {
	f := ft.WorkedExample(t)
	m, err := New(f, KeepUnreferenced())
	require.NoError(t, err)
	require.Equal(t, 8, m.Shrunk().NodeCount())
	require.Zero(t, m.Stats().UnreferencedNodes)
	// 2 of the top tier plus the nodes 5 and 6 depend on is a quorum in both
	q := set(0, 1, 2, 5, 6)
	sq, err := m.ShrinkSet(q)
	require.NoError(t, err)
	require.True(t, f.IsQuorum(q))
	require.True(t, m.Shrunk().IsQuorum(sq))
	require.Equal(t, 2, m.Shrunk().QuorumSetClasses())
}

func TestNew_organizations(t *testing.T) {
	f := ft.Symmetric(t, 4, 3)
	orgs, err := fbas.NewOrganizations(f, []fbas.Organization{{ID: "a", Members: set(1, 3)}})
	require.NoError(t, err)

	m, err := New(f, WithOrganizations(orgs))
	require.NoError(t, err)
	require.Equal(t, 3, m.Shrunk().NodeCount())
	require.Equal(t, 1, m.Stats().MergedNodes)

	s, err := m.ShrinkSet(set(3))
	require.NoError(t, err)
	require.Equal(t, ft.IDs(1), s.IDs())
	require.Equal(t, ft.IDs(1, 3), m.Group(1).IDs())

	mq := ft.BruteForceMinimal(m.Shrunk().AllNodes(), m.Shrunk().ContainsQuorum)
	require.Equal(t, [][]fbas.NodeID{{0, 1}, {1, 2}}, mq.IDs())
	require.Equal(t, [][]fbas.NodeID{{0, 1, 3}, {1, 2, 3}}, m.UnshrinkSets(mq).IDs())
}

func TestRestrict(t *testing.T) {
	m, err := New(ft.WorkedExample(t), KeepUnreferenced())
	require.NoError(t, err)

	top, err := m.ShrinkSet(set(0, 1, 10))
	require.NoError(t, err)
	r, err := m.Restrict(top)
	require.NoError(t, err)
	require.Equal(t, 3, r.Shrunk().NodeCount())
	require.Equal(t, 3, r.Stats().ShrunkNodes)

	_, err = r.ShrinkSet(set(2))
	require.ErrorIs(t, err, ErrUnmappedNode)
	require.Equal(t, ft.IDs(10), r.UnshrinkSet(set(2)).IDs())

	// the original manager is not affected
	_, err = m.ShrinkSet(set(2))
	require.NoError(t, err)
}

func TestRestrict_statsCountOriginalNodes(t *testing.T) {
	f := ft.WorkedExample(t)
	orgs, err := fbas.NewOrganizations(f, []fbas.Organization{{ID: "a", Members: set(2, 3)}})
	require.NoError(t, err)
	m, err := New(f, WithOrganizations(orgs), KeepUnreferenced())
	require.NoError(t, err)
	require.Equal(t, 7, m.Shrunk().NodeCount())
	require.Equal(t, 0, m.Stats().UnreferencedNodes)

	top, err := m.ShrinkSet(set(0, 1, 10))
	require.NoError(t, err)
	r, err := m.Restrict(top)
	require.NoError(t, err)
	// dropped: organization {2,3} and nodes 4, 5, 6
	st := r.Stats()
	require.Equal(t, 5, st.UnreferencedNodes)
	require.Equal(t, 3, st.ShrunkNodes)
	require.Equal(t, st.OriginalNodes, st.UnsatisfiableNodes+st.UnreferencedNodes+r.UnshrinkSet(r.Shrunk().AllNodes()).Len())
}

func TestNew_emptyAndQuorumless(t *testing.T) {
	m, err := New(ft.New(t))
	require.NoError(t, err)
	require.Zero(t, m.Shrunk().NodeCount())
	require.True(t, m.UnshrinkSet(fbas.NodeIDSet{}).IsEmpty())

	// node 1 requires observer 0, there are no quorums
	m, err = New(ft.New(t, nil, ft.QSet(1, ft.IDs(0))))
	require.NoError(t, err)
	require.Zero(t, m.Shrunk().NodeCount())
	require.Equal(t, 2, m.Stats().UnsatisfiableNodes)
}

/*
Queries derived from the minimal quorums must give the same answer on the original
FBAS and (unshrunk) on the shrunk FBAS.
*/
func TestShrinkUnshrinkEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 60; i++ {
		f := ft.Random(t, rng, 3+rng.Intn(7))
		m, err := New(f)
		require.NoError(t, err)
		sf := m.Shrunk()

		wantMQ := ft.BruteForceMinimal(f.AllNodes(), f.ContainsQuorum)
		gotMQ := m.UnshrinkSets(ft.BruteForceMinimal(sf.AllNodes(), sf.ContainsQuorum))
		require.True(t, wantMQ.Equal(gotMQ), "minimal quorums of %d: want %v got %v", i, wantMQ, gotMQ)

		wantMB := ft.BruteForceMinimal(f.AllNodes(), f.IsBlocking)
		gotMB := m.UnshrinkSets(ft.BruteForceMinimal(sf.AllNodes(), sf.IsBlocking))
		require.True(t, wantMB.Equal(gotMB), "minimal blocking sets of %d: want %v got %v", i, wantMB, gotMB)

		// every minimal quorum is a quorum in the shrunk FBAS after shrinking
		for _, q := range wantMQ {
			sq, err := m.ShrinkSet(q)
			require.NoError(t, err)
			require.True(t, sf.IsQuorum(sq))
		}
	}
}

func TestKeepUnreferenced_quorumEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 40; i++ {
		f := ft.Random(t, rng, 3+rng.Intn(6))
		m, err := New(f, KeepUnreferenced())
		require.NoError(t, err)
		sat := f.SatisfiableNodes()
		ids := sat.IDs()
		for mask := 0; mask < 1<<len(ids); mask++ {
			s := fbas.NewNodeIDSet(f.NodeCount())
			for j, id := range ids {
				if mask&(1<<j) != 0 {
					s = s.With(id)
				}
			}
			ss, err := m.ShrinkSet(s)
			require.NoError(t, err)
			require.Equal(t, f.IsQuorum(s), m.Shrunk().IsQuorum(ss), "FBAS %d set %v", i, s)
			require.True(t, m.UnshrinkSet(ss).Equal(s))
		}
	}
}
