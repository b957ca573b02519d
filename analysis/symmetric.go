package analysis

import (
	"context"

	"github.com/marfl/fbas-analyzer/fbas"
)

// SymmetricCluster is a group of nodes which all have the same quorum set and that
// quorum set references exactly the nodes of the group. Nodes outside of the cluster
// may use the same quorum set too.
type SymmetricCluster struct {
	Members   fbas.NodeIDSet  `json:"members" yaml:"members"`
	QuorumSet *fbas.QuorumSet `json:"quorumSet" yaml:"quorumSet"`
}

/*
SymmetricClusters returns the symmetric clusters of the (original) FBAS ordered by
the smallest node using the quorum set. Quorum sets are compared in canonical form,
so nodes listing the same validators in different order use the same quorum set.
*/
func (a *Analysis) SymmetricClusters() []SymmetricCluster {
	f := a.original
	type group struct {
		qs    *fbas.QuorumSet
		users fbas.NodeIDSet
	}
	var groups []*group
	byKey := make(map[string]*group)
	f.NodesWithQuorumSet().ForEach(func(id fbas.NodeID) {
		qs := f.QuorumSet(id)
		key := qs.CanonicalKey()
		g, ok := byKey[key]
		if !ok {
			g = &group{qs: qs, users: fbas.NewNodeIDSet(f.NodeCount())}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.users = g.users.With(id)
	})

	var res []SymmetricCluster
	for _, g := range groups {
		if members := g.qs.ContainedNodes(); !members.IsEmpty() && members.IsSubsetOf(g.users) {
			res = append(res, SymmetricCluster{Members: members, QuorumSet: g.qs})
		}
	}
	return res
}

/*
SymmetricTopTier returns the common quorum set of the top tier when the top tier is
a symmetric cluster, nil otherwise (also when there are no quorums).
*/
func (a *Analysis) SymmetricTopTier(ctx context.Context) (*fbas.QuorumSet, error) {
	top, err := a.TopTier(ctx)
	if err != nil {
		return nil, err
	}
	if top.IsEmpty() {
		return nil, nil
	}
	for _, c := range a.SymmetricClusters() {
		if c.Members.Equal(top) {
			return c.QuorumSet, nil
		}
	}
	return nil, nil
}
