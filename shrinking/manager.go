/*
Package shrinking reduces FBAS to a smaller one which has the same minimal quorums,
minimal blocking sets, minimal splitting sets and quorum intersection, and
translates node sets between the original and the reduced FBAS.
*/
package shrinking

import (
	"errors"
	"fmt"

	"github.com/marfl/fbas-analyzer/fbas"
	"github.com/marfl/fbas-analyzer/logger"
)

var ErrUnmappedNode = errors.New("node has no representative in the shrunk FBAS")

// UnmappedNodeError is returned when original node can't be translated into the
// shrunk FBAS (the node was pruned).
type UnmappedNodeError struct {
	ID fbas.NodeID
}

func (e UnmappedNodeError) Error() string {
	return fmt.Sprintf("%s: node %d", ErrUnmappedNode, e.ID)
}

func (e UnmappedNodeError) Is(target error) bool {
	return target == ErrUnmappedNode
}

type (
	/*
		Manager owns the original FBAS, the shrunk FBAS and translation tables between
		them. Immutable after construction, safe for concurrent use.
	*/
	Manager struct {
		original *fbas.Fbas
		shrunk   *fbas.Fbas
		// shrunk ID of every original node, -1 when the node was pruned
		toShrunk []int32
		// original nodes represented by every shrunk node
		groups []fbas.NodeIDSet
		stats  Stats
	}

	Stats struct {
		OriginalNodes int `json:"originalNodes" yaml:"originalNodes"`
		// nodes folded into their organization representative
		MergedNodes int `json:"mergedNodes" yaml:"mergedNodes"`
		// nodes which are not part of any quorum
		UnsatisfiableNodes int `json:"unsatisfiableNodes" yaml:"unsatisfiableNodes"`
		// nodes no remaining node depends on, these can't be part of a minimal quorum
		UnreferencedNodes int `json:"unreferencedNodes" yaml:"unreferencedNodes"`
		ShrunkNodes       int `json:"shrunkNodes" yaml:"shrunkNodes"`
		QuorumSetClasses  int `json:"quorumSetClasses" yaml:"quorumSetClasses"`
	}

	Option func(*config)

	config struct {
		orgs             *fbas.Organizations
		keepUnreferenced bool
		log              logger.Logger
	}
)

// WithOrganizations merges nodes of every organization into single node.
func WithOrganizations(orgs *fbas.Organizations) Option {
	return func(c *config) { c.orgs = orgs }
}

/*
KeepUnreferenced disables pruning of nodes which are not referenced by quorum set of
any other remaining node. Without the pruning every quorum of the shrunk FBAS maps
to a quorum of the original FBAS and vice versa, with the pruning only the minimal
quorums (and thus the queries derived from them) are preserved.
*/
func KeepUnreferenced() Option {
	return func(c *config) { c.keepUnreferenced = true }
}

func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.log = l }
}

/*
New builds shrunk FBAS out of "f":
  - nodes of every organization are merged into the organization representative;
  - nodes which can't be satisfied (are not part of any quorum) are pruned;
  - nodes which are not referenced by any remaining node are pruned (repeatedly);
  - remaining nodes are relabeled densely, preserving order.

Nodes which have equal (canonical) quorum sets after relabeling share quorum set
class in the shrunk FBAS.
*/
func New(f *fbas.Fbas, opts ...Option) (*Manager, error) {
	cfg := config{log: logger.Nop()}
	for _, o := range opts {
		o(&cfg)
	}

	merged := f
	groups := make([]fbas.NodeIDSet, f.NodeCount())
	for i := range groups {
		groups[i] = fbas.NodeIDSetOf(fbas.NodeID(i))
	}
	stats := Stats{OriginalNodes: f.NodeCount()}
	if cfg.orgs != nil && cfg.orgs.Len() > 0 {
		var err error
		if merged, err = cfg.orgs.Merge(f); err != nil {
			return nil, fmt.Errorf("merging organizations: %w", err)
		}
		for _, org := range cfg.orgs.Organizations() {
			rep, _ := org.Members.Min()
			groups[rep] = org.Members
			stats.MergedNodes += org.Members.Len() - 1
			org.Members.ForEach(func(id fbas.NodeID) {
				if id != rep {
					groups[id] = fbas.NodeIDSet{}
				}
			})
		}
	}

	keep := merged.SatisfiableNodes()
	for i, g := range groups {
		if !g.IsEmpty() && !keep.Contains(fbas.NodeID(i)) {
			stats.UnsatisfiableNodes += g.Len()
		}
	}
	if !cfg.keepUnreferenced {
		before := keep
		keep = pruneUnreferenced(merged, keep)
		before.Difference(keep).ForEach(func(id fbas.NodeID) { stats.UnreferencedNodes += groups[id].Len() })
	}

	shrunk, newIDs, err := relabel(merged, keep)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		original: f,
		shrunk:   shrunk,
		toShrunk: make([]int32, f.NodeCount()),
		groups:   make([]fbas.NodeIDSet, shrunk.NodeCount()),
	}
	for i := range m.toShrunk {
		m.toShrunk[i] = -1
	}
	for i, g := range groups {
		sid := newIDs[i]
		if sid < 0 {
			continue
		}
		m.groups[sid] = g
		g.ForEach(func(id fbas.NodeID) { m.toShrunk[id] = sid })
	}
	stats.ShrunkNodes = shrunk.NodeCount()
	stats.QuorumSetClasses = shrunk.QuorumSetClasses()
	m.stats = stats

	cfg.log.Info("shrunk FBAS of %d nodes to %d nodes (%d merged, %d unsatisfiable, %d unreferenced, %d quorum set classes)",
		stats.OriginalNodes, stats.ShrunkNodes, stats.MergedNodes, stats.UnsatisfiableNodes, stats.UnreferencedNodes, stats.QuorumSetClasses)
	return m, nil
}

/*
pruneUnreferenced repeatedly removes nodes which are not referenced by the quorum
set of any other node in "keep". Such node can't be part of a minimal quorum: the
quorum without it is still a quorum.
*/
func pruneUnreferenced(f *fbas.Fbas, keep fbas.NodeIDSet) fbas.NodeIDSet {
	for {
		refs := fbas.NewNodeIDSet(f.NodeCount())
		keep.ForEach(func(id fbas.NodeID) {
			refs = refs.Union(f.QuorumSet(id).ContainedNodes().Without(id))
		})
		// self reference keeps the node only when it could be a quorum on its own
		keep.ForEach(func(id fbas.NodeID) {
			if f.IsQuorum(fbas.NodeIDSetOf(id)) {
				refs = refs.With(id)
			}
		})
		next := keep.Intersection(refs)
		if next.Equal(keep) {
			return keep
		}
		keep = next
	}
}

/*
relabel returns FBAS consisting of the nodes in "keep" only, relabeled densely in
ascending order, and new ID of every node of "f" (-1 for dropped nodes). References
to dropped nodes are removed from quorum sets. Every node in "keep" must be
satisfiable within "keep".
*/
func relabel(f *fbas.Fbas, keep fbas.NodeIDSet) (*fbas.Fbas, []int32, error) {
	newIDs := make([]int32, f.NodeCount())
	var next int32
	for i := range newIDs {
		if keep.Contains(fbas.NodeID(i)) {
			newIDs[i] = next
			next++
		} else {
			newIDs[i] = -1
		}
	}
	mapping := func(id fbas.NodeID) (fbas.NodeID, bool) {
		if int(id) >= len(newIDs) || newIDs[id] < 0 {
			return 0, false
		}
		return fbas.NodeID(newIDs[id]), true
	}

	nodes := make([]fbas.Node, 0, next)
	for _, id := range keep.IDs() {
		n, _ := f.Node(id)
		qs := n.QuorumSet.Relabel(mapping).Simplified()
		if qs == nil {
			panic(fmt.Sprintf("node %d can't be satisfied by the kept nodes", id))
		}
		n.QuorumSet = qs
		nodes = append(nodes, n)
	}
	shrunk, err := fbas.New(nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("creating shrunk FBAS: %w", err)
	}
	return shrunk, newIDs, nil
}

/*
Restrict returns manager whose shrunk FBAS is further restricted to the (shrunk)
nodes in "keep", ie to the top tier. The original FBAS stays the same. Restricting
to a set which contains all minimal quorums preserves the minimal quorums, minimal
blocking sets and minimal splitting sets.
*/
func (m *Manager) Restrict(keep fbas.NodeIDSet) (*Manager, error) {
	keep = m.shrunk.MaxQuorum(keep)
	shrunk, newIDs, err := relabel(m.shrunk, keep)
	if err != nil {
		return nil, err
	}
	r := &Manager{
		original: m.original,
		shrunk:   shrunk,
		toShrunk: make([]int32, len(m.toShrunk)),
		groups:   make([]fbas.NodeIDSet, shrunk.NodeCount()),
		stats:    m.stats,
	}
	for i, sid := range m.toShrunk {
		r.toShrunk[i] = -1
		if sid >= 0 {
			r.toShrunk[i] = newIDs[sid]
		}
	}
	for i, nid := range newIDs {
		if nid >= 0 {
			r.groups[nid] = m.groups[i]
		} else {
			r.stats.UnreferencedNodes += m.groups[i].Len()
		}
	}
	r.stats.ShrunkNodes = shrunk.NodeCount()
	r.stats.QuorumSetClasses = shrunk.QuorumSetClasses()
	return r, nil
}

func (m *Manager) Original() *fbas.Fbas { return m.original }

func (m *Manager) Shrunk() *fbas.Fbas { return m.shrunk }

func (m *Manager) Stats() Stats { return m.stats }

// ShrinkID returns shrunk ID of the original node.
func (m *Manager) ShrinkID(id fbas.NodeID) (fbas.NodeID, error) {
	if int(id) >= len(m.toShrunk) || m.toShrunk[id] < 0 {
		return 0, UnmappedNodeError{ID: id}
	}
	return fbas.NodeID(m.toShrunk[id]), nil
}

// ShrinkSet maps every member of "s" to its representative in the shrunk FBAS. Fails
// with ErrUnmappedNode when some member has no representative.
func (m *Manager) ShrinkSet(s fbas.NodeIDSet) (fbas.NodeIDSet, error) {
	res := fbas.NewNodeIDSet(m.shrunk.NodeCount())
	for _, id := range s.IDs() {
		sid, err := m.ShrinkID(id)
		if err != nil {
			return fbas.NodeIDSet{}, err
		}
		res = res.With(sid)
	}
	return res, nil
}

// Group returns original nodes represented by the shrunk node.
func (m *Manager) Group(id fbas.NodeID) fbas.NodeIDSet {
	return m.group(id).Clone()
}

func (m *Manager) group(id fbas.NodeID) fbas.NodeIDSet {
	if int(id) >= len(m.groups) {
		panic(fmt.Sprintf("shrunk node ID %d out of range, shrunk FBAS has %d nodes", id, len(m.groups)))
	}
	return m.groups[id]
}

// UnshrinkSet replaces every member of "s" with the original nodes it represents.
func (m *Manager) UnshrinkSet(s fbas.NodeIDSet) fbas.NodeIDSet {
	res := fbas.NewNodeIDSet(m.original.NodeCount())
	s.ForEach(func(id fbas.NodeID) { res = res.Union(m.group(id)) })
	return res
}

// UnshrinkSets unshrinks every set, the result is sorted.
func (m *Manager) UnshrinkSets(ss fbas.NodeIDSets) fbas.NodeIDSets {
	res := make(fbas.NodeIDSets, len(ss))
	for i, s := range ss {
		res[i] = m.UnshrinkSet(s)
	}
	return res.Sorted()
}
