package fbas

import (
	"errors"
	"fmt"
)

type (
	// Node is a participant of the FBAS. Nodes without quorum set are observers,
	// they never are part of a quorum.
	Node struct {
		PublicKey string
		Name      string
		QuorumSet *QuorumSet
	}

	/*
		Fbas is a validated, immutable federated byzantine agreement system: a mapping
		from NodeID (index of the node) to its quorum set.

		Nodes whose quorum sets have equal canonical form share a quorum set class, the
		quorum predicates evaluate each class once per pass.
	*/
	Fbas struct {
		nodes []Node
		// quorum set class of the node, -1 for nodes without quorum set
		class []int32
		// canonical quorum set of every class
		classes  []*QuorumSet
		withQSet NodeIDSet
	}
)

/*
New validates the nodes and returns FBAS. Validation fails when any quorum set
references unknown node or has threshold which is not positive or is bigger than
the number of its members. Quorum sets are deep copied.
*/
func New(nodes []Node) (*Fbas, error) {
	var errs []error
	for i, n := range nodes {
		if n.QuorumSet == nil {
			continue
		}
		if err := n.QuorumSet.validate(len(nodes)); err != nil {
			errs = append(errs, fmt.Errorf("node %d (%s): %w", i, n.PublicKey, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid FBAS: %w", err)
	}

	f := &Fbas{
		nodes:    make([]Node, len(nodes)),
		class:    make([]int32, len(nodes)),
		withQSet: NewNodeIDSet(len(nodes)),
	}
	classByKey := make(map[string]int32)
	for i, n := range nodes {
		f.nodes[i] = Node{PublicKey: n.PublicKey, Name: n.Name}
		f.class[i] = -1
		if n.QuorumSet == nil {
			continue
		}
		cqs := n.QuorumSet.Canonical()
		f.nodes[i].QuorumSet = cqs
		f.withQSet.bits.Set(uint(i))
		key := cqs.CanonicalKey()
		c, ok := classByKey[key]
		if !ok {
			c = int32(len(f.classes))
			classByKey[key] = c
			f.classes = append(f.classes, cqs)
		}
		f.class[i] = c
	}
	return f, nil
}

// NodeCount returns number of nodes, including observers.
func (f *Fbas) NodeCount() int {
	return len(f.nodes)
}

// AllNodes returns set of all node IDs.
func (f *Fbas) AllNodes() NodeIDSet {
	return FullNodeIDSet(len(f.nodes))
}

// NodesWithQuorumSet returns nodes which have declared quorum set.
func (f *Fbas) NodesWithQuorumSet() NodeIDSet {
	return f.withQSet.Clone()
}

// Node returns copy of the node, false if the ID is out of range.
func (f *Fbas) Node(id NodeID) (Node, bool) {
	if int(id) >= len(f.nodes) {
		return Node{}, false
	}
	n := f.nodes[id]
	n.QuorumSet = n.QuorumSet.Clone()
	return n, true
}

// QuorumSet returns copy of the (canonical) quorum set of the node, nil for observers.
func (f *Fbas) QuorumSet(id NodeID) *QuorumSet {
	if int(id) >= len(f.nodes) {
		return nil
	}
	return f.nodes[id].QuorumSet.Clone()
}

// Nodes returns copy of all the nodes.
func (f *Fbas) Nodes() []Node {
	res := make([]Node, len(f.nodes))
	for i := range f.nodes {
		res[i], _ = f.Node(NodeID(i))
	}
	return res
}

// PublicKey returns public key of the node or empty string for unknown ID.
func (f *Fbas) PublicKey(id NodeID) string {
	if int(id) >= len(f.nodes) {
		return ""
	}
	return f.nodes[id].PublicKey
}

// QuorumSetClasses returns number of distinct (canonical) quorum sets.
func (f *Fbas) QuorumSetClasses() int {
	return len(f.classes)
}

// SameQuorumSet returns true when both nodes have quorum set with equal canonical form.
func (f *Fbas) SameQuorumSet(a, b NodeID) bool {
	return f.class[a] >= 0 && f.class[a] == f.class[b]
}
