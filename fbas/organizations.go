package fbas

import (
	"fmt"
)

type (
	Organization struct {
		ID      string
		Name    string
		Members NodeIDSet
	}

	/*
		Organizations groups nodes into organizations. Members of one organization are
		treated as a single unit of trust, compromise of one member implies compromise
		of all of them. Immutable after construction.
	*/
	Organizations struct {
		orgs []Organization
		// index into orgs for every node, -1 when node doesn't belong to any organization
		orgOf []int
	}
)

/*
NewOrganizations validates organizations against the FBAS: every member must be
known node and node can belong to at most one organization. Organizations without
members are ignored.
*/
func NewOrganizations(f *Fbas, orgs []Organization) (*Organizations, error) {
	o := &Organizations{orgOf: make([]int, f.NodeCount())}
	for i := range o.orgOf {
		o.orgOf[i] = -1
	}
	for _, org := range orgs {
		if org.Members.IsEmpty() {
			continue
		}
		idx := len(o.orgs)
		for _, id := range org.Members.IDs() {
			if int(id) >= f.NodeCount() {
				return nil, fmt.Errorf("organization %q: %w %d", org.ID, ErrUnknownNode, id)
			}
			if prev := o.orgOf[id]; prev >= 0 {
				return nil, fmt.Errorf("%w: node %d is member of %q and %q", ErrDuplicateMembership, id, o.orgs[prev].ID, org.ID)
			}
			o.orgOf[id] = idx
		}
		o.orgs = append(o.orgs, Organization{ID: org.ID, Name: org.Name, Members: org.Members.Clone()})
	}
	return o, nil
}

func (o *Organizations) Len() int {
	return len(o.orgs)
}

// Organizations returns copy of the organizations.
func (o *Organizations) Organizations() []Organization {
	res := make([]Organization, len(o.orgs))
	for i, org := range o.orgs {
		res[i] = Organization{ID: org.ID, Name: org.Name, Members: org.Members.Clone()}
	}
	return res
}

// OrganizationOf returns organization of the node, false if node doesn't belong to any.
func (o *Organizations) OrganizationOf(id NodeID) (Organization, bool) {
	if int(id) >= len(o.orgOf) || o.orgOf[id] < 0 {
		return Organization{}, false
	}
	org := o.orgs[o.orgOf[id]]
	return Organization{ID: org.ID, Name: org.Name, Members: org.Members.Clone()}, true
}

// Representative returns the node representing the organization of the node
// (smallest member ID), the node itself when it doesn't belong to an organization.
func (o *Organizations) Representative(id NodeID) NodeID {
	if int(id) >= len(o.orgOf) || o.orgOf[id] < 0 {
		return id
	}
	r, _ := o.orgs[o.orgOf[id]].Members.Min()
	return r
}

// Group returns all nodes represented by the node, ie all members of the
// organization or the node itself.
func (o *Organizations) Group(id NodeID) NodeIDSet {
	if int(id) >= len(o.orgOf) || o.orgOf[id] < 0 {
		return NodeIDSetOf(id)
	}
	return o.orgs[o.orgOf[id]].Members.Clone()
}

/*
Merge returns FBAS where every organization is collapsed into its representative
node. Node IDs are preserved: the other members become observers and references to
them are replaced by references to the representative, so a quorum set entry of an
organization member still counts once per entry. The quorum set of the
representative requires the quorum sets of all members to be satisfied, members with
equal (canonical) quorum sets are counted once. So a single member whose quorum set
can't be satisfied (ie it depends on an observer) makes the whole organization
unsatisfiable and it is missing from every quorum of the merged FBAS.
*/
func (o *Organizations) Merge(f *Fbas) (*Fbas, error) {
	if len(o.orgOf) != f.NodeCount() {
		return nil, fmt.Errorf("organizations were created for %d nodes, FBAS has %d", len(o.orgOf), f.NodeCount())
	}
	relabel := func(id NodeID) (NodeID, bool) { return o.Representative(id), true }

	nodes := make([]Node, f.NodeCount())
	for i, n := range f.nodes {
		id := NodeID(i)
		nodes[i] = Node{PublicKey: n.PublicKey, Name: n.Name}
		if o.orgOf[id] >= 0 {
			// merged quorum set is assigned to the representative below
			continue
		}
		if n.QuorumSet != nil {
			nodes[i].QuorumSet = n.QuorumSet.Relabel(relabel)
		}
	}

	for _, org := range o.orgs {
		rep, _ := org.Members.Min()
		seen := make(map[string]struct{})
		var qsets []*QuorumSet
		org.Members.ForEach(func(id NodeID) {
			qs := f.nodes[id].QuorumSet
			if qs == nil {
				return
			}
			mqs := qs.Relabel(relabel).Canonical()
			key := mqs.CanonicalKey()
			if _, ok := seen[key]; ok {
				return
			}
			seen[key] = struct{}{}
			qsets = append(qsets, mqs)
		})
		if org.Name != "" {
			nodes[rep].Name = org.Name
		}
		switch len(qsets) {
		case 0:
		case 1:
			nodes[rep].QuorumSet = qsets[0]
		default:
			nodes[rep].QuorumSet = &QuorumSet{Threshold: len(qsets), InnerQuorumSets: qsets}
		}
	}
	return New(nodes)
}
