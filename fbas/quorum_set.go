package fbas

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/exp/slices"
)

/*
QuorumSet is the (recursive) quorum requirement of a node. A node set satisfies the
quorum set when at least Threshold of its members are satisfied, where a validator is
satisfied when it is in the node set and an inner quorum set is satisfied recursively.

Validators may contain duplicates (ie after merging nodes by organization), every
entry counts separately.
*/
type QuorumSet struct {
	Threshold       int          `json:"threshold" yaml:"threshold"`
	Validators      []NodeID     `json:"validators" yaml:"validators"`
	InnerQuorumSets []*QuorumSet `json:"innerQuorumSets,omitempty" yaml:"innerQuorumSets,omitempty"`
}

// Size returns number of direct members, ie validators plus inner quorum sets.
func (qs *QuorumSet) Size() int {
	return len(qs.Validators) + len(qs.InnerQuorumSets)
}

// IsSatisfiedBy returns true when node set "s" satisfies the quorum set.
func (qs *QuorumSet) IsSatisfiedBy(s NodeIDSet) bool {
	return qs.isSatisfiedBy(s.b())
}

func (qs *QuorumSet) isSatisfiedBy(b *bitset.BitSet) bool {
	need := qs.Threshold
	if need <= 0 {
		return true
	}
	for _, v := range qs.Validators {
		if b.Test(uint(v)) {
			if need--; need == 0 {
				return true
			}
		}
	}
	for _, iqs := range qs.InnerQuorumSets {
		if iqs.isSatisfiedBy(b) {
			if need--; need == 0 {
				return true
			}
		}
	}
	return false
}

// ContainedNodes returns all validators referenced by the quorum set (recursively).
func (qs *QuorumSet) ContainedNodes() NodeIDSet {
	s := NewNodeIDSet(0)
	qs.walk(func(q *QuorumSet) {
		for _, v := range q.Validators {
			s.bits.Set(uint(v))
		}
	})
	return s
}

func (qs *QuorumSet) walk(f func(q *QuorumSet)) {
	f(qs)
	for _, iqs := range qs.InnerQuorumSets {
		iqs.walk(f)
	}
}

// Clone returns deep copy of the quorum set.
func (qs *QuorumSet) Clone() *QuorumSet {
	if qs == nil {
		return nil
	}
	c := &QuorumSet{
		Threshold:  qs.Threshold,
		Validators: slices.Clone(qs.Validators),
	}
	for _, iqs := range qs.InnerQuorumSets {
		c.InnerQuorumSets = append(c.InnerQuorumSets, iqs.Clone())
	}
	return c
}

// Relabel returns copy of the quorum set where every validator has been replaced
// with the value returned by "f". When "f" returns false the validator is dropped,
// ie the node is considered to never be part of a quorum.
func (qs *QuorumSet) Relabel(f func(id NodeID) (NodeID, bool)) *QuorumSet {
	c := &QuorumSet{Threshold: qs.Threshold}
	for _, v := range qs.Validators {
		if nv, ok := f(v); ok {
			c.Validators = append(c.Validators, nv)
		}
	}
	for _, iqs := range qs.InnerQuorumSets {
		c.InnerQuorumSets = append(c.InnerQuorumSets, iqs.Relabel(f))
	}
	return c
}

/*
Simplified returns copy of the quorum set with unsatisfiable inner quorum sets removed
(recursively). The result is nil when the quorum set itself can't be satisfied by any
node set, ie because validators were dropped by Relabel. Removing unsatisfiable members
doesn't change which node sets satisfy the quorum set.
*/
func (qs *QuorumSet) Simplified() *QuorumSet {
	c := &QuorumSet{Threshold: qs.Threshold, Validators: slices.Clone(qs.Validators)}
	for _, iqs := range qs.InnerQuorumSets {
		if s := iqs.Simplified(); s != nil {
			c.InnerQuorumSets = append(c.InnerQuorumSets, s)
		}
	}
	if c.Threshold > c.Size() {
		return nil
	}
	return c
}

func (qs *QuorumSet) validate(nodeCount int) error {
	if qs.Threshold <= 0 {
		return fmt.Errorf("%w: threshold %d must be positive", ErrInvalidThreshold, qs.Threshold)
	}
	if qs.Threshold > qs.Size() {
		return fmt.Errorf("%w: threshold %d exceeds number of members %d", ErrInvalidThreshold, qs.Threshold, qs.Size())
	}
	for _, v := range qs.Validators {
		if int(v) >= nodeCount {
			return fmt.Errorf("%w: validator %d, node count is %d", ErrDanglingReference, v, nodeCount)
		}
	}
	for i, iqs := range qs.InnerQuorumSets {
		if iqs == nil {
			return fmt.Errorf("inner quorum set %d is nil", i)
		}
		if err := iqs.validate(nodeCount); err != nil {
			return fmt.Errorf("inner quorum set %d: %w", i, err)
		}
	}
	return nil
}

func (qs *QuorumSet) String() string {
	if qs == nil {
		return "<nil>"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %v", qs.Threshold, qs.Validators)
	for _, iqs := range qs.InnerQuorumSets {
		sb.WriteString(" + (")
		sb.WriteString(iqs.String())
		sb.WriteString(")")
	}
	return sb.String()
}
