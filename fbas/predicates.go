package fbas

import (
	"github.com/bits-and-blooms/bitset"
)

const (
	memoUnknown int8 = iota
	memoSatisfied
	memoUnsatisfied
)

/*
Evaluator evaluates quorum predicates against one FBAS. It owns scratch buffers so
repeated evaluations do not allocate; it is not safe for concurrent use, every
goroutine should create its own evaluator.
*/
type Evaluator struct {
	f *Fbas
	// per quorum set class satisfaction, valid within one pass over a fixed node set
	memo []int8
	cur  *bitset.BitSet
	drop []uint
}

func (f *Fbas) NewEvaluator() *Evaluator {
	return &Evaluator{
		f:    f,
		memo: make([]int8, len(f.nodes)),
		cur:  bitset.New(uint(len(f.nodes))),
		drop: make([]uint, 0, len(f.nodes)),
	}
}

func (e *Evaluator) resetMemo() {
	for i := range e.memo {
		e.memo[i] = memoUnknown
	}
}

// satisfied returns true when quorum set of the node is satisfied by "b", nodes
// without quorum set are never satisfied.
func (e *Evaluator) satisfied(id uint, b *bitset.BitSet) bool {
	if id >= uint(len(e.f.class)) {
		return false
	}
	c := e.f.class[id]
	if c < 0 {
		return false
	}
	switch e.memo[c] {
	case memoSatisfied:
		return true
	case memoUnsatisfied:
		return false
	}
	ok := e.f.classes[c].isSatisfiedBy(b)
	if ok {
		e.memo[c] = memoSatisfied
	} else {
		e.memo[c] = memoUnsatisfied
	}
	return ok
}

/*
shrinkToMaxQuorum modifies "b" in place into the greatest fixed point of removing
nodes whose quorum set isn't satisfied by the remaining nodes. The result is the
largest quorum contained in the original "b" (or empty set when there is none).
*/
func (e *Evaluator) shrinkToMaxQuorum(b *bitset.BitSet) {
	b.InPlaceIntersection(e.f.withQSet.bits)
	for {
		e.resetMemo()
		e.drop = e.drop[:0]
		for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
			if !e.satisfied(i, b) {
				e.drop = append(e.drop, i)
			}
		}
		if len(e.drop) == 0 {
			return
		}
		for _, i := range e.drop {
			b.Clear(i)
		}
	}
}

func (e *Evaluator) load(s NodeIDSet) *bitset.BitSet {
	e.cur.ClearAll()
	if s.bits != nil {
		e.cur.InPlaceUnion(s.bits)
	}
	return e.cur
}

// IsQuorum returns true when "s" is non-empty and quorum set of every member of
// "s" is satisfied by "s".
func (e *Evaluator) IsQuorum(s NodeIDSet) bool {
	if s.IsEmpty() {
		return false
	}
	e.resetMemo()
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		if !e.satisfied(i, s.bits) {
			return false
		}
	}
	return true
}

// ContainsQuorum returns true when some subset of "s" is a quorum. Unlike IsQuorum
// this predicate is monotone.
func (e *Evaluator) ContainsQuorum(s NodeIDSet) bool {
	b := e.load(s)
	e.shrinkToMaxQuorum(b)
	return b.Any()
}

// MaxQuorum returns the largest quorum contained in "s", empty set when "s"
// doesn't contain a quorum.
func (e *Evaluator) MaxQuorum(s NodeIDSet) NodeIDSet {
	b := e.load(s)
	e.shrinkToMaxQuorum(b)
	return NodeIDSet{bits: b.Clone()}
}

/*
IsBlocking returns true when "s" intersects every quorum. Evaluated via the dual
formulation: "s" is blocking iff the complement of "s" doesn't contain a quorum.
*/
func (e *Evaluator) IsBlocking(s NodeIDSet) bool {
	e.cur.ClearAll()
	e.cur.InPlaceUnion(e.f.withQSet.bits)
	if s.bits != nil {
		e.cur.InPlaceDifference(s.bits)
	}
	e.shrinkToMaxQuorum(e.cur)
	return e.cur.None()
}

/*
CanExtendToQuorum returns true when there might be a quorum Q such that
selection ⊆ Q ⊆ selection ∪ available, ie all the selected nodes survive in the
largest quorum contained in selection ∪ available.
*/
func (e *Evaluator) CanExtendToQuorum(selection, available NodeIDSet) bool {
	b := e.load(selection)
	if available.bits != nil {
		b.InPlaceUnion(available.bits)
	}
	e.shrinkToMaxQuorum(b)
	if selection.bits == nil {
		return b.Any()
	}
	return b.Any() && b.IsSuperSet(selection.bits)
}

// IsSatisfied returns true when quorum set of the node is satisfied by "s".
func (e *Evaluator) IsSatisfied(id NodeID, s NodeIDSet) bool {
	e.resetMemo()
	return e.satisfied(uint(id), s.b())
}

/*
MinimizeQuorum returns minimal quorum contained in "s", empty set when "s" doesn't
contain a quorum. Nodes are dropped greedily in ascending order.
*/
func (e *Evaluator) MinimizeQuorum(s NodeIDSet) NodeIDSet {
	q := e.MaxQuorum(s)
	for _, id := range q.IDs() {
		if !q.Contains(id) {
			continue
		}
		if t := e.MaxQuorum(q.Without(id)); !t.IsEmpty() {
			q = t
		}
	}
	return q
}

// Convenience wrappers creating new evaluator for every call.

func (f *Fbas) IsQuorum(s NodeIDSet) bool { return f.NewEvaluator().IsQuorum(s) }

func (f *Fbas) ContainsQuorum(s NodeIDSet) bool { return f.NewEvaluator().ContainsQuorum(s) }

func (f *Fbas) MaxQuorum(s NodeIDSet) NodeIDSet { return f.NewEvaluator().MaxQuorum(s) }

func (f *Fbas) IsBlocking(s NodeIDSet) bool { return f.NewEvaluator().IsBlocking(s) }

func (f *Fbas) MinimizeQuorum(s NodeIDSet) NodeIDSet { return f.NewEvaluator().MinimizeQuorum(s) }

func (f *Fbas) IsSatisfied(id NodeID, s NodeIDSet) bool { return f.NewEvaluator().IsSatisfied(id, s) }

// SatisfiableNodes returns nodes which are member of at least one quorum, ie the
// largest quorum of the FBAS.
func (f *Fbas) SatisfiableNodes() NodeIDSet {
	return f.MaxQuorum(f.AllNodes())
}

// UnsatisfiableNodes returns nodes which can't be part of any quorum.
func (f *Fbas) UnsatisfiableNodes() NodeIDSet {
	return f.AllNodes().Difference(f.SatisfiableNodes())
}
