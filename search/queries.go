package search

import (
	"context"

	"github.com/marfl/fbas-analyzer/fbas"
)

type quorumPredicate struct {
	e *fbas.Evaluator
}

// minimal sets of "contains quorum" are exactly the minimal quorums
func (p quorumPredicate) Holds(s fbas.NodeIDSet) bool { return p.e.ContainsQuorum(s) }

func (p quorumPredicate) Reachable(selection, available fbas.NodeIDSet) bool {
	return p.e.CanExtendToQuorum(selection, available)
}

type blockingPredicate struct {
	e *fbas.Evaluator
}

func (p blockingPredicate) Holds(s fbas.NodeIDSet) bool { return p.e.IsBlocking(s) }

func (p blockingPredicate) Reachable(selection, available fbas.NodeIDSet) bool {
	return p.e.IsBlocking(selection.Union(available))
}

// MinimalQuorums returns all minimal quorums of the FBAS.
func MinimalQuorums(ctx context.Context, f *fbas.Fbas, opts ...Option) (fbas.NodeIDSets, Stats, error) {
	return MinimalSets(ctx, Problem{
		Name:         "minimal quorums",
		Candidates:   f.SatisfiableNodes(),
		NewPredicate: func() Predicate { return quorumPredicate{e: f.NewEvaluator()} },
	}, opts...)
}

/*
MinimalBlockingSets returns all minimal sets intersecting every quorum. Only nodes
which are part of some quorum are considered as members. When the FBAS has no
quorums the result is the single empty set.
*/
func MinimalBlockingSets(ctx context.Context, f *fbas.Fbas, opts ...Option) (fbas.NodeIDSets, Stats, error) {
	return MinimalSets(ctx, Problem{
		Name:         "minimal blocking sets",
		Candidates:   f.SatisfiableNodes(),
		NewPredicate: func() Predicate { return blockingPredicate{e: f.NewEvaluator()} },
	}, opts...)
}

/*
MinimalSplittingSets returns minimal splitting sets given all the minimal quorums
of the FBAS. Set S is splitting when there are two different minimal quorums whose
intersection is contained in S, ie after removing S the rest of the quorums are
disjoint. The minimal splitting sets are the minimal pairwise intersections of the
minimal quorums (empty set when some two minimal quorums are disjoint). With less
than two minimal quorums there are no splitting sets.
*/
func MinimalSplittingSets(ctx context.Context, minimalQuorums fbas.NodeIDSets) (fbas.NodeIDSets, error) {
	var res fbas.NodeIDSets
	for i := range minimalQuorums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(minimalQuorums); j++ {
			res = append(res, minimalQuorums[i].Intersection(minimalQuorums[j]))
		}
		// keep the collection small
		if len(res) > 4*len(minimalQuorums) {
			res = res.Minimal()
		}
	}
	return res.Minimal(), nil
}

// IntersectionResult is the outcome of the quorum intersection check.
type IntersectionResult struct {
	Intersects bool `json:"intersects" yaml:"intersects"`
	// two disjoint minimal quorums when Intersects is false
	Witness fbas.NodeIDSets `json:"witness,omitempty" yaml:"witness,omitempty"`
}

// IntersectionFromQuorums checks quorum intersection using already computed
// minimal quorums, stops at the first disjoint pair.
func IntersectionFromQuorums(minimalQuorums fbas.NodeIDSets) IntersectionResult {
	for i := range minimalQuorums {
		for j := i + 1; j < len(minimalQuorums); j++ {
			if !minimalQuorums[i].Intersects(minimalQuorums[j]) {
				return IntersectionResult{Witness: fbas.NodeIDSets{minimalQuorums[i], minimalQuorums[j]}.Sorted()}
			}
		}
	}
	return IntersectionResult{Intersects: true}
}

/*
HasQuorumIntersection checks whether every two quorums of the FBAS intersect without
enumerating all the minimal quorums: the minimal quorum search is stopped as soon as
a minimal quorum is found whose complement still contains a quorum.
*/
func HasQuorumIntersection(ctx context.Context, f *fbas.Fbas, opts ...Option) (IntersectionResult, Stats, error) {
	sat := f.SatisfiableNodes()
	e := f.NewEvaluator()
	res := IntersectionResult{Intersects: true}
	// stop callbacks are called serially
	stop := func(hit fbas.NodeIDSet) bool {
		rest := sat.Difference(hit)
		if !e.ContainsQuorum(rest) {
			return false
		}
		res = IntersectionResult{Witness: fbas.NodeIDSets{hit, e.MinimizeQuorum(rest)}.Sorted()}
		return true
	}
	_, stats, err := MinimalSets(ctx, Problem{
		Name:         "quorum intersection",
		Candidates:   sat,
		NewPredicate: func() Predicate { return quorumPredicate{e: f.NewEvaluator()} },
	}, append(append([]Option{}, opts...), WithStop(stop))...)
	if err != nil {
		return IntersectionResult{}, stats, err
	}
	return res, stats, nil
}
