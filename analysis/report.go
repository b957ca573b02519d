package analysis

import (
	"context"

	"github.com/marfl/fbas-analyzer/fbas"
	"github.com/marfl/fbas-analyzer/search"
	"github.com/marfl/fbas-analyzer/shrinking"
)

// Results is a snapshot of the query results, queries which haven't been computed
// are unknown.
type Results struct {
	QuorumIntersection   Result[bool]            `json:"quorumIntersection" yaml:"quorumIntersection"`
	IntersectionWitness  Result[fbas.NodeIDSets] `json:"intersectionWitness" yaml:"intersectionWitness"`
	MinimalQuorums       Result[fbas.NodeIDSets] `json:"minimalQuorums" yaml:"minimalQuorums"`
	MinimalBlockingSets  Result[fbas.NodeIDSets] `json:"minimalBlockingSets" yaml:"minimalBlockingSets"`
	MinimalSplittingSets Result[fbas.NodeIDSets] `json:"minimalSplittingSets" yaml:"minimalSplittingSets"`
	TopTier              Result[fbas.NodeIDSet]  `json:"topTier" yaml:"topTier"`
}

// Results returns copy of the results computed so far.
func (a *Analysis) Results() Results {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := Results{
		QuorumIntersection:   Unknown[bool](),
		IntersectionWitness:  Unknown[fbas.NodeIDSets](),
		MinimalQuorums:       Unknown[fbas.NodeIDSets](),
		MinimalBlockingSets:  Unknown[fbas.NodeIDSets](),
		MinimalSplittingSets: Unknown[fbas.NodeIDSets](),
		TopTier:              Unknown[fbas.NodeIDSet](),
	}
	if v, ok := a.results[QueryIntersection]; ok {
		ir := v.(search.IntersectionResult)
		res.QuorumIntersection = Known(ir.Intersects)
		witness := ir.Witness.Clone()
		if witness == nil {
			witness = fbas.NodeIDSets{}
		}
		res.IntersectionWitness = Known(witness)
	}
	if v, ok := a.results[QueryMinimalQuorums]; ok {
		mq := v.(fbas.NodeIDSets)
		res.MinimalQuorums = Known(mq.Clone())
		res.TopTier = Known(mq.InvolvedNodes())
	}
	if v, ok := a.results[QueryBlockingSets]; ok {
		res.MinimalBlockingSets = Known(v.(fbas.NodeIDSets).Clone())
	}
	if v, ok := a.results[QuerySplittingSets]; ok {
		res.MinimalSplittingSets = Known(v.(fbas.NodeIDSets).Clone())
	}
	return res
}

// Description is a summary of the FBAS and all the query results.
type Description struct {
	Nodes              int              `json:"nodes" yaml:"nodes"`
	NodesWithQuorumSet int              `json:"nodesWithQuorumSet" yaml:"nodesWithQuorumSet"`
	SatisfiableNodes   int              `json:"satisfiableNodes" yaml:"satisfiableNodes"`
	UnsatisfiableNodes int              `json:"unsatisfiableNodes" yaml:"unsatisfiableNodes"`
	QuorumSetClasses   int              `json:"quorumSetClasses" yaml:"quorumSetClasses"`
	Organizations      int              `json:"organizations" yaml:"organizations"`
	Shrinking          shrinking.Stats  `json:"shrinking" yaml:"shrinking"`
	QuorumIntersection bool             `json:"quorumIntersection" yaml:"quorumIntersection"`
	TopTierSize        int              `json:"topTierSize" yaml:"topTierSize"`
	SymmetricTopTier   bool             `json:"symmetricTopTier" yaml:"symmetricTopTier"`
	SymmetricClusters  int              `json:"symmetricClusters" yaml:"symmetricClusters"`
	MinimalQuorums     fbas.SetsSummary `json:"minimalQuorums" yaml:"minimalQuorums"`
	MinimalBlocking    fbas.SetsSummary `json:"minimalBlockingSets" yaml:"minimalBlockingSets"`
	MinimalSplitting   fbas.SetsSummary `json:"minimalSplittingSets" yaml:"minimalSplittingSets"`
}

// Describe computes all the queries and summarizes them.
func (a *Analysis) Describe(ctx context.Context) (*Description, error) {
	// intersection is derived from the minimal quorums when they are known
	if err := a.Run(ctx, QueryMinimalQuorums, QueryIntersection, QueryBlockingSets, QuerySplittingSets); err != nil {
		return nil, err
	}
	f := a.original
	sat := f.SatisfiableNodes()
	d := &Description{
		Nodes:              f.NodeCount(),
		NodesWithQuorumSet: f.NodesWithQuorumSet().Len(),
		SatisfiableNodes:   sat.Len(),
		UnsatisfiableNodes: f.NodeCount() - sat.Len(),
		QuorumSetClasses:   f.QuorumSetClasses(),
		Shrinking:          a.sm.Stats(),
		SymmetricClusters:  len(a.SymmetricClusters()),
	}
	if a.cfg.orgs != nil {
		d.Organizations = a.cfg.orgs.Len()
	}

	var err error
	if d.QuorumIntersection, err = a.HasQuorumIntersection(ctx); err != nil {
		return nil, err
	}
	mq, err := a.MinimalQuorums(ctx)
	if err != nil {
		return nil, err
	}
	d.MinimalQuorums = mq.Describe()
	d.TopTierSize = mq.InvolvedNodes().Len()
	mb, err := a.MinimalBlockingSets(ctx)
	if err != nil {
		return nil, err
	}
	d.MinimalBlocking = mb.Describe()
	ms, err := a.MinimalSplittingSets(ctx)
	if err != nil {
		return nil, err
	}
	d.MinimalSplitting = ms.Describe()
	stt, err := a.SymmetricTopTier(ctx)
	if err != nil {
		return nil, err
	}
	d.SymmetricTopTier = stt != nil
	return d, nil
}
