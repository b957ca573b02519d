package fbas

import (
	"golang.org/x/exp/slices"
)

// NodeIDSets is a sequence of node sets, ie minimal quorums or blocking sets.
// Consumers must treat it as a set of sets, order carries no meaning.
type NodeIDSets []NodeIDSet

// SetsSummary describes a collection of node sets.
type SetsSummary struct {
	Count         int     `json:"count" yaml:"count"`
	MinSize       int     `json:"min_size" yaml:"min_size"`
	MaxSize       int     `json:"max_size" yaml:"max_size"`
	MeanSize      float64 `json:"mean_size" yaml:"mean_size"`
	InvolvedNodes int     `json:"involved_nodes" yaml:"involved_nodes"`
	Histogram     []int   `json:"histogram" yaml:"histogram"`
}

func (ss NodeIDSets) Len() int { return len(ss) }

func (ss NodeIDSets) MinSize() int {
	if len(ss) == 0 {
		return 0
	}
	m := ss[0].Len()
	for _, s := range ss[1:] {
		if l := s.Len(); l < m {
			m = l
		}
	}
	return m
}

func (ss NodeIDSets) MaxSize() int {
	m := 0
	for _, s := range ss {
		if l := s.Len(); l > m {
			m = l
		}
	}
	return m
}

func (ss NodeIDSets) MeanSize() float64 {
	if len(ss) == 0 {
		return 0
	}
	total := 0
	for _, s := range ss {
		total += s.Len()
	}
	return float64(total) / float64(len(ss))
}

// InvolvedNodes returns union of all the sets.
func (ss NodeIDSets) InvolvedNodes() NodeIDSet {
	u := NodeIDSet{}
	for _, s := range ss {
		u = u.Union(s)
	}
	return u
}

// Histogram returns slice where value at index i is the number of sets of size i.
func (ss NodeIDSets) Histogram() []int {
	h := make([]int, ss.MaxSize()+1)
	for _, s := range ss {
		h[s.Len()]++
	}
	return h
}

func (ss NodeIDSets) Describe() SetsSummary {
	return SetsSummary{
		Count:         ss.Len(),
		MinSize:       ss.MinSize(),
		MaxSize:       ss.MaxSize(),
		MeanSize:      ss.MeanSize(),
		InvolvedNodes: ss.InvolvedNodes().Len(),
		Histogram:     ss.Histogram(),
	}
}

// Sorted returns canonically ordered copy: by set size, then lexicographically.
func (ss NodeIDSets) Sorted() NodeIDSets {
	c := slices.Clone(ss)
	slices.SortFunc(c, func(a, b NodeIDSet) bool { return a.Less(b) })
	return c
}

// Contains returns true when a set equal to "s" is in the collection.
func (ss NodeIDSets) Contains(s NodeIDSet) bool {
	return slices.IndexFunc(ss, func(x NodeIDSet) bool { return x.Equal(s) }) >= 0
}

// Equal compares collections as sets of sets.
func (ss NodeIDSets) Equal(other NodeIDSets) bool {
	a, b := ss.Dedup(), other.Dedup()
	if len(a) != len(b) {
		return false
	}
	keys := make(map[string]struct{}, len(a))
	for _, s := range a {
		keys[s.Key()] = struct{}{}
	}
	for _, s := range b {
		if _, ok := keys[s.Key()]; !ok {
			return false
		}
	}
	return true
}

// Dedup returns copy without duplicate sets, order of first occurrences is preserved.
func (ss NodeIDSets) Dedup() NodeIDSets {
	seen := make(map[string]struct{}, len(ss))
	res := make(NodeIDSets, 0, len(ss))
	for _, s := range ss {
		k := s.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		res = append(res, s)
	}
	return res
}

/*
Minimal returns the sets which do not have a proper subset in the collection,
duplicates are removed. The result is canonically sorted.
*/
func (ss NodeIDSets) Minimal() NodeIDSets {
	sorted := ss.Dedup().Sorted()
	res := make(NodeIDSets, 0, len(sorted))
	for _, s := range sorted {
		// sorted by size so any subset of "s" is already in the result
		if slices.IndexFunc(res, func(m NodeIDSet) bool { return m.IsSubsetOf(s) }) < 0 {
			res = append(res, s)
		}
	}
	return res
}

// WithoutNodes removes given nodes from every set and returns the minimal ones
// among the remaining sets.
func (ss NodeIDSets) WithoutNodes(nodes NodeIDSet) NodeIDSets {
	res := make(NodeIDSets, len(ss))
	for i, s := range ss {
		res[i] = s.Difference(nodes)
	}
	return res.Minimal()
}

// Clone returns deep copy of the collection.
func (ss NodeIDSets) Clone() NodeIDSets {
	if ss == nil {
		return nil
	}
	res := make(NodeIDSets, len(ss))
	for i, s := range ss {
		res[i] = s.Clone()
	}
	return res
}

// IDs converts sets into nested slices of integers.
func (ss NodeIDSets) IDs() [][]NodeID {
	res := make([][]NodeID, len(ss))
	for i, s := range ss {
		res[i] = s.IDs()
	}
	return res
}

// NodeIDSetsFromIDs is the inverse of NodeIDSets.IDs.
func NodeIDSetsFromIDs(ids [][]NodeID) NodeIDSets {
	res := make(NodeIDSets, len(ids))
	for i, s := range ids {
		res[i] = NodeIDSetOf(s...)
	}
	return res
}
