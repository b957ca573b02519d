package loader

import (
	"github.com/marfl/fbas-analyzer/fbas"
)

// Labeler maps node IDs to human readable labels.
type Labeler struct {
	f          *fbas.Fbas
	preferName bool
}

// NewLabeler returns labeler using public keys, or node names (when set) if
// "preferName" is true.
func NewLabeler(f *fbas.Fbas, preferName bool) Labeler {
	return Labeler{f: f, preferName: preferName}
}

func (l Labeler) Label(id fbas.NodeID) string {
	n, ok := l.f.Node(id)
	if !ok {
		return ""
	}
	if l.preferName && n.Name != "" {
		return n.Name
	}
	return n.PublicKey
}

func (l Labeler) Set(s fbas.NodeIDSet) []string {
	res := make([]string, 0, s.Len())
	s.ForEach(func(id fbas.NodeID) { res = append(res, l.Label(id)) })
	return res
}

func (l Labeler) Sets(ss fbas.NodeIDSets) [][]string {
	res := make([][]string, len(ss))
	for i, s := range ss {
		res[i] = l.Set(s)
	}
	return res
}
