package analysis

import (
	"github.com/marfl/fbas-analyzer/fbas"
	"github.com/marfl/fbas-analyzer/search"
)

type setsPersister struct{}

func (setsPersister) load(c Cache, key string) (fbas.NodeIDSets, bool, error) {
	var ids [][]fbas.NodeID
	ok, err := c.Load(key, &ids)
	if err != nil || !ok {
		return nil, false, err
	}
	return fbas.NodeIDSetsFromIDs(ids), true, nil
}

func (setsPersister) store(c Cache, key string, v fbas.NodeIDSets) error {
	return c.Store(key, v.IDs())
}

type storedIntersection struct {
	_          struct{} `cbor:",toarray"`
	Intersects bool
	Witness    [][]fbas.NodeID
}

type intersectionPersister struct{}

func (intersectionPersister) load(c Cache, key string) (search.IntersectionResult, bool, error) {
	var si storedIntersection
	ok, err := c.Load(key, &si)
	if err != nil || !ok {
		return search.IntersectionResult{}, false, err
	}
	res := search.IntersectionResult{Intersects: si.Intersects}
	if !si.Intersects {
		res.Witness = fbas.NodeIDSetsFromIDs(si.Witness)
	}
	return res, true, nil
}

func (intersectionPersister) store(c Cache, key string, v search.IntersectionResult) error {
	return c.Store(key, storedIntersection{Intersects: v.Intersects, Witness: v.Witness.IDs()})
}
