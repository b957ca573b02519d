package fbas

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/exp/slices"
)

type canonicalQuorumSet struct {
	_          struct{} `cbor:",toarray"`
	Threshold  int
	Validators []NodeID
	Inner      []canonicalQuorumSet
}

var canonicalEncoding = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("creating canonical CBOR encoding mode: %w", err))
	}
	return em
}

/*
Canonical returns normalized copy of the quorum set: validators are sorted and
inner quorum sets are sorted by their canonical encoding. Two quorum sets which
differ only by the order of their members have equal canonical forms.
*/
func (qs *QuorumSet) Canonical() *QuorumSet {
	c, _ := canonicalize(qs)
	return c
}

// CanonicalKey returns value which is equal for quorum sets with equal canonical form.
func (qs *QuorumSet) CanonicalKey() string {
	_, enc := canonicalize(qs)
	return string(enc)
}

func canonicalize(qs *QuorumSet) (*QuorumSet, []byte) {
	type encodedQS struct {
		qs  *QuorumSet
		enc []byte
	}
	inner := make([]encodedQS, len(qs.InnerQuorumSets))
	for i, iqs := range qs.InnerQuorumSets {
		c, enc := canonicalize(iqs)
		inner[i] = encodedQS{qs: c, enc: enc}
	}
	slices.SortStableFunc(inner, func(a, b encodedQS) bool { return bytes.Compare(a.enc, b.enc) < 0 })

	c := &QuorumSet{Threshold: qs.Threshold, Validators: slices.Clone(qs.Validators)}
	slices.Sort(c.Validators)
	for _, iqs := range inner {
		c.InnerQuorumSets = append(c.InnerQuorumSets, iqs.qs)
	}
	enc, err := canonicalEncoding.Marshal(toCanonical(c))
	if err != nil {
		// plain ints and slices, can't fail
		panic(fmt.Errorf("encoding quorum set: %w", err))
	}
	return c, enc
}

func toCanonical(qs *QuorumSet) canonicalQuorumSet {
	c := canonicalQuorumSet{Threshold: qs.Threshold, Validators: qs.Validators}
	if c.Validators == nil {
		c.Validators = []NodeID{}
	}
	c.Inner = make([]canonicalQuorumSet, len(qs.InnerQuorumSets))
	for i, iqs := range qs.InnerQuorumSets {
		c.Inner[i] = toCanonical(iqs)
	}
	return c
}

/*
Fingerprint returns hash of the canonical form of the FBAS (node public keys and
canonical quorum sets). Meant to be used as cache key for analysis results.
*/
func (f *Fbas) Fingerprint() []byte {
	type fingerprintNode struct {
		_         struct{} `cbor:",toarray"`
		PublicKey string
		QuorumSet *canonicalQuorumSet
	}
	nodes := make([]fingerprintNode, len(f.nodes))
	for i, n := range f.nodes {
		nodes[i].PublicKey = n.PublicKey
		if n.QuorumSet != nil {
			c := toCanonical(n.QuorumSet.Canonical())
			nodes[i].QuorumSet = &c
		}
	}
	enc, err := canonicalEncoding.Marshal(nodes)
	if err != nil {
		panic(fmt.Errorf("encoding FBAS fingerprint: %w", err))
	}
	h := sha256.Sum256(enc)
	return h[:]
}

// Fingerprint returns hash of the organization membership, organization names are
// not part of it.
func (o *Organizations) Fingerprint() []byte {
	groups := make(NodeIDSets, len(o.orgs))
	for i, org := range o.orgs {
		groups[i] = org.Members
	}
	enc, err := canonicalEncoding.Marshal(groups.Sorted().IDs())
	if err != nil {
		panic(fmt.Errorf("encoding organizations fingerprint: %w", err))
	}
	h := sha256.Sum256(enc)
	return h[:]
}
