package fbas

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// NodeID is a dense, zero based index of a node within one Fbas instance.
type NodeID uint32

/*
NodeIDSet is a set of NodeIDs backed by a bitset.

Sets are immutable by convention: all the set operations return a new set and
never modify the receiver. The zero value is an empty set.
*/
type NodeIDSet struct {
	bits *bitset.BitSet
}

// NewNodeIDSet creates set with given members. The capacity is a hint
// (usually the node count of the Fbas), set grows when needed.
func NewNodeIDSet(capacity int, ids ...NodeID) NodeIDSet {
	b := bitset.New(uint(capacity))
	for _, id := range ids {
		b.Set(uint(id))
	}
	return NodeIDSet{bits: b}
}

// NodeIDSetOf is a shorthand for creating small sets, mostly in tests.
func NodeIDSetOf(ids ...NodeID) NodeIDSet {
	return NewNodeIDSet(0, ids...)
}

// FullNodeIDSet returns set containing ids 0..n-1.
func FullNodeIDSet(n int) NodeIDSet {
	b := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		b.Set(uint(i))
	}
	return NodeIDSet{bits: b}
}

// WrapBitSet returns set backed by "b" (not a copy!). Used by the search engine to
// avoid allocations on the hot path - the caller must not retain the set.
func WrapBitSet(b *bitset.BitSet) NodeIDSet {
	return NodeIDSet{bits: b}
}

// BitSet returns copy of the underlying bitset.
func (s NodeIDSet) BitSet() *bitset.BitSet {
	if s.bits == nil {
		return bitset.New(0)
	}
	return s.bits.Clone()
}

func (s NodeIDSet) b() *bitset.BitSet {
	if s.bits == nil {
		return bitset.New(0)
	}
	return s.bits
}

func (s NodeIDSet) Contains(id NodeID) bool {
	return s.bits != nil && s.bits.Test(uint(id))
}

func (s NodeIDSet) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

func (s NodeIDSet) IsEmpty() bool {
	return s.bits == nil || s.bits.None()
}

// IDs returns members in ascending order.
func (s NodeIDSet) IDs() []NodeID {
	ids := make([]NodeID, 0, s.Len())
	s.ForEach(func(id NodeID) {
		ids = append(ids, id)
	})
	return ids
}

// ForEach calls f for every member in ascending order.
func (s NodeIDSet) ForEach(f func(id NodeID)) {
	if s.bits == nil {
		return
	}
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		f(NodeID(i))
	}
}

// Min returns the smallest member, false when set is empty.
func (s NodeIDSet) Min() (NodeID, bool) {
	if s.bits == nil {
		return 0, false
	}
	i, ok := s.bits.NextSet(0)
	return NodeID(i), ok
}

func (s NodeIDSet) With(ids ...NodeID) NodeIDSet {
	b := s.b().Clone()
	for _, id := range ids {
		b.Set(uint(id))
	}
	return NodeIDSet{bits: b}
}

func (s NodeIDSet) Without(ids ...NodeID) NodeIDSet {
	b := s.b().Clone()
	for _, id := range ids {
		b.Clear(uint(id))
	}
	return NodeIDSet{bits: b}
}

func (s NodeIDSet) Union(other NodeIDSet) NodeIDSet {
	return NodeIDSet{bits: s.b().Union(other.b())}
}

func (s NodeIDSet) Intersection(other NodeIDSet) NodeIDSet {
	return NodeIDSet{bits: s.b().Intersection(other.b())}
}

func (s NodeIDSet) Difference(other NodeIDSet) NodeIDSet {
	return NodeIDSet{bits: s.b().Difference(other.b())}
}

func (s NodeIDSet) Intersects(other NodeIDSet) bool {
	return s.b().IntersectionCardinality(other.b()) > 0
}

// IsSubsetOf returns true when every member of "s" is member of "other" too.
func (s NodeIDSet) IsSubsetOf(other NodeIDSet) bool {
	return other.b().IsSuperSet(s.b())
}

// IsProperSubsetOf returns true when "s" is subset of "other" and the sets are not equal.
func (s NodeIDSet) IsProperSubsetOf(other NodeIDSet) bool {
	return s.IsSubsetOf(other) && s.Len() < other.Len()
}

// Equal compares the bit patterns, capacity of the sets is not relevant.
func (s NodeIDSet) Equal(other NodeIDSet) bool {
	return s.b().SymmetricDifferenceCardinality(other.b()) == 0
}

func (s NodeIDSet) Clone() NodeIDSet {
	if s.bits == nil {
		return NodeIDSet{}
	}
	return NodeIDSet{bits: s.bits.Clone()}
}

// Key returns string which is equal for equal sets (regardless of capacity),
// meant to be used as map key when deduplicating sets.
func (s NodeIDSet) Key() string {
	var sb strings.Builder
	s.ForEach(func(id NodeID) {
		sb.WriteString(strconv.FormatUint(uint64(id), 36))
		sb.WriteByte('.')
	})
	return sb.String()
}

// Less orders sets by size first and then lexicographically by members.
func (s NodeIDSet) Less(other NodeIDSet) bool {
	if a, b := s.Len(), other.Len(); a != b {
		return a < b
	}
	x, y := s.IDs(), other.IDs()
	for i := range x {
		if x[i] != y[i] {
			return x[i] < y[i]
		}
	}
	return false
}

func (s NodeIDSet) String() string {
	ids := s.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// MarshalJSON encodes the set as ordered array of integers.
func (s NodeIDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *NodeIDSet) UnmarshalJSON(data []byte) error {
	var ids []NodeID
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("decoding node id set: %w", err)
	}
	*s = NewNodeIDSet(0, ids...)
	return nil
}

// MarshalYAML encodes the set as ordered sequence of integers.
func (s NodeIDSet) MarshalYAML() (any, error) {
	return s.IDs(), nil
}
