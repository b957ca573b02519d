/*
Package search enumerates minimal node sets satisfying a monotone predicate and
implements the headline FBAS queries on top of it.
*/
package search

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sync/errgroup"

	"github.com/marfl/fbas-analyzer/fbas"
	"github.com/marfl/fbas-analyzer/logger"
)

type (
	/*
		Predicate must be monotone: when it holds for a set it must hold for every
		superset of the set. Implementations do not need to be safe for concurrent use
		and must not retain the set passed to them (it is modified by the search).
	*/
	Predicate interface {
		Holds(s fbas.NodeIDSet) bool
	}

	/*
		Bounded predicate can tell that no minimal set containing "selection" exists
		within "selection ∪ available", which allows to prune whole subtrees. Returning
		true is always safe.
	*/
	Bounded interface {
		Predicate
		Reachable(selection, available fbas.NodeIDSet) bool
	}

	PredicateFunc func(s fbas.NodeIDSet) bool

	Problem struct {
		// used in log messages
		Name string
		// nodes the minimal sets are built from
		Candidates fbas.NodeIDSet
		// called once per worker
		NewPredicate func() Predicate
	}

	Stats struct {
		Visited          int64         `json:"visited" yaml:"visited"`
		Evaluations      int64         `json:"evaluations" yaml:"evaluations"`
		PrunedBySuperset int64         `json:"prunedBySuperset" yaml:"prunedBySuperset"`
		PrunedByBound    int64         `json:"prunedByBound" yaml:"prunedByBound"`
		Hits             int           `json:"hits" yaml:"hits"`
		Stopped          bool          `json:"stopped" yaml:"stopped"`
		Duration         time.Duration `json:"duration" yaml:"duration"`
	}

	Option func(*options)

	options struct {
		workers int
		log     logger.Logger
		stop    func(hit fbas.NodeIDSet) bool
	}
)

func (f PredicateFunc) Holds(s fbas.NodeIDSet) bool { return f(s) }

// WithWorkers sets the number of goroutines exploring top level branches in
// parallel. Default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

/*
WithStop registers callback which is called (serially) for every minimal set found.
When it returns true the search is stopped and the sets found so far are returned.
*/
func WithStop(stop func(hit fbas.NodeIDSet) bool) Option {
	return func(o *options) { o.stop = stop }
}

func newOptions(opts []Option) options {
	o := options{workers: runtime.GOMAXPROCS(0), log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type hitStore struct {
	mu      sync.RWMutex
	hits    []*bitset.BitSet
	stop    func(hit fbas.NodeIDSet) bool
	stopped atomic.Bool
}

// covers returns true when some hit is subset of "b".
func (h *hitStore) covers(b *bitset.BitSet) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hit := range h.hits {
		if b.IsSuperSet(hit) {
			return true
		}
	}
	return false
}

func (h *hitStore) add(b *bitset.BitSet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped.Load() {
		return
	}
	h.hits = append(h.hits, b)
	if h.stop != nil && h.stop(fbas.WrapBitSet(b.Clone())) {
		h.stopped.Store(true)
	}
}

type counters struct {
	visited, evaluations, prunedBySuperset, prunedByBound atomic.Int64
}

type searcher struct {
	ctx     context.Context
	pred    Predicate
	bounded Bounded
	cands   []fbas.NodeID
	// suffix[i] contains cands[i:]
	suffix []*bitset.BitSet
	hits   *hitStore
	cnt    *counters
	sel    *bitset.BitSet
}

func (s *searcher) holds(b *bitset.BitSet) bool {
	s.cnt.evaluations.Add(1)
	return s.pred.Holds(fbas.WrapBitSet(b))
}

// minimal returns true when no set with one member less satisfies the predicate,
// for monotone predicates that is enough for the selection to be minimal.
func (s *searcher) minimal() bool {
	for i, ok := s.sel.NextSet(0); ok; i, ok = s.sel.NextSet(i + 1) {
		s.sel.Clear(i)
		h := s.holds(s.sel)
		s.sel.Set(i)
		if h {
			return false
		}
	}
	return true
}

/*
enter evaluates the current selection and returns true when supersets of it built
by adding cands[next:] need to be explored.
*/
func (s *searcher) enter(next int) (bool, error) {
	if err := s.ctx.Err(); err != nil {
		return false, err
	}
	if s.hits.stopped.Load() {
		return false, nil
	}
	s.cnt.visited.Add(1)
	if s.hits.covers(s.sel) {
		s.cnt.prunedBySuperset.Add(1)
		return false, nil
	}
	if s.holds(s.sel) {
		if s.minimal() {
			s.hits.add(s.sel.Clone())
		}
		return false, nil
	}
	if next >= len(s.cands) {
		return false, nil
	}
	if s.bounded != nil && !s.bounded.Reachable(fbas.WrapBitSet(s.sel), fbas.WrapBitSet(s.suffix[next])) {
		s.cnt.prunedByBound.Add(1)
		return false, nil
	}
	return true, nil
}

func (s *searcher) visit(next int) error {
	descend, err := s.enter(next)
	if err != nil || !descend {
		return err
	}
	for i := next; i < len(s.cands); i++ {
		id := uint(s.cands[i])
		s.sel.Set(id)
		err := s.visit(i + 1)
		s.sel.Clear(id)
		if err != nil {
			return err
		}
	}
	return nil
}

/*
MinimalSets returns all minimal subsets of p.Candidates which satisfy the (monotone)
predicate, sorted by size and then lexicographically.

The search is a depth first branch and bound: nodes are added in ascending order
so every subset is generated at most once, a selection satisfying the predicate is
not extended further, and selections which are supersets of an already found
minimal set are pruned. Branches starting with different first node are explored
in parallel, each worker has its own predicate instance. The context is checked on
every step, cancelling it aborts the search with the context's error.
*/
func MinimalSets(ctx context.Context, p Problem, opts ...Option) (fbas.NodeIDSets, Stats, error) {
	o := newOptions(opts)
	start := time.Now()

	cands := p.Candidates.IDs()
	suffix := make([]*bitset.BitSet, len(cands)+1)
	suffix[len(cands)] = bitset.New(0)
	for i := len(cands) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1].Clone()
		suffix[i].Set(uint(cands[i]))
	}
	hits := &hitStore{stop: o.stop}
	cnt := &counters{}
	newSearcher := func(ctx context.Context) *searcher {
		s := &searcher{
			ctx:    ctx,
			pred:   p.NewPredicate(),
			cands:  cands,
			suffix: suffix,
			hits:   hits,
			cnt:    cnt,
			sel:    bitset.New(0),
		}
		s.bounded, _ = s.pred.(Bounded)
		return s
	}

	o.log.Debug("%s: searching minimal sets over %d candidates with %d workers", p.Name, len(cands), o.workers)
	err := func() error {
		descend, err := newSearcher(ctx).enter(0)
		if err != nil || !descend {
			return err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for i := range cands {
			i := i
			g.Go(func() error {
				s := newSearcher(gctx)
				s.sel.Set(uint(cands[i]))
				return s.visit(i + 1)
			})
		}
		return g.Wait()
	}()

	hits.mu.Lock()
	res := make(fbas.NodeIDSets, len(hits.hits))
	for i, b := range hits.hits {
		res[i] = fbas.WrapBitSet(b)
	}
	hits.mu.Unlock()
	res = res.Minimal()
	stats := Stats{
		Visited:          cnt.visited.Load(),
		Evaluations:      cnt.evaluations.Load(),
		PrunedBySuperset: cnt.prunedBySuperset.Load(),
		PrunedByBound:    cnt.prunedByBound.Load(),
		Hits:             len(res),
		Stopped:          hits.stopped.Load(),
		Duration:         time.Since(start),
	}
	if err != nil {
		o.log.Debug("%s: search aborted after visiting %d sets: %v", p.Name, stats.Visited, err)
		return nil, stats, fmt.Errorf("%s search: %w", p.Name, err)
	}
	o.log.Debug("%s: found %d minimal sets in %s (visited %d, evaluations %d, pruned %d+%d, stopped %t)",
		p.Name, stats.Hits, stats.Duration, stats.Visited, stats.Evaluations, stats.PrunedBySuperset, stats.PrunedByBound, stats.Stopped)
	return res, stats, nil
}
