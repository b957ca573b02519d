/*
Package analysis answers the quorum structure questions about an FBAS: quorum
intersection, minimal quorums, minimal blocking sets, minimal splitting sets and the
derived top tier queries.

The FBAS is shrunk once when the Analysis is created, every query runs the search on
the shrunk FBAS and translates the result back to the original node IDs. Results are
memoized for the lifetime of the Analysis instance.
*/
package analysis

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marfl/fbas-analyzer/fbas"
	"github.com/marfl/fbas-analyzer/logger"
	"github.com/marfl/fbas-analyzer/search"
	"github.com/marfl/fbas-analyzer/shrinking"
)

type Query string

const (
	QueryIntersection      Query = "intersection"
	QueryMinimalQuorums    Query = "quorums"
	QueryBlockingSets      Query = "blocking"
	QuerySplittingSets     Query = "splitting"
	QueryTopTier           Query = "top-tier"
	QuerySymmetricClusters Query = "symmetric"

	queryShrunkQuorums Query = "shrunk-quorums"
)

// AllQueries lists the public queries in the order they are usually reported.
var AllQueries = []Query{QueryIntersection, QueryMinimalQuorums, QueryBlockingSets, QuerySplittingSets, QueryTopTier, QuerySymmetricClusters}

// ParseQuery returns error for unknown query names.
func ParseQuery(s string) (Query, error) {
	for _, q := range AllQueries {
		if string(q) == s {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown query %q", s)
}

/*
Cache is persistent storage of query results shared between Analysis instances.
Keys include the FBAS fingerprint so results of different networks do not mix.
*/
type Cache interface {
	Load(key string, v any) (bool, error)
	Store(key string, v any) error
}

type (
	Option func(*config)

	config struct {
		orgs    *fbas.Organizations
		workers int
		log     logger.Logger
		cache   Cache
	}
)

// WithOrganizations makes the analysis treat every organization as a single node.
func WithOrganizations(orgs *fbas.Organizations) Option {
	return func(c *config) { c.orgs = orgs }
}

func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.log = l }
}

func WithCache(cache Cache) Option {
	return func(c *config) { c.cache = cache }
}

type Analysis struct {
	cfg      config
	original *fbas.Fbas
	sm       *shrinking.Manager
	// prefix of the persistent cache keys
	cacheKey string

	mu      sync.Mutex
	results map[Query]any
	stats   map[Query]QueryStats
	group   singleflight.Group
}

// QueryStats describes the computation of a query result.
type QueryStats struct {
	Search   *search.Stats `json:"search,omitempty" yaml:"search,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Cached   bool          `json:"cached" yaml:"cached"`
}

/*
New creates analysis of the FBAS. When organizations are given the members of every
organization are merged into a single node, results still list all the members.
*/
func New(f *fbas.Fbas, opts ...Option) (*Analysis, error) {
	cfg := config{workers: runtime.GOMAXPROCS(0), log: logger.Nop()}
	for _, o := range opts {
		o(&cfg)
	}

	smOpts := []shrinking.Option{shrinking.WithLogger(cfg.log)}
	orgKey := "nodes"
	if cfg.orgs != nil && cfg.orgs.Len() > 0 {
		smOpts = append(smOpts, shrinking.WithOrganizations(cfg.orgs))
		orgKey = hex.EncodeToString(cfg.orgs.Fingerprint())
	}
	sm, err := shrinking.New(f, smOpts...)
	if err != nil {
		return nil, fmt.Errorf("shrinking FBAS: %w", err)
	}
	return &Analysis{
		cfg:      cfg,
		original: f,
		sm:       sm,
		cacheKey: hex.EncodeToString(f.Fingerprint()) + "/" + orgKey + "/",
		results:  make(map[Query]any),
		stats:    make(map[Query]QueryStats),
	}, nil
}

func (a *Analysis) Fbas() *fbas.Fbas { return a.original }

func (a *Analysis) ShrinkStats() shrinking.Stats { return a.sm.Stats() }

func (a *Analysis) searchOpts() []search.Option {
	return []search.Option{search.WithWorkers(a.cfg.workers), search.WithLogger(a.cfg.log)}
}

func (a *Analysis) cached(q Query) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.results[q]
	return v, ok
}

func (a *Analysis) setStats(q Query, st QueryStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats[q] = st
}

// persister converts the result into a form which can be stored in the Cache.
type persister[T any] interface {
	load(c Cache, key string) (T, bool, error)
	store(c Cache, key string, v T) error
}

/*
memo returns result of the query, computing it at most once at the time: concurrent
callers of the same query share the computation. Failed computations are not
memoized. The shared computation runs with the context of the caller which started
it; when it is aborted by that context the callers whose own context is still live
start it again.
*/
func memo[T any](ctx context.Context, a *Analysis, q Query, p persister[T], compute func(ctx context.Context) (T, *search.Stats, error)) (T, error) {
	for {
		v, err := memoOnce(ctx, a, q, p, compute)
		if err != nil && ctx.Err() == nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			a.cfg.log.Debug("%s computation of another caller was aborted, retrying", q)
			continue
		}
		return v, err
	}
}

func memoOnce[T any](ctx context.Context, a *Analysis, q Query, p persister[T], compute func(ctx context.Context) (T, *search.Stats, error)) (T, error) {
	if v, ok := a.cached(q); ok {
		return v.(T), nil
	}
	v, err, _ := a.group.Do(string(q), func() (any, error) {
		if v, ok := a.cached(q); ok {
			return v, nil
		}
		start := time.Now()
		if p != nil && a.cfg.cache != nil {
			v, ok, err := p.load(a.cfg.cache, a.cacheKey+string(q))
			if err != nil {
				a.cfg.log.Warning("loading cached %s result: %v", q, err)
			} else if ok {
				a.cfg.log.Debug("%s result loaded from cache", q)
				a.store(q, v, QueryStats{Cached: true, Duration: time.Since(start)})
				return v, nil
			}
		}
		v, st, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		a.store(q, v, QueryStats{Search: st, Duration: time.Since(start)})
		a.cfg.log.Debug("%s computed in %s", q, time.Since(start))
		if p != nil && a.cfg.cache != nil {
			if err := p.store(a.cfg.cache, a.cacheKey+string(q), v); err != nil {
				a.cfg.log.Warning("storing %s result into cache: %v", q, err)
			}
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", q, err)
	}
	return v.(T), nil
}

func (a *Analysis) store(q Query, v any, st QueryStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[q] = v
	a.stats[q] = st
}

// MinimalQuorums returns all minimal quorums, sorted by size and then lexicographically.
func (a *Analysis) MinimalQuorums(ctx context.Context) (fbas.NodeIDSets, error) {
	mq, err := memo[fbas.NodeIDSets](ctx, a, QueryMinimalQuorums, setsPersister{}, func(ctx context.Context) (fbas.NodeIDSets, *search.Stats, error) {
		mq, st, err := search.MinimalQuorums(ctx, a.sm.Shrunk(), a.searchOpts()...)
		if err != nil {
			return nil, &st, err
		}
		return a.sm.UnshrinkSets(mq), &st, nil
	})
	return mq.Clone(), err
}

// shrunkQuorums returns the minimal quorums in terms of the shrunk FBAS.
func (a *Analysis) shrunkQuorums(ctx context.Context) (fbas.NodeIDSets, error) {
	return memo[fbas.NodeIDSets](ctx, a, queryShrunkQuorums, nil, func(ctx context.Context) (fbas.NodeIDSets, *search.Stats, error) {
		mq, err := a.MinimalQuorums(ctx)
		if err != nil {
			return nil, nil, err
		}
		res := make(fbas.NodeIDSets, len(mq))
		for i, q := range mq {
			if res[i], err = a.sm.ShrinkSet(q); err != nil {
				return nil, nil, fmt.Errorf("shrinking minimal quorum %s: %w", q, err)
			}
		}
		return res, nil, nil
	})
}

/*
MinimalBlockingSets returns all minimal sets of nodes which intersect every quorum.
The search is restricted to the top tier, when there are no quorums the result is
the single empty set.
*/
func (a *Analysis) MinimalBlockingSets(ctx context.Context) (fbas.NodeIDSets, error) {
	mb, err := memo[fbas.NodeIDSets](ctx, a, QueryBlockingSets, setsPersister{}, func(ctx context.Context) (fbas.NodeIDSets, *search.Stats, error) {
		mq, err := a.shrunkQuorums(ctx)
		if err != nil {
			return nil, nil, err
		}
		top, err := a.sm.Restrict(mq.InvolvedNodes())
		if err != nil {
			return nil, nil, fmt.Errorf("restricting to top tier: %w", err)
		}
		mb, st, err := search.MinimalBlockingSets(ctx, top.Shrunk(), a.searchOpts()...)
		if err != nil {
			return nil, &st, err
		}
		return top.UnshrinkSets(mb), &st, nil
	})
	return mb.Clone(), err
}

// MinimalSplittingSets returns all minimal sets whose removal can leave two
// disjoint quorums. Computed from the minimal quorums.
func (a *Analysis) MinimalSplittingSets(ctx context.Context) (fbas.NodeIDSets, error) {
	ms, err := memo[fbas.NodeIDSets](ctx, a, QuerySplittingSets, setsPersister{}, func(ctx context.Context) (fbas.NodeIDSets, *search.Stats, error) {
		mq, err := a.shrunkQuorums(ctx)
		if err != nil {
			return nil, nil, err
		}
		ms, err := search.MinimalSplittingSets(ctx, mq)
		if err != nil {
			return nil, nil, err
		}
		return a.sm.UnshrinkSets(ms), nil, nil
	})
	return ms.Clone(), err
}

func (a *Analysis) intersection(ctx context.Context) (search.IntersectionResult, error) {
	return memo[search.IntersectionResult](ctx, a, QueryIntersection, intersectionPersister{}, func(ctx context.Context) (search.IntersectionResult, *search.Stats, error) {
		if v, ok := a.cached(QueryMinimalQuorums); ok {
			return search.IntersectionFromQuorums(v.(fbas.NodeIDSets)), nil, nil
		}
		res, st, err := search.HasQuorumIntersection(ctx, a.sm.Shrunk(), a.searchOpts()...)
		if err != nil {
			return search.IntersectionResult{}, &st, err
		}
		if !res.Intersects {
			res.Witness = a.sm.UnshrinkSets(res.Witness)
		}
		return res, &st, nil
	})
}

// HasQuorumIntersection returns true when every two quorums intersect. FBAS without
// quorums has quorum intersection.
func (a *Analysis) HasQuorumIntersection(ctx context.Context) (bool, error) {
	res, err := a.intersection(ctx)
	return res.Intersects, err
}

// QuorumIntersectionWitness returns two disjoint minimal quorums, nil when quorum
// intersection holds.
func (a *Analysis) QuorumIntersectionWitness(ctx context.Context) (fbas.NodeIDSets, error) {
	res, err := a.intersection(ctx)
	return res.Witness.Clone(), err
}

// TopTier returns union of all minimal quorums.
func (a *Analysis) TopTier(ctx context.Context) (fbas.NodeIDSet, error) {
	mq, err := a.MinimalQuorums(ctx)
	if err != nil {
		return fbas.NodeIDSet{}, err
	}
	return mq.InvolvedNodes(), nil
}

// QueryStats returns statistics of the computed queries.
func (a *Analysis) QueryStats() map[Query]QueryStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := make(map[Query]QueryStats, len(a.stats))
	for q, st := range a.stats {
		if q != queryShrunkQuorums {
			res[q] = st
		}
	}
	return res
}

// Run computes the queries, the order of the queries doesn't matter.
func (a *Analysis) Run(ctx context.Context, queries ...Query) error {
	for _, q := range queries {
		var err error
		switch q {
		case QueryIntersection:
			_, err = a.intersection(ctx)
		case QueryMinimalQuorums, QueryTopTier:
			_, err = a.MinimalQuorums(ctx)
		case QueryBlockingSets:
			_, err = a.MinimalBlockingSets(ctx)
		case QuerySplittingSets:
			_, err = a.MinimalSplittingSets(ctx)
		case QuerySymmetricClusters:
			_, err = a.SymmetricTopTier(ctx)
		default:
			err = fmt.Errorf("unknown query %q", q)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
