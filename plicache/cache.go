package plicache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/pli"
	"github.com/hupe1980/pyro/verticalmap"
)

// ErrNoOperands is returned when no cached PLI can contribute to a requested vertical.
var ErrNoOperands = errors.New("plicache: no operands for vertical")

// Handle is the result of a cache request.
type Handle struct {
	pli      *pli.PLI
	borrowed bool
}

// PLI returns the position list index. It must not be modified.
func (h Handle) PLI() *pli.PLI { return h.pli }

// Borrowed reports whether the PLI is owned by the cache. A handle that is
// not borrowed holds a PLI no other component references.
func (h Handle) Borrowed() bool { return h.borrowed }

// Cache holds the PLIs of attribute subsets of one relation.
//
// The index may be read concurrently. Compositions are serialized by a single
// lock so that the same vertical is not composed twice in parallel.
type Cache struct {
	relation *model.Relation
	index    *verticalmap.Blocking[*pli.PLI]
	stats    Statistics
	opts     options
	spill    *spillTier

	mu sync.Mutex
}

// New creates a cache over rel and inserts the single-column PLIs of rel.
func New(rel *model.Relation, optFns ...Option) (*Cache, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if !o.cachingMethod.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCachingMethod, o.cachingMethod)
	}
	if !o.evictionMethod.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvictionMethod, o.evictionMethod)
	}
	o.finish()

	c := &Cache{
		relation: rel,
		index:    verticalmap.NewBlocking[*pli.PLI](rel.Schema()),
		stats:    ComputeStatistics(rel, o.cachingMethod, o.logger),
		opts:     o,
	}
	for _, cd := range rel.Columns() {
		c.index.Put(cd.Column().Vertical(), cd.PLI())
	}
	if o.spillStore != nil {
		c.spill = newSpillTier(o.spillStore, o.spillPrefix, o.compression, o.resources)
	}
	return c, nil
}

// Relation returns the relation the cache was built for.
func (c *Cache) Relation() *model.Relation { return c.relation }

// Statistics returns the column statistics snapshot.
func (c *Cache) Statistics() Statistics { return c.stats }

// Size returns the number of cached PLIs, single columns included.
func (c *Cache) Size() int { return c.index.Len() }

// Get returns the cached PLI of exactly v.
func (c *Cache) Get(v model.Vertical) (*pli.PLI, bool) { return c.index.Get(v) }

// SubsetEntries returns every cached PLI whose vertical is a subset of v.
func (c *Cache) SubsetEntries(v model.Vertical) []verticalmap.Entry[*pli.PLI] {
	return c.index.SubsetEntries(v)
}

// GetOrCreateFor returns the PLI of v, composing it from cached subsets when
// it is not cached itself.
func (c *Cache) GetOrCreateFor(ctx context.Context, v model.Vertical) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.opts.logger
	if p, ok := c.index.Get(v); ok {
		p.IncFreq()
		c.opts.metrics.RecordPLIRequest(true)
		log.Debug("pli served from cache", "vertical", v)
		return Handle{pli: p, borrowed: true}, nil
	}

	if c.spill.contains(v) {
		p, n, err := c.spill.restore(ctx, v)
		c.opts.metrics.RecordRestore(n, err)
		if err == nil {
			p.IncFreq()
			c.opts.metrics.RecordPLIRequest(true)
			log.Debug("pli restored from spill store", "vertical", v, "bytes", n)
			return c.admit(ctx, v, p), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Handle{}, ctxErr
		}
		log.Warn("restoring spilled pli failed", "vertical", v, "error", err)
	}
	c.opts.metrics.RecordPLIRequest(false)

	operands, err := c.selectOperands(v)
	if err != nil {
		return Handle{}, err
	}

	start := time.Now()
	probeAll := len(operands) >= c.opts.naryIntersectionSize
	var h Handle
	if probeAll {
		base := operands[0]
		p := base.pli.ProbeAll(v.Without(base.vertical).Indices(), c.relation)
		h = c.cachingProcess(ctx, v, p)
	} else {
		current := operands[0].vertical
		h = Handle{pli: operands[0].pli, borrowed: true}
		for _, op := range operands[1:] {
			current = current.Union(op.vertical)
			h = c.cachingProcess(ctx, current, h.pli.Intersect(op.pli))
		}
	}
	c.opts.metrics.RecordComposition(len(operands), probeAll, time.Since(start))
	log.Debug("pli composed",
		"vertical", v,
		"operands", len(operands),
		"saved_intersections", v.Arity()-len(operands),
		"probe_all", probeAll,
		"cached", h.borrowed,
	)
	return h, nil
}

// Close deletes spilled PLIs and returns the memory of cached compositions
// to the resource controller. The cache must not be used afterwards.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.index.EntrySet() {
		if e.Key.Arity() >= 2 {
			c.index.Remove(e.Key)
			c.opts.resources.Release(e.Value.MemoryBytes())
		}
	}
	return c.spill.clear(ctx)
}

type operand struct {
	vertical   model.Vertical
	pli        *pli.PLI
	addedArity int
}

// selectOperands picks the smallest cached subset first and then greedily the
// subsets adding the most uncovered columns. Columns still uncovered
// contribute their single-column PLI. Operands are ordered by ascending size.
func (c *Cache) selectOperands(v model.Vertical) ([]operand, error) {
	entries := c.index.SubsetEntries(v)
	ranks := make([]operand, 0, len(entries))
	smallest := -1
	for i, e := range entries {
		r := operand{vertical: e.Key, pli: e.Value, addedArity: e.Key.Arity()}
		ranks = append(ranks, r)
		if smallest < 0 || r.pli.Size() < ranks[smallest].pli.Size() ||
			(r.pli.Size() == ranks[smallest].pli.Size() && r.addedArity > ranks[smallest].addedArity) {
			smallest = i
		}
	}

	var operands []operand
	cover := c.relation.Schema().EmptyVertical()
	if smallest >= 0 {
		first := ranks[smallest]
		first.pli.IncFreq()
		operands = append(operands, first)
		cover = first.vertical

		for cover.Arity() < v.Arity() && len(ranks) > 0 {
			kept := ranks[:0]
			for _, r := range ranks {
				r.addedArity = r.vertical.Without(cover).Arity()
				if r.addedArity >= 2 {
					kept = append(kept, r)
				}
			}
			ranks = kept

			best := -1
			for i, r := range ranks {
				if best < 0 || r.addedArity > ranks[best].addedArity ||
					(r.addedArity == ranks[best].addedArity && r.pli.Size() < ranks[best].pli.Size()) {
					best = i
				}
			}
			if best >= 0 {
				ranks[best].pli.IncFreq()
				operands = append(operands, ranks[best])
				cover = cover.Union(ranks[best].vertical)
			}
		}
	}

	schema := c.relation.Schema()
	for _, col := range v.Without(cover).Indices() {
		p := c.relation.ColumnData(col).PLI()
		p.IncFreq()
		operands = append(operands, operand{vertical: schema.VerticalOf(col), pli: p, addedArity: 1})
	}
	if len(operands) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOperands, v)
	}

	slices.SortStableFunc(operands, func(a, b operand) int {
		return cmp.Compare(a.pli.Size(), b.pli.Size())
	})
	return operands, nil
}

// cachingProcess decides whether p, the PLI of v, is retained.
func (c *Cache) cachingProcess(ctx context.Context, v model.Vertical, p *pli.PLI) Handle {
	p.IncFreq()
	if !c.shouldCache(p) {
		return Handle{pli: p}
	}
	return c.admit(ctx, v, p)
}

func (c *Cache) shouldCache(p *pli.PLI) bool {
	value, s := c.opts.cachingValue, c.stats
	switch c.opts.cachingMethod {
	case CachingAll:
		return true
	case CachingCoin:
		return c.opts.rng.Float64() < value
	case CachingEntropy, CachingTrueUniquenessEntropy:
		return p.Entropy() >= value*s.MaximumEntropy
	case CachingMeanEntropyThreshold:
		return p.Entropy() >= s.MaximumEntropy
	case CachingHeuristicQ2:
		e := p.Entropy()
		return e >= s.MedianEntropy && e <= s.MaximumEntropy
	case CachingGini:
		return p.GiniImpurity() >= s.MaximumEntropy
	case CachingInvertedEntropy:
		return p.InvertedEntropy() >= s.MaximumEntropy
	default:
		return false
	}
}

// admit inserts p under the memory budget, evicting when the eviction method
// allows it. It falls back to an owned handle when p cannot be retained.
func (c *Cache) admit(ctx context.Context, v model.Vertical, p *pli.PLI) Handle {
	if existing, ok := c.index.Get(v); ok {
		return Handle{pli: existing, borrowed: true}
	}
	rc := c.opts.resources
	bytes := p.MemoryBytes()
	if err := rc.Reserve(bytes); err != nil {
		if !c.evict(ctx) {
			return Handle{pli: p}
		}
		if err := rc.Reserve(bytes); err != nil {
			c.opts.logger.Debug("memory budget exhausted, pli not cached", "vertical", v, "bytes", bytes)
			return Handle{pli: p}
		}
	}
	c.index.Put(v, p)
	return Handle{pli: p, borrowed: true}
}

// evict removes multi-column entries according to the eviction method and
// reports whether anything was removed.
func (c *Cache) evict(ctx context.Context) bool {
	canRemove := func(e verticalmap.Entry[*pli.PLI]) bool { return e.Key.Arity() >= 2 }

	var removed []verticalmap.Entry[*pli.PLI]
	switch c.opts.evictionMethod {
	case EvictionMedianUsage:
		removed = c.index.ShrinkMedian(func(e verticalmap.Entry[*pli.PLI]) float64 {
			return float64(e.Value.Freq())
		}, canRemove)
	case EvictionLeastUsed:
		removed = c.index.Shrink(0.5, func(a, b verticalmap.Entry[*pli.PLI]) bool {
			return a.Value.Freq() < b.Value.Freq()
		}, canRemove)
	case EvictionLowestEntropy:
		removed = c.index.Shrink(0.5, func(a, b verticalmap.Entry[*pli.PLI]) bool {
			return a.Value.Entropy() < b.Value.Entropy()
		}, canRemove)
	default:
		return false
	}
	if len(removed) == 0 {
		return false
	}

	var spilled int
	for _, e := range removed {
		c.opts.resources.Release(e.Value.MemoryBytes())
		if c.spill == nil {
			continue
		}
		n, err := c.spill.write(ctx, e.Key, e.Value)
		c.opts.metrics.RecordSpill(n, err)
		if err != nil {
			c.opts.logger.Warn("spilling pli failed", "vertical", e.Key, "error", err)
			continue
		}
		spilled++
	}
	c.opts.metrics.RecordEviction(len(removed))
	c.opts.logger.Info("evicted plis",
		"method", c.opts.evictionMethod,
		"removed", len(removed),
		"spilled", spilled,
		"remaining", c.index.Len(),
	)
	return true
}
