package pyro

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/pyro/internal/telemetry"
	"github.com/hupe1980/pyro/model"
)

// FD is a minimal approximate functional dependency LHS -> RHS.
type FD struct {
	LHS   model.Vertical
	RHS   *model.Column
	Error float64
	Score float64
}

func (fd FD) String() string {
	return fmt.Sprintf("%s->%s", fd.LHS, fd.RHS)
}

// MarshalJSON encodes the dependency with column names.
func (fd FD) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		LHS   []string `json:"lhs"`
		RHS   string   `json:"rhs"`
		Error float64  `json:"error"`
		Score float64  `json:"score"`
	}{columnNames(fd.LHS), fd.RHS.Name(), fd.Error, fd.Score})
}

// UCC is a minimal approximate unique column combination.
type UCC struct {
	Columns model.Vertical
	Error   float64
	Score   float64
}

func (u UCC) String() string {
	return u.Columns.String()
}

// MarshalJSON encodes the key with column names.
func (u UCC) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Error   float64  `json:"error"`
		Score   float64  `json:"score"`
	}{columnNames(u.Columns), u.Error, u.Score})
}

func columnNames(v model.Vertical) []string {
	cols := v.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	return names
}

// Result is the outcome of a discovery run. FDs are ordered by right-hand
// side and then by left-hand side, UCCs by their columns.
type Result struct {
	RunID    string        `json:"run_id"`
	Relation string        `json:"relation"`
	FDs      []FD          `json:"fds"`
	UCCs     []UCC         `json:"uccs"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`

	SearchSpaces int   `json:"search_spaces"`
	CachedPLIs   int   `json:"cached_plis"`
	Samples      int   `json:"samples"`
	PeakMemory   int64 `json:"peak_memory"`
}

// resultCollector gathers registrations of all search spaces and forwards
// them to the caller's collector.
type resultCollector struct {
	ctx    context.Context
	logger *Logger
	next   Collector

	mu   sync.Mutex
	fds  []FD
	uccs []UCC
}

func newResultCollector(ctx context.Context, logger *Logger, next Collector) *resultCollector {
	return &resultCollector{ctx: ctx, logger: logger, next: next}
}

func (r *resultCollector) RegisterFD(lhs model.Vertical, rhs *model.Column, err, score float64) {
	fd := FD{LHS: lhs, RHS: rhs, Error: err, Score: score}
	r.mu.Lock()
	r.fds = append(r.fds, fd)
	r.mu.Unlock()

	r.logger.LogDependency(r.ctx, telemetry.KindFD, fd.String(), err)
	if r.next != nil {
		r.next.RegisterFD(lhs, rhs, err, score)
	}
}

func (r *resultCollector) RegisterUCC(key model.Vertical, err, score float64) {
	ucc := UCC{Columns: key, Error: err, Score: score}
	r.mu.Lock()
	r.uccs = append(r.uccs, ucc)
	r.mu.Unlock()

	r.logger.LogDependency(r.ctx, telemetry.KindUCC, ucc.String(), err)
	if r.next != nil {
		r.next.RegisterUCC(key, err, score)
	}
}

func (r *resultCollector) sorted() ([]FD, []UCC) {
	r.mu.Lock()
	fds := slices.Clone(r.fds)
	uccs := slices.Clone(r.uccs)
	r.mu.Unlock()

	slices.SortFunc(fds, func(a, b FD) int {
		if c := a.RHS.Index() - b.RHS.Index(); c != 0 {
			return c
		}
		return a.LHS.Compare(b.LHS)
	})
	slices.SortFunc(uccs, func(a, b UCC) int {
		return a.Columns.Compare(b.Columns)
	})
	return fds, uccs
}
