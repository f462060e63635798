package graphground

import (
	"context"
	"fmt"
	"time"
)

// GroundOptions tunes a single Ground call.
type GroundOptions struct {
	// Limit stops the search after this many groundings. 0 = all.
	Limit int
	// DistinctBindings forbids two variables from sharing a node. It is
	// also enabled by Options.DistinctBindings.
	DistinctBindings bool
}

// GroundResult holds the groundings found by Ground.
type GroundResult struct {
	Groundings []Grounding
	Duration   time.Duration
}

// Len returns the number of groundings.
func (r *GroundResult) Len() int { return len(r.Groundings) }

// Ground enumerates the groundings of pat in the database.
//
// Constant clauses are checked first; if one does not hold the result is
// empty. The rest of the pattern is handed to a Matcher with a collecting
// DefaultCallback. A context without deadline gets
// Options.DefaultQueryTimeout, more than Options.MaxGroundings groundings
// fail with ErrResultTooLarge, and a panic while grounding is returned as
// ErrQueryPanic.
func (db *DB) Ground(ctx context.Context, pat *Pattern, opts GroundOptions) (*GroundResult, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}
	ctx, cancel := db.gov.wrapContext(ctx)
	defer cancel()

	db.metrics.GroundQueries.Add(1)
	start := time.Now()

	res, err := safeExecuteResult(func() (*GroundResult, error) {
		return db.ground(ctx, pat, opts)
	})

	elapsed := time.Since(start)
	db.metrics.recordQueryDuration(elapsed)
	if err != nil {
		db.metrics.QueryErrors.Add(1)
		db.log.Error("ground failed", "pattern", clip(pat.String(), slowLogMessageMax), "error", err)
		return nil, err
	}
	res.Duration = elapsed
	db.slowQueryCheck(pat, elapsed, res.Len())
	return res, nil
}

// Exists reports whether pat has at least one grounding.
func (db *DB) Exists(ctx context.Context, pat *Pattern) (bool, error) {
	res, err := db.Ground(ctx, pat, GroundOptions{Limit: 1})
	if err != nil {
		return false, err
	}
	return res.Len() > 0, nil
}

func (db *DB) ground(ctx context.Context, pat *Pattern, opts GroundOptions) (*GroundResult, error) {
	res := &GroundResult{}

	ok, err := constantsHold(db, pat)
	if err != nil {
		return nil, err
	}
	if !ok {
		db.log.Debug("constant clause does not hold", "pattern", clip(pat.String(), slowLogMessageMax))
		return res, nil
	}

	var capErr error
	cb := NewDefaultCallback(db, db.log, func(g Grounding) bool {
		res.Groundings = append(res.Groundings, g)
		if err := db.gov.checkCount(len(res.Groundings)); err != nil {
			capErr = err
			return true
		}
		return opts.Limit > 0 && len(res.Groundings) >= opts.Limit
	})
	cb.DistinctBindings = opts.DistinctBindings || db.opts.DistinctBindings

	m := NewMatcher(db, WithTracer(db.tracer), WithMetrics(db.metrics))
	if _, err := m.Satisfy(ctx, pat, cb); err != nil {
		return nil, fmt.Errorf("graphground: ground: %w", err)
	}
	if capErr != nil {
		return nil, capErr
	}
	if err := cb.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// constantsHold reports whether every constant clause of pat has an edge
// in g.
func constantsHold(g GraphReader, pat *Pattern) (bool, error) {
	for _, c := range pat.Constants() {
		present, err := clausePresent(g, c, nil)
		if err != nil {
			return false, err
		}
		if !present {
			return false, nil
		}
	}
	return true, nil
}
