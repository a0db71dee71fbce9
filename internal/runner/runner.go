// Package runner drives the collector over a list of states and persists
// each result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cfetariff/internal/tariff"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrStatesFailed is returned after a continue-on-error run in which at
// least one state failed.
var ErrStatesFailed = errors.New("runner: some states failed")

// Collector gathers the dataset of one state.
type Collector interface {
	Collect(ctx context.Context, t tariff.Target) (*tariff.Dataset, tariff.Stats, error)
}

// Writer persists a dataset and returns where it went.
type Writer interface {
	Write(ds *tariff.Dataset) (string, error)
}

// Written describes one persisted state.
type Written struct {
	State tariff.State
	Path  string
	Rows  int
	Stats tariff.Stats
}

// Failure describes one state that could not be collected or written.
type Failure struct {
	State tariff.State
	Err   error
}

// Summary lists results in input order.
type Summary struct {
	Written []Written
	Failed  []Failure
}

// Runner processes states one traversal at a time, or Workers at a time when
// Workers > 1, each traversal on its own session.
type Runner struct {
	Collector Collector
	Writer    Writer
	Log       zerolog.Logger

	// Template carries URL, year and month layout; state fields are filled
	// per state.
	Template tariff.Target

	Workers         int
	ContinueOnError bool
}

type result struct {
	written *Written
	failure *Failure
}

// Run collects and writes every state. Without ContinueOnError the first
// failure stops the run and is returned.
func (r *Runner) Run(ctx context.Context, states []tariff.State) (Summary, error) {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]result, len(states))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, state := range states {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// A previous state may have failed while this one waited for a slot.
			if gctx.Err() != nil {
				return nil
			}
			w, err := r.runState(gctx, state)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[i] = result{failure: &Failure{State: state, Err: err}}
				if r.ContinueOnError {
					r.Log.Error().Err(err).Str("state", state.Name).Msg("state failed, continuing")
					return nil
				}
				return fmt.Errorf("state %s: %w", state.Name, err)
			}
			results[i] = result{written: w}
			return nil
		})
	}
	err := g.Wait()

	var summary Summary
	for _, res := range results {
		switch {
		case res.written != nil:
			summary.Written = append(summary.Written, *res.written)
		case res.failure != nil:
			summary.Failed = append(summary.Failed, *res.failure)
		}
	}

	if err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if len(summary.Failed) > 0 {
		return summary, fmt.Errorf("%d of %d states: %w", len(summary.Failed), len(states), ErrStatesFailed)
	}
	return summary, nil
}

func (r *Runner) runState(ctx context.Context, state tariff.State) (*Written, error) {
	start := time.Now()

	t := r.Template
	t.StateID = state.ID
	t.StateName = state.Name

	ds, stats, err := r.Collector.Collect(ctx, t)
	if err != nil {
		return nil, err
	}

	path, err := r.Writer.Write(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to write dataset: %w", err)
	}

	r.Log.Info().
		Str("state", state.Name).
		Int("rows", len(ds.Rows)).
		Int("skipped", stats.TotalSkipped()).
		Str("skips", stats.SkipSummary()).
		Str("path", path).
		Dur("took", time.Since(start)).
		Msgf("Scraped data for state: %s", state.Name)

	return &Written{State: state, Path: path, Rows: len(ds.Rows), Stats: stats}, nil
}
