/*
Copyright © 2021 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package refresh drives the per-symbol gate -> fetch -> write sequence over
// a bounded worker pool. One symbol's failure never aborts the run; the run
// ends early only on cancellation.
package refresh

import (
	"cloud.google.com/go/logging"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajjensen13/kabu/internal/db"
	"github.com/ajjensen13/kabu/internal/util"
)

type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSucceeded
	OutcomeNoData
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeNoData:
		return "no_data"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is the in-memory task for one symbol. It is created when a worker
// dequeues the symbol and discarded after its outcome is recorded.
type Job struct {
	Symbol    string
	Watermark time.Time
	Retries   int
	Bars      int
	Outcome   Outcome
	Stage     string
	Err       error
}

// Store is the subset of the persistent store the coordinator needs: symbol
// enumeration, per-symbol watermark reads, and the atomic bar/watermark
// writer.
type Store interface {
	Symbols(ctx context.Context) ([]string, error)
	Watermark(ctx context.Context, symbol string) (time.Time, error)
	SaveBars(ctx context.Context, symbol string, bars []db.Bar) error
}

// Fetcher retrieves bars for one job, updating job.Retries as it goes. A nil
// bar slice with a nil error means the provider had no new data.
type Fetcher interface {
	Fetch(ctx context.Context, job *Job) ([]db.Bar, error)
}

// Gate reports whether a trading day exists in (last, today].
type Gate interface {
	TradingDayBetween(last, today time.Time) bool
}

type Config struct {
	Workers int
	Now     time.Time
}

type Summary struct {
	Total     int
	Processed int
	Succeeded int
	NoData    int
	Skipped   int
	Failed    int
	Cancelled bool
	Elapsed   time.Duration
	Failures  []string
}

// Run enumerates the symbol catalog once, then dispatches it to cfg.Workers
// workers. Cancellation of ctx is observed between symbols only: in-flight
// symbols finish, queued symbols are abandoned. The returned error is non-nil
// only when the catalog itself cannot be enumerated.
func Run(ctx context.Context, cfg Config, store Store, fetcher Fetcher, gate Gate) (Summary, error) {
	symbols, err := store.Symbols(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to enumerate symbols: %w", err)
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	util.Logf(ctx, logging.Info, "refreshing %d symbols with %d workers", len(symbols), workers)

	prog := newProgress(len(symbols))
	queue := make(chan string)

	go func() {
		defer close(queue)
		for _, symbol := range symbols {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case queue <- symbol:
			}
		}
	}()

	var grp errgroup.Group
	for i := 0; i < workers; i++ {
		grp.Go(func() error {
			for {
				// cancellation is observed here, between symbols, never
				// mid-fetch or mid-write
				if ctx.Err() != nil {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case symbol, ok := <-queue:
					if !ok {
						return nil
					}
					prog.record(ctx, process(ctx, now, symbol, store, fetcher, gate))
				}
			}
		})
	}
	_ = grp.Wait()

	ret := prog.summary()
	ret.Total = len(symbols)
	ret.Cancelled = ctx.Err() != nil
	return ret, nil
}

// process runs the gate -> fetch -> write sequence for one symbol. All errors
// are contained here and reported through the job outcome.
func process(ctx context.Context, now time.Time, symbol string, store Store, fetcher Fetcher, gate Gate) *Job {
	job := &Job{Symbol: symbol}
	ctx = util.WithLoggerValue(ctx, "symbol", symbol)

	watermark, err := store.Watermark(ctx, symbol)
	if err != nil {
		return fail(ctx, job, "watermark", err)
	}
	job.Watermark = watermark

	if !gate.TradingDayBetween(watermark, now) {
		job.Outcome = OutcomeSkipped
		util.Logf(ctx, logging.Debug, "skipping %q: no trading day since %v", symbol, watermark)
		return job
	}

	bars, err := fetcher.Fetch(ctx, job)
	if err != nil {
		return fail(ctx, job, "fetch", err)
	}
	if len(bars) == 0 {
		job.Outcome = OutcomeNoData
		util.Logf(ctx, logging.Info, "no new bars for %q since %v", symbol, watermark)
		return job
	}

	if err := store.SaveBars(ctx, symbol, bars); err != nil {
		return fail(ctx, job, "write", err)
	}

	job.Bars = len(bars)
	job.Outcome = OutcomeSucceeded
	util.Logf(ctx, logging.Debug, "ingested %d bars for %q", len(bars), symbol)
	return job
}

func fail(ctx context.Context, job *Job, stage string, err error) *Job {
	job.Outcome = OutcomeFailed
	job.Stage = stage
	job.Err = err

	ctx = util.WithLoggerValue(ctx, "stage", stage)
	ctx = util.WithLoggerValue(ctx, "retries", job.Retries)
	ctx = util.WithLoggerValue(ctx, "watermark", job.Watermark)
	util.Logf(ctx, logging.Error, "failed to refresh %q during %s (retries %d, watermark %v): %v", job.Symbol, stage, job.Retries, job.Watermark, err)
	return job
}
