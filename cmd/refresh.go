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
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Finnhub-Stock-API/finnhub-go"
	"github.com/ajjensen13/gke"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ajjensen13/kabu/internal/api"
	"github.com/ajjensen13/kabu/internal/db"
	"github.com/ajjensen13/kabu/internal/refresh"
	"github.com/ajjensen13/kabu/internal/util"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh daily price history for every cataloged symbol",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		lg, cleanup := logger()
		defer cleanup()

		cfg, err := loadAppConfig()
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to load configuration: %w", err)))
		}

		tz, err := timezone()
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to load timezone: %w", err)))
		}

		cal, err := tradingCalendar()
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to build trading calendar: %w", err)))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ctx = util.WithLogger(ctx, lg)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			lg.Warningf("received %v, finishing in-flight symbols before shutting down", sig)
			cancel()
		}()

		pool, cleanupPool, err := openPool(ctx)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to open database connection pool: %w", err)))
		}
		defer cleanupPool()

		now := provideRunDate(cfg, tz)
		fetcher, err := barFetcher(lg, now)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to build fetch client: %w", err)))
		}

		summary, err := refresh.Run(ctx, refresh.Config{Workers: cfg.Workers, Now: time.Time(now)}, &pgStore{pool: pool}, fetcher, cal)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("refresh run failed: %w", err)))
		}

		perSymbol := time.Duration(0)
		if summary.Processed > 0 {
			perSymbol = summary.Elapsed / time.Duration(summary.Processed)
		}

		lg.Default(gke.NewMsgData(fmt.Sprintf("refresh %s: %d/%d symbols processed (%d succeeded, %d no data, %d skipped, %d failed) in %v (%v/symbol)",
			runState(summary.Cancelled), summary.Processed, summary.Total, summary.Succeeded, summary.NoData, summary.Skipped, summary.Failed,
			summary.Elapsed.Round(time.Second), perSymbol.Round(time.Millisecond)), summary))

		if len(summary.Failures) > 0 {
			lg.Warningf("failed symbols: %v", summary.Failures)
		}

		if summary.Cancelled {
			os.Exit(1)
		}
	},
}

func runState(cancelled bool) string {
	if cancelled {
		return "cancelled"
	}
	return "completed"
}

// pgStore adapts the db package to the coordinator's store interface.
type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) Symbols(ctx context.Context) ([]string, error) {
	return db.Symbols(ctx, s.pool)
}

func (s *pgStore) Watermark(ctx context.Context, symbol string) (time.Time, error) {
	return db.Watermark(ctx, s.pool, symbol)
}

func (s *pgStore) SaveBars(ctx context.Context, symbol string, bars []db.Bar) error {
	return db.SaveBars(ctx, s.pool, symbol, bars)
}

// finnhubFetcher adapts the provider client to the coordinator's fetcher
// interface. A fresh pacing ticker and retry budget are created per job; the
// ticker makes each worker wait out the pacing interval before every attempt.
type finnhubFetcher struct {
	lg     gke.Logger
	client *finnhub.DefaultApiService
	apiKey string
	cfg    *appConfig
	tz     *time.Location
	now    time.Time
}

func (f *finnhubFetcher) Fetch(ctx context.Context, job *refresh.Job) ([]db.Bar, error) {
	ctx = context.WithValue(ctx, finnhub.ContextAPIKey, finnhub.APIKey{Key: f.apiKey})

	var from time.Time
	if job.Watermark.IsZero() {
		// never ingested: full historical backfill
		from = f.now.AddDate(-f.cfg.LookbackYears, 0, 0)
	} else {
		from = job.Watermark.AddDate(0, 0, 1)
	}

	pace := time.NewTicker(time.Duration(f.cfg.RequestIntervalMs) * time.Millisecond)
	defer pace.Stop()

	bon := func(err error, duration time.Duration) {
		job.Retries++
		if api.IsTransient(err) {
			f.lg.Info(gke.NewFmtMsgData("request for %q hit a transient failure, waiting %v before retrying: %v", job.Symbol, duration, err))
			return
		}
		f.lg.Warning(gke.NewFmtMsgData("request for %q failed, waiting %v before retrying: %v", job.Symbol, duration, err))
	}

	resp, err := api.RequestBars(ctx, f.client, pace, newBackOff(f.cfg), bon, api.BarsRequest{
		Symbol:     api.Symbol(job.Symbol),
		Resolution: api.Resolution(f.cfg.Resolution),
		From:       from,
		To:         f.now,
	})
	if err != nil {
		return nil, err
	}
	if resp.Empty() {
		return nil, nil
	}

	return db.TransformBars(resp.Request.Symbol, resp.Response, f.tz)
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
