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

package db

import (
	"cloud.google.com/go/logging"
	"context"
	"fmt"
	"time"

	"github.com/Finnhub-Stock-API/finnhub-go"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ajjensen13/kabu/internal/api"
	"github.com/ajjensen13/kabu/internal/util"
)

type Bar struct {
	Symbol pgtype.Text
	Date   pgtype.Timestamptz
	Open   pgtype.Float8
	High   pgtype.Float8
	Low    pgtype.Float8
	Close  pgtype.Float8
	Volume pgtype.Int8
}

// TransformBars converts a provider candle series into bar rows, validating
// that the parallel slices line up.
func TransformBars(symbol api.Symbol, in finnhub.StockCandles, tz *time.Location) (out []Bar, err error) {
	l := len(in.T)
	switch {
	case l == 0:
		return nil, nil
	case len(in.O) != l:
		return nil, fmt.Errorf("len(open) = %d, len(timestamp) = %d for stock %q", len(in.O), l, symbol)
	case len(in.H) != l:
		return nil, fmt.Errorf("len(high) = %d, len(timestamp) = %d for stock %q", len(in.H), l, symbol)
	case len(in.L) != l:
		return nil, fmt.Errorf("len(low) = %d, len(timestamp) = %d for stock %q", len(in.L), l, symbol)
	case len(in.C) != l:
		return nil, fmt.Errorf("len(close) = %d, len(timestamp) = %d for stock %q", len(in.C), l, symbol)
	case len(in.V) != l:
		return nil, fmt.Errorf("len(volume) = %d, len(timestamp) = %d for stock %q", len(in.V), l, symbol)
	}

	out = make([]Bar, l)
	for ndx, ts := range in.T {
		_ = out[ndx].Symbol.Set(string(symbol))
		_ = out[ndx].Date.Set(time.Unix(ts, 0).In(tz))
		_ = out[ndx].Open.Set(float64(in.O[ndx]))
		_ = out[ndx].High.Set(float64(in.H[ndx]))
		_ = out[ndx].Low.Set(float64(in.L[ndx]))
		_ = out[ndx].Close.Set(float64(in.C[ndx]))
		_ = out[ndx].Volume.Set(int64(in.V[ndx]))
	}

	return out, nil
}

// LatestTimestamp returns the maximum bar date in the batch, or the zero time
// for an empty batch.
func LatestTimestamp(bars []Bar) (ret time.Time) {
	for _, bar := range bars {
		if bar.Date.Time.After(ret) {
			ret = bar.Date.Time
		}
	}
	return ret
}

// Symbols returns every symbol in the catalog, in stable order.
func Symbols(ctx context.Context, pool *pgxpool.Pool) (ret []string, err error) {
	rows, err := pool.Query(ctx, `SELECT symbol FROM stocks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		ret = append(ret, symbol)
	}

	return ret, rows.Err()
}

// Watermark returns the date of the most recent bar known to be persisted for
// symbol, or the zero time if the symbol has never been ingested.
func Watermark(ctx context.Context, pool *pgxpool.Pool, symbol string) (time.Time, error) {
	var lastFetched pgtype.Timestamptz
	err := pool.QueryRow(ctx, `SELECT last_fetched FROM stocks WHERE symbol = $1`, symbol).Scan(&lastFetched)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query watermark for %q: %w", symbol, err)
	}

	if lastFetched.Status != pgtype.Present {
		return time.Time{}, nil
	}
	return lastFetched.Time, nil
}

// SaveBars persists the batch and advances the symbol's watermark in a single
// transaction. Bars that already exist are left untouched, which makes the
// writer safe to re-run after a partial failure. An empty batch is a no-op.
func SaveBars(ctx context.Context, pool *pgxpool.Pool, symbol string, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}

	ctx = util.WithLoggerValue(ctx, "action", "load")
	latest := LatestTimestamp(bars)

	return util.RunTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		inserted := 0
		for _, bar := range bars {
			r, err := tx.Exec(ctx, `
				INSERT INTO stock_prices
					(symbol, date, open, high, low, close, volume)
				VALUES
					($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT
					(symbol, date)
				DO NOTHING`, bar.Symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
			if err != nil {
				return fmt.Errorf("failed to load bar %q @ %v: %w", symbol, bar.Date.Time, err)
			}
			inserted += int(r.RowsAffected())
		}

		// The guard keeps the watermark monotonic even if an older batch is
		// replayed after a newer one already landed.
		_, err := tx.Exec(ctx, `UPDATE stocks SET last_fetched = $2 WHERE symbol = $1 AND (last_fetched IS NULL OR last_fetched < $2)`, symbol, latest)
		if err != nil {
			return fmt.Errorf("failed to advance watermark for %q: %w", symbol, err)
		}

		util.Logf(ctx, logging.Debug, "loaded %d of %d bars for %q, watermark %v", inserted, len(bars), symbol, latest)
		return nil
	})
}

// Bars returns persisted bars for consumers such as indicator calculation and
// charting. Read-only.
func Bars(ctx context.Context, pool *pgxpool.Pool, symbol string, from, to time.Time) (ret []Bar, err error) {
	rows, err := pool.Query(ctx, `SELECT symbol, date, open, high, low, close, volume FROM stock_prices WHERE symbol = $1 AND date BETWEEN $2 AND $3 ORDER BY date`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %q: %w", symbol, err)
	}
	defer rows.Close()

	for rows.Next() {
		var bar Bar
		err := rows.Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar for %q: %w", symbol, err)
		}
		ret = append(ret, bar)
	}

	return ret, rows.Err()
}
