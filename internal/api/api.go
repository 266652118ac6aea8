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

package api

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/Finnhub-Stock-API/finnhub-go"
	"github.com/antihax/optional"
	"github.com/cenkalti/backoff/v4"
)

type Symbol string
type Resolution string

type BarsRequest struct {
	Symbol
	Resolution
	From time.Time // Earlier Date
	To   time.Time // Later Date
}

type BarsResponse struct {
	Request  BarsRequest
	Response finnhub.StockCandles
}

// Empty reports whether the provider returned zero bars. The provider signals
// this either with an explicit "no_data" status or an empty series; neither is
// an error.
func (r BarsResponse) Empty() bool {
	return r.Response.S == "no_data" || len(r.Response.T) == 0
}

// FetchError classifies a provider failure once, at the boundary where the
// raw HTTP response is seen. Transient failures (rate limiting, server-side
// or network trouble) are retried with backoff; everything else is permanent.
type FetchError struct {
	Symbol    Symbol
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transient fetch error for %q: %v", e.Symbol, e.Err)
	}
	return fmt.Sprintf("permanent fetch error for %q: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a FetchError that may succeed on retry.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

// RequestBars requests daily bars for one symbol. Each attempt waits for the
// pacing ticker first, then runs under bo with bon notified before every
// retry sleep. When the retry budget is exhausted the last transient error is
// surfaced as permanent.
func RequestBars(ctx context.Context, client *finnhub.DefaultApiService, pace *time.Ticker, bo backoff.BackOff, bon backoff.Notify, req BarsRequest) (result BarsResponse, err error) {
	err = backoff.RetryNotify(func() error {
		select {
		case <-ctx.Done():
			return backoff.Permanent(fmt.Errorf("aborting bars request %q: %w", req.Symbol, ctx.Err()))
		case <-pace.C:
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			candles, httpResp, err := client.StockCandles(ctx, string(req.Symbol), string(req.Resolution), req.From.Unix(), req.To.Unix(), &finnhub.StockCandlesOpts{Adjusted: optional.NewString("true")})
			if err != nil {
				return classify(req.Symbol, fmt.Sprintf("error while requesting bars for %q", req.Symbol), httpResp, err)
			}

			result = BarsResponse{Request: req, Response: candles}
			return nil
		}
	}, bo, bon)

	if IsTransient(err) {
		err = &FetchError{Symbol: req.Symbol, Err: fmt.Errorf("retry budget exhausted: %w", err)}
	}
	return
}

func classify(symbol Symbol, msg string, resp *http.Response, err error) error {
	switch {
	case resp == nil:
		// no response at all, assume a retriable network condition
		return &FetchError{Symbol: symbol, Transient: true, Err: fmt.Errorf("%s: %w", msg, err)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &FetchError{Symbol: symbol, Transient: true, Err: fmt.Errorf("%s: rate limited: %w", msg, err)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &FetchError{Symbol: symbol, Transient: true, Err: fmt.Errorf("%s: status %d: %w", msg, resp.StatusCode, err)}
	default:
		if resp.Body != nil {
			defer resp.Body.Close()
			if body, readErr := ioutil.ReadAll(resp.Body); readErr == nil {
				msg = fmt.Sprintf("%s (%s)", msg, body)
			}
		}
		return backoff.Permanent(&FetchError{Symbol: symbol, Err: fmt.Errorf("%s: %w", msg, err)})
	}
}
