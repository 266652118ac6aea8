package api

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gotest.tools/v3/assert"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: ioutil.NopCloser(bytes.NewBufferString(body))}
}

func TestClassifyRateLimit(t *testing.T) {
	err := classify("7203.T", "boom", response(http.StatusTooManyRequests, ""), errors.New("429"))

	var fe *FetchError
	assert.Assert(t, errors.As(err, &fe))
	assert.Equal(t, fe.Transient, true)
	assert.Equal(t, fe.Symbol, Symbol("7203.T"))
	assert.Assert(t, IsTransient(err))
}

func TestClassifyServerError(t *testing.T) {
	err := classify("7203.T", "boom", response(http.StatusBadGateway, ""), errors.New("502"))
	assert.Assert(t, IsTransient(err))
}

func TestClassifyNoResponse(t *testing.T) {
	err := classify("7203.T", "boom", nil, errors.New("connection reset"))
	assert.Assert(t, IsTransient(err))
}

func TestClassifyBadSymbolIsPermanent(t *testing.T) {
	err := classify("BOGUS", "boom", response(http.StatusBadRequest, "unknown symbol"), errors.New("400"))

	var permanent *backoff.PermanentError
	assert.Assert(t, errors.As(err, &permanent))
	assert.Assert(t, !IsTransient(permanent.Err))

	var fe *FetchError
	assert.Assert(t, errors.As(permanent.Err, &fe))
	assert.Equal(t, fe.Transient, false)
}

func TestPermanentErrorStopsRetryImmediately(t *testing.T) {
	calls := 0
	err := backoff.RetryNotify(func() error {
		calls++
		return classify("BOGUS", "boom", response(http.StatusNotFound, ""), errors.New("404"))
	}, backoff.WithMaxRetries(newTestBackOff(), 3), nil)

	assert.Assert(t, err != nil)
	assert.Equal(t, calls, 1)
}

func TestTransientErrorRetriesUntilBudgetExhausted(t *testing.T) {
	const maxRetries = 3

	calls := 0
	err := backoff.RetryNotify(func() error {
		calls++
		return classify("7203.T", "boom", response(http.StatusTooManyRequests, ""), errors.New("429"))
	}, backoff.WithMaxRetries(newTestBackOff(), maxRetries), nil)

	assert.Assert(t, IsTransient(err))
	assert.Equal(t, calls, maxRetries+1)
}

func TestTransientErrorEventuallySucceeds(t *testing.T) {
	calls := 0
	err := backoff.RetryNotify(func() error {
		calls++
		if calls < 3 {
			return classify("7203.T", "boom", response(http.StatusTooManyRequests, ""), errors.New("429"))
		}
		return nil
	}, backoff.WithMaxRetries(newTestBackOff(), 3), nil)

	assert.NilError(t, err)
	assert.Equal(t, calls, 3)
}

func TestBackoffDelaysAreNonDecreasingUpToCap(t *testing.T) {
	bo := newTestBackOff()

	var prev time.Duration
	for i := 0; i < 10; i++ {
		next := bo.NextBackOff()
		assert.Assert(t, next != backoff.Stop, fmt.Sprintf("backoff stopped at attempt %d", i))
		assert.Assert(t, next >= prev, fmt.Sprintf("attempt %d: %v < %v", i, next, prev))
		assert.Assert(t, next <= 8*time.Second, fmt.Sprintf("attempt %d: %v exceeds cap", i, next))
		prev = next
	}
}

func TestEmptyResponses(t *testing.T) {
	var r BarsResponse
	assert.Assert(t, r.Empty())

	r.Response.S = "no_data"
	assert.Assert(t, r.Empty())

	r.Response.S = "ok"
	r.Response.T = []int64{1610000000}
	assert.Assert(t, !r.Empty())
}

// newTestBackOff mirrors the refresh command's backoff shape with jitter and
// sleeps removed so tests are deterministic and fast.
func newTestBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Millisecond
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 8 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}
