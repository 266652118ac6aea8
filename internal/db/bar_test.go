package db

import (
	"testing"
	"time"

	"github.com/Finnhub-Stock-API/finnhub-go"
	"gotest.tools/v3/assert"
)

var jst = time.FixedZone("JST", 9*60*60)

func TestTransformBars(t *testing.T) {
	in := finnhub.StockCandles{
		S: "ok",
		T: []int64{1610323200, 1610409600},
		O: []float32{100, 102},
		H: []float32{105, 106},
		L: []float32{99, 101},
		C: []float32{104, 105},
		V: []float32{1000, 2000},
	}

	out, err := TransformBars("7203.T", in, jst)
	assert.NilError(t, err)
	assert.Equal(t, len(out), 2)

	assert.Equal(t, out[0].Symbol.String, "7203.T")
	assert.Equal(t, out[0].Date.Time.Unix(), int64(1610323200))
	assert.Equal(t, out[0].Date.Time.Location(), jst)
	assert.Equal(t, out[0].Open.Float, float64(float32(100)))
	assert.Equal(t, out[1].Volume.Int, int64(2000))
}

func TestTransformBarsEmpty(t *testing.T) {
	out, err := TransformBars("7203.T", finnhub.StockCandles{S: "no_data"}, jst)
	assert.NilError(t, err)
	assert.Equal(t, len(out), 0)
}

func TestTransformBarsRejectsRaggedSeries(t *testing.T) {
	in := finnhub.StockCandles{
		T: []int64{1610323200, 1610409600},
		O: []float32{100},
		H: []float32{105, 106},
		L: []float32{99, 101},
		C: []float32{104, 105},
		V: []float32{1000, 2000},
	}

	_, err := TransformBars("7203.T", in, jst)
	assert.ErrorContains(t, err, "len(open)")
}

func TestLatestTimestamp(t *testing.T) {
	bars := make([]Bar, 3)
	_ = bars[0].Date.Set(time.Date(2021, time.January, 12, 0, 0, 0, 0, jst))
	_ = bars[1].Date.Set(time.Date(2021, time.January, 14, 0, 0, 0, 0, jst))
	_ = bars[2].Date.Set(time.Date(2021, time.January, 13, 0, 0, 0, 0, jst))

	got := LatestTimestamp(bars)
	assert.Assert(t, got.Equal(time.Date(2021, time.January, 14, 0, 0, 0, 0, jst)))
}

func TestLatestTimestampEmptyBatch(t *testing.T) {
	assert.Assert(t, LatestTimestamp(nil).IsZero())
}
