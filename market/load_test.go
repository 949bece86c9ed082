package market

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadSeriesBasic(t *testing.T) {
	t.Parallel()

	csv := `time,open,high,low,close,volume
2024-01-01 00:00:00,1.10,1.12,1.09,1.11,1000
2024-01-01 01:00:00,1.11,1.13,1.10,1.12,1100
`
	s, err := ReadSeries(strings.NewReader(csv), DefaultSymbolInfo("EURUSD", "EUR", "USD"))
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1.11, s.Candles[0].Close)
	assert.Equal(t, 1.13, s.Candles[1].High)
	assert.Equal(t, 1000.0, s.Candles[0].Volume)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), s.Times[1])
	assert.Equal(t, 0, s.FeatureDim())
}

func TestReadSeriesFeatureColumns(t *testing.T) {
	t.Parallel()

	csv := `time,open,high,low,close,volume,ema,atr
2024-01-01T00:00:00Z,1.10,1.12,1.09,1.11,1000,1.105,0.03
2024-01-01T01:00:00Z,1.11,1.13,1.10,1.12,1100,1.110,0.031
`
	s, err := ReadSeries(strings.NewReader(csv), DefaultSymbolInfo("EURUSD", "EUR", "USD"))
	assert.NoError(t, err)
	assert.Equal(t, 2, s.FeatureDim())
	assert.Equal(t, []float64{1.105, 0.03}, s.Features[0])
}

func TestReadSeriesUnixSeconds(t *testing.T) {
	t.Parallel()

	csv := "1704067200,1.10,1.12,1.09,1.11\n1704070800,1.11,1.13,1.10,1.12\n"
	s, err := ReadSeries(strings.NewReader(csv), DefaultSymbolInfo("EURUSD", "EUR", "USD"))
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), s.Times[0])
}

func TestReadSeriesSkipsBadLines(t *testing.T) {
	t.Parallel()

	csv := `2024-01-01 00:00:00,1.10,1.12,1.09,1.11
not a time,1,2,3,4
2024-01-01 01:00:00,1.11,oops,1.10,1.12
short,line
2024-01-01 02:00:00,1.12,1.14,1.11,1.13
`
	s, err := ReadSeries(strings.NewReader(csv), DefaultSymbolInfo("EURUSD", "EUR", "USD"))
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1.13, s.Candles[1].Close)
}

func TestReadSeriesEmptyFails(t *testing.T) {
	t.Parallel()

	_, err := ReadSeries(strings.NewReader(""), DefaultSymbolInfo("EURUSD", "EUR", "USD"))
	assert.Error(t, err)
}

func TestParseTimeLayouts(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-05", "2024-03-05 00:00:00", "2024-03-05T00:00:00Z"} {
		got, err := parseTime(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseTime("05/03/2024")
	assert.Error(t, err)
}
