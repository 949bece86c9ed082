package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testSeries(name string, closes ...float64) *Series {
	s := &Series{Info: DefaultSymbolInfo(name, "EUR", "USD")}
	for i, c := range closes {
		ts := base.Add(time.Duration(i) * time.Hour)
		s.Times = append(s.Times, ts)
		s.Candles = append(s.Candles, Candle{Open: c, High: c, Low: c, Close: c, Time: ts})
	}
	return s
}

func TestSeriesAtForwardFill(t *testing.T) {
	t.Parallel()

	s := testSeries("EURUSD", 1.0, 1.1, 1.2)

	c, err := s.At(base)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, c.Close)

	// between bars the previous bar holds
	c, err = s.At(base.Add(90 * time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 1.1, c.Close)

	// after the last bar the last bar holds
	c, err = s.At(base.Add(48 * time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 1.2, c.Close)
}

func TestSeriesAtBeforeFirstBar(t *testing.T) {
	t.Parallel()

	s := testSeries("EURUSD", 1.0)
	_, err := s.At(base.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestDatasetAddValidates(t *testing.T) {
	t.Parallel()

	d := NewDataset()
	assert.NoError(t, d.Add(testSeries("EURUSD", 1.0, 1.1)))

	// duplicate symbol
	assert.Error(t, d.Add(testSeries("EURUSD", 1.0)))

	// empty series
	assert.Error(t, d.Add(&Series{Info: DefaultSymbolInfo("GBPUSD", "GBP", "USD")}))

	// times not strictly increasing
	bad := testSeries("USDJPY", 150, 151)
	bad.Times[1] = bad.Times[0]
	assert.Error(t, d.Add(bad))

	// misaligned feature rows
	misaligned := testSeries("USDCHF", 0.9, 0.91)
	misaligned.Features = [][]float64{{1}}
	assert.Error(t, d.Add(misaligned))
}

func TestDatasetSymbolsOrder(t *testing.T) {
	t.Parallel()

	d := NewDataset()
	assert.NoError(t, d.Add(testSeries("GBPUSD", 1.3)))
	assert.NoError(t, d.Add(testSeries("EURUSD", 1.1)))

	assert.Equal(t, []string{"GBPUSD", "EURUSD"}, d.Symbols())
	assert.Equal(t, 2, d.Len())

	info, ok := d.Info("EURUSD")
	assert.True(t, ok)
	assert.Equal(t, "EURUSD", info.Name)

	_, ok = d.Info("USDJPY")
	assert.False(t, ok)
	assert.Nil(t, d.Series("USDJPY"))

	_, err := d.PriceAt("USDJPY", base)
	assert.Error(t, err)
}

func TestFeatureDim(t *testing.T) {
	t.Parallel()

	s := testSeries("EURUSD", 1.0, 1.1)
	assert.Equal(t, 0, s.FeatureDim())

	s.Features = [][]float64{{1, 2}, {3, 4}}
	assert.Equal(t, 2, s.FeatureDim())
}

func TestDefaultSymbolInfo(t *testing.T) {
	t.Parallel()

	info := DefaultSymbolInfo("EURUSD", "EUR", "USD")
	assert.Equal(t, "EURUSD", info.Name)
	assert.Equal(t, 100_000.0, info.ContractSize)
	assert.Equal(t, 0.01, info.VolumeMin)
	assert.Equal(t, 1000.0, info.VolumeMax)
	assert.Equal(t, 0.01, info.VolumeStep)
}
