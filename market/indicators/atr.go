package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/mtsim/market"
)

// ATR is a streaming Average True Range indicator using Wilder's smoothing.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prev      market.Candle
	hasPrev   bool
}

func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

// Warmup needs period+1 candles because TR requires a previous close.
func (a *ATR) Warmup() int { return a.period + 1 }

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.hasPrev = false
}

func (a *ATR) Update(c market.Candle) {
	if !a.hasPrev {
		a.prev = c
		a.hasPrev = true
		return
	}
	tr := trueRange(c, a.prev)
	a.prev = c
	a.count++

	switch {
	case a.count < a.period:
		a.warmupSum += tr
	case a.count == a.period:
		a.warmupSum += tr
		a.atr = a.warmupSum / float64(a.period)
	default:
		a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
	}
}

func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Value() float64 { return a.atr }

func trueRange(c, prev market.Candle) float64 {
	hl := c.High - c.Low
	hc := math.Abs(c.High - prev.Close)
	lc := math.Abs(c.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// LogReturn emits the log return of consecutive closes.
type LogReturn struct {
	prevClose float64
	value     float64
	count     int
}

func NewLogReturn() *LogReturn { return &LogReturn{} }

func (l *LogReturn) Name() string { return "LOGRET" }

func (l *LogReturn) Warmup() int { return 2 }

func (l *LogReturn) Reset() {
	l.prevClose = 0
	l.value = 0
	l.count = 0
}

func (l *LogReturn) Update(c market.Candle) {
	l.count++
	if l.count > 1 && l.prevClose > 0 && c.Close > 0 {
		l.value = math.Log(c.Close / l.prevClose)
	}
	l.prevClose = c.Close
}

func (l *LogReturn) Ready() bool { return l.count >= 2 }

func (l *LogReturn) Value() float64 { return l.value }
