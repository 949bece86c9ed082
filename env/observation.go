package env

import (
	"github.com/rustyeddy/mtsim/sim"
)

// ObservationMode selects the observation representation, fixed at
// construction.
type ObservationMode int

const (
	// ObservationStructured: account scalars + windowed feature matrix +
	// per-symbol orders tensor.
	ObservationStructured ObservationMode = iota

	// ObservationFlattened: the feature matrix concatenated column-wise with a
	// rolling buffer of flattened orders+account rows, most recent row first.
	ObservationFlattened
)

// Observation is what Step and Reset hand back to the caller. In structured
// mode Balance..FreeMargin, Features and Orders are set; in flattened mode
// only Flat is.
type Observation struct {
	Balance    float64
	Equity     float64
	Margin     float64
	FreeMargin float64

	// Features is the window-size x feature-dim slice of the signal table.
	Features [][]float64

	// Orders is indexed [symbol][order slot][detail]; unset slots are zero.
	Orders [][][]float64

	// Flat is window-size rows of features ++ rolling buffer columns.
	Flat [][]float64
}

// rollingBuffer is a fixed-length ring of observation rows ordered most
// recent first. Pushing overwrites the oldest row; length never changes.
type rollingBuffer struct {
	rows [][]float64
	head int
}

func newRollingBuffer(length, width int) *rollingBuffer {
	rows := make([][]float64, length)
	for i := range rows {
		rows[i] = make([]float64, width)
	}
	return &rollingBuffer{rows: rows}
}

func (b *rollingBuffer) push(row []float64) {
	b.head = (b.head - 1 + len(b.rows)) % len(b.rows)
	b.rows[b.head] = row
}

// row returns the i-th most recent row; row(0) is the newest.
func (b *rollingBuffer) row(i int) []float64 {
	return b.rows[(b.head+i)%len(b.rows)]
}

func (b *rollingBuffer) len() int { return len(b.rows) }

// orderDetail encodes one open order as its observation row. Normalized,
// profit becomes return on notional and entry price a directional relative
// deviation from the current close.
func (e *Env) orderDetail(o *sim.Order) []float64 {
	entryPrice := o.EntryPrice
	volume := o.Volume
	profit := o.Profit

	if e.cfg.NormalizeObservation && o.EntryPrice != 0 && o.Volume != 0 {
		if bar, err := e.sim.PriceAt(o.Symbol, e.sim.CurrentTime()); err == nil {
			profit = profit / (o.EntryPrice * o.Volume)
			if o.Side == sim.Buy {
				entryPrice = bar.Close/o.EntryPrice - 1
			} else {
				entryPrice = o.EntryPrice/bar.Close - 1
			}
		}
	}

	if e.cfg.OrderDetailCount == 3 {
		return []float64{entryPrice, volume, profit}
	}
	return []float64{volume, profit}
}

// ordersTensor builds the [symbol][slot][detail] tensor, zero-filling unused
// slots.
func (e *Env) ordersTensor() [][][]float64 {
	out := make([][][]float64, len(e.cfg.TradingSymbols))
	for i, symbol := range e.cfg.TradingSymbols {
		out[i] = make([][]float64, e.cfg.SymbolMaxOrders)
		orders := e.sim.SymbolOrders(symbol)
		for j := range out[i] {
			if j < len(orders) {
				out[i][j] = e.orderDetail(orders[j])
			} else {
				out[i][j] = make([]float64, e.cfg.OrderDetailCount)
			}
		}
	}
	return out
}

// accountScalars returns balance, equity, margin and free margin, divided by
// the initial balance when normalization is on.
func (e *Env) accountScalars() (balance, equity, margin, freeMargin float64) {
	balance = e.sim.Balance()
	equity = e.sim.Equity()
	margin = e.sim.Margin()
	freeMargin = e.sim.FreeMargin()
	if e.cfg.NormalizeObservation {
		initial := e.sim.InitialBalance()
		balance /= initial
		equity /= initial
		margin /= initial
		freeMargin /= initial
	}
	return balance, equity, margin, freeMargin
}

// flatRow flattens the orders tensor and appends the four account scalars:
// one rolling-buffer row.
func (e *Env) flatRow() []float64 {
	row := make([]float64, 0, e.flatWidth())
	for _, symbolOrders := range e.ordersTensor() {
		for _, detail := range symbolOrders {
			row = append(row, detail...)
		}
	}
	balance, equity, margin, freeMargin := e.accountScalars()
	return append(row, balance, equity, margin, freeMargin)
}

func (e *Env) flatWidth() int {
	return len(e.cfg.TradingSymbols)*e.cfg.SymbolMaxOrders*e.cfg.OrderDetailCount + 4
}

// featureWindow slices the signal table for the current window: rows
// [tick-window+1, tick], oldest first.
func (e *Env) featureWindow() [][]float64 {
	lo := e.currentTick - e.cfg.WindowSize + 1
	return e.signalFeatures[lo : e.currentTick+1]
}

// observation assembles the representation the env was built with. In
// flattened mode the buffer reflects state up to the previous step; the
// current step's row is pushed after the observation is taken.
func (e *Env) observation() Observation {
	features := e.featureWindow()

	if e.cfg.ObservationMode == ObservationStructured {
		balance, equity, margin, freeMargin := e.accountScalars()
		return Observation{
			Balance:    balance,
			Equity:     equity,
			Margin:     margin,
			FreeMargin: freeMargin,
			Features:   features,
			Orders:     e.ordersTensor(),
		}
	}

	flat := make([][]float64, e.cfg.WindowSize)
	for i := range flat {
		row := make([]float64, 0, len(features[i])+e.flatWidth())
		row = append(row, features[i]...)
		row = append(row, e.buffer.row(i)...)
		flat[i] = row
	}
	return Observation{Flat: flat}
}
