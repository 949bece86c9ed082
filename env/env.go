// Package env drives a discrete-time margin-trading episode: it decodes
// actions into order operations, evaluates stop/take/trailing triggers,
// advances the simulated clock, and encodes account state back into
// observations with an equity-delta reward.
package env

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/mtsim/sim"
)

// Config fixes the episode mechanics at construction.
type Config struct {
	TradingSymbols []string
	WindowSize     int

	// TimePoints is the episode time index. Defaults to the first trading
	// symbol's bar times.
	TimePoints []time.Time

	HoldThreshold  float64
	CloseThreshold float64

	// Fee is the flat per-symbol fee; FeeFunc overrides it when set.
	Fee     float64
	FeeFunc func(symbol string) float64
	FeeKind sim.FeeKind

	// SL/TP are the threshold values attached to every created order,
	// interpreted per SLTPKind. Empty SLTPKind disables both.
	SL       *float64
	TP       *float64
	SLTPKind sim.ThresholdKind

	// TrailingDistance enables trailing-stop maintenance when non-nil.
	TrailingDistance *float64

	SymbolMaxOrders int

	ActionMode           ActionMode
	DiscreteActionsCount int

	ObservationMode      ObservationMode
	NormalizeObservation bool
	OrderDetailCount     int

	VolumeBasis VolumeBasis

	// PrefetchWorkers bounds the price-prefetch pool; 0 means a small default.
	PrefetchWorkers int
}

// DefaultConfig mirrors the conventional episode parameters.
func DefaultConfig(symbols ...string) Config {
	return Config{
		TradingSymbols:       symbols,
		WindowSize:           10,
		HoldThreshold:        0.5,
		CloseThreshold:       0.5,
		Fee:                  0.0005,
		FeeKind:              sim.FeeFixed,
		SymbolMaxOrders:      1,
		DiscreteActionsCount: 3,
		NormalizeObservation: true,
		OrderDetailCount:     2,
	}
}

// Env is the episode state machine. It is strictly sequential: Reset before
// Step, no Step after termination without a Reset in between, and never
// concurrent calls on the same instance.
type Env struct {
	cfg  Config
	base *sim.Simulator

	decoder    actionDecoder
	fuzzyTerms []float64

	timePoints     []time.Time
	signalFeatures [][]float64
	prices         map[string][][]float64

	startTick int
	endTick   int

	// per-episode state, rebuilt by Reset
	sim         *sim.Simulator
	currentTick int
	done        bool
	history     []StepRecord
	buffer      *rollingBuffer
}

// New validates the configuration against the simulator's dataset and
// precomputes the signal-feature table and the price prefetch.
func New(base *sim.Simulator, cfg Config) (*Env, error) {
	if base == nil {
		return nil, errors.New("env: nil simulator")
	}
	data := base.Data()
	if data == nil || data.Len() == 0 {
		return nil, errors.New("env: no market data available")
	}
	if len(cfg.TradingSymbols) == 0 {
		return nil, errors.New("env: no trading symbols provided")
	}
	if cfg.HoldThreshold < 0 || cfg.HoldThreshold > 1 {
		return nil, fmt.Errorf("env: hold threshold %v outside [0, 1]", cfg.HoldThreshold)
	}
	if cfg.WindowSize < 1 {
		return nil, fmt.Errorf("env: window size %d must be positive", cfg.WindowSize)
	}
	for _, symbol := range cfg.TradingSymbols {
		if _, ok := data.Info(symbol); !ok {
			return nil, fmt.Errorf("env: symbol %q not found", symbol)
		}
		if err := base.CheckConversion(symbol); err != nil {
			return nil, fmt.Errorf("env: %w", err)
		}
	}

	if cfg.SymbolMaxOrders < 1 {
		cfg.SymbolMaxOrders = 1
	}
	if !base.Hedge() {
		// Without hedging the ledger nets to one order per symbol anyway.
		cfg.SymbolMaxOrders = 1
	}
	if cfg.OrderDetailCount == 0 {
		cfg.OrderDetailCount = 2
	}
	if cfg.OrderDetailCount != 2 && cfg.OrderDetailCount != 3 {
		return nil, fmt.Errorf("env: order detail count %d must be 2 or 3", cfg.OrderDetailCount)
	}
	if cfg.FeeKind == "" {
		cfg.FeeKind = sim.FeeFixed
	}
	if cfg.DiscreteActionsCount == 0 {
		cfg.DiscreteActionsCount = 3
	}

	if len(cfg.TimePoints) == 0 {
		first := data.Series(cfg.TradingSymbols[0])
		cfg.TimePoints = append([]time.Time(nil), first.Times...)
	}
	if len(cfg.TimePoints) <= cfg.WindowSize {
		return nil, fmt.Errorf("env: %d time points, need more than window size %d",
			len(cfg.TimePoints), cfg.WindowSize)
	}

	e := &Env{
		cfg:        cfg,
		base:       base,
		timePoints: cfg.TimePoints,
		startTick:  cfg.WindowSize - 1,
		endTick:    len(cfg.TimePoints) - 1,
	}

	terms, err := FuzzyTerms(cfg.DiscreteActionsCount)
	if err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	e.fuzzyTerms = terms

	switch cfg.ActionMode {
	case ActionContinuous:
		e.decoder = &continuousDecoder{
			symbols:       cfg.TradingSymbols,
			maxOrders:     cfg.SymbolMaxOrders,
			holdThreshold: cfg.HoldThreshold,
		}
	case ActionDiscrete:
		if len(cfg.TradingSymbols) != 1 || base.Hedge() {
			return nil, errors.New("env: discrete mode requires a single trading symbol and hedging off")
		}
		e.decoder = &discreteDecoder{
			symbols: cfg.TradingSymbols,
			terms:   terms,
			size:    e.discreteVolume,
		}
	case ActionStructured:
		e.decoder = &structuredDecoder{
			symbols:   cfg.TradingSymbols,
			maxOrders: cfg.SymbolMaxOrders,
		}
	default:
		return nil, fmt.Errorf("env: unknown action mode %d", cfg.ActionMode)
	}

	if err := e.buildSignalFeatures(); err != nil {
		return nil, err
	}
	if err := e.prefetchPrices(); err != nil {
		return nil, err
	}
	return e, nil
}

// buildSignalFeatures column-stacks the trading symbols' feature tables into
// one row per time point.
func (e *Env) buildSignalFeatures() error {
	data := e.base.Data()
	width := 0
	for _, symbol := range e.cfg.TradingSymbols {
		s := data.Series(symbol)
		if s.Features == nil {
			continue
		}
		if s.Len() != len(e.timePoints) {
			return fmt.Errorf("env: %s has %d feature rows for %d time points",
				symbol, s.Len(), len(e.timePoints))
		}
		width += s.FeatureDim()
	}

	rows := make([][]float64, len(e.timePoints))
	for i := range rows {
		row := make([]float64, 0, width)
		for _, symbol := range e.cfg.TradingSymbols {
			s := data.Series(symbol)
			if s.Features == nil {
				continue
			}
			row = append(row, s.Features[i]...)
		}
		rows[i] = row
	}
	e.signalFeatures = rows
	return nil
}

// Reset starts a fresh episode on an isolated clone of the base account,
// re-warms the rolling buffer with the pre-trade state, and appends the
// initial history record. Returns the first observation and its info.
func (e *Env) Reset() (Observation, StepRecord) {
	e.done = false
	e.currentTick = e.startTick
	e.sim = e.base.Clone()
	e.sim.SetCurrentTime(e.timePoints[e.currentTick])

	initial := e.record(nil, nil, 0)
	e.history = []StepRecord{initial}

	e.buffer = newRollingBuffer(e.cfg.WindowSize, e.flatWidth())
	for i := 0; i < e.cfg.WindowSize; i++ {
		e.buffer.push(e.flatRow())
	}

	return e.observation(), initial
}

// Step runs one transition: decode the action, apply requested closes, fire
// stop/take triggers, create the new order if warranted, tighten trailing
// stops, advance the clock by the wall-time delta to the next time point,
// then reward = equity delta. Step must not be called before Reset or after
// termination; that protocol is the caller's contract.
func (e *Env) Step(action Action) (StepResult, error) {
	orders, closed, err := e.applyAction(action)
	if err != nil {
		return StepResult{}, err
	}

	e.updateTrailingStops()

	e.currentTick++
	if e.currentTick == e.endTick {
		e.done = true
	}

	dt := e.timePoints[e.currentTick].Sub(e.timePoints[e.currentTick-1])
	if err := e.sim.Tick(dt); err != nil {
		return StepResult{}, err
	}

	reward := e.calculateReward()
	info := e.record(orders, closed, reward)
	observation := e.observation()
	e.history = append(e.history, info)

	if e.cfg.ObservationMode == ObservationFlattened {
		e.buffer.push(e.flatRow())
	}

	return StepResult{
		Observation: observation,
		Reward:      reward,
		Terminated:  e.done,
		Truncated:   false,
		Info:        info,
	}, nil
}

// applyAction processes the decoded intents symbol by symbol: explicit
// closes first, then automatic triggers, then the new order. Order-creation
// rejections are recoverable and surface in the intent's Error field.
func (e *Env) applyAction(action Action) (map[string]OrderIntent, map[string][]ClosedOrder, error) {
	intents, err := e.decoder.decode(action)
	if err != nil {
		return nil, nil, err
	}

	orders := make(map[string]OrderIntent, len(intents))
	closed := make(map[string][]ClosedOrder, len(intents))
	for _, symbol := range e.cfg.TradingSymbols {
		closed[symbol] = []ClosedOrder{}
	}

	for _, intent := range intents {
		symbol := intent.symbol
		info, _ := e.sim.Data().Info(symbol)
		modVolume := normalizeVolume(info, intent.volume)

		open := e.sim.SymbolOrders(symbol)
		for i, p := range intent.closeProbabilities {
			if i >= len(open) {
				break
			}
			// strictly greater: equal to the threshold does not close
			if p > e.cfg.CloseThreshold {
				o := open[i]
				if err := e.sim.CloseOrder(o); err != nil {
					return nil, nil, err
				}
				closed[symbol] = append(closed[symbol], e.closedRecord(o, p, "action"))
			}
		}

		for _, o := range e.sim.SymbolOrders(symbol) {
			if o.SL == nil && o.TP == nil {
				continue
			}
			price, reason, hit := e.checkTriggers(o)
			if !hit {
				continue
			}
			if err := e.sim.CloseOrderAt(o, price); err != nil {
				return nil, nil, err
			}
			closed[symbol] = append(closed[symbol], e.closedRecord(o, math.NaN(), reason))
		}

		capacity := e.cfg.SymbolMaxOrders - len(e.sim.SymbolOrders(symbol))
		rec := OrderIntent{
			Symbol:           symbol,
			Hold:             intent.hold,
			HoldProbability:  intent.holdProbability,
			Volume:           intent.volume,
			ModifiedVolume:   modVolume,
			Capacity:         capacity,
			Fee:              math.NaN(),
			Margin:           math.NaN(),
			FeeKind:          e.cfg.FeeKind,
			SL:               cloneFloatPtr(e.cfg.SL),
			TP:               cloneFloatPtr(e.cfg.TP),
			SLTPKind:         e.cfg.SLTPKind,
			TrailingDistance: cloneFloatPtr(e.cfg.TrailingDistance),
		}

		if e.sim.Hedge() && capacity == 0 {
			rec.Error = "cannot add more orders"
		} else if !intent.hold {
			// raw volume 0 resolves to Sell by long-standing convention; hold
			// is the way to express "no order"
			side := sim.Sell
			if intent.volume > 0 {
				side = sim.Buy
			}
			sl, tp := e.thresholds()
			order, err := e.sim.CreateOrder(sim.OrderRequest{
				Side:             side,
				Symbol:           symbol,
				Volume:           modVolume,
				Fee:              e.feeFor(symbol),
				FeeKind:          e.cfg.FeeKind,
				SL:               sl,
				TP:               tp,
				TrailingDistance: cloneFloatPtr(e.cfg.TrailingDistance),
			})
			if err != nil {
				rec.Error = err.Error()
				log.Debug().Str("symbol", symbol).Float64("volume", modVolume).
					Err(err).Msg("order rejected")
			} else {
				rec.OrderID = order.ID
				rec.Side = side.String()
				rec.Fee = order.Fee
				rec.Margin = order.Margin
			}
		}

		orders[symbol] = rec
	}

	return orders, closed, nil
}

// calculateReward is the raw equity delta across the step, in account
// currency units. No clipping or shaping.
func (e *Env) calculateReward() float64 {
	prev := e.history[len(e.history)-1].Equity
	return e.sim.Equity() - prev
}

// thresholds materializes the configured SL/TP values as order thresholds.
func (e *Env) thresholds() (*sim.Threshold, *sim.Threshold) {
	if e.cfg.SLTPKind == "" {
		return nil, nil
	}
	var sl, tp *sim.Threshold
	if e.cfg.SL != nil {
		sl = &sim.Threshold{Kind: e.cfg.SLTPKind, Value: *e.cfg.SL}
	}
	if e.cfg.TP != nil {
		tp = &sim.Threshold{Kind: e.cfg.SLTPKind, Value: *e.cfg.TP}
	}
	return sl, tp
}

func (e *Env) closedRecord(o *sim.Order, closeProbability float64, reason string) ClosedOrder {
	rec := ClosedOrder{
		OrderID:          o.ID,
		Symbol:           o.Symbol,
		Side:             o.Side.String(),
		Volume:           o.Volume,
		Fee:              o.Fee,
		Margin:           o.Margin,
		Profit:           o.Profit,
		CloseProbability: closeProbability,
		Reason:           reason,
		TrailingDistance: cloneFloatPtr(o.TrailingDistance),
	}
	if o.SL != nil {
		rec.SL = cloneFloatPtr(&o.SL.Value)
		rec.SLTPKind = o.SL.Kind
	}
	if o.TP != nil {
		rec.TP = cloneFloatPtr(&o.TP.Value)
		if rec.SLTPKind == "" {
			rec.SLTPKind = o.TP.Kind
		}
	}
	return rec
}

// Done reports whether the current episode has terminated.
func (e *Env) Done() bool { return e.done }

// CurrentTick returns the cursor into the time index.
func (e *Env) CurrentTick() int { return e.currentTick }

// TimePoints returns the episode time index.
func (e *Env) TimePoints() []time.Time { return e.timePoints }

// History returns the episode records, one per step plus the initial
// pre-trade entry.
func (e *Env) History() []StepRecord { return e.history }

// Account exposes the live episode account, e.g. for journaling closed
// orders after a run. Nil before the first Reset.
func (e *Env) Account() *sim.Simulator { return e.sim }

// Prices returns the prefetched (close, open) rows per trading symbol.
func (e *Env) Prices() map[string][][]float64 { return e.prices }

func cloneFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
