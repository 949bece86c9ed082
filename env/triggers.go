package env

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/mtsim/sim"
)

// lossThreshold derives the absolute price that trips the stop loss: below
// entry for a Buy, above entry for a Sell. Second return is false when no
// stop is set.
func lossThreshold(o *sim.Order) (float64, bool) {
	if o.SL == nil {
		return 0, false
	}
	switch o.SL.Kind {
	case sim.ThresholdPip:
		return o.EntryPrice - o.Side.Sign()*o.SL.Value, true
	case sim.ThresholdPercent:
		return o.EntryPrice * (1 - o.Side.Sign()*o.SL.Value), true
	}
	return 0, false
}

// profitThreshold derives the absolute price that trips the take profit:
// above entry for a Buy, below entry for a Sell.
func profitThreshold(o *sim.Order) (float64, bool) {
	if o.TP == nil {
		return 0, false
	}
	switch o.TP.Kind {
	case sim.ThresholdPip:
		return o.EntryPrice + o.Side.Sign()*o.TP.Value, true
	case sim.ThresholdPercent:
		return o.EntryPrice * (1 + o.Side.Sign()*o.TP.Value), true
	}
	return 0, false
}

// checkTriggers tests the order against the current bar's Low/High. The stop
// loss is evaluated first; the first satisfied condition wins and the order
// closes at that threshold price, not at the bar's close.
func (e *Env) checkTriggers(o *sim.Order) (price float64, reason string, hit bool) {
	bar, err := e.sim.PriceAt(o.Symbol, e.sim.CurrentTime())
	if err != nil {
		return 0, "", false
	}

	if thresh, ok := lossThreshold(o); ok {
		slHit := bar.Low <= thresh
		if o.Side == sim.Sell {
			slHit = bar.High >= thresh
		}
		if slHit {
			log.Debug().Str("order", o.ID).Str("side", o.Side.String()).
				Float64("threshold", thresh).Float64("low", bar.Low).Float64("high", bar.High).
				Msg("stop loss hit")
			return thresh, "stop_loss", true
		}
	}

	if thresh, ok := profitThreshold(o); ok {
		tpHit := bar.High >= thresh
		if o.Side == sim.Sell {
			tpHit = bar.Low <= thresh
		}
		if tpHit {
			log.Debug().Str("order", o.ID).Str("side", o.Side.String()).
				Float64("threshold", thresh).Float64("low", bar.Low).Float64("high", bar.High).
				Msg("take profit hit")
			return thresh, "take_profit", true
		}
	}

	return 0, "", false
}

// updateTrailingStops tightens every open order's stop from the current
// close. Pip stops anchor on the initial stop distance; percent stops ratchet
// on their own current value. Stops only ever move in the protective
// direction: min() makes the update monotonic and it never reverts toward
// the initial stop when price backs off.
func (e *Env) updateTrailingStops() {
	if e.cfg.TrailingDistance == nil {
		return
	}
	for _, symbol := range e.cfg.TradingSymbols {
		for _, o := range e.sim.SymbolOrders(symbol) {
			if o.SL == nil {
				continue
			}
			bar, err := e.sim.PriceAt(o.Symbol, e.sim.CurrentTime())
			if err != nil {
				continue
			}
			prev := o.SL.Value
			close := bar.Close

			switch o.SL.Kind {
			case sim.ThresholdPip:
				if o.Side == sim.Buy {
					o.SL.Value = math.Min(o.SL.Value, o.InitialSL+o.EntryPrice-close)
				} else {
					o.SL.Value = math.Min(o.SL.Value, o.InitialSL-o.EntryPrice+close)
				}
			case sim.ThresholdPercent:
				if o.Side == sim.Buy {
					o.SL.Value = math.Min(o.SL.Value, 1-(close*(1-o.SL.Value))/o.EntryPrice)
				} else {
					o.SL.Value = math.Min(o.SL.Value, (close*(1+o.SL.Value))/o.EntryPrice-1)
				}
			}

			if o.SL.Value != prev {
				log.Debug().Str("order", o.ID).Float64("prev_sl", prev).
					Float64("new_sl", o.SL.Value).Float64("close", close).
					Msg("trailing stop tightened")
			}
		}
	}
}
