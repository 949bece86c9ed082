package env

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/mtsim/market"
	"github.com/rustyeddy/mtsim/sim"
)

// VolumeBasis picks the capital figure used to size discrete-mode orders.
type VolumeBasis int

const (
	BasisBalance VolumeBasis = iota
	BasisFreeMargin
)

// normalizeVolume converts a raw signed magnitude into a broker-legal volume:
// clip the absolute value into [min, max], then snap to the volume step.
// Direction is the caller's concern; it derives from the unclipped sign.
func normalizeVolume(info market.SymbolInfo, raw float64) float64 {
	v := math.Abs(raw)
	if v < info.VolumeMin {
		v = info.VolumeMin
	}
	if v > info.VolumeMax {
		v = info.VolumeMax
	}
	if info.VolumeStep <= 0 {
		return v
	}
	// round(v/step)*step in decimal space, so 0.07 comes out 0.07 and not
	// 0.07000000000000001.
	step := decimal.NewFromFloat(info.VolumeStep)
	snapped, _ := decimal.NewFromFloat(v).Div(step).Round(0).Mul(step).Float64()
	return snapped
}

// feeFor resolves the fee for symbol: the per-symbol function when
// configured, the flat fee otherwise.
func (e *Env) feeFor(symbol string) float64 {
	if e.cfg.FeeFunc != nil {
		return e.cfg.FeeFunc(symbol)
	}
	return e.cfg.Fee
}

// priceWithFee adjusts a price for the transaction cost: fixed fees add an
// absolute distance, floating fees scale the price.
func (e *Env) priceWithFee(symbol string, price float64) float64 {
	fee := e.feeFor(symbol)
	if e.cfg.FeeKind == sim.FeeFloating {
		return price * (1 + fee)
	}
	return price + fee
}

// discreteVolume sizes an order from the fuzzy value and the configured
// capital basis: fuzzy * capital / fee-adjusted entry price.
func (e *Env) discreteVolume(symbol string, fuzzy float64) (float64, error) {
	entry, err := e.sim.PriceAt(symbol, e.sim.CurrentTime())
	if err != nil {
		return 0, err
	}
	capital := e.sim.Balance()
	if e.cfg.VolumeBasis == BasisFreeMargin {
		capital = e.sim.FreeMargin()
	}
	return fuzzy * capital / e.priceWithFee(symbol, entry.Close), nil
}
