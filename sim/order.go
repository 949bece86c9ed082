package sim

import "time"

// OrderSide is the direction of an order: Buy (long) or Sell (short).
type OrderSide int8

const (
	Sell OrderSide = -1
	Buy  OrderSide = 1
)

// Sign returns +1 for Buy and -1 for Sell.
func (s OrderSide) Sign() float64 {
	if s == Buy {
		return 1
	}
	return -1
}

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s OrderSide) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// FeeKind selects how an order's fee is charged.
type FeeKind string

const (
	// FeeFixed charges the fee as an absolute price distance per unit.
	FeeFixed FeeKind = "fixed"
	// FeeFloating charges the fee as a fraction of the entry price.
	FeeFloating FeeKind = "floating"
)

// ThresholdKind selects how an SL/TP value relates to the entry price.
type ThresholdKind string

const (
	// ThresholdPip is an absolute price distance from the entry price.
	ThresholdPip ThresholdKind = "pip"
	// ThresholdPercent is a fraction of the entry price.
	ThresholdPercent ThresholdKind = "percent"
)

// Threshold is an optional stop-loss or take-profit level. A nil *Threshold
// means the side is unset; either, both, or neither side may be set on an
// order.
type Threshold struct {
	Kind  ThresholdKind
	Value float64
}

// clone returns an independent copy, preserving nil.
func (t *Threshold) clone() *Threshold {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Order is the unit mutated by the simulator: created at the current bar's
// close, marked to market on every clock tick, and finalized exactly once on
// close.
type Order struct {
	ID     string
	Side   OrderSide
	Symbol string
	Volume float64

	Fee     float64
	FeeKind FeeKind

	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64

	// Profit is net of fees, GrossProfit before fees. Both stay 0 until the
	// order has been marked or closed.
	Profit      float64
	GrossProfit float64

	// Margin is reserved once at creation and never recomputed.
	Margin float64

	SL *Threshold
	TP *Threshold

	// InitialSL snapshots SL.Value at creation; trailing updates anchor on it
	// and never loosen the stop back toward it.
	InitialSL float64

	// TrailingDistance enables trailing-stop maintenance when non-nil.
	TrailingDistance *float64

	Closed bool
}

func (o *Order) clone() *Order {
	c := *o
	c.SL = o.SL.clone()
	c.TP = o.TP.clone()
	if o.TrailingDistance != nil {
		v := *o.TrailingDistance
		c.TrailingDistance = &v
	}
	return &c
}
