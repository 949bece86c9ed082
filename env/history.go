package env

import (
	"github.com/rustyeddy/mtsim/sim"
)

// OrderIntent is one symbol's decode result for a step, surfaced through the
// step info and the episode history. Fee and Margin stay NaN until an order
// was actually created; a recoverable creation failure lands in Error and the
// episode continues.
type OrderIntent struct {
	Symbol  string
	OrderID string
	Side    string

	Hold            bool
	HoldProbability float64

	Volume         float64
	ModifiedVolume float64

	// Capacity is how many more orders the symbol could take this step.
	Capacity int

	Fee     float64
	Margin  float64
	FeeKind sim.FeeKind

	SL               *float64
	TP               *float64
	SLTPKind         sim.ThresholdKind
	TrailingDistance *float64

	Error string
}

// ClosedOrder records an order closed during a step, whether by explicit
// action or by a stop/take trigger.
type ClosedOrder struct {
	OrderID string
	Symbol  string
	Side    string
	Volume  float64
	Fee     float64
	Margin  float64
	Profit  float64

	// CloseProbability is NaN for trigger-driven closes.
	CloseProbability float64

	// Reason is "action", "stop_loss" or "take_profit".
	Reason string

	SL               *float64
	TP               *float64
	SLTPKind         sim.ThresholdKind
	TrailingDistance *float64
}

// StepRecord is one entry of the episode history: the decoded intents, the
// orders closed this step, and the raw (unnormalized) account state after the
// clock advanced. Reset appends one initial record with zeroed action fields.
type StepRecord struct {
	Orders       map[string]OrderIntent
	ClosedOrders map[string][]ClosedOrder

	Balance     float64
	Equity      float64
	Margin      float64
	FreeMargin  float64
	MarginLevel float64

	Reward float64
}

// StepResult is everything Step returns. Truncated is always false at this
// layer; episode termination only comes from exhausting the time index.
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        StepRecord
}

func (e *Env) record(orders map[string]OrderIntent, closed map[string][]ClosedOrder, reward float64) StepRecord {
	return StepRecord{
		Orders:       orders,
		ClosedOrders: closed,
		Balance:      e.sim.Balance(),
		Equity:       e.sim.Equity(),
		Margin:       e.sim.Margin(),
		FreeMargin:   e.sim.FreeMargin(),
		MarginLevel:  e.sim.MarginLevel(),
		Reward:       reward,
	}
}
