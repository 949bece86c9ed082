// Package journal persists episode results: closed orders and per-step
// equity snapshots, to CSV files or a SQLite database.
package journal

import "time"

// OrderRecord is one closed order as it leaves the simulator.
type OrderRecord struct {
	OrderID     string
	Symbol      string
	Side        string
	Volume      float64
	EntryPrice  float64
	ExitPrice   float64
	EntryTime   time.Time
	ExitTime    time.Time
	GrossProfit float64
	Profit      float64
	Fee         float64
	Margin      float64
	Reason      string
}

// EquitySnapshot is the account state after one step, with the step reward.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	Margin      float64
	FreeMargin  float64
	MarginLevel float64
	Reward      float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}
