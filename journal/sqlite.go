package journal

import (
	"database/sql"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, symbol, side, volume, entry_price, exit_price, entry_time, exit_time, gross_profit, profit, fee, margin, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.Symbol, o.Side, o.Volume, o.EntryPrice, o.ExitPrice,
		o.EntryTime, o.ExitTime, o.GrossProfit, o.Profit, o.Fee, o.Margin, o.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	// margin level is +Inf with no margin in use; store NULL instead
	level := sql.NullFloat64{Float64: e.MarginLevel, Valid: !math.IsInf(e.MarginLevel, 1)}
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, margin, free_margin, margin_level, reward)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Time, e.Balance, e.Equity, e.Margin, e.FreeMargin, level, e.Reward,
	)
	return err
}

// Orders loads every recorded order, oldest exit first.
func (j *SQLiteJournal) Orders() ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT order_id, symbol, side, volume, entry_price, exit_price,
		       entry_time, exit_time, gross_profit, profit, fee, margin, reason
		FROM orders ORDER BY exit_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		err := rows.Scan(&o.OrderID, &o.Symbol, &o.Side, &o.Volume, &o.EntryPrice,
			&o.ExitPrice, &o.EntryTime, &o.ExitTime, &o.GrossProfit, &o.Profit,
			&o.Fee, &o.Margin, &o.Reason)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
