package journal

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	orders *csv.Writer
	equity *csv.Writer
	of, ef *os.File
}

func NewCSV(ordersPath, equityPath string) (*CSVJournal, error) {
	of, err := os.Create(ordersPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		of.Close()
		return nil, err
	}

	ow := csv.NewWriter(of)
	ew := csv.NewWriter(ef)

	if err := ow.Write([]string{"order_id", "symbol", "side", "volume", "entry_price", "exit_price", "entry_time", "exit_time", "gross_profit", "profit", "fee", "margin", "reason"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "balance", "equity", "margin", "free_margin", "margin_level", "reward"}); err != nil {
		return nil, err
	}

	ow.Flush()
	if err := ow.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{ow, ew, of, ef}, nil
}

func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	err := j.orders.Write([]string{
		o.OrderID,
		o.Symbol,
		o.Side,
		f(o.Volume),
		f(o.EntryPrice),
		f(o.ExitPrice),
		o.EntryTime.Format(time.RFC3339),
		o.ExitTime.Format(time.RFC3339),
		f(o.GrossProfit),
		f(o.Profit),
		f(o.Fee),
		f(o.Margin),
		o.Reason,
	})
	if err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Balance),
		f(e.Equity),
		f(e.Margin),
		f(e.FreeMargin),
		f(e.MarginLevel),
		f(e.Reward),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.orders.Flush()
	if err := j.orders.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.of.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	if math.IsInf(x, 1) {
		return "inf"
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}
