package journal

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSQLiteJournalRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	assert.NoError(t, err)

	entry := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := OrderRecord{
		OrderID:     "order-2",
		Symbol:      "EURUSD",
		Side:        "sell",
		Volume:      2,
		EntryPrice:  1.2,
		ExitPrice:   1.1,
		EntryTime:   entry,
		ExitTime:    entry.Add(3 * time.Hour),
		GrossProfit: 20000,
		Profit:      19900,
		Fee:         0.0005,
		Margin:      2400,
		Reason:      "action",
	}
	second := OrderRecord{
		OrderID:    "order-1",
		Symbol:     "GBPUSD",
		Side:       "buy",
		Volume:     1,
		EntryPrice: 1.3,
		ExitPrice:  1.29,
		EntryTime:  entry,
		ExitTime:   entry.Add(time.Hour),
		Profit:     -1000,
		Reason:     "stop_loss",
	}
	assert.NoError(t, j.RecordOrder(first))
	assert.NoError(t, j.RecordOrder(second))

	got, err := j.Orders()
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	// ordered by exit time
	assert.Equal(t, "order-1", got[0].OrderID)
	assert.Equal(t, "order-2", got[1].OrderID)
	assert.Equal(t, "sell", got[1].Side)
	assert.Equal(t, 19900.0, got[1].Profit)
	assert.Equal(t, entry.Add(3*time.Hour), got[1].ExitTime.UTC())

	assert.NoError(t, j.Close())
}

func TestSQLiteJournalDuplicateOrderID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	assert.NoError(t, err)
	defer j.Close()

	rec := OrderRecord{OrderID: "dup", Symbol: "EURUSD", Side: "buy", Reason: "action"}
	assert.NoError(t, j.RecordOrder(rec))
	assert.Error(t, j.RecordOrder(rec))
}

func TestSQLiteJournalEquity(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	assert.NoError(t, err)
	defer j.Close()

	assert.NoError(t, j.RecordEquity(EquitySnapshot{
		Time:        time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
		Balance:     10_000,
		Equity:      10_005,
		FreeMargin:  10_005,
		MarginLevel: math.Inf(1),
		Reward:      5,
	}))

	var count int
	assert.NoError(t, j.db.QueryRow(`SELECT COUNT(*) FROM equity`).Scan(&count))
	assert.Equal(t, 1, count)

	var level any
	assert.NoError(t, j.db.QueryRow(`SELECT margin_level FROM equity`).Scan(&level))
	assert.Nil(t, level)
}
