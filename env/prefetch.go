package env

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// prefetchPrices resolves the (close, open) pair for every trading symbol at
// every time point up front, so stepping never touches the forward-fill
// lookup. Symbols fan out over a bounded worker pool; each symbol's rows are
// written by exactly one goroutine.
func (e *Env) prefetchPrices() error {
	workers := e.cfg.PrefetchWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	prices := make(map[string][][]float64, len(e.cfg.TradingSymbols))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(workers)
	for _, symbol := range e.cfg.TradingSymbols {
		symbol := symbol
		g.Go(func() error {
			rows := make([][]float64, len(e.timePoints))
			for i, t := range e.timePoints {
				c, err := e.base.PriceAt(symbol, t)
				if err != nil {
					return err
				}
				rows[i] = []float64{c.Close, c.Open}
			}
			mu.Lock()
			prices[symbol] = rows
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.prices = prices
	return nil
}
