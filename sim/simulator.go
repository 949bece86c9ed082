// Package sim implements the brokerage accounting engine: the order ledger,
// balance/equity/margin arithmetic, and the simulated clock. It knows nothing
// about actions or observations; the env package drives it.
package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/mtsim/id"
	"github.com/rustyeddy/mtsim/market"
)

var (
	ErrInsufficientMargin = errors.New("insufficient free margin")
	ErrOrderNotFound      = errors.New("order not found or already closed")
	ErrInvalidVolume      = errors.New("invalid volume")
	ErrNoConversion       = errors.New("no unit-currency conversion path")
	ErrNoCurrentTime      = errors.New("current time not set")
)

// Config holds account-level parameters.
type Config struct {
	// Unit is the account currency label, e.g. "USD".
	Unit     string
	Balance  float64
	Leverage float64

	// StopOutLevel is the margin level below which the simulator force-closes
	// the most unprofitable order until the account recovers.
	StopOutLevel float64

	// Hedge allows multiple concurrent orders per symbol. With hedging off,
	// a new order nets against the symbol's existing one.
	Hedge bool
}

// Simulator owns the canonical account state. It is not safe for concurrent
// use; each episode must operate on its own Clone.
type Simulator struct {
	unit           string
	initialBalance float64
	balance        float64
	equity         float64
	margin         float64
	leverage       float64
	stopOutLevel   float64
	hedge          bool

	data        *market.Dataset
	currentTime time.Time

	orders []*Order
	closed []*Order
}

// New builds a simulator over the given dataset.
func New(cfg Config, data *market.Dataset) (*Simulator, error) {
	if data == nil || data.Len() == 0 {
		return nil, errors.New("sim: no market data")
	}
	if cfg.Unit == "" {
		cfg.Unit = "USD"
	}
	if cfg.Balance <= 0 {
		cfg.Balance = 10_000
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 100
	}
	if cfg.StopOutLevel <= 0 {
		cfg.StopOutLevel = 0.2
	}
	return &Simulator{
		unit:           cfg.Unit,
		initialBalance: cfg.Balance,
		balance:        cfg.Balance,
		equity:         cfg.Balance,
		leverage:       cfg.Leverage,
		stopOutLevel:   cfg.StopOutLevel,
		hedge:          cfg.Hedge,
		data:           data,
	}, nil
}

func (s *Simulator) Unit() string            { return s.unit }
func (s *Simulator) Hedge() bool             { return s.hedge }
func (s *Simulator) Balance() float64        { return s.balance }
func (s *Simulator) Equity() float64         { return s.equity }
func (s *Simulator) Margin() float64         { return s.margin }
func (s *Simulator) InitialBalance() float64 { return s.initialBalance }
func (s *Simulator) Leverage() float64       { return s.leverage }
func (s *Simulator) Data() *market.Dataset   { return s.data }
func (s *Simulator) CurrentTime() time.Time  { return s.currentTime }

func (s *Simulator) SetCurrentTime(t time.Time) { s.currentTime = t }

// FreeMargin is equity minus reserved margin: capacity for new orders.
func (s *Simulator) FreeMargin() float64 { return s.equity - s.margin }

// MarginLevel is equity over margin; +Inf with no margin in use. Margin is
// rounded to 6 decimals first so released-margin dust does not produce a
// bogus finite level.
func (s *Simulator) MarginLevel() float64 {
	m := math.Round(s.margin*1e6) / 1e6
	if m == 0 {
		return math.Inf(1)
	}
	return s.equity / m
}

// PriceAt returns symbol's bar at the latest time not after t.
func (s *Simulator) PriceAt(symbol string, t time.Time) (market.Candle, error) {
	return s.data.PriceAt(symbol, t)
}

// SymbolOrders returns the open orders for symbol in creation order. The
// returned slice is a fresh snapshot; the orders themselves are live.
func (s *Simulator) SymbolOrders(symbol string) []*Order {
	var out []*Order
	for _, o := range s.orders {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out
}

// OpenOrders returns a snapshot of every open order.
func (s *Simulator) OpenOrders() []*Order {
	out := make([]*Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// ClosedOrders returns a snapshot of the closed-order ledger.
func (s *Simulator) ClosedOrders() []*Order {
	out := make([]*Order, len(s.closed))
	copy(out, s.closed)
	return out
}

// Clone returns a deep copy with an independent order ledger. The dataset is
// shared; it is immutable by construction.
func (s *Simulator) Clone() *Simulator {
	c := *s
	c.orders = make([]*Order, len(s.orders))
	for i, o := range s.orders {
		c.orders[i] = o.clone()
	}
	c.closed = make([]*Order, len(s.closed))
	for i, o := range s.closed {
		c.closed[i] = o.clone()
	}
	return &c
}

// CheckConversion verifies a profit-currency conversion path exists for
// symbol. Called at construction time by the env layer.
func (s *Simulator) CheckConversion(symbol string) error {
	info, ok := s.data.Info(symbol)
	if !ok {
		return fmt.Errorf("sim: unknown symbol %s", symbol)
	}
	if info.CurrencyProfit == s.unit {
		return nil
	}
	if u, _ := s.unitSymbol(info.CurrencyProfit); u == "" {
		return fmt.Errorf("%s -> %s: %w", info.CurrencyProfit, s.unit, ErrNoConversion)
	}
	return nil
}

// unitSymbol finds a pair converting cur into the account unit. The second
// return is true when the pair is quoted the other way around and the rate
// must be inverted.
func (s *Simulator) unitSymbol(cur string) (string, bool) {
	for _, name := range s.data.Symbols() {
		info, _ := s.data.Info(name)
		if info.CurrencyMargin == cur && info.CurrencyProfit == s.unit {
			return name, false
		}
		if info.CurrencyMargin == s.unit && info.CurrencyProfit == cur {
			return name, true
		}
	}
	return "", false
}

// unitRatio converts one unit of symbol's profit currency into the account
// unit at time t.
func (s *Simulator) unitRatio(symbol string, t time.Time) (float64, error) {
	info, ok := s.data.Info(symbol)
	if !ok {
		return 0, fmt.Errorf("sim: unknown symbol %s", symbol)
	}
	if info.CurrencyProfit == s.unit {
		return 1, nil
	}
	name, inverse := s.unitSymbol(info.CurrencyProfit)
	if name == "" {
		return 0, fmt.Errorf("%s -> %s: %w", info.CurrencyProfit, s.unit, ErrNoConversion)
	}
	c, err := s.data.PriceAt(name, t)
	if err != nil {
		return 0, err
	}
	if inverse {
		return 1 / c.Close, nil
	}
	return c.Close, nil
}

// OrderRequest describes a new order.
type OrderRequest struct {
	Side             OrderSide
	Symbol           string
	Volume           float64
	Fee              float64
	FeeKind          FeeKind
	SL               *Threshold
	TP               *Threshold
	TrailingDistance *float64
}

// CreateOrder opens an order at the current bar's close. Under hedging it
// always appends to the ledger; otherwise it nets against the symbol's
// existing order. Fails with ErrInsufficientMargin when the reserved margin
// would exceed free margin.
func (s *Simulator) CreateOrder(req OrderRequest) (*Order, error) {
	if s.currentTime.IsZero() {
		return nil, ErrNoCurrentTime
	}
	if err := s.checkVolume(req.Symbol, req.Volume); err != nil {
		return nil, err
	}
	if req.Fee < 0 {
		return nil, fmt.Errorf("sim: negative fee %v", req.Fee)
	}
	if req.FeeKind == "" {
		req.FeeKind = FeeFixed
	}
	if s.hedge {
		return s.createHedged(req)
	}
	return s.createUnhedged(req)
}

func (s *Simulator) createHedged(req OrderRequest) (*Order, error) {
	entry, err := s.data.PriceAt(req.Symbol, s.currentTime)
	if err != nil {
		return nil, err
	}
	o := &Order{
		ID:               id.New(),
		Side:             req.Side,
		Symbol:           req.Symbol,
		Volume:           req.Volume,
		Fee:              req.Fee,
		FeeKind:          req.FeeKind,
		EntryTime:        s.currentTime,
		EntryPrice:       entry.Close,
		ExitTime:         s.currentTime,
		ExitPrice:        entry.Close,
		SL:               req.SL.clone(),
		TP:               req.TP.clone(),
		TrailingDistance: cloneFloat(req.TrailingDistance),
	}
	if o.SL != nil {
		o.InitialSL = o.SL.Value
	}
	if err := s.updateOrderProfit(o); err != nil {
		return nil, err
	}
	if err := s.updateOrderMargin(o); err != nil {
		return nil, err
	}
	if o.Margin > s.FreeMargin()+o.Profit {
		return nil, fmt.Errorf("%w (margin=%.2f profit=%.2f free=%.2f)",
			ErrInsufficientMargin, o.Margin, o.Profit, s.FreeMargin())
	}
	s.equity += o.Profit
	s.margin += o.Margin
	s.orders = append(s.orders, o)

	log.Debug().Str("order", o.ID).Str("symbol", o.Symbol).Str("side", o.Side.String()).
		Float64("volume", o.Volume).Float64("entry", o.EntryPrice).Float64("margin", o.Margin).
		Msg("order created")
	return o, nil
}

// createUnhedged nets the request against the symbol's existing order: same
// side merges volumes at a weighted entry; opposite side closes, partially
// closes, or reverses depending on the relative volumes.
func (s *Simulator) createUnhedged(req OrderRequest) (*Order, error) {
	var old *Order
	for _, o := range s.orders {
		if o.Symbol == req.Symbol {
			old = o
			break
		}
	}
	if old == nil {
		return s.createHedged(req)
	}

	if old.Side == req.Side {
		merged, err := s.createHedged(req)
		if err != nil {
			return nil, err
		}
		total := old.Volume + merged.Volume
		old.EntryPrice = (old.EntryPrice*old.Volume + merged.EntryPrice*merged.Volume) / total
		old.Volume = total
		old.Profit += merged.Profit
		old.Margin += merged.Margin
		if merged.Fee > old.Fee {
			old.Fee = merged.Fee
		}
		// The hedged order was only a sizing vehicle; drop it from the ledger.
		s.orders = s.orders[:len(s.orders)-1]
		return old, nil
	}

	if req.Volume >= old.Volume {
		remainder := req.Volume - old.Volume
		if err := s.CloseOrder(old); err != nil {
			return nil, err
		}
		if remainder > 0 {
			rev := req
			rev.Volume = remainder
			return s.createHedged(rev)
		}
		return old, nil
	}

	ratio := req.Volume / old.Volume
	partialProfit := ratio * old.Profit
	partialMargin := ratio * old.Margin
	old.Volume -= req.Volume
	old.Profit -= partialProfit
	old.Margin -= partialMargin
	s.balance += partialProfit
	s.margin -= partialMargin
	s.refreshEquity()
	return old, nil
}

// CloseOrder closes o at the current bar's close price.
func (s *Simulator) CloseOrder(o *Order) error {
	c, err := s.data.PriceAt(o.Symbol, s.currentTime)
	if err != nil {
		return err
	}
	return s.CloseOrderAt(o, c.Close)
}

// CloseOrderAt closes o at an explicit price (e.g. a stop/take threshold).
// The order's profit is finalized from that price, realized into the balance,
// and its margin released.
func (s *Simulator) CloseOrderAt(o *Order, price float64) error {
	idx := -1
	for i, cur := range s.orders {
		if cur == o {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("close %s: %w", o.ID, ErrOrderNotFound)
	}

	o.ExitTime = s.currentTime
	o.ExitPrice = price
	if err := s.updateOrderProfit(o); err != nil {
		return err
	}
	s.balance += o.Profit
	s.margin -= o.Margin
	o.Closed = true
	s.orders = append(s.orders[:idx], s.orders[idx+1:]...)
	s.closed = append(s.closed, o)
	s.refreshEquity()

	log.Debug().Str("order", o.ID).Float64("exit", o.ExitPrice).
		Float64("profit", o.Profit).Msg("order closed")
	return nil
}

// Tick advances the simulated clock by d, marks every open order to the new
// bar's close, recomputes equity, and applies stop-out liquidation.
func (s *Simulator) Tick(d time.Duration) error {
	if s.currentTime.IsZero() {
		return ErrNoCurrentTime
	}
	s.currentTime = s.currentTime.Add(d)

	s.equity = s.balance
	for _, o := range s.orders {
		o.ExitTime = s.currentTime
		c, err := s.data.PriceAt(o.Symbol, o.ExitTime)
		if err != nil {
			return err
		}
		o.ExitPrice = c.Close
		if err := s.updateOrderProfit(o); err != nil {
			return err
		}
		s.equity += o.Profit
	}

	for s.MarginLevel() < s.stopOutLevel && len(s.orders) > 0 {
		worst := s.orders[0]
		for _, o := range s.orders[1:] {
			if o.Profit < worst.Profit {
				worst = o
			}
		}
		log.Debug().Str("order", worst.ID).Float64("margin_level", s.MarginLevel()).
			Msg("stop out: closing most unprofitable order")
		if err := s.CloseOrder(worst); err != nil {
			return err
		}
	}

	if s.balance < 0 {
		s.balance = 0
		s.equity = 0
	}
	return nil
}

func (s *Simulator) refreshEquity() {
	eq := s.balance
	for _, o := range s.orders {
		eq += o.Profit
	}
	s.equity = eq
}

// updateOrderProfit recomputes gross and net profit from the order's current
// exit price. Fixed fees are an absolute price distance per unit, floating
// fees a fraction of the entry price.
func (s *Simulator) updateOrderProfit(o *Order) error {
	info, ok := s.data.Info(o.Symbol)
	if !ok {
		return fmt.Errorf("sim: unknown symbol %s", o.Symbol)
	}
	rate, err := s.unitRatio(o.Symbol, o.ExitTime)
	if err != nil {
		return err
	}
	units := o.Volume * info.ContractSize
	o.GrossProfit = units * o.Side.Sign() * (o.ExitPrice - o.EntryPrice) * rate

	feeCost := units * o.Fee * rate
	if o.FeeKind == FeeFloating {
		feeCost = units * o.EntryPrice * o.Fee * rate
	}
	o.Profit = o.GrossProfit - feeCost
	return nil
}

// updateOrderMargin reserves margin once, from the entry notional.
func (s *Simulator) updateOrderMargin(o *Order) error {
	info, ok := s.data.Info(o.Symbol)
	if !ok {
		return fmt.Errorf("sim: unknown symbol %s", o.Symbol)
	}
	rate, err := s.unitRatio(o.Symbol, o.EntryTime)
	if err != nil {
		return err
	}
	o.Margin = o.Volume * info.ContractSize * o.EntryPrice * rate / s.leverage
	return nil
}

// checkVolume enforces the symbol's broker limits. Step conformance uses
// decimal arithmetic so 0.07 % 0.01 is exactly zero.
func (s *Simulator) checkVolume(symbol string, volume float64) error {
	info, ok := s.data.Info(symbol)
	if !ok {
		return fmt.Errorf("sim: unknown symbol %s", symbol)
	}
	if volume < info.VolumeMin || volume > info.VolumeMax {
		return fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalidVolume, volume, info.VolumeMin, info.VolumeMax)
	}
	if info.VolumeStep > 0 {
		step := decimal.NewFromFloat(info.VolumeStep)
		if !decimal.NewFromFloat(volume).Mod(step).IsZero() {
			return fmt.Errorf("%w: %v not a multiple of step %v", ErrInvalidVolume, volume, info.VolumeStep)
		}
	}
	return nil
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
