package market

// SymbolInfo carries broker metadata for one tradable symbol: the currency
// pair, the contract size, and the legal volume range.
type SymbolInfo struct {
	Name string

	// CurrencyMargin is the base currency (margin is reserved against it),
	// CurrencyProfit the quote currency (profit accrues in it).
	CurrencyMargin string
	CurrencyProfit string

	// ContractSize converts volume (lots) into units of the base currency.
	ContractSize float64

	VolumeMin  float64
	VolumeMax  float64
	VolumeStep float64
}

// DefaultSymbolInfo returns metadata with common FX-style defaults for the
// given pair. Callers override the fields their broker differs on.
func DefaultSymbolInfo(name, base, quote string) SymbolInfo {
	return SymbolInfo{
		Name:           name,
		CurrencyMargin: base,
		CurrencyProfit: quote,
		ContractSize:   100_000,
		VolumeMin:      0.01,
		VolumeMax:      1000,
		VolumeStep:     0.01,
	}
}
