package models

import (
	"sort"
	"time"
)

// Position is a long holding in a single symbol with one average cost.
// AcquiredOn is the latest trading day on which net new shares were added;
// it drives T+N sell eligibility.
type Position struct {
	Symbol     string    `json:"symbol"`
	Shares     int64     `json:"shares"`
	AvgCost    float64   `json:"avg_cost"`
	AcquiredOn time.Time `json:"acquired_on"`
}

// Portfolio is the cash and position ledger for one backtest run.
// PeakEquity is the running maximum of daily equity samples and is never
// reset for the lifetime of a run.
type Portfolio struct {
	Cash       float64              `json:"cash"`
	Positions  map[string]*Position `json:"positions"`
	PeakEquity float64              `json:"peak_equity"`
}

// NewPortfolio creates a portfolio with the given starting cash.
func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		Cash:       initialCash,
		Positions:  make(map[string]*Position),
		PeakEquity: initialCash,
	}
}

// Position returns the holding for symbol, or nil when flat.
func (p *Portfolio) Position(symbol string) *Position {
	return p.Positions[symbol]
}

// PositionValue returns shares × price for symbol under the given marks,
// or 0 when flat or unpriced.
func (p *Portfolio) PositionValue(symbol string, prices map[string]float64) float64 {
	pos := p.Positions[symbol]
	if pos == nil {
		return 0
	}
	return float64(pos.Shares) * prices[symbol]
}

// TotalPositionValue returns the marked value of all holdings.
func (p *Portfolio) TotalPositionValue(prices map[string]float64) float64 {
	total := 0.0
	for sym, pos := range p.Positions {
		total += float64(pos.Shares) * prices[sym]
	}
	return total
}

// Equity returns cash plus the marked value of all holdings.
func (p *Portfolio) Equity(prices map[string]float64) float64 {
	return p.Cash + p.TotalPositionValue(prices)
}

// HeldSymbols returns held symbols in stable (sorted) order.
// Risk checks and forced exits iterate in this order for determinism.
func (p *Portfolio) HeldSymbols() []string {
	syms := make([]string, 0, len(p.Positions))
	for sym := range p.Positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// ApplyFill updates cash and positions for an executed fill.
// A position whose share count reaches zero is removed.
func (p *Portfolio) ApplyFill(f Fill) {
	p.Cash += f.NetCashDelta

	pos := p.Positions[f.Symbol]
	if f.Side == Buy {
		if pos == nil {
			p.Positions[f.Symbol] = &Position{
				Symbol:     f.Symbol,
				Shares:     f.Shares,
				AvgCost:    f.Price,
				AcquiredOn: f.Date,
			}
			return
		}
		total := pos.Shares + f.Shares
		pos.AvgCost = (pos.AvgCost*float64(pos.Shares) + f.Price*float64(f.Shares)) / float64(total)
		pos.Shares = total
		pos.AcquiredOn = f.Date
		return
	}

	if pos == nil {
		return
	}
	pos.Shares -= f.Shares
	if pos.Shares <= 0 {
		delete(p.Positions, f.Symbol)
	}
}

// EquitySample is one end-of-bar snapshot of the portfolio.
type EquitySample struct {
	Date          time.Time `json:"date"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
}
