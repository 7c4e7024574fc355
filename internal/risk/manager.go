// Package risk implements the pre-trade order checks and the per-bar
// forced-exit decisions: position and exposure caps, stop-loss,
// stop-profit, and portfolio-level drawdown protection.
package risk

import (
	"fmt"

	"github.com/qinvest/stocksim/pkg/models"
)

// Manager evaluates orders and positions against a RiskConfig. Its only
// mutable state is the running peak equity, which never resets — not even
// after a drawdown liquidation.
type Manager struct {
	cfg        models.RiskConfig
	peakEquity float64
}

// NewManager creates a manager with peak equity seeded from the starting
// capital.
func NewManager(cfg models.RiskConfig, initialCapital float64) *Manager {
	return &Manager{cfg: cfg, peakEquity: initialCapital}
}

// PeakEquity returns the highest marked equity observed so far.
func (m *Manager) PeakEquity() float64 { return m.peakEquity }

// Verdict is the outcome of a pre-trade check.
type Verdict struct {
	Accepted bool
	Reason   string
	Detail   string
}

func accepted() Verdict { return Verdict{Accepted: true} }

func rejected(reason, format string, args ...any) Verdict {
	return Verdict{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// CheckOrderRisk applies the single-name cap, then the gross exposure
// cap, to BUY orders. The first failing check rejects; sells always pass.
// Cap comparisons admit equality.
func (m *Manager) CheckOrderRisk(order models.Order, portfolio *models.Portfolio, prices map[string]float64) Verdict {
	if order.Side != models.Buy {
		return accepted()
	}
	equity := portfolio.Equity(prices)
	if equity <= 0 {
		return rejected(models.RejectExposureCap, "equity %.2f is not positive", equity)
	}
	gross := float64(order.Shares) * order.ReferencePrice

	if m.cfg.MaxPositionPct > 0 {
		held := portfolio.PositionValue(order.Symbol, prices)
		if frac := (held + gross) / equity; frac > m.cfg.MaxPositionPct {
			return rejected(models.RejectPositionCap,
				"%s would be %.1f%% of equity, cap %.1f%%", order.Symbol, frac*100, m.cfg.MaxPositionPct*100)
		}
	}
	if m.cfg.MaxTotalExposure > 0 {
		total := portfolio.TotalPositionValue(prices)
		if frac := (total + gross) / equity; frac > m.cfg.MaxTotalExposure {
			return rejected(models.RejectExposureCap,
				"gross exposure would be %.1f%% of equity, cap %.1f%%", frac*100, m.cfg.MaxTotalExposure*100)
		}
	}
	return accepted()
}

// MaxBuyGross returns the largest gross amount a new BUY for symbol may
// take without breaching either cap, given current holdings. Callers use
// it to size orders proactively instead of provoking rejections. Returns
// +Inf semantics via ok=false when no cap applies.
func (m *Manager) MaxBuyGross(symbol string, portfolio *models.Portfolio, prices map[string]float64) (float64, bool) {
	if m.cfg.MaxPositionPct <= 0 && m.cfg.MaxTotalExposure <= 0 {
		return 0, false
	}
	equity := portfolio.Equity(prices)
	if equity <= 0 {
		return 0, true
	}

	allowed := equity // upper bound: all-in
	if m.cfg.MaxPositionPct > 0 {
		room := equity*m.cfg.MaxPositionPct - portfolio.PositionValue(symbol, prices)
		if room < allowed {
			allowed = room
		}
	}
	if m.cfg.MaxTotalExposure > 0 {
		room := equity*m.cfg.MaxTotalExposure - portfolio.TotalPositionValue(prices)
		if room < allowed {
			allowed = room
		}
	}
	if allowed < 0 {
		allowed = 0
	}
	return allowed, true
}

// CheckExitSignals updates peak equity and returns the forced-exit orders
// for this bar, in stable symbol order. Drawdown protection liquidates
// the whole book and preempts the per-symbol stops.
func (m *Manager) CheckExitSignals(portfolio *models.Portfolio, prices map[string]float64) []models.Order {
	equity := portfolio.Equity(prices)
	if equity > m.peakEquity {
		m.peakEquity = equity
	}

	symbols := portfolio.HeldSymbols()
	if len(symbols) == 0 {
		return nil
	}

	if m.cfg.MaxDrawdownPct > 0 && m.peakEquity > 0 {
		if dd := (m.peakEquity - equity) / m.peakEquity; dd >= m.cfg.MaxDrawdownPct {
			orders := make([]models.Order, 0, len(symbols))
			for _, sym := range symbols {
				orders = append(orders, m.forcedSell(portfolio, sym, prices, models.ReasonDrawdownProtection))
			}
			return orders
		}
	}

	var orders []models.Order
	for _, sym := range symbols {
		pos := portfolio.Position(sym)
		price, ok := prices[sym]
		if pos == nil || !ok || pos.AvgCost <= 0 {
			continue
		}
		switch {
		case m.cfg.StopLossPct > 0 && price <= pos.AvgCost*(1-m.cfg.StopLossPct):
			orders = append(orders, m.forcedSell(portfolio, sym, prices, models.ReasonStopLoss))
		case m.cfg.StopProfitPct > 0 && price >= pos.AvgCost*(1+m.cfg.StopProfitPct):
			orders = append(orders, m.forcedSell(portfolio, sym, prices, models.ReasonStopProfit))
		}
	}
	return orders
}

func (m *Manager) forcedSell(portfolio *models.Portfolio, symbol string, prices map[string]float64, reason string) models.Order {
	return models.Order{
		Symbol:         symbol,
		Side:           models.Sell,
		Shares:         portfolio.Position(symbol).Shares,
		ReferencePrice: prices[symbol],
		Origin:         models.OriginForcedExit,
		Reason:         reason,
	}
}
