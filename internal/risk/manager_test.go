package risk

import (
	"testing"
	"time"

	"github.com/qinvest/stocksim/pkg/models"
)

func holding(p *models.Portfolio, symbol string, shares int64, avgCost float64) {
	p.Positions[symbol] = &models.Position{
		Symbol: symbol, Shares: shares, AvgCost: avgCost,
		AcquiredOn: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCheckOrderRiskPositionCap(t *testing.T) {
	m := NewManager(models.RiskConfig{MaxPositionPct: 0.30}, 100_000)
	p := models.NewPortfolio(100_000)
	prices := map[string]float64{"600000": 10}

	// 30% exactly: equality passes.
	order := models.Order{Symbol: "600000", Side: models.Buy, Shares: 3000, ReferencePrice: 10}
	if v := m.CheckOrderRisk(order, p, prices); !v.Accepted {
		t.Errorf("cap equality must pass, got %+v", v)
	}

	order.Shares = 3100
	v := m.CheckOrderRisk(order, p, prices)
	if v.Accepted || v.Reason != models.RejectPositionCap {
		t.Errorf("over-cap order must reject with POSITION_CAP, got %+v", v)
	}

	// Existing shares count against the cap.
	holding(p, "600000", 2000, 10)
	p.Cash = 80_000
	order.Shares = 1100
	if v := m.CheckOrderRisk(order, p, prices); v.Accepted {
		t.Errorf("held value plus order must breach the cap, got %+v", v)
	}
}

func TestCheckOrderRiskExposureCap(t *testing.T) {
	m := NewManager(models.RiskConfig{MaxPositionPct: 0.60, MaxTotalExposure: 0.50}, 100_000)
	p := models.NewPortfolio(60_000)
	holding(p, "000001", 4000, 10)
	prices := map[string]float64{"000001": 10, "600000": 10}

	// Equity 100k, exposure 40k. A 2k-share buy in a second name keeps the
	// single-name cap but breaches the 50% gross cap.
	order := models.Order{Symbol: "600000", Side: models.Buy, Shares: 2000, ReferencePrice: 10}
	v := m.CheckOrderRisk(order, p, prices)
	if v.Accepted || v.Reason != models.RejectExposureCap {
		t.Errorf("exposure breach must reject with EXPOSURE_CAP, got %+v", v)
	}

	order.Shares = 1000
	if v := m.CheckOrderRisk(order, p, prices); !v.Accepted {
		t.Errorf("within both caps must pass, got %+v", v)
	}
}

func TestCheckOrderRiskSellsAndDisabledCaps(t *testing.T) {
	m := NewManager(models.RiskConfig{}, 100_000)
	p := models.NewPortfolio(1000)
	prices := map[string]float64{"600000": 10}

	// Zero config disables both caps; sells never check.
	buy := models.Order{Symbol: "600000", Side: models.Buy, Shares: 100_000, ReferencePrice: 10}
	if v := m.CheckOrderRisk(buy, p, prices); !v.Accepted {
		t.Errorf("disabled caps must pass any buy, got %+v", v)
	}
	sell := models.Order{Symbol: "600000", Side: models.Sell, Shares: 100, ReferencePrice: 10}
	if v := m.CheckOrderRisk(sell, p, prices); !v.Accepted {
		t.Errorf("sells must always pass, got %+v", v)
	}
}

func TestMaxBuyGross(t *testing.T) {
	m := NewManager(models.RiskConfig{MaxPositionPct: 0.30, MaxTotalExposure: 0.50}, 100_000)
	p := models.NewPortfolio(80_000)
	holding(p, "000001", 2000, 10)
	prices := map[string]float64{"000001": 10, "600000": 10}

	// Equity 100k: single-name room 30k, gross room 50k−20k = 30k.
	gross, capped := m.MaxBuyGross("600000", p, prices)
	if !capped || gross != 30_000 {
		t.Errorf("MaxBuyGross = %v capped=%v, want 30000", gross, capped)
	}

	// Adding to the held name: single-name room 30k−20k = 10k.
	gross, _ = m.MaxBuyGross("000001", p, prices)
	if gross != 10_000 {
		t.Errorf("MaxBuyGross held name = %v, want 10000", gross)
	}

	if _, capped := NewManager(models.RiskConfig{}, 1).MaxBuyGross("600000", p, prices); capped {
		t.Error("no caps configured must report uncapped")
	}
}

func TestCheckExitSignalsStops(t *testing.T) {
	m := NewManager(models.RiskConfig{StopLossPct: 0.10, StopProfitPct: 0.50}, 100_000)
	p := models.NewPortfolio(0)
	holding(p, "600000", 1000, 10)

	// No trigger strictly inside the band.
	if orders := m.CheckExitSignals(p, map[string]float64{"600000": 9.5}); len(orders) != 0 {
		t.Errorf("no stop inside the band, got %+v", orders)
	}

	// Equality triggers the stop-loss.
	orders := m.CheckExitSignals(p, map[string]float64{"600000": 9.0})
	if len(orders) != 1 || orders[0].Reason != models.ReasonStopLoss {
		t.Fatalf("stop-loss at the boundary, got %+v", orders)
	}
	if orders[0].Side != models.Sell || orders[0].Shares != 1000 || orders[0].Origin != models.OriginForcedExit {
		t.Errorf("forced sell must liquidate the full position, got %+v", orders[0])
	}

	// Stop-profit at the boundary.
	orders = m.CheckExitSignals(p, map[string]float64{"600000": 15.0})
	if len(orders) != 1 || orders[0].Reason != models.ReasonStopProfit {
		t.Errorf("stop-profit at the boundary, got %+v", orders)
	}
}

func TestCheckExitSignalsDrawdownPreempts(t *testing.T) {
	m := NewManager(models.RiskConfig{MaxDrawdownPct: 0.20, StopProfitPct: 0.50}, 100_000)
	p := models.NewPortfolio(0)
	holding(p, "600000", 1000, 10)
	holding(p, "000001", 1000, 100)

	// Push peak equity to 130k.
	m.CheckExitSignals(p, map[string]float64{"600000": 30, "000001": 100})
	if m.PeakEquity() != 130_000 {
		t.Fatalf("peak = %v, want 130000", m.PeakEquity())
	}

	// Equity falls to 100k: 23% drawdown. 600000 sits at 3× its cost, but
	// drawdown protection must liquidate everything and preempt the
	// stop-profit reason.
	orders := m.CheckExitSignals(p, map[string]float64{"600000": 30, "000001": 70})
	if len(orders) != 2 {
		t.Fatalf("expected full-book liquidation, got %+v", orders)
	}
	for _, o := range orders {
		if o.Reason != models.ReasonDrawdownProtection {
			t.Errorf("reason = %q, want DRAWDOWN_PROTECTION", o.Reason)
		}
	}
	// Stable symbol order.
	if orders[0].Symbol != "000001" || orders[1].Symbol != "600000" {
		t.Errorf("orders must follow sorted symbols, got %q then %q", orders[0].Symbol, orders[1].Symbol)
	}
}

func TestPeakEquityNeverResets(t *testing.T) {
	m := NewManager(models.RiskConfig{MaxDrawdownPct: 0.20}, 100_000)
	p := models.NewPortfolio(0)
	holding(p, "600000", 1000, 10)

	m.CheckExitSignals(p, map[string]float64{"600000": 130}) // peak 130k
	orders := m.CheckExitSignals(p, map[string]float64{"600000": 100})
	if len(orders) != 1 {
		t.Fatalf("drawdown must trigger, got %+v", orders)
	}

	// Simulate the liquidation, then verify the peak survives it.
	delete(p.Positions, "600000")
	p.Cash = 100_000
	m.CheckExitSignals(p, map[string]float64{})
	if m.PeakEquity() != 130_000 {
		t.Errorf("peak after liquidation = %v, must stay 130000", m.PeakEquity())
	}
}
