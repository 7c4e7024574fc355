package engine

import (
	"math"
	"testing"
	"time"

	"github.com/qinvest/stocksim/pkg/models"
)

func curveOf(equities ...float64) []models.EquitySample {
	base := time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)
	out := make([]models.EquitySample, len(equities))
	for i, e := range equities {
		out[i] = models.EquitySample{Date: base.AddDate(0, 0, i), Equity: e}
	}
	return out
}

func TestComputeMetricsReturns(t *testing.T) {
	m := computeMetrics(curveOf(100_000, 101_000, 102_000, 110_000), nil, 0)

	if math.Abs(m.TotalReturn-0.10) > 1e-12 {
		t.Errorf("total return = %v, want 0.10", m.TotalReturn)
	}
	if m.CAGR == nil || *m.CAGR <= m.TotalReturn {
		t.Errorf("CAGR over four days must annualize above the raw return, got %v", m.CAGR)
	}
	if m.Volatility == nil || *m.Volatility <= 0 {
		t.Errorf("volatility = %v, want positive", m.Volatility)
	}
	if m.Sharpe == nil {
		t.Error("sharpe must be present when returns vary")
	}
	// A monotonically rising curve has no down days.
	if m.Sortino != nil {
		t.Errorf("sortino = %v, want nil with no negative returns", *m.Sortino)
	}
}

func TestComputeMetricsFlatCurve(t *testing.T) {
	m := computeMetrics(curveOf(100_000, 100_000, 100_000), nil, 0)

	if m.TotalReturn != 0 {
		t.Errorf("total return = %v, want 0", m.TotalReturn)
	}
	// Zero-denominator ratios report null, never NaN.
	if m.Volatility != nil || m.Sharpe != nil || m.Sortino != nil || m.Calmar != nil {
		t.Errorf("flat curve must leave ratio metrics nil: %+v", m)
	}
	if m.WinRate != nil || m.ProfitFactor != nil {
		t.Errorf("no trades must leave trade stats nil: %+v", m)
	}
	if m.MaxDrawdown != 0 || m.MaxDrawdownDuration != 0 {
		t.Errorf("flat curve has no drawdown, got %v / %d", m.MaxDrawdown, m.MaxDrawdownDuration)
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := computeMetrics(nil, nil, 0)
	if m.TotalReturn != 0 || m.CAGR != nil {
		t.Errorf("empty curve must produce the zero value, got %+v", m)
	}
}

func TestDrawdown(t *testing.T) {
	curve := curveOf(100, 120, 90, 96, 121, 110)
	dd, dur := drawdown(curve)

	if math.Abs(dd-(-0.25)) > 1e-12 {
		t.Errorf("max drawdown = %v, want -0.25 (120 → 90)", dd)
	}
	// Bars 90 and 96 sit below the 120 peak; 110 restarts a run of 1.
	if dur != 2 {
		t.Errorf("drawdown duration = %d, want 2", dur)
	}
}

func TestRoundTripPairing(t *testing.T) {
	base := time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)
	curve := curveOf(100_000, 100_000, 100_000, 100_000)
	day := func(i int) time.Time { return base.AddDate(0, 0, i) }

	fills := []models.Fill{
		{Date: day(0), Symbol: "600000", Side: models.Buy, Shares: 200, Price: 10, GrossAmount: 2000},
		{Date: day(1), Symbol: "600000", Side: models.Buy, Shares: 100, Price: 12, GrossAmount: 1200},
		// Sells 250: consumes the whole first lot and half the second.
		{Date: day(3), Symbol: "600000", Side: models.Sell, Shares: 250, Price: 14, GrossAmount: 3500},
	}

	trips := pairRoundTrips(fills, curve)
	if len(trips) != 2 {
		t.Fatalf("trips = %+v, want 2 FIFO blocks", trips)
	}
	// First block: 200 shares bought at 10, sold at 14.
	if math.Abs(trips[0].pnl-800) > 1e-9 || trips[0].holdingBars != 3 {
		t.Errorf("first trip = %+v, want pnl 800 over 3 bars", trips[0])
	}
	// Second block: 50 shares at 12, sold at 14.
	if math.Abs(trips[1].pnl-100) > 1e-9 || trips[1].holdingBars != 2 {
		t.Errorf("second trip = %+v, want pnl 100 over 2 bars", trips[1])
	}
}

func TestComputeMetricsTradeStats(t *testing.T) {
	base := time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)
	curve := curveOf(100_000, 100_500, 99_800, 100_200)
	day := func(i int) time.Time { return base.AddDate(0, 0, i) }

	fills := []models.Fill{
		{Date: day(0), Symbol: "600000", Side: models.Buy, Shares: 100, Price: 10, GrossAmount: 1000},
		{Date: day(1), Symbol: "600000", Side: models.Sell, Shares: 100, Price: 11, GrossAmount: 1100},
		{Date: day(2), Symbol: "600000", Side: models.Buy, Shares: 100, Price: 10, GrossAmount: 1000},
		{Date: day(3), Symbol: "600000", Side: models.Sell, Shares: 100, Price: 9, GrossAmount: 900},
	}

	m := computeMetrics(curve, fills, 0)
	if m.RoundTrips != 2 {
		t.Fatalf("round trips = %d, want 2", m.RoundTrips)
	}
	if m.WinRate == nil || *m.WinRate != 0.5 {
		t.Errorf("win rate = %v, want 0.5", m.WinRate)
	}
	if m.ProfitFactor == nil || *m.ProfitFactor != 1.0 {
		t.Errorf("profit factor = %v, want 1.0 (+100 / -100)", m.ProfitFactor)
	}
	if m.AvgHoldingPeriod == nil || *m.AvgHoldingPeriod != 1.0 {
		t.Errorf("avg holding = %v, want 1 bar", m.AvgHoldingPeriod)
	}
	if m.Turnover == nil || *m.Turnover <= 0 {
		t.Errorf("turnover = %v, want positive", m.Turnover)
	}
}
