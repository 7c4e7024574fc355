package engine

import (
	"math"

	"github.com/qinvest/stocksim/pkg/models"
	"github.com/qinvest/stocksim/pkg/utils"
)

const tradingDaysPerYear = 252

// computeMetrics derives the performance summary from the final equity
// series and fill log. Ratios with a zero denominator come back nil and
// serialize as JSON null.
func computeMetrics(curve []models.EquitySample, fills []models.Fill, riskFreeRate float64) models.Metrics {
	var m models.Metrics
	if len(curve) == 0 || curve[0].Equity <= 0 {
		return m
	}

	first, last := curve[0].Equity, curve[len(curve)-1].Equity
	m.TotalReturn = last/first - 1

	n := float64(len(curve))
	if growth := last / first; growth > 0 {
		m.CAGR = utils.Float64Ptr(math.Pow(growth, tradingDaysPerYear/n) - 1)
	}

	returns := dailyReturns(curve)
	if sd := stdev(returns); sd > 0 {
		m.Volatility = utils.Float64Ptr(sd * math.Sqrt(tradingDaysPerYear))

		dailyRF := riskFreeRate / tradingDaysPerYear
		m.Sharpe = utils.Float64Ptr((mean(returns) - dailyRF) / sd * math.Sqrt(tradingDaysPerYear))
	}
	m.Sortino = sortino(returns, riskFreeRate)

	m.MaxDrawdown, m.MaxDrawdownDuration = drawdown(curve)
	if m.CAGR != nil && m.MaxDrawdown < 0 {
		m.Calmar = utils.Float64Ptr(*m.CAGR / math.Abs(m.MaxDrawdown))
	}

	trips := pairRoundTrips(fills, curve)
	m.RoundTrips = len(trips)
	if len(trips) > 0 {
		wins, holding := 0, 0.0
		var gains, losses float64
		for _, tr := range trips {
			if tr.pnl > 0 {
				wins++
				gains += tr.pnl
			} else {
				losses += -tr.pnl
			}
			holding += float64(tr.holdingBars)
		}
		m.WinRate = utils.Float64Ptr(float64(wins) / float64(len(trips)))
		if losses > 0 {
			m.ProfitFactor = utils.Float64Ptr(gains / losses)
		}
		m.AvgHoldingPeriod = utils.Float64Ptr(holding / float64(len(trips)))
	}

	if avg := mean(equities(curve)); avg > 0 {
		var traded float64
		for _, f := range fills {
			traded += math.Abs(f.GrossAmount)
		}
		years := n / tradingDaysPerYear
		if years > 0 && traded > 0 {
			m.Turnover = utils.Float64Ptr(traded / (2 * avg) / years)
		}
	}
	return m
}

func dailyReturns(curve []models.EquitySample) []float64 {
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Equity > 0 {
			out = append(out, curve[i].Equity/curve[i-1].Equity-1)
		}
	}
	return out
}

func equities(curve []models.EquitySample) []float64 {
	out := make([]float64, len(curve))
	for i, s := range curve {
		out[i] = s.Equity
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// sortino divides excess return by the deviation of the negative returns
// only; it is nil when no down days exist.
func sortino(returns []float64, riskFreeRate float64) *float64 {
	var downs []float64
	for _, r := range returns {
		if r < 0 {
			downs = append(downs, r)
		}
	}
	if len(downs) == 0 {
		return nil
	}
	ss := 0.0
	for _, r := range downs {
		ss += r * r
	}
	dd := math.Sqrt(ss / float64(len(returns)))
	if dd == 0 {
		return nil
	}
	dailyRF := riskFreeRate / tradingDaysPerYear
	return utils.Float64Ptr((mean(returns) - dailyRF) / dd * math.Sqrt(tradingDaysPerYear))
}

// drawdown returns the deepest peak-to-trough decline (negative or zero)
// and the longest stretch of bars spent below a prior peak.
func drawdown(curve []models.EquitySample) (float64, int) {
	maxDD := 0.0
	peak := curve[0].Equity
	longest, current := 0, 0
	for _, s := range curve {
		if s.Equity >= peak {
			peak = s.Equity
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
		if dd := (s.Equity - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD, longest
}

// roundTrip is one FIFO-matched block of bought-then-sold shares.
type roundTrip struct {
	pnl         float64
	holdingBars int
}

type buyLot struct {
	shares   int64
	cost     float64 // per-share cost including allocated commission
	barIndex int
}

// pairRoundTrips matches sell fills against the oldest open buy lots of
// the same symbol. Holding periods are measured in bars of the equity
// curve, commissions are allocated per share on both legs.
func pairRoundTrips(fills []models.Fill, curve []models.EquitySample) []roundTrip {
	barIndex := make(map[int64]int, len(curve))
	for i, s := range curve {
		barIndex[s.Date.Unix()] = i
	}

	open := make(map[string][]buyLot)
	var trips []roundTrip

	for _, f := range fills {
		idx := barIndex[f.Date.Unix()]
		switch f.Side {
		case models.Buy:
			perShare := (f.GrossAmount + f.Commission.Total) / float64(f.Shares)
			open[f.Symbol] = append(open[f.Symbol], buyLot{shares: f.Shares, cost: perShare, barIndex: idx})
		case models.Sell:
			remaining := f.Shares
			perShare := (f.GrossAmount - f.Commission.Total) / float64(f.Shares)
			lots := open[f.Symbol]
			for remaining > 0 && len(lots) > 0 {
				lot := &lots[0]
				matched := lot.shares
				if matched > remaining {
					matched = remaining
				}
				trips = append(trips, roundTrip{
					pnl:         float64(matched) * (perShare - lot.cost),
					holdingBars: idx - lot.barIndex,
				})
				lot.shares -= matched
				remaining -= matched
				if lot.shares == 0 {
					lots = lots[1:]
				}
			}
			open[f.Symbol] = lots
		}
	}

	return trips
}
