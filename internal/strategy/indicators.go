// Package strategy hosts the signal-generating strategies, the technical
// indicators they consume, the strategy registry, and the multi-strategy
// signal combiners. Strategies and indicators are pure: signal i may
// consult bars[0..i] but never bars[i+1..].
package strategy

import (
	"math"

	"github.com/qinvest/stocksim/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Indicators — pure per-series transforms
// ════════════════════════════════════════════════════════════════════

// SMA calculates the Simple Moving Average for the given period.
// Entries before index period-1 are zero (warm-up).
func SMA(data []float64, period int) []float64 {
	n := len(data)
	if n < period || period <= 0 {
		return nil
	}

	result := make([]float64, n)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < n; i++ {
		sum += data[i] - data[i-period]
		result[i] = sum / float64(period)
	}
	return result
}

// EMA calculates the Exponential Moving Average for the given period.
// The first value seeds with the raw price; multiplier is 2/(period+1).
func EMA(data []float64, period int) []float64 {
	n := len(data)
	if n == 0 || period <= 0 {
		return nil
	}

	result := make([]float64, n)
	mult := 2.0 / float64(period+1)
	result[0] = data[0]
	for i := 1; i < n; i++ {
		result[i] = (data[i]-result[i-1])*mult + result[i-1]
	}
	return result
}

// MACDPoint holds one MACD computation point.
type MACDPoint struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates Moving Average Convergence Divergence.
// Defaults: fast=12, slow=26, signal=9.
func MACD(data []float64, fast, slow, signal int) []MACDPoint {
	if fast <= 0 {
		fast = 12
	}
	if slow <= 0 {
		slow = 26
	}
	if signal <= 0 {
		signal = 9
	}
	n := len(data)
	if n < slow {
		return nil
	}

	fastEMA := EMA(data, fast)
	slowEMA := EMA(data, slow)

	macdLine := make([]float64, n)
	for i := 0; i < n; i++ {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMA(macdLine, signal)

	result := make([]MACDPoint, n)
	for i := 0; i < n; i++ {
		result[i] = MACDPoint{
			MACD:      macdLine[i],
			Signal:    signalLine[i],
			Histogram: macdLine[i] - signalLine[i],
		}
	}
	return result
}

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// Default period is 14. Values range 0–100; warm-up entries are zero.
func RSI(data []float64, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	n := len(data)
	if n < period+1 {
		return nil
	}

	rsi := make([]float64, n)
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := data[i] - data[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	rsi[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < n; i++ {
		change := data[i] - data[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		rsi[i] = rsiValue(avgGain, avgLoss)
	}
	return rsi
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// BollingerPoint holds one Bollinger Bands computation point.
type BollingerPoint struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger calculates Bollinger Bands. Defaults: period=20, mult=2.
func Bollinger(data []float64, period int, mult float64) []BollingerPoint {
	if period <= 0 {
		period = 20
	}
	if mult <= 0 {
		mult = 2.0
	}
	n := len(data)
	if n < period {
		return nil
	}

	sma := SMA(data, period)
	result := make([]BollingerPoint, n)
	for i := period - 1; i < n; i++ {
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := data[j] - sma[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		result[i] = BollingerPoint{
			Upper:  sma[i] + mult*sd,
			Middle: sma[i],
			Lower:  sma[i] - mult*sd,
		}
	}
	return result
}

// KDJPoint holds one KDJ stochastic computation point.
type KDJPoint struct {
	K float64
	D float64
	J float64
}

// KDJ calculates the KDJ stochastic oscillator over OHLC bars.
// Defaults: period=9 with 1/3 smoothing on K and D; J = 3K − 2D.
func KDJ(bars []models.Bar, period int) []KDJPoint {
	if period <= 0 {
		period = 9
	}
	n := len(bars)
	if n < period {
		return nil
	}

	result := make([]KDJPoint, n)
	k, d := 50.0, 50.0
	for i := period - 1; i < n; i++ {
		hi, lo := bars[i].High, bars[i].Low
		for j := i - period + 1; j < i; j++ {
			hi = math.Max(hi, bars[j].High)
			lo = math.Min(lo, bars[j].Low)
		}

		rsv := 50.0
		if hi > lo {
			rsv = (bars[i].Close - lo) / (hi - lo) * 100
		}
		k = k*2/3 + rsv/3
		d = d*2/3 + k/3
		result[i] = KDJPoint{K: k, D: d, J: 3*k - 2*d}
	}
	return result
}

// Closes extracts the close series from a bar slice.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
