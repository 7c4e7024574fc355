package strategy

import (
	"github.com/qinvest/stocksim/pkg/models"
)

// Builtins returns the built-in strategy set.
func Builtins() []Strategy {
	return []Strategy{
		&MACross{},
		&MACDCross{},
		&RSIReversion{},
		&BollingerReversion{},
		&KDJCross{},
	}
}

func intSpec(name string, def int, min, max float64, desc string) ParamSpec {
	return ParamSpec{Name: name, Kind: ParamInteger, Default: def, Min: &min, Max: &max, Description: desc}
}

func floatSpec(name string, def, min, max float64, desc string) ParamSpec {
	return ParamSpec{Name: name, Kind: ParamFloat, Default: def, Min: &min, Max: &max, Description: desc}
}

// ────────────────────────────────────────────────────────────────────
// 1. Dual moving-average crossover
// ────────────────────────────────────────────────────────────────────

// MACross buys when the fast SMA crosses above the slow SMA and sells on
// the opposite cross.
type MACross struct{}

func (s *MACross) ID() string   { return "ma_cross" }
func (s *MACross) Name() string { return "MA Crossover" }

func (s *MACross) ParamSpecs() []ParamSpec {
	return []ParamSpec{
		intSpec("fast", 5, 2, 120, "fast SMA period"),
		intSpec("slow", 20, 3, 250, "slow SMA period"),
	}
}

func (s *MACross) GenerateSignals(bars []models.Bar, params Params) ([]models.Signal, error) {
	specs := s.ParamSpecs()
	fast, slow := params.Int(specs[0]), params.Int(specs[1])
	if fast >= slow {
		return nil, models.NewRunError(models.ErrInvalidConfig, "ma_cross: fast %d must be below slow %d", fast, slow)
	}

	signals := make([]models.Signal, len(bars))
	closes := Closes(bars)
	fastMA := SMA(closes, fast)
	slowMA := SMA(closes, slow)
	if fastMA == nil || slowMA == nil {
		return signals, nil
	}

	for i := slow; i < len(bars); i++ {
		crossUp := fastMA[i-1] <= slowMA[i-1] && fastMA[i] > slowMA[i]
		crossDown := fastMA[i-1] >= slowMA[i-1] && fastMA[i] < slowMA[i]
		signals[i] = models.Signal{Buy: crossUp, Sell: crossDown}
	}
	return signals, nil
}

// AnalyzeCurrent reports the spread between the two averages and how close
// the fast average is to crossing.
func (s *MACross) AnalyzeCurrent(bars []models.Bar, params Params) (SignalAnalysis, error) {
	specs := s.ParamSpecs()
	fast, slow := params.Int(specs[0]), params.Int(specs[1])

	closes := Closes(bars)
	fastMA := SMA(closes, fast)
	slowMA := SMA(closes, slow)
	if fastMA == nil || slowMA == nil {
		return SignalAnalysis{Status: "insufficient_data"}, nil
	}

	f, sl := fastMA[len(fastMA)-1], slowMA[len(slowMA)-1]
	spread := 0.0
	if sl != 0 {
		spread = (f - sl) / sl
	}

	a := SignalAnalysis{
		Indicators: map[string]float64{"fast_ma": f, "slow_ma": sl, "spread": spread},
	}
	switch {
	case spread > 0:
		a.Status = "bullish"
		a.Suggestion = "fast average above slow; hold or add on pullbacks"
	case spread < 0:
		a.Status = "bearish"
		a.Suggestion = "fast average below slow; avoid new longs"
	default:
		a.Status = "neutral"
	}
	// Proximity decays with spread magnitude: at the cross it is 1.
	a.Proximity = 1 / (1 + 100*abs(spread))
	return a, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ────────────────────────────────────────────────────────────────────
// 2. MACD histogram crossover
// ────────────────────────────────────────────────────────────────────

// MACDCross buys when the MACD histogram turns positive and sells when it
// turns negative.
type MACDCross struct{}

func (s *MACDCross) ID() string   { return "macd" }
func (s *MACDCross) Name() string { return "MACD Crossover" }

func (s *MACDCross) ParamSpecs() []ParamSpec {
	return []ParamSpec{
		intSpec("fast", 12, 2, 120, "fast EMA period"),
		intSpec("slow", 26, 3, 250, "slow EMA period"),
		intSpec("signal", 9, 2, 60, "signal EMA period"),
	}
}

func (s *MACDCross) GenerateSignals(bars []models.Bar, params Params) ([]models.Signal, error) {
	specs := s.ParamSpecs()
	fast, slow, sig := params.Int(specs[0]), params.Int(specs[1]), params.Int(specs[2])
	if fast >= slow {
		return nil, models.NewRunError(models.ErrInvalidConfig, "macd: fast %d must be below slow %d", fast, slow)
	}

	signals := make([]models.Signal, len(bars))
	points := MACD(Closes(bars), fast, slow, sig)
	if points == nil {
		return signals, nil
	}

	for i := slow; i < len(bars); i++ {
		signals[i] = models.Signal{
			Buy:  points[i-1].Histogram <= 0 && points[i].Histogram > 0,
			Sell: points[i-1].Histogram >= 0 && points[i].Histogram < 0,
		}
	}
	return signals, nil
}

// ────────────────────────────────────────────────────────────────────
// 3. RSI mean reversion
// ────────────────────────────────────────────────────────────────────

// RSIReversion buys when RSI recovers up through the oversold floor and
// sells when it falls back through the overbought ceiling.
type RSIReversion struct{}

func (s *RSIReversion) ID() string   { return "rsi_reversion" }
func (s *RSIReversion) Name() string { return "RSI Mean Reversion" }

func (s *RSIReversion) ParamSpecs() []ParamSpec {
	return []ParamSpec{
		intSpec("period", 14, 2, 120, "RSI lookback period"),
		floatSpec("oversold", 30, 1, 50, "oversold floor"),
		floatSpec("overbought", 70, 50, 99, "overbought ceiling"),
	}
}

func (s *RSIReversion) GenerateSignals(bars []models.Bar, params Params) ([]models.Signal, error) {
	specs := s.ParamSpecs()
	period := params.Int(specs[0])
	oversold, overbought := params.Float(specs[1]), params.Float(specs[2])
	if oversold >= overbought {
		return nil, models.NewRunError(models.ErrInvalidConfig,
			"rsi_reversion: oversold %.1f must be below overbought %.1f", oversold, overbought)
	}

	signals := make([]models.Signal, len(bars))
	rsi := RSI(Closes(bars), period)
	if rsi == nil {
		return signals, nil
	}

	for i := period + 1; i < len(bars); i++ {
		signals[i] = models.Signal{
			Buy:  rsi[i-1] < oversold && rsi[i] >= oversold,
			Sell: rsi[i-1] > overbought && rsi[i] <= overbought,
		}
	}
	return signals, nil
}

// ────────────────────────────────────────────────────────────────────
// 4. Bollinger band reversion
// ────────────────────────────────────────────────────────────────────

// BollingerReversion buys closes below the lower band and sells closes
// above the upper band.
type BollingerReversion struct{}

func (s *BollingerReversion) ID() string   { return "bollinger" }
func (s *BollingerReversion) Name() string { return "Bollinger Reversion" }

func (s *BollingerReversion) ParamSpecs() []ParamSpec {
	return []ParamSpec{
		intSpec("period", 20, 5, 250, "band period"),
		floatSpec("mult", 2.0, 0.5, 5, "standard-deviation multiplier"),
	}
}

func (s *BollingerReversion) GenerateSignals(bars []models.Bar, params Params) ([]models.Signal, error) {
	specs := s.ParamSpecs()
	period := params.Int(specs[0])
	mult := params.Float(specs[1])

	signals := make([]models.Signal, len(bars))
	bands := Bollinger(Closes(bars), period, mult)
	if bands == nil {
		return signals, nil
	}

	for i := period - 1; i < len(bars); i++ {
		signals[i] = models.Signal{
			Buy:  bars[i].Close < bands[i].Lower,
			Sell: bars[i].Close > bands[i].Upper,
		}
	}
	return signals, nil
}

// ────────────────────────────────────────────────────────────────────
// 5. KDJ stochastic crossover
// ────────────────────────────────────────────────────────────────────

// KDJCross buys the K/D golden cross in the oversold zone and sells the
// dead cross in the overbought zone.
type KDJCross struct{}

func (s *KDJCross) ID() string   { return "kdj" }
func (s *KDJCross) Name() string { return "KDJ Crossover" }

func (s *KDJCross) ParamSpecs() []ParamSpec {
	return []ParamSpec{
		intSpec("period", 9, 3, 60, "RSV lookback period"),
		floatSpec("oversold", 20, 1, 50, "oversold K threshold"),
		floatSpec("overbought", 80, 50, 99, "overbought K threshold"),
	}
}

func (s *KDJCross) GenerateSignals(bars []models.Bar, params Params) ([]models.Signal, error) {
	specs := s.ParamSpecs()
	period := params.Int(specs[0])
	oversold, overbought := params.Float(specs[1]), params.Float(specs[2])
	if oversold >= overbought {
		return nil, models.NewRunError(models.ErrInvalidConfig,
			"kdj: oversold %.1f must be below overbought %.1f", oversold, overbought)
	}

	signals := make([]models.Signal, len(bars))
	points := KDJ(bars, period)
	if points == nil {
		return signals, nil
	}

	for i := period; i < len(bars); i++ {
		goldenCross := points[i-1].K <= points[i-1].D && points[i].K > points[i].D
		deadCross := points[i-1].K >= points[i-1].D && points[i].K < points[i].D
		signals[i] = models.Signal{
			Buy:  goldenCross && points[i].K < oversold+30, // cross must start low
			Sell: deadCross && points[i].K > overbought-30,
		}
	}
	return signals, nil
}

// compile-time capability check
var _ SignalAnalyzer = (*MACross)(nil)
