package models

import "fmt"

// ErrorKind is the tagged failure category surfaced at the run boundary.
type ErrorKind string

const (
	ErrInvalidConfig      ErrorKind = "INVALID_CONFIG"
	ErrUnknownSymbol      ErrorKind = "UNKNOWN_SYMBOL"
	ErrNoData             ErrorKind = "NO_DATA"
	ErrAdapterUnavailable ErrorKind = "ADAPTER_UNAVAILABLE"
	ErrCancelled          ErrorKind = "CANCELLED"
	ErrInternal           ErrorKind = "INTERNAL"
)

// RunError is a tagged run-level failure.
type RunError struct {
	Kind   ErrorKind
	Detail string
}

func (e *RunError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewRunError builds a tagged run error with a formatted detail message.
func NewRunError(kind ErrorKind, format string, args ...any) *RunError {
	return &RunError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// RunConfig carries everything a single backtest run needs.
// StartDate and EndDate are inclusive, formatted YYYYMMDD.
type RunConfig struct {
	Symbol         string         `json:"symbol"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
	InitialCapital float64        `json:"initial_capital"`
	SlippageBps    *float64       `json:"slippage_bps,omitempty"` // nil applies the engine default; 0 disables slippage
	Adjust         Adjust         `json:"adjust,omitempty"`
	StrategyIDs    []string       `json:"strategy_ids"`
	Combiner       string         `json:"combiner,omitempty"` // AND | OR | VOTE | WEIGHTED
	VoteThreshold  int            `json:"vote_threshold,omitempty"`
	Weights        []float64      `json:"weights,omitempty"`
	WeightCutoff   float64        `json:"weight_cutoff,omitempty"`
	StrategyParams map[string]any `json:"strategy_params,omitempty"`
	Risk           RiskConfig     `json:"risk,omitempty"`
	ChannelHint    Channel        `json:"channel_hint,omitempty"`
	RiskFreeRate   float64        `json:"risk_free_rate,omitempty"` // annual, for Sharpe/Sortino
	Seed           int64          `json:"seed,omitempty"`           // reserved, unused today
}

// Metrics is the derived performance summary of a run. Ratio fields whose
// denominator was zero are nil and serialize as JSON null, never NaN or Inf.
type Metrics struct {
	TotalReturn         float64  `json:"total_return"`
	CAGR                *float64 `json:"cagr"`
	Volatility          *float64 `json:"volatility"`
	MaxDrawdown         float64  `json:"max_drawdown"` // negative or zero
	MaxDrawdownDuration int      `json:"max_drawdown_duration"`
	Sharpe              *float64 `json:"sharpe"`
	Sortino             *float64 `json:"sortino"`
	Calmar              *float64 `json:"calmar"`
	RoundTrips          int      `json:"round_trips"`
	WinRate             *float64 `json:"win_rate"`
	ProfitFactor        *float64 `json:"profit_factor"`
	AvgHoldingPeriod    *float64 `json:"avg_holding_period"` // bars
	Turnover            *float64 `json:"turnover"`
}

// RunMetadata is the bookkeeping attached to every result.
type RunMetadata struct {
	ExecutionTimeMs          int64       `json:"execution_time_ms"`
	AdapterUsed              string      `json:"adapter_used"`
	AdapterSwitchedDuringRun bool        `json:"adapter_switched_during_run"`
	Cancelled                bool        `json:"cancelled"`
	RiskEvents               []RiskEvent `json:"risk_events"`
}

// RunResult is the final assembly returned by the orchestrator.
type RunResult struct {
	RunID         string         `json:"run_id"`
	EngineVersion string         `json:"engine_version"`
	ConfigEcho    RunConfig      `json:"config_echo"`
	Metrics       Metrics        `json:"metrics"`
	Fills         []Fill         `json:"fills"`
	EquityCurve   []EquitySample `json:"equity_curve"`
	RiskEvents    []RiskEvent    `json:"risk_events"`
	Metadata      RunMetadata    `json:"metadata"`
}
