package models

import "time"

// RiskConfig holds the optional risk limits for a run. A zero value for
// any field disables that check.
type RiskConfig struct {
	MaxPositionPct   float64 `json:"max_position_pct,omitempty"`   // single-name cap as fraction of equity, (0,1]
	MaxTotalExposure float64 `json:"max_total_exposure,omitempty"` // gross exposure cap as fraction of equity, (0,1]
	StopLossPct      float64 `json:"stop_loss_pct,omitempty"`      // per-position stop loss, (0,1)
	StopProfitPct    float64 `json:"stop_profit_pct,omitempty"`    // per-position stop profit, > 0
	MaxDrawdownPct   float64 `json:"max_drawdown_pct,omitempty"`   // portfolio drawdown protection, (0,1)
}

// RiskEventKind is the category of a risk audit record.
type RiskEventKind string

const (
	EventOrderRejected RiskEventKind = "ORDER_REJECTED"
	EventForcedExit    RiskEventKind = "FORCED_EXIT"
)

// RiskEvent is a structured audit record appended to run metadata.
// The core attaches these to the result instead of logging; callers
// choose how to persist them.
type RiskEvent struct {
	Date    time.Time     `json:"date"`
	Kind    RiskEventKind `json:"kind"`
	Subkind string        `json:"subkind"` // e.g. STOP_LOSS, LIMIT_UP, SETTLEMENT_BLOCKED
	Symbol  string        `json:"symbol"`
	Detail  string        `json:"detail,omitempty"`
}
