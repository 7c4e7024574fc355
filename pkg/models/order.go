package models

import "time"

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderOrigin records who asked for an order.
type OrderOrigin string

const (
	OriginStrategy   OrderOrigin = "STRATEGY"
	OriginForcedExit OrderOrigin = "FORCED_EXIT"
)

// Forced-exit and strategy reasons attached to orders and fills.
const (
	ReasonStopLoss           = "STOP_LOSS"
	ReasonStopProfit         = "STOP_PROFIT"
	ReasonDrawdownProtection = "DRAWDOWN_PROTECTION"
	ReasonStrategyBuy        = "STRATEGY_BUY"
	ReasonStrategySell       = "STRATEGY_SELL"
)

// Order is a pending trade intention. Orders are ephemeral: they exist
// between signal consumption and matching and are never stored afterwards.
type Order struct {
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Shares         int64       `json:"shares"`
	ReferencePrice float64     `json:"reference_price"`
	Origin         OrderOrigin `json:"origin"`
	Reason         string      `json:"reason,omitempty"`
}

// NoFillReason tags why the matching engine declined an accepted order.
type NoFillReason string

const (
	NoFillSuspended        NoFillReason = "SUSPENDED"
	NoFillLimitUp          NoFillReason = "LIMIT_UP"
	NoFillLimitDown        NoFillReason = "LIMIT_DOWN"
	NoFillLotTooSmall      NoFillReason = "LOT_TOO_SMALL"
	NoFillInsufficientCash NoFillReason = "INSUFFICIENT_CASH"
)

// Order-rejection reasons raised before matching.
const (
	RejectSettlementBlocked = "SETTLEMENT_BLOCKED"
	RejectPositionCap       = "POSITION_CAP"
	RejectExposureCap       = "EXPOSURE_CAP"
	RejectNotAuthorized     = "NOT_AUTHORIZED"
	RejectLotSize           = "LOT_SIZE"
)

// CommissionBreakdown itemizes the transaction costs of one fill.
// All values are rounded to the market currency's minor unit.
type CommissionBreakdown struct {
	Broker      float64 `json:"broker"`
	StampTax    float64 `json:"stamp_tax"`
	TransferFee float64 `json:"transfer_fee"`
	ChannelFee  float64 `json:"channel_fee"`
	Total       float64 `json:"total"`
}

// Fill is the durable record of an executed trade.
type Fill struct {
	Date         time.Time           `json:"date"`
	Symbol       string              `json:"symbol"`
	Side         OrderSide           `json:"side"`
	Shares       int64               `json:"shares"`
	Price        float64             `json:"price"`
	GrossAmount  float64             `json:"gross_amount"`
	Commission   CommissionBreakdown `json:"commission"`
	NetCashDelta float64             `json:"net_cash_delta"` // signed: sell is a credit
	Reason       string              `json:"reason,omitempty"`
}
