// Package models holds the shared value types of the backtesting core:
// bars, orders, fills, portfolio state, risk configuration, and the run
// result envelope. Everything here is plain data with no behaviour beyond
// small derived accessors.
package models

import "time"

// Adjust selects the price-adjustment mode of a bar series.
type Adjust string

const (
	AdjustRaw Adjust = "raw"
	AdjustQFQ Adjust = "qfq" // forward-adjusted
	AdjustHFQ Adjust = "hfq" // backward-adjusted
)

// Bar is one daily OHLCV candle. PrevClose is the previous trading day's
// close, filled for every bar after a series' first.
type Bar struct {
	Date      time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	PrevClose float64   `json:"prev_close"`
	Suspended bool      `json:"suspended,omitempty"`
}

// StockInfo is the per-symbol metadata the rules layer consumes: the name
// drives the ST override, the exchange and IPO date drive fees and the
// new-listing price-limit exception. The exception window is measured in
// trading days since listing; the engine derives the count from the
// trading calendar.
type StockInfo struct {
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Exchange string    `json:"exchange,omitempty"` // e.g. "SSE", "SZSE"
	IPODate  time.Time `json:"ipo_date,omitempty"`
}
