package rules

import (
	"fmt"
	"strings"

	"github.com/qinvest/stocksim/pkg/models"
	"github.com/qinvest/stocksim/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Ruleset — composed (market, board, channel) trading rules
// ════════════════════════════════════════════════════════════════════

// Ruleset is the immutable composition of the three rule layers for one
// trading environment. Instances are created by the Registry and cached
// by environment key; they are safe for concurrent use.
type Ruleset struct {
	env     models.TradingEnvironment
	market  MarketConfig
	board   BoardConfig
	channel ChannelConfig
}

// Environment returns the environment this ruleset was composed for.
func (r *Ruleset) Environment() models.TradingEnvironment { return r.env }

// LotSize returns the minimum tradable share multiple.
func (r *Ruleset) LotSize() int64 {
	if r.board.LotSize <= 0 {
		return 1
	}
	return r.board.LotSize
}

// Currency returns the settlement currency code.
func (r *Ruleset) Currency() string { return r.market.Currency }

// CashDecimals returns the rounding precision for cash amounts:
// two decimals for CNY, four for other currencies.
func (r *Ruleset) CashDecimals() int {
	if r.market.Currency == "CNY" {
		return 2
	}
	return 4
}

// RoundCash rounds v half away from zero at the market's cash precision.
func (r *Ruleset) RoundCash(v float64) float64 {
	return utils.RoundTo(v, r.CashDecimals())
}

// SettlementHorizon returns the trading T+N horizon: the number of trading
// days after a buy before the position may be sold. Channel overrides win.
func (r *Ruleset) SettlementHorizon() int {
	if o := r.channel.TradingRules.Overrides.SettlementPeriod; o != nil {
		return *o
	}
	return r.market.SettlementPeriod
}

// CashSettlementHorizon returns the cash T+N horizon. It is informational
// for daily simulation; sell eligibility uses SettlementHorizon.
func (r *Ruleset) CashSettlementHorizon() int {
	if o := r.channel.TradingRules.Overrides.CashSettlementPeriod; o != nil {
		return *o
	}
	return r.market.SettlementPeriod
}

// ────────────────────────────────────────────────────────────────────
// Price limits
// ────────────────────────────────────────────────────────────────────

// Limits holds the absolute daily price bounds. A nil field means no
// bound in that direction.
type Limits struct {
	Upper *float64
	Lower *float64
}

// PriceLimits computes the daily price bounds from the previous close.
// ipoAgeDays counts trading days since listing (0 = listing day); pass a
// negative value when unknown, which disables the IPO exception window.
func (r *Ruleset) PriceLimits(prevClose float64, ipoAgeDays int) Limits {
	pcts := r.board.PriceLimits.Default
	if exc := r.board.PriceLimits.IPOException; exc != nil && ipoAgeDays >= 0 && ipoAgeDays < exc.FirstNDays {
		pcts = LimitPcts{UpLimitPct: exc.UpLimitPct, DownLimitPct: exc.DownLimitPct}
	}

	var lim Limits
	if pcts.UpLimitPct != nil {
		up := r.RoundCash(prevClose * (1 + *pcts.UpLimitPct/100))
		lim.Upper = &up
	}
	if pcts.DownLimitPct != nil {
		down := r.RoundCash(prevClose * (1 - *pcts.DownLimitPct/100))
		lim.Lower = &down
	}
	return lim
}

// ────────────────────────────────────────────────────────────────────
// Commission
// ────────────────────────────────────────────────────────────────────

// Commission computes the full fee breakdown for a trade of the given
// gross amount. Every component is rounded to the currency minor unit.
func (r *Ruleset) Commission(side models.OrderSide, gross float64, info models.StockInfo) models.CommissionBreakdown {
	c := r.market.Commission
	var b models.CommissionBreakdown

	if c.BrokerRate > 0 || c.MinBrokerFee > 0 {
		fee := gross * c.BrokerRate
		if fee < c.MinBrokerFee {
			fee = c.MinBrokerFee
		}
		b.Broker = r.RoundCash(fee)
	}

	// CN stamp tax is charged on the sell side only; other markets that
	// levy stamp duty charge it per side.
	if c.StampTaxRate > 0 {
		if r.env.Market != models.MarketCN || side == models.Sell {
			b.StampTax = r.RoundCash(gross * c.StampTaxRate)
		}
	}

	// Transfer fee applies to Shanghai listings only.
	if c.TransferFeeRate > 0 && isShanghai(info) {
		b.TransferFee = r.RoundCash(gross * c.TransferFeeRate)
	}

	if rate := r.channel.Commission.Additional.ConversionFeeRate; rate > 0 {
		b.ChannelFee = r.RoundCash(gross * rate)
	}

	b.Total = r.RoundCash(b.Broker + b.StampTax + b.TransferFee + b.ChannelFee)
	return b
}

// isShanghai reports whether a stock settles through the Shanghai exchange.
func isShanghai(info models.StockInfo) bool {
	switch strings.ToUpper(info.Exchange) {
	case "SSE", "SH", "SHANGHAI":
		return true
	}
	return strings.HasPrefix(info.Symbol, "6")
}

// ────────────────────────────────────────────────────────────────────
// Order validation
// ────────────────────────────────────────────────────────────────────

// OrderContext carries per-run validation inputs that are not part of the
// order itself.
type OrderContext struct {
	Authorized bool // board authorization granted for this account
}

// Decision is the tagged outcome of an order-side validation.
type Decision struct {
	Accepted bool
	Reason   string
	Detail   string
}

func accept() Decision { return Decision{Accepted: true} }

func reject(reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ValidateOrder runs all layers' order-side checks: board authorization,
// suspension, lot-size multiples on buys, and the T+N settlement horizon
// on sells. The first failing check rejects.
func (r *Ruleset) ValidateOrder(order models.Order, portfolio *models.Portfolio, bar models.Bar, ctx OrderContext) Decision {
	if r.board.AuthorizationRequired && !ctx.Authorized {
		return reject(models.RejectNotAuthorized, "board %s requires trading authorization", r.env.Board)
	}

	if bar.Suspended || bar.Volume == 0 {
		return reject(string(models.NoFillSuspended), "no trading on %s", bar.Date.Format("2006-01-02"))
	}

	if order.Shares <= 0 {
		return reject(models.RejectLotSize, "order shares must be positive")
	}

	switch order.Side {
	case models.Buy:
		if order.Shares < r.LotSize() {
			return reject(models.RejectLotSize, "buy of %d shares is below lot size %d", order.Shares, r.LotSize())
		}
	case models.Sell:
		pos := portfolio.Position(order.Symbol)
		if pos == nil || pos.Shares <= 0 {
			return reject(models.RejectLotSize, "no position in %s to sell", order.Symbol)
		}
		if r.SettlementHorizon() >= 1 && !pos.AcquiredOn.Before(bar.Date) {
			return reject(models.RejectSettlementBlocked,
				"position acquired %s is not sellable until T+%d",
				pos.AcquiredOn.Format("2006-01-02"), r.SettlementHorizon())
		}
	}

	return accept()
}
