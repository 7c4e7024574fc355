// Package matching turns accepted orders into fills under the governing
// ruleset's price-limit, suspension, slippage, and lot constraints. The
// matcher is stateless: all portfolio effects are applied by the caller.
package matching

import (
	"math"

	"github.com/qinvest/stocksim/internal/rules"
	"github.com/qinvest/stocksim/pkg/models"
)

// limitEpsilon is the relative tolerance used both for detecting a locked
// limit board (close pinned at the limit) and for float comparisons against
// rounded limit prices.
const limitEpsilon = 1e-4

// DefaultSlippageBps is applied when the caller leaves slippage unset.
const DefaultSlippageBps = 5.0

// Options tunes one matching attempt.
type Options struct {
	SlippageBps float64 // basis points; negative means "use default"

	// IPOAgeDays feeds the ruleset's IPO price-limit exception. Negative
	// when the listing date is unknown.
	IPOAgeDays int

	// FirstBar disables price-limit checks: the symbol's first bar has no
	// meaningful prev_close.
	FirstBar bool

	// Cash bounds BUY fills. Ignored for sells.
	Cash float64

	Info models.StockInfo
}

// Result is the outcome of one matching attempt: either a fill or a
// tagged no-fill reason.
type Result struct {
	Filled bool
	Fill   models.Fill
	Reason models.NoFillReason
}

func noFill(reason models.NoFillReason) Result {
	return Result{Reason: reason}
}

// Match executes an accepted order against one bar. At most one fill is
// produced; the caller applies it to the portfolio.
func Match(order models.Order, bar models.Bar, rs *rules.Ruleset, opts Options) Result {
	if bar.Suspended || bar.Volume == 0 {
		return noFill(models.NoFillSuspended)
	}

	slip := opts.SlippageBps
	if slip < 0 {
		slip = DefaultSlippageBps
	}

	ref := order.ReferencePrice
	var price float64
	if order.Side == models.Buy {
		price = ref * (1 + slip/10_000)
	} else {
		price = ref * (1 - slip/10_000)
	}

	if !opts.FirstBar {
		limits := rs.PriceLimits(bar.PrevClose, opts.IPOAgeDays)
		if order.Side == models.Buy && limits.Upper != nil {
			upper := *limits.Upper
			// A board locked at limit-up has no sellers: the raw touch of
			// the limit is not enough, the close must be pinned there too.
			if price >= upper && bar.Close >= upper*(1-limitEpsilon) {
				return noFill(models.NoFillLimitUp)
			}
			if price > upper {
				price = upper
			}
		}
		if order.Side == models.Sell && limits.Lower != nil {
			lower := *limits.Lower
			if price <= lower && bar.Close <= lower*(1+limitEpsilon) {
				return noFill(models.NoFillLimitDown)
			}
			if price < lower {
				price = lower
			}
		}
	}

	lot := rs.LotSize()
	shares := order.Shares / lot * lot
	if shares <= 0 {
		return noFill(models.NoFillLotTooSmall)
	}

	if order.Side == models.Buy {
		shares = clipToCash(shares, lot, price, opts.Cash, rs, opts.Info)
		if shares <= 0 {
			return noFill(models.NoFillInsufficientCash)
		}
	}

	gross := rs.RoundCash(float64(shares) * price)
	commission := rs.Commission(order.Side, gross, opts.Info)

	net := gross + commission.Total
	if order.Side == models.Buy {
		net = -net
	} else {
		net = gross - commission.Total
	}

	return Result{
		Filled: true,
		Fill: models.Fill{
			Date:         bar.Date,
			Symbol:       order.Symbol,
			Side:         order.Side,
			Shares:       shares,
			Price:        price,
			GrossAmount:  gross,
			Commission:   commission,
			NetCashDelta: rs.RoundCash(net),
			Reason:       order.Reason,
		},
	}
}

// clipToCash reduces a BUY to the largest lot-multiple whose gross plus
// commission fits in the available cash.
func clipToCash(shares, lot int64, price, cash float64, rs *rules.Ruleset, info models.StockInfo) int64 {
	for shares > 0 {
		gross := rs.RoundCash(float64(shares) * price)
		total := gross + rs.Commission(models.Buy, gross, info).Total
		if total <= cash {
			return shares
		}
		// Jump straight to the affordable neighbourhood instead of
		// stepping one lot at a time for deeply oversized orders.
		affordable := int64(math.Floor(cash/price)) / lot * lot
		if affordable < shares {
			shares = affordable
		} else {
			shares -= lot
		}
	}
	return 0
}
