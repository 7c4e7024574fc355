// Package engine orchestrates one backtest run: it resolves the trading
// environment, fetches bars through the failover selector, generates and
// combines strategy signals, and drives the per-bar state machine that
// produces fills, the equity curve, risk events, and the final metrics.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/qinvest/stocksim/internal/adapter"
	"github.com/qinvest/stocksim/internal/calendar"
	"github.com/qinvest/stocksim/internal/market"
	"github.com/qinvest/stocksim/internal/matching"
	"github.com/qinvest/stocksim/internal/risk"
	"github.com/qinvest/stocksim/internal/rules"
	"github.com/qinvest/stocksim/internal/strategy"
	"github.com/qinvest/stocksim/pkg/models"
	"github.com/qinvest/stocksim/pkg/utils"
)

// Version identifies the engine build recorded on every result.
const Version = "1.0.0"

// CalendarFunc supplies the trading calendar for a market over a date
// range. The engine consults it to vet fetched bars and to count trading
// days since listing for the IPO limit exception.
type CalendarFunc func(market models.Market, start, end time.Time) *calendar.Calendar

// Engine wires the backtesting core together. The registries are
// read-only after construction; each Run owns its portfolio, risk state,
// and fetch session, so runs may execute concurrently.
type Engine struct {
	selector   *adapter.Selector
	rules      *rules.Registry
	strategies *strategy.Registry
	calendars  CalendarFunc
}

// New builds an engine over the given selector and registries. The
// default calendar is the weekday generator; deployments with exchange
// holiday lists replace it via WithCalendar.
func New(sel *adapter.Selector, reg *rules.Registry, strat *strategy.Registry) *Engine {
	return &Engine{
		selector:   sel,
		rules:      reg,
		strategies: strat,
		calendars:  calendar.NewWeekday,
	}
}

// WithCalendar replaces the calendar source and returns the engine.
func (e *Engine) WithCalendar(fn CalendarFunc) *Engine {
	if fn != nil {
		e.calendars = fn
	}
	return e
}

// Run executes one backtest. Configuration and classification errors
// surface before the first bar; cancellation between bars yields a
// partial result with the cancelled flag set.
func (e *Engine) Run(ctx context.Context, cfg models.RunConfig) (*models.RunResult, error) {
	started := time.Now()

	start, end, err := validateConfig(&cfg)
	if err != nil {
		return nil, err
	}

	session := e.selector.Session()
	info, err := session.GetStockInfo(ctx, cfg.Symbol)
	if err != nil {
		return nil, err
	}

	env, err := market.Environment(cfg.Symbol, info, cfg.ChannelHint)
	if err != nil {
		return nil, err
	}
	rs, err := e.rules.ForEnvironment(env)
	if err != nil {
		return nil, err
	}

	bars, err := session.GetOHLCV(ctx, cfg.Symbol, start, end, cfg.Adjust)
	if err != nil {
		return nil, err
	}
	cal := e.calendars(env.Market, start, end)
	if err := vetBars(bars, cal); err != nil {
		return nil, err
	}

	signals, err := e.buildSignals(bars, cfg)
	if err != nil {
		return nil, err
	}

	run := newRunState(cfg, rs, info)
	if !info.IPODate.IsZero() && !end.Before(info.IPODate) {
		run.ipoCal = e.calendars(env.Market, info.IPODate, end)
	}
	cancelled := run.iterate(ctx, bars, signals)

	result := &models.RunResult{
		RunID:         uuid.NewString(),
		EngineVersion: Version,
		ConfigEcho:    cfg,
		Metrics:       computeMetrics(run.curve, run.fills, cfg.RiskFreeRate),
		Fills:         run.fills,
		EquityCurve:   run.curve,
		RiskEvents:    run.events,
		Metadata: models.RunMetadata{
			ExecutionTimeMs:          time.Since(started).Milliseconds(),
			AdapterUsed:              session.AdapterUsed(),
			AdapterSwitchedDuringRun: session.Switched(),
			Cancelled:                cancelled,
			RiskEvents:               run.events,
		},
	}
	return result, nil
}

// RunMany executes independent runs concurrently. Each run owns disjoint
// state; a failing run cancels the remainder.
func (e *Engine) RunMany(ctx context.Context, cfgs []models.RunConfig) ([]*models.RunResult, error) {
	results := make([]*models.RunResult, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range cfgs {
		g.Go(func() error {
			res, err := e.Run(gctx, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func validateConfig(cfg *models.RunConfig) (time.Time, time.Time, error) {
	var zero time.Time
	if cfg.Symbol == "" {
		return zero, zero, models.NewRunError(models.ErrInvalidConfig, "symbol is required")
	}
	if cfg.InitialCapital <= 0 {
		return zero, zero, models.NewRunError(models.ErrInvalidConfig, "initial capital must be positive, got %v", cfg.InitialCapital)
	}
	if cfg.SlippageBps != nil && *cfg.SlippageBps < 0 {
		return zero, zero, models.NewRunError(models.ErrInvalidConfig, "slippage cannot be negative")
	}
	if len(cfg.StrategyIDs) == 0 {
		return zero, zero, models.NewRunError(models.ErrInvalidConfig, "at least one strategy is required")
	}

	start, err := utils.ParseCompactDate(cfg.StartDate)
	if err != nil {
		return zero, zero, models.NewRunError(models.ErrInvalidConfig, "bad start date %q", cfg.StartDate)
	}
	end, err := utils.ParseCompactDate(cfg.EndDate)
	if err != nil {
		return zero, zero, models.NewRunError(models.ErrInvalidConfig, "bad end date %q", cfg.EndDate)
	}
	if end.Before(start) {
		return zero, zero, models.NewRunError(models.ErrInvalidConfig, "end date %s precedes start date %s", cfg.EndDate, cfg.StartDate)
	}

	if cfg.Adjust == "" {
		cfg.Adjust = models.AdjustQFQ
	}
	return start, end, nil
}

// vetBars checks the fetched series against the trading calendar: every
// bar must land on a trading day and dates must strictly ascend. Gaps are
// tolerated, a venue may halt a listing for days at a time.
func vetBars(bars []models.Bar, cal *calendar.Calendar) error {
	var prev time.Time
	for _, b := range bars {
		if !cal.IsTradingDay(b.Date) {
			return models.NewRunError(models.ErrInternal,
				"bar dated %s falls outside the trading calendar", b.Date.Format("2006-01-02"))
		}
		if !prev.IsZero() && !b.Date.After(prev) {
			return models.NewRunError(models.ErrInternal,
				"bars out of order at %s", b.Date.Format("2006-01-02"))
		}
		prev = b.Date
	}
	return nil
}

// buildSignals generates each strategy's signal column and combines them.
func (e *Engine) buildSignals(bars []models.Bar, cfg models.RunConfig) ([]models.Signal, error) {
	sets := make([][]models.Signal, 0, len(cfg.StrategyIDs))
	for _, id := range cfg.StrategyIDs {
		s, err := e.strategies.Get(id)
		if err != nil {
			return nil, err
		}
		sigs, err := s.GenerateSignals(bars, cfg.StrategyParams)
		if err != nil {
			return nil, err
		}
		sets = append(sets, sigs)
	}

	comb, err := strategy.NewCombiner(cfg.Combiner, cfg.VoteThreshold, cfg.Weights, cfg.WeightCutoff)
	if err != nil {
		return nil, err
	}
	return comb.Combine(sets)
}

// ════════════════════════════════════════════════════════════════════
// Per-run state machine
// ════════════════════════════════════════════════════════════════════

type runState struct {
	cfg       models.RunConfig
	rules     *rules.Ruleset
	info      models.StockInfo
	portfolio *models.Portfolio
	risk      *risk.Manager
	prices    map[string]float64
	slippage  float64            // basis points, default applied
	ipoCal    *calendar.Calendar // covers [IPO date, run end]; nil when listing date is unknown

	fills  []models.Fill
	curve  []models.EquitySample
	events []models.RiskEvent
}

func newRunState(cfg models.RunConfig, rs *rules.Ruleset, info models.StockInfo) *runState {
	slippage := matching.DefaultSlippageBps
	if cfg.SlippageBps != nil {
		slippage = *cfg.SlippageBps
	}
	return &runState{
		cfg:       cfg,
		rules:     rs,
		info:      info,
		portfolio: models.NewPortfolio(cfg.InitialCapital),
		risk:      risk.NewManager(cfg.Risk, cfg.InitialCapital),
		prices:    make(map[string]float64),
		slippage:  slippage,
	}
}

// ipoAgeDays counts trading days since listing, 0 on the listing day.
// Negative disables the IPO limit exception.
func (r *runState) ipoAgeDays(on time.Time) int {
	if r.ipoCal == nil {
		return -1
	}
	return len(r.ipoCal.TradingDaysBetween(r.info.IPODate, on)) - 1
}

// iterate drives the bar loop. It returns true when the run was cancelled
// between bars, leaving a consistent partial ledger.
func (r *runState) iterate(ctx context.Context, bars []models.Bar, signals []models.Signal) bool {
	for i, bar := range bars {
		select {
		case <-ctx.Done():
			return true
		default:
		}

		// 1. Mark-to-market; suspended bars carry the prior mark.
		if !bar.Suspended {
			r.prices[r.cfg.Symbol] = bar.Close
		}

		// 2. Forced exits resolve first, at the bar's open.
		forcedExit := r.runForcedExits(bar, i)

		// 3. Strategy sell at the close. When a bar asserts both buy and
		// sell, the position decides: holding means the sell wins and the
		// buy is suppressed; flat means the buy runs first and the sell
		// is then evaluated against the fresh position, where the
		// settlement horizon blocks it on T+1 venues.
		heldAtOpen := r.portfolio.Position(r.cfg.Symbol) != nil
		if signals[i].Sell && heldAtOpen {
			r.runStrategySell(bar, i)
		}

		// 4. Strategy buy at the close. A forced exit on this bar vetoes
		// re-entry, and an open position is never pyramided.
		if signals[i].Buy && !forcedExit && !(signals[i].Sell && heldAtOpen) &&
			r.portfolio.Position(r.cfg.Symbol) == nil {
			r.runStrategyBuy(bar, i)
		}

		if signals[i].Sell && !heldAtOpen && r.portfolio.Position(r.cfg.Symbol) != nil {
			r.runStrategySell(bar, i)
		}

		// 5. End-of-bar equity sample.
		r.curve = append(r.curve, models.EquitySample{
			Date:          bar.Date,
			Equity:        r.portfolio.Equity(r.prices),
			Cash:          r.portfolio.Cash,
			PositionValue: r.portfolio.TotalPositionValue(r.prices),
		})
	}
	return false
}

func (r *runState) matchOpts(barIndex int, bar models.Bar) matching.Options {
	return matching.Options{
		SlippageBps: r.slippage,
		IPOAgeDays:  r.ipoAgeDays(bar.Date),
		FirstBar:    barIndex == 0 && bar.PrevClose == 0,
		Cash:        r.portfolio.Cash,
		Info:        r.info,
	}
}

func (r *runState) reject(bar models.Bar, symbol, reason, detail string) {
	r.events = append(r.events, models.RiskEvent{
		Date:    bar.Date,
		Kind:    models.EventOrderRejected,
		Subkind: reason,
		Symbol:  symbol,
		Detail:  detail,
	})
}

// runForcedExits asks the risk manager for exits and matches them at the
// bar's open. It reports whether any forced exit was emitted this bar.
func (r *runState) runForcedExits(bar models.Bar, barIndex int) bool {
	orders := r.risk.CheckExitSignals(r.portfolio, r.prices)
	for _, order := range orders {
		order.ReferencePrice = bar.Open
		r.events = append(r.events, models.RiskEvent{
			Date:    bar.Date,
			Kind:    models.EventForcedExit,
			Subkind: order.Reason,
			Symbol:  order.Symbol,
		})

		res := matching.Match(order, bar, r.rules, r.matchOpts(barIndex, bar))
		if !res.Filled {
			r.reject(bar, order.Symbol, string(res.Reason), "forced exit did not fill")
			continue
		}
		r.portfolio.ApplyFill(res.Fill)
		r.fills = append(r.fills, res.Fill)
	}
	return len(orders) > 0
}

func (r *runState) runStrategySell(bar models.Bar, barIndex int) {
	pos := r.portfolio.Position(r.cfg.Symbol)
	if pos == nil {
		return
	}
	order := models.Order{
		Symbol:         r.cfg.Symbol,
		Side:           models.Sell,
		Shares:         pos.Shares,
		ReferencePrice: bar.Close,
		Origin:         models.OriginStrategy,
		Reason:         models.ReasonStrategySell,
	}

	if d := r.rules.ValidateOrder(order, r.portfolio, bar, rules.OrderContext{Authorized: true}); !d.Accepted {
		// A blocked signal is dropped, never queued for the next bar.
		r.reject(bar, order.Symbol, d.Reason, d.Detail)
		return
	}

	res := matching.Match(order, bar, r.rules, r.matchOpts(barIndex, bar))
	if !res.Filled {
		r.reject(bar, order.Symbol, string(res.Reason), "strategy sell did not fill")
		return
	}
	r.portfolio.ApplyFill(res.Fill)
	r.fills = append(r.fills, res.Fill)
}

// runStrategyBuy sizes the order to the largest lot-multiple affordable
// under cash and the risk caps, then validates and matches it. Proactive
// clipping keeps cap-compliant orders out of the rejection log.
func (r *runState) runStrategyBuy(bar models.Bar, barIndex int) {
	ref := bar.Close
	price := ref * (1 + r.slippage/10_000)
	if price <= 0 {
		return
	}

	allowedGross := r.portfolio.Cash
	if capGross, capped := r.risk.MaxBuyGross(r.cfg.Symbol, r.portfolio, r.prices); capped && capGross < allowedGross {
		allowedGross = capGross
	}

	lot := r.rules.LotSize()
	shares := int64(allowedGross/price) / lot * lot
	if shares <= 0 {
		return
	}

	order := models.Order{
		Symbol:         r.cfg.Symbol,
		Side:           models.Buy,
		Shares:         shares,
		ReferencePrice: ref,
		Origin:         models.OriginStrategy,
		Reason:         models.ReasonStrategyBuy,
	}

	if d := r.rules.ValidateOrder(order, r.portfolio, bar, rules.OrderContext{Authorized: true}); !d.Accepted {
		r.reject(bar, order.Symbol, d.Reason, d.Detail)
		return
	}
	if v := r.risk.CheckOrderRisk(order, r.portfolio, r.prices); !v.Accepted {
		r.reject(bar, order.Symbol, v.Reason, v.Detail)
		return
	}

	res := matching.Match(order, bar, r.rules, r.matchOpts(barIndex, bar))
	if !res.Filled {
		r.reject(bar, order.Symbol, string(res.Reason), "strategy buy did not fill")
		return
	}
	r.portfolio.ApplyFill(res.Fill)
	r.fills = append(r.fills, res.Fill)
}
