// stocksim — event-driven backtesting for CN/HK/US equity strategies.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/qinvest/stocksim/internal/adapter"
	"github.com/qinvest/stocksim/internal/calendar"
	"github.com/qinvest/stocksim/internal/config"
	"github.com/qinvest/stocksim/internal/engine"
	"github.com/qinvest/stocksim/internal/market"
	"github.com/qinvest/stocksim/internal/rules"
	"github.com/qinvest/stocksim/internal/strategy"
	"github.com/qinvest/stocksim/pkg/models"
	"github.com/qinvest/stocksim/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stocksim",
	Short: "stocksim — event-driven equity strategy backtesting",
	Long: `stocksim simulates retail equity strategies bar by bar under real
venue rules: price limits, lot sizes, T+N settlement, and per-market
commission schedules for CN, HK, and US listings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(calendarCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stocksim %s\n", version)
		fmt.Printf("  engine:  %s\n", engine.Version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Backtest Command ---

var backtestCmd = &cobra.Command{
	Use:   "backtest [symbol]",
	Short: "Run a backtest over local CSV data",
	Long: `Run an event-driven backtest for one symbol. Bars are read from
"<csv_dir>/<symbol>.csv" (columns date,open,high,low,close,volume with
optional prev_close and suspended).

Examples:
  stocksim backtest 600000 --start 20230101 --end 20231229 --strategy ma_cross
  stocksim backtest 00700 --strategy macd --strategy rsi_reversion --combiner VOTE --vote-k 2
  stocksim backtest 600519 --strategy ma_cross --param fast=5 --param slow=30 --stop-loss 0.1 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runCfg, err := runConfigFromFlags(cmd, args[0])
		if err != nil {
			return err
		}

		sel, err := adapter.NewSelector([]adapter.DataAdapter{
			adapter.NewCSV("csv", cfg.Data.CSVDir),
		}, adapter.Options{
			FetchTimeout:  time.Duration(cfg.Data.FetchTimeoutSec) * time.Second,
			ProbeInterval: time.Duration(cfg.Data.ProbeIntervalSec) * time.Second,
		})
		if err != nil {
			return err
		}
		reg, err := rules.NewRegistry()
		if err != nil {
			return err
		}

		e := engine.New(sel, reg, strategy.DefaultRegistry())
		res, err := e.Run(cmd.Context(), runCfg)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON || cfg.Output.Format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResult(res)
		return nil
	},
}

func init() {
	f := backtestCmd.Flags()
	f.String("start", "", "start date, YYYYMMDD (required)")
	f.String("end", "", "end date, YYYYMMDD (required)")
	f.Float64("capital", 0, "initial capital (default from config)")
	f.Float64("slippage", -1, "slippage in basis points (default from config)")
	f.String("adjust", "", "price adjustment: raw, qfq, hfq")
	f.StringArray("strategy", nil, "strategy id, repeatable (required)")
	f.String("combiner", "", "signal combiner: AND, OR, VOTE, WEIGHTED")
	f.Int("vote-k", 0, "VOTE combiner agreement threshold")
	f.Float64Slice("weights", nil, "WEIGHTED combiner weights, one per strategy")
	f.Float64("cutoff", 0, "WEIGHTED combiner decision cutoff")
	f.StringToString("param", nil, "strategy parameter override, e.g. --param fast=5")
	f.String("channel", "", "trading channel hint: DIRECT, CONNECT")
	f.Float64("max-position", 0, "single-name cap as fraction of equity")
	f.Float64("max-exposure", 0, "gross exposure cap as fraction of equity")
	f.Float64("stop-loss", 0, "per-position stop loss fraction")
	f.Float64("stop-profit", 0, "per-position stop profit fraction")
	f.Float64("max-drawdown", 0, "portfolio drawdown protection fraction")
	f.Bool("json", false, "emit the full result as JSON")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")
	_ = backtestCmd.MarkFlagRequired("strategy")
}

func runConfigFromFlags(cmd *cobra.Command, symbol string) (models.RunConfig, error) {
	f := cmd.Flags()

	start, _ := f.GetString("start")
	end, _ := f.GetString("end")
	capital, _ := f.GetFloat64("capital")
	if capital <= 0 {
		capital = cfg.Backtest.InitialCapital
	}
	slippage, _ := f.GetFloat64("slippage")
	if slippage < 0 {
		slippage = cfg.Backtest.SlippageBps
	}
	adjust, _ := f.GetString("adjust")
	if adjust == "" {
		adjust = cfg.Backtest.Adjust
	}
	combiner, _ := f.GetString("combiner")
	if combiner == "" {
		combiner = cfg.Backtest.Combiner
	}

	strategies, _ := f.GetStringArray("strategy")
	voteK, _ := f.GetInt("vote-k")
	weights, _ := f.GetFloat64Slice("weights")
	cutoff, _ := f.GetFloat64("cutoff")
	channel, _ := f.GetString("channel")
	rawParams, _ := f.GetStringToString("param")

	maxPosition, _ := f.GetFloat64("max-position")
	maxExposure, _ := f.GetFloat64("max-exposure")
	stopLoss, _ := f.GetFloat64("stop-loss")
	stopProfit, _ := f.GetFloat64("stop-profit")
	maxDrawdown, _ := f.GetFloat64("max-drawdown")

	risk := models.RiskConfig{
		MaxPositionPct:   firstNonZero(maxPosition, cfg.Risk.MaxPositionPct),
		MaxTotalExposure: firstNonZero(maxExposure, cfg.Risk.MaxTotalExposure),
		StopLossPct:      firstNonZero(stopLoss, cfg.Risk.StopLossPct),
		StopProfitPct:    firstNonZero(stopProfit, cfg.Risk.StopProfitPct),
		MaxDrawdownPct:   firstNonZero(maxDrawdown, cfg.Risk.MaxDrawdownPct),
	}

	return models.RunConfig{
		Symbol:         symbol,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: capital,
		SlippageBps:    utils.Float64Ptr(slippage),
		Adjust:         models.Adjust(strings.ToLower(adjust)),
		StrategyIDs:    strategies,
		Combiner:       combiner,
		VoteThreshold:  voteK,
		Weights:        weights,
		WeightCutoff:   cutoff,
		StrategyParams: coerceParams(rawParams),
		Risk:           risk,
		ChannelHint:    models.Channel(strings.ToUpper(channel)),
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
	}, nil
}

func firstNonZero(a, b float64) float64 {
	if a != 0 {
		return a
	}
	return b
}

// coerceParams converts --param key=value strings into typed values.
func coerceParams(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		switch {
		case v == "true" || v == "false":
			out[k] = v == "true"
		case !strings.Contains(v, "."):
			if n, err := strconv.Atoi(v); err == nil {
				out[k] = n
				continue
			}
			out[k] = v
		default:
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = x
				continue
			}
			out[k] = v
		}
	}
	return out
}

func printResult(res *models.RunResult) {
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Backtest %s — %s\n", res.ConfigEcho.Symbol, res.RunID[:8])
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Period:        %s → %s\n", res.ConfigEcho.StartDate, res.ConfigEcho.EndDate)
	fmt.Printf("  Strategies:    %s (%s)\n", strings.Join(res.ConfigEcho.StrategyIDs, ", "), res.ConfigEcho.Combiner)
	fmt.Printf("  Adapter:       %s (switched: %v)\n", res.Metadata.AdapterUsed, res.Metadata.AdapterSwitchedDuringRun)
	if res.Metadata.Cancelled {
		fmt.Println("  ⚠️  Run cancelled — partial result")
	}
	fmt.Println()

	m := res.Metrics
	fmt.Println("  Performance:")
	fmt.Printf("    Total Return:    %8.2f%%\n", m.TotalReturn*100)
	fmt.Printf("    CAGR:            %s\n", fmtPct(m.CAGR))
	fmt.Printf("    Volatility:      %s\n", fmtPct(m.Volatility))
	fmt.Printf("    Max Drawdown:    %8.2f%%  (%d bars)\n", m.MaxDrawdown*100, m.MaxDrawdownDuration)
	fmt.Printf("    Sharpe:          %s\n", fmtRatio(m.Sharpe))
	fmt.Printf("    Sortino:         %s\n", fmtRatio(m.Sortino))
	fmt.Printf("    Calmar:          %s\n", fmtRatio(m.Calmar))
	fmt.Println()

	fmt.Println("  Trades:")
	fmt.Printf("    Fills:           %d\n", len(res.Fills))
	fmt.Printf("    Round Trips:     %d\n", m.RoundTrips)
	fmt.Printf("    Win Rate:        %s\n", fmtPct(m.WinRate))
	fmt.Printf("    Profit Factor:   %s\n", fmtRatio(m.ProfitFactor))
	fmt.Printf("    Avg Holding:     %s bars\n", fmtRatio(m.AvgHoldingPeriod))
	fmt.Printf("    Turnover:        %s\n", fmtRatio(m.Turnover))
	fmt.Println()

	if len(res.RiskEvents) > 0 {
		fmt.Printf("  Risk Events (%d):\n", len(res.RiskEvents))
		for _, ev := range res.RiskEvents {
			fmt.Printf("    %s  %-13s %-20s %s\n",
				ev.Date.Format("2006-01-02"), ev.Kind, ev.Subkind, ev.Detail)
		}
		fmt.Println()
	}
	fmt.Printf("  Completed in %d ms\n", res.Metadata.ExecutionTimeMs)
	fmt.Println("═══════════════════════════════════════")
}

func fmtPct(v *float64) string {
	if v == nil {
		return "       n/a"
	}
	return fmt.Sprintf("%8.2f%%", *v*100)
}

func fmtRatio(v *float64) string {
	if v == nil {
		return "       n/a"
	}
	return fmt.Sprintf("%8.2f", *v)
}

// --- Strategies Command ---

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the built-in strategies and their parameters",
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range strategy.DefaultRegistry().List() {
			fmt.Printf("📊 %s — %s\n", s.ID(), s.Name())
			for _, p := range s.ParamSpecs() {
				bounds := ""
				if p.Min != nil && p.Max != nil {
					bounds = fmt.Sprintf(" [%g..%g]", *p.Min, *p.Max)
				}
				fmt.Printf("     %-12s %-8s default=%v%s  %s\n", p.Name, p.Kind, p.Default, bounds, p.Description)
			}
		}
	},
}

// --- Rules Command ---

var rulesCmd = &cobra.Command{
	Use:   "rules [symbol]",
	Short: "Show the composed trading rules for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		name, _ := cmd.Flags().GetString("name")

		env, err := market.Environment(args[0], models.StockInfo{Symbol: args[0], Name: name}, models.Channel(strings.ToUpper(channel)))
		if err != nil {
			return err
		}
		reg, err := rules.NewRegistry()
		if err != nil {
			return err
		}
		rs, err := reg.ForEnvironment(env)
		if err != nil {
			return err
		}

		fmt.Printf("📋 %s → %s\n", args[0], env.Key())
		fmt.Printf("   Currency:       %s (%d decimals)\n", rs.Currency(), rs.CashDecimals())
		fmt.Printf("   Lot Size:       %d\n", rs.LotSize())
		fmt.Printf("   Settlement:     T+%d (cash T+%d)\n", rs.SettlementHorizon(), rs.CashSettlementHorizon())

		limits := rs.PriceLimits(100, -1)
		upper, lower := "none", "none"
		if limits.Upper != nil {
			upper = fmt.Sprintf("%.2f", *limits.Upper)
		}
		if limits.Lower != nil {
			lower = fmt.Sprintf("%.2f", *limits.Lower)
		}
		fmt.Printf("   Price Limits:   %s / %s (from prev close 100.00)\n", upper, lower)

		c := rs.Commission(models.Sell, 100000, models.StockInfo{Symbol: args[0]})
		fmt.Printf("   Sell 100 000:   broker %.2f, stamp %.2f, transfer %.2f, channel %.2f → %.2f\n",
			c.Broker, c.StampTax, c.TransferFee, c.ChannelFee, c.Total)
		return nil
	},
}

func init() {
	rulesCmd.Flags().String("channel", "", "trading channel hint: DIRECT, CONNECT")
	rulesCmd.Flags().String("name", "", "stock name, used for the ST override")
}

// --- Calendar Command ---

var calendarCmd = &cobra.Command{
	Use:   "calendar [market]",
	Short: "Query trading days for a market",
	Long:  "Query the weekday trading calendar. Real deployments load exchange holiday lists; the CLI ships the weekday approximation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		start, err := utils.ParseCompactDate(from)
		if err != nil {
			return fmt.Errorf("bad --from date %q", from)
		}
		end, err := utils.ParseCompactDate(to)
		if err != nil {
			return fmt.Errorf("bad --to date %q", to)
		}

		cal := calendar.NewWeekday(models.Market(strings.ToUpper(args[0])), start, end)
		days := cal.TradingDaysBetween(start, end)
		fmt.Printf("📅 %s: %d trading days in [%s, %s]\n", cal.Market(), len(days), from, to)
		if len(days) > 0 {
			fmt.Printf("   first: %s   last: %s\n",
				days[0].Format("2006-01-02"), days[len(days)-1].Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	calendarCmd.Flags().String("from", "", "range start, YYYYMMDD (required)")
	calendarCmd.Flags().String("to", "", "range end, YYYYMMDD (required)")
	_ = calendarCmd.MarkFlagRequired("from")
	_ = calendarCmd.MarkFlagRequired("to")
}
