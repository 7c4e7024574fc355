// Package rules loads the three declarative rule layers (market, board,
// channel) and composes them on demand into immutable Ruleset objects.
// The registry is the single place that knows how layers compose;
// downstream components receive only the opaque ruleset.
package rules

// MarketConfig is the per-market base layer ("<market>/market.yaml").
type MarketConfig struct {
	Market           string           `mapstructure:"market"`
	Currency         string           `mapstructure:"currency"`
	SettlementPeriod int              `mapstructure:"settlement_period"` // trading T+N
	TradingHours     string           `mapstructure:"trading_hours"`     // informational at daily resolution
	Commission       MarketCommission `mapstructure:"commission"`
}

// MarketCommission is the market-level commission schedule.
type MarketCommission struct {
	BrokerRate      float64 `mapstructure:"broker_rate"`
	MinBrokerFee    float64 `mapstructure:"min_broker_fee"`
	StampTaxRate    float64 `mapstructure:"stamp_tax_rate"`    // sell side only for CN
	TransferFeeRate float64 `mapstructure:"transfer_fee_rate"` // Shanghai listings only
}

// BoardConfig is the per-board layer ("<market>/<board>.yaml").
type BoardConfig struct {
	Board                 string      `mapstructure:"board"`
	StockCodePattern      string      `mapstructure:"stock_code_pattern"`
	LotSize               int64       `mapstructure:"lot_size"`
	AuthorizationRequired bool        `mapstructure:"authorization_required"`
	PriceLimits           PriceLimits `mapstructure:"price_limits"`
}

// PriceLimits declares the board's daily price-limit policy.
type PriceLimits struct {
	Default      LimitPcts     `mapstructure:"default"`
	IPOException *IPOException `mapstructure:"ipo_exception"`
}

// LimitPcts holds up/down limit percentages. A nil field means no bound
// in that direction.
type LimitPcts struct {
	UpLimitPct   *float64 `mapstructure:"up_limit_pct"`
	DownLimitPct *float64 `mapstructure:"down_limit_pct"`
}

// IPOException relaxes or replaces limits during the first N trading days
// after listing. Absent percentages mean "no limit" during the window.
type IPOException struct {
	FirstNDays   int      `mapstructure:"first_n_days"`
	UpLimitPct   *float64 `mapstructure:"up_limit_pct"`
	DownLimitPct *float64 `mapstructure:"down_limit_pct"`
}

// ChannelConfig is the access-channel layer ("channels/<channel>.yaml").
type ChannelConfig struct {
	Channel           string            `mapstructure:"channel"`
	ApplicableMarkets []string          `mapstructure:"applicable_markets"`
	Commission        ChannelCommission `mapstructure:"commission"`
	TradingRules      ChannelRules      `mapstructure:"trading_rules"`
}

// ChannelCommission carries channel-specific additional fees.
type ChannelCommission struct {
	Additional struct {
		ConversionFeeRate float64 `mapstructure:"conversion_fee_rate"`
	} `mapstructure:"additional"`
}

// ChannelRules carries channel overrides of market-level trading rules.
type ChannelRules struct {
	Overrides struct {
		SettlementPeriod     *int `mapstructure:"settlement_period"`
		CashSettlementPeriod *int `mapstructure:"cash_settlement_period"`
	} `mapstructure:"overrides"`
}
