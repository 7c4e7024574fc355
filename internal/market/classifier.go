// Package market classifies textual symbols into a (market, board) pair
// by ordered pattern match, with an ST override driven by the stock name.
// Classification is pure and deterministic.
package market

import (
	"regexp"
	"strings"

	"github.com/qinvest/stocksim/pkg/models"
)

// classRule is one entry in the ordered pattern table.
type classRule struct {
	pattern *regexp.Regexp
	market  models.Market
	board   models.Board
}

// Pattern order is fixed: first match wins.
var rules = []classRule{
	{regexp.MustCompile(`^6\d{5}$`), models.MarketCN, models.BoardMain},        // SH main board
	{regexp.MustCompile(`^(000|001)\d{3}$`), models.MarketCN, models.BoardMain}, // SZ main board
	{regexp.MustCompile(`^30[01]\d{3}$`), models.MarketCN, models.BoardGEM},    // ChiNext
	{regexp.MustCompile(`^688\d{3}$`), models.MarketCN, models.BoardSTAR},      // STAR Market
	{regexp.MustCompile(`^(43|83|87)\d{4}$`), models.MarketCN, models.BoardBSE},
	{regexp.MustCompile(`^\d{5}(\.HK)?$`), models.MarketHK, models.BoardMain},
	{regexp.MustCompile(`^[A-Za-z][A-Za-z.\-]*$`), models.MarketUS, models.BoardNYSE},
}

// Classify infers (market, board) from a symbol. Unmatched symbols fail
// with an UNKNOWN_SYMBOL tagged error.
func Classify(symbol string) (models.Market, models.Board, error) {
	sym := strings.TrimSpace(symbol)
	if sym == "" {
		return "", "", models.NewRunError(models.ErrUnknownSymbol, "empty symbol")
	}
	for _, r := range rules {
		if r.pattern.MatchString(sym) {
			return r.market, r.board, nil
		}
	}
	return "", "", models.NewRunError(models.ErrUnknownSymbol, "symbol %q matches no known venue pattern", sym)
}

// IsSTName reports whether a stock name marks the special-treatment board
// ("ST" or "*ST" prefix, ignoring surrounding whitespace).
func IsSTName(name string) bool {
	n := strings.TrimSpace(name)
	return strings.HasPrefix(n, "ST") || strings.HasPrefix(n, "*ST")
}

// Environment resolves the full trading environment for a symbol.
// The board is overridden to ST when the stock name matches the ST
// convention (CN only); channel defaults to DIRECT unless hinted.
func Environment(symbol string, info models.StockInfo, hint models.Channel) (models.TradingEnvironment, error) {
	mkt, board, err := Classify(symbol)
	if err != nil {
		return models.TradingEnvironment{}, err
	}
	if mkt == models.MarketCN && IsSTName(info.Name) {
		board = models.BoardST
	}
	channel := hint
	if channel == "" {
		channel = models.ChannelDirect
	}
	return models.TradingEnvironment{Market: mkt, Board: board, Channel: channel}, nil
}
