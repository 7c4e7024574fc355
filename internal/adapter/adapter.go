// Package adapter defines the data-adapter contract the core consumes and
// the failover selector that routes fetches across providers. Concrete
// remote providers (AkShare, yfinance, baostock) live outside this module;
// the in-tree adapters are deterministic local sources used by the CLI and
// tests.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/qinvest/stocksim/pkg/models"
)

// DataAdapter is the uniform OHLCV provider contract. Implementations must
// be pure with respect to arguments: idempotent for a given historical
// range, bars ascending by date, no duplicates, prev_close filled for every
// bar after the first, suspended days marked.
type DataAdapter interface {
	// Name returns the adapter's stable identifier, e.g. "akshare".
	Name() string

	// GetOHLCV fetches daily bars for [start, end] inclusive.
	// An empty result with a nil error means the range holds no data.
	GetOHLCV(ctx context.Context, symbol string, start, end time.Time, adjust models.Adjust) ([]models.Bar, error)

	// GetStockInfo fetches descriptive metadata for a symbol.
	GetStockInfo(ctx context.Context, symbol string) (models.StockInfo, error)

	// Ping verifies the adapter is reachable. Used by the health probe.
	Ping(ctx context.Context) error
}

// FailKind categorizes an adapter failure for the selector's cascade.
type FailKind string

const (
	FailNetwork FailKind = "network"
	FailParse   FailKind = "parse"
	FailEmpty   FailKind = "empty"
)

// FetchError is a tagged adapter failure.
type FetchError struct {
	Adapter string
	Kind    FailKind
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("adapter %s: %s failure: %v", e.Adapter, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
