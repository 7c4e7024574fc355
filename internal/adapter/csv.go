package adapter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/qinvest/stocksim/pkg/models"
	"github.com/qinvest/stocksim/pkg/utils"
)

// CSV serves bars from local files: one "<symbol>.csv" per symbol under a
// data directory, columns date,open,high,low,close,volume with optional
// prev_close and suspended columns. When prev_close is absent it is
// chained from the prior row (first row uses its own open).
type CSV struct {
	name string
	dir  string
}

// NewCSV creates a CSV adapter rooted at dir.
func NewCSV(name, dir string) *CSV {
	return &CSV{name: name, dir: dir}
}

// Name implements DataAdapter.
func (c *CSV) Name() string { return c.name }

// GetOHLCV implements DataAdapter.
func (c *CSV) GetOHLCV(ctx context.Context, symbol string, start, end time.Time, adjust models.Adjust) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(c.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FetchError{Adapter: c.name, Kind: FailEmpty, Err: fmt.Errorf("no dataset for %s", symbol)}
		}
		return nil, &FetchError{Adapter: c.name, Kind: FailNetwork, Err: err}
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, &FetchError{Adapter: c.name, Kind: FailParse, Err: err}
	}
	if len(rows) < 2 {
		return nil, nil
	}

	cols := columnIndex(rows[0])
	start, end = utils.Midnight(start), utils.Midnight(end)

	var out []models.Bar
	prevClose := 0.0
	for i, row := range rows[1:] {
		bar, err := parseRow(row, cols)
		if err != nil {
			return nil, &FetchError{Adapter: c.name, Kind: FailParse, Err: fmt.Errorf("%s row %d: %w", symbol, i+2, err)}
		}
		if bar.PrevClose == 0 {
			if i == 0 {
				bar.PrevClose = bar.Open
			} else {
				bar.PrevClose = prevClose
			}
		}
		prevClose = bar.Close

		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// GetStockInfo implements DataAdapter. CSV datasets carry no metadata, so
// the symbol doubles as the name (which also means no ST override).
func (c *CSV) GetStockInfo(ctx context.Context, symbol string) (models.StockInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.StockInfo{}, err
	}
	return models.StockInfo{Symbol: symbol, Name: symbol}, nil
}

// Ping implements DataAdapter: the data directory must exist.
func (c *CSV) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(c.dir); err != nil {
		return &FetchError{Adapter: c.name, Kind: FailNetwork, Err: err}
	}
	return nil
}

// columnIndex maps header names to positions.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	return idx
}

func parseRow(row []string, cols map[string]int) (models.Bar, error) {
	var bar models.Bar

	get := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	dateStr, ok := get("date")
	if !ok {
		return bar, fmt.Errorf("missing date column")
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		if date, err = utils.ParseCompactDate(dateStr); err != nil {
			return bar, fmt.Errorf("bad date %q", dateStr)
		}
	}
	bar.Date = date

	floats := map[string]*float64{
		"open": &bar.Open, "high": &bar.High, "low": &bar.Low,
		"close": &bar.Close, "prev_close": &bar.PrevClose,
	}
	for name, dst := range floats {
		s, ok := get(name)
		if !ok || s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return bar, fmt.Errorf("bad %s %q", name, s)
		}
		*dst = v
	}

	if s, ok := get("volume"); ok && s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return bar, fmt.Errorf("bad volume %q", s)
		}
		bar.Volume = v
	}
	if s, ok := get("suspended"); ok {
		bar.Suspended = s == "1" || s == "true"
	}
	return bar, nil
}
