package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/qinvest/stocksim/pkg/models"
	"github.com/qinvest/stocksim/pkg/utils"
)

// Memory is a deterministic in-process adapter. It backs tests and the CLI
// demo mode, and doubles as the seam for pre-loaded datasets.
type Memory struct {
	name string

	mu    sync.RWMutex
	bars  map[string][]models.Bar
	infos map[string]models.StockInfo
}

// NewMemory creates an empty in-memory adapter with the given name.
func NewMemory(name string) *Memory {
	return &Memory{
		name:  name,
		bars:  make(map[string][]models.Bar),
		infos: make(map[string]models.StockInfo),
	}
}

// Name implements DataAdapter.
func (m *Memory) Name() string { return m.name }

// SetBars replaces the bar history for a symbol. Bars are copied and
// sorted by date.
func (m *Memory) SetBars(symbol string, bars []models.Bar) {
	cp := make([]models.Bar, len(bars))
	copy(cp, bars)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })

	m.mu.Lock()
	m.bars[symbol] = cp
	m.mu.Unlock()
}

// SetInfo sets the stock metadata for a symbol.
func (m *Memory) SetInfo(info models.StockInfo) {
	m.mu.Lock()
	m.infos[info.Symbol] = info
	m.mu.Unlock()
}

// SeedCloses loads a simple close-price series for a symbol starting at
// the given date, one bar per consecutive weekday. Open/high/low collapse
// onto the close and prev_close chains naturally, which keeps scenario
// arithmetic exact.
func (m *Memory) SeedCloses(symbol string, start time.Time, closes []float64, volume int64) {
	bars := make([]models.Bar, 0, len(closes))
	d := utils.Midnight(start)
	for wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday; wd = d.Weekday() {
		d = d.AddDate(0, 0, 1)
	}
	prev := 0.0
	for i, c := range closes {
		if i == 0 {
			prev = c
		}
		bars = append(bars, models.Bar{
			Date: d, Open: c, High: c, Low: c, Close: c,
			Volume: volume, PrevClose: prev,
		})
		prev = c
		d = d.AddDate(0, 0, 1)
		for wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday; wd = d.Weekday() {
			d = d.AddDate(0, 0, 1)
		}
	}
	m.SetBars(symbol, bars)
}

// GetOHLCV implements DataAdapter.
func (m *Memory) GetOHLCV(ctx context.Context, symbol string, start, end time.Time, adjust models.Adjust) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	all := m.bars[symbol]
	m.mu.RUnlock()

	start, end = utils.Midnight(start), utils.Midnight(end)
	var out []models.Bar
	for _, b := range all {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// GetStockInfo implements DataAdapter.
func (m *Memory) GetStockInfo(ctx context.Context, symbol string) (models.StockInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.StockInfo{}, err
	}

	m.mu.RLock()
	info, ok := m.infos[symbol]
	m.mu.RUnlock()
	if !ok {
		return models.StockInfo{Symbol: symbol, Name: symbol}, nil
	}
	return info, nil
}

// Ping implements DataAdapter. Memory is always reachable.
func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }
