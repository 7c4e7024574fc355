package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qinvest/stocksim/pkg/models"
)

// flaky wraps a Memory adapter and fails the first n OHLCV calls.
type flaky struct {
	*Memory
	failures int
	kind     FailKind
}

func (f *flaky) GetOHLCV(ctx context.Context, symbol string, start, end time.Time, adjust models.Adjust) ([]models.Bar, error) {
	if f.failures > 0 {
		f.failures--
		return nil, &FetchError{Adapter: f.Name(), Kind: f.kind, Err: errors.New("injected")}
	}
	return f.Memory.GetOHLCV(ctx, symbol, start, end, adjust)
}

func seeded(name string) *Memory {
	m := NewMemory(name)
	m.SeedCloses("600000", time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		[]float64{10, 11, 12}, 1_000_000)
	return m
}

func window() (time.Time, time.Time) {
	return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC)
}

func TestSessionFailover(t *testing.T) {
	primary := &flaky{Memory: seeded("primary"), failures: 100, kind: FailNetwork}
	backup := seeded("backup")

	sel, err := NewSelector([]DataAdapter{primary, backup}, Options{})
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}

	start, end := window()
	ss := sel.Session()
	bars, err := ss.GetOHLCV(context.Background(), "600000", start, end, models.AdjustQFQ)
	if err != nil {
		t.Fatalf("expected failover to backup, got %v", err)
	}
	if len(bars) != 3 {
		t.Errorf("expected 3 bars, got %d", len(bars))
	}
	if ss.AdapterUsed() != "backup" {
		t.Errorf("expected backup to serve, got %s", ss.AdapterUsed())
	}
	// First fetch resolved the adapter; no switch happened within the session.
	if ss.Switched() {
		t.Error("first-fetch failover must not count as a mid-run switch")
	}

	stats := sel.Stats()
	if stats[0].Failures == 0 || stats[0].Health == HealthOnline {
		t.Errorf("primary should be marked failing, got %+v", stats[0])
	}
	if stats[1].Successes == 0 {
		t.Errorf("backup should record a success, got %+v", stats[1])
	}
}

func TestSessionSticky(t *testing.T) {
	// Primary works at first, then starts failing mid-session.
	primary := &flaky{Memory: seeded("primary")}
	backup := seeded("backup")

	sel, err := NewSelector([]DataAdapter{primary, backup}, Options{})
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	start, end := window()
	ss := sel.Session()

	if _, err := ss.GetOHLCV(context.Background(), "600000", start, end, models.AdjustRaw); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if ss.AdapterUsed() != "primary" {
		t.Fatalf("expected primary, got %s", ss.AdapterUsed())
	}

	primary.failures = 100
	if _, err := ss.GetOHLCV(context.Background(), "600000", start, end, models.AdjustRaw); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if ss.AdapterUsed() != "backup" {
		t.Errorf("expected failover to backup, got %s", ss.AdapterUsed())
	}
	if !ss.Switched() {
		t.Error("mid-session failover must set the switched flag")
	}
}

func TestAllAdaptersFailed(t *testing.T) {
	a := &flaky{Memory: seeded("a"), failures: 100, kind: FailNetwork}
	b := &flaky{Memory: seeded("b"), failures: 100, kind: FailParse}

	sel, _ := NewSelector([]DataAdapter{a, b}, Options{})
	start, end := window()
	_, err := sel.Session().GetOHLCV(context.Background(), "600000", start, end, models.AdjustRaw)

	var re *models.RunError
	if !errors.As(err, &re) || re.Kind != models.ErrAdapterUnavailable {
		t.Errorf("expected ADAPTER_UNAVAILABLE, got %v", err)
	}
}

func TestNoData(t *testing.T) {
	sel, _ := NewSelector([]DataAdapter{seeded("only")}, Options{})
	start, end := window()
	_, err := sel.Session().GetOHLCV(context.Background(), "000001", start, end, models.AdjustRaw)

	var re *models.RunError
	if !errors.As(err, &re) || re.Kind != models.ErrNoData {
		t.Errorf("expected NO_DATA for unknown symbol, got %v", err)
	}

	// The adapter itself stays healthy: empty range is its success.
	if st := sel.Stats()[0]; st.Health != HealthOnline {
		t.Errorf("healthy adapter with empty range must stay ONLINE, got %s", st.Health)
	}
}

func TestMemoryRangeFilter(t *testing.T) {
	m := seeded("m")
	bars, err := m.GetOHLCV(context.Background(),
		"600000",
		time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
		models.AdjustRaw)
	if err != nil {
		t.Fatalf("GetOHLCV: %v", err)
	}
	if len(bars) != 1 || bars[0].Close != 11 {
		t.Errorf("expected single bar with close 11, got %+v", bars)
	}
	if bars[0].PrevClose != 10 {
		t.Errorf("expected chained prev_close 10, got %v", bars[0].PrevClose)
	}
}

func TestProbeRecovers(t *testing.T) {
	m := seeded("m")
	sel, _ := NewSelector([]DataAdapter{m}, Options{ErrorCooldown: time.Millisecond})

	sel.setHealth("m", HealthError)
	time.Sleep(5 * time.Millisecond)
	sel.probeOnce(context.Background())

	if st := sel.Stats()[0]; st.Health != HealthOnline {
		t.Errorf("probe should reset ERROR to ONLINE after cooldown, got %s", st.Health)
	}
}

func TestCSVAdapter(t *testing.T) {
	dir := t.TempDir()
	data := "date,open,high,low,close,volume\n" +
		"2023-01-02,10,10.5,9.8,10,1000000\n" +
		"2023-01-03,10.2,11.2,10.1,11,1200000\n"
	if err := os.WriteFile(filepath.Join(dir, "600000.csv"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCSV("csv", dir)
	start, end := window()
	bars, err := c.GetOHLCV(context.Background(), "600000", start, end, models.AdjustRaw)
	if err != nil {
		t.Fatalf("GetOHLCV: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].PrevClose != 10 {
		t.Errorf("first bar prev_close should fall back to open, got %v", bars[0].PrevClose)
	}
	if bars[1].PrevClose != 10 {
		t.Errorf("second bar prev_close should chain from close, got %v", bars[1].PrevClose)
	}

	// Missing dataset is an empty-kind failure so the selector cascades.
	_, err = c.GetOHLCV(context.Background(), "000001", start, end, models.AdjustRaw)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != FailEmpty {
		t.Errorf("expected empty-kind FetchError, got %v", err)
	}
}
