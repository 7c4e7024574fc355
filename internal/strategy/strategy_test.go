package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/qinvest/stocksim/pkg/models"
)

// makeBars builds daily bars from a close series, chaining prev_close.
func makeBars(closes []float64) []models.Bar {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	prev := closes[0]
	for i, c := range closes {
		bars[i] = models.Bar{
			Date: base.AddDate(0, 0, i),
			Open: c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: 1_000_000, PrevClose: prev,
		}
		prev = c
	}
	return bars
}

// waveCloses produces a deterministic oscillating series.
func waveCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/5) + float64(i%7)
	}
	return out
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if got == nil {
		t.Fatal("expected SMA values")
	}
	want := []float64{0, 0, 2, 3, 4}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("SMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if SMA([]float64{1, 2}, 3) != nil {
		t.Error("insufficient data should return nil")
	}
}

func TestEMAConverges(t *testing.T) {
	data := make([]float64, 200)
	for i := range data {
		data[i] = 50
	}
	ema := EMA(data, 10)
	if math.Abs(ema[len(ema)-1]-50) > 1e-9 {
		t.Errorf("EMA of a constant series must equal the constant, got %v", ema[len(ema)-1])
	}
}

func TestRSIBounds(t *testing.T) {
	rsi := RSI(waveCloses(120), 14)
	if rsi == nil {
		t.Fatal("expected RSI values")
	}
	for i := 14; i < len(rsi); i++ {
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Fatalf("RSI[%d] = %v out of [0,100]", i, rsi[i])
		}
	}

	// Straight uptrend pins RSI at 100.
	up := make([]float64, 40)
	for i := range up {
		up[i] = float64(10 + i)
	}
	rsi = RSI(up, 14)
	if rsi[len(rsi)-1] != 100 {
		t.Errorf("uptrend RSI should be 100, got %v", rsi[len(rsi)-1])
	}
}

func TestMACrossSignals(t *testing.T) {
	// Flat, then a sharp ramp: the fast average must cross above the slow.
	closes := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 11, 12, 13, 14, 15}
	bars := makeBars(closes)

	sigs, err := (&MACross{}).GenerateSignals(bars, Params{"fast": 2, "slow": 5})
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	if len(sigs) != len(bars) {
		t.Fatalf("signal length %d != bar length %d", len(sigs), len(bars))
	}

	var sawBuy bool
	for _, s := range sigs {
		if s.Buy {
			sawBuy = true
		}
	}
	if !sawBuy {
		t.Error("ramp should produce at least one buy crossover")
	}
}

func TestMACrossRejectsBadParams(t *testing.T) {
	_, err := (&MACross{}).GenerateSignals(makeBars(waveCloses(50)), Params{"fast": 20, "slow": 5})
	if err == nil {
		t.Fatal("fast >= slow must be rejected")
	}
}

// TestNoLookAhead verifies that truncating the future does not change any
// already-emitted signal, for every builtin strategy.
func TestNoLookAhead(t *testing.T) {
	bars := makeBars(waveCloses(90))
	cut := 60

	for _, s := range Builtins() {
		full, err := s.GenerateSignals(bars, Params{})
		if err != nil {
			t.Fatalf("%s: %v", s.ID(), err)
		}
		prefix, err := s.GenerateSignals(bars[:cut], Params{})
		if err != nil {
			t.Fatalf("%s prefix: %v", s.ID(), err)
		}
		for i := 0; i < cut; i++ {
			if full[i] != prefix[i] {
				t.Errorf("%s: signal %d depends on future bars (%+v vs %+v)", s.ID(), i, full[i], prefix[i])
			}
		}
	}
}

func TestCombiners(t *testing.T) {
	a := []models.Signal{{Buy: true}, {Buy: true}, {}, {Sell: true}}
	b := []models.Signal{{Buy: true}, {}, {Sell: true}, {Sell: true}}
	sets := [][]models.Signal{a, b}

	and, _ := NewCombiner("AND", 0, nil, 0)
	got, err := and.Combine(sets)
	if err != nil {
		t.Fatalf("AND: %v", err)
	}
	// AND: buy needs both; sell on any.
	want := []models.Signal{{Buy: true}, {}, {Sell: true}, {Sell: true}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AND[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	or, _ := NewCombiner("OR", 0, nil, 0)
	got, _ = or.Combine(sets)
	// OR: buy on any; sell needs both.
	want = []models.Signal{{Buy: true}, {Buy: true}, {}, {Sell: true}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("OR[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	vote, _ := NewCombiner("VOTE", 2, nil, 0)
	got, _ = vote.Combine(sets)
	want = []models.Signal{{Buy: true}, {}, {}, {Sell: true}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("VOTE[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	weighted, _ := NewCombiner("WEIGHTED", 0, []float64{0.7, 0.3}, 0.5)
	got, _ = weighted.Combine(sets)
	// Bar 1: only component a buys with weight 0.7 ≥ 0.5.
	if !got[1].Buy {
		t.Errorf("WEIGHTED[1] should buy, got %+v", got[1])
	}
	// Bar 2: only component b sells with weight 0.3 < 0.5.
	if got[2].Sell {
		t.Errorf("WEIGHTED[2] should not sell, got %+v", got[2])
	}
}

func TestCombineKeepsBothFlags(t *testing.T) {
	// Conflicting flags survive combining; the trading engine resolves
	// them against the current position.
	a := []models.Signal{{Buy: true, Sell: true}}
	or, _ := NewCombiner("OR", 0, nil, 0)
	got, err := or.Combine([][]models.Signal{a})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if !got[0].Buy || !got[0].Sell {
		t.Errorf("both flags must survive combining, got %+v", got[0])
	}
}

func TestCombinerValidation(t *testing.T) {
	if _, err := NewCombiner("VOTE", 0, nil, 0); err == nil {
		t.Error("VOTE without k must fail")
	}
	if _, err := NewCombiner("WEIGHTED", 0, nil, 0.5); err == nil {
		t.Error("WEIGHTED without weights must fail")
	}
	if _, err := NewCombiner("MAJORITY", 0, nil, 0); err == nil {
		t.Error("unknown combiner must fail")
	}

	w, _ := NewCombiner("WEIGHTED", 0, []float64{1}, 0.5)
	if _, err := w.Combine([][]models.Signal{{{}}, {{}}}); err == nil {
		t.Error("weight/strategy count mismatch must fail")
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	s, err := r.Get("ma_cross")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Name() == "" || len(s.ParamSpecs()) == 0 {
		t.Error("builtin strategy must expose name and params")
	}

	if _, err := r.Get("nope"); err == nil {
		t.Error("unknown strategy must fail")
	}

	list := r.List()
	if len(list) != 5 {
		t.Errorf("expected 5 builtins, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID() >= list[i].ID() {
			t.Error("List must be sorted by ID")
		}
	}
}

func TestAnalyzeCurrent(t *testing.T) {
	bars := makeBars(waveCloses(60))
	a, err := (&MACross{}).AnalyzeCurrent(bars, Params{})
	if err != nil {
		t.Fatalf("AnalyzeCurrent: %v", err)
	}
	if a.Status == "" {
		t.Error("analysis must report a status")
	}
	if a.Proximity < 0 || a.Proximity > 1 {
		t.Errorf("proximity out of [0,1]: %v", a.Proximity)
	}
}
