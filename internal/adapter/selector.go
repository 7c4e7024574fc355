package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/qinvest/stocksim/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Health-Tracked Failover Selector
// ════════════════════════════════════════════════════════════════════

// Health is the tracked status of one adapter.
type Health string

const (
	HealthOnline  Health = "ONLINE"
	HealthError   Health = "ERROR"
	HealthOffline Health = "OFFLINE"
)

// Stats is a read-only snapshot of one adapter's health accounting.
type Stats struct {
	Name       string        `json:"name"`
	Health     Health        `json:"health"`
	Successes  int64         `json:"successes"`
	Failures   int64         `json:"failures"`
	AvgLatency time.Duration `json:"avg_latency"`
	LastError  string        `json:"last_error,omitempty"`
}

// adapterState pairs an adapter with its mutable health accounting.
// All fields besides the adapter itself are guarded by the selector mutex;
// the circuit breaker is internally synchronized.
type adapterState struct {
	adapter DataAdapter
	breaker *gobreaker.CircuitBreaker

	health     Health
	successes  int64
	failures   int64
	avgLatency time.Duration
	lastError  error
	erroredAt  time.Time
}

// Options tunes selector behavior.
type Options struct {
	FetchTimeout  time.Duration                          // per-fetch deadline (default 10s)
	ProbeInterval time.Duration                          // health probe cadence (default 60s)
	ErrorCooldown time.Duration                          // minimum ERROR dwell before a probe may reset (default 60s)
	OnHealthChange func(adapter string, from, to Health) // optional notification hook
}

func (o *Options) fill() {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 60 * time.Second
	}
	if o.ErrorCooldown <= 0 {
		o.ErrorCooldown = 60 * time.Second
	}
}

// Selector routes fetches across an ordered adapter list with health
// tracking, circuit breaking, and cascade-on-failure. It is the only
// component of the core with shared mutable state: writers are serialized
// behind the mutex and readers may run concurrently.
type Selector struct {
	mu     sync.RWMutex
	states []*adapterState
	opts   Options
}

// NewSelector creates a selector over the given adapters in priority order.
func NewSelector(adapters []DataAdapter, opts Options) (*Selector, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("selector: at least one adapter is required")
	}
	opts.fill()

	s := &Selector{opts: opts}
	for _, a := range adapters {
		st := &adapterState{adapter: a, health: HealthOnline}
		st.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        a.Name(),
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < 5 {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					s.setHealth(name, HealthOffline)
				}
			},
		})
		s.states = append(s.states, st)
	}
	return s, nil
}

// Stats returns a snapshot of every adapter's health accounting.
func (s *Selector) Stats() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Stats, len(s.states))
	for i, st := range s.states {
		out[i] = Stats{
			Name:       st.adapter.Name(),
			Health:     st.health,
			Successes:  st.successes,
			Failures:   st.failures,
			AvgLatency: st.avgLatency,
		}
		if st.lastError != nil {
			out[i].LastError = st.lastError.Error()
		}
	}
	return out
}

// setHealth transitions one adapter's health and fires the change hook.
func (s *Selector) setHealth(name string, to Health) {
	var hook func(string, Health, Health)
	var from Health

	s.mu.Lock()
	for _, st := range s.states {
		if st.adapter.Name() != name || st.health == to {
			continue
		}
		from = st.health
		st.health = to
		if to == HealthError {
			st.erroredAt = time.Now()
		}
		hook = s.opts.OnHealthChange
	}
	s.mu.Unlock()

	if hook != nil {
		hook(name, from, to)
	}
}

// recordResult updates counters and latency for one attempt.
func (s *Selector) recordResult(st *adapterState, latency time.Duration, err error) {
	s.mu.Lock()
	if err != nil {
		st.failures++
		st.lastError = err
		if st.health == HealthOnline {
			st.health = HealthError
			st.erroredAt = time.Now()
		}
	} else {
		st.successes++
		if st.avgLatency == 0 {
			st.avgLatency = latency
		} else {
			// EWMA with 1/4 weight on the newest sample.
			st.avgLatency = (st.avgLatency*3 + latency) / 4
		}
	}
	s.mu.Unlock()
}

// candidateOrder returns adapter states starting with the preferred name
// (when set and known), then the configured priority order.
func (s *Selector) candidateOrder(preferred string) []*adapterState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*adapterState, 0, len(s.states))
	if preferred != "" {
		for _, st := range s.states {
			if st.adapter.Name() == preferred {
				out = append(out, st)
			}
		}
	}
	for _, st := range s.states {
		if st.adapter.Name() != preferred {
			out = append(out, st)
		}
	}
	return out
}

// fetch runs fn against adapters in candidate order until one succeeds.
// It returns the name of the adapter that served the request.
func (s *Selector) fetch(ctx context.Context, preferred string, fn func(ctx context.Context, a DataAdapter) error) (string, error) {
	var lastErr error

	for _, st := range s.candidateOrder(preferred) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
		start := time.Now()
		_, err := st.breaker.Execute(func() (any, error) {
			return nil, fn(attemptCtx, st.adapter)
		})
		cancel()
		s.recordResult(st, time.Since(start), err)

		if err == nil {
			return st.adapter.Name(), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", models.NewRunError(models.ErrCancelled, "fetch cancelled: %v", ctx.Err())
		}
	}

	return "", models.NewRunError(models.ErrAdapterUnavailable, "all adapters failed: %v", lastErr)
}

// ────────────────────────────────────────────────────────────────────
// Sticky per-run sessions
// ────────────────────────────────────────────────────────────────────

// Session pins fetches for one run to a single adapter when possible, so
// adjust conventions stay consistent within the run. A forced failover is
// recorded and surfaces as adapter_switched_during_run in run metadata.
type Session struct {
	sel      *Selector
	mu       sync.Mutex
	current  string
	switched bool
}

// Session starts a sticky fetch session.
func (s *Selector) Session() *Session {
	return &Session{sel: s}
}

func (ss *Session) noteAdapter(used string) {
	ss.mu.Lock()
	if ss.current != "" && ss.current != used {
		ss.switched = true
	}
	ss.current = used
	ss.mu.Unlock()
}

// AdapterUsed returns the adapter that served the session's last fetch.
func (ss *Session) AdapterUsed() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.current
}

// Switched reports whether failover changed the adapter mid-session.
func (ss *Session) Switched() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.switched
}

// GetOHLCV fetches bars through the session's pinned adapter, cascading on
// failure. An empty range from a healthy adapter is NO_DATA for the run.
func (ss *Session) GetOHLCV(ctx context.Context, symbol string, start, end time.Time, adjust models.Adjust) ([]models.Bar, error) {
	var bars []models.Bar
	used, err := ss.sel.fetch(ctx, ss.AdapterUsed(), func(ctx context.Context, a DataAdapter) error {
		var ferr error
		bars, ferr = a.GetOHLCV(ctx, symbol, start, end, adjust)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	ss.noteAdapter(used)

	if len(bars) == 0 {
		return nil, models.NewRunError(models.ErrNoData,
			"%s returned no bars for %s in [%s, %s]",
			used, symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return bars, nil
}

// GetStockInfo fetches symbol metadata through the pinned adapter.
func (ss *Session) GetStockInfo(ctx context.Context, symbol string) (models.StockInfo, error) {
	var info models.StockInfo
	used, err := ss.sel.fetch(ctx, ss.AdapterUsed(), func(ctx context.Context, a DataAdapter) error {
		var ferr error
		info, ferr = a.GetStockInfo(ctx, symbol)
		return ferr
	})
	if err != nil {
		return models.StockInfo{}, err
	}
	ss.noteAdapter(used)
	return info, nil
}

// ────────────────────────────────────────────────────────────────────
// Background health probe
// ────────────────────────────────────────────────────────────────────

// StartProbe launches the background health probe. It pings all adapters
// concurrently on the configured cadence and resets ERROR adapters back to
// ONLINE after the cooldown when they respond again. The probe never
// blocks in-flight fetches; it stops when ctx is done.
func (s *Selector) StartProbe(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.opts.ProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.probeOnce(ctx)
			}
		}
	}()
}

// probeOnce pings every adapter concurrently and applies health resets.
func (s *Selector) probeOnce(ctx context.Context) {
	s.mu.RLock()
	states := make([]*adapterState, len(s.states))
	copy(states, s.states)
	cooldown := s.opts.ErrorCooldown
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range states {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(gctx, s.opts.FetchTimeout)
			err := st.adapter.Ping(pingCtx)
			cancel()

			s.mu.Lock()
			switch {
			case err != nil:
				if st.health == HealthOnline {
					st.health = HealthError
					st.erroredAt = time.Now()
					st.lastError = err
				}
			case st.health != HealthOnline && time.Since(st.erroredAt) >= cooldown:
				st.health = HealthOnline
			}
			s.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}
