package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/qinvest/stocksim/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Strategy Interface & Parameters
// ════════════════════════════════════════════════════════════════════

// ParamKind is the declared type of a strategy parameter.
type ParamKind string

const (
	ParamInteger ParamKind = "integer"
	ParamFloat   ParamKind = "float"
	ParamBoolean ParamKind = "boolean"
	ParamEnum    ParamKind = "enum"
)

// ParamSpec describes one typed, range-checked strategy parameter.
type ParamSpec struct {
	Name        string    `json:"name"`
	Kind        ParamKind `json:"kind"`
	Default     any       `json:"default"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Choices     []string  `json:"choices,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Params is the caller-supplied parameter bag. Typed accessors fall back
// to the spec default when a key is absent.
type Params map[string]any

// Int reads an integer parameter, defaulting from spec.
func (p Params) Int(spec ParamSpec) int {
	if v, ok := p[spec.Name]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	if d, ok := spec.Default.(int); ok {
		return d
	}
	return 0
}

// Float reads a float parameter, defaulting from spec.
func (p Params) Float(spec ParamSpec) float64 {
	if v, ok := p[spec.Name]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	if d, ok := spec.Default.(float64); ok {
		return d
	}
	return 0
}

// Bool reads a boolean parameter, defaulting from spec.
func (p Params) Bool(spec ParamSpec) bool {
	if v, ok := p[spec.Name].(bool); ok {
		return v
	}
	d, _ := spec.Default.(bool)
	return d
}

// Strategy produces aligned buy/sell signals from a bar history.
// Implementations must be pure and free of look-ahead.
type Strategy interface {
	// ID returns the stable registry identifier, e.g. "ma_cross".
	ID() string

	// Name returns the human-readable strategy name.
	Name() string

	// ParamSpecs returns the typed parameter declarations.
	ParamSpecs() []ParamSpec

	// GenerateSignals returns one Signal per input bar. The signal at
	// index i may consult bars[0..i] only.
	GenerateSignals(bars []models.Bar, params Params) ([]models.Signal, error)
}

// SignalAnalysis is the optional advisory snapshot for surrounding code.
// The backtesting core never depends on it.
type SignalAnalysis struct {
	Status     string             `json:"status"`    // e.g. "bullish", "bearish", "neutral"
	Proximity  float64            `json:"proximity"` // 0..1 distance to the next trigger
	Indicators map[string]float64 `json:"indicators"`
	Suggestion string             `json:"suggestion"`
}

// SignalAnalyzer is implemented by strategies that can explain their
// current stance over the latest bars.
type SignalAnalyzer interface {
	AnalyzeCurrent(bars []models.Bar, params Params) (SignalAnalysis, error)
}

// ════════════════════════════════════════════════════════════════════
// Registry
// ════════════════════════════════════════════════════════════════════

// Registry is a thread-safe strategy registry keyed by strategy ID.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy. Duplicate IDs overwrite the previous entry.
func (r *Registry) Register(s Strategy) error {
	if s.ID() == "" {
		return fmt.Errorf("strategy ID cannot be empty")
	}
	r.mu.Lock()
	r.strategies[s.ID()] = s
	r.mu.Unlock()
	return nil
}

// Get returns a strategy by ID.
func (r *Registry) Get(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	if !ok {
		return nil, models.NewRunError(models.ErrInvalidConfig, "unknown strategy %q", id)
	}
	return s, nil
}

// List returns all registered strategies sorted by ID.
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// DefaultRegistry returns a registry pre-loaded with the built-in
// strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range Builtins() {
		_ = r.Register(s)
	}
	return r
}
