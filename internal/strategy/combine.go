package strategy

import (
	"strings"

	"github.com/qinvest/stocksim/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Signal Combiners
// ════════════════════════════════════════════════════════════════════

// CombinerKind selects how multiple strategies' signals merge.
type CombinerKind string

const (
	CombineAND      CombinerKind = "AND"
	CombineOR       CombinerKind = "OR"
	CombineVote     CombinerKind = "VOTE"
	CombineWeighted CombinerKind = "WEIGHTED"
)

// Combiner merges the aligned signal sets of several strategies into one.
// A bar may assert both buy and sell after merging; the trading engine
// resolves that against the current position (risk-first: an exit always
// outranks an entry on the same name).
type Combiner struct {
	Kind      CombinerKind
	K         int       // VOTE: minimum agreeing components
	Weights   []float64 // WEIGHTED: one weight per component
	Threshold float64   // WEIGHTED: decision cutoff
}

// NewCombiner validates and builds a combiner. An empty kind defaults to
// AND, which is also the single-strategy identity.
func NewCombiner(kind string, k int, weights []float64, threshold float64) (Combiner, error) {
	ck := CombinerKind(strings.ToUpper(strings.TrimSpace(kind)))
	if ck == "" {
		ck = CombineAND
	}

	c := Combiner{Kind: ck, K: k, Weights: weights, Threshold: threshold}
	switch ck {
	case CombineAND, CombineOR:
	case CombineVote:
		if k <= 0 {
			return c, models.NewRunError(models.ErrInvalidConfig, "VOTE combiner needs a positive threshold k")
		}
	case CombineWeighted:
		if len(weights) == 0 {
			return c, models.NewRunError(models.ErrInvalidConfig, "WEIGHTED combiner needs weights")
		}
		if threshold <= 0 {
			return c, models.NewRunError(models.ErrInvalidConfig, "WEIGHTED combiner needs a positive cutoff")
		}
	default:
		return c, models.NewRunError(models.ErrInvalidConfig, "unknown combiner %q", kind)
	}
	return c, nil
}

// Combine merges the component signal sets. All sets must share the same
// length; the result has that length.
func (c Combiner) Combine(sets [][]models.Signal) ([]models.Signal, error) {
	if len(sets) == 0 {
		return nil, models.NewRunError(models.ErrInvalidConfig, "no signal sets to combine")
	}
	n := len(sets[0])
	for _, set := range sets[1:] {
		if len(set) != n {
			return nil, models.NewRunError(models.ErrInternal, "misaligned signal sets: %d vs %d", len(set), n)
		}
	}
	if c.Kind == CombineWeighted && len(c.Weights) != len(sets) {
		return nil, models.NewRunError(models.ErrInvalidConfig,
			"WEIGHTED combiner has %d weights for %d strategies", len(c.Weights), len(sets))
	}

	out := make([]models.Signal, n)
	for i := 0; i < n; i++ {
		var buys, sells int
		var buyWeight, sellWeight float64
		for j, set := range sets {
			if set[i].Buy {
				buys++
				if c.Kind == CombineWeighted {
					buyWeight += c.Weights[j]
				}
			}
			if set[i].Sell {
				sells++
				if c.Kind == CombineWeighted {
					sellWeight += c.Weights[j]
				}
			}
		}

		var sig models.Signal
		switch c.Kind {
		case CombineAND:
			// Buy needs unanimity; any component may veto into a sell.
			sig.Buy = buys == len(sets)
			sig.Sell = sells > 0
		case CombineOR:
			sig.Buy = buys > 0
			sig.Sell = sells == len(sets)
		case CombineVote:
			sig.Buy = buys >= c.K
			sig.Sell = sells >= c.K
		case CombineWeighted:
			sig.Buy = buyWeight >= c.Threshold
			sig.Sell = sellWeight >= c.Threshold
		}

		out[i] = sig
	}
	return out, nil
}
