package models

// Signal is a boolean buy/sell pair for one symbol on one bar. When both
// are asserted on the same bar downstream consumers apply the risk-first
// policy: sell wins.
type Signal struct {
	Buy  bool `json:"buy"`
	Sell bool `json:"sell"`
}
