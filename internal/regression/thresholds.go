// Package regression turns eval results into ordered regression alerts
// by comparing dimension values against a configured threshold table.
package regression

import (
	"errors"
	"fmt"

	"github.com/stellarlinkco/replay-eval/internal/scorer"
)

// Severity ranks how bad a regression is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// RuleKind selects the comparison a rule applies.
type RuleKind string

const (
	// RuleIncrease fires when a raw delta rises to or past a boundary.
	// Carries both a warning and a critical tier.
	RuleIncrease RuleKind = "increase"
	// RuleFloor fires when a normalized value drops below the critical
	// boundary. Floor rules have no warning tier: correctness and
	// safety failures are treated as severe, not advisory.
	RuleFloor RuleKind = "floor"
)

// Rule is one threshold row. For increase rules Warn and Crit are
// inclusive lower bounds on the raw delta (fractions, 0.2 = +20%). For
// floor rules only Crit is meaningful and is an exclusive lower bound
// on the normalized value.
type Rule struct {
	Kind RuleKind
	Warn float64
	Crit float64
}

// Table maps dimensions to their rules. A dimension without a rule is
// never alerted on. Tables are read-only once validated; a batch run
// shares one table across concurrent readers.
type Table map[scorer.Dimension]Rule

// DefaultTable returns the stock policy: cost warns at +20% and goes
// critical at +40%, latency at +30%/+60%, correctness and overall floor
// at 0.5, safety floors at 0.8.
func DefaultTable() Table {
	return Table{
		scorer.DimCost:        {Kind: RuleIncrease, Warn: 0.20, Crit: 0.40},
		scorer.DimLatency:     {Kind: RuleIncrease, Warn: 0.30, Crit: 0.60},
		scorer.DimCorrectness: {Kind: RuleFloor, Crit: 0.5},
		scorer.DimSafety:      {Kind: RuleFloor, Crit: 0.8},
		scorer.DimOverall:     {Kind: RuleFloor, Crit: 0.5},
	}
}

// Validate rejects malformed tables before any scoring begins: an
// increase rule whose warning boundary exceeds its critical boundary
// would silently swallow the warning tier.
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("regression: empty threshold table")
	}
	for d, r := range t {
		switch r.Kind {
		case RuleIncrease:
			if r.Warn > r.Crit {
				return fmt.Errorf("regression: %s: warning boundary %v above critical %v", d, r.Warn, r.Crit)
			}
		case RuleFloor:
			if r.Crit < 0 || r.Crit > 1 {
				return fmt.Errorf("regression: %s: floor boundary %v outside [0,1]", d, r.Crit)
			}
		default:
			return fmt.Errorf("regression: %s: unknown rule kind %q", d, r.Kind)
		}
	}
	return nil
}
