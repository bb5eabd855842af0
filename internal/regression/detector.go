package regression

import (
	"errors"
	"fmt"

	"github.com/stellarlinkco/replay-eval/internal/scorer"
)

// alertOrder fixes alert emission order so detector output is
// deterministic and diffable regardless of which rules fire.
var alertOrder = []scorer.Dimension{
	scorer.DimCorrectness,
	scorer.DimCost,
	scorer.DimToolMatch,
	scorer.DimLatency,
	scorer.DimSafety,
	scorer.DimOverall,
}

// Alert is one detected regression. It back-references the producing
// result by episode identifiers only and is never mutated after
// detection.
type Alert struct {
	Dimension  scorer.Dimension `json:"dimension"`
	Severity   Severity         `json:"severity"`
	Raw        float64          `json:"raw"`
	Message    string           `json:"message"`
	BaselineID string           `json:"baseline_id,omitempty"`
	ReplayID   string           `json:"replay_id,omitempty"`
}

// Detector applies a validated threshold table to eval results. Safe
// for concurrent use; the table is read-only after construction.
type Detector struct {
	table Table
}

// NewDetector validates the table up front so a malformed policy fails
// before any result is checked.
func NewDetector(table Table) (*Detector, error) {
	if table == nil {
		table = DefaultTable()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Detector{table: table}, nil
}

// Detect checks one result against every configured rule and returns
// alerts in the fixed dimension order. At most one alert is emitted per
// dimension; critical supersedes warning. An empty slice means no
// regression, which is a valid and common outcome.
func (d *Detector) Detect(result *scorer.EvalResult) ([]Alert, error) {
	if d == nil {
		return nil, errors.New("regression: nil detector")
	}
	if result == nil {
		return nil, errors.New("regression: nil result")
	}

	alerts := make([]Alert, 0, 2)
	for _, dim := range alertOrder {
		rule, ok := d.table[dim]
		if !ok {
			continue
		}

		var (
			fired    bool
			severity Severity
			raw      float64
			message  string
		)

		switch rule.Kind {
		case RuleIncrease:
			sc, ok := result.Dimension(dim)
			if !ok || sc.NonComparable {
				continue
			}
			raw = sc.Raw
			switch {
			case raw >= rule.Crit:
				fired, severity = true, SeverityCritical
				message = fmt.Sprintf("%s increased by %s (critical threshold: %s)", dim, pct(raw), pct(rule.Crit))
			case raw >= rule.Warn:
				fired, severity = true, SeverityWarning
				message = fmt.Sprintf("%s increased by %s (warning threshold: %s)", dim, pct(raw), pct(rule.Warn))
			}

		case RuleFloor:
			if dim == scorer.DimOverall {
				raw = result.Overall
			} else {
				sc, ok := result.Dimension(dim)
				if !ok {
					continue
				}
				raw = sc.Value
			}
			if raw < rule.Crit {
				fired, severity = true, SeverityCritical
				message = fmt.Sprintf("%s score %.2f below threshold %.2f", dim, raw, rule.Crit)
			}
		}

		if !fired {
			continue
		}
		alerts = append(alerts, Alert{
			Dimension:  dim,
			Severity:   severity,
			Raw:        raw,
			Message:    message,
			BaselineID: result.BaselineID,
			ReplayID:   result.ReplayID,
		})
	}

	return alerts, nil
}

// HasCritical reports whether any alert in the slice is critical.
func HasCritical(alerts []Alert) bool {
	for _, a := range alerts {
		if a.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
