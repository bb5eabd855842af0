// Package report renders a sweep into its JSON and Markdown documents.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/stellarlinkco/replay-eval/internal/regression"
	"github.com/stellarlinkco/replay-eval/internal/scorer"
	"github.com/stellarlinkco/replay-eval/internal/sweep"
)

// JSON renders the sweep as an indented JSON document.
func JSON(run *sweep.Run) ([]byte, error) {
	if run == nil {
		return nil, errors.New("report: nil run")
	}
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: marshal run: %w", err)
	}
	return b, nil
}

// Markdown renders the sweep as a Markdown document: summary, per-pair
// dimension table, alerts, and output diffs for correctness
// regressions.
func Markdown(run *sweep.Run) string {
	if run == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Eval Sweep %s\n\n", run.ID))
	sb.WriteString(fmt.Sprintf("- Mode: %s\n", run.Mode))
	if run.AgentID != "" {
		sb.WriteString(fmt.Sprintf("- Agent: %s\n", run.AgentID))
	}
	sb.WriteString(fmt.Sprintf("- Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05 UTC")))
	sb.WriteString(fmt.Sprintf("- Episodes: %d (passed: %d, failed: %d)\n", run.Total, run.Passed, run.Failed))
	sb.WriteString(fmt.Sprintf("- Average overall: %.3f\n", run.AvgOverall))
	sb.WriteString(fmt.Sprintf("- Critical regressions: %d\n\n", run.Critical))

	sb.WriteString("## Results\n\n")
	sb.WriteString("| Episode | Correctness | Cost | Tool Match | Latency | Safety | Overall | Flags |\n")
	sb.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, pr := range run.Results {
		if pr.Result == nil {
			sb.WriteString(fmt.Sprintf("| %s | — | — | — | — | — | error | %s |\n", pr.EpisodeID, escapeCell(pr.Error)))
			continue
		}
		row := make([]string, 0, len(scorer.Dimensions))
		for _, d := range scorer.Dimensions {
			if sc, ok := pr.Result.Dimension(d); ok {
				row = append(row, fmt.Sprintf("%.2f", sc.Value))
			} else {
				row = append(row, "—")
			}
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %.3f | %s |\n",
			pr.EpisodeID, strings.Join(row, " | "), pr.Result.Overall,
			escapeCell(strings.Join(pr.Result.Flags, "; "))))
	}
	sb.WriteString("\n")

	if len(run.Alerts) > 0 {
		sb.WriteString("## Alerts\n\n")
		sb.WriteString("| Severity | Dimension | Episode | Message |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, a := range run.Alerts {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				strings.ToUpper(string(a.Severity)), a.Dimension, a.BaselineID, escapeCell(a.Message)))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No regressions detected.\n\n")
	}

	diffs := outputDiffs(run)
	if diffs != "" {
		sb.WriteString("## Output Diffs\n\n")
		sb.WriteString(diffs)
	}

	return sb.String()
}

// outputDiffs renders a word-level diff of baseline vs replay final
// output for every pair whose correctness regressed past its floor.
func outputDiffs(run *sweep.Run) string {
	dmp := diffmatchpatch.New()
	var sb strings.Builder

	for _, pr := range run.Results {
		if pr.Result == nil || !hasCorrectnessAlert(pr.Alerts) {
			continue
		}

		diffs := dmp.DiffMain(pr.BaselineOutput, pr.ReplayOutput, false)
		dmp.DiffCleanupSemantic(diffs)

		sb.WriteString(fmt.Sprintf("### %s\n\n```diff\n", pr.EpisodeID))
		for _, d := range diffs {
			text := strings.TrimRight(d.Text, "\n")
			if text == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				writePrefixed(&sb, "-", text)
			case diffmatchpatch.DiffInsert:
				writePrefixed(&sb, "+", text)
			default:
				writePrefixed(&sb, " ", text)
			}
		}
		sb.WriteString("```\n\n")
	}

	return sb.String()
}

func hasCorrectnessAlert(alerts []regression.Alert) bool {
	for _, a := range alerts {
		if a.Dimension == scorer.DimCorrectness {
			return true
		}
	}
	return false
}

func writePrefixed(sb *strings.Builder, prefix, text string) {
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(prefix)
		sb.WriteString(" ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// WriteJSON writes the JSON report under dir and returns the path.
func WriteJSON(dir string, run *sweep.Run) (string, error) {
	b, err := JSON(run)
	if err != nil {
		return "", err
	}
	return writeFile(dir, run, ".json", b)
}

// WriteMarkdown writes the Markdown report under dir and returns the
// path.
func WriteMarkdown(dir string, run *sweep.Run) (string, error) {
	if run == nil {
		return "", errors.New("report: nil run")
	}
	return writeFile(dir, run, ".md", []byte(Markdown(run)))
}

func writeFile(dir string, run *sweep.Run, ext string, data []byte) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}

	path := filepath.Join(dir, run.ID+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}
