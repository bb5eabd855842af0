package main

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/regression"
	"github.com/stellarlinkco/replay-eval/internal/scorer"
	"github.com/stellarlinkco/replay-eval/internal/sweep"
)

type OutputFormat string

const (
	FormatTable    OutputFormat = "table"
	FormatJSON     OutputFormat = "json"
	FormatMarkdown OutputFormat = "markdown"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return FormatTable
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	default:
		return ""
	}
}

func resolveOutputFormat(flagValue string) (OutputFormat, error) {
	if strings.TrimSpace(flagValue) == "" {
		return FormatTable, nil
	}
	out := parseOutputFormat(flagValue)
	if out == "" {
		return "", fmt.Errorf("invalid --output %q (expected table|json|markdown)", flagValue)
	}
	return out, nil
}

func coloredStatus(passed bool) string {
	if passed {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

func coloredSeverity(sev regression.Severity) string {
	switch sev {
	case regression.SeverityCritical:
		return colorRed + strings.ToUpper(string(sev)) + colorReset
	case regression.SeverityWarning:
		return colorYellow + strings.ToUpper(string(sev)) + colorReset
	default:
		return string(sev)
	}
}

func formatRunTable(run *sweep.Run) string {
	if run == nil {
		return "Sweep: <nil> " + coloredStatus(false) + "\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Sweep: %s (mode=%s", run.ID, run.Mode)
	if run.AgentID != "" {
		fmt.Fprintf(&buf, " agent=%s", run.AgentID)
	}
	fmt.Fprintf(&buf, ")\n")
	fmt.Fprintf(&buf, "Pairs: %d passed=%d failed=%d avg_overall=%.3f critical_alerts=%d\n\n",
		run.Total, run.Passed, run.Failed, run.AvgOverall, run.Critical)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EPISODE\tCORRECT\tCOST\tLATENCY\tTOOLS\tSAFETY\tOVERALL\tFLAGS")
	for _, pr := range run.Results {
		if pr.Result == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\terror: %s\n", pr.EpisodeID, pr.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.3f\t%s\n",
			pr.EpisodeID,
			dimCell(pr.Result, scorer.DimCorrectness),
			dimCell(pr.Result, scorer.DimCost),
			dimCell(pr.Result, scorer.DimLatency),
			dimCell(pr.Result, scorer.DimToolMatch),
			dimCell(pr.Result, scorer.DimSafety),
			pr.Result.Overall,
			strings.Join(pr.Result.Flags, "; "),
		)
	}
	_ = tw.Flush()
	buf.WriteByte('\n')

	if len(run.Alerts) == 0 {
		fmt.Fprintf(&buf, "Regressions: none\n")
	} else {
		tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SEVERITY\tDIMENSION\tEPISODE\tMESSAGE")
		for _, a := range run.Alerts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				coloredSeverity(a.Severity), a.Dimension, a.BaselineID, a.Message)
		}
		_ = tw.Flush()
	}

	fmt.Fprintf(&buf, "Overall: %s\n", coloredStatus(run.Critical == 0))
	return buf.String()
}

func dimCell(res *scorer.EvalResult, d scorer.Dimension) string {
	sc, ok := res.Dimension(d)
	if !ok {
		return "-"
	}
	if sc.NonComparable {
		return fmt.Sprintf("%.3f*", sc.Value)
	}
	return fmt.Sprintf("%.3f", sc.Value)
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --since %q (expected YYYY-MM-DD or RFC3339)", s)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
