// Package report renders run outcomes and the policy corpus for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/parkplan/internal/pipeline"
	"github.com/dyluth/parkplan/internal/policy"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// outcomeJSON is the machine-readable form of an Outcome.
type outcomeJSON struct {
	RunID  string                   `json:"run_id"`
	Status blackboard.RunStatus     `json:"status"`
	Error  *blackboard.ErrorPayload `json:"error,omitempty"`
	State  *blackboard.State        `json:"state"`
}

func toJSON(out pipeline.Outcome) outcomeJSON {
	return outcomeJSON{RunID: out.RunID, Status: out.Status, Error: out.Error, State: out.State}
}

// FormatJSON writes one outcome as pretty-printed JSON.
func FormatJSON(w io.Writer, out pipeline.Outcome) error {
	data, err := json.MarshalIndent(toJSON(out), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal outcome to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// FormatJSONL writes each outcome as a single JSON object on its own line.
func FormatJSONL(w io.Writer, outcomes []pipeline.Outcome) error {
	for _, out := range outcomes {
		data, err := json.Marshal(toJSON(out))
		if err != nil {
			return fmt.Errorf("failed to marshal outcome to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatTable writes a human-readable summary of one outcome: stages, measures with
// their subsidy and finance figures, review checkpoints and data gaps.
func FormatTable(w io.Writer, out pipeline.Outcome) {
	fmt.Fprintf(w, "Run %s: %s\n", out.RunID, out.Status)
	if out.Error != nil {
		stage := string(out.Error.Stage)
		if stage == "" {
			stage = "-"
		}
		fmt.Fprintf(w, "Failed at stage %s (%s): %s\n", stage, out.Error.Reason, out.Error.Message)
	}
	if out.State == nil {
		return
	}

	writeStages(w, out.State)
	writeMeasures(w, out.State)
	writeReviewItems(w, out.State.ReviewItems())
	writeDataGaps(w, out.State.DataGaps())
}

func writeStages(w io.Writer, state *blackboard.State) {
	fmt.Fprintf(w, "\nStages:\n")
	fmt.Fprintf(w, "%-10s %-20s %-5s %-8s %-5s %-16s %s\n", "STAGE", "COMPONENT", "CONF", "METRICS", "GAPS", "INPUT", "AGE")
	fmt.Fprintf(w, "%-10s %-20s %-5s %-8s %-5s %-16s %s\n", "----------", "--------------------", "-----", "--------", "-----", "----------------", "--------")
	for _, r := range state.Results() {
		fmt.Fprintf(w, "%-10s %-20s %-5.2f %-8d %-5d %-16s %s\n",
			r.Stage,
			r.Reproducibility.Component,
			r.Confidence,
			len(r.Metrics),
			len(r.DataGaps),
			truncate(r.Reproducibility.InputVersion, 16),
			formatTimestamp(r.CreatedAtMs),
		)
	}
}

func writeMeasures(w io.Writer, state *blackboard.State) {
	mr, ok := state.Result(blackboard.StageMeasures)
	if !ok || mr.Artifacts.Measures == nil {
		return
	}

	finance := make(map[string]blackboard.MeasureFinance)
	var portfolio *blackboard.PortfolioFinance
	if fr, ok := state.Result(blackboard.StageFinance); ok && fr.Artifacts.Finance != nil {
		for _, mf := range fr.Artifacts.Finance.Summary.Measures {
			finance[mf.MeasureID] = mf
		}
		portfolio = &fr.Artifacts.Finance.Summary.Portfolio
	}

	fmt.Fprintf(w, "\nMeasures:\n")
	fmt.Fprintf(w, "%-11s %-6s %-12s %-12s %-12s %-12s %-13s %s\n",
		"MEASURE", "SCORE", "CAPEX", "SUBSIDY", "NET CAPEX", "BENEFIT/YR", "NPV", "PAYBACK")
	fmt.Fprintf(w, "%-11s %-6s %-12s %-12s %-12s %-12s %-13s %s\n",
		"-----------", "------", "------------", "------------", "------------", "------------", "-------------", "-------")
	for _, m := range mr.Artifacts.Measures.Measures {
		if m.Excluded {
			fmt.Fprintf(w, "%-11s %-6s excluded: missing %s\n", m.ID, "-", strings.Join(m.MissingInputs, ", "))
			continue
		}
		mf, ok := finance[m.ID]
		if !ok {
			fmt.Fprintf(w, "%-11s %-6.3f %-12s\n", m.ID, m.Score, formatMoney(m.CAPEX))
			continue
		}
		fmt.Fprintf(w, "%-11s %-6.3f %-12s %-12s %-12s %-12s %-13s %s\n",
			m.ID, m.Score,
			formatMoney(mf.CAPEX),
			formatMoney(mf.Subsidy),
			formatMoney(mf.PostSubsidyCAPEX),
			formatMoney(mf.AnnualNetBenefit),
			formatMoney(mf.NPV),
			formatPayback(mf.PaybackYears),
		)
	}
	if dropped := mr.Artifacts.Measures.Dropped; len(dropped) > 0 {
		fmt.Fprintf(w, "Below threshold: %s\n", strings.Join(dropped, ", "))
	}
	if portfolio != nil {
		fmt.Fprintf(w, "%-11s %-6s %-12s %-12s %-12s %-12s %-13s %s\n",
			"PORTFOLIO", "",
			formatMoney(portfolio.CAPEX),
			formatMoney(portfolio.Subsidy),
			formatMoney(portfolio.PostSubsidyCAPEX),
			formatMoney(portfolio.AnnualNetBenefit),
			formatMoney(portfolio.NPV),
			formatPayback(portfolio.PaybackYears),
		)
	}
}

func writeReviewItems(w io.Writer, items []blackboard.ReviewItem) {
	if len(items) == 0 {
		fmt.Fprintf(w, "\nNo review checkpoints\n")
		return
	}
	fmt.Fprintf(w, "\nReview checkpoints (%d):\n", len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  [%s] %s/%s: %s\n", strings.ToUpper(string(item.Severity)), item.Stage, item.CheckpointID, item.Issue)
		if item.SuggestedAction != "" {
			fmt.Fprintf(w, "      → %s\n", item.SuggestedAction)
		}
	}
}

func writeDataGaps(w io.Writer, gaps []blackboard.StageDataGap) {
	if len(gaps) == 0 {
		fmt.Fprintf(w, "\nNo data gaps\n")
		return
	}
	fmt.Fprintf(w, "\nData gaps (%d):\n", len(gaps))
	for _, g := range gaps {
		fmt.Fprintf(w, "  [%s] %s/%s: %s\n", strings.ToUpper(string(g.Severity)), g.Stage, g.Category, g.Description)
	}
}

// FormatCorpus writes the clauses of a policy corpus as a table and returns the
// number of clauses written.
func FormatCorpus(w io.Writer, corpus *policy.Corpus) int {
	clauses := corpus.Clauses()
	sort.Slice(clauses, func(i, j int) bool { return clauses[i].ID < clauses[j].ID })

	fmt.Fprintf(w, "Policy corpus %s (%s):\n\n", corpus.Version(), corpus.Source())
	fmt.Fprintf(w, "%-24s %-6s %-10s %-16s %-16s %s\n", "CLAUSE", "RATE", "CAP", "ADMIN", "INDUSTRY", "MEASURES")
	fmt.Fprintf(w, "%-24s %-6s %-10s %-16s %-16s %s\n", "------------------------", "------", "----------", "----------------", "----------------", "----------------")
	for _, c := range clauses {
		fmt.Fprintf(w, "%-24s %-6s %-10s %-16s %-16s %s\n",
			truncate(c.ID, 24),
			fmt.Sprintf("%.0f%%", c.Incentive.Rate*100),
			formatCap(c.Incentive.Cap),
			formatTags(c.Tags.AdminCodes, 16),
			formatTags(c.Tags.IndustryCodes, 16),
			formatTags(c.Tags.MeasureIDs, 40),
		)
	}

	countMsg := "clause"
	if len(clauses) != 1 {
		countMsg = "clauses"
	}
	fmt.Fprintf(w, "\n%d %s loaded\n", len(clauses), countMsg)
	return len(clauses)
}

// formatMoney renders an amount in CNY with thousands separators and no decimals.
func formatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg && digits != "0" {
		return "-" + b.String()
	}
	return b.String()
}

// formatPayback renders payback years, or "never" when there is no payback.
func formatPayback(years *float64) string {
	if years == nil {
		return "never"
	}
	return fmt.Sprintf("%.1fy", *years)
}

func formatCap(limit *float64) string {
	if limit == nil {
		return "-"
	}
	return formatMoney(*limit)
}

// formatTags joins tags for display; an empty dimension shows as "-".
func formatTags(tags []string, width int) string {
	if len(tags) == 0 {
		return "-"
	}
	return truncate(strings.Join(tags, ","), width)
}

// truncate shortens s to width characters; empty values show as "-".
func truncate(s string, width int) string {
	if s == "" {
		return "-"
	}
	if len(s) > width {
		return s[:width-3] + "..."
	}
	return s
}

// formatTimestamp formats Unix milliseconds as a relative age like "2m ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))
	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
