// Package report renders analysis results as markdown and spreadsheets.
package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/gap-analysis/internal/model"
)

// Markdown renders a human-readable gap analysis report.
func Markdown(r *model.AnalysisResult) string {
	var b strings.Builder

	ac := r.Context
	fmt.Fprintf(&b, "# Gap Analysis: %s\n", ac.CentralEntity)
	fmt.Fprintf(&b, "Site: %s (%s)\n", ac.SiteID, ac.Domain)
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	if !r.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "Completed: %s\n", r.CompletedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	b.WriteString("\n")

	if r.LowConfidence {
		b.WriteString("> **Low confidence.** One or more phases degraded; see Degradations.\n\n")
	}

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Queries: %d (%s)\n", len(r.Queries), coverageLabel(r.QueryCoverage))
	fmt.Fprintf(&b, "- Competitor pages: %d of %d targets\n", len(r.Competitors), len(r.CrawlTargets))
	fmt.Fprintf(&b, "- Facts: %d own, %d competitor, %d dropped\n",
		r.Facts.OwnFacts, r.Facts.CompetitorFacts, r.Facts.Dropped)
	fmt.Fprintf(&b, "- Gaps: %d\n", len(r.Gaps))
	fmt.Fprintf(&b, "- Overall score: %s\n", measure(r.Dimensions.Overall, 1))
	fmt.Fprintf(&b, "- Token usage: %d input, %d output across %d calls\n",
		r.Usage.InputTokens, r.Usage.OutputTokens, r.Usage.Calls)
	fmt.Fprintf(&b, "- Estimated cost: $%.4f\n\n", r.CostUSD)

	b.WriteString("## Recommendations\n")
	if len(r.Recommendations) == 0 {
		b.WriteString("No recommendations.\n\n")
	} else {
		b.WriteString("| # | Severity | Kind | Action | Content area |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, rec := range r.Recommendations {
			action := rec.Action
			if rec.LowConfidence {
				action += " (low confidence)"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				rec.Rank, rec.Severity, rec.Kind, cell(action), cell(rec.ContentArea))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Gaps\n")
	if len(r.Gaps) == 0 {
		b.WriteString("No gaps found.\n\n")
	} else {
		for _, g := range r.Gaps {
			label := g.Assignment.Label
			if label.Entity == "" {
				label = g.Assignment.Key
			}
			fmt.Fprintf(&b, "- **%s** [%s, %s] %d/%d competitors",
				label, g.Tier, g.Assignment.Category, g.Assignment.SourceCount, g.Assignment.TotalCompetitors)
			if g.Kind == model.GapStrategic {
				fmt.Fprintf(&b, ", declared: %s", g.DeclaredValue)
			} else if g.ExampleValue != "" {
				fmt.Fprintf(&b, ", e.g. %s", g.ExampleValue)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Dimensions\n")
	for _, ds := range r.Dimensions.Scores {
		fmt.Fprintf(&b, "- %s: %s (weight %.2f)", ds.Dimension, measure(ds.Value, 1), ds.Weight)
		if ds.LowConfidence {
			b.WriteString(" low confidence")
		}
		if ds.Note != "" {
			fmt.Fprintf(&b, ", %s", ds.Note)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("## Density\n")
	d := r.Density
	fmt.Fprintf(&b, "- Own facts per sentence: %s\n", measure(d.OwnFactsPerSentence, 3))
	fmt.Fprintf(&b, "- Competitor average facts per sentence: %s\n", measure(d.CompetitorFactsPerSentence, 3))
	fmt.Fprintf(&b, "- Unique entities: %s own vs %s market\n",
		measure(d.OwnUniqueEntities, 1), measure(d.MarketUniqueEntities, 1))
	fmt.Fprintf(&b, "- Coverage: %s\n\n", measure(d.Coverage, 1))

	b.WriteString("## Phases\n")
	for _, p := range r.Phases {
		fmt.Fprintf(&b, "- %s: %s (%dms)\n", p.Name, p.Status, p.Duration)
		if p.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", p.Error)
		}
	}

	if len(r.Degradations) > 0 {
		b.WriteString("\n## Degradations\n")
		for _, dg := range r.Degradations {
			fmt.Fprintf(&b, "- %s (%s): %s\n", dg.Phase, dg.Kind, dg.Message)
		}
	}

	return b.String()
}

func coverageLabel(c model.QueryCoverage) string {
	if c.LowCoverage {
		return "low coverage: " + c.Reason
	}
	return fmt.Sprintf("%d categories", len(c.Categories))
}

func measure(m model.Measure, prec int) string {
	v, ok := m.Get()
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
