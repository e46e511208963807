package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/gap-analysis/internal/model"
)

// FormatContext renders the analysis context as the preamble every prompt
// embeds.
func FormatContext(ac model.AnalysisContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Central entity: %s\n", ac.CentralEntity)
	fmt.Fprintf(&b, "Source context: %s\n", ac.SourceContext)
	fmt.Fprintf(&b, "Central search intent: %s\n", ac.CentralSearchIntent)
	if ac.Domain != "" {
		fmt.Fprintf(&b, "Website: %s\n", ac.Domain)
	}
	if len(ac.Predicates) > 0 {
		fmt.Fprintf(&b, "Intent predicates: %s\n", strings.Join(ac.Predicates, ", "))
	}
	if len(ac.ContentAreas) > 0 {
		b.WriteString("Content areas:\n")
		for _, a := range ac.ContentAreas {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Name, a.Type)
		}
	}
	if ac.Locale != "" || ac.Region != "" {
		fmt.Fprintf(&b, "Market: %s %s\n", ac.Locale, ac.Region)
	}
	return strings.TrimSpace(b.String())
}

// FormatSignals renders the successful enrichment signals as prompt notes.
// Failed and skipped signals contribute nothing.
func FormatSignals(signals []model.EnrichmentSignal) string {
	var b strings.Builder
	for _, s := range signals {
		if !s.OK() {
			continue
		}
		p := s.Payload
		switch {
		case p.Entity != nil && p.Entity.Name != "":
			fmt.Fprintf(&b, "- Recognized entity: %s", p.Entity.Name)
			if len(p.Entity.Types) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(p.Entity.Types, ", "))
			}
			if p.Entity.Description != "" {
				fmt.Fprintf(&b, ": %s", p.Entity.Description)
			}
			b.WriteString("\n")
		case p.Salience != nil:
			fmt.Fprintf(&b, "- Entity salience in the site's own description: %.2f over %d mentions\n", p.Salience.Salience, p.Salience.Mentions)
		case p.Seasonality != nil && p.Seasonality.Peak > 0:
			fmt.Fprintf(&b, "- Search demand peaks in %s\n", time.Month(p.Seasonality.Peak))
		case p.Indexation != nil:
			fmt.Fprintf(&b, "- Indexed pages: %d\n", p.Indexation.IndexedPages)
		case p.Traffic != nil:
			fmt.Fprintf(&b, "- Monthly visits: %.0f (organic share %.0f%%)\n", p.Traffic.MonthlyVisits, p.Traffic.OrganicShare*100)
		}
	}
	return strings.TrimSpace(b.String())
}
