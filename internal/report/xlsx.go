package report

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gap-analysis/internal/model"
)

// Sheet names in workbook order.
const (
	SheetSummary         = "Summary"
	SheetRecommendations = "Recommendations"
	SheetGaps            = "Gaps"
	SheetQueries         = "Queries"
	SheetCompetitors     = "Competitors"
	SheetDimensions      = "Dimensions"
)

// Workbook builds the result spreadsheet.
func Workbook(r *model.AnalysisResult) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add summary sheet")
	}
	kv := func(k string, v any) {
		row := summary.AddRow()
		row.AddCell().SetString(k)
		row.AddCell().SetValue(v)
	}
	kv("Run", r.RunID)
	kv("Site", r.Context.SiteID)
	kv("Domain", r.Context.Domain)
	kv("Central entity", r.Context.CentralEntity)
	kv("Queries", len(r.Queries))
	kv("Competitor pages", len(r.Competitors))
	kv("Own facts", r.Facts.OwnFacts)
	kv("Competitor facts", r.Facts.CompetitorFacts)
	kv("Gaps", len(r.Gaps))
	kv("Overall score", measure(r.Dimensions.Overall, 1))
	kv("Low confidence", r.LowConfidence)
	kv("Cost (USD)", r.CostUSD)

	recs, err := addTable(f, SheetRecommendations, "Rank", "Severity", "Kind", "Action", "Content Area", "Predicate", "Gaps", "Competitors", "Low Confidence")
	if err != nil {
		return nil, err
	}
	for _, rec := range r.Recommendations {
		gaps := make([]string, 0, len(rec.Gaps))
		for _, g := range rec.Gaps {
			gaps = append(gaps, g.String())
		}
		row := recs.AddRow()
		row.AddCell().SetInt(rec.Rank)
		row.AddCell().SetString(string(rec.Severity))
		row.AddCell().SetString(string(rec.Kind))
		row.AddCell().SetString(rec.Action)
		row.AddCell().SetString(rec.ContentArea)
		row.AddCell().SetString(rec.Predicate)
		row.AddCell().SetString(strings.Join(gaps, "; "))
		row.AddCell().SetInt(rec.Competitors)
		row.AddCell().SetBool(rec.LowConfidence)
	}

	gaps, err := addTable(f, SheetGaps, "Entity", "Attribute", "Kind", "Tier", "Category", "Competitors", "Total", "Content Area", "Example", "Declared", "Best Overlap")
	if err != nil {
		return nil, err
	}
	for _, g := range r.Gaps {
		label := g.Assignment.Label
		if label.Entity == "" {
			label = g.Assignment.Key
		}
		row := gaps.AddRow()
		row.AddCell().SetString(label.Entity)
		row.AddCell().SetString(label.Attribute)
		row.AddCell().SetString(string(g.Kind))
		row.AddCell().SetString(string(g.Tier))
		row.AddCell().SetString(string(g.Assignment.Category))
		row.AddCell().SetInt(g.Assignment.SourceCount)
		row.AddCell().SetInt(g.Assignment.TotalCompetitors)
		row.AddCell().SetString(g.ContentArea)
		row.AddCell().SetString(g.ExampleValue)
		row.AddCell().SetString(g.DeclaredValue)
		row.AddCell().SetFloat(g.BestOverlap)
	}

	queries, err := addTable(f, SheetQueries, "Query", "Category", "Intent", "Content Area", "Predicate", "Rank", "Impressions", "Clicks")
	if err != nil {
		return nil, err
	}
	for _, q := range r.Queries {
		row := queries.AddRow()
		row.AddCell().SetString(q.Text)
		row.AddCell().SetString(string(q.Category))
		row.AddCell().SetString(string(q.Intent))
		row.AddCell().SetString(q.ContentArea)
		row.AddCell().SetString(q.Predicate)
		if q.Observed != nil {
			row.AddCell().SetFloat(q.Observed.Rank)
			row.AddCell().SetInt(q.Observed.Impressions)
			row.AddCell().SetInt(q.Observed.Clicks)
		}
	}

	comps, err := addTable(f, SheetCompetitors, "URL", "Domain", "Appearances", "State", "Source", "Error")
	if err != nil {
		return nil, err
	}
	for _, t := range r.CrawlTargets {
		row := comps.AddRow()
		row.AddCell().SetString(t.URL)
		row.AddCell().SetString(t.Domain)
		row.AddCell().SetInt(t.Appearances)
		row.AddCell().SetString(string(t.State))
		row.AddCell().SetString(t.Source)
		row.AddCell().SetString(t.Error)
	}

	dims, err := addTable(f, SheetDimensions, "Dimension", "Score", "Weight", "Low Confidence", "Note")
	if err != nil {
		return nil, err
	}
	for _, ds := range r.Dimensions.Scores {
		row := dims.AddRow()
		row.AddCell().SetString(string(ds.Dimension))
		if v, ok := ds.Value.Get(); ok {
			row.AddCell().SetFloat(v)
		} else {
			row.AddCell().SetString("n/a")
		}
		row.AddCell().SetFloat(ds.Weight)
		row.AddCell().SetBool(ds.LowConfidence)
		row.AddCell().SetString(ds.Note)
	}

	return f, nil
}

// WriteXLSX writes the result workbook to w.
func WriteXLSX(w io.Writer, r *model.AnalysisResult) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "xlsx: write")
}

// SaveXLSX writes the result workbook to path.
func SaveXLSX(path string, r *model.AnalysisResult) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addTable(f *xlsx.File, name string, headers ...string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range headers {
		row.AddCell().SetString(h)
	}
	return sheet, nil
}
