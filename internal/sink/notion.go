package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/pkg/notion"
)

// Notion database property names.
const (
	propName          = "Name"
	propSite          = "Site"
	propRun           = "Run"
	propRank          = "Rank"
	propSeverity      = "Severity"
	propKind          = "Kind"
	propContentArea   = "Content Area"
	propGaps          = "Gaps"
	propCompetitors   = "Competitors"
	propLowConfidence = "Low Confidence"
)

// notionTextLimit is Notion's maximum rich-text content length.
const notionTextLimit = 2000

// NotionSink publishes one database page per recommendation. Pages from
// earlier runs of the same site are archived first.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotionSink returns a sink writing into the database dbID.
func NewNotionSink(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

// Save implements Sink.
func (s *NotionSink) Save(ctx context.Context, result *model.AnalysisResult) error {
	siteID := result.Context.SiteID
	log := zap.L().With(zap.String("run_id", result.RunID), zap.String("site_id", siteID))

	previous, err := notion.QueryByText(ctx, s.client, s.dbID, propSite, siteID)
	if err != nil {
		return eris.Wrap(err, "sink: notion: find previous pages")
	}
	if err := notion.Archive(ctx, s.client, previous); err != nil {
		return eris.Wrap(err, "sink: notion: archive previous pages")
	}

	for _, rec := range result.Recommendations {
		if _, err := s.client.CreatePage(ctx, s.pageRequest(result, rec)); err != nil {
			return eris.Wrapf(err, "sink: notion: create recommendation %d", rec.Rank)
		}
	}

	log.Info("sink: published recommendations to notion",
		zap.Int("archived", len(previous)),
		zap.Int("created", len(result.Recommendations)),
	)
	return nil
}

func (s *NotionSink) pageRequest(result *model.AnalysisResult, rec model.Recommendation) *notionapi.PageCreateRequest {
	gaps := make([]string, 0, len(rec.Gaps))
	for _, g := range rec.Gaps {
		gaps = append(gaps, g.String())
	}

	props := notionapi.Properties{
		propName: notionapi.TitleProperty{
			Title: richText(PageTitle(rec)),
		},
		propSite: notionapi.RichTextProperty{
			RichText: richText(result.Context.SiteID),
		},
		propRun: notionapi.RichTextProperty{
			RichText: richText(result.RunID),
		},
		propRank: notionapi.NumberProperty{
			Number: float64(rec.Rank),
		},
		propSeverity: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(rec.Severity)},
		},
		propKind: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(rec.Kind)},
		},
		propCompetitors: notionapi.NumberProperty{
			Number: float64(rec.Competitors),
		},
		propLowConfidence: notionapi.CheckboxProperty{
			Checkbox: rec.LowConfidence || result.LowConfidence,
		},
	}
	if rec.ContentArea != "" {
		props[propContentArea] = notionapi.RichTextProperty{RichText: richText(rec.ContentArea)}
	}
	if len(gaps) > 0 {
		props[propGaps] = notionapi.RichTextProperty{RichText: richText(strings.Join(gaps, "; "))}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.dbID),
		},
		Properties: props,
	}
}

func richText(content string) []notionapi.RichText {
	if r := []rune(content); len(r) > notionTextLimit {
		content = string(r[:notionTextLimit-1]) + "…"
	}
	return []notionapi.RichText{{
		Text: &notionapi.Text{Content: content},
	}}
}

// PageTitle is the title a recommendation page carries.
func PageTitle(rec model.Recommendation) string {
	return fmt.Sprintf("#%d %s", rec.Rank, rec.Action)
}
