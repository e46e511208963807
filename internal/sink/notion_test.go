package sink

import (
	"context"
	"strings"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/pkg/notion/mocks"
)

func notionResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		RunID:   "run-1",
		Context: model.AnalysisContext{SiteID: "acme"},
		Recommendations: []model.Recommendation{
			{
				Rank:        1,
				Severity:    model.TierCritical,
				Kind:        model.RecommendContentGap,
				Action:      "Cover metal roof lifespan",
				Gaps:        []model.PairKey{{Entity: "metal roof", Attribute: "lifespan"}},
				ContentArea: "Materials",
				Competitors: 3,
			},
			{
				Rank:     2,
				Severity: model.TierHigh,
				Kind:     model.RecommendQuickWin,
				Action:   "Improve roof cost page",
			},
		},
	}
}

func TestNotionSink_ArchivesThenCreates(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	var order []string
	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(r *notionapi.DatabaseQueryRequest) bool {
		f, ok := r.Filter.(notionapi.PropertyFilter)
		return ok && f.Property == "Site" && f.RichText != nil && f.RichText.Equals == "acme"
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "old-1"}, {ID: "old-2"}},
	}, nil).Once()
	mc.On("UpdatePage", ctx, mock.Anything, mock.MatchedBy(func(r *notionapi.PageUpdateRequest) bool {
		return r.Archived
	})).Run(func(args mock.Arguments) {
		order = append(order, "archive:"+args.String(1))
	}).Return(&notionapi.Page{}, nil).Twice()

	var created []*notionapi.PageCreateRequest
	mc.On("CreatePage", ctx, mock.Anything).Run(func(args mock.Arguments) {
		req := args.Get(1).(*notionapi.PageCreateRequest)
		created = append(created, req)
		order = append(order, "create")
	}).Return(&notionapi.Page{ID: "new"}, nil).Twice()

	require.NoError(t, NewNotionSink(mc, "db-1").Save(ctx, notionResult()))

	assert.Equal(t, []string{"archive:old-1", "archive:old-2", "create", "create"}, order)
	require.Len(t, created, 2)

	first := created[0]
	assert.Equal(t, notionapi.DatabaseID("db-1"), first.Parent.DatabaseID)
	title := first.Properties["Name"].(notionapi.TitleProperty)
	assert.Equal(t, "#1 Cover metal roof lifespan", title.Title[0].Text.Content)
	assert.Equal(t, "critical", first.Properties["Severity"].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "content_gap", first.Properties["Kind"].(notionapi.SelectProperty).Select.Name)
	assert.InDelta(t, 3.0, first.Properties["Competitors"].(notionapi.NumberProperty).Number, 0.001)
	assert.Equal(t, "metal roof / lifespan", first.Properties["Gaps"].(notionapi.RichTextProperty).RichText[0].Text.Content)
	assert.Equal(t, "run-1", first.Properties["Run"].(notionapi.RichTextProperty).RichText[0].Text.Content)

	second := created[1]
	assert.NotContains(t, second.Properties, "Content Area")
	assert.NotContains(t, second.Properties, "Gaps")
}

func TestNotionSink_LowConfidenceFlag(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	var req *notionapi.PageCreateRequest
	mc.On("CreatePage", ctx, mock.Anything).Run(func(args mock.Arguments) {
		req = args.Get(1).(*notionapi.PageCreateRequest)
	}).Return(&notionapi.Page{}, nil).Once()

	result := notionResult()
	result.Recommendations = result.Recommendations[:1]
	result.LowConfidence = true
	require.NoError(t, NewNotionSink(mc, "db-1").Save(ctx, result))
	assert.True(t, req.Properties["Low Confidence"].(notionapi.CheckboxProperty).Checkbox)
}

func TestNotionSink_QueryError(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(nil, eris.New("unauthorized")).Once()

	err := NewNotionSink(mc, "db-1").Save(ctx, notionResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find previous pages")
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
}

func TestNotionSink_CreateError(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("CreatePage", ctx, mock.Anything).Return(nil, eris.New("validation_error")).Once()

	err := NewNotionSink(mc, "db-1").Save(ctx, notionResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create recommendation 1")
}

func TestRichText_Truncates(t *testing.T) {
	long := strings.Repeat("x", notionTextLimit+50)
	rt := richText(long)
	require.Len(t, rt, 1)
	assert.Len(t, []rune(rt[0].Text.Content), notionTextLimit)
	assert.Equal(t, "ok", richText("ok")[0].Text.Content)
}
