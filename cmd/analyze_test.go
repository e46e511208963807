package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/model"
)

func testResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		RunID:   "run-1",
		Context: model.AnalysisContext{SiteID: "acme", CentralEntity: "Roof replacement"},
		Recommendations: []model.Recommendation{{
			Rank:     1,
			Severity: model.TierCritical,
			Action:   "Publish roof replacement warranty terms",
		}},
	}
}

func TestWriteResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, testResult(), "json"))

	var got model.AnalysisResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Recommendations, 1)
	assert.Equal(t, model.TierCritical, got.Recommendations[0].Severity)
	assert.Contains(t, buf.String(), "\n  \"run_id\"")
}

func TestWriteResult_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, testResult(), "markdown"))

	out := buf.String()
	assert.Contains(t, out, "# ")
	assert.Contains(t, out, "Publish roof replacement warranty terms")
}
