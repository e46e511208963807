package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/config"
	"github.com/sells-group/gap-analysis/internal/model"
)

func thresholds() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold:       0.10,
		LowConfidenceRateThreshold: 0.50,
		CostThresholdUSD:           100.0,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	alerts := NewAlerter(thresholds()).Evaluate(&MetricsSnapshot{
		RunsTotal:         100,
		RunsComplete:      95,
		RunsFailed:        5,
		FailRate:          0.05,
		LowConfidenceRate: 0.2,
		CostUSD:           40,
		LookbackHours:     24,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	alerts := NewAlerter(thresholds()).Evaluate(&MetricsSnapshot{
		RunsTotal:     20,
		RunsComplete:  12,
		RunsFailed:    8,
		FailRate:      0.4,
		LookbackHours: 24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_TooFewRuns(t *testing.T) {
	alerts := NewAlerter(thresholds()).Evaluate(&MetricsSnapshot{
		RunsComplete:      2,
		RunsFailed:        2,
		FailRate:          0.5,
		LowConfidenceRate: 1,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_LowConfidence(t *testing.T) {
	alerts := NewAlerter(thresholds()).Evaluate(&MetricsSnapshot{
		RunsComplete:      10,
		LowConfidence:     8,
		LowConfidenceRate: 0.8,
		Degradations:      map[model.ErrorKind]int{model.KindBudgetExceeded: 3},
		LookbackHours:     24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowConfidenceRate, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Equal(t, 3, alerts[0].Details["degraded_budget_exceeded"])
}

func TestAlerter_Evaluate_CostOverrun(t *testing.T) {
	alerts := NewAlerter(thresholds()).Evaluate(&MetricsSnapshot{CostUSD: 150, LookbackHours: 24})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCostOverrun, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "$150.00")
}

func TestAlerter_Evaluate_DisabledThresholds(t *testing.T) {
	alerts := NewAlerter(config.MonitoringConfig{}).Evaluate(&MetricsSnapshot{
		RunsComplete: 10, RunsFailed: 10, FailRate: 0.5, LowConfidenceRate: 1, CostUSD: 1e6,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var a Alert
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&a)) {
			assert.Equal(t, AlertCostOverrun, a.Type)
		}
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := thresholds()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertCostOverrun}, {Type: AlertCostOverrun}})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := thresholds()
	cfg.WebhookURL = srv.URL
	assert.Equal(t, 0, NewAlerter(cfg).SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}}))
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	assert.Equal(t, 0, NewAlerter(thresholds()).SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}}))
}
