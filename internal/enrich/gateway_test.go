package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/gap-analysis/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubProvider struct {
	name       string
	configured bool
	timeout    time.Duration
	delay      time.Duration
	err        error
	panics     bool
	payload    model.SignalPayload
	calls      atomic.Int32
}

func (s *stubProvider) Name() string           { return s.name }
func (s *stubProvider) Configured() bool       { return s.configured }
func (s *stubProvider) Timeout() time.Duration { return s.timeout }
func (s *stubProvider) Fetch(ctx context.Context, _ model.AnalysisContext) (model.SignalPayload, error) {
	s.calls.Add(1)
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return model.SignalPayload{}, ctx.Err()
		}
	}
	return s.payload, s.err
}

func okProvider(name string) *stubProvider {
	return &stubProvider{
		name:       name,
		configured: true,
		timeout:    time.Second,
		payload:    model.SignalPayload{Indexation: &model.IndexationStatus{Indexed: true, IndexedPages: 10}},
	}
}

func testContext() model.AnalysisContext {
	return model.AnalysisContext{SiteID: "site-1", Domain: "acme.com", CentralEntity: "roof repair", Locale: "en-US"}
}

func TestGateway_AllSucceed(t *testing.T) {
	g := NewGateway(okProvider("a"), okProvider("b"), nil, okProvider("c"))

	signals := g.Collect(context.Background(), testContext())

	require.Len(t, signals, 3)
	assert.Equal(t, []string{"a", "b", "c"}, g.Providers())
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, signals[i].Provider)
		assert.Equal(t, model.SignalOK, signals[i].Status)
		assert.True(t, signals[i].OK())
		assert.NotNil(t, signals[i].Payload.Indexation)
	}
}

func TestGateway_UnconfiguredIsSkipped(t *testing.T) {
	unconfigured := &stubProvider{name: "traffic"}
	g := NewGateway(okProvider("entity"), unconfigured)

	signals := g.Collect(context.Background(), testContext())

	require.Len(t, signals, 2)
	assert.Equal(t, model.SignalSkipped, signals[1].Status)
	assert.Contains(t, signals[1].Error, "no credentials configured")
	assert.EqualValues(t, 0, unconfigured.calls.Load())
}

func TestGateway_TimeoutDoesNotBlockOthers(t *testing.T) {
	slow := &stubProvider{name: "slow", configured: true, timeout: 50 * time.Millisecond, delay: 5 * time.Second}
	g := NewGateway(okProvider("a"), slow, okProvider("b"), okProvider("c"))

	start := time.Now()
	signals := g.Collect(context.Background(), testContext())

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, signals, 4)
	var ok, failed int
	for _, s := range signals {
		switch s.Status {
		case model.SignalOK:
			ok++
		case model.SignalFailed:
			failed++
			assert.Equal(t, "slow", s.Provider)
			assert.Contains(t, s.Error, "timed out")
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 1, failed)
}

func TestGateway_ErrorAndPanicAreContained(t *testing.T) {
	failing := &stubProvider{name: "failing", configured: true, timeout: time.Second, err: errors.New("HTTP 503")}
	panicking := &stubProvider{name: "panicking", configured: true, timeout: time.Second, panics: true}
	g := NewGateway(failing, panicking, okProvider("ok"))

	signals := g.Collect(context.Background(), testContext())

	require.Len(t, signals, 3)
	assert.Equal(t, model.SignalFailed, signals[0].Status)
	assert.Contains(t, signals[0].Error, "HTTP 503")
	assert.Contains(t, signals[0].Error, "provider unavailable")
	assert.Equal(t, model.SignalFailed, signals[1].Status)
	assert.Contains(t, signals[1].Error, "panic")
	assert.Equal(t, model.SignalOK, signals[2].Status)
}

func TestGateway_CancellationSettlesEverySlot(t *testing.T) {
	slow1 := &stubProvider{name: "slow1", configured: true, timeout: 10 * time.Second, delay: 10 * time.Second}
	slow2 := &stubProvider{name: "slow2", configured: true, timeout: 10 * time.Second, delay: 10 * time.Second}
	g := NewGateway(slow1, okProvider("fast"), slow2, &stubProvider{name: "off"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	signals := g.Collect(ctx, testContext())

	require.Len(t, signals, 4)
	assert.Equal(t, model.SignalFailed, signals[0].Status)
	assert.Contains(t, signals[0].Error, "budget exceeded")
	assert.Equal(t, model.SignalOK, signals[1].Status)
	assert.Equal(t, model.SignalFailed, signals[2].Status)
	assert.Equal(t, model.SignalSkipped, signals[3].Status)
}

func TestGateway_DefaultTimeout(t *testing.T) {
	p := &stubProvider{name: "p", configured: true}
	signals := NewGateway(p).Collect(context.Background(), testContext())
	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalOK, signals[0].Status)
}

func TestGateway_Empty(t *testing.T) {
	assert.Empty(t, NewGateway().Collect(context.Background(), testContext()))
}
