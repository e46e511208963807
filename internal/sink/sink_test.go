package sink

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/model"
)

type saverFunc func(ctx context.Context, result *model.AnalysisResult) error

func (f saverFunc) SaveResult(ctx context.Context, result *model.AnalysisResult) error {
	return f(ctx, result)
}

type sinkFunc func(ctx context.Context, result *model.AnalysisResult) error

func (f sinkFunc) Save(ctx context.Context, result *model.AnalysisResult) error {
	return f(ctx, result)
}

func TestStoreSink(t *testing.T) {
	var got *model.AnalysisResult
	s := NewStoreSink(saverFunc(func(_ context.Context, r *model.AnalysisResult) error {
		got = r
		return nil
	}))
	result := &model.AnalysisResult{RunID: "run-1"}
	require.NoError(t, s.Save(context.Background(), result))
	assert.Same(t, result, got)

	failing := NewStoreSink(saverFunc(func(context.Context, *model.AnalysisResult) error {
		return eris.New("disk full")
	}))
	err := failing.Save(context.Background(), result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink: store")
}

func TestMulti_AttemptsEverySink(t *testing.T) {
	var calls []string
	record := func(name string, err error) Sink {
		return sinkFunc(func(context.Context, *model.AnalysisResult) error {
			calls = append(calls, name)
			return err
		})
	}

	m := Multi(record("a", nil), nil, record("b", eris.New("b down")), record("c", eris.New("c down")))
	err := m.Save(context.Background(), &model.AnalysisResult{RunID: "run-1"})
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Contains(t, err.Error(), "2 of 3 sinks failed")
	assert.Contains(t, err.Error(), "b down")
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi().Save(context.Background(), &model.AnalysisResult{}))
}
