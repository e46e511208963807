package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/model"
)

type fakeAppender struct {
	mu     sync.Mutex
	events []model.ProgressEvent
	err    error
}

func (f *fakeAppender) AppendEvent(_ context.Context, ev model.ProgressEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func TestSequencer_StampsInOrder(t *testing.T) {
	rec := &Recorder{}
	s := NewSequencer("run-1", rec)

	s.Emit(context.Background(), "enrich", model.ProgressStarted, "")
	s.Emit(context.Background(), "enrich", model.ProgressCompleted, "4 signals")
	s.Emit(context.Background(), "queries", model.ProgressStarted, "")

	events := rec.Events()
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, i+1, ev.Seq)
		assert.False(t, ev.At.IsZero())
	}
	assert.Equal(t, "4 signals", events[1].Message)
	assert.Equal(t, "queries", events[2].Phase)
}

func TestSequencer_ConcurrentEmitsAreDense(t *testing.T) {
	rec := &Recorder{}
	s := NewSequencer("run-1", rec)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Emit(context.Background(), "crawl", model.ProgressStarted, "")
		}()
	}
	wg.Wait()

	events := rec.Events()
	require.Len(t, events, 50)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
	}
}

func TestSequencer_NilNext(t *testing.T) {
	s := NewSequencer("run-1", nil)
	assert.NotPanics(t, func() {
		s.Emit(context.Background(), "enrich", model.ProgressStarted, "")
	})
}

func TestRecorder_Since(t *testing.T) {
	rec := &Recorder{}
	a := NewSequencer("a", rec)
	b := NewSequencer("b", rec)
	a.Emit(context.Background(), "enrich", model.ProgressStarted, "")
	b.Emit(context.Background(), "enrich", model.ProgressStarted, "")
	a.Emit(context.Background(), "enrich", model.ProgressCompleted, "")

	got := rec.Since("a", 1)
	require.Len(t, got, 1)
	assert.Equal(t, model.ProgressCompleted, got[0].Status)
	assert.Empty(t, rec.Since("b", 1))
}

func TestMulti_FansOut(t *testing.T) {
	r1, r2 := &Recorder{}, &Recorder{}
	var calls int
	m := Multi{r1, nil, r2, Func(func(context.Context, model.ProgressEvent) { calls++ })}

	m.Emit(context.Background(), model.ProgressEvent{RunID: "r", Seq: 1})
	assert.Len(t, r1.Events(), 1)
	assert.Len(t, r2.Events(), 1)
	assert.Equal(t, 1, calls)
}

func TestStore_PersistsAndSwallowsErrors(t *testing.T) {
	app := &fakeAppender{}
	Store{Appender: app}.Emit(context.Background(), model.ProgressEvent{RunID: "r", Seq: 1})
	assert.Len(t, app.events, 1)

	failing := &fakeAppender{err: eris.New("disk full")}
	assert.NotPanics(t, func() {
		Store{Appender: failing}.Emit(context.Background(), model.ProgressEvent{RunID: "r", Seq: 2})
	})
}

func TestStore_DetachesCancellation(t *testing.T) {
	app := &fakeAppender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen context.Context
	Store{Appender: appenderFunc(func(c context.Context, ev model.ProgressEvent) error {
		seen = c
		return app.AppendEvent(c, ev)
	})}.Emit(ctx, model.ProgressEvent{RunID: "r", Seq: 1})

	require.NotNil(t, seen)
	assert.NoError(t, seen.Err())
	assert.Len(t, app.events, 1)
}

type appenderFunc func(ctx context.Context, ev model.ProgressEvent) error

func (f appenderFunc) AppendEvent(ctx context.Context, ev model.ProgressEvent) error { return f(ctx, ev) }

func TestLogger_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Logger{}.Emit(context.Background(), model.ProgressEvent{Status: model.ProgressDegraded, Message: "x"})
		Logger{}.Emit(context.Background(), model.ProgressEvent{Status: model.ProgressStarted})
	})
}
