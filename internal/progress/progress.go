// Package progress carries the ordered phase-transition events of a run to
// whoever is watching it.
package progress

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/model"
)

// Emitter receives progress events in order.
type Emitter interface {
	Emit(ctx context.Context, ev model.ProgressEvent)
}

// Func adapts a function to an Emitter.
type Func func(ctx context.Context, ev model.ProgressEvent)

// Emit implements Emitter.
func (f Func) Emit(ctx context.Context, ev model.ProgressEvent) { f(ctx, ev) }

// Nop discards every event.
var Nop Emitter = Func(func(context.Context, model.ProgressEvent) {})

// Multi fans each event out to every emitter in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, ev model.ProgressEvent) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, ev)
		}
	}
}

// Logger writes events to the global zap logger.
type Logger struct{}

// Emit implements Emitter.
func (Logger) Emit(_ context.Context, ev model.ProgressEvent) {
	fields := []zap.Field{
		zap.String("run_id", ev.RunID),
		zap.Int("seq", ev.Seq),
		zap.String("phase", ev.Phase),
		zap.String("status", string(ev.Status)),
	}
	if ev.Message != "" {
		fields = append(fields, zap.String("message", ev.Message))
	}
	switch ev.Status {
	case model.ProgressFailed, model.ProgressDegraded:
		zap.L().Warn("progress", fields...)
	default:
		zap.L().Info("progress", fields...)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

// Emit implements Emitter.
func (r *Recorder) Emit(_ context.Context, ev model.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []model.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Since returns the recorded events of runID with a sequence number above
// seq.
func (r *Recorder) Since(runID string, seq int) []model.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProgressEvent
	for _, ev := range r.events {
		if ev.RunID == runID && ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// EventAppender persists events.
type EventAppender interface {
	AppendEvent(ctx context.Context, ev model.ProgressEvent) error
}

// Store persists events so they can be polled later. Write failures are
// logged, never returned.
type Store struct {
	Appender EventAppender
}

// Emit implements Emitter.
func (s Store) Emit(ctx context.Context, ev model.ProgressEvent) {
	if err := s.Appender.AppendEvent(context.WithoutCancel(ctx), ev); err != nil {
		zap.L().Warn("progress: persist event failed",
			zap.String("run_id", ev.RunID),
			zap.Int("seq", ev.Seq),
			zap.Error(err),
		)
	}
}

// Sequencer stamps the events of one run with its ID, a monotonically
// increasing sequence number and a timestamp.
type Sequencer struct {
	runID string
	next  Emitter
	now   func() time.Time

	mu  sync.Mutex
	seq int
}

// NewSequencer creates a Sequencer for runID. A nil next discards events.
func NewSequencer(runID string, next Emitter) *Sequencer {
	if next == nil {
		next = Nop
	}
	return &Sequencer{runID: runID, next: next, now: time.Now}
}

// Emit stamps and forwards one event. Sequence numbers start at 1.
func (s *Sequencer) Emit(ctx context.Context, phase string, status model.ProgressStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.next.Emit(ctx, model.ProgressEvent{
		RunID:   s.runID,
		Seq:     s.seq,
		Phase:   phase,
		Status:  status,
		Message: message,
		At:      s.now().UTC(),
	})
}
