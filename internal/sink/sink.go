// Package sink delivers finished analysis results to their destinations.
package sink

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/model"
)

// Sink receives a finished result.
type Sink interface {
	Save(ctx context.Context, result *model.AnalysisResult) error
}

// ResultSaver persists results; store.Store satisfies it.
type ResultSaver interface {
	SaveResult(ctx context.Context, result *model.AnalysisResult) error
}

// StoreSink writes results to the run table.
type StoreSink struct {
	saver ResultSaver
}

// NewStoreSink returns a sink backed by saver.
func NewStoreSink(saver ResultSaver) *StoreSink {
	return &StoreSink{saver: saver}
}

// Save implements Sink.
func (s *StoreSink) Save(ctx context.Context, result *model.AnalysisResult) error {
	return eris.Wrap(s.saver.SaveResult(ctx, result), "sink: store")
}

type multi []Sink

// Multi fans a result out to every non-nil sink in order. All sinks are
// attempted; the first failure is returned.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Save(ctx context.Context, result *model.AnalysisResult) error {
	var first error
	failed := 0
	for _, s := range m {
		if err := s.Save(ctx, result); err != nil {
			failed++
			zap.L().Warn("sink: save failed",
				zap.String("run_id", result.RunID),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		return eris.Wrapf(first, "sink: %d of %d sinks failed", failed, len(m))
	}
	return nil
}
