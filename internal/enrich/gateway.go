// Package enrich collects external signals about a site before analysis.
// Every configured provider runs concurrently and settles into exactly one
// signal, whatever happens to its siblings.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gap-analysis/internal/model"
)

// DefaultTimeout bounds a provider that declares none.
const DefaultTimeout = 10 * time.Second

// Provider produces one signal for an analysis context.
type Provider interface {
	// Name identifies the provider on its signal.
	Name() string
	// Configured reports whether credentials are present. Unconfigured
	// providers are recorded as skipped without being called.
	Configured() bool
	// Timeout is the provider's own deadline.
	Timeout() time.Duration
	// Fetch returns the provider's payload.
	Fetch(ctx context.Context, ac model.AnalysisContext) (model.SignalPayload, error)
}

// Gateway fans out to every provider and joins once all have settled.
type Gateway struct {
	providers []Provider
}

// NewGateway creates a Gateway over providers. Nil providers are ignored.
func NewGateway(providers ...Provider) *Gateway {
	g := &Gateway{}
	for _, p := range providers {
		if p != nil {
			g.providers = append(g.providers, p)
		}
	}
	return g
}

// Providers returns the provider names in registration order.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// Collect returns one signal per provider. A provider's failure, panic or
// timeout never affects another provider. Cancellation of ctx settles every
// outstanding provider as failed.
func (g *Gateway) Collect(ctx context.Context, ac model.AnalysisContext) []model.EnrichmentSignal {
	signals := make([]model.EnrichmentSignal, len(g.providers))

	var eg errgroup.Group
	for i, p := range g.providers {
		eg.Go(func() error {
			signals[i] = settle(ctx, p, ac)
			return nil
		})
	}
	_ = eg.Wait()

	var ok, failed, skipped int
	for _, s := range signals {
		switch s.Status {
		case model.SignalOK:
			ok++
		case model.SignalFailed:
			failed++
		case model.SignalSkipped:
			skipped++
		}
	}
	zap.L().Info("enrich: signals settled",
		zap.String("site_id", ac.SiteID),
		zap.Int("ok", ok),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
	)
	return signals
}

type fetchResult struct {
	payload model.SignalPayload
	err     error
}

func settle(ctx context.Context, p Provider, ac model.AnalysisContext) model.EnrichmentSignal {
	sig := model.EnrichmentSignal{Provider: p.Name()}
	if !p.Configured() {
		sig.Status = model.SignalSkipped
		sig.Error = eris.Wrap(model.ErrProviderUnavailable, "no credentials configured").Error()
		return sig
	}

	timeout := p.Timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: eris.Errorf("panic: %v", r)}
			}
		}()
		payload, err := p.Fetch(pctx, ac)
		done <- fetchResult{payload: payload, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-pctx.Done():
		res.err = pctx.Err()
	}
	sig.DurationMs = time.Since(start).Milliseconds()

	switch {
	case res.err == nil:
		sig.Status = model.SignalOK
		sig.Payload = res.payload
		return sig
	case ctx.Err() != nil:
		sig.Error = eris.Wrap(model.ErrBudgetExceeded, "canceled before provider settled").Error()
	case pctx.Err() != nil:
		sig.Error = eris.Wrap(model.ErrProviderUnavailable, fmt.Sprintf("timed out after %s", timeout)).Error()
	default:
		sig.Error = eris.Wrap(res.err, model.ErrProviderUnavailable.Error()).Error()
	}
	sig.Status = model.SignalFailed
	zap.L().Warn("enrich: provider failed",
		zap.String("provider", sig.Provider),
		zap.Int64("duration_ms", sig.DurationMs),
		zap.String("error", sig.Error),
	)
	return sig
}
