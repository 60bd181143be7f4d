// Package automation resolves GUI targets through an ordered chain of
// strategies: native accessibility patterns, a control tree walk, template
// image matching and OCR. The first strategy that succeeds wins.
package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/infrastructure/observability"
	"github.com/doeshing/deskgate/internal/ports"
)

// Strategy is one automation layer. Attempt returns a short description of
// what it did, or an error wrapping domain.ErrNotFound when the element is
// not there.
type Strategy interface {
	Layer() domain.Layer
	Attempt(ctx context.Context, window domain.Window, target domain.Target) (string, error)
}

// Resolver implements ports.AutomationResolver.
type Resolver struct {
	windows      ports.WindowSource
	strategies   []Strategy
	selector     WindowSelector
	layerTimeout time.Duration
	pollInterval time.Duration
	logger       ports.Logger
	metrics      *observability.Metrics
	tracer       trace.Tracer
}

// NewResolver orders strategies by domain.LayerOrder regardless of the order
// they are passed in.
func NewResolver(windows ports.WindowSource, strategies []Strategy, settings domain.AutomationSettings, logger ports.Logger, metrics *observability.Metrics) *Resolver {
	ordered := append([]Strategy{}, strategies...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return layerRank(ordered[i].Layer()) < layerRank(ordered[j].Layer())
	})
	return &Resolver{
		windows:      windows,
		strategies:   ordered,
		selector:     NewWindowSelector(settings),
		layerTimeout: settings.LayerTimeoutDuration(),
		pollInterval: settings.PollIntervalDuration(),
		logger:       logger,
		metrics:      metrics,
		tracer:       observability.Tracer(),
	}
}

func layerRank(layer domain.Layer) int {
	for i, l := range domain.LayerOrder {
		if l == layer {
			return i
		}
	}
	return len(domain.LayerOrder)
}

// Resolve implements ports.AutomationResolver. The owning window is located
// first; each layer then gets its own deadline and runs at most once.
func (r *Resolver) Resolve(ctx context.Context, target domain.Target) (domain.Resolution, error) {
	ctx, span := r.tracer.Start(ctx, "automation.resolve", trace.WithAttributes(
		observability.AttrOperation.String(string(target.Operation)),
	))
	defer span.End()

	window, err := r.waitForWindow(ctx, target)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Resolution{Layer: domain.LayerFailed}, err
	}
	res := domain.Resolution{Window: window}
	if !target.Locates() {
		res.Detail = fmt.Sprintf("window %q is ready", window.Title)
		return res, nil
	}

	for _, strategy := range r.strategies {
		attempt, detail := r.attempt(ctx, strategy, window, target)
		res.Attempts = append(res.Attempts, attempt)
		if attempt.Outcome == domain.AttemptSuccess {
			res.Layer = attempt.Layer
			res.Detail = detail
			span.SetAttributes(observability.AttrLayer.String(string(attempt.Layer)))
			return res, nil
		}
		r.logger.Debug("automation layer failed", map[string]interface{}{
			"layer":   attempt.Layer,
			"outcome": attempt.Outcome,
			"reason":  attempt.Reason,
			"target":  target.Describe(),
		})
		if ctx.Err() != nil {
			res.Layer = domain.LayerFailed
			err := &domain.ActionError{
				Kind:     domain.ErrActionTimeout,
				Message:  "deadline reached while resolving " + target.Describe(),
				Attempts: res.Attempts,
				Err:      ctx.Err(),
			}
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}
	}

	res.Layer = domain.LayerFailed
	err = &domain.ActionError{
		Kind:      domain.ErrElementNotFound,
		Message:   fmt.Sprintf("%s not found in window %q", target.Describe(), window.Title),
		Attempts:  res.Attempts,
		Retryable: true,
	}
	span.SetStatus(codes.Error, err.Error())
	return res, err
}

func (r *Resolver) attempt(ctx context.Context, strategy Strategy, window domain.Window, target domain.Target) (domain.LayerAttempt, string) {
	layer := strategy.Layer()
	lctx, cancel := context.WithTimeout(ctx, r.layerTimeout)
	defer cancel()
	lctx, span := r.tracer.Start(lctx, "automation.layer", trace.WithAttributes(observability.AttrLayer.String(string(layer))))
	defer span.End()

	start := time.Now()
	detail, err := strategy.Attempt(lctx, window, target)
	attempt := domain.LayerAttempt{Layer: layer, Outcome: domain.AttemptSuccess, Duration: time.Since(start)}
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		attempt.Outcome = domain.AttemptNotFound
		attempt.Reason = err.Error()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(lctx.Err(), context.DeadlineExceeded):
		attempt.Outcome = domain.AttemptTimeout
		attempt.Reason = fmt.Sprintf("no result within %s", r.layerTimeout)
	default:
		attempt.Outcome = domain.AttemptError
		attempt.Reason = err.Error()
	}
	span.SetAttributes(observability.AttrOutcome.String(string(attempt.Outcome)))
	r.metrics.RecordLayerAttempt(ctx, layer, attempt.Outcome)
	return attempt, detail
}

// waitForWindow polls the window list until a window owned by the target
// appears or the layer timeout elapses.
func (r *Resolver) waitForWindow(ctx context.Context, target domain.Target) (domain.Window, error) {
	wctx, cancel := context.WithTimeout(ctx, r.layerTimeout)
	defer cancel()
	poll := r.pollInterval
	if poll <= 0 {
		poll = domain.DefaultPollInterval
	}
	limiter := rate.NewLimiter(rate.Every(poll), 1)

	var lastErr error
	for {
		if err := limiter.Wait(wctx); err != nil {
			break
		}
		windows, err := r.windows.Windows(wctx)
		if err != nil {
			if errors.Is(err, domain.ErrDesktopUnavailable) {
				return domain.Window{}, domain.NewActionError(domain.ErrActionRuntime, "", err)
			}
			lastErr = err
			continue
		}
		if w, ok := r.selector.Select(windows, target); ok {
			return w, nil
		}
	}
	if ctx.Err() != nil {
		return domain.Window{}, &domain.ActionError{
			Kind:    domain.ErrActionTimeout,
			Message: "deadline reached while waiting for " + target.Describe(),
			Err:     ctx.Err(),
		}
	}
	msg := fmt.Sprintf("no window owned by %s appeared within %s", target.Describe(), r.layerTimeout)
	if lastErr != nil {
		msg += ": " + lastErr.Error()
	}
	return domain.Window{}, &domain.ActionError{Kind: domain.ErrElementNotFound, Message: msg, Err: domain.ErrNotFound}
}

var _ ports.AutomationResolver = (*Resolver)(nil)
