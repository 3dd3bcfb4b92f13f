// Package achievements evaluates a user's activity against the achievement
// catalog, records progress, and grants one-time unlock rewards.
package achievements

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "tightlines/achievements"

// Result summarises one pass. Callers of Trigger never see it.
type Result struct {
	UserID   uint           `json:"user_id"`
	Unlocked []string       `json:"unlocked"`
	Progress map[string]int `json:"progress"`
	// Skipped holds achievements whose criteria id is not registered.
	Skipped  []string `json:"skipped,omitempty"`
	Degraded []string `json:"degraded,omitempty"`
}

// Engine runs achievement passes for one user at a time. It is safe for
// concurrent use; concurrent passes for the same user are guarded by the
// store's conditional unlock write.
type Engine struct {
	store    Store
	registry *Registry
	logger   *zap.Logger
	tracer   trace.Tracer
	notifier Notifier
	retries  RetryQueue
	now      func() time.Time

	// mu orders inflight.Add against Wait and Close.
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithRetryQueue(q RetryQueue) Option {
	return func(e *Engine) { e.retries = q }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an Engine on store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		registry: DefaultRegistry(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Trigger runs a pass in the background. The pass is detached from ctx
// cancellation so writes already issued complete after the caller returns.
// Triggers that arrive after Close are dropped.
func (e *Engine) Trigger(ctx context.Context, userID uint) {
	if ctx == nil {
		ctx = context.Background()
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Debug("achievement check dropped after close", zap.Uint("user_id", userID))
		return
	}
	e.inflight.Add(1)
	e.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer e.inflight.Done()
		e.Check(detached, userID)
	}()
}

// Wait blocks until every triggered pass has finished. Triggers issued
// while Wait runs block until it returns.
func (e *Engine) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight.Wait()
}

// Close stops accepting triggers and waits for in-flight passes.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.inflight.Wait()
}

// Check runs one pass synchronously. It never panics and never returns an
// error: failures are logged and the pass continues with what it has.
func (e *Engine) Check(ctx context.Context, userID uint) (res Result) {
	res = Result{UserID: userID, Progress: make(map[string]int)}

	ctx, span := e.tracer.Start(ctx, "achievements.Check",
		trace.WithAttributes(attribute.Int64("user_id", int64(userID))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("achievement check panicked: %v", r)
			span.RecordError(err)
			e.logger.Error("achievement check aborted",
				zap.Uint("user_id", userID),
				zap.Any("panic", r))
		}
	}()

	facts := e.collectFacts(ctx, userID)
	res.Degraded = facts.Degraded

	definitions, err := e.store.ListDefinitions(ctx)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("load achievement catalog failed",
			zap.Uint("user_id", userID),
			zap.Error(err))
		return res
	}

	evalCtx, evalSpan := e.tracer.Start(ctx, "achievements.evaluate")
	for _, def := range definitions {
		if facts.Unlocked[def.ID] {
			continue
		}
		predicate, ok := e.registry.Lookup(def.Criteria)
		if !ok {
			res.Skipped = append(res.Skipped, def.ID)
			e.logger.Debug("unknown criteria, skipping",
				zap.String("achievement_id", def.ID),
				zap.String("criteria", def.Criteria))
			continue
		}

		outcome := predicate(facts)
		switch {
		case outcome.Unlocked:
			if e.applyUnlock(evalCtx, userID, def) {
				res.Unlocked = append(res.Unlocked, def.ID)
			}
		case outcome.Progress > 0:
			if e.updateProgress(evalCtx, userID, def, outcome.Progress, facts) {
				res.Progress[def.ID] = outcome.Progress
			}
		}
	}
	evalSpan.SetAttributes(
		attribute.Int("achievements.unlocked", len(res.Unlocked)),
		attribute.Int("achievements.progressed", len(res.Progress)),
	)
	evalSpan.End()

	e.logger.Info("achievement check complete",
		zap.Uint("user_id", userID),
		zap.Strings("unlocked", res.Unlocked),
		zap.Int("progressed", len(res.Progress)),
		zap.Int("skipped", len(res.Skipped)))
	return res
}
