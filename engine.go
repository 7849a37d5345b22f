package goAuthClient

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/permission"
	"github.com/MrEthical07/goAuthClient/session"
	"go.uber.org/zap"
)

// LogoutHandler is invoked after a direct logout has destroyed the session,
// typically to navigate an interactive front end back to its sign-in screen.
type LogoutHandler func(ctx context.Context, sc session.Context)

// An Engine holds the collaborators shared by every Client and Guard it creates.
type Engine struct {
	config    Config
	store     session.Store
	transport Transport
	logger    *zap.Logger
	decoder   *jwt.Decoder
	evaluator permission.Evaluator
	registry  *permission.Registry
	onLogout  LogoutHandler
	audit     *auditDispatcher
	metrics   *Metrics
}

// NewClient reads the session from sc once and snapshots the access token as
// the client's bearer. Later store writes are not observed until the client
// itself renews. Each client owns an independent refresh coordinator.
func (e *Engine) NewClient(ctx context.Context, sc session.Context, opts ...ClientOption) (*Client, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	tokens, err := session.ReadTokens(ctx, e.store, sc, e.config.Cookie.keys())
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	c := &Client{
		engine:    e,
		sc:        sc,
		execution: e.config.Execution,
		bearer:    tokens.AccessToken,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if !c.execution.valid() {
		return nil, ErrInvalidExecutionContext
	}
	c.logger = e.logger.With(zap.Stringer("execution", c.execution))
	c.coord = newCoordinator(c)

	return c, nil
}

// StoreSession persists tokens obtained outside the client, such as from a
// sign-in call, with the configured cookie options.
func (e *Engine) StoreSession(ctx context.Context, sc session.Context, tokens session.Tokens) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return session.WriteTokens(ctx, e.store, sc, e.config.Cookie.keys(), tokens, e.config.Cookie.writeOptions())
}

// Logout deletes both session artifacts and invokes the logout handler. The
// handler runs even when deletion fails; the deletion error is returned.
func (e *Engine) Logout(ctx context.Context, sc session.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	err := session.DeleteTokens(ctx, e.store, sc, e.config.Cookie.keys())
	e.metricInc(MetricLogout)
	e.audit.emit(ctx, AuditLogout, nil, e.config.Execution, nil)
	if e.onLogout != nil {
		e.onLogout(ctx, sc)
	}
	return err
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Logger returns the engine's logger, or a no-op logger for a nil engine.
func (e *Engine) Logger() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) gaugeAdd(g GaugeID, delta int64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(g, delta)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
