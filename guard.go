package goAuthClient

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/MrEthical07/goAuthClient/permission"
	"github.com/MrEthical07/goAuthClient/session"
	"go.uber.org/zap"
)

// GuardOptions lists what a guarded handler requires of the token holder.
// Every permission is required; any one role is enough. A nil *GuardOptions
// skips claim evaluation entirely.
type GuardOptions struct {
	Permissions []string
	Roles       []string
}

// Redirect is a render outcome that sends the browser elsewhere.
type Redirect struct {
	Destination string
	Permanent   bool
}

// StatusCode returns the HTTP status for the redirect.
func (r *Redirect) StatusCode() int {
	if r.Permanent {
		return http.StatusPermanentRedirect
	}
	return http.StatusTemporaryRedirect
}

// Result is the outcome of a render handler: props to render, or a redirect.
type Result[P any] struct {
	Props    P
	Redirect *Redirect
}

// RenderFunc is a server-render handler.
type RenderFunc[P any] func(rc *RenderContext) (Result[P], error)

// RenderContext is the per-request state passed to a RenderFunc.
type RenderContext struct {
	Request *http.Request
	Writer  http.ResponseWriter
	Session session.Context

	ctx    context.Context
	engine *Engine

	once      sync.Once
	client    *Client
	clientErr error
}

// NewRenderContext binds a render to engine and a session context.
func (e *Engine) NewRenderContext(ctx context.Context, sc session.Context) *RenderContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RenderContext{
		Request: sc.Request,
		Writer:  sc.Writer,
		Session: sc,
		ctx:     ctx,
		engine:  e,
	}
}

// Context returns the render's context.
func (rc *RenderContext) Context() context.Context {
	return rc.ctx
}

// Client returns the render's authenticated client, built on first use in
// Rendering execution so non-renewable 401s surface as ErrAuthToken.
func (rc *RenderContext) Client() (*Client, error) {
	rc.once.Do(func() {
		if rc.engine == nil {
			rc.clientErr = ErrEngineNotReady
			return
		}
		rc.client, rc.clientErr = rc.engine.NewClient(rc.ctx, rc.Session, WithExecution(Rendering))
	})
	return rc.client, rc.clientErr
}

// Close ends the render. Later Client calls fail with ErrRenderClosed, a
// client already handed out stops starting renewals, and Close blocks until
// the renewal and replays in flight have settled. No session write outlives
// the request. Close is idempotent.
func (rc *RenderContext) Close() {
	rc.once.Do(func() {
		rc.clientErr = ErrRenderClosed
	})
	rc.client.close()
}

// Guard gates render handlers on session presence and claims. It is the
// framework-neutral core behind WithSessionGuard and the middleware adapters.
type Guard struct {
	engine *Engine
	opts   *GuardOptions
}

// NewGuard returns a guard. opts is copied; nil disables claim evaluation.
func (e *Engine) NewGuard(opts *GuardOptions) *Guard {
	g := &Guard{engine: e}
	if opts != nil {
		g.opts = &GuardOptions{
			Permissions: append([]string(nil), opts.Permissions...),
			Roles:       append([]string(nil), opts.Roles...),
		}
	}
	return g
}

// Admit returns a non-nil redirect when the handler must not run: no access
// token, or claims that fail evaluation. A token that cannot be decoded fails
// evaluation. Store errors are returned unchanged.
func (g *Guard) Admit(ctx context.Context, sc session.Context) (*Redirect, error) {
	e := g.engine
	if e == nil {
		return nil, ErrEngineNotReady
	}
	cfg := e.config

	tokens, err := session.ReadTokens(ctx, e.store, sc, cfg.Cookie.keys())
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		e.metricInc(MetricGuardNoSession)
		return &Redirect{Destination: cfg.Guard.NoSessionRedirect, Permanent: cfg.Guard.Permanent}, nil
	}

	if g.opts != nil {
		claims, err := e.decoder.Decode(tokens.AccessToken)
		if err != nil {
			e.logger.Debug("guard: decode token", zap.Error(err))
		}
		if err != nil || !e.evaluator.Evaluate(permission.Input{
			Permissions:         claims.Permissions,
			Roles:               claims.Roles,
			RequiredPermissions: g.opts.Permissions,
			RequiredRoles:       g.opts.Roles,
		}) {
			e.metricInc(MetricGuardForbidden)
			return &Redirect{Destination: cfg.Guard.ForbiddenRedirect, Permanent: cfg.Guard.Permanent}, nil
		}
	}

	e.metricInc(MetricGuardPass)
	return nil, nil
}

// Recover handles ErrAuthToken only: it deletes both session artifacts and
// returns the session reset redirect with ok true. Delete failures are logged.
// Any other error returns ok false and must be propagated by the caller.
func (g *Guard) Recover(ctx context.Context, sc session.Context, err error) (*Redirect, bool) {
	e := g.engine
	if e == nil || !errors.Is(err, ErrAuthToken) {
		return nil, false
	}
	cfg := e.config

	if derr := session.DeleteTokens(ctx, e.store, sc, cfg.Cookie.keys()); derr != nil {
		e.logger.Error("guard: delete session", zap.Error(derr))
	}
	e.metricInc(MetricGuardSessionReset)
	e.audit.emit(ctx, AuditSessionReset, nil, Rendering, err)

	return &Redirect{Destination: cfg.Guard.SessionResetRedirect, Permanent: cfg.Guard.Permanent}, true
}

// The returned handler redirects without invoking fn when there is no session
// or opts is not satisfied, and turns an ErrAuthToken from fn into a session
// reset redirect. It closes rc once fn returns. fn's result and other errors pass through unchanged.
func WithSessionGuard[P any](e *Engine, fn RenderFunc[P], opts *GuardOptions) RenderFunc[P] {
	g := e.NewGuard(opts)
	return func(rc *RenderContext) (Result[P], error) {
		redirect, err := g.Admit(rc.Context(), rc.Session)
		if err != nil {
			return Result[P]{}, err
		}
		if redirect != nil {
			return Result[P]{Redirect: redirect}, nil
		}

		res, err := fn(rc)
		rc.Close()
		if err != nil {
			if redirect, ok := g.Recover(rc.Context(), rc.Session, err); ok {
				return Result[P]{Redirect: redirect}, nil
			}
			return res, err
		}
		return res, nil
	}
}
