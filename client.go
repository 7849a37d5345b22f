package goAuthClient

import (
	"context"
	"net/http"
	"sync"

	"github.com/MrEthical07/goAuthClient/session"
	"go.uber.org/zap"
)

// ResponseHook observes or substitutes the outcome of a completed exchange.
// resp is nil whenever err is non-nil.
type ResponseHook func(ctx context.Context, req *Request, resp *Response, err error) (*Response, error)

// ClientOption customizes a Client built by Engine.NewClient.
type ClientOption func(*Client)

// WithExecution overrides the engine's configured ExecutionContext.
func WithExecution(ec ExecutionContext) ClientOption {
	return func(c *Client) {
		c.execution = ec
	}
}

// Client is the authenticated client. It attaches the bearer snapshot taken at
// construction to every request and renews it through its own refresh
// coordinator when the API reports an expired token.
//
// A Client is safe for concurrent use. It is meant to be short-lived: one per
// request context on servers, one per session in interactive processes.
type Client struct {
	engine    *Engine
	sc        session.Context
	execution ExecutionContext
	logger    *zap.Logger

	mu     sync.RWMutex
	bearer string
	hooks  []ResponseHook

	coord *coordinator
}

// Bearer returns the active access token.
func (c *Client) Bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

func (c *Client) setBearer(token string) {
	c.mu.Lock()
	c.bearer = token
	c.mu.Unlock()
}

// Execution returns the client's execution context.
func (c *Client) Execution() ExecutionContext {
	return c.execution
}

// Wait blocks until the renewal and replays started by this client have
// settled. A client whose session context is bound to a request must be
// waited on before that request's handler returns.
func (c *Client) Wait() {
	if c == nil || c.coord == nil {
		return
	}
	c.coord.inflight.Wait()
}

// close refuses further renewals and waits for the current one to settle.
// Later expired responses surface as their original error.
func (c *Client) close() {
	if c == nil || c.coord == nil {
		return
	}
	c.coord.seal()
	c.coord.inflight.Wait()
}

// Use appends a response hook. Hooks run in registration order after the
// refresh coordinator's hook, so they see its substituted outcome.
func (c *Client) Use(hook ResponseHook) {
	if hook == nil {
		return
	}
	c.mu.Lock()
	c.hooks = append(c.hooks, hook)
	c.mu.Unlock()
}

// Do sends req with the active bearer and runs every response hook on the
// outcome. An expired-token 401 is absorbed by the refresh coordinator and Do
// returns the outcome of the replayed request instead. Do settles exactly once.
// Non-2xx outcomes are returned as *ResponseError; a failed renewal as
// *RenewalError; a non-renewable 401 in Rendering execution as *AuthTokenError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c == nil || c.engine == nil || c.coord == nil {
		return nil, ErrEngineNotReady
	}
	if req == nil {
		return nil, ErrNilRequest
	}

	sent := req.clone()
	resp, err := c.send(ctx, sent)

	c.mu.RLock()
	hooks := make([]ResponseHook, 0, len(c.hooks)+1)
	hooks = append(hooks, c.coord.hook)
	hooks = append(hooks, c.hooks...)
	c.mu.RUnlock()

	for _, hook := range hooks {
		resp, err = hook(ctx, sent, resp, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get issues a GET for path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodGet, path, nil))
}

// Post issues a POST for path with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	req, err := NewJSONRequest(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// send performs the exchange without hooks. req.sentWith records the bearer
// used so the coordinator can tell stale credentials from expired ones.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	cfg := c.engine.config

	hreq, err := req.httpRequest(ctx, cfg.Transport.BaseURL)
	if err != nil {
		return nil, err
	}
	bearer := c.Bearer()
	req.sentWith = bearer
	if bearer != "" {
		hreq.Header.Set("Authorization", "Bearer "+bearer)
	}
	if cfg.Transport.UserAgent != "" && hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", cfg.Transport.UserAgent)
	}

	return roundTrip(c.engine.transport, hreq, req, cfg.Refresh.ExpiredCode)
}

// unauthorized handles a non-renewable 401 according to the execution context.
func (c *Client) unauthorized(ctx context.Context, req *Request, err error) error {
	if c.execution == Rendering {
		c.engine.metricInc(MetricAuthTokenSignal)
		c.engine.audit.emit(ctx, AuditAuthTokenSignal, req, c.execution, err)
		c.logger.Debug("auth token signal",
			zap.String("request_id", req.ID),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
		)
		return &AuthTokenError{Cause: err}
	}

	c.logout(ctx, req, err)
	return err
}

// logout destroys both session artifacts and notifies the logout handler.
// Store failures are logged; logout itself cannot fail.
func (c *Client) logout(ctx context.Context, req *Request, cause error) {
	c.engine.metricInc(MetricLogout)
	c.engine.audit.emit(ctx, AuditLogout, req, c.execution, cause)

	if err := session.DeleteTokens(ctx, c.engine.store, c.sc, c.engine.config.Cookie.keys()); err != nil {
		c.logger.Error("logout: delete session", zap.Error(err))
	}
	c.logger.Warn("logout", zap.NamedError("cause", cause))

	if c.engine.onLogout != nil {
		c.engine.onLogout(ctx, c.sc)
	}
}
