package goAuthClient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/goAuthClient/session"
	"go.uber.org/zap"
)

type callResult struct {
	resp *Response
	err  error
}

// pendingCaller is one request waiting on a renewal. done has room for
// exactly one result and settle fills it at most once, so a caller that
// stopped waiting never blocks the coordinator.
type pendingCaller struct {
	ctx  context.Context
	req  *Request
	done chan callResult
	once sync.Once
}

func newPendingCaller(ctx context.Context, req *Request) *pendingCaller {
	return &pendingCaller{
		ctx:  ctx,
		req:  req,
		done: make(chan callResult, 1),
	}
}

func (p *pendingCaller) settle(resp *Response, err error) {
	p.once.Do(func() {
		p.done <- callResult{resp: resp, err: err}
	})
}

func (p *pendingCaller) wait(ctx context.Context) (*Response, error) {
	select {
	case r := <-p.done:
		return r.resp, r.err
	default:
	}

	select {
	case r := <-p.done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// coordinator owns one client's renewal state. While renewing is true at most
// one renewal call is in flight and every expired request joins queue. The
// flag and the queue only change together under mu.
type coordinator struct {
	client *Client

	mu       sync.Mutex
	renewing bool
	queue    []*pendingCaller
	// sealed refuses new renewals once the owning request has ended.
	sealed bool

	// inflight counts the renewal goroutine and every replay it launched.
	inflight sync.WaitGroup
}

func newCoordinator(c *Client) *coordinator {
	return &coordinator{client: c}
}

// hook is the first response hook of every client.
func (co *coordinator) hook(ctx context.Context, req *Request, resp *Response, err error) (*Response, error) {
	if err == nil {
		return resp, nil
	}

	switch Classify(err) {
	case TokenExpired:
		if req.replayed {
			// a replay that expires again is surfaced, not renewed twice
			return nil, err
		}
		return co.await(ctx, req, err)
	case OtherUnauthorized:
		return nil, co.client.unauthorized(ctx, req, err)
	default:
		return nil, err
	}
}

// await queues req behind the current renewal, starting one if none is in
// flight, and returns the caller's settled outcome. A sealed coordinator
// returns cause unchanged.
func (co *coordinator) await(ctx context.Context, req *Request, cause error) (*Response, error) {
	p := newPendingCaller(ctx, req)
	e := co.client.engine

	co.mu.Lock()
	if co.sealed && !co.renewing {
		co.mu.Unlock()
		return nil, cause
	}
	if !co.renewing && req.sentWith != co.client.Bearer() {
		// a renewal finished after this request was sent
		co.mu.Unlock()
		e.metricInc(MetricStaleReplay)
		co.client.logger.Debug("stale bearer replay",
			zap.String("request_id", req.ID),
			zap.String("path", req.Path),
		)
		return co.client.Do(ctx, req.forReplay())
	}
	co.queue = append(co.queue, p)
	e.gaugeAdd(GaugeQueueDepth, 1)
	queueLen := len(co.queue)
	start := !co.renewing
	co.renewing = true
	if start {
		co.inflight.Add(1)
		e.gaugeAdd(GaugeRenewalsInFlight, 1)
	}
	co.mu.Unlock()

	e.metricInc(MetricRequestQueued)
	co.client.logger.Debug("request queued for renewal",
		zap.String("request_id", req.ID),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("queue_len", queueLen),
	)

	if start {
		go co.renew(co.client.renewalContext(ctx))
	}

	return p.wait(ctx)
}

func (co *coordinator) renew(ctx context.Context) {
	e := co.client.engine
	defer co.inflight.Done()
	defer e.gaugeAdd(GaugeRenewalsInFlight, -1)

	e.metricInc(MetricRenewalStarted)

	start := time.Now()
	tokens, err := co.client.renewTokens(ctx)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRenewalLatency, time.Since(start))
	}

	if err != nil {
		co.fail(ctx, err)
		return
	}
	co.succeed(ctx, tokens)
}

// succeed persists the new session, updates the bearer, and only then drains
// the queue and returns to idle in one step. Replays start in arrival order
// and run concurrently, so a slow replay never holds up the callers behind it.
func (co *coordinator) succeed(ctx context.Context, tokens session.Tokens) {
	c := co.client
	e := c.engine

	if err := session.WriteTokens(ctx, e.store, c.sc, e.config.Cookie.keys(), tokens, e.config.Cookie.writeOptions()); err != nil {
		c.logger.Error("renewal: persist session", zap.Error(err))
	}
	c.setBearer(tokens.AccessToken)

	queue := co.drain()

	e.metricInc(MetricRenewalSuccess)
	e.audit.emit(ctx, AuditRenewalSuccess, nil, c.execution, nil)
	c.logger.Info("token renewed", zap.Int("queue_len", len(queue)))

	for _, p := range queue {
		co.inflight.Add(1)
		go co.replay(p)
	}
}

// fail drains the queue, logs out in Interactive execution, and rejects every
// queued caller with the raw renewal error.
func (co *coordinator) fail(ctx context.Context, err error) {
	c := co.client
	e := c.engine

	queue := co.drain()

	e.metricInc(MetricRenewalFailure)
	e.audit.emit(ctx, AuditRenewalFailure, nil, c.execution, err)
	c.logger.Warn("token renewal failed", zap.Error(err), zap.Int("queue_len", len(queue)))

	if c.execution == Interactive {
		c.logout(ctx, nil, err)
	}

	rerr := &RenewalError{Err: err}
	for _, p := range queue {
		p.settle(nil, rerr)
	}
}

func (co *coordinator) drain() []*pendingCaller {
	co.mu.Lock()
	defer co.mu.Unlock()
	queue := co.queue
	co.queue = nil
	co.renewing = false
	co.client.engine.gaugeAdd(GaugeQueueDepth, -int64(len(queue)))
	return queue
}

func (co *coordinator) replay(p *pendingCaller) {
	defer co.inflight.Done()

	if err := p.ctx.Err(); err != nil {
		p.settle(nil, err)
		return
	}

	resp, err := co.client.Do(p.ctx, p.req.forReplay())
	if err != nil {
		co.client.engine.metricInc(MetricReplayFailure)
	} else {
		co.client.engine.metricInc(MetricReplaySuccess)
	}
	co.client.logger.Debug("request replayed",
		zap.String("request_id", p.req.ID),
		zap.String("path", p.req.Path),
		zap.Bool("ok", err == nil),
	)
	p.settle(resp, err)
}

// seal stops new renewals from starting. One already in flight still drains.
func (co *coordinator) seal() {
	co.mu.Lock()
	co.sealed = true
	co.mu.Unlock()
}

// state reports the renewal flag and queue length.
func (co *coordinator) state() (renewing bool, queued int) {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.renewing, len(co.queue)
}

type renewalRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type renewalResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// renewalContext scopes a renewal started from ctx. A session bound to one
// request must not be written once that request ends, so its renewal follows
// the starter's context. Ambient sessions renew detached from it.
func (c *Client) renewalContext(ctx context.Context) context.Context {
	if c.sc.Request != nil || c.sc.Writer != nil || c.sc.Jar != nil {
		return ctx
	}
	return context.WithoutCancel(ctx)
}

// renewTokens calls the renewal endpoint directly, bypassing response hooks.
func (c *Client) renewTokens(ctx context.Context) (session.Tokens, error) {
	e := c.engine

	stored, err := session.ReadTokens(ctx, e.store, c.sc, e.config.Cookie.keys())
	if err != nil {
		return session.Tokens{}, fmt.Errorf("read refresh token: %w", err)
	}

	req, err := NewJSONRequest(http.MethodPost, e.config.Refresh.Path, renewalRequest{RefreshToken: stored.RefreshToken})
	if err != nil {
		return session.Tokens{}, err
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return session.Tokens{}, err
	}

	var body renewalResponse
	if err := resp.Decode(&body); err != nil {
		return session.Tokens{}, fmt.Errorf("%w: %v", ErrRenewalResponseInvalid, err)
	}
	if body.Token == "" {
		return session.Tokens{}, ErrRenewalResponseInvalid
	}

	return session.Tokens{
		AccessToken:  body.Token,
		RefreshToken: body.RefreshToken,
	}, nil
}
