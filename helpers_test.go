package goAuthClient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/session"
)

type servedRequest struct {
	Path          string
	Authorization string
}

// fakeAPI accepts exactly one access token at a time. Any other bearer gets a
// 401 carrying expiredCode, unless rejectCode is set.
type fakeAPI struct {
	srv *httptest.Server

	mu            sync.Mutex
	valid         string
	nextToken     string
	nextRefresh   string
	rejectCode    string
	refreshStatus int
	keepInvalid   bool
	refreshBodies []string
	served        []servedRequest
	// delays holds per-path latency applied to accepted requests.
	delays map[string]time.Duration

	refreshGate  chan struct{}
	refreshCalls atomic.Int32
	expiredCount atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		nextToken:   "T2",
		nextRefresh: "RT2",
	}
	api.srv = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/refresh" {
		a.handleRefresh(w, r)
		return
	}
	if r.URL.Path == "/boom" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal"})
		return
	}

	auth := r.Header.Get("Authorization")
	token, _ := BearerToken(auth)

	a.mu.Lock()
	valid := a.valid
	rejectCode := a.rejectCode
	delay := a.delays[r.URL.Path]
	if token != "" && token == valid {
		a.served = append(a.served, servedRequest{Path: r.URL.Path, Authorization: auth})
	}
	a.mu.Unlock()

	switch {
	case token != "" && token == valid:
		time.Sleep(delay)
		writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
	case rejectCode != "":
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": rejectCode})
	default:
		a.expiredCount.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "token.expired"})
	}
}

func (a *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.refreshCalls.Add(1)

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	a.mu.Lock()
	a.refreshBodies = append(a.refreshBodies, body.RefreshToken)
	gate := a.refreshGate
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refreshStatus != 0 {
		writeJSON(w, a.refreshStatus, map[string]string{"code": "refresh.invalid"})
		return
	}
	if !a.keepInvalid {
		a.valid = a.nextToken
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":        a.nextToken,
		"refreshToken": a.nextRefresh,
	})
}

// hold blocks renewal calls until the returned release func runs. Release is
// idempotent and also runs at cleanup so a failing test cannot hang the server.
func (a *fakeAPI) hold(t *testing.T) func() {
	t.Helper()
	gate := make(chan struct{})
	a.mu.Lock()
	a.refreshGate = gate
	a.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { close(gate) })
	}
	t.Cleanup(release)
	return release
}

func (a *fakeAPI) refreshTokensSeen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.refreshBodies...)
}

func (a *fakeAPI) set(fn func(a *fakeAPI)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}

func (a *fakeAPI) servedRequests() []servedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]servedRequest(nil), a.served...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	api     *fakeAPI
	engine  *Engine
	store   *session.MemoryStore
	sc      session.Context
	logouts atomic.Int32
}

func newTestEnv(t *testing.T, execution ExecutionContext, tokens session.Tokens) *testEnv {
	t.Helper()
	return newTestEnvWithBuilder(t, execution, tokens, func(b *Builder) {})
}

func newTestEnvWithBuilder(t *testing.T, execution ExecutionContext, tokens session.Tokens, customize func(b *Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		api:   newFakeAPI(t),
		store: session.NewMemoryStore(),
		sc:    session.Ambient("test"),
	}

	b := New().
		WithBaseURL(env.api.srv.URL).
		WithTransport(env.api.srv.Client()).
		WithSessionStore(env.store).
		WithExecution(execution).
		WithLogoutHandler(func(context.Context, session.Context) {
			env.logouts.Add(1)
		})
	customize(b)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine

	if tokens != (session.Tokens{}) {
		if err := engine.StoreSession(context.Background(), env.sc, tokens); err != nil {
			t.Fatalf("store session: %v", err)
		}
	}
	return env
}

func (env *testEnv) client(t *testing.T) *Client {
	t.Helper()
	c, err := env.engine.NewClient(context.Background(), env.sc)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func (env *testEnv) stored(t *testing.T) session.Tokens {
	t.Helper()
	tokens, err := session.ReadTokens(context.Background(), env.store, env.sc, session.DefaultKeys())
	if err != nil {
		t.Fatalf("read tokens: %v", err)
	}
	return tokens
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitQueued(t *testing.T, c *Client, n int) {
	t.Helper()
	waitFor(t, "queued callers", func() bool {
		_, queued := c.coord.state()
		return queued >= n
	})
}
