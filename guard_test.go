package goAuthClient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/session"
)

type pageProps struct {
	Title string
}

func issueToken(t *testing.T, permissions, roles []string) string {
	t.Helper()
	issuer, err := jwt.NewIssuer(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("guard-test-secret-guard-test-secret"),
		TTL:           time.Hour,
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.Issue("user-1", permissions, roles)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func countingRender(calls *int, err error) RenderFunc[pageProps] {
	return func(rc *RenderContext) (Result[pageProps], error) {
		*calls++
		if err != nil {
			return Result[pageProps]{}, err
		}
		return Result[pageProps]{Props: pageProps{Title: "metrics"}}, nil
	}
}

func TestGuardWithoutSessionRedirects(t *testing.T) {
	env := newTestEnv(t, Rendering, session.Tokens{})
	calls := 0
	render := WithSessionGuard(env.engine, countingRender(&calls, nil), nil)

	res, err := render(env.engine.NewRenderContext(context.Background(), env.sc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Redirect == nil || res.Redirect.Destination != "/dashboard" || res.Redirect.Permanent {
		t.Fatalf("expected temporary redirect to /dashboard, got %+v", res.Redirect)
	}
	if calls != 0 {
		t.Fatalf("expected handler not invoked, got %d calls", calls)
	}
}

func TestGuardInsufficientPermissionsRedirects(t *testing.T) {
	token := issueToken(t, []string{"users.list"}, []string{"editor"})
	env := newTestEnv(t, Rendering, session.Tokens{AccessToken: token, RefreshToken: "RT1"})

	cases := []struct {
		name string
		opts GuardOptions
	}{
		{name: "missing permission", opts: GuardOptions{Permissions: []string{"metrics.list"}}},
		{name: "missing role", opts: GuardOptions{Roles: []string{"administrator"}}},
		{name: "one of two permissions", opts: GuardOptions{Permissions: []string{"users.list", "users.create"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			opts := tc.opts
			render := WithSessionGuard(env.engine, countingRender(&calls, nil), &opts)

			res, err := render(env.engine.NewRenderContext(context.Background(), env.sc))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Redirect == nil || res.Redirect.Destination != "/dashboard" {
				t.Fatalf("expected forbidden redirect, got %+v", res.Redirect)
			}
			if calls != 0 {
				t.Fatalf("expected handler not invoked, got %d calls", calls)
			}
		})
	}
}

func TestGuardSatisfiedInvokesHandler(t *testing.T) {
	token := issueToken(t, []string{"metrics.list", "users.list"}, []string{"editor"})
	env := newTestEnvWithBuilder(t, Rendering, session.Tokens{AccessToken: token, RefreshToken: "RT1"}, func(b *Builder) {
		b.WithPermissions([]string{"metrics.list", "users.list", "users.create"})
	})

	calls := 0
	render := WithSessionGuard(env.engine, countingRender(&calls, nil), &GuardOptions{
		Permissions: []string{"metrics.list"},
		Roles:       []string{"administrator", "editor"},
	})

	res, err := render(env.engine.NewRenderContext(context.Background(), env.sc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Redirect != nil {
		t.Fatalf("unexpected redirect %+v", res.Redirect)
	}
	if res.Props.Title != "metrics" || calls != 1 {
		t.Fatalf("expected handler result, got %+v after %d calls", res.Props, calls)
	}
}

func TestGuardMalformedTokenRedirectsWhenOptionsSet(t *testing.T) {
	env := newTestEnv(t, Rendering, session.Tokens{AccessToken: "not-a-jwt", RefreshToken: "RT1"})

	calls := 0
	res, err := WithSessionGuard(env.engine, countingRender(&calls, nil), &GuardOptions{})(env.engine.NewRenderContext(context.Background(), env.sc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Redirect == nil || calls != 0 {
		t.Fatalf("expected redirect without invocation, got %+v after %d calls", res.Redirect, calls)
	}

	// without options the token is never decoded
	res, err = WithSessionGuard(env.engine, countingRender(&calls, nil), nil)(env.engine.NewRenderContext(context.Background(), env.sc))
	if err != nil || res.Redirect != nil || calls != 1 {
		t.Fatalf("expected handler invoked, got %+v (%v) after %d calls", res.Redirect, err, calls)
	}
}

func TestGuardAuthTokenErrorResetsSession(t *testing.T) {
	env := newTestEnvWithBuilder(t, Rendering, session.Tokens{AccessToken: "T1", RefreshToken: "RT1"}, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})

	calls := 0
	render := WithSessionGuard(env.engine, countingRender(&calls, &AuthTokenError{Cause: ErrUnauthorized}), nil)

	res, err := render(env.engine.NewRenderContext(context.Background(), env.sc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Redirect == nil || res.Redirect.Destination != "/" {
		t.Fatalf("expected session reset redirect to /, got %+v", res.Redirect)
	}
	if got := env.stored(t); got != (session.Tokens{}) {
		t.Fatalf("expected both artifacts deleted, got %+v", got)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricGuardSessionReset]; got != 1 {
		t.Fatalf("expected one session reset, got %d", got)
	}
}

func TestGuardOtherErrorsPropagate(t *testing.T) {
	env := newTestEnv(t, Rendering, session.Tokens{AccessToken: "T1", RefreshToken: "RT1"})

	boom := errors.New("database down")
	calls := 0
	_, err := WithSessionGuard(env.engine, countingRender(&calls, boom), nil)(env.engine.NewRenderContext(context.Background(), env.sc))
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if got := env.stored(t); got.AccessToken != "T1" {
		t.Fatalf("expected session untouched, got %+v", got)
	}
}

func TestGuardEndToEndRenderingClient(t *testing.T) {
	env := newTestEnv(t, Interactive, session.Tokens{AccessToken: "T1", RefreshToken: "RT1"})
	env.api.set(func(a *fakeAPI) { a.rejectCode = "token.invalid" })

	render := WithSessionGuard(env.engine, func(rc *RenderContext) (Result[pageProps], error) {
		client, err := rc.Client()
		if err != nil {
			return Result[pageProps]{}, err
		}
		if client.Execution() != Rendering {
			t.Errorf("expected rendering client, got %v", client.Execution())
		}
		if _, err := client.Get(rc.Context(), "/me"); err != nil {
			return Result[pageProps]{}, err
		}
		return Result[pageProps]{Props: pageProps{Title: "me"}}, nil
	}, nil)

	res, err := render(env.engine.NewRenderContext(context.Background(), env.sc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Redirect == nil || res.Redirect.Destination != "/" {
		t.Fatalf("expected session reset redirect, got %+v", res.Redirect)
	}
	if got := env.stored(t); got != (session.Tokens{}) {
		t.Fatalf("expected session destroyed by the guard, got %+v", got)
	}
	if got := env.logouts.Load(); got != 0 {
		t.Fatalf("expected no direct logout, got %d", got)
	}
}

func TestGuardStoreErrorPropagates(t *testing.T) {
	env := newTestEnvWithBuilder(t, Rendering, session.Tokens{}, func(b *Builder) {
		b.WithSessionStore(session.NewCookieStore())
	})

	calls := 0
	// an ambient context has no cookie jar
	_, err := WithSessionGuard(env.engine, countingRender(&calls, nil), nil)(env.engine.NewRenderContext(context.Background(), session.Ambient("x")))
	if !errors.Is(err, session.ErrNoCookieJar) {
		t.Fatalf("expected ErrNoCookieJar, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected handler not invoked, got %d", calls)
	}
}

func TestGuardRecoverIgnoresOtherErrors(t *testing.T) {
	env := newTestEnv(t, Rendering, session.Tokens{AccessToken: "T1"})
	g := env.engine.NewGuard(nil)

	if _, ok := g.Recover(context.Background(), env.sc, &RenewalError{Err: ErrUnauthorized}); ok {
		t.Fatal("renewal failures must not reset the session")
	}
	if _, ok := g.Recover(context.Background(), env.sc, nil); ok {
		t.Fatal("nil error must not reset the session")
	}
}

// recordingJar is a request-scoped cookie jar that counts writes made after
// its request ended.
type recordingJar struct {
	mu     sync.Mutex
	values map[string]string
	ended  bool
	late   int
}

func newRecordingJar(access, refresh string) *recordingJar {
	return &recordingJar{values: map[string]string{
		session.DefaultAccessTokenKey:  access,
		session.DefaultRefreshTokenKey: refresh,
	}}
}

func (j *recordingJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.values[name]
	return v, ok
}

func (j *recordingJar) Set(cookie *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.ended {
		j.late++
	}
	j.values[cookie.Name] = cookie.Value
}

func (j *recordingJar) Clear(name, path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.ended {
		j.late++
	}
	delete(j.values, name)
}

func (j *recordingJar) end() {
	j.mu.Lock()
	j.ended = true
	j.mu.Unlock()
}

func (j *recordingJar) lateWrites() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.late
}

func TestRenderReturnsOnlyAfterRenewalSettles(t *testing.T) {
	env := newTestEnvWithBuilder(t, Rendering, session.Tokens{}, func(b *Builder) {
		b.WithSessionStore(session.NewCookieStore())
	})
	release := env.api.hold(t)
	jar := newRecordingJar("T1", "RT1")

	var client *Client
	render := WithSessionGuard(env.engine, func(rc *RenderContext) (Result[pageProps], error) {
		c, err := rc.Client()
		if err != nil {
			return Result[pageProps]{}, err
		}
		client = c
		ctx, cancel := context.WithTimeout(rc.Context(), 20*time.Millisecond)
		defer cancel()
		if _, err := c.Get(ctx, "/items"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		return Result[pageProps]{Props: pageProps{Title: "items"}}, nil
	}, nil)

	if _, err := render(env.engine.NewRenderContext(context.Background(), session.Context{Jar: jar})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jar.end()

	if renewing, queued := client.coord.state(); renewing || queued != 0 {
		t.Fatalf("expected renewal settled on return, renewing=%v queued=%d", renewing, queued)
	}

	release()
	time.Sleep(50 * time.Millisecond)
	if n := jar.lateWrites(); n != 0 {
		t.Fatalf("expected no cookie writes after the render returned, got %d", n)
	}
	if got, _ := jar.Get(session.DefaultAccessTokenKey); got != "T1" {
		t.Fatalf("expected access cookie untouched, got %q", got)
	}
}

func TestClosedRenderClientStartsNoRenewal(t *testing.T) {
	env := newTestEnvWithBuilder(t, Rendering, session.Tokens{}, func(b *Builder) {
		b.WithSessionStore(session.NewCookieStore())
	})
	jar := newRecordingJar("T1", "RT1")

	rc := env.engine.NewRenderContext(context.Background(), session.Context{Jar: jar})
	client, err := rc.Client()
	if err != nil {
		t.Fatalf("Client failed: %v", err)
	}
	rc.Close()
	jar.end()

	if _, err := rc.Client(); !errors.Is(err, ErrRenderClosed) {
		t.Fatalf("expected ErrRenderClosed, got %v", err)
	}
	// a client that escaped its render
	if _, err := client.Get(context.Background(), "/items"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected the expired response unchanged, got %v", err)
	}
	if got := env.api.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no renewal after close, got %d calls", got)
	}
	if n := jar.lateWrites(); n != 0 {
		t.Fatalf("expected no cookie writes after close, got %d", n)
	}
}

func TestCloseWithoutClientIsNoop(t *testing.T) {
	env := newTestEnv(t, Rendering, session.Tokens{})
	rc := env.engine.NewRenderContext(context.Background(), env.sc)
	rc.Close()
	rc.Close()
	if _, err := rc.Client(); !errors.Is(err, ErrRenderClosed) {
		t.Fatalf("expected ErrRenderClosed, got %v", err)
	}
}
