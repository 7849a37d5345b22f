//go:build integration
// +build integration

package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type upstream struct {
	srv *httptest.Server

	mu            sync.Mutex
	valid         string
	refreshStatus int
	refreshCalls  atomic.Int32
}

func newUpstream(t *testing.T, valid string) *upstream {
	t.Helper()
	u := &upstream{valid: valid}
	u.srv = httptest.NewServer(http.HandlerFunc(u.handle))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	u.mu.Lock()
	defer u.mu.Unlock()

	if r.URL.Path == "/refresh" {
		u.refreshCalls.Add(1)
		if u.refreshStatus != 0 {
			w.WriteHeader(u.refreshStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "refresh.invalid"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": u.valid, "refreshToken": "RT-" + u.valid})
		return
	}

	token, _ := goAuthClient.BearerToken(r.Header.Get("Authorization"))
	if token != u.valid {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "token.expired"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
}

type redisEnv struct {
	api    *upstream
	mr     *miniredis.Miniredis
	engine *goAuthClient.Engine
}

func newRedisEnv(t *testing.T, execution goAuthClient.ExecutionContext, valid string) *redisEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	api := newUpstream(t, valid)
	engine, err := goAuthClient.New().
		WithBaseURL(api.srv.URL).
		WithTransport(api.srv.Client()).
		WithSessionStore(session.NewRedisStore(rdb, "it")).
		WithExecution(execution).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &redisEnv{api: api, mr: mr, engine: engine}
}

func redisKey(scope, name string) string {
	return "it:" + scope + ":" + name
}
