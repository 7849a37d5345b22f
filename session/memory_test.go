package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreScopesAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Write(ctx, Ambient("a"), DefaultAccessTokenKey, "A", WriteOptions{}); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := store.Write(ctx, Ambient("b"), DefaultAccessTokenKey, "B", WriteOptions{}); err != nil {
		t.Fatalf("write b: %v", err)
	}

	got, err := ReadTokens(ctx, store, Ambient("a"), DefaultKeys())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.AccessToken != "A" {
		t.Fatalf("expected A, got %q", got.AccessToken)
	}
}

func TestMemoryStoreExpiresValues(t *testing.T) {
	now := time.Unix(1000, 0)
	store := NewMemoryStore()
	store.Clock = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Write(ctx, Ambient(""), "k", "v", WriteOptions{MaxAge: time.Minute}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(59 * time.Second)
	if v, _ := store.Read(ctx, Ambient(""), "k"); v["k"] != "v" {
		t.Fatalf("expected value before expiry, got %q", v["k"])
	}
	now = now.Add(time.Second)
	if v, _ := store.Read(ctx, Ambient(""), "k"); len(v) != 0 {
		t.Fatalf("expected value to expire, got %v", v)
	}
}

func TestMemoryStoreWriteTokensKeepsRefreshWhenEmpty(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sc := Ambient("s")

	if err := WriteTokens(ctx, store, sc, DefaultKeys(), Tokens{AccessToken: "T1", RefreshToken: "RT1"}, WriteOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteTokens(ctx, store, sc, DefaultKeys(), Tokens{AccessToken: "T2"}, WriteOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadTokens(ctx, store, sc, DefaultKeys())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.AccessToken != "T2" || got.RefreshToken != "RT1" {
		t.Fatalf("expected T2/RT1, got %+v", got)
	}

	if err := DeleteTokens(ctx, store, sc, DefaultKeys()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeleteTokens(ctx, store, sc, DefaultKeys()); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
