package goAuthClient

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	env := newTestEnvWithBuilder(t, Interactive, session.Tokens{AccessToken: "T1", RefreshToken: "RT1"}, func(b *Builder) {
		b.WithAuditSink(sink)
	})
	client := env.client(t)

	if _, err := client.Get(context.Background(), "/items"); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	env.engine.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditRenewalAndLogoutEvents(t *testing.T) {
	sink := NewChannelSink(16)
	env := newTestEnvWithBuilder(t, Interactive, session.Tokens{AccessToken: "T1", RefreshToken: "RT1"}, func(b *Builder) {
		b.config.Audit = AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: false}
		b.WithAuditSink(sink)
	})
	env.api.set(func(a *fakeAPI) { a.refreshStatus = http.StatusUnauthorized })
	client := env.client(t)

	if _, err := client.Get(context.Background(), "/items"); err == nil {
		t.Fatal("expected renewal failure")
	}
	env.engine.Close()

	var types []string
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		types = append(types, ev.EventType)
		if ev.Execution != "interactive" {
			t.Fatalf("expected interactive execution, got %q", ev.Execution)
		}
		for _, needle := range []string{"T1", "RT1"} {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("token leaked into audit event %+v", ev)
			}
		}
	}
	if len(types) != 2 || types[0] != AuditRenewalFailure || types[1] != AuditLogout {
		t.Fatalf("expected renewal_failure then logout, got %v", types)
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: AuditSessionReset,
		RequestID: "req-1",
		Execution: "rendering",
	})

	if !buf.Contains(`"event_type":"session_reset"`) {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains(`"request_id":"req-1"`) {
		t.Fatal("expected JSON log line to contain request id")
	}
}

func TestAuditZapSinkLogsEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))
	sink.Emit(context.Background(), AuditEvent{
		EventType: AuditLogout,
		Path:      "/me",
		Metadata:  map[string]string{"reason": "token.invalid"},
	})

	entries := logs.FilterMessage(AuditLogout).All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/me" || fields["reason"] != "token.invalid" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if entries[0].LoggerName != "audit" {
		t.Fatalf("expected audit logger, got %q", entries[0].LoggerName)
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}
