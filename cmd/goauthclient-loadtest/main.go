// Command goauthclient-loadtest drives concurrent bursts of expired-token
// requests through one client and reports how many renewals each burst cost.
//
// Every round invalidates the current access token on a local fake API, then
// fires --callers concurrent requests. A healthy coordinator issues exactly one
// renewal per round.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	callers      int
	rounds       int
	refreshDelay time.Duration
	store        string
	redisAddr    string
	configPath   string
	verbose      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "goauthclient-loadtest",
		Short:         "Measure single-flight token renewal under concurrent expiry",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.callers, "callers", 256, "concurrent requests per round")
	flags.IntVar(&opts.rounds, "rounds", 20, "number of expiry rounds")
	flags.DurationVar(&opts.refreshDelay, "refresh-delay", 5*time.Millisecond, "artificial latency of the renewal endpoint")
	flags.StringVar(&opts.store, "store", "memory", "session store: memory or redis")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flags.StringVar(&opts.configPath, "config", "", "optional config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log coordinator events")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.callers <= 0 || opts.rounds <= 0 {
		return fmt.Errorf("callers and rounds must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = l
		defer func() { _ = logger.Sync() }()
	}

	api := newFakeAPI(opts.refreshDelay)
	defer api.srv.Close()

	store, cleanup, err := openStore(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := goAuthClient.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = goAuthClient.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}
	cfg.Transport.BaseURL = api.srv.URL

	engine, err := goAuthClient.New().
		WithConfig(cfg).
		WithTransport(api.srv.Client()).
		WithSessionStore(store).
		WithLogger(logger).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	sc := session.Ambient("loadtest")
	if err := engine.StoreSession(ctx, sc, session.Tokens{AccessToken: api.current(), RefreshToken: "RT0"}); err != nil {
		return err
	}
	client, err := engine.NewClient(ctx, sc)
	if err != nil {
		return err
	}

	var (
		latencies = make([]time.Duration, 0, opts.callers*opts.rounds)
		failures  int64
		mu        sync.Mutex
	)

	start := time.Now()
	for round := 0; round < opts.rounds; round++ {
		api.expire()

		var wg sync.WaitGroup
		for i := 0; i < opts.callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				t0 := time.Now()
				_, err := client.Get(ctx, "/items/"+strconv.Itoa(i))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					logger.Debug("request failed", zap.Error(err))
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}(i)
		}
		wg.Wait()
	}
	total := time.Since(start)

	stats := computeStats(total, latencies, failures)
	snapshot := engine.MetricsSnapshot()

	fmt.Println("---- results ----")
	printStats("requests", stats)
	fmt.Printf("renewals: issued=%d expected=%d succeeded=%d failed=%d\n",
		api.refreshCalls.Load(),
		opts.rounds,
		snapshot.Counters[goAuthClient.MetricRenewalSuccess],
		snapshot.Counters[goAuthClient.MetricRenewalFailure],
	)
	fmt.Printf("queued=%d replayed=%d stale=%d\n",
		snapshot.Counters[goAuthClient.MetricRequestQueued],
		snapshot.Counters[goAuthClient.MetricReplaySuccess],
		snapshot.Counters[goAuthClient.MetricStaleReplay],
	)
	return nil
}

func openStore(opts *options) (session.Store, func(), error) {
	switch opts.store {
	case "memory":
		return session.NewMemoryStore(), func() {}, nil
	case "redis":
	default:
		return nil, nil, fmt.Errorf("unknown store %q", opts.store)
	}

	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return session.NewRedisStore(client, "lt"), func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return session.NewRedisStore(client, "lt"), func() { _ = client.Close() }, nil
}

// fakeAPI accepts only the latest issued token. expire rotates the accepted
// token without telling the client, so the next burst hits token.expired.
type fakeAPI struct {
	srv          *httptest.Server
	delay        time.Duration
	generation   atomic.Int64
	refreshCalls atomic.Int64
}

func newFakeAPI(delay time.Duration) *fakeAPI {
	a := &fakeAPI{delay: delay}
	a.srv = httptest.NewServer(http.HandlerFunc(a.handle))
	return a
}

func (a *fakeAPI) current() string {
	return "T" + strconv.FormatInt(a.generation.Load(), 10)
}

func (a *fakeAPI) expire() {
	a.generation.Add(1)
}

func (a *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/refresh" {
		a.refreshCalls.Add(1)
		time.Sleep(a.delay)
		gen := a.generation.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":        "T" + strconv.FormatInt(gen, 10),
			"refreshToken": "RT" + strconv.FormatInt(gen, 10),
		})
		return
	}

	token, ok := goAuthClient.BearerToken(r.Header.Get("Authorization"))
	if !ok || token != a.current() {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "token.expired"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
