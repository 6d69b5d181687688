package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	cache "github.com/krisalay/ttl-cache"
	"github.com/krisalay/ttl-cache/config"
	mylog "github.com/krisalay/ttl-cache/internal/log"
	"github.com/krisalay/ttl-cache/metrics"
)

// ================= BACKING STORE =================

type InMemoryStore struct {
	mu    sync.RWMutex
	data  map[string]any
	loads int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]any)}
}

func (s *InMemoryStore) Load(ctx context.Context, key string) (any, error) {
	// Pretend to be a slow database so concurrent misses overlap.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	fmt.Println("STORE  → load:", key)
	return s.data[key], nil
}

func (s *InMemoryStore) Put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *InMemoryStore) Loads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads
}

// ================= MAIN =================

func main() {
	// Signal-aware context is the root of ownership for long-lived background work.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(run).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command. Each setting is taken from its flag, then its
// environment variable, then the YAML file named by --config, then the default.
func newApp(action cli.ActionFunc) *cli.Command {
	// Filled in while flags are parsed, before the file-backed sources are read.
	var configPath string
	src := altsrc.NewStringPtrSourcer(&configPath)

	def := config.Default()

	return &cli.Command{
		Name:  "ttlcache",
		Usage: "walk through the TTL cache and optionally keep it serving metrics",
		Flags: []cli.Flag{
			// Must stay first: the flags below read the file it names.
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "YAML config file",
				Sources:     cli.EnvVars(config.EnvPath),
				Destination: &configPath,
			},
			&cli.IntFlag{
				Name:  "shards",
				Usage: "number of store shards (rounded up to a power of two)",
				Value: def.Shards,
				Sources: cli.NewValueSourceChain(
					yaml.YAML("shards", src),
				),
			},
			&cli.DurationFlag{
				Name:  "sweep-interval",
				Usage: "time between background sweeps",
				Value: def.SweepInterval,
				Sources: cli.NewValueSourceChain(
					yaml.YAML("sweep_interval", src),
				),
			},
			&cli.BoolFlag{
				Name:  "disable-sweeper",
				Usage: "rely on lazy expiration only",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("disable_sweeper", src),
				),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: def.LogLevel,
				Sources: cli.NewValueSourceChain(
					yaml.YAML("log_level", src),
				),
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address, e.g. :9090",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("metrics_addr", src),
				),
			},
			&cli.BoolFlag{
				Name:  "linger",
				Usage: "keep running after the demo until interrupted",
			},
		},
		Action: action,
	}
}

// loadConfig collects the resolved flag values into a config.File.
func loadConfig(c *cli.Command) (config.File, error) {
	path := c.String("config")

	// The value sources skip a file they cannot read or parse. Load reports it.
	if path != "" {
		if _, err := config.Load(path); err != nil {
			return config.File{}, err
		}
	}

	f := config.File{
		Source:         path,
		Shards:         c.Int("shards"),
		SweepInterval:  c.Duration("sweep-interval"),
		DisableSweeper: c.Bool("disable-sweeper"),
		LogLevel:       c.String("log-level"),
		MetricsAddr:    c.String("metrics-addr"),
	}
	if err := f.Validate(); err != nil {
		return config.File{}, err
	}
	return f, nil
}

func run(ctx context.Context, c *cli.Command) error {
	f, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := mylog.New(f.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	cfg := f.CacheConfig()
	cfg.Logger = logger
	cfg.Metrics = metrics.NewPrometheus(reg, "ttlcache")

	// The sweeper also stops when ctx is canceled by a signal.
	tc := cache.NewContext(ctx, cfg)
	defer func() {
		// Close is idempotent; safe to call in defer.
		if err := tc.Close(); err != nil {
			logger.Warn("cache close", zap.Error(err))
		}
	}()

	if f.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              f.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", zap.String("addr", f.MetricsAddr))
	}

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("CONFIG SOURCE   :", orDefault(f.Source, "(defaults)"))
	fmt.Println("SHARDS          :", f.Shards)
	if f.DisableSweeper {
		fmt.Println("SWEEP INTERVAL  : disabled")
	} else {
		fmt.Println("SWEEP INTERVAL  :", f.SweepInterval)
	}

	if err := demo(ctx, tc); err != nil {
		return err
	}

	printMetrics(reg)

	if c.Bool("linger") {
		fmt.Println("\nLingering. Press Ctrl+C to exit.")
		<-ctx.Done()
	}

	fmt.Println("\n==================== SHUTDOWN ====================")
	return nil
}

func demo(ctx context.Context, tc *cache.Manager) error {
	// ====================================================
	fmt.Println("\n==================== 1) NEVER EXPIRES ====================")
	if err := tc.Set("a", "hello", 0); err != nil {
		return err
	}
	v, _ := tc.Get("a")
	fmt.Println("CACHE  → GET a =", v)

	// ====================================================
	fmt.Println("\n==================== 2) LAZY EXPIRATION ====================")
	if err := tc.Set("b", "world", 100*time.Millisecond); err != nil {
		return err
	}
	fmt.Println("CACHE  → SET b (TTL = 100ms)")
	if err := sleep(ctx, 150*time.Millisecond); err != nil {
		return err
	}
	fmt.Println("CACHE  → EXISTS b before read =", tc.Exists("b"))
	_, ok := tc.Get("b")
	fmt.Println("CACHE  → GET b found =", ok)
	fmt.Println("CACHE  → EXISTS b after read =", tc.Exists("b"))

	// ====================================================
	fmt.Println("\n==================== 3) INVALID TTL ====================")
	if err := tc.Set("bad", "x", -time.Second); err != nil {
		fmt.Println("CACHE  → SET bad rejected:", err)
	}

	// ====================================================
	fmt.Println("\n==================== 4) SINGLEFLIGHT ====================")
	store := NewInMemoryStore()
	store.Put("user:1", "alice")

	wg := sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			val, err := tc.GetOrLoad(ctx, "user:1", time.Minute, store)
			fmt.Printf("GOROUTINE-%d → GET user:1 = %v (err=%v)\n", id, val, err)
		}(i)
	}
	wg.Wait()
	fmt.Println("STORE  → loads =", store.Loads())

	// ====================================================
	fmt.Println("\n==================== 5) SWEEP ====================")
	for i := 0; i < 5; i++ {
		if err := tc.Set(fmt.Sprintf("tmp%d", i), i, 10*time.Millisecond); err != nil {
			return err
		}
	}
	if err := sleep(ctx, 20*time.Millisecond); err != nil {
		return err
	}
	fmt.Println("CACHE  → keys before sweep =", sorted(tc.Keys()))
	fmt.Println("CACHE  → swept", tc.Sweep(), "entries")
	fmt.Println("CACHE  → keys after sweep  =", sorted(tc.Keys()))

	// ====================================================
	fmt.Println("\n==================== 6) ENTRY INFO ====================")
	if err := tc.Set("c", 42, 5*time.Second); err != nil {
		return err
	}
	info, _ := tc.EntryInfo("c")
	fmt.Printf("CACHE  → c: value=%v ttl=%s expires=%s expired=%v\n",
		info.Value, info.TTL, info.ExpiresAt().Format(time.RFC3339), tc.IsExpired("c"))

	// ====================================================
	fmt.Println("\n==================== 7) REMOVE ====================")
	tc.Remove("a")
	fmt.Println("CACHE  → REMOVE a, exists =", tc.Exists("a"))
	tc.RemoveAll()
	fmt.Println("CACHE  → REMOVE ALL, len =", tc.Len())

	return nil
}

func printMetrics(reg *prometheus.Registry) {
	fmt.Println("\n==================== METRICS ====================")

	families, err := reg.Gather()
	if err != nil {
		fmt.Println("gather:", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				fmt.Printf("%-40s %v\n", mf.GetName()+labels(m.GetLabel()), m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				fmt.Printf("%-40s count=%d\n", mf.GetName(), m.GetHistogram().GetSampleCount())
			}
		}
	}
}

func labels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	out := "{"
	for i, p := range pairs {
		if i > 0 {
			out += ","
		}
		out += p.GetName() + "=" + p.GetValue()
	}
	return out + "}"
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func sorted(keys []string) []string {
	sort.Strings(keys)
	return keys
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
