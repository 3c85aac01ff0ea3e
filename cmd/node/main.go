package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"kvrpc/internal/api"
	"kvrpc/internal/config"
	"kvrpc/internal/kv"
	"kvrpc/internal/logging"
	"kvrpc/internal/metrics"
	"kvrpc/internal/pool"
	"kvrpc/internal/service"
)

var log = logging.For("node")

// Options are the command-line overrides; zero values leave the config alone.
type Options struct {
	Config    string `short:"f" long:"config" description:"TOML or YAML configuration file"`
	Listen    string `short:"l" long:"listen" description:"Listen address, e.g. :8081"`
	Name      string `short:"n" long:"name" description:"Name the service is bound under"`
	Workers   int    `short:"w" long:"workers" description:"Worker pool size"`
	Seed      int    `long:"seed" default:"-1" description:"Number of key<i>/value<i> entries inserted at startup"`
	LogLevel  string `long:"log-level" description:"debug, info, warn or error"`
	LogFormat string `long:"log-format" description:"console, text or json"`
}

func (o *Options) apply(cfg *config.Config) {
	if o.Listen != "" {
		cfg.Server.Listen = o.Listen
	}
	if o.Name != "" {
		cfg.Server.Name = o.Name
	}
	if o.Workers != 0 {
		cfg.Pool.Workers = o.Workers
	}
	if o.Seed >= 0 {
		cfg.Store.Seed = o.Seed
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
}

func main() {
	opts := &Options{}
	if _, err := flags.Parse(opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Server exception: " + err.Error())
		os.Exit(1)
	}
}

// node is one running server: store, pool and HTTP front.
type node struct {
	store *kv.Store
	pool  *pool.Pool
	http  *http.Server
}

func newNode(cfg *config.Config) *node {
	store := kv.NewStore()
	store.Seed(cfg.Store.Seed)

	m := metrics.New()
	p := pool.New(cfg.Pool.Workers, pool.WithObserver(m))
	svc := service.New(store, p, m)

	return &node{
		store: store,
		pool:  p,
		http: &http.Server{
			Addr:    cfg.Server.Listen,
			Handler: api.NewRouter(svc, cfg.Server.Name, m.Handler()),
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	n := newNode(cfg)
	log.Debug("store seeded", "entries", n.store.Len(), "workers", n.pool.Size())

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.http.ListenAndServe()
	}()
	log.Info(fmt.Sprintf("Server ready: //%s/%s", cfg.Server.Listen, cfg.Server.Name))

	select {
	case err := <-errCh:
		n.pool.Close()
		return err
	case <-ctx.Done():
	}

	log.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	err := n.http.Shutdown(shutdownCtx)
	n.pool.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
