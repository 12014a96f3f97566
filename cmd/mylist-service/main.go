package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/mylist-service/internal/cache"
	"github.com/pribylovaa/mylist-service/internal/config"
	mylisthttp "github.com/pribylovaa/mylist-service/internal/http"
	"github.com/pribylovaa/mylist-service/internal/metrics"
	"github.com/pribylovaa/mylist-service/internal/pkg/redact"
	"github.com/pribylovaa/mylist-service/internal/service"
	mlmongo "github.com/pribylovaa/mylist-service/internal/storage/mongo"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting mylist-service",
		"env", cfg.Env,
		"db", redact.URI(cfg.DB.URL),
		"cache_driver", cfg.Cache.Driver,
		"cache_url", redact.URI(cfg.Cache.URL),
	)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	mongoStore, err := mlmongo.New(dbCtx, cfg)
	dbCancel()
	if err != nil {
		log.Error("mongo_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("mongo_connected")

	cacheCtx, cacheCancel := context.WithTimeout(rootCtx, 5*time.Second)
	store, err := newCache(cacheCtx, cfg.Cache)
	cacheCancel()
	if err != nil {
		log.Error("cache_connect_failed", slog.String("err", err.Error()))
		_ = mongoStore.Close(context.Background())
		os.Exit(1)
	}
	log.Info("cache_initialized", "driver", cfg.Cache.Driver)

	m := metrics.MustNew(prometheus.DefaultRegisterer)
	svc := service.New(mongoStore, store, *cfg, service.WithMetrics(m))
	log.Info("service_initialized")

	var ready atomic.Bool
	httpAddr := cfg.HTTP.Addr()

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		if err := pingAll(ctx, mongoStore, store); err != nil {
			log.Warn("readiness_check_failed", slog.String("err", err.Error()))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", mylisthttp.NewRouter(svc, mylisthttp.Options{
		Logger:  log,
		Timeout: cfg.Timeouts.Service,
	}))

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}
	shutdownCancel()

	if err := store.Close(); err != nil {
		log.Warn("cache_close_failed", slog.String("err", err.Error()))
	}
	_ = mongoStore.Close(context.Background())

	log.Info("service_stopped")
}

// newCache выбирает реализацию кэша по cache.driver.
func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	if !cfg.Enabled() {
		return cache.Nop{}, nil
	}

	switch cfg.Driver {
	case config.CacheDriverRedis:
		return cache.NewRedis(ctx, cfg.URL)
	case config.CacheDriverMemory:
		return cache.NewMemory(time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// pingAll проверяет зависимости для readiness. Кэш без Ping (memory, none) считается здоровым.
func pingAll(ctx context.Context, deps ...any) error {
	for _, d := range deps {
		if p, ok := d.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
