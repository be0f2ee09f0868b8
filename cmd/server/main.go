package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ryandielhenn/zephyrcore/internal/config"
	"github.com/ryandielhenn/zephyrcore/internal/discovery"
	"github.com/ryandielhenn/zephyrcore/internal/logging"
	"github.com/ryandielhenn/zephyrcore/internal/telemetry"
	"github.com/ryandielhenn/zephyrcore/pkg/executor"
	"github.com/ryandielhenn/zephyrcore/pkg/kv"
	"github.com/ryandielhenn/zephyrcore/pkg/node"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	cfgPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server.exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Configuration, log *zap.Logger) error {
	telemetry.SetBuildInfo(version, gitSHA)

	// 1. Eviction engine and worker pool
	capacity, err := cfg.CapacityBytes()
	if err != nil {
		return err
	}
	telemetry.SetCapacity(telemetry.Registry, capacity)
	storeOpts := []kv.StoreOption{
		kv.WithLogger(log.Named("kv")),
		kv.WithObserver(telemetry.NewCacheMetrics(telemetry.Registry)),
		kv.WithShards(cfg.Cache.Shards),
	}
	if cfg.Cache.Index == config.IndexOrdered {
		storeOpts = append(storeOpts, kv.WithOrderedKeys())
	}
	store := kv.NewSharded(capacity, storeOpts...)

	exec := executor.New(cfg.Executor,
		executor.WithLogger(log.Named("executor")),
		executor.WithObserver(telemetry.NewPoolMetrics(telemetry.Registry)),
	)
	pool := exec.Config()
	log.Info("boot.cache",
		zap.Int64("capacity", capacity),
		zap.Int("shards", store.ShardCount()),
		zap.String("index", cfg.Cache.Index),
		zap.Int("low_watermark", pool.LowWatermark),
		zap.Int("high_watermark", pool.HighWatermark),
		zap.Int("max_queue", pool.MaxQueueSize),
	)

	// 2. HTTP surface
	addr := cfg.Node.Addr
	if addr == "" {
		addr = cfg.Node.Listen
	}
	n := node.New(store, exec, cfg.Node.ID, addr,
		node.WithLogger(log.Named("node")),
		node.WithRequestTimeout(cfg.Node.RequestTimeout),
	)
	srv := &http.Server{
		Addr:              cfg.Node.Listen,
		Handler:           node.NewRouter(n),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Optional registration in etcd
	var (
		cli *clientv3.Client
		reg *discovery.Registration
	)
	if cfg.Etcd.Enabled() {
		cli, err = discovery.NewClient(cfg.Etcd.Endpoints, cfg.Etcd.DialTimeout)
		if err != nil {
			exec.Stop(false)
			return err
		}
		regCtx, cancel := context.WithTimeout(ctx, cfg.Etcd.DialTimeout)
		reg, err = discovery.RegisterNode(regCtx, cli, cfg.Etcd.Prefix, cfg.Node.ID,
			node.NormalizeHostPort(addr, "8080"), cfg.Etcd.LeaseTTL, log.Named("discovery"))
		cancel()
		if err != nil {
			exec.Stop(false)
			return multierr.Append(err, cli.Close())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server.listen", zap.String("addr", cfg.Node.Listen), zap.String("id", cfg.Node.ID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server.shutdown")
		return shutdown(srv, exec, reg, cli, cfg.Node.ShutdownTimeout)
	})
	return g.Wait()
}

// shutdown stops accepting requests, drains the pool and removes the
// registration. Every step runs even when an earlier one fails.
func shutdown(srv *http.Server, exec *executor.Executor, reg *discovery.Registration, cli *clientv3.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	if reg != nil {
		err = multierr.Append(err, reg.Deregister(ctx))
	}
	err = multierr.Append(err, srv.Shutdown(ctx))
	err = multierr.Append(err, exec.Shutdown(ctx))
	if cli != nil {
		err = multierr.Append(err, cli.Close())
	}
	return err
}
