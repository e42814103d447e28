package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"daochain/config"
	"daochain/core/genesis"
	"daochain/core/node"
	"daochain/core/runtime"
	"daochain/indexer"
	"daochain/observability/otel"
	"daochain/rpc"
	"daochain/storage"
)

const shutdownTimeout = 15 * time.Second

// app holds every long-lived component of a running node.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      storage.Database
	runtime *runtime.Runtime
	index   *indexer.Indexer
	hub     *rpc.EventHub
	node    *node.Node
	server  *rpc.Server
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.InMemory {
		return storage.NewMemDB(), nil
	}
	db, err := storage.NewLevelDB(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	return db, nil
}

func loadGenesis(path string) (runtime.Params, runtime.Genesis, error) {
	base := runtime.DefaultParams()
	if strings.TrimSpace(path) == "" {
		return base, runtime.Genesis{}, nil
	}
	return genesis.Load(path, base)
}

// buildApp opens storage, applies genesis on a fresh database and wires the
// node, indexer and RPC server together. Nothing is started.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	params, gen, err := loadGenesis(cfg.GenesisFile)
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, hub: rpc.NewEventHub()}
	if a.db, err = openDatabase(cfg); err != nil {
		return nil, err
	}

	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithTracer(otel.Tracer("runtime")),
		runtime.WithEventSink(a.hub),
	}
	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		a.index, err = indexer.Open(dsn, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open indexer: %w", err)
		}
		opts = append(opts, runtime.WithEventSink(a.index))
	}

	a.runtime, err = runtime.New(a.db, params, opts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init runtime: %w", err)
	}
	switch err := a.runtime.InitGenesis(ctx, gen); {
	case err == nil:
	case errors.Is(err, runtime.ErrGenesisApplied):
		logger.Info("resuming chain", "height", a.runtime.Height())
	default:
		a.close()
		return nil, fmt.Errorf("apply genesis: %w", err)
	}

	pool := node.NewPool(node.PoolConfig{
		MaxPending:   cfg.Node.MaxPending,
		MaxCallBytes: int(params.Dao.MaxCallSize),
		Quota:        node.Quota{MaxPending: uint32(cfg.Node.MaxPendingPerSigner)},
	})
	nodeOpts := []node.Option{node.WithLogger(logger)}
	var archive rpc.Archive
	if a.index != nil {
		nodeOpts = append(nodeOpts, node.WithBlockListener(a.index))
		archive = a.index
	}
	interval := time.Duration(cfg.Node.BlockIntervalMs) * time.Millisecond
	a.node = node.New(a.runtime, pool, interval, nodeOpts...)

	a.server = rpc.NewServer(a.runtime, a.node, archive, a.hub, rpc.Config{
		ReadTimeout:      time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout:     time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
		SubmitRatePerSec: cfg.RPC.SubmitRatePerSec,
		SubmitBurst:      cfg.RPC.SubmitBurst,
		JWTSecret:        cfg.RPC.JWTSecret,
	}, logger)
	return a, nil
}

func (a *app) close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("close indexer", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// run blocks until ctx is cancelled or the block loop or RPC server fails,
// then shuts the server down.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := a.server.Start(a.cfg.RPCAddress); err != nil {
			errCh <- fmt.Errorf("rpc server: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		if err := a.node.Run(ctx); err != nil {
			errCh <- fmt.Errorf("block production: %w", err)
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("rpc shutdown", "error", err)
	}
	return runErr
}

func startRun(cmd *cobra.Command, cfg *config.Config) error {
	logger := commonRun(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: programName,
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
			Traces:      cfg.Telemetry.Traces,
			Metrics:     cfg.Telemetry.Metrics,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	logger.Info("node started",
		"rpc", cfg.RPCAddress,
		"height", a.runtime.Height(),
		"in_memory", cfg.InMemory,
		"indexer", a.index != nil,
	)
	if err := a.run(ctx); err != nil {
		logger.Error("node stopped", "error", err)
		return err
	}
	logger.Info("node stopped", "height", a.runtime.Height())
	return nil
}

func startCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the node: produce blocks and serve JSON-RPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			return startRun(cmd, cfg)
		},
	}
}
