// Command slotengine runs a batch of sleeping computations on a slot engine
// and prints their results in submission order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluxorio/slotengine/pkg/config"
	"github.com/fluxorio/slotengine/pkg/core"
	"github.com/fluxorio/slotengine/pkg/engine"
	slotprom "github.com/fluxorio/slotengine/pkg/observability/prometheus"
	"github.com/fluxorio/slotengine/pkg/web"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	tasks := flag.Int("tasks", 10, "number of tasks to submit")
	duration := flag.Duration("duration", 2*time.Second, "how long each task sleeps")
	cancelEvery := flag.Int("cancel-every", 0, "cancel every n-th task right after submitting it (0 disables)")
	serve := flag.Bool("serve", false, "keep the ops server running after the batch until interrupted")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{
		configPath:  *configPath,
		tasks:       *tasks,
		duration:    *duration,
		cancelEvery: *cancelEvery,
		serve:       *serve,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "slotengine: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	tasks       int
	duration    time.Duration
	cancelEvery int
	serve       bool
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadWithEnv(opts.configPath, config.DefaultEnvPrefix)
	if err != nil {
		return err
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	logger := core.NewLogger(cfg.LoggerConfig())

	engineOpts := []engine.Option{engine.WithLogger(logger)}

	if cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("tracer provider shutdown: %v", err)
			}
		}()
		engineOpts = append(engineOpts, engine.WithTracerProvider(tp))
	}

	var serverOpts []web.ServerOption
	if cfg.Metrics.Enabled {
		engineOpts = append(engineOpts, engine.WithMetrics(slotprom.NewEngineMetrics(slotprom.DefaultRegisterer)))
		serverOpts = append(serverOpts,
			web.WithLogger(logger),
			web.WithGatherer(slotprom.DefaultRegistry),
			web.WithHTTPMetrics(slotprom.NewHTTPMetrics(slotprom.DefaultRegisterer)),
		)
	}

	e, err := engine.New(ctx, engineCfg, engineOpts...)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		server := web.NewFastHTTPServer(e, web.DefaultFastHTTPServerConfig(cfg.Metrics.Addr), serverOpts...)
		go func() {
			if err := server.Start(); err != nil {
				logger.Errorf("ops server stopped: %v", err)
			}
		}()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	futures := make([]*engine.Future[int], 0, opts.tasks)
	for i := 1; i <= opts.tasks; i++ {
		f, err := engine.Submit(e, compute(i, opts.duration), engine.WithName(fmt.Sprintf("compute-%d", i)))
		if err != nil {
			return fmt.Errorf("submit task %d: %w", i, err)
		}
		if opts.cancelEvery > 0 && i%opts.cancelEvery == 0 {
			f.Cancel()
		}
		futures = append(futures, f)
	}

	results := make([]string, len(futures))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range futures {
		g.Go(func() error {
			v, err := f.Get(gctx)
			switch {
			case errors.Is(err, engine.ErrCanceled):
				results[i] = fmt.Sprintf("future %s was canceled", f.Name())
			case err != nil:
				return fmt.Errorf("%s: %w", f.Name(), err)
			default:
				results[i] = fmt.Sprintf("Successfully computed future with result: %d", v)
			}
			return nil
		})
	}
	waitErr := g.Wait()

	for _, r := range results {
		if r != "" {
			fmt.Println(r)
		}
	}
	if waitErr != nil {
		fmt.Printf("Failed to compute future due to: %v\n", waitErr)
	}

	if opts.serve && cfg.Metrics.Enabled && waitErr == nil {
		logger.Infof("batch finished, serving ops endpoint on %s until interrupted", cfg.Metrics.Addr)
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := e.AwaitTermination(shutdownCtx); err != nil {
		return err
	}

	stats := e.Stats()
	logger.WithFields(core.Fields{
		"submitted": stats.Submitted,
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"canceled":  stats.Canceled,
		"dropped":   stats.Dropped,
		"passes":    stats.Passes,
	}).Info("engine stats")
	return waitErr
}

// compute sleeps for d, or until ctx ends, then returns v
func compute(v int, d time.Duration) func(context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		select {
		case <-time.After(d):
			return v, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
