// Command detectd serves device detection over HTTP and keeps its device
// database current from the configured update source.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/devicekit/internal/api"
	"github.com/dmitrymomot/devicekit/internal/clientip"
	"github.com/dmitrymomot/devicekit/internal/httpserver"
	"github.com/dmitrymomot/devicekit/internal/requestid"
	"github.com/dmitrymomot/devicekit/pkg/config"
	"github.com/dmitrymomot/devicekit/pkg/detectmw"
	"github.com/dmitrymomot/devicekit/pkg/detector"
	"github.com/dmitrymomot/devicekit/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envFiles := flag.StringSlice("env-file", nil, "dotenv file to load (repeatable, earlier files win)")
	addr := flag.String("addr", "", "listen address, overrides DEVICEKIT_HTTP_ADDR")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *envFiles, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "detectd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envFiles []string, addr string) error {
	cfg, err := config.Load(config.WithEnvFiles(envFiles...))
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	log := logger.New(
		logger.WithLevelName(cfg.Log.Level),
		logger.WithFormat(logger.Format(cfg.Log.Format)),
		logger.WithService("detectd", version),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			clientip.LoggerExtractor(),
			detectmw.LoggerExtractor(),
		),
	)
	logger.SetAsDefault(log)

	engine, err := detector.NewFromConfig(ctx, cfg, detector.WithLogger(log))
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Error("close engine", logger.Error(err))
		}
	}()

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, api.NewRouter(engine, log, api.WithTrustProxy(cfg.HTTP.TrustProxy)))
	})

	log.Info("detectd started",
		slog.String("addr", cfg.HTTP.Addr),
		logger.SnapshotID(engine.SnapshotID()),
		logger.DataVersion(engine.Info().DataVersion),
		slog.Bool("updater", engine.Updater().Status().State == detector.StateRunning))

	return g.Wait()
}
