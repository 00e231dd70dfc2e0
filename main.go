package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zerbitx/ramlizer/catalog"
	"github.com/zerbitx/ramlizer/config"
	"github.com/zerbitx/ramlizer/metrics"
	"github.com/zerbitx/ramlizer/mocker"
	"github.com/zerbitx/ramlizer/ops"
	"github.com/zerbitx/ramlizer/plan"
	"github.com/zerbitx/ramlizer/selector"
	"github.com/zerbitx/ramlizer/spec"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(config.DotEnvFile)
	if err != nil {
		log.Fatalf("failed to read configuration: %s", err)
	}

	if err := newRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ramlizer",
		Short:        "Mock the HTTP APIs described by a folder of RAML documents",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Folder, "folder", "f", cfg.Folder, "path to the raml files to mock")
	flags.StringVar(&cfg.Pattern, "pattern", cfg.Pattern, "glob selecting documents within the folder")
	flags.StringVar(&cfg.Host, "host", cfg.Host, "host to listen on")
	flags.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port serving the mocks")
	flags.StringVarP(&cfg.Endpoint, "endpoint", "e", cfg.Endpoint, "path of the reconfiguration endpoint")
	flags.IntVar(&cfg.OpsPort, "ops-port", cfg.OpsPort, "port serving metrics and events, 0 disables it")
	flags.DurationVar(&cfg.StartupGrace, "grace", cfg.StartupGrace, "delay before accepting connections")
	flags.BoolVar(&cfg.StrictNegotiation, "strict-negotiation", cfg.StrictNegotiation, "answer 406 when no declared media type is acceptable")
	flags.Int64Var(&cfg.RandomSeed, "seed", cfg.RandomSeed, "seed of the random fallbacks, 0 seeds from the clock")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	return cmd
}

func configureLogger(cfg *config.Env) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.StandardLogger()
	logger.SetLevel(level)
	logger.SetReportCaller(true)

	switch cfg.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}

	return logger, nil
}

// loadCatalog loads every document of the folder, skipping the ones that fail.
// A folder that cannot be read is an error.
func loadCatalog(cfg *config.Env, logger logrus.FieldLogger, recorder *metrics.Recorder) (*catalog.Catalog, error) {
	docs, errs := spec.LoadFolder(cfg.Folder, cfg.Pattern)

	for _, err := range errs {
		recorder.RecordDocument(err)

		if errors.Is(err, spec.ErrFolder) {
			logger.WithError(err).Error("failed to read folder")
			return nil, err
		}

		logger.WithError(err).Error("skipping document")
	}

	for _, doc := range docs {
		logger.WithFields(logrus.Fields{
			"document": doc.Path,
			"title":    doc.Title,
			"id":       doc.ID,
		}).Info("creating HTTP mock services")
		recorder.RecordDocument(nil)
	}

	cat := catalog.Build(docs, catalog.WithLogger(logger))
	recorder.SetCatalogRoutes(cat.Len())

	if cat.Len() == 0 {
		logger.WithField("folder", cfg.Folder).Warn("nothing to mock")
	}

	return cat, nil
}

func run(cfg *config.Env) error {
	if cfg.Folder == "" {
		return errors.New("a folder is required, pass --folder or set RAMLIZER_FOLDER")
	}

	logger, err := configureLogger(cfg)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	cat, err := loadCatalog(cfg, logger, recorder)
	if err != nil {
		return err
	}
	plans := plan.Seeded(cat)

	selectorOptions := []selector.Option{
		selector.WithSource(selector.NewSource(cfg.RandomSeed)),
		selector.WithLogger(logger),
	}
	if !cfg.StrictNegotiation {
		selectorOptions = append(selectorOptions, selector.WithLenientNegotiation())
	}

	hub := ops.NewHub(logger)
	m := mocker.New(cat, plans, selector.New(cat, plans, selectorOptions...),
		mocker.WithLogger(logger),
		mocker.WithHost(cfg.Host),
		mocker.WithPort(cfg.Port),
		mocker.WithEndpoint(cfg.Endpoint),
		mocker.WithRecorder(recorder),
		mocker.WithNotifier(hub),
	)

	errc := make(chan error, 2)

	var opsServer *ops.Server
	if cfg.OpsPort > 0 {
		opsServer = ops.NewServer(fmt.Sprintf("%s:%d", cfg.Host, cfg.OpsPort), recorder, hub, logger)
		go func() {
			errc <- opsServer.Start()
		}()
	}

	if cfg.StartupGrace > 0 {
		logger.WithField("grace", cfg.StartupGrace).Info("waiting before accepting connections")
		time.Sleep(cfg.StartupGrace)
	}

	go func() {
		errc <- m.Start()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errc:
		logger.WithError(runErr).Error("listener stopped")
	case sig := <-sigc:
		logger.WithField("signal", sig.String()).Info("shutting down")
	}

	hub.Close()

	if opsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := opsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("failed to shutdown ops listener")
		}
	}

	if err := m.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}
