package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"firecheck/internal/blob"
	"firecheck/internal/config"
	"firecheck/internal/core"
	"firecheck/internal/logging"
	"firecheck/internal/report"
)

// app carries the state shared by every subcommand once the root pre-run has
// loaded configuration and opened the service.
type app struct {
	out        io.Writer
	configFile string
	envFile    string

	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	svc      *core.Service
}

func newApp(out io.Writer) *app {
	return &app{out: out, envFile: ".env"}
}

func rootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "firecheck",
		Short:         "Fire-safety inspection records and reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default ./firecheck.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", a.envFile, "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(
		siteCommand(a),
		inspectionCommand(a),
		issueCommand(a),
		reportCommand(a),
		historyCommand(a),
		serveCommand(a),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.initialize(cmd)
	}
	return rootCmd
}

// execute runs the command line and releases the service even when the
// subcommand failed, which cobra's post-run hooks do not cover.
func execute(ctx context.Context, a *app, args []string) error {
	cmd := rootCommand(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if cerr := a.shutdown(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile, a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger

	a.registry = prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	adapter, err := core.OpenAdapter(ctx, core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.svc = core.NewService(adapter,
		core.WithLogger(logger.Named("core")),
		core.WithMetrics(recorder),
	)
	if err := a.svc.Open(ctx); err != nil {
		_ = a.svc.Close()
		a.svc = nil
		return err
	}
	return nil
}

func (a *app) shutdown() error {
	var err error
	if a.svc != nil {
		err = a.svc.Close()
		a.svc = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func (a *app) archive(cmd *cobra.Command) (*report.Archive, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	s3cfg := a.cfg.Blob.S3
	store, err := blob.Open(cmd.Context(), blob.Config{
		Driver: blob.Driver(a.cfg.Blob.Driver),
		FSRoot: a.cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          s3cfg.Region,
			Bucket:          s3cfg.Bucket,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			PathStyle:       s3cfg.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return report.NewArchive(store, loc), nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
