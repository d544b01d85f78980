package main

import (
	"context"
	"net/http"
	"strings"
	"time"
	"uit-client/internal/config"
	"uit-client/internal/job"
	"uit-client/internal/uit"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
	fs         afero.Fs
	shutdown   func(context.Context) error
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "uitctl",
		Short:         "Build PBS scripts and manage jobs on HPC systems through the UIT+ gateway",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigPath, "path to the config file")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRenderCommand(a),
		newSubmitCommand(a),
		newStatusCommand(a),
		newLogCommand(a),
		newDeleteCommand(a),
		newEnvCommand(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, cfgLog := config.Load(a.configPath, cmd.Flags())
	a.cfg = cfg
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}

	logger, err := initLogger(&a.cfg, appMetadata())
	if err != nil {
		return err
	}
	a.logger = logger
	cfgLog.FlushToZap(logger)

	shutdown, err := initOpenTelemetry(AppName, Version, BuildTime, CommitHash, a.cfg.OtelCollectorUrl)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry", zap.Error(err))
		return err
	}
	a.shutdown = shutdown

	return nil
}

func (a *app) close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			a.logger.Error("Forced to shutdown OpenTelemetry", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// connect validates the config and returns a connected client, local or through the gateway.
func (a *app) connect(ctx context.Context) (job.Client, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	if a.cfg.Local {
		a.logger.Debug("Using local client")
		return uit.NewLocalClient(a.logger, a.fs), nil
	}

	session := uit.NewStaticSession(a.logger, a.cfg.APIURL, a.cfg.Token, &http.Client{})
	a.logger.Debug("Created gateway session", zap.String("session_id", session.ID.String()), zap.String("api_url", a.cfg.APIURL))

	client := uit.NewClient(a.logger, session,
		uit.WithRetryPolicy(a.cfg.RetryPolicy()),
		uit.WithRequestTimeout(a.cfg.RequestTimeout),
		uit.WithFs(a.fs),
	)
	if err := client.Connect(ctx, strings.ToLower(a.cfg.System), a.cfg.LoginNode); err != nil {
		return nil, err
	}
	return client, nil
}
