package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/sre-norns/cloudapi/pkg/cloudapi"
	"github.com/sre-norns/cloudapi/pkg/grace"
	"github.com/sre-norns/cloudapi/pkg/server"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	grace.FatalOnError(log, "invalid configuration", cfg.Validate())

	client, ready, err := source(cfg, log)
	grace.FatalOnError(log, "failed to connect to VM records", err)

	codec, err := tokenCodec(cfg, log)
	grace.FatalOnError(log, "failed to create continuation token codec", err)

	reg := server.NewRegistry()
	metrics, err := cloudapi.NewMetrics(reg)
	grace.FatalOnError(log, "failed to register metrics", err)

	svc, err := cloudapi.NewService(client, codec, log.Named("listing"), metrics, cfg.ServiceOptions())
	grace.FatalOnError(log, "failed to create listing service", err)

	srv, err := server.New(server.Options{
		Listen:          cfg.Listen,
		DatacenterName:  cfg.DatacenterName,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Ready:           ready,
	}, svc, reg, log.Named("http"))
	grace.FatalOnError(log, "failed to create server", err)

	ctx, stop := grace.NewSignalHandlingContext(context.Background(), log)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}
