package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/sre-norns/cloudapi/pkg/cloudapi"
	"github.com/sre-norns/cloudapi/pkg/config"
	"github.com/sre-norns/cloudapi/pkg/dbstore"
	"github.com/sre-norns/cloudapi/pkg/server"
	"github.com/sre-norns/cloudapi/pkg/vmapi"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const flagConfig = "config"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          server.Name,
		Short:        "CloudAPI compatible gateway listing machines of VM API",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP(flagConfig, "f", "", "Path to a config file (YAML)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(),
		newInventoryCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads and validates configuration for cmd, and a logger configured by it.
func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	file, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.Load(cmd.Flags(), file)
	if err != nil {
		return config.Config{}, nil, err
	}

	log, err := cfg.NewLogger()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, nil
}

func openInventory(cfg dbstore.Config, log *zap.Logger) (*dbstore.Inventory, error) {
	db, err := cfg.Open(&gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	return dbstore.NewInventory(db)
}

// source returns the client of VM records configured, and a readiness check of it.
func source(cfg config.Config, log *zap.Logger) (vmapi.Client, server.ReadinessCheck, error) {
	if cfg.VMAPIURL != "" {
		client, err := vmapi.NewHTTPClient(cfg.VMAPIURL, &http.Client{
			Transport: http.DefaultTransport,
		})
		if err != nil {
			return nil, nil, err
		}

		log.Info("listing machines from VM API", zap.String("url", cfg.VMAPIURL))
		return client, nil, nil
	}

	inventory, err := openInventory(cfg.InventoryDB, log)
	if err != nil {
		return nil, nil, err
	}

	log.Info("listing machines from inventory database")
	return inventory, inventory.Ping, nil
}

func tokenCodec(cfg config.Config, log *zap.Logger) (*cloudapi.TokenCodec, error) {
	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		var err error
		if secret, err = cloudapi.RandomSecret(); err != nil {
			return nil, err
		}
		log.Warn("no token secret configured, using a random one: continuation tokens will not survive a restart",
			zap.String("setting", config.KeyTokenSecret))
	}

	return cloudapi.NewTokenCodec(secret)
}
