package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sre-norns/cloudapi/pkg/config"
	"github.com/sre-norns/cloudapi/pkg/grace"
	"go.uber.org/zap"
)

func newInventoryCmd() *cobra.Command {
	inventory := &cobra.Command{
		Use:   "inventory",
		Short: "Manage the inventory database of VM records",
	}

	load := &cobra.Command{
		Use:   "load",
		Short: "Load VM records from a YAML file into the inventory database",
		Args:  cobra.NoArgs,
		RunE:  runInventoryLoad,
	}
	load.Flags().String("file", "", "YAML file with VM records")
	_ = load.MarkFlagRequired("file")

	inventory.AddCommand(load)
	return inventory
}

func runInventoryLoad(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if !cfg.InventoryDB.Enabled() {
		return grace.RaiseError(config.KeyInventoryDB, "a database URL", "nothing", "set --"+config.KeyInventoryDB)
	}

	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	inventory, err := openInventory(cfg.InventoryDB, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := inventory.Migrate(ctx); err != nil {
		return err
	}

	n, err := inventory.Load(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to load %q: %w", path, err)
	}

	log.Info("inventory loaded", zap.String("file", path), zap.Int("vms", n))
	return nil
}
