package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/msdrg/internal/batch"
	"github.com/gyeh/msdrg/internal/db"
	"github.com/gyeh/msdrg/internal/exitcode"
	"github.com/gyeh/msdrg/internal/logging"
)

var publishForce bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Copy the catalog tables into Postgres",
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishForce, "force", false, "Replace a catalog already published under the same fingerprint")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	cat := loadCatalog(ctx, log)

	pool, err := db.NewPool(ctx, cfg.DSN, 1)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	res, err := batch.PublishCatalog(ctx, pool, log, cat, publishForce)
	if err != nil {
		log.Error().Err(err).Msg("publish failed")
		os.Exit(exitcode.CopyError)
	}
	if res.AlreadyPublished {
		fmt.Printf("Catalog %s already published\n", res.Fingerprint[:12])
		return nil
	}
	fmt.Printf("Published catalog %s: %d DRGs, %d diagnoses, %d CC/MCC codes (%.1fs)\n",
		res.Fingerprint[:12], res.DRGs, res.Diagnoses, res.CCs, res.Duration.Seconds())
	return nil
}
