package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/msdrg/internal/catalog"
	"github.com/gyeh/msdrg/internal/exitcode"
	"github.com/gyeh/msdrg/internal/logging"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Build the catalog and report stats (no writes)",
	RunE:  runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

// loadCatalog validates the config and builds the catalog, exiting with
// CatalogError when any definition file is missing or malformed.
func loadCatalog(ctx context.Context, log zerolog.Logger) *catalog.Catalog {
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	cat, err := catalog.Load(ctx, cfg.DataDir, cfg.Files, log)
	if err != nil {
		ev := log.Error().Err(err)
		var pe *catalog.ParseError
		if errors.As(err, &pe) {
			ev = ev.Str("family", string(pe.Family)).Str("source", pe.Source).Int("line", pe.Line)
		}
		ev.Msg("catalog build failed")
		os.Exit(exitcode.CatalogError)
	}
	return cat
}

func runCatalog(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	cat := loadCatalog(context.Background(), log)
	st := cat.Stats()

	fmt.Println("=== drggroup catalog ===")
	fmt.Printf("Data dir:        %s\n", cfg.DataDir)
	fmt.Printf("Fingerprint:     %s\n", cat.Fingerprint())
	fmt.Printf("DRGs:            %d\n", st.DRGs)
	fmt.Printf("Diagnoses:       %d\n", st.Diagnoses)
	fmt.Printf("CC / MCC:        %d / %d (%d alive-only)\n", st.CCs, st.MCCs, st.AliveOnly)
	fmt.Printf("PDX collections: %d\n", st.PDXCollections)
	fmt.Printf("DRG exclusions:  %d\n", st.DRGExclusions)
	fmt.Printf("Procedures:      %d\n", st.Procedures)
	fmt.Printf("Pre-MDC:         %d triggers\n", st.Triggers)
	for _, t := range cat.PreMDCTriggers() {
		fmt.Printf("  %-12s %s\n", t.Target, t.Title)
	}
	fmt.Println()
	fmt.Printf("MDCs: %d (%d groups, %d surgical)\n", st.MDCs, st.Groups, st.SurgicalGroups)
	for _, m := range cat.MDCs() {
		idx, _ := cat.MDC(m)
		var surgical, medical []string
		for _, g := range idx.Groups {
			if g.Kind == catalog.SurgicalGroup {
				surgical = append(surgical, g.Target.String())
			} else {
				medical = append(medical, g.Target.String())
			}
		}
		fmt.Printf("  MDC %-3s %-40.40s surgical [%s] medical [%s]\n",
			m, idx.Title, strings.Join(surgical, " "), strings.Join(medical, " "))
	}
	fmt.Println("Cross-validation: OK")
	return nil
}
