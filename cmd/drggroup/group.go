package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/msdrg/internal/catalog"
	"github.com/gyeh/msdrg/internal/exitcode"
	"github.com/gyeh/msdrg/internal/grouper"
	"github.com/gyeh/msdrg/internal/logging"
	"github.com/gyeh/msdrg/internal/normalize"
)

var (
	groupEnc   grouper.Encounter
	groupSex   string
	groupDis   string
	groupTrace bool
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Group a single encounter",
	Example: "  drggroup group --pdx I21.01 --sdx I46.9 --discharge expired --trace\n" +
		"  drggroup group --pdx I25.10 --proc 0210093,02703ZZ --age 67 --sex M",
	RunE: runGroup,
}

func init() {
	f := groupCmd.Flags()
	f.StringVar(&groupEnc.ID, "id", "", "Encounter identifier")
	f.StringVar(&groupEnc.PrincipalDx, "pdx", "", "Principal diagnosis, ICD-10-CM (required)")
	f.StringSliceVar(&groupEnc.SecondaryDx, "sdx", nil, "Secondary diagnoses in reporting order (repeat or comma-separate)")
	f.StringSliceVar(&groupEnc.Procedures, "proc", nil, "ICD-10-PCS procedures (repeat or comma-separate)")
	f.IntVar(&groupEnc.Age, "age", 0, "Age in years")
	f.StringVar(&groupSex, "sex", "U", "Sex: M, F or U")
	f.StringVar(&groupDis, "discharge", "alive", "Discharge status: alive, expired or transferred")
	f.BoolVar(&groupTrace, "trace", false, "Print the decision trace")
	_ = groupCmd.MarkFlagRequired("pdx")
	rootCmd.AddCommand(groupCmd)
}

func runGroup(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	eng := grouper.New(loadCatalog(context.Background(), log))

	groupEnc.Sex = normalize.Sex(groupSex)
	groupEnc.Discharge = catalog.Discharge(normalize.Discharge(groupDis))

	res, err := eng.Group(groupEnc)
	if err != nil {
		var ude *grouper.UnknownDiagnosisError
		if errors.As(err, &ude) {
			log.Error().Str("code", ude.Code).Msg("principal diagnosis is not in the diagnosis index")
			os.Exit(exitcode.InputError)
		}
		log.Error().Err(err).Msg("invalid encounter")
		os.Exit(exitcode.UsageError)
	}

	if res.EncounterID != "" {
		fmt.Printf("Encounter: %s\n", res.EncounterID)
	}
	fmt.Printf("DRG:       %s %s\n", res.DRG, res.Description)
	fmt.Printf("MDC:       %s\n", res.MDC)
	fmt.Printf("Type:      %s\n", res.Type)
	if res.SeverityDx != "" {
		fmt.Printf("Severity:  %s (%s)\n", res.Severity, res.SeverityDx)
	} else {
		fmt.Printf("Severity:  %s\n", res.Severity)
	}
	if res.Procedure != "" {
		fmt.Printf("Procedure: %s\n", res.Procedure)
	}
	fmt.Printf("Path:      %s\n", res.Path)
	fmt.Printf("Outcome:   %s\n", res.Outcome)
	if groupTrace {
		fmt.Println("Trace:")
		for i, note := range res.Trace {
			fmt.Printf("  %2d. %s\n", i+1, note)
		}
	}
	return nil
}
