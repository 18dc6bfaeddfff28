package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/apistat/internal/qualitygate"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		f        analysisFlags
		asJSON   bool
		minDoc   float64
		maxDep   float64
		maxUnst  float64
		maxOther float64
		maxCyc   int
	)
	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Evaluate the quality gates of the [gates] config section",
		Long: `check analyses an index and evaluates the configured quality gates. The exit
status is 3 when a required or critical gate fails. Flags override the
matching [gates] settings.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gates := a.cfg.Gates
			fs := cmd.Flags()
			if fs.Changed("min-doc-coverage") {
				gates.MinDocCoverage = minDoc
			}
			if fs.Changed("max-deprecated-ratio") {
				gates.MaxDeprecatedRatio = maxDep
			}
			if fs.Changed("max-unstable-ratio") {
				gates.MaxUnstableRatio = maxUnst
			}
			if fs.Changed("max-other-ratio") {
				gates.MaxOtherRatio = maxOther
			}
			if fs.Changed("max-cycles") {
				gates.MaxCycles = maxCyc
			}

			res, err := f.analyze(cmd, a, args[0])
			if err != nil {
				return err
			}
			f.printTimings(cmd, res)

			ctx := qualitygate.FromResult(res)
			result := qualitygate.BuildPipeline(gates).Run(ctx)
			for _, g := range result.Gates {
				a.logger.Debug("gate evaluated", "gate", g.Name, "status", g.Status, "value", g.Value, "threshold", g.Threshold)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			} else {
				fmt.Fprint(out, qualitygate.FormatReport(ctx, result))
			}
			return result.Err()
		},
	}
	f.register(cmd)
	fs := cmd.Flags()
	fs.BoolVar(&asJSON, "json", false, "print the gate results as JSON")
	fs.Float64Var(&minDoc, "min-doc-coverage", 0, "minimum share of documented items")
	fs.Float64Var(&maxDep, "max-deprecated-ratio", 1, "maximum share of deprecated items")
	fs.Float64Var(&maxUnst, "max-unstable-ratio", 1, "maximum share of unstable items")
	fs.Float64Var(&maxOther, "max-other-ratio", 1, "maximum share of unrecognized items (advisory)")
	fs.IntVar(&maxCyc, "max-cycles", -1, "maximum number of reference cycles, -1 to disable")
	return cmd
}
