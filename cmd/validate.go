package cmd

import (
	"fmt"

	"github.com/mezonai/hashchain/jsonx"
	"github.com/mezonai/hashchain/validator"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var validateJSON bool

// ErrChainInvalid is returned when validation finds at least one violation
var ErrChainInvalid = errors.New("chain is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every block's hash and link",
	Long: `Scan the whole chain and report every block whose stored hash differs
from its recomputed hash, and every block whose successor does not link to it.
Exits non-zero when anything is found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, bs, err := openChain()
		if err != nil {
			return err
		}
		defer bs.MustClose()

		report, err := validator.NewValidator(bc).ValidateChainReport()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if validateJSON {
			raw, err := jsonx.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(raw))
		} else {
			fmt.Fprintf(out, "checked %d blocks up to height %d\n", report.Checked, report.Height)
			for _, v := range report.Violations {
				fmt.Fprintf(out, "height %d: %s", v.Height, v.Code)
				if v.Expected != "" || v.Actual != "" {
					fmt.Fprintf(out, " (expected %s, actual %s)", v.Expected, v.Actual)
				}
				fmt.Fprintln(out)
			}
			if report.Valid() {
				fmt.Fprintln(out, "chain is valid")
			}
		}

		if !report.Valid() {
			return errors.Wrapf(ErrChainInvalid, "%d violations at heights %v", len(report.Violations), report.Heights())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the full report as JSON")
}
