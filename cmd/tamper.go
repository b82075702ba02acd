package cmd

import (
	"fmt"

	"github.com/mezonai/hashchain/block"
	"github.com/mezonai/hashchain/diagnostic"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	tamperHeight uint64
	tamperData   string
	tamperPrev   string
)

// tamperCmd rewrites a stored block in place to exercise validation.
// It is hidden from help output.
var tamperCmd = &cobra.Command{
	Use:    "tamper",
	Short:  "Overwrite a stored block without resealing the chain",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataSet := cmd.Flags().Changed("data")
		prevSet := cmd.Flags().Changed("prev")
		if dataSet == prevSet {
			return errors.New("exactly one of --data or --prev is required")
		}

		bc, bs, err := openChain()
		if err != nil {
			return err
		}
		defer bs.MustClose()

		var b *block.Block
		if dataSet {
			b, err = diagnostic.TamperData(bc, tamperHeight, tamperData)
		} else {
			b, err = diagnostic.Relink(bc, tamperHeight, tamperPrev)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "overwrote %s\n", b)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tamperCmd)
	tamperCmd.Flags().Uint64Var(&tamperHeight, "height", 0, "Height of the block to overwrite")
	tamperCmd.Flags().StringVar(&tamperData, "data", "", "Replace the block data and keep the stale hash")
	tamperCmd.Flags().StringVar(&tamperPrev, "prev", "", "Replace the previous hash and reseal the block")
}
