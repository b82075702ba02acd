package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the store and its genesis block",
	Long: `Initialize a chain by:
- Creating the data directory for file-based backends
- Opening the configured store
- Writing the genesis block when the store is empty

Running init on an existing chain changes nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, bs, err := openChain()
		if err != nil {
			return err
		}
		defer bs.MustClose()

		genesis, err := bc.GetByHeight(0)
		if err != nil {
			return err
		}
		height, err := bc.Height()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "chain ready at height %d, genesis %s\n", height, genesis.Hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
