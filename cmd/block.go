package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mezonai/hashchain/jsonx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <data>",
	Short: "Append a block carrying data",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := strings.Join(args, " ")
		if data == "" {
			return errors.New("block data cannot be empty")
		}

		bc, bs, err := openChain()
		if err != nil {
			return err
		}
		defer bs.MustClose()

		b, err := bc.Append(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "block %d %s\n", b.Height, b.Hash)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <height>",
	Short: "Print the block at height as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		height, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid height %q", args[0])
		}

		bc, bs, err := openChain()
		if err != nil {
			return err
		}
		defer bs.MustClose()

		b, err := bc.GetByHeight(height)
		if err != nil {
			return err
		}
		out, err := jsonx.MarshalIndent(b, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var heightCmd = &cobra.Command{
	Use:   "height",
	Short: "Print the chain height",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, bs, err := openChain()
		if err != nil {
			return err
		}
		defer bs.MustClose()

		height, err := bc.Height()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), height)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(heightCmd)
}
