package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mezonai/hashchain/block"
	"github.com/mezonai/hashchain/chain"
	"github.com/mezonai/hashchain/jsonx"
	"github.com/mezonai/hashchain/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const maxImportLine = 16 << 20

var (
	exportOut string
	importIn  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every block as one JSON object per line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, bs, err := openChain()
		if err != nil {
			return err
		}
		defer bs.MustClose()

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return errors.Wrap(err, "create export file")
			}
			defer f.Close()
			w = f
		}

		bw := bufio.NewWriter(w)
		count := 0
		err = bc.Export(func(b *block.Block) error {
			line, err := jsonx.Marshal(b)
			if err != nil {
				return err
			}
			if _, err := bw.Write(append(line, '\n')); err != nil {
				return err
			}
			count++
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "export chain")
		}
		if err := bw.Flush(); err != nil {
			return errors.Wrap(err, "flush export")
		}
		if exportOut != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d blocks to %s\n", count, exportOut)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load an exported chain into an empty store",
	Long: `Read blocks written by export and store them in one batch. The target
store must be empty. Heights must run from 0 without gaps and every block must
pass its hash and link checks; otherwise nothing is written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if importIn != "" {
			f, err := os.Open(importIn)
			if err != nil {
				return errors.Wrap(err, "open import file")
			}
			defer f.Close()
			r = f
		}

		blocks, err := readBlocks(r)
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			return errors.New("no blocks to import")
		}

		if err := ensureDataDir(); err != nil {
			return err
		}
		bs, err := store.CreateBlockStore(&cfg.Store)
		if err != nil {
			return errors.Wrapf(err, "open %s store", cfg.Store.Type)
		}
		defer bs.MustClose()

		if err := chain.Import(bs, blocks); err != nil {
			return errors.Wrap(err, "import chain")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d blocks, height %d\n", len(blocks), len(blocks)-1)
		return nil
	},
}

func readBlocks(r io.Reader) ([]*block.Block, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)

	var blocks []*block.Block
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		b, err := block.Decode([]byte(text))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		blocks = append(blocks, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read blocks")
	}
	return blocks, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	importCmd.Flags().StringVarP(&importIn, "in", "i", "", "Input file (default stdin)")
}
