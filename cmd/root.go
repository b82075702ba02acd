package cmd

import (
	"os"

	"github.com/mezonai/hashchain/chain"
	"github.com/mezonai/hashchain/config"
	"github.com/mezonai/hashchain/logx"
	"github.com/mezonai/hashchain/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	// Persistent flags shared by every command
	cfgPath   string
	dataDir   string
	storeType string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hashchain",
	Short: "Tamper-evident hash chain CLI",
	Long:  "Command line interface for appending to, inspecting and validating a hash chain kept in a key-value store.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		if cfg.Log != (config.LogConfig{}) {
			cfg.ApplyLogging()
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a YAML or INI config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", config.DefaultDataDir, "Directory holding the chain database")
	rootCmd.PersistentFlags().StringVar(&storeType, "db", string(store.LevelDBStoreType), "Store backend (leveldb, bolt, rocksdb, redis, postgres, memory)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given and lets explicit flags override it
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var c *config.Config
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		c = loaded
	} else {
		c = config.Default(dataDir)
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		c.Store.Directory = dataDir
	}
	if flags.Changed("db") || cfgPath == "" {
		c.Store.Type = store.StoreType(storeType)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid store settings")
	}
	return c, nil
}

// openChain opens the configured store and a controller over it. The caller
// closes the returned store.
func openChain() (*chain.Blockchain, store.BlockStore, error) {
	if err := ensureDataDir(); err != nil {
		return nil, nil, err
	}
	bs, err := store.CreateBlockStore(&cfg.Store)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s store", cfg.Store.Type)
	}
	bc, err := chain.New(bs)
	if err != nil {
		bs.MustClose()
		return nil, nil, errors.Wrap(err, "load chain")
	}
	return bc, bs, nil
}

func ensureDataDir() error {
	switch cfg.Store.Type {
	case store.LevelDBStoreType, store.BoltStoreType, store.RocksDBStoreType:
		if err := os.MkdirAll(cfg.Store.Directory, 0o755); err != nil {
			return errors.Wrap(err, "create data directory")
		}
	}
	return nil
}
