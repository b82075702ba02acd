package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mezonai/hashchain/logx"
	"github.com/mezonai/hashchain/store"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir     = "./chaindata"
	DefaultAPIAddr     = ":8000"
	DefaultRPCAddr     = ":8001"
	DefaultMetricsAddr = ":9100"
)

// Default returns a LevelDB-backed configuration rooted at dataDir
func Default(dataDir string) *Config {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return &Config{
		Store: store.StoreConfig{
			Type:      store.LevelDBStoreType,
			Directory: dataDir,
		},
		Server: ServerConfig{
			APIAddr:     DefaultAPIAddr,
			RPCAddr:     DefaultRPCAddr,
			MetricsAddr: DefaultMetricsAddr,
		},
	}
}

// Load reads path on top of the defaults. .yml/.yaml files are parsed as
// YAML, .ini files as INI with [store], [server] and [log] sections.
func Load(path string) (*Config, error) {
	cfg := Default("")

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	case ".ini":
		if err := loadINI(path, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	logx.Info("CONFIG", "Loaded config from ", path, " store=", cfg.Store.Type)
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config")
	}
	defer file.Close()

	cfgFile := ConfigFile{Config: *cfg}
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return errors.Wrapf(err, "decode YAML %s", path)
	}
	*cfg = cfgFile.Config
	return nil
}

func loadINI(path string, cfg *Config) error {
	file, err := ini.Load(path)
	if err != nil {
		return errors.Wrapf(err, "load INI %s", path)
	}
	sections := map[string]interface{}{
		"store":  &cfg.Store,
		"server": &cfg.Server,
		"log":    &cfg.Log,
	}
	for name, target := range sections {
		if !file.HasSection(name) {
			continue
		}
		if err := file.Section(name).MapTo(target); err != nil {
			return errors.Wrapf(err, "map [%s]", name)
		}
	}
	return nil
}

// Validate checks the store section
func (c *Config) Validate() error {
	return c.Store.Validate()
}

// ApplyLogging pushes the log section into logx
func (c *Config) ApplyLogging() {
	logx.Configure(logx.Options{
		Filename:  c.Log.File,
		MaxSizeMB: c.Log.MaxSizeMB,
		MaxAge:    c.Log.MaxAgeDays,
		Stdout:    c.Log.Stdout,
	})
}
