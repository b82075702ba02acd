package config

import (
	"github.com/mezonai/hashchain/store"
)

// ServerConfig holds the listen addresses of the hosting surfaces.
// An empty address disables that surface.
type ServerConfig struct {
	APIAddr     string `yaml:"api_addr" ini:"api_addr"`
	RPCAddr     string `yaml:"rpc_addr" ini:"rpc_addr"`
	MetricsAddr string `yaml:"metrics_addr" ini:"metrics_addr"`

	// AppendRateLimit caps POST /block per client IP per second; 0 disables it
	AppendRateLimit int `yaml:"append_rate_limit" ini:"append_rate_limit"`

	// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For
	TrustedProxies []string `yaml:"trusted_proxies" ini:"trusted_proxies"`
}

// LogConfig overrides the rotating log file settings
type LogConfig struct {
	File       string `yaml:"file" ini:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" ini:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days" ini:"max_age_days"`
	Stdout     bool   `yaml:"stdout" ini:"stdout"`
}

// Config is the node configuration
type Config struct {
	Store  store.StoreConfig `yaml:"store"`
	Server ServerConfig      `yaml:"server"`
	Log    LogConfig         `yaml:"log"`
}

// ConfigFile is the top-level structure of a YAML config file
type ConfigFile struct {
	Config Config `yaml:"config"`
}
