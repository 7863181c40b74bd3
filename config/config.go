// Package config loads the process-wide settings shared by every node:
// domain ID, middleware selection, connection parameters and remap rules.
// The value is read once at startup and passed explicitly to the
// components that need it; there are no ambient globals.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/XiandiShan/rclgo/names"
)

// Implementation selects the transport backing node endpoints
type Implementation string

// Supported transport implementations
const (
	ImplementationInproc Implementation = "inproc"
	ImplementationNATS   Implementation = "nats"
)

// NATSConfig holds the connection parameters for the networked transport
type NATSConfig struct {
	URL            string        `json:"url"`
	ClientName     string        `json:"client_name,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
	MaxReconnects  int           `json:"max_reconnects,omitempty"`
}

// Config is the complete process configuration
type Config struct {
	// DomainID partitions traffic; nodes only see peers in the same domain
	DomainID int `json:"domain_id"`
	// Implementation selects the transport: "inproc" or "nats"
	Implementation Implementation `json:"implementation"`
	// DefaultNamespace is applied to nodes created without an explicit one
	DefaultNamespace string `json:"default_namespace,omitempty"`
	// NATS is consulted only when Implementation is "nats"
	NATS NATSConfig `json:"nats,omitempty"`
	// RemapRules apply in order to every name resolved in this process
	RemapRules []names.RemapRule `json:"remap_rules,omitempty"`
}

// Default returns the configuration used when no file is supplied
func Default() *Config {
	return &Config{
		DomainID:         0,
		Implementation:   ImplementationInproc,
		DefaultNamespace: "/",
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			ClientName:     "rclgo",
			ConnectTimeout: 5 * time.Second,
			RequestTimeout: 5 * time.Second,
			MaxReconnects:  -1,
		},
	}
}

// Load reads a JSON config file, applies environment overrides and
// validates the result. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variables recognized by applyEnv
const (
	EnvDomainID       = "ROS_DOMAIN_ID"
	EnvImplementation = "RCLGO_IMPLEMENTATION"
	EnvNATSURL        = "RCLGO_NATS_URL"
)

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDomainID); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.DomainID = id
		}
	}
	if v := os.Getenv(EnvImplementation); v != "" {
		cfg.Implementation = Implementation(v)
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		cfg.NATS.URL = v
	}
}

// Validate checks field ranges and name validity
func (c *Config) Validate() error {
	if c.DomainID < 0 || c.DomainID > 232 {
		return fmt.Errorf("domain_id %d out of range [0, 232]", c.DomainID)
	}
	switch c.Implementation {
	case ImplementationInproc, ImplementationNATS:
	default:
		return fmt.Errorf("unknown implementation %q", c.Implementation)
	}
	if c.Implementation == ImplementationNATS && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when implementation is %q", ImplementationNATS)
	}
	if c.DefaultNamespace != "" {
		if verr := names.ValidateNamespace(c.DefaultNamespace); verr != nil {
			return fmt.Errorf("default_namespace: %s", verr.Message)
		}
	}
	for i, rule := range c.RemapRules {
		if rule.From == "" || rule.To == "" {
			return fmt.Errorf("remap_rules[%d]: from and to must both be set", i)
		}
	}
	return nil
}
