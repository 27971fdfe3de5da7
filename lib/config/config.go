// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads resolver configuration.
//
// Configuration comes from a single YAML file passed explicitly by the
// embedding application — there are no search paths, environment
// fallbacks, or automatic discovery, so a deployment's effective
// configuration is always auditable from one file. Every field has a
// default; an empty file (or no file at all, via Default) yields a
// working resolver against the public gateways.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolver configuration.
type Config struct {
	// Fetch configures the content fetcher.
	Fetch FetchConfig

	// Cache configures the tiered result cache.
	Cache CacheConfig
}

// FetchConfig configures gateways and timeouts.
type FetchConfig struct {
	// Gateways is the ordered IPFS gateway base URL list.
	Gateways []string

	// ArweaveGateway is the base URL for ar:// fetches.
	ArweaveGateway string

	// GatewayTimeout bounds each IPFS gateway attempt.
	GatewayTimeout time.Duration

	// HTTPSTimeout bounds the single HTTPS/Arweave attempt.
	HTTPSTimeout time.Duration

	// RaceGateways issues gateway attempts concurrently,
	// first-success-wins, instead of sequential fallback.
	RaceGateways bool

	// MaxPayloadBytes bounds the raw payload read from any origin.
	MaxPayloadBytes int64
}

// CacheConfig configures the result cache tiers.
type CacheConfig struct {
	// MemoryEntries is the memory-tier capacity.
	MemoryEntries int

	// ContentTTL is the retention for content-addressed results.
	ContentTTL time.Duration

	// HTTPSTTL is the retention for mutable HTTPS results.
	HTTPSTTL time.Duration

	// RedisAddr enables the remote tier when set (host:port).
	RedisAddr string

	// RedisDB selects the redis logical database.
	RedisDB int

	// KeyPrefix namespaces remote-tier keys.
	KeyPrefix string
}

// yamlConfig mirrors Config for decoding. Durations travel as strings
// ("5s", "1h") and are parsed explicitly so a bad value fails with the
// field name attached.
type yamlConfig struct {
	Fetch struct {
		Gateways        []string `yaml:"gateways"`
		ArweaveGateway  string   `yaml:"arweave_gateway"`
		GatewayTimeout  string   `yaml:"gateway_timeout"`
		HTTPSTimeout    string   `yaml:"https_timeout"`
		RaceGateways    bool     `yaml:"race_gateways"`
		MaxPayloadBytes int64    `yaml:"max_payload_bytes"`
	} `yaml:"fetch"`
	Cache struct {
		MemoryEntries int    `yaml:"memory_entries"`
		ContentTTL    string `yaml:"content_ttl"`
		HTTPSTTL      string `yaml:"https_ttl"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisDB       int    `yaml:"redis_db"`
		KeyPrefix     string `yaml:"key_prefix"`
	} `yaml:"cache"`
}

// Default returns the built-in configuration: public IPFS gateways,
// sequential fallback, memory-only cache.
func Default() Config {
	return Config{}
}

// Load reads and parses the YAML file at path. Unknown fields are
// rejected so a typoed key fails loudly instead of silently taking a
// default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML config bytes.
func Parse(data []byte) (Config, error) {
	var raw yamlConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	var cfg Config
	cfg.Fetch.Gateways = raw.Fetch.Gateways
	cfg.Fetch.ArweaveGateway = raw.Fetch.ArweaveGateway
	cfg.Fetch.RaceGateways = raw.Fetch.RaceGateways
	cfg.Fetch.MaxPayloadBytes = raw.Fetch.MaxPayloadBytes
	cfg.Cache.MemoryEntries = raw.Cache.MemoryEntries
	cfg.Cache.RedisAddr = raw.Cache.RedisAddr
	cfg.Cache.RedisDB = raw.Cache.RedisDB
	cfg.Cache.KeyPrefix = raw.Cache.KeyPrefix

	var err error
	if cfg.Fetch.GatewayTimeout, err = parseDuration("fetch.gateway_timeout", raw.Fetch.GatewayTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Fetch.HTTPSTimeout, err = parseDuration("fetch.https_timeout", raw.Fetch.HTTPSTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Cache.ContentTTL, err = parseDuration("cache.content_ttl", raw.Cache.ContentTTL); err != nil {
		return Config{}, err
	}
	if cfg.Cache.HTTPSTTL, err = parseDuration("cache.https_ttl", raw.Cache.HTTPSTTL); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseDuration parses an optional duration field. Empty means unset;
// the consumer's default applies.
func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	return d, nil
}

func (c Config) validate() error {
	for _, gw := range c.Fetch.Gateways {
		if gw == "" {
			return fmt.Errorf("fetch.gateways contains an empty entry")
		}
	}
	if c.Fetch.GatewayTimeout < 0 || c.Fetch.HTTPSTimeout < 0 {
		return fmt.Errorf("fetch timeouts must not be negative")
	}
	if c.Cache.MemoryEntries < 0 {
		return fmt.Errorf("cache.memory_entries must not be negative")
	}
	return nil
}
