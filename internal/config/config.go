// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the emulator configuration from TOML
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/sambamock/pkg/flash"
	"github.com/Thermoquad/sambamock/pkg/samba"
)

// MaxChunkSize bounds chunk_size
const MaxChunkSize = 4096

// Config is the resolved emulator configuration
type Config struct {
	Version         string
	ChunkSize       int
	PollTimeout     time.Duration
	TransferTimeout time.Duration
	Map             flash.MemoryMap
	Serial          SerialConfig
	Metrics         MetricsConfig
}

type SerialConfig struct {
	Port string
	Baud int
}

type MetricsConfig struct {
	Addr string // empty disables the endpoint
}

type fileConfig struct {
	Version     string           `toml:"version"`
	ChunkSize   int              `toml:"chunk_size"`
	PollTimeout string           `toml:"poll_timeout"`
	Timeout     string           `toml:"timeout"`
	Regions     []regionConfig   `toml:"region"`
	Sentinels   []sentinelConfig `toml:"sentinel"`
	Serial      struct {
		Port string `toml:"port"`
		Baud int    `toml:"baud"`
	} `toml:"serial"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

type regionConfig struct {
	Name string `toml:"name"`
	Base int64  `toml:"base"`
	Size int64  `toml:"size"`
}

type sentinelConfig struct {
	Addr  int64 `toml:"addr"`
	Value int64 `toml:"value"`
}

// Default returns the SAMD21 memory map with the stock bootloader settings
func Default() Config {
	return Config{
		Version:         samba.DefaultVersion,
		ChunkSize:       samba.DefaultChunkSize,
		PollTimeout:     samba.DefaultPollTimeout,
		TransferTimeout: samba.DefaultTransferTimeout,
		Map:             flash.DefaultMemoryMap(),
		Serial:          SerialConfig{Baud: 115200},
	}
}

// Load reads path on top of Default. Keys absent from the file keep their
// defaults; a file that defines any region replaces the whole memory map.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("version") {
		cfg.Version = raw.Version
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("poll_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse poll_timeout: %w", err)
		}
		cfg.PollTimeout = d
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.TransferTimeout = d
	}

	if meta.IsDefined("region") {
		m, err := raw.memoryMap()
		if err != nil {
			return Config{}, err
		}
		cfg.Map = m
	} else if meta.IsDefined("sentinel") {
		return Config{}, fmt.Errorf("sentinel entries require region entries")
	}

	if meta.IsDefined("serial", "port") {
		cfg.Serial.Port = strings.TrimSpace(raw.Serial.Port)
	}
	if meta.IsDefined("serial", "baud") {
		cfg.Serial.Baud = raw.Serial.Baud
	}
	if meta.IsDefined("metrics", "addr") {
		cfg.Metrics.Addr = strings.TrimSpace(raw.Metrics.Addr)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (f fileConfig) memoryMap() (flash.MemoryMap, error) {
	var m flash.MemoryMap
	for i, r := range f.Regions {
		if r.Base < 0 || r.Base > 0xFFFFFFFF || r.Size <= 0 || r.Size > 0xFFFFFFFF {
			return flash.MemoryMap{}, fmt.Errorf("region[%d] %q: base/size out of range", i, r.Name)
		}
		m.Regions = append(m.Regions, flash.Region{Name: r.Name, Base: uint32(r.Base), Size: uint32(r.Size)})
	}
	for i, s := range f.Sentinels {
		if s.Addr < 0 || s.Addr > 0xFFFFFFFF || s.Value < 0 || s.Value > 0xFFFFFFFF {
			return flash.MemoryMap{}, fmt.Errorf("sentinel[%d]: addr/value out of range", i)
		}
		m.Sentinels = append(m.Sentinels, flash.Sentinel{Addr: uint32(s.Addr), Value: uint32(s.Value)})
	}
	return m, nil
}

// Validate checks the configuration, including that the memory map builds
func Validate(cfg Config) error {
	if cfg.ChunkSize < 1 || cfg.ChunkSize > MaxChunkSize {
		return fmt.Errorf("chunk_size must be in 1..%d, got %d", MaxChunkSize, cfg.ChunkSize)
	}
	if cfg.PollTimeout < 0 {
		return fmt.Errorf("poll_timeout must not be negative")
	}
	if cfg.TransferTimeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial baud must be positive")
	}
	if len(cfg.Map.Regions) == 0 {
		return fmt.Errorf("memory map has no regions")
	}
	for i, r := range cfg.Map.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("region[%d] missing name", i)
		}
	}
	if _, err := cfg.Map.Build(); err != nil {
		return fmt.Errorf("memory map invalid: %w", err)
	}
	return nil
}

// EngineOptions returns the samba options this configuration implies.
// storeOpts are applied to the flash store built from the memory map.
func (c Config) EngineOptions(storeOpts ...flash.StoreOption) ([]samba.Option, error) {
	store, err := c.Map.Build(storeOpts...)
	if err != nil {
		return nil, err
	}
	return []samba.Option{
		samba.WithStore(store),
		samba.WithVersion(c.Version),
		samba.WithChunkSize(c.ChunkSize),
		samba.WithPollTimeout(c.PollTimeout),
		samba.WithTransferTimeout(c.TransferTimeout),
	}, nil
}
