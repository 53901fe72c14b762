// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import "fmt"

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Metadata MetadataConfig `yaml:"metadata"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address, e.g. "0.0.0.0".
	Host string `yaml:"host"`

	// Port is the listen port.
	Port int `yaml:"port"`

	// BasePath prefixes every API route, e.g. "/mcp".
	BasePath string `yaml:"base_path"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetadataConfig holds the metadata source and cache locations.
type MetadataConfig struct {
	// InputDir is scanned for metadata source files (JSON exports and text
	// reports).
	InputDir string `yaml:"input_dir"`

	// DistDir receives the persisted config summary index.
	DistDir string `yaml:"dist_dir"`

	// CacheDir is the BadgerDB directory for parsed report trees. Empty
	// disables the persistent cache.
	CacheDir string `yaml:"cache_dir"`

	// Watch enables rescanning when the input directory changes.
	Watch bool `yaml:"watch"`
}

// LoggingConfig holds the log output settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// ToFile enables writing logs to Dir in addition to stdout.
	ToFile bool `yaml:"to_file"`

	// Dir is the log file directory.
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8000,
			BasePath: "/mcp",
		},
		Metadata: MetadataConfig{
			InputDir: "./metadata_src",
			DistDir:  "./metadata_dist",
			CacheDir: "./metadata_dist/tree_cache",
			Watch:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			ToFile: true,
			Dir:    "./logs",
		},
	}
}
