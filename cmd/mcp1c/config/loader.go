// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the server configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML file at path
// (skipped silently when path is empty or the file is absent), then
// environment variables. A .env file in the working directory is loaded
// first so containerized deployments can ship their environment alongside
// the binary.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults plus environment only
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides configuration fields from the environment.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "MCP_HOST")
	setInt(&cfg.Server.Port, "MCP_PORT")
	setString(&cfg.Server.BasePath, "MCP_PATH")

	setString(&cfg.Metadata.InputDir, "INPUT_METADATA_DIR")
	setString(&cfg.Metadata.DistDir, "DIST_METADATA_DIR")
	setString(&cfg.Metadata.CacheDir, "TREE_CACHE_DIR")
	setBool(&cfg.Metadata.Watch, "WATCH_METADATA")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setBool(&cfg.Logging.ToFile, "LOG_TO_FILE")
	setString(&cfg.Logging.Dir, "LOG_DIR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true")
	}
}
