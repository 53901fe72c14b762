// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// IndexFileName is the config summary index persisted to the dist directory.
const IndexFileName = "metadata_configs_index.json"

// SourceKind distinguishes the two supported metadata source formats.
type SourceKind string

const (
	// SourceJSON is a prepared JSON metadata export.
	SourceJSON SourceKind = "json"

	// SourceReport is a plain-text configuration report.
	SourceReport SourceKind = "report"
)

// SourceEntry describes one discovered metadata source file.
type SourceEntry struct {
	// Base is the file name without extension, used as the config selector.
	Base string

	// File is the file name with extension.
	File string

	// Path is the absolute path to the source file.
	Path string

	// Kind is the source format.
	Kind SourceKind
}

// ConfigDiagnostic explains why a config selector could not be resolved.
// It carries the available configs so the caller can show them to the user.
type ConfigDiagnostic struct {
	Message string
	Configs []ConfigSummary
}

// Text renders the diagnostic as a human-readable message listing the
// available configurations.
func (d *ConfigDiagnostic) Text() string {
	var lines []string
	for _, c := range d.Configs {
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("- %s: %s — %s", c.File, c.Name, c.Synonym)))
	}
	if len(lines) == 0 {
		lines = append(lines, "- (конфигурации не найдены)")
	}
	return d.Message + "\n\nДоступные конфигурации:\n" + strings.Join(lines, "\n")
}

// CatalogConfig configures source discovery.
type CatalogConfig struct {
	// InputDir is scanned for metadata source files.
	InputDir string

	// DistDir receives the persisted config summary index. If it cannot be
	// created the index falls back to the current working directory.
	DistDir string

	// Logger receives discovery diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Catalog discovers metadata source files and maintains the config summary
// index.
//
// # Description
//
// A scan of the input directory maps base file names to source entries.
// Files starting with a dot and the index file itself are skipped; when two
// files share a base name the lexicographically first one wins. For every
// JSON source the top-level name, synonym and version are extracted into a
// summary; the summaries are persisted as the index file in the dist
// directory.
//
// # Thread Safety
//
// Safe for concurrent use. Rescan swaps the state under a write lock.
type Catalog struct {
	inputDir  string
	indexPath string
	logger    *slog.Logger

	mu        sync.RWMutex
	entries   map[string]SourceEntry
	order     []string
	summaries []ConfigSummary

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewCatalog creates a catalog and runs the initial scan.
func NewCatalog(cfg CatalogConfig) *Catalog {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	distDir := cfg.DistDir
	if err := os.MkdirAll(distDir, 0750); err != nil {
		logger.Warn("dist directory unavailable, using working directory", "dir", distDir, "error", err)
		if wd, werr := os.Getwd(); werr == nil {
			distDir = wd
		}
	}
	c := &Catalog{
		inputDir:  cfg.InputDir,
		indexPath: filepath.Join(distDir, IndexFileName),
		logger:    logger,
		entries:   make(map[string]SourceEntry),
		done:      make(chan struct{}),
	}
	c.Rescan()
	return c
}

// IndexPath returns the location of the persisted config summary index.
func (c *Catalog) IndexPath() string { return c.indexPath }

// Rescan rediscovers source files and rebuilds the persisted index.
func (c *Catalog) Rescan() {
	entries, order := c.discover()
	summaries := c.buildSummaries(entries, order)

	c.mu.Lock()
	c.entries = entries
	c.order = order
	c.summaries = summaries
	c.mu.Unlock()

	c.persistIndex(summaries)
}

// discover lists the input directory and maps base names to entries.
func (c *Catalog) discover() (map[string]SourceEntry, []string) {
	entries := make(map[string]SourceEntry)
	var order []string

	dirEntries, err := os.ReadDir(c.inputDir)
	if err != nil {
		c.logger.Warn("metadata input directory unavailable", "dir", c.inputDir, "error", err)
		return entries, order
	}
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.EqualFold(name, IndexFileName) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		var kind SourceKind
		switch ext {
		case ".json":
			kind = SourceJSON
		case ".txt":
			kind = SourceReport
		default:
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if _, exists := entries[base]; exists {
			c.logger.Debug("duplicate base name ignored", "file", name)
			continue
		}
		entries[base] = SourceEntry{
			Base: base,
			File: name,
			Path: filepath.Join(c.inputDir, name),
			Kind: kind,
		}
		order = append(order, base)
	}
	sort.Strings(order)
	return entries, order
}

// buildSummaries extracts per-config summaries for the index.
//
// JSON sources carry the name, synonym and version at the top level. Report
// sources are too expensive to parse during a scan, so their summaries name
// the file only.
func (c *Catalog) buildSummaries(entries map[string]SourceEntry, order []string) []ConfigSummary {
	summaries := make([]ConfigSummary, 0, len(order))
	for _, base := range order {
		entry := entries[base]
		summary := ConfigSummary{File: base}
		if entry.Kind == SourceJSON {
			doc, err := LoadJSONMetadata(entry.Path)
			if err != nil {
				c.logger.Debug("config summary extraction failed", "file", entry.File, "error", err)
				continue
			}
			summary.Name, _ = doc[PropName].(string)
			summary.Synonym, _ = doc[PropSynonym].(string)
			summary.Version, _ = doc[PropVersion].(string)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// persistIndex writes the summary index. A failed write is logged and the
// in-memory summaries keep serving.
func (c *Catalog) persistIndex(summaries []ConfigSummary) {
	payload, err := json.MarshalIndent(map[string]any{"configs": summaries}, "", "  ")
	if err != nil {
		c.logger.Warn("config index serialization failed", "error", err)
		return
	}
	if err := os.WriteFile(c.indexPath, payload, 0640); err != nil {
		c.logger.Warn("config index write failed", "path", c.indexPath, "error", err)
	}
}

// Summaries returns the config summaries, preferring the persisted index and
// falling back to the in-memory scan results.
func (c *Catalog) Summaries() []ConfigSummary {
	if data, err := os.ReadFile(c.indexPath); err == nil {
		var doc struct {
			Configs []ConfigSummary `json:"configs"`
		}
		if uerr := json.Unmarshal(data, &doc); uerr == nil && doc.Configs != nil {
			return doc.Configs
		} else if uerr != nil {
			c.logger.Debug("config index unreadable", "path", c.indexPath, "error", uerr)
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ConfigSummary(nil), c.summaries...)
}

// Entry returns the source entry for a base name.
func (c *Catalog) Entry(base string) (SourceEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[base]
	return entry, ok
}

// Entries returns all discovered source entries in base-name order.
func (c *Catalog) Entries() []SourceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SourceEntry, 0, len(c.order))
	for _, base := range c.order {
		out = append(out, c.entries[base])
	}
	return out
}

// Resolve maps a config selector to a source entry.
//
// Resolution order for a non-empty selector: exact base name, exact file
// name with extension, exact summary name or synonym, then a unique
// case-insensitive substring match across all four. An empty selector
// resolves only when exactly one source is discovered. Any failure returns a
// diagnostic listing the available configs instead of an entry.
func (c *Catalog) Resolve(selector string) (SourceEntry, *ConfigDiagnostic) {
	c.mu.RLock()
	entries := c.entries
	order := append([]string(nil), c.order...)
	c.mu.RUnlock()

	summaries := c.Summaries()
	summariesByBase := make(map[string]ConfigSummary, len(summaries))
	for _, s := range summaries {
		if s.File != "" {
			summariesByBase[s.File] = s
		}
	}
	available := func() []ConfigSummary {
		out := make([]ConfigSummary, 0, len(order))
		for _, base := range order {
			s := summariesByBase[base]
			out = append(out, ConfigSummary{File: base, Name: s.Name, Synonym: s.Synonym})
		}
		return out
	}

	if selector == "" {
		switch len(order) {
		case 1:
			return entries[order[0]], nil
		case 0:
			return SourceEntry{}, &ConfigDiagnostic{
				Message: "Не найдены конфигурации. Поместите файлы метаданных в каталог " + c.inputDir,
			}
		default:
			return SourceEntry{}, &ConfigDiagnostic{
				Message: "Найдено несколько конфигураций. Укажите параметр 'config' (имя файла без расширения)",
				Configs: available(),
			}
		}
	}

	lower := strings.ToLower(selector)
	for _, base := range order {
		if strings.ToLower(base) == lower {
			return entries[base], nil
		}
	}
	for _, base := range order {
		if strings.ToLower(entries[base].File) == lower {
			return entries[base], nil
		}
	}
	for _, s := range summaries {
		if s.File == "" {
			continue
		}
		if strings.EqualFold(s.Name, selector) || strings.EqualFold(s.Synonym, selector) {
			if entry, ok := entries[s.File]; ok {
				return entry, nil
			}
		}
	}

	var candidates []string
	for _, base := range order {
		s := summariesByBase[base]
		haystacks := []string{base, entries[base].File, s.Name, s.Synonym}
		for _, h := range haystacks {
			if h != "" && strings.Contains(strings.ToLower(h), lower) {
				candidates = append(candidates, base)
				break
			}
		}
	}
	switch len(candidates) {
	case 0:
		return SourceEntry{}, &ConfigDiagnostic{
			Message: fmt.Sprintf("Конфигурация по параметру '%s' не найдена.", selector),
			Configs: available(),
		}
	case 1:
		return entries[candidates[0]], nil
	default:
		return SourceEntry{}, &ConfigDiagnostic{
			Message: fmt.Sprintf("Найдено несколько конфигураций по параметру '%s'. Уточните параметр 'config'", selector),
			Configs: available(),
		}
	}
}

// watchDebounce batches bursty file system events before a rescan.
const watchDebounce = 500 * time.Millisecond

// Watch starts watching the input directory and calls onChange after every
// debounced rescan. Returns immediately; watching stops when the context is
// canceled or Stop is called.
func (c *Catalog) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(c.inputDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", c.inputDir, err)
	}
	c.watcher = watcher

	go func() {
		var timer *time.Timer
		var timerC <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
					continue
				}
				if strings.HasPrefix(filepath.Base(event.Name), ".") {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
					timerC = timer.C
				} else {
					timer.Reset(watchDebounce)
				}
			case <-timerC:
				c.logger.Info("metadata sources changed, rescanning", "dir", c.inputDir)
				c.Rescan()
				if onChange != nil {
					onChange()
				}
				timer = nil
				timerC = nil
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("watcher error", "error", werr)
			}
		}
	}()
	return nil
}

// Stop ends watching. Safe to call multiple times.
func (c *Catalog) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.watcher != nil {
			c.watcher.Close()
		}
	})
}
