// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smirnov0ser/mcp1c-metadata/services/metadata/observability"
)

// defaultSearchLimit bounds a search when the request does not set one.
const defaultSearchLimit = 5

// SearchRequest is one metadata search call.
type SearchRequest struct {
	// Query is the search string. Full names like "Справочники.Номенклатура"
	// give the most precise results.
	Query string `json:"query" binding:"required"`

	// FindUsages switches to reverse-usage resolution.
	FindUsages bool `json:"find_usages"`

	// Limit caps the number of matched objects. Values below 1 fall back to
	// the default.
	Limit int `json:"limit"`

	// Config selects the configuration when several are available: base file
	// name, file name with extension, configuration name or synonym.
	Config string `json:"config"`
}

// ServiceConfig configures the metadata search service.
type ServiceConfig struct {
	// Catalog provides source discovery and config resolution. Required.
	Catalog *Catalog

	// Cache persists parsed report trees. Optional; nil rebuilds trees on
	// every request.
	Cache *TreeCache

	// Logger receives service diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics is the optional metric bundle.
	Metrics *observability.Metrics

	// DefaultLimit overrides the built-in default result cap.
	DefaultLimit int
}

// Service answers metadata search queries over the discovered sources.
//
// # Description
//
// Search is the single logical operation: it resolves the target
// configuration, loads or builds its in-memory representation, and runs
// either the fuzzy finder or the usage resolver depending on the request.
// Text reports are parsed into typed trees and cached; JSON exports are kept
// as parsed documents and searched generically.
//
// # Thread Safety
//
// Safe for concurrent use. Parsed JSON documents are memoized under a
// mutex; trees are immutable once built.
type Service struct {
	catalog      *Catalog
	cache        *TreeCache
	norm         *Normalizer
	logger       *slog.Logger
	metrics      *observability.Metrics
	defaultLimit int

	mu       sync.Mutex
	jsonDocs map[string]map[string]any
}

// NewService creates the search service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("metadata: catalog is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.DefaultLimit
	if limit < 1 {
		limit = defaultSearchLimit
	}
	return &Service{
		catalog:      cfg.Catalog,
		cache:        cfg.Cache,
		norm:         NewNormalizer(),
		logger:       logger,
		metrics:      cfg.Metrics,
		defaultLimit: limit,
		jsonDocs:     make(map[string]map[string]any),
	}, nil
}

// Configs lists the available configuration summaries.
func (s *Service) Configs() []ConfigSummary {
	return s.catalog.Summaries()
}

// InvalidateCaches drops every memoized document and cached tree. Called
// when the source directory changes.
func (s *Service) InvalidateCaches() {
	s.mu.Lock()
	s.jsonDocs = make(map[string]map[string]any)
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.Drop(); err != nil && !errors.Is(err, ErrCacheClosed) {
			s.logger.Warn("tree cache drop failed", "error", err)
		}
	}
	s.logger.Info("metadata caches invalidated")
}

// Search runs one metadata query and always returns a terminal outcome.
//
// The boundary never panics and never returns a Go error: any internal
// failure is converted into an error-status outcome so the transport layer
// has exactly one shape to render.
func (s *Service) Search(ctx context.Context, req SearchRequest) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search panic recovered", "query", req.Query, "panic", r)
			out = FailureOutcome(fmt.Sprintf("внутренняя ошибка поиска: %v", r))
		}
		if s.metrics != nil {
			s.metrics.SearchesTotal.WithLabelValues(string(out.Status)).Inc()
			s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		return FailureOutcome(err.Error())
	}
	limit := req.Limit
	if limit < 1 {
		limit = s.defaultLimit
	}

	entry, diag := s.catalog.Resolve(req.Config)
	if diag != nil {
		return AmbiguousOutcome(diag.Message, diag.Configs)
	}

	s.logger.Debug("search",
		"query", req.Query,
		"config", entry.Base,
		"kind", entry.Kind,
		"find_usages", req.FindUsages,
		"limit", limit)

	switch entry.Kind {
	case SourceReport:
		return s.searchReport(entry, req.Query, req.FindUsages, limit)
	case SourceJSON:
		return s.searchJSON(entry, req.Query, req.FindUsages, limit)
	default:
		return FailureOutcome(fmt.Sprintf("%v: %s", ErrUnknownSourceKind, entry.File))
	}
}

// searchReport answers a query over a parsed text report tree.
func (s *Service) searchReport(entry SourceEntry, query string, findUsages bool, limit int) Outcome {
	tree, warnings, err := s.loadTree(entry)
	if err != nil {
		return FailureOutcome(err.Error())
	}
	if tree.Empty() {
		out := SuccessOutcome(nil)
		out.Warnings = warnings
		return out
	}

	if findUsages {
		result := ResolveUsages(tree, s.norm, s.norm.Normalize(query), limit)
		out := SuccessOutcome(result.Objects)
		out.Usages = result.Usages
		out.Warnings = warnings
		return out
	}

	matches := FindObjects(tree, s.norm.Normalize(query), limit)
	objects := make([]*ResultObject, 0, len(matches))
	for _, idx := range matches {
		objects = append(objects, CleanNode(tree, idx))
	}
	out := SuccessOutcome(objects)
	out.Warnings = warnings
	return out
}

// loadTree returns the tree for a report source, via the cache when present.
func (s *Service) loadTree(entry SourceEntry) (*Tree, []ParseWarning, error) {
	build := func() (*Tree, []ParseWarning) {
		start := time.Now()
		lines := ReadReportLines(entry.Path)
		tree, warnings := ParseReport(lines, s.norm)
		if s.metrics != nil {
			s.metrics.ParseDuration.Observe(time.Since(start).Seconds())
			s.metrics.ParseWarnings.Add(float64(len(warnings)))
		}
		s.logger.Debug("report parsed",
			"file", entry.File,
			"nodes", tree.Len(),
			"warnings", len(warnings),
			"elapsed", time.Since(start))
		return tree, warnings
	}
	if s.cache == nil {
		tree, warnings := build()
		return tree, warnings, nil
	}
	tree, warnings, err := s.cache.LoadOrBuild(entry.Path, build)
	if errors.Is(err, ErrCorruptCache) {
		s.logger.Warn("corrupt cached tree, rebuilding", "file", entry.File, "error", err)
		if ierr := s.cache.Invalidate(entry.Path); ierr != nil {
			return nil, nil, ierr
		}
		return s.cache.LoadOrBuild(entry.Path, build)
	}
	return tree, warnings, err
}

// searchJSON answers a query over a prepared JSON export.
func (s *Service) searchJSON(entry SourceEntry, query string, findUsages bool, limit int) Outcome {
	doc, err := s.loadJSONDoc(entry)
	if err != nil {
		return FailureOutcome(err.Error())
	}

	normalized := s.norm.Normalize(query)
	matches := SearchJSON(doc, normalized, limit)
	out := Outcome{Status: StatusSuccess, RawObjects: matches}
	if !findUsages {
		return out
	}

	targets := make(map[string]bool, len(matches))
	for _, obj := range matches {
		fullName, _ := obj[PropFullName].(string)
		np := s.norm.Normalize(fullName)
		if strings.Contains(np, ".") {
			targets[np] = true
		}
	}
	out.Usages = FindJSONReferences(doc, s.norm, targets)
	return out
}

// loadJSONDoc memoizes parsed JSON documents per base name.
func (s *Service) loadJSONDoc(entry SourceEntry) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.jsonDocs[entry.Base]; ok {
		return doc, nil
	}
	doc, err := LoadJSONMetadata(entry.Path)
	if err != nil {
		return nil, err
	}
	s.jsonDocs[entry.Base] = doc
	return doc, nil
}
