// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the transport-level error shape for malformed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SearchResponse is the wire envelope of a search call. Result holds the
// payload matching the status: a result list or object on success, guidance
// text and config choices otherwise.
type SearchResponse struct {
	Status Status `json:"status"`
	Result any    `json:"result"`
}

// Handlers contains the HTTP handlers of the metadata service.
//
// Thread Safety: Handlers is safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers wrapping the search service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleSearch handles POST /v1/metadata/search.
//
// Description:
//
//	Runs one metadata search. The outcome status is mirrored into the
//	envelope: success carries the result payload, ambiguous carries config
//	selection guidance, error carries a failure description. The HTTP status
//	is 200 for every resolved search; only a malformed request body is a
//	4xx.
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleSearch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSearch")

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if req.Query == "" {
		logger.Warn("Empty query")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Query is required",
			Code:  "EMPTY_QUERY",
		})
		return
	}

	outcome := h.svc.Search(c.Request.Context(), req)
	c.JSON(http.StatusOK, NewSearchResponse(outcome))
}

// NewSearchResponse maps a search outcome onto the wire envelope.
func NewSearchResponse(out Outcome) SearchResponse {
	switch out.Status {
	case StatusSuccess:
		result := map[string]any{}
		if out.RawObjects != nil {
			result["objects"] = out.RawObjects
		} else {
			result["objects"] = out.Objects
		}
		if len(out.Usages) > 0 {
			result["usages"] = out.Usages
		}
		if len(out.Warnings) > 0 {
			result["warnings"] = out.Warnings
		}
		return SearchResponse{Status: StatusSuccess, Result: result}
	case StatusAmbiguous:
		diag := ConfigDiagnostic{Message: out.Message, Configs: out.Choices}
		return SearchResponse{Status: StatusAmbiguous, Result: map[string]any{
			"text":    diag.Text(),
			"configs": out.Choices,
		}}
	default:
		return SearchResponse{Status: StatusError, Result: map[string]any{
			"text": out.Message,
		}}
	}
}

// HandleConfigs handles GET /v1/metadata/configs.
func (h *Handlers) HandleConfigs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"configs": h.svc.Configs()})
}

// HandleInvalidateCache handles DELETE /v1/metadata/cache.
//
// Drops every cached tree and memoized document, forcing the next search to
// rebuild from the source files.
func (h *Handlers) HandleInvalidateCache(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	slog.Info("Cache invalidation requested", "request_id", requestID)
	h.svc.InvalidateCaches()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ToolDefinition describes one callable tool for MCP-style clients.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// HandleTools handles GET /v1/metadata/tools.
func (h *Handlers) HandleTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": []ToolDefinition{searchToolDefinition()}})
}

// searchToolDefinition describes the metadata search tool.
func searchToolDefinition() ToolDefinition {
	return ToolDefinition{
		Name: "metadatasearch",
		Description: "Поиск объектов метаданных 1С по строке запроса. " +
			"Для точного поиска указывайте полное имя, например 'Справочники.Номенклатура'. " +
			"С параметром find_usages возвращает объекты, ссылающиеся на найденные.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Строка запроса, например 'Справочники.Номенклатура'.",
				},
				"find_usages": map[string]any{
					"type":        "boolean",
					"description": "Искать объекты, использующие найденные.",
					"default":     false,
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Максимальное число объектов в ответе.",
					"default":     defaultSearchLimit,
				},
				"config": map[string]any{
					"type":        "string",
					"description": "Идентификатор конфигурации: имя файла без расширения, имя файла, Имя или Синоним.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// HandleHealth handles GET /v1/metadata/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady handles GET /v1/metadata/ready.
//
// Ready means at least one metadata source has been discovered.
func (h *Handlers) HandleReady(c *gin.Context) {
	if len(h.svc.Configs()) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": "no metadata sources discovered",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// getOrCreateRequestID returns the X-Request-ID header or generates one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
