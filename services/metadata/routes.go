// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all metadata routes with the router group.
//
// Endpoints:
//
//	POST   /v1/metadata/search  - Search metadata objects
//	GET    /v1/metadata/configs - List available configurations
//	GET    /v1/metadata/tools   - List tool definitions for MCP clients
//	DELETE /v1/metadata/cache   - Invalidate parsed-tree and document caches
//	GET    /v1/metadata/health  - Health check
//	GET    /v1/metadata/ready   - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	md := rg.Group("/metadata")
	{
		md.POST("/search", handlers.HandleSearch)
		md.GET("/configs", handlers.HandleConfigs)
		md.GET("/tools", handlers.HandleTools)
		md.DELETE("/cache", handlers.HandleInvalidateCache)

		md.GET("/health", handlers.HandleHealth)
		md.GET("/ready", handlers.HandleReady)
	}
}
