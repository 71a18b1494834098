// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianStudio/services/studio/handlers"
	"github.com/AleutianAI/AleutianStudio/services/studio/store"
)

// SetupRoutes registers the studio's HTTP surface: health, metrics, app
// administration, and the collaborative websocket endpoint.
func SetupRoutes(router *gin.Engine, s *store.Store, gateway *handlers.Gateway) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/studio/ws", gateway.Handle())

		apps := v1.Group("/apps")
		{
			apps.POST("", handlers.CreateApp(s))
			apps.GET("", handlers.ListApps(s))
			apps.GET("/:appId", handlers.GetApp(s))
			apps.DELETE("/:appId", handlers.DeleteApp(s))
			apps.GET("/:appId/members", handlers.ListMembers(s))
			apps.POST("/:appId/members", handlers.AddMember(s))
			apps.DELETE("/:appId/members/:userId", handlers.RemoveMember(s))
		}

		users := v1.Group("/users")
		{
			users.POST("", handlers.CreateUser(s))
			users.GET("/:userId", handlers.GetUser(s))
			users.DELETE("/:userId", handlers.DeleteUser(s))
		}
	}
}
