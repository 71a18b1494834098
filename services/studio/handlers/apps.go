// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/store"
)

// CreateApp registers a new app and makes the creator its owner.
func CreateApp(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateAppRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		app, err := s.CreateApp(c.Request.Context(), store.App{
			Name:    req.Name,
			OwnerID: req.OwnerID,
		})
		if err != nil {
			slog.Error("failed to create app", "name", req.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create app"})
			return
		}
		c.JSON(http.StatusCreated, app)
	}
}

// GetApp returns one app with its persisted code content.
func GetApp(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		app, err := s.GetApp(c.Request.Context(), c.Param("appId"))
		if errors.Is(err, store.ErrAppNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load app", "app_id", c.Param("appId"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load app"})
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

// ListApps returns every app.
func ListApps(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := s.ListApps(c.Request.Context())
		if err != nil {
			slog.Error("failed to list apps", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list apps"})
			return
		}
		if apps == nil {
			apps = []store.App{}
		}
		c.JSON(http.StatusOK, gin.H{"apps": apps})
	}
}

// DeleteApp removes an app and its membership records.
func DeleteApp(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.DeleteApp(c.Request.Context(), c.Param("appId"))
		if errors.Is(err, store.ErrAppNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
			return
		}
		if err != nil {
			slog.Error("failed to delete app", "app_id", c.Param("appId"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete app"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// AddMember grants a user access to an app.
func AddMember(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AddMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := s.AddMember(c.Request.Context(), c.Param("appId"), req.UserID, req.Role)
		if errors.Is(err, store.ErrAppNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
			return
		}
		if err != nil {
			slog.Error("failed to add member", "app_id", c.Param("appId"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add member"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// RemoveMember revokes a user's access to an app.
func RemoveMember(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.RemoveMember(c.Request.Context(), c.Param("appId"), c.Param("userId")); err != nil {
			slog.Error("failed to remove member", "app_id", c.Param("appId"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove member"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ListMembers returns the members of an app.
func ListMembers(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := s.ListMembers(c.Request.Context(), c.Param("appId"))
		if err != nil {
			slog.Error("failed to list members", "app_id", c.Param("appId"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
			return
		}
		if members == nil {
			members = []store.Member{}
		}
		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
