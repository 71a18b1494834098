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

// CreateUser registers a user and returns the record including the
// freshly generated bearer token. The token is only ever shown here.
func CreateUser(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := s.CreateUser(c.Request.Context(), store.User{
			Name:  req.Name,
			Email: req.Email,
		})
		if err != nil {
			slog.Error("failed to create user", "name", req.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// GetUser returns one user without the bearer token.
func GetUser(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.GetUser(c.Request.Context(), c.Param("userId"))
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load user", "user_id", c.Param("userId"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			return
		}
		user.Token = ""
		c.JSON(http.StatusOK, user)
	}
}

// DeleteUser removes a user and revokes its token.
func DeleteUser(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.DeleteUser(c.Request.Context(), c.Param("userId"))
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			slog.Error("failed to delete user", "user_id", c.Param("userId"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
