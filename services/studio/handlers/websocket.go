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
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/observability"
	"github.com/AleutianAI/AleutianStudio/services/studio/realtime"
	"github.com/AleutianAI/AleutianStudio/services/studio/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// Gateway attaches websocket clients to apps.
//
// All checks run before the upgrade: a request missing its app, failing
// authentication, or failing authorization gets a plain HTTP error and
// never becomes a websocket. After the upgrade the connection's whole
// life is the read loop; every inbound frame goes through the pipeline.
type Gateway struct {
	pipeline *realtime.Pipeline
	opts     extensions.ServiceOptions
}

// NewGateway wires a gateway over the event pipeline. Nil extension
// points fall back to the open source no-op defaults.
func NewGateway(pipeline *realtime.Pipeline, opts extensions.ServiceOptions) *Gateway {
	if opts.AuthProvider == nil {
		opts.AuthProvider = &extensions.NopAuthProvider{}
	}
	if opts.AuthzProvider == nil {
		opts.AuthzProvider = &extensions.NopAuthzProvider{}
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = &extensions.NopAuditLogger{}
	}
	return &Gateway{pipeline: pipeline, opts: opts}
}

// Handle upgrades one connection and runs its read loop until the peer
// disconnects.
func (g *Gateway) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		// Handshake rejections close the attempt with a bare status; the
		// peer never gets a websocket, so there is no payload to carry.
		appID := c.Query("appId")
		if appID == "" {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		info, err := g.opts.AuthProvider.Validate(ctx, bearerToken(c))
		if err != nil {
			slog.Warn("websocket handshake authentication failed", "app_id", appID, "error", err)
			_ = g.opts.AuditLogger.Log(ctx, extensions.AuditEvent{
				EventType: "auth.failed",
				UserID:    "anonymous",
				AppID:     appID,
				Outcome:   "failure",
			})
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		err = g.opts.AuthzProvider.Authorize(ctx, extensions.AuthzRequest{
			User:   info,
			Action: "edit",
			AppID:  appID,
		})
		if err != nil {
			g.rejectAuthz(c, appID, info.UserID, err)
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}

		user := datatypes.User{ID: info.UserID, Name: displayName(info)}
		session := realtime.NewSession(appID, user, ws)
		g.runSession(session, ws)
	}
}

// rejectAuthz maps authorization failures onto HTTP statuses: a missing
// app is 404, a denial is 403, anything else is a 500.
func (g *Gateway) rejectAuthz(c *gin.Context, appID, userID string, err error) {
	_ = g.opts.AuditLogger.Log(c.Request.Context(), extensions.AuditEvent{
		EventType: "authz.denied",
		UserID:    userID,
		AppID:     appID,
		Outcome:   "blocked",
		Metadata:  map[string]any{"error": err.Error()},
	})
	switch {
	case errors.Is(err, store.ErrAppNotFound):
		c.AbortWithStatus(http.StatusNotFound)
	case errors.Is(err, extensions.ErrUnauthorized):
		slog.Warn("websocket handshake rejected", "app_id", appID, "user_id", userID)
		c.AbortWithStatus(http.StatusForbidden)
	default:
		slog.Error("authorization check failed", "app_id", appID, "user_id", userID, "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

// runSession owns the connection from registration to cleanup.
func (g *Gateway) runSession(session *realtime.Session, ws *websocket.Conn) {
	log := slog.With(
		"session_id", session.ID,
		"app_id", session.AppID,
		"user_id", session.User.ID,
	)

	g.pipeline.Registry().Add(session)
	if m := observability.DefaultMetrics; m != nil {
		m.SessionOpened()
	}
	log.Info("websocket client connected",
		"peers", g.pipeline.Registry().Count(session.AppID))

	g.pipeline.Broadcast(session.AppID, datatypes.OutboundMessage{
		Type:    datatypes.MessageTypeInfo,
		Message: fmt.Sprintf("%s joined", session.User.Name),
		User:    session.User.View(),
	}, nil)

	defer g.cleanupSession(session, log)

	for {
		// ReadJSON fails for transport errors and for frames that are
		// not valid JSON; both end the connection. Only frames that decode
		// but fail validation get an error notification instead.
		var msg datatypes.InboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			log.Info("websocket client disconnected", "reason", err.Error())
			return
		}

		if !session.AllowInbound() {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordEvent(msg.Type, observability.OutcomeRejected)
			}
			_ = session.Send(datatypes.OutboundMessage{
				Type:    datatypes.MessageTypeError,
				Message: "rate limit exceeded",
				User:    session.User.View(),
			})
			continue
		}

		if err := msg.Validate(); err != nil {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordEvent(msg.Type, observability.OutcomeRejected)
			}
			_ = session.Send(datatypes.OutboundMessage{
				Type:    datatypes.MessageTypeError,
				Message: "invalid message: " + err.Error(),
				User:    session.User.View(),
			})
			continue
		}

		err := g.pipeline.Publish(realtime.Event{
			Msg:     msg,
			Session: session,
			User:    session.User,
			AppID:   session.AppID,
		})
		if errors.Is(err, realtime.ErrPipelineClosed) {
			log.Info("pipeline closed, dropping connection")
			return
		}
	}
}

// cleanupSession tears one connection down exactly once: release the
// turn if held, deregister, then tell the remaining peers.
func (g *Gateway) cleanupSession(session *realtime.Session, log *slog.Logger) {
	if g.pipeline.TurnLock().Release(session.AppID, session.User.ID) {
		g.pipeline.Broadcast(session.AppID, datatypes.OutboundMessage{
			Type:    datatypes.MessageTypeExited,
			Message: fmt.Sprintf("%s disconnected while holding the turn", session.User.Name),
			User:    session.User.View(),
		}, nil)
	}

	g.pipeline.Registry().Remove(session)
	session.Close()
	if m := observability.DefaultMetrics; m != nil {
		m.SessionClosed()
	}

	g.pipeline.Broadcast(session.AppID, datatypes.OutboundMessage{
		Type:    datatypes.MessageTypeInfo,
		Message: fmt.Sprintf("%s left", session.User.Name),
		User:    session.User.View(),
	}, nil)
	log.Info("websocket session cleaned up",
		"peers", g.pipeline.Registry().Count(session.AppID))
}

// bearerToken pulls the credential from the Authorization header, or
// from the token query parameter since browser websocket clients cannot
// set headers.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

func displayName(info *extensions.AuthInfo) string {
	if info.Name != "" {
		return info.Name
	}
	return info.UserID
}
