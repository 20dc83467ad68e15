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
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/flowcoach/services/orchestrator/coach"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
)

// maxFrameBytes bounds one inbound chat frame.
const maxFrameBytes = 1 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleChatWebSocket serves GET /api/chat/ws.
//
// Each inbound text frame is a ChatRequest and gets exactly one
// NormalizedResponse frame back, in order. A frame that fails to decode
// or validate gets an ErrorResponse frame and the socket stays open.
// Every frame carries its own request id.
func HandleChatWebSocket(svc Coach, metrics *observability.CoachMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			metrics.RecordError(c.FullPath(), observability.ErrorCodeSocket)
			return
		}
		defer ws.Close()
		ws.SetReadLimit(maxFrameBytes)

		metrics.SocketOpened()
		defer metrics.SocketClosed()
		slog.Info("chat socket opened", "remote", c.ClientIP())

		for {
			kind, frame, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("chat socket read failed", "error", err)
					metrics.RecordError(c.FullPath(), observability.ErrorCodeSocket)
				}
				return
			}
			if kind != websocket.TextMessage {
				continue
			}

			var req datatypes.ChatRequest
			if err := json.Unmarshal(frame, &req); err != nil {
				metrics.RecordError(c.FullPath(), observability.ErrorCodeValidation)
				if sendJSON(ws, datatypes.ErrorResponse{Error: "invalid frame: " + err.Error()}) != nil {
					return
				}
				continue
			}
			if err := req.Validate(); err != nil {
				metrics.RecordError(c.FullPath(), observability.ErrorCodeValidation)
				if sendJSON(ws, datatypes.ErrorResponse{Error: "invalid request: " + err.Error()}) != nil {
					return
				}
				continue
			}

			resp := svc.Respond(c.Request.Context(), coach.RequestFromChat(req))
			resp.RequestID = uuid.NewString()
			if sendJSON(ws, resp) != nil {
				return
			}
		}
	}
}
