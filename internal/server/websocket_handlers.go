package server

import (
	"context"

	"mentorlink/internal/featureflags"
	"mentorlink/internal/middleware"
	"mentorlink/internal/models"
	"mentorlink/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ChatStreamUpgrade gates the chat stream: the flag must be on for the user,
// the request must be a WebSocket upgrade and the user must be a participant.
func (s *Server) ChatStreamUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := userID(c)
		if !s.featureFlags.Enabled(featureflags.ChatStream, uid) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Route", c.Path()))
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Status(fiber.StatusUpgradeRequired).JSON(models.ErrorResponse{
				Error: "WebSocket upgrade required",
			})
		}

		requestID, err := s.parseID(c, "requestId")
		if err != nil {
			return nil
		}
		if _, err := s.chatService.Authorize(c.UserContext(), requestID, uid); err != nil {
			return models.RespondWithAppError(c, err)
		}

		c.Locals("requestID", requestID)
		return c.Next()
	}
}

// WebSocketChatHandler pushes every message and closure event of one mentorship
// chat to the connected participant. Sending still goes through POST /api/chat/send.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.ChatStreamConnections.Inc()
		defer observability.ChatStreamConnections.Dec()

		requestID, _ := conn.Locals("requestID").(uuid.UUID)
		uid, _ := conn.Locals("userID").(uuid.UUID)

		parent := s.shutdownCtx
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithCancel(middleware.WithUserID(parent, uid))
		defer cancel()

		done, err := s.notifier.SubscribeChat(ctx, requestID, func(payload string) {
			if werr := conn.WriteMessage(websocket.TextMessage, []byte(payload)); werr != nil {
				cancel()
			}
		})
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "chat stream subscribe failed",
				"request_id", requestID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"stream unavailable"}`))
			_ = conn.Close()
			return
		}

		middleware.Logger.InfoContext(ctx, "chat stream connected", "request_id", requestID)

		// Inbound frames are ignored; the read loop only detects disconnects.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		select {
		case <-ctx.Done():
		case <-done:
		}
		cancel()
		<-done
		_ = conn.Close()
		middleware.Logger.InfoContext(ctx, "chat stream disconnected", "request_id", requestID)
	})
}
