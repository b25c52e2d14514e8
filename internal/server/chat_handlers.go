package server

import (
	"mentorlink/internal/models"
	"mentorlink/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetChatMessages handles GET /api/chat/:requestId/messages
// @Summary Mentorship chat thread
// @Description Returns the messages with the chat state and marks the other participant's messages read.
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Mentorship request ID"
// @Success 200 {object} service.ChatThread
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/{requestId}/messages [get]
func (s *Server) GetChatMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}
	thread, err := s.chatService.Messages(c.UserContext(), id, userID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(thread)
}

type sendChatRequest struct {
	MentorshipRequestID uuid.UUID `json:"mentorshipRequestId"`
	Text                string    `json:"text"`
}

// SendChatMessage handles POST /api/chat/send
// @Summary Send a chat message
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body sendChatRequest true "Message"
// @Success 200 {object} object{message=models.Message}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "CHAT_NOT_ACCEPTED or CHAT_CLOSED"
// @Router /chat/send [post]
func (s *Server) SendChatMessage(c *fiber.Ctx) error {
	var req sendChatRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.MentorshipRequestID == uuid.Nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("mentorshipRequestId is required"))
	}

	msg, err := s.chatService.Send(c.UserContext(), service.SendMessageInput{
		SenderID:  userID(c),
		RequestID: req.MentorshipRequestID,
		Text:      req.Text,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}
