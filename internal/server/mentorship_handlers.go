package server

import (
	"context"

	"mentorlink/internal/models"
	"mentorlink/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type createMentorshipRequest struct {
	MentorID        uuid.UUID `json:"mentorId"`
	FieldOfInterest string    `json:"fieldOfInterest"`
	Description     string    `json:"description"`
	Goals           string    `json:"goals"`
	PreferredTime   string    `json:"preferredTime"`
}

// CreateMentorshipRequest handles POST /api/mentorship/requests
// @Summary Request mentorship
// @Tags mentorship
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createMentorshipRequest true "Request"
// @Success 201 {object} models.MentorshipRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /mentorship/requests [post]
func (s *Server) CreateMentorshipRequest(c *fiber.Ctx) error {
	var req createMentorshipRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.MentorID == uuid.Nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("mentorId is required"))
	}

	created, err := s.mentorshipService.Create(c.UserContext(), service.CreateRequestInput{
		StudentID:       userID(c),
		MentorID:        req.MentorID,
		FieldOfInterest: req.FieldOfInterest,
		Description:     req.Description,
		Goals:           req.Goals,
		PreferredTime:   req.PreferredTime,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetMentorInbox handles GET /api/mentorship/my-requests
// @Summary Requests addressed to the current mentor
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Success 200 {array} models.MentorshipRequest
// @Router /mentorship/my-requests [get]
func (s *Server) GetMentorInbox(c *fiber.Ctx) error {
	status := models.RequestStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown status filter"))
	}
	requests, err := s.mentorshipService.ListForMentor(c.UserContext(), userID(c), status)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(requests)
}

// GetSentRequests handles GET /api/mentorship/sent
// @Summary Requests sent by the current student
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.MentorshipRequest
// @Router /mentorship/sent [get]
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	requests, err := s.mentorshipService.ListForStudent(c.UserContext(), userID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(requests)
}

// GetMentorshipRequest handles GET /api/mentorship/:id
// @Summary Get a mentorship request
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} models.MentorshipRequest
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /mentorship/{id} [get]
func (s *Server) GetMentorshipRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	admin, err := s.isAdmin(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	req, err := s.mentorshipService.GetForParticipant(c.UserContext(), id, userID(c), admin)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

// UpdateMentorshipStatus handles PUT /api/mentorship/:id/status
// @Summary Move a request to a new status
// @Tags mentorship
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body object{status=string} true "Target status"
// @Success 200 {object} models.MentorshipRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /mentorship/{id}/status [put]
func (s *Server) UpdateMentorshipStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Status models.RequestStatus `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	updated, err := s.mentorshipService.UpdateStatus(c.UserContext(), id, userID(c), req.Status)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(updated)
}

// AcceptMentorshipRequest handles POST /api/mentorship/:id/accept
// @Summary Accept a pending request
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} models.MentorshipRequest
// @Failure 409 {object} models.ErrorResponse "CAPACITY_FULL or INVALID_TRANSITION"
// @Router /mentorship/{id}/accept [post]
func (s *Server) AcceptMentorshipRequest(c *fiber.Ctx) error {
	return s.applyTransition(c, s.mentorshipService.Accept)
}

// DeclineMentorshipRequest handles POST /api/mentorship/:id/decline
// @Summary Decline a pending request
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} models.MentorshipRequest
// @Router /mentorship/{id}/decline [post]
func (s *Server) DeclineMentorshipRequest(c *fiber.Ctx) error {
	return s.applyTransition(c, s.mentorshipService.Decline)
}

// CompleteMentorshipRequest handles POST /api/mentorship/:id/complete
// @Summary Complete an accepted mentorship
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} models.MentorshipRequest
// @Router /mentorship/{id}/complete [post]
func (s *Server) CompleteMentorshipRequest(c *fiber.Ctx) error {
	return s.applyTransition(c, s.mentorshipService.Complete)
}

type transitionFunc func(ctx context.Context, requestID, actorID uuid.UUID) (*models.MentorshipRequest, error)

func (s *Server) applyTransition(c *fiber.Ctx, fn transitionFunc) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := fn(c.UserContext(), id, userID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

// GetMentorCapacity handles GET /api/mentorship/mentor/:id/capacity
// @Summary Mentor capacity
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mentor user ID"
// @Success 200 {object} service.Capacity
// @Failure 404 {object} models.ErrorResponse
// @Router /mentorship/mentor/{id}/capacity [get]
func (s *Server) GetMentorCapacity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	capacity, err := s.mentorshipService.Capacity(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(capacity)
}

// CloseMentorshipChat handles POST /api/mentorship/:id/close-chat
// @Summary Close the chat of a mentorship
// @Description Only the mentor may close. Closing twice keeps the first reason.
// @Tags mentorship
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body object{reason=string} true "Closure reason"
// @Success 200 {object} service.ChatClosure
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /mentorship/{id}/close-chat [post]
func (s *Server) CloseMentorshipChat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	closure, err := s.chatService.CloseChat(c.UserContext(), id, userID(c), req.Reason)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(closure)
}

// CreateMentorshipReview handles POST /api/mentorship/:id/review
// @Summary Review a completed mentorship
// @Tags mentorship
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body object{rating=int,comment=string} true "Review"
// @Success 201 {object} models.MentorshipReview
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "REVIEW_NOT_ALLOWED or DUPLICATE_REVIEW"
// @Router /mentorship/{id}/review [post]
func (s *Server) CreateMentorshipReview(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	review, err := s.reviewService.Create(c.UserContext(), service.CreateReviewInput{
		RequestID:  id,
		ReviewerID: userID(c),
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

// GetMentorReviews handles GET /api/mentorship/mentor/:id/reviews
// @Summary Reviews received by a mentor
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mentor user ID"
// @Success 200 {object} service.MentorReviews
// @Router /mentorship/mentor/{id}/reviews [get]
func (s *Server) GetMentorReviews(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	reviews, err := s.reviewService.ForMentor(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(reviews)
}
