package server

import (
	"strconv"

	"mentorlink/internal/models"
	"mentorlink/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetVerificationRequests handles GET /api/admin/verification-requests
// @Summary List verification requests
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending (default), approved, rejected or all"
// @Success 200 {array} models.VerificationRequest
// @Router /admin/verification-requests [get]
func (s *Server) GetVerificationRequests(c *fiber.Ctx) error {
	status := models.VerificationStatus(c.Query("status", string(models.VerificationStatusPending)))
	if status == "all" {
		status = ""
	}
	page := parsePagination(c, 50)
	requests, err := s.verificationService.List(c.UserContext(), status, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(requests)
}

// ApproveVerificationRequest handles POST /api/admin/verification-requests/:id/approve
// @Summary Approve a verification request
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Verification request ID"
// @Success 200 {object} models.VerificationRequest
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/verification-requests/{id}/approve [post]
func (s *Server) ApproveVerificationRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	v, err := s.verificationService.Approve(c.UserContext(), id, userID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(v)
}

// RejectVerificationRequest handles POST /api/admin/verification-requests/:id/reject
// @Summary Reject a verification request
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Verification request ID"
// @Param request body object{notes=string} false "Review notes"
// @Success 200 {object} models.VerificationRequest
// @Router /admin/verification-requests/{id}/reject [post]
func (s *Server) RejectVerificationRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	v, err := s.verificationService.Reject(c.UserContext(), id, userID(c), req.Notes)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(v)
}

// UnverifyUser handles POST /api/admin/users/:userId/unverify
// @Summary Revoke a user's verification
// @Tags admin
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 204
// @Router /admin/users/{userId}/unverify [post]
func (s *Server) UnverifyUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.verificationService.Unverify(c.UserContext(), id, userID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetAdminUsers handles GET /api/admin/users
// @Summary List users with their verification state
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "student, alumni or admin"
// @Param verified query bool false "Verification state"
// @Success 200 {object} object{users=[]models.User,total=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/users [get]
func (s *Server) GetAdminUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	filter := repository.UserFilter{
		Role:   models.UserRole(c.Query("role")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if raw := c.Query("verified"); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("verified must be true or false"))
		}
		filter.Verified = &verified
	}

	users, total, err := s.verificationService.ListUsers(c.UserContext(), filter)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"users": users,
		"total": total,
	})
}

// GetAdminMentorshipRequests handles GET /api/admin/mentorship-requests
// @Summary List all mentorship requests
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param mentorId query string false "Mentor user ID"
// @Param studentId query string false "Student user ID"
// @Success 200 {object} object{requests=[]models.MentorshipRequest,total=int}
// @Router /admin/mentorship-requests [get]
func (s *Server) GetAdminMentorshipRequests(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	filter := repository.MentorshipFilter{
		Status: models.RequestStatus(c.Query("status")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown status filter"))
	}
	for param, dst := range map[string]*uuid.UUID{"mentorId": &filter.MentorID, "studentId": &filter.StudentID} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid "+humanizeParam(param)))
		}
		*dst = id
	}

	requests, total, err := s.mentorshipService.ListAll(c.UserContext(), filter)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests": requests,
		"total":    total,
	})
}

// RunDuplicateCleanup handles POST /api/admin/mentorship/cleanup
// @Summary Decline duplicate active requests
// @Description Keeps one active request per student/mentor pair and declines the rest.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param dry query bool false "Report without writing"
// @Success 200 {object} service.DedupReport
// @Router /admin/mentorship/cleanup [post]
func (s *Server) RunDuplicateCleanup(c *fiber.Ctx) error {
	report, err := s.cleanupService.DeclineDuplicates(c.UserContext(), c.QueryBool("dry", false))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(report)
}

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID(c)),
	})
}
