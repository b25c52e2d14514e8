package server

import (
	"strings"

	"mentorlink/internal/models"
	"mentorlink/internal/repository"
	"mentorlink/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAlumniDirectory handles GET /api/alumni/directory
// @Summary Browse verified alumni
// @Tags alumni
// @Produce json
// @Param search query string false "Matches name, company or position"
// @Param industry query string false "Industry"
// @Param available query bool false "Only mentors accepting requests"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{alumni=[]models.AlumniProfile,total=int}
// @Router /alumni/directory [get]
func (s *Server) GetAlumniDirectory(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	alumni, total, err := s.profileService.Directory(c.UserContext(), repository.DirectoryFilter{
		Search:        strings.TrimSpace(c.Query("search")),
		Industry:      strings.TrimSpace(c.Query("industry")),
		AvailableOnly: c.QueryBool("available", false),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"alumni": alumni,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// GetPublicAlumniProfile handles GET /api/alumni/profile/:userId
// @Summary Public alumni profile
// @Tags alumni
// @Produce json
// @Param userId path string true "Alumni user ID"
// @Success 200 {object} models.AlumniProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /alumni/profile/{userId} [get]
func (s *Server) GetPublicAlumniProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	profile, err := s.profileService.PublicAlumni(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// GetMyAlumniProfile handles GET /api/alumni/profile
// @Summary Own alumni profile
// @Tags alumni
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.AlumniProfile
// @Router /alumni/profile [get]
func (s *Server) GetMyAlumniProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.Alumni(c.UserContext(), userID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyAlumniProfile handles PUT /api/alumni/profile
// @Summary Create or update own alumni profile
// @Tags alumni
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.AlumniProfileInput true "Profile"
// @Success 200 {object} models.AlumniProfile
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /alumni/profile [put]
func (s *Server) UpdateMyAlumniProfile(c *fiber.Ctx) error {
	var in service.AlumniProfileInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	profile, err := s.profileService.SaveAlumni(c.UserContext(), userID(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// GetMyStudentProfile handles GET /api/student/profile
// @Summary Own student profile
// @Tags student
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.StudentProfile
// @Router /student/profile [get]
func (s *Server) GetMyStudentProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.Student(c.UserContext(), userID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyStudentProfile handles PUT /api/student/profile
// @Summary Create or update own student profile
// @Tags student
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.StudentProfileInput true "Profile"
// @Success 200 {object} models.StudentProfile
// @Router /student/profile [put]
func (s *Server) UpdateMyStudentProfile(c *fiber.Ctx) error {
	var in service.StudentProfileInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	profile, err := s.profileService.SaveStudent(c.UserContext(), userID(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}
