// Package service provides application business logic (mentorship lifecycle, chat, reviews, etc.).
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mentorlink/internal/cache"
	"mentorlink/internal/config"
	"mentorlink/internal/featureflags"
	"mentorlink/internal/middleware"
	"mentorlink/internal/models"
	"mentorlink/internal/notifications"
	"mentorlink/internal/observability"
	"mentorlink/internal/repository"
	"mentorlink/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// MentorshipService implements the mentorship request state machine and the
// per-mentor capacity policy.
type MentorshipService struct {
	repo     repository.MentorshipRepository
	userRepo repository.UserRepository
	capacity *cache.CapacityCache
	notifier *notifications.Notifier
	flags    *featureflags.Manager
	limit    int
	now      func() time.Time
}

// CreateRequestInput is the input for creating a mentorship request.
type CreateRequestInput struct {
	StudentID       uuid.UUID
	MentorID        uuid.UUID
	FieldOfInterest string
	Description     string
	Goals           string
	PreferredTime   string
}

// Capacity is a mentor's current accepted load against the limit.
type Capacity struct {
	Accepted int  `json:"accepted"`
	Limit    int  `json:"limit"`
	Full     bool `json:"full"`
}

// NewMentorshipService returns a new MentorshipService. A limit <= 0 uses the
// default mentor capacity. capacity, notifier and flags may be nil.
func NewMentorshipService(
	repo repository.MentorshipRepository,
	userRepo repository.UserRepository,
	capacity *cache.CapacityCache,
	notifier *notifications.Notifier,
	flags *featureflags.Manager,
	limit int,
) *MentorshipService {
	if limit <= 0 {
		limit = config.DefaultMentorCapacity
	}
	return &MentorshipService{
		repo:     repo,
		userRepo: userRepo,
		capacity: capacity,
		notifier: notifier,
		flags:    flags,
		limit:    limit,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Limit returns the configured per-mentor accepted cap.
func (s *MentorshipService) Limit() int {
	return s.limit
}

// Create records a new pending request from a student to a mentor. Duplicate
// active requests for the same pair are allowed unless strict_request_dedupe is
// enabled for the student.
func (s *MentorshipService) Create(ctx context.Context, in CreateRequestInput) (req *models.MentorshipRequest, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "MentorshipService", "Create",
		attribute.String("mentor.id", in.MentorID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if in.StudentID == in.MentorID {
		return nil, models.NewValidationError("You cannot request mentorship from yourself")
	}
	if err := validation.ValidateRequestText(in.FieldOfInterest, in.Description, in.Goals); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	student, err := s.userRepo.GetByID(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	if student.Role != models.RoleStudent {
		return nil, models.NewForbiddenError("Only students can request mentorship")
	}
	mentor, err := s.userRepo.GetByID(ctx, in.MentorID)
	if err != nil {
		return nil, err
	}
	if mentor.Role != models.RoleAlumni {
		return nil, models.NewValidationError("Selected user is not a mentor")
	}

	if s.flags != nil && s.flags.Enabled(featureflags.StrictRequestDedupe, in.StudentID) {
		existing, err := s.repo.FindActiveForPair(ctx, in.StudentID, in.MentorID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, models.NewConflictError(models.CodeActiveRequestExists,
				"You already have an active request with this mentor")
		}
	}

	now := s.now()
	req = &models.MentorshipRequest{
		StudentID:       in.StudentID,
		MentorID:        in.MentorID,
		FieldOfInterest: strings.TrimSpace(in.FieldOfInterest),
		Description:     strings.TrimSpace(in.Description),
		Goals:           strings.TrimSpace(in.Goals),
		PreferredTime:   strings.TrimSpace(in.PreferredTime),
		Status:          models.RequestStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Event{
		Type: notifications.EventRequestCreated, RequestID: req.ID, ActorID: in.StudentID,
		Payload: map[string]string{"field_of_interest": req.FieldOfInterest},
	}, in.MentorID)

	return req, nil
}

// GetForParticipant loads a request visible to userID. Admins see every request.
func (s *MentorshipService) GetForParticipant(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*models.MentorshipRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !req.IsParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant of this mentorship")
	}
	return req, nil
}

// ListForMentor returns a mentor's inbox, optionally filtered by status.
func (s *MentorshipService) ListForMentor(ctx context.Context, mentorID uuid.UUID, status models.RequestStatus) ([]models.MentorshipRequest, error) {
	if status != "" && !status.Valid() {
		return nil, models.NewValidationError("Invalid status filter")
	}
	return s.repo.ListForMentor(ctx, mentorID, status)
}

// ListForStudent returns the requests a student has sent.
func (s *MentorshipService) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.MentorshipRequest, error) {
	return s.repo.ListForStudent(ctx, studentID)
}

// ListAll returns a page of requests for administrators.
func (s *MentorshipService) ListAll(ctx context.Context, f repository.MentorshipFilter) ([]models.MentorshipRequest, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, models.NewValidationError("Invalid status filter")
	}
	return s.repo.List(ctx, f)
}

// Accept moves a pending request to accepted. The mentor row is locked and the
// accepted count re-read inside the transaction that writes the status, so two
// concurrent accepts can never push a mentor past the limit.
func (s *MentorshipService) Accept(ctx context.Context, requestID, actorID uuid.UUID) (req *models.MentorshipRequest, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "MentorshipService", "Accept",
		attribute.String("request.id", requestID.String()))
	defer func() { observability.EndSpan(span, err) }()

	err = s.repo.Transaction(ctx, func(tx repository.MentorshipRepository) error {
		current, err := tx.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if current.MentorID != actorID {
			return models.NewForbiddenError("Only the mentor can accept this request")
		}
		if err := models.CheckTransition(current.Status, models.RequestStatusAccepted, models.ActorMentor); err != nil {
			return err
		}

		if err := tx.LockMentor(ctx, current.MentorID); err != nil {
			return err
		}
		accepted, err := tx.CountAccepted(ctx, current.MentorID)
		if err != nil {
			return err
		}
		if int(accepted) >= s.limit {
			observability.CapacityRejections.Inc()
			return models.NewConflictError(models.CodeCapacityFull, "Mentor has reached the maximum number of active mentees")
		}

		changed, err := tx.UpdateStatus(ctx, requestID,
			[]models.RequestStatus{models.RequestStatusPending}, models.RequestStatusAccepted, s.now())
		if err != nil {
			return err
		}
		if !changed {
			return models.NewConflictError(models.CodeInvalidTransition, "Request is no longer pending")
		}

		req, err = tx.GetByID(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, req, actorID, models.ActorMentor, notifications.EventRequestAccepted)
	return req, nil
}

// Decline moves a pending request to declined. Only the mentor may decline.
func (s *MentorshipService) Decline(ctx context.Context, requestID, actorID uuid.UUID) (*models.MentorshipRequest, error) {
	return s.transition(ctx, requestID, actorID, models.RequestStatusDeclined, notifications.EventRequestDeclined)
}

// Complete moves an accepted request to completed. Either participant may complete.
func (s *MentorshipService) Complete(ctx context.Context, requestID, actorID uuid.UUID) (*models.MentorshipRequest, error) {
	return s.transition(ctx, requestID, actorID, models.RequestStatusCompleted, notifications.EventRequestCompleted)
}

// UpdateStatus dispatches a generic status change to the guarded operation for
// the target status.
func (s *MentorshipService) UpdateStatus(ctx context.Context, requestID, actorID uuid.UUID, to models.RequestStatus) (*models.MentorshipRequest, error) {
	switch to {
	case models.RequestStatusAccepted:
		return s.Accept(ctx, requestID, actorID)
	case models.RequestStatusDeclined:
		return s.Decline(ctx, requestID, actorID)
	case models.RequestStatusCompleted:
		return s.Complete(ctx, requestID, actorID)
	case models.RequestStatusPending:
		return nil, models.NewConflictError(models.CodeInvalidTransition, "A request cannot be moved back to pending")
	default:
		return nil, models.NewValidationError("Invalid status")
	}
}

func (s *MentorshipService) transition(
	ctx context.Context, requestID, actorID uuid.UUID, to models.RequestStatus, event string,
) (req *models.MentorshipRequest, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "MentorshipService", "Transition",
		attribute.String("request.id", requestID.String()),
		attribute.String("request.to", string(to)))
	defer func() { observability.EndSpan(span, err) }()

	current, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var actor models.TransitionActor
	switch current.RoleOf(actorID) {
	case models.ParticipantMentor:
		actor = models.ActorMentor
	case models.ParticipantStudent:
		actor = models.ActorStudent
	default:
		return nil, models.NewForbiddenError("You are not a participant of this mentorship")
	}
	if err := models.CheckTransition(current.Status, to, actor); err != nil {
		return nil, err
	}

	changed, err := s.repo.UpdateStatus(ctx, requestID, []models.RequestStatus{current.Status}, to, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, models.NewConflictError(models.CodeInvalidTransition, "Request status changed concurrently")
	}

	req, err = s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, req, actorID, actor, event)
	return req, nil
}

func (s *MentorshipService) afterTransition(
	ctx context.Context, req *models.MentorshipRequest, actorID uuid.UUID, actor models.TransitionActor, event string,
) {
	observability.RequestTransitions.WithLabelValues(string(req.Status), string(actor)).Inc()

	if err := s.capacity.Invalidate(ctx, req.MentorID); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to invalidate capacity cache",
			slog.String("mentor_id", req.MentorID.String()),
			slog.String("error", err.Error()))
	}

	recipient := req.StudentID
	if actorID == req.StudentID {
		recipient = req.MentorID
	}
	s.notifier.Notify(ctx, notifications.Event{
		Type: event, RequestID: req.ID, ActorID: actorID,
		Payload: map[string]string{"status": string(req.Status)},
	}, recipient)
}

// Capacity reports the mentor's accepted load. Reads go through the Redis
// snapshot cache; the accept path never consults it.
func (s *MentorshipService) Capacity(ctx context.Context, mentorID uuid.UUID) (Capacity, error) {
	if snap, ok := s.capacity.Get(ctx, mentorID); ok && snap.Limit == s.limit {
		return Capacity(snap), nil
	}

	if _, err := s.userRepo.GetByID(ctx, mentorID); err != nil {
		return Capacity{}, err
	}
	gen := s.capacity.Generation(ctx, mentorID)
	n, err := s.repo.CountAccepted(ctx, mentorID)
	if err != nil {
		return Capacity{}, err
	}
	out := Capacity{Accepted: int(n), Limit: s.limit, Full: int(n) >= s.limit}

	if _, err := s.capacity.Set(ctx, mentorID, gen, cache.CapacitySnapshot(out)); err != nil {
		middleware.Logger.DebugContext(ctx, "Failed to cache capacity", slog.String("error", err.Error()))
	}
	return out, nil
}

// CanAccept reports whether the mentor currently has room for another accepted request.
func (s *MentorshipService) CanAccept(ctx context.Context, mentorID uuid.UUID) (bool, error) {
	n, err := s.repo.CountAccepted(ctx, mentorID)
	if err != nil {
		return false, err
	}
	return int(n) < s.limit, nil
}
