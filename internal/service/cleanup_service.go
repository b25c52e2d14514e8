package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"mentorlink/internal/cache"
	"mentorlink/internal/middleware"
	"mentorlink/internal/models"
	"mentorlink/internal/observability"
	"mentorlink/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// DedupReport summarizes one duplicate cleanup run.
type DedupReport struct {
	DryRun      bool        `json:"dry_run"`
	Candidates  int         `json:"candidates"`
	Declined    int64       `json:"declined"`
	DeclinedIDs []uuid.UUID `json:"declined_ids"`
}

// CleanupService enforces one active request per student/mentor pair.
type CleanupService struct {
	repo     repository.MentorshipRepository
	capacity *cache.CapacityCache
	now      func() time.Time
}

// NewCleanupService returns a new CleanupService. capacity may be nil.
func NewCleanupService(repo repository.MentorshipRepository, capacity *cache.CapacityCache) *CleanupService {
	return &CleanupService{
		repo:     repo,
		capacity: capacity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type pairKey struct {
	student uuid.UUID
	mentor  uuid.UUID
}

// PlanDeclines picks the surviving row of every student/mentor pair and returns
// the ids of losing rows that are still pending or accepted. Losers that are
// already declined or completed are left alone. The result is sorted.
func PlanDeclines(rows []models.MentorshipRequest) []uuid.UUID {
	winners := make(map[pairKey]*models.MentorshipRequest)
	for i := range rows {
		r := &rows[i]
		k := pairKey{r.StudentID, r.MentorID}
		if w, ok := winners[k]; !ok || r.Outranks(w) {
			winners[k] = r
		}
	}

	var out []uuid.UUID
	for i := range rows {
		r := &rows[i]
		if winners[pairKey{r.StudentID, r.MentorID}].ID == r.ID {
			continue
		}
		if r.Status.Active() {
			out = append(out, r.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// DeclineDuplicates declines every non-winning active request in one
// transaction. With dryRun it reports what would be declined and writes
// nothing. Running it twice in a row declines nothing the second time.
func (s *CleanupService) DeclineDuplicates(ctx context.Context, dryRun bool) (report DedupReport, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CleanupService", "DeclineDuplicates",
		attribute.Bool("dedup.dry_run", dryRun))
	defer func() {
		observability.EndSpan(span, err)
		switch {
		case err != nil:
			observability.DedupRuns.WithLabelValues("failed").Inc()
		case dryRun:
			observability.DedupRuns.WithLabelValues("dry_run").Inc()
		default:
			observability.DedupRuns.WithLabelValues("applied").Inc()
		}
	}()

	report.DryRun = dryRun
	var mentors []uuid.UUID

	err = s.repo.Transaction(ctx, func(tx repository.MentorshipRepository) error {
		rows, err := tx.ListDuplicateCandidates(ctx)
		if err != nil {
			return err
		}
		report.Candidates = len(rows)

		ids := PlanDeclines(rows)
		report.DeclinedIDs = ids
		if dryRun {
			report.Declined = int64(len(ids))
			return nil
		}

		n, err := tx.DeclineActive(ctx, ids, s.now())
		if err != nil {
			return err
		}
		report.Declined = n
		mentors = affectedMentors(rows, ids)
		return nil
	})
	if err != nil {
		return DedupReport{DryRun: dryRun}, err
	}

	if report.DeclinedIDs == nil {
		report.DeclinedIDs = []uuid.UUID{}
	}
	if !dryRun {
		observability.DedupDeclined.Add(float64(report.Declined))
		if err := s.capacity.Invalidate(ctx, mentors...); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to invalidate capacity cache after cleanup",
				slog.String("error", err.Error()))
		}
	}

	middleware.Logger.InfoContext(ctx, "Duplicate request cleanup finished",
		slog.Bool("dry_run", dryRun),
		slog.Int("candidates", report.Candidates),
		slog.Int64("declined", report.Declined),
	)
	return report, nil
}

func affectedMentors(rows []models.MentorshipRequest, declined []uuid.UUID) []uuid.UUID {
	hit := make(map[uuid.UUID]struct{}, len(declined))
	for _, id := range declined {
		hit[id] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, r := range rows {
		if _, ok := hit[r.ID]; !ok {
			continue
		}
		if _, ok := seen[r.MentorID]; ok {
			continue
		}
		seen[r.MentorID] = struct{}{}
		out = append(out, r.MentorID)
	}
	return out
}
