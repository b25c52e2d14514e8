package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"mentorlink/internal/cache"
	"mentorlink/internal/featureflags"
	"mentorlink/internal/models"
	"mentorlink/internal/notifications"
	"mentorlink/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMentorshipService(f *fixture) *MentorshipService {
	return NewMentorshipService(f.requests, f.users, nil, nil, nil, 5)
}

func seedAccepted(t *testing.T, f *fixture, mentor *models.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s := f.user(t, uuid.NewString()+"@uni.edu", models.RoleStudent)
		f.request(t, s, mentor, models.RequestStatusAccepted, time.Now().UTC())
	}
}

func TestMentorshipService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newMentorshipService(f)

	student := f.user(t, "s@uni.edu", models.RoleStudent)
	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)

	req, err := svc.Create(ctx, CreateRequestInput{
		StudentID: student.ID, MentorID: mentor.ID, FieldOfInterest: "  Databases  ", Goals: "Learn indexing",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, "Databases", req.FieldOfInterest)

	// duplicates are tolerated and corrected later by cleanup
	_, err = svc.Create(ctx, CreateRequestInput{StudentID: student.ID, MentorID: mentor.ID, FieldOfInterest: "Databases"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   CreateRequestInput
		code string
	}{
		{"self request", CreateRequestInput{StudentID: student.ID, MentorID: student.ID, FieldOfInterest: "x"}, models.CodeValidation},
		{"missing subject", CreateRequestInput{StudentID: student.ID, MentorID: mentor.ID}, models.CodeValidation},
		{"mentor as requester", CreateRequestInput{StudentID: mentor.ID, MentorID: student.ID, FieldOfInterest: "x"}, models.CodeForbidden},
		{"student as mentor", CreateRequestInput{StudentID: student.ID, MentorID: f.user(t, "s2@uni.edu", models.RoleStudent).ID, FieldOfInterest: "x"}, models.CodeValidation},
		{"unknown mentor", CreateRequestInput{StudentID: student.ID, MentorID: uuid.New(), FieldOfInterest: "x"}, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.Equal(t, tt.code, models.ErrorCode(err))
		})
	}
}

func TestMentorshipService_CreateStrictDedupe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flags := featureflags.NewManager(featureflags.StrictRequestDedupe + "=on")
	svc := NewMentorshipService(f.requests, f.users, nil, nil, flags, 5)

	student := f.user(t, "s@uni.edu", models.RoleStudent)
	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)
	in := CreateRequestInput{StudentID: student.ID, MentorID: mentor.ID, FieldOfInterest: "Go"}

	first, err := svc.Create(ctx, in)
	require.NoError(t, err)

	_, err = svc.Create(ctx, in)
	assert.Equal(t, models.CodeActiveRequestExists, models.ErrorCode(err))
	assert.Equal(t, 409, models.StatusFor(err))

	_, err = svc.Decline(ctx, first.ID, mentor.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, in)
	assert.NoError(t, err, "a declined request does not block a new one")
}

func TestMentorshipService_AcceptUpToCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newMentorshipService(f)

	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)
	seedAccepted(t, f, mentor, 4)

	student := f.user(t, "s@uni.edu", models.RoleStudent)
	req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC())

	got, err := svc.Accept(ctx, req.ID, mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, got.Status)

	capacity, err := svc.Capacity(ctx, mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, Capacity{Accepted: 5, Limit: 5, Full: true}, capacity)
}

func TestMentorshipService_AcceptRejectsSixth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newMentorshipService(f)

	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)
	seedAccepted(t, f, mentor, 5)

	student := f.user(t, "s@uni.edu", models.RoleStudent)
	req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC())

	_, err := svc.Accept(ctx, req.ID, mentor.ID)
	assert.Equal(t, models.CodeCapacityFull, models.ErrorCode(err))
	assert.Equal(t, 409, models.StatusFor(err))
	assert.Equal(t, models.RequestStatusPending, f.status(t, req.ID))

	ok, err := svc.CanAccept(ctx, mentor.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMentorshipService_ConcurrentAcceptsNeverExceedLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newMentorshipService(f)

	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)
	seedAccepted(t, f, mentor, 3)

	var pending []uuid.UUID
	for i := 0; i < 5; i++ {
		s := f.user(t, uuid.NewString()+"@uni.edu", models.RoleStudent)
		pending = append(pending, f.request(t, s, mentor, models.RequestStatusPending, time.Now().UTC()).ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		full     int
	)
	for _, id := range pending {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := svc.Accept(ctx, id, mentor.ID)
			mu.Lock()
			defer mu.Unlock()
			switch models.ErrorCode(err) {
			case "":
				accepted++
			case models.CodeCapacityFull:
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2, accepted)
	assert.Equal(t, 3, full)
	n, err := f.requests.CountAccepted(ctx, mentor.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestMentorshipService_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newMentorshipService(f)

	student := f.user(t, "s@uni.edu", models.RoleStudent)
	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)
	outsider := f.user(t, "o@uni.edu", models.RoleStudent)

	t.Run("student cannot accept", func(t *testing.T) {
		req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC())
		_, err := svc.Accept(ctx, req.ID, student.ID)
		assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))
	})

	t.Run("student cannot decline", func(t *testing.T) {
		req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC())
		_, err := svc.Decline(ctx, req.ID, student.ID)
		assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		req := f.request(t, student, mentor, models.RequestStatusAccepted, time.Now().UTC())
		_, err := svc.Complete(ctx, req.ID, outsider.ID)
		assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))
	})

	t.Run("pending cannot complete", func(t *testing.T) {
		req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC())
		_, err := svc.Complete(ctx, req.ID, mentor.ID)
		assert.Equal(t, models.CodeInvalidTransition, models.ErrorCode(err))
	})

	t.Run("accept twice", func(t *testing.T) {
		req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC())
		_, err := svc.Accept(ctx, req.ID, mentor.ID)
		require.NoError(t, err)
		_, err = svc.Accept(ctx, req.ID, mentor.ID)
		assert.Equal(t, models.CodeInvalidTransition, models.ErrorCode(err))
	})

	t.Run("mentor cannot decline accepted", func(t *testing.T) {
		req := f.request(t, student, mentor, models.RequestStatusAccepted, time.Now().UTC())
		_, err := svc.Decline(ctx, req.ID, mentor.ID)
		assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))
	})

	t.Run("either side completes", func(t *testing.T) {
		byStudent := f.request(t, student, mentor, models.RequestStatusAccepted, time.Now().UTC())
		got, err := svc.Complete(ctx, byStudent.ID, student.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusCompleted, got.Status)

		byMentor := f.request(t, student, mentor, models.RequestStatusAccepted, time.Now().UTC())
		got, err = svc.Complete(ctx, byMentor.ID, mentor.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusCompleted, got.Status)
	})

	t.Run("terminal states stay terminal", func(t *testing.T) {
		req := f.request(t, student, mentor, models.RequestStatusDeclined, time.Now().UTC())
		for _, to := range []models.RequestStatus{models.RequestStatusAccepted, models.RequestStatusCompleted, models.RequestStatusPending} {
			_, err := svc.UpdateStatus(ctx, req.ID, mentor.ID, to)
			assert.Equal(t, models.CodeInvalidTransition, models.ErrorCode(err), to)
		}
	})

	t.Run("update status dispatch", func(t *testing.T) {
		req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC().Add(-time.Minute))
		got, err := svc.UpdateStatus(ctx, req.ID, mentor.ID, models.RequestStatusDeclined)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusDeclined, got.Status)
		assert.True(t, got.UpdatedAt.After(req.UpdatedAt))

		_, err = svc.UpdateStatus(ctx, req.ID, mentor.ID, "archived")
		assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	})
}

func newMockMentorshipService(t *testing.T) (*MentorshipService, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	svc := NewMentorshipService(repository.NewMentorshipRepository(db), repository.NewUserRepository(db), nil, nil, nil, 5)
	return svc, mock
}

func requestRows(id, student, mentor uuid.UUID, status models.RequestStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "student_id", "mentor_id", "status", "created_at", "updated_at"}).
		AddRow(id.String(), student.String(), mentor.String(), string(status), now, now)
}

func TestMentorshipService_AcceptLocksMentorRowBeforeCounting(t *testing.T) {
	svc, mock := newMockMentorshipService(t)
	reqID, student, mentor := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "mentorship_requests" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(requestRows(reqID, student, mentor, models.RequestStatusPending))
	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(mentor.String()))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "mentorship_requests" WHERE mentor_id = \$1 AND status = \$2`).
		WithArgs(mentor.String(), string(models.RequestStatusAccepted)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(`UPDATE "mentorship_requests" SET .*WHERE id = \$\d+ AND status IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "mentorship_requests" WHERE id = \$1`).
		WillReturnRows(requestRows(reqID, student, mentor, models.RequestStatusAccepted))
	mock.ExpectCommit()

	got, err := svc.Accept(context.Background(), reqID, mentor)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMentorshipService_AcceptAtCapacityRollsBackAfterLockedCount(t *testing.T) {
	svc, mock := newMockMentorshipService(t)
	reqID, student, mentor := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "mentorship_requests" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(requestRows(reqID, student, mentor, models.RequestStatusPending))
	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(mentor.String()))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "mentorship_requests" WHERE mentor_id = \$1 AND status = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), reqID, mentor)
	assert.Equal(t, models.CodeCapacityFull, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMentorshipService_CapacityCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr, rdb := setupRedis(t)
	svc := NewMentorshipService(f.requests, f.users, newCapacityCache(rdb), notifications.NewNotifier(rdb), nil, 5)

	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)
	student := f.user(t, "s@uni.edu", models.RoleStudent)
	req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC())

	got, err := svc.Capacity(ctx, mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, Capacity{Accepted: 0, Limit: 5}, got)
	assert.True(t, mr.Exists(cache.MentorCapacityKey(mentor.ID)))

	_, err = svc.Accept(ctx, req.ID, mentor.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.MentorCapacityKey(mentor.ID)), "accept invalidates the snapshot")

	got, err = svc.Capacity(ctx, mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Accepted)

	_, err = svc.Capacity(ctx, uuid.New())
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestMentorshipService_CapacityIgnoresWriteFromBeforeAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, rdb := setupRedis(t)
	capacity := newCapacityCache(rdb)
	svc := NewMentorshipService(f.requests, f.users, capacity, nil, nil, 5)

	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)
	student := f.user(t, "s@uni.edu", models.RoleStudent)
	req := f.request(t, student, mentor, models.RequestStatusPending, time.Now().UTC())

	// A concurrent reader counted zero before the accept committed.
	gen := capacity.Generation(ctx, mentor.ID)
	_, err := svc.Accept(ctx, req.ID, mentor.ID)
	require.NoError(t, err)
	stored, err := capacity.Set(ctx, mentor.ID, gen, cache.CapacitySnapshot{Accepted: 0, Limit: 5})
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := svc.Capacity(ctx, mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Accepted)

	snap, ok := capacity.Get(ctx, mentor.ID)
	require.True(t, ok)
	assert.Equal(t, 1, snap.Accepted)
}

func TestMentorshipService_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, rdb := setupRedis(t)
	svc := NewMentorshipService(f.requests, f.users, nil, notifications.NewNotifier(rdb), nil, 5)

	mentor := f.user(t, "m@uni.edu", models.RoleAlumni)
	student := f.user(t, "s@uni.edu", models.RoleStudent)

	sub := rdb.Subscribe(ctx, notifications.UserChannel(mentor.ID))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRequestInput{StudentID: student.ID, MentorID: mentor.ID, FieldOfInterest: "Go"})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, notifications.EventRequestCreated)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification published")
	}
}
