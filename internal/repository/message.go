package repository

import (
	"context"

	"mentorlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository defines persistence operations for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Message, error)
	// MarkReadFrom flags every unread message on the request not sent by readerID.
	MarkReadFrom(ctx context.Context, requestID, readerID uuid.UUID) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Message, error) {
	var out []models.Message
	if err := r.db.WithContext(ctx).
		Where("mentorship_request_id = ?", requestID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *messageRepository) MarkReadFrom(ctx context.Context, requestID, readerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("mentorship_request_id = ? AND sender_id <> ? AND is_read = ?", requestID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
