package service

import (
	"context"
	"time"

	"mentorlink/internal/models"
	"mentorlink/internal/notifications"
	"mentorlink/internal/observability"
	"mentorlink/internal/repository"
	"mentorlink/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ChatService gates mentorship chat reads and writes and handles chat closure.
type ChatService struct {
	requests repository.MentorshipRepository
	messages repository.MessageRepository
	db       *gorm.DB
	notifier *notifications.Notifier
	now      func() time.Time
}

// ChatThread is a participant's view of a mentorship chat.
type ChatThread struct {
	Messages         []models.Message       `json:"messages"`
	Status           models.RequestStatus   `json:"status"`
	ChatClosedReason *string                `json:"chatClosedReason"`
	ChatClosedAt     *time.Time             `json:"chatClosedAt"`
	ParticipantRole  models.ParticipantRole `json:"participantRole"`
}

// ChatClosure is the closure record returned by CloseChat.
type ChatClosure struct {
	RequestID        uuid.UUID `json:"mentorshipRequestId"`
	ChatClosedAt     time.Time `json:"chatClosedAt"`
	ChatClosedReason string    `json:"chatClosedReason"`
	AlreadyClosed    bool      `json:"alreadyClosed"`
}

// ChatStreamEvent is published on a mentorship chat channel.
type ChatStreamEvent struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// Chat stream event types.
const (
	ChatStreamMessage = "message"
	ChatStreamClosed  = "closed"
)

// SendMessageInput is the input for sending a chat message.
type SendMessageInput struct {
	SenderID  uuid.UUID
	RequestID uuid.UUID
	Text      string
}

// NewChatService returns a new ChatService. When db is nil, sends run without
// a row lock on the request.
func NewChatService(
	requests repository.MentorshipRepository,
	messages repository.MessageRepository,
	db *gorm.DB,
	notifier *notifications.Notifier,
) *ChatService {
	return &ChatService{
		requests: requests,
		messages: messages,
		db:       db,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Authorize loads the request and checks userID may read its chat.
func (s *ChatService) Authorize(ctx context.Context, requestID, userID uuid.UUID) (*models.MentorshipRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParticipant(userID) {
		return nil, models.NewForbiddenError("Not a participant")
	}
	return req, nil
}

// Messages returns the chat thread in chronological order and marks the other
// party's messages as read. Reading is allowed whatever the request status.
func (s *ChatService) Messages(ctx context.Context, requestID, userID uuid.UUID) (*ChatThread, error) {
	req, err := s.Authorize(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := s.messages.MarkReadFrom(ctx, requestID, userID); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	return &ChatThread{
		Messages:         msgs,
		Status:           req.Status,
		ChatClosedReason: req.ChatClosedReason,
		ChatClosedAt:     req.ChatClosedAt,
		ParticipantRole:  req.RoleOf(userID),
	}, nil
}

// Send stores a message when the request is accepted and the chat is open.
func (s *ChatService) Send(ctx context.Context, in SendMessageInput) (msg *models.Message, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ChatService", "Send",
		attribute.String("request.id", in.RequestID.String()))
	defer func() { observability.EndSpan(span, err) }()

	text, err := validation.NormalizeChatText(in.Text)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	msg = &models.Message{
		MentorshipRequestID: in.RequestID,
		SenderID:            in.SenderID,
		Content:             text,
		CreatedAt:           s.now(),
	}

	write := func(requests repository.MentorshipRepository, messages repository.MessageRepository, lock bool) error {
		var req *models.MentorshipRequest
		var err error
		if lock {
			req, err = requests.GetForUpdate(ctx, in.RequestID)
		} else {
			req, err = requests.GetByID(ctx, in.RequestID)
		}
		if err != nil {
			return err
		}
		if !req.IsParticipant(in.SenderID) {
			return models.NewForbiddenError("Not a participant")
		}
		if err := req.ChatWriteError(); err != nil {
			observability.ChatDenials.WithLabelValues(models.ErrorCode(err)).Inc()
			return err
		}
		return messages.Create(ctx, msg)
	}

	if s.db != nil {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return write(repository.NewMentorshipRepository(tx), repository.NewMessageRepository(tx), true)
		})
	} else {
		err = write(s.requests, s.messages, false)
	}
	if err != nil {
		return nil, err
	}

	observability.ChatMessages.Inc()
	if err := s.notifier.PublishChatMessage(ctx, in.RequestID, ChatStreamEvent{Type: ChatStreamMessage, Message: msg}); err != nil {
		observability.RedisErrorRate.WithLabelValues("chat_publish").Inc()
	}
	return msg, nil
}

// CloseChat closes the chat on behalf of the mentor. Closing is one-way and
// idempotent: a second close keeps the original reason and time and reports
// AlreadyClosed.
func (s *ChatService) CloseChat(ctx context.Context, requestID, actorID uuid.UUID, reason string) (out *ChatClosure, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ChatService", "CloseChat",
		attribute.String("request.id", requestID.String()))
	defer func() { observability.EndSpan(span, err) }()

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.MentorID != actorID {
		return nil, models.NewForbiddenError("Only the mentor can close this chat")
	}
	reason, err = validation.NormalizeCloseReason(reason)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	changed, err := s.requests.CloseChat(ctx, requestID, reason, s.now())
	if err != nil {
		return nil, err
	}

	req, err = s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	out = &ChatClosure{RequestID: req.ID, AlreadyClosed: !changed}
	if req.ChatClosedAt != nil {
		out.ChatClosedAt = *req.ChatClosedAt
	}
	if req.ChatClosedReason != nil {
		out.ChatClosedReason = *req.ChatClosedReason
	}

	if changed {
		s.notifier.Notify(ctx, notifications.Event{
			Type: notifications.EventChatClosed, RequestID: req.ID, ActorID: actorID,
			Payload: map[string]string{"reason": out.ChatClosedReason},
		}, req.StudentID)
		if err := s.notifier.PublishChatMessage(ctx, req.ID, ChatStreamEvent{Type: ChatStreamClosed, Reason: out.ChatClosedReason}); err != nil {
			observability.RedisErrorRate.WithLabelValues("chat_publish").Inc()
		}
	}
	return out, nil
}
