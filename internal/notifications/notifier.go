// Package notifications publishes mentorship events and chat messages to Redis channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"mentorlink/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event types delivered on user channels.
const (
	EventRequestCreated   = "mentorship_request_created"
	EventRequestAccepted  = "mentorship_request_accepted"
	EventRequestDeclined  = "mentorship_request_declined"
	EventRequestCompleted = "mentorship_request_completed"
	EventChatClosed       = "mentorship_chat_closed"
	EventChatMessage      = "mentorship_chat_message"
	EventVerification     = "verification_updated"
)

// Event is the JSON envelope published to user channels.
type Event struct {
	Type      string    `json:"type"`
	RequestID uuid.UUID `json:"request_id,omitempty"`
	ActorID   uuid.UUID `json:"actor_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uuid.UUID) string {
	return "notifications:user:" + userID.String()
}

// MentorshipChatChannel derives the Redis channel name for a mentorship chat.
func MentorshipChatChannel(requestID uuid.UUID) string {
	return "chat:mentorship:" + requestID.String()
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uuid.UUID, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishEvent marshals ev and sends it to every recipient's user channel.
func (n *Notifier) PublishEvent(ctx context.Context, ev Event, recipients ...uuid.UUID) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	for _, userID := range recipients {
		if err := n.PublishUser(ctx, userID, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// PublishChatMessage publishes a chat payload to a mentorship chat channel.
func (n *Notifier) PublishChatMessage(ctx context.Context, requestID uuid.UUID, payload any) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, MentorshipChatChannel(requestID), string(raw)).Err()
}

// Notify publishes an event and logs rather than returns a failure. Delivery is
// best effort; the database remains the source of truth.
func (n *Notifier) Notify(ctx context.Context, ev Event, recipients ...uuid.UUID) {
	if err := n.PublishEvent(ctx, ev, recipients...); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish notification",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

// SubscribeChat subscribes to one mentorship chat channel and calls onMessage for
// each payload until ctx is cancelled. The returned channel closes once the
// subscription is torn down.
func (n *Notifier) SubscribeChat(ctx context.Context, requestID uuid.UUID, onMessage func(payload string)) (<-chan struct{}, error) {
	done := make(chan struct{})
	if n == nil || n.rdb == nil {
		close(done)
		return done, nil
	}

	sub := n.rdb.Subscribe(ctx, MentorshipChatChannel(requestID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		close(done)
		return done, fmt.Errorf("subscribe chat: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer close(done)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in chat subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return done, nil
}
