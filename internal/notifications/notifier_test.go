package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()

	assert.NoError(t, n.PublishUser(ctx, uuid.New(), "x"))
	assert.NoError(t, n.PublishEvent(ctx, Event{Type: EventRequestCreated}, uuid.New()))
	assert.NoError(t, n.PublishChatMessage(ctx, uuid.New(), map[string]string{"a": "b"}))

	done, err := n.SubscribeChat(ctx, uuid.New(), func(string) {})
	require.NoError(t, err)
	select {
	case <-done:
	default:
		t.Fatal("expected closed done channel")
	}
}

func TestChannels(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "notifications:user:11111111-1111-1111-1111-111111111111", UserChannel(id))
	assert.Equal(t, "chat:mentorship:11111111-1111-1111-1111-111111111111", MentorshipChatChannel(id))
}

func TestNotifier_PublishEventReachesUserChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	user := uuid.New()
	sub := rdb.Subscribe(ctx, UserChannel(user))
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	reqID := uuid.New()
	n := NewNotifier(rdb)
	require.NoError(t, n.PublishEvent(ctx, Event{Type: EventRequestAccepted, RequestID: reqID}, user))

	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, EventRequestAccepted, ev.Type)
		assert.Equal(t, reqID, ev.RequestID)
		assert.False(t, ev.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestNotifier_SubscribeChatStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	reqID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())

	payloads := make(chan string, 1)
	done, err := n.SubscribeChat(ctx, reqID, func(p string) { payloads <- p })
	require.NoError(t, err)

	require.NoError(t, n.PublishChatMessage(context.Background(), reqID, map[string]string{"content": "hi"}))
	select {
	case p := <-payloads:
		assert.JSONEq(t, `{"content":"hi"}`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chat payload")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
