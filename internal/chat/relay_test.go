package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cipher-game/cipher-server/internal/domain"
)

func testRelay(store *fakeMessageStore, rec *recorder) *Relay {
	typing := NewTypingTracker(5*time.Second, rec)
	cooldown := NewCooldown(2 * time.Second)
	return NewRelay(store, rec, cooldown, typing, 500, testLogger())
}

func alicePresence() *domain.Presence {
	return &domain.Presence{
		ConnectionID: "c1",
		PlayerID:     "p1",
		Username:     "alice",
		Room:         "Europe",
		AvatarURL:    "a.png",
		Level:        3,
	}
}

func TestSendPersistsThenBroadcasts(t *testing.T) {
	store := newFakeMessageStore()
	rec := &recorder{}
	relay := testRelay(store, rec)

	msg, err := relay.Send(context.Background(), alicePresence(), "hello **world**")
	require.NoError(t, err)

	// Persisted with sanitized text and a stable id.
	stored, err := store.GetMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Text, "<strong>world</strong>")
	assert.True(t, strings.HasPrefix(msg.ID, "msg_"))
	assert.Equal(t, "Europe", stored.Room)
	assert.Equal(t, "p1", stored.SenderID)
	assert.Equal(t, 3, stored.Level)

	// Broadcast to the room with the same id the store holds.
	broadcasts := rec.byEvent(EventMessage)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "Europe", broadcasts[0].Room)
	assert.Equal(t, *stored, broadcasts[0].Payload.(domain.ChatMessage))
}

func TestSendPlainTextRoundTrips(t *testing.T) {
	store := newFakeMessageStore()
	rec := &recorder{}
	relay := testRelay(store, rec)

	msg, err := relay.Send(context.Background(), alicePresence(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Text)

	history, err := relay.History(context.Background(), "Europe", 50, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Hello", history[0].Text)
}

func TestSendClearsTypingFirst(t *testing.T) {
	store := newFakeMessageStore()
	rec := &recorder{}
	relay := testRelay(store, rec)

	relay.typing.Start("Europe", "alice")
	_, err := relay.Send(context.Background(), alicePresence(), "hi")
	require.NoError(t, err)

	assert.Empty(t, relay.typing.Typing("Europe"))
}

func TestSendCooldownNoticesSenderOnly(t *testing.T) {
	store := newFakeMessageStore()
	rec := &recorder{}
	relay := testRelay(store, rec)

	_, err := relay.Send(context.Background(), alicePresence(), "first")
	require.NoError(t, err)

	_, err = relay.Send(context.Background(), alicePresence(), "second")
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	// Only the first message reached the room; the denial produced a
	// sender-only system notice.
	var roomMessages, connNotices int
	for _, e := range rec.byEvent(EventMessage) {
		if e.Conn != "" {
			notice := e.Payload.(domain.ChatMessage)
			assert.True(t, notice.IsSystem)
			assert.Equal(t, domain.SystemUsername, notice.Username)
			connNotices++
		} else {
			roomMessages++
		}
	}
	assert.Equal(t, 1, roomMessages)
	assert.Equal(t, 1, connNotices)

	// The denied attempt was never persisted.
	history, err := store.MessageHistory(context.Background(), "Europe", 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSendValidation(t *testing.T) {
	store := newFakeMessageStore()
	rec := &recorder{}
	relay := testRelay(store, rec)

	_, err := relay.Send(context.Background(), alicePresence(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	relay2 := testRelay(newFakeMessageStore(), &recorder{})
	_, err = relay2.Send(context.Background(), alicePresence(), strings.Repeat("x", 501))
	assert.ErrorIs(t, err, domain.ErrMessageTooLong)
}

func TestSendLengthLimitCountsRunes(t *testing.T) {
	// 500 multibyte characters are within the limit even though they span
	// more than 500 bytes; 501 are not.
	relay := testRelay(newFakeMessageStore(), &recorder{})
	_, err := relay.Send(context.Background(), alicePresence(), strings.Repeat("ğ", 500))
	require.NoError(t, err)

	relay2 := testRelay(newFakeMessageStore(), &recorder{})
	_, err = relay2.Send(context.Background(), alicePresence(), strings.Repeat("ğ", 501))
	assert.ErrorIs(t, err, domain.ErrMessageTooLong)
}

func TestSendPersistFailureNoticesSenderOnly(t *testing.T) {
	store := newFakeMessageStore()
	store.failInsert = true
	rec := &recorder{}
	relay := testRelay(store, rec)

	_, err := relay.Send(context.Background(), alicePresence(), "hello")
	require.Error(t, err)

	// No room broadcast; exactly one sender-only failure notice.
	for _, e := range rec.byEvent(EventMessage) {
		assert.NotEmpty(t, e.Conn, "nothing should reach the room on persist failure")
		notice := e.Payload.(domain.ChatMessage)
		assert.True(t, notice.IsSystem)
	}
	require.Len(t, rec.byEvent(EventMessage), 1)
}

func TestEditOwnerOnly(t *testing.T) {
	store := newFakeMessageStore()
	rec := &recorder{}
	relay := testRelay(store, rec)

	msg, err := relay.Send(context.Background(), alicePresence(), "original")
	require.NoError(t, err)

	_, err = relay.Edit(context.Background(), "p2", msg.ID, "hijacked")
	assert.ErrorIs(t, err, domain.ErrNotMessageOwner)

	_, err = relay.Edit(context.Background(), "p1", "msg_missing", "text")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	update, err := relay.Edit(context.Background(), "p1", msg.ID, "fixed *now*")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, update.ID)
	assert.Contains(t, update.Text, "<em>now</em>")

	stored, err := store.GetMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, update.Text, stored.Text)

	updates := rec.byEvent(EventMessageUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, "Europe", updates[0].Room)
}

func TestDeleteOwnerOnly(t *testing.T) {
	store := newFakeMessageStore()
	rec := &recorder{}
	relay := testRelay(store, rec)

	msg, err := relay.Send(context.Background(), alicePresence(), "delete me")
	require.NoError(t, err)

	err = relay.Delete(context.Background(), "p2", msg.ID)
	assert.ErrorIs(t, err, domain.ErrNotMessageOwner)

	err = relay.Delete(context.Background(), "p1", msg.ID)
	require.NoError(t, err)

	_, err = store.GetMessage(context.Background(), msg.ID)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	deletes := rec.byEvent(EventMessageDeleted)
	require.Len(t, deletes, 1)
	assert.Equal(t, map[string]string{"id": msg.ID}, deletes[0].Payload)

	err = relay.Delete(context.Background(), "p1", msg.ID)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestHistoryOldestFirst(t *testing.T) {
	store := newFakeMessageStore()
	rec := &recorder{}
	relay := testRelay(store, rec)

	base := time.Now()
	for i, text := range []string{"one", "two", "three"} {
		require.NoError(t, store.InsertMessage(context.Background(), domain.ChatMessage{
			ID:        "m" + string(rune('1'+i)),
			SenderID:  "p1",
			Username:  "alice",
			Text:      text,
			Type:      domain.MessageTypeText,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Room:      "Europe",
		}))
	}

	msgs, err := relay.History(context.Background(), "Europe", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "three", msgs[2].Text)

	// Paging: skip the newest, still oldest first.
	page, err := relay.History(context.Background(), "Europe", 10, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "one", page[0].Text)
	assert.Equal(t, "two", page[1].Text)
}

func TestHistoryEmptyRoom(t *testing.T) {
	relay := testRelay(newFakeMessageStore(), &recorder{})

	msgs, err := relay.History(context.Background(), "Oceania", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}
