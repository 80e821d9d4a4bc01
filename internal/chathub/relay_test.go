package chathub_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pairedFixture struct {
	hub   *chathub.Hub
	store *memStore
	pub   *recordingPublisher
	a, b  *MockClient
	room  string
}

func newPaired(t *testing.T) *pairedFixture {
	t.Helper()
	hub, store, pub := newTestHub()
	c := online(hub, "user_A", "user_B")
	require.NoError(t, hub.Matcher.FindPartner(context.Background(), c[0]))
	require.NoError(t, hub.Matcher.FindPartner(context.Background(), c[1]))
	require.NotEmpty(t, c[0].GetRoomID())
	c[0].Reset()
	c[1].Reset()
	return &pairedFixture{hub: hub, store: store, pub: pub, a: c[0], b: c[1], room: c[0].GetRoomID()}
}

func TestRelay_DeliversToPartnerOnly(t *testing.T) {
	f := newPaired(t)
	ctx := context.Background()

	require.NoError(t, f.hub.Relay.Relay(ctx, f.a, f.room, "hello"))

	assert.Empty(t, f.a.Received(), "sender is not echoed")
	msgs := f.b.Of(models.NotifyMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "name_user_A", msgs[0].Username)
	require.NotNil(t, msgs[0].SentAt)

	require.Len(t, f.store.messages, 1)
	stored := f.store.messages[0]
	assert.Equal(t, f.room, stored.RoomID)
	assert.Equal(t, "user_A", stored.SenderID)

	events := f.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, stored.MessageID, events[0].ID)
	assert.Equal(t, "user_A", events[0].UserID)
	assert.Equal(t, "hello", events[0].Text)
}

func TestRelay_PreservesOrder(t *testing.T) {
	f := newPaired(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, f.hub.Relay.Relay(ctx, f.a, f.room, fmt.Sprintf("m%d", i)))
	}

	msgs := f.b.Of(models.NotifyMessage)
	require.Len(t, msgs, 20)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Text)
	}
}

func TestRelay_RejectsNonMembers(t *testing.T) {
	f := newPaired(t)
	ctx := context.Background()
	outsider := online(f.hub, "user_C")[0]

	assertChatError(t, f.hub.Relay.Relay(ctx, outsider, f.room, "hi"), errs.ErrNotInRoom)
	assertChatError(t, f.hub.Relay.Relay(ctx, f.a, "room_unknown", "hi"), errs.ErrNotInRoom)
	assert.Empty(t, f.b.Received())
	assert.Empty(t, f.pub.Events())
}

func TestRelay_BlockedSender(t *testing.T) {
	f := newPaired(t)
	f.store.block("user_A", 10*time.Minute)

	require.NoError(t, f.hub.Relay.Relay(context.Background(), f.a, f.room, "hello"))

	assert.Equal(t, models.NotifyBlocked, f.a.Last().Type)
	assert.Equal(t, []models.Notification{{Type: models.NotifyPartnerBlocked, RoomID: f.room, Reason: "Exceeded 3 strikes"}}, f.b.Received())
	assert.Empty(t, f.store.messages)
	assert.Empty(t, f.pub.Events())
}

func TestRelay_BlockedPartner(t *testing.T) {
	f := newPaired(t)
	f.store.block("user_B", 10*time.Minute)

	require.NoError(t, f.hub.Relay.Relay(context.Background(), f.a, f.room, "hello"))

	assert.Equal(t, models.NotifyBlocked, f.b.Last().Type)
	assert.Equal(t, models.NotifyPartnerBlocked, f.a.Last().Type)
	assert.Empty(t, f.b.Of(models.NotifyMessage))
	assert.Empty(t, f.pub.Events())
}

func TestRelay_PersistenceFailureStillDelivers(t *testing.T) {
	f := newPaired(t)
	f.store.saveMessageErr = errors.New("db down")

	require.NoError(t, f.hub.Relay.Relay(context.Background(), f.a, f.room, "hello"))

	assert.Len(t, f.b.Of(models.NotifyMessage), 1)
	assert.Len(t, f.pub.Events(), 1)
}

func TestRelay_BlockCheckFailureFailsOpen(t *testing.T) {
	f := newPaired(t)
	f.store.getBlockErr = errors.New("redis down")

	require.NoError(t, f.hub.Relay.Relay(context.Background(), f.a, f.room, "hello"))
	assert.Len(t, f.b.Of(models.NotifyMessage), 1)
}

func TestEndChat_IsIdempotent(t *testing.T) {
	f := newPaired(t)
	ctx := context.Background()

	require.NoError(t, f.hub.Relay.EndChat(ctx, f.room, "user_A", chathub.ReasonEnded))
	require.NoError(t, f.hub.Relay.EndChat(ctx, f.room, "user_A", chathub.ReasonEnded))
	require.NoError(t, f.hub.Relay.EndChat(ctx, f.room, "user_B", chathub.ReasonEnded))

	left := f.b.Of(models.NotifyPartnerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, chathub.ReasonEnded, left[0].Reason)
	assert.Empty(t, f.a.Of(models.NotifyPartnerLeft))

	assert.Empty(t, f.a.GetRoomID())
	assert.Empty(t, f.b.GetRoomID())
	assert.Equal(t, 0, f.hub.Relay.ActiveRooms())
	assert.Empty(t, f.hub.Relay.RoomOf("user_A"))

	room, err := f.store.GetRoomByID(ctx, f.room)
	require.NoError(t, err)
	assert.False(t, room.IsActive)
	assert.NotNil(t, room.EndedAt)

	assertChatError(t, f.hub.Relay.Relay(ctx, f.a, f.room, "too late"), errs.ErrNotInRoom)
}

func TestEndChat_NonParticipant(t *testing.T) {
	f := newPaired(t)

	err := f.hub.Relay.EndChat(context.Background(), f.room, "user_C", chathub.ReasonEnded)
	assertChatError(t, err, errs.ErrNotInRoom)
	assert.Equal(t, 1, f.hub.Relay.ActiveRooms())
}

func TestEndChat_StorageFailureSurfaces(t *testing.T) {
	f := newPaired(t)
	f.store.closeRoomErr = errors.New("db down")

	err := f.hub.Relay.EndChat(context.Background(), f.room, "user_A", chathub.ReasonEnded)
	assert.Error(t, err)
	assert.Equal(t, 0, f.hub.Relay.ActiveRooms(), "room ends in memory regardless")
	assert.Len(t, f.b.Of(models.NotifyPartnerLeft), 1)
}

func TestDisconnect_NotifiesPartnerOnce(t *testing.T) {
	f := newPaired(t)
	ctx := context.Background()

	f.hub.Disconnect(ctx, f.a)
	f.hub.Disconnect(ctx, f.a)

	left := f.b.Of(models.NotifyPartnerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, chathub.ReasonDisconnected, left[0].Reason)
	assert.Equal(t, 0, f.hub.Relay.ActiveRooms())
	_, ok := f.hub.Presence.Lookup("user_A")
	assert.False(t, ok)

	// The partner can search again straight away.
	require.NoError(t, f.hub.Matcher.FindPartner(ctx, f.b))
	assert.Equal(t, models.NotifyWaiting, f.b.Last().Type)
}

func TestDisconnect_RemovesQueueEntry(t *testing.T) {
	hub, store, _ := newTestHub()
	a := online(hub, "user_A")[0]

	require.NoError(t, hub.Matcher.FindPartner(context.Background(), a))
	hub.Disconnect(context.Background(), a)

	assert.Equal(t, 0, store.QueueLen())
}

func TestHistory(t *testing.T) {
	f := newPaired(t)
	ctx := context.Background()

	require.NoError(t, f.hub.Relay.Relay(ctx, f.a, f.room, "one"))
	require.NoError(t, f.hub.Relay.Relay(ctx, f.b, f.room, "two"))
	require.NoError(t, f.hub.Relay.Relay(ctx, f.a, f.room, "three"))

	items, err := f.hub.Relay.History(ctx, f.a, f.room, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "one", items[0].Text)
	assert.True(t, items[0].IsOwn)
	assert.Equal(t, "two", items[1].Text)
	assert.False(t, items[1].IsOwn)
	assert.Equal(t, "name_user_B", items[1].Username)

	items, err = f.hub.Relay.History(ctx, f.b, f.room, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].Text)
	assert.True(t, items[0].IsOwn)

	outsider := online(f.hub, "user_C")[0]
	_, err = f.hub.Relay.History(ctx, outsider, f.room, 10)
	assertChatError(t, err, errs.ErrNotInRoom)

	require.NoError(t, f.hub.Relay.EndChat(ctx, f.room, "user_A", chathub.ReasonEnded))
	items, err = f.hub.Relay.History(ctx, f.a, f.room, 10)
	require.NoError(t, err, "participants can still read an ended room")
	assert.Len(t, items, 3)
	_, err = f.hub.Relay.History(ctx, outsider, f.room, 10)
	assertChatError(t, err, errs.ErrNotInRoom)

	_, err = f.hub.Relay.History(ctx, f.a, "room_missing", 10)
	assertChatError(t, err, errs.ErrRoomNotFound)
}

func TestHistory_LimitBounds(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewHub(storageMock, &recordingPublisher{})
	a := online(hub, "user_A")[0]
	room := &models.ChatRoom{RoomID: "room_1", User1ID: "user_A", User2ID: "user_B"}

	storageMock.On("GetRoomByID", mock.Anything, "room_1").Return(room, nil)
	storageMock.On("GetChatHistory", mock.Anything, "room_1", 50).Return([]models.ChatHistory{}, nil).Once()
	storageMock.On("GetChatHistory", mock.Anything, "room_1", 200).Return([]models.ChatHistory{}, nil).Once()
	storageMock.On("GetChatHistory", mock.Anything, "room_1", 7).Return(nil, errors.New("db down")).Once()

	_, err := hub.Relay.History(context.Background(), a, "room_1", 0)
	require.NoError(t, err)
	_, err = hub.Relay.History(context.Background(), a, "room_1", 5000)
	require.NoError(t, err)
	_, err = hub.Relay.History(context.Background(), a, "room_1", 7)
	assert.Error(t, err)

	storageMock.AssertExpectations(t)
}

func TestRecoverActiveRooms(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewHub(storageMock, &recordingPublisher{})

	storageMock.On("GetActiveRoomIDs", mock.Anything).Return([]string{"room_1", "room_2"}, nil)
	storageMock.On("CloseRoom", mock.Anything, "room_1", mock.AnythingOfType("time.Time")).Return(nil)
	storageMock.On("CloseRoom", mock.Anything, "room_2", mock.AnythingOfType("time.Time")).Return(errors.New("db down"))

	closed, err := hub.Relay.RecoverActiveRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	storageMock.AssertExpectations(t)
}
