package chathub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/errs"
	"anonchat/backend/internal/pkg/logx"
	"anonchat/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Reasons carried by partner_left.
const (
	ReasonEnded        = "ended"
	ReasonDisconnected = "disconnected"
)

type activeRoom struct {
	// mu serialises relay and end for one room.
	mu    sync.Mutex
	room  models.ChatRoom
	ended bool
}

// RelayService owns the active rooms of this process.
type RelayService struct {
	hub       *ManagerService
	rooms     storage.RoomStore
	blocks    storage.BlockList
	publisher MessagePublisher

	mu     sync.Mutex
	active map[string]*activeRoom
	byUser map[string]string
}

func NewRelayService(hub *ManagerService, rooms storage.RoomStore, blocks storage.BlockList, publisher MessagePublisher) *RelayService {
	return &RelayService{
		hub:       hub,
		rooms:     rooms,
		blocks:    blocks,
		publisher: publisher,
		active:    make(map[string]*activeRoom),
		byUser:    make(map[string]string),
	}
}

// RoomOf returns the active room of userID, or "".
func (r *RelayService) RoomOf(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byUser[userID]
}

func (r *RelayService) ActiveRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *RelayService) lookup(roomID string) *activeRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[roomID]
}

// OpenRoom pairs a and b. The room is active and both connections are bound to it
// before either side is notified.
func (r *RelayService) OpenRoom(ctx context.Context, a, b Client) *models.ChatRoom {
	now := time.Now().UTC()
	room := models.ChatRoom{
		RoomID:    models.NewRoomID(now),
		User1ID:   a.GetUserID(),
		User1Name: a.GetUsername(),
		User2ID:   b.GetUserID(),
		User2Name: b.GetUsername(),
		IsActive:  true,
		StartedAt: now,
	}

	r.mu.Lock()
	r.active[room.RoomID] = &activeRoom{room: room}
	r.byUser[room.User1ID] = room.RoomID
	r.byUser[room.User2ID] = room.RoomID
	r.mu.Unlock()

	a.SetRoomID(room.RoomID)
	b.SetRoomID(room.RoomID)

	durable := room
	if err := r.rooms.SaveRoom(ctx, &durable); err != nil {
		logx.Error(err, "Failed to persist room", "room_id", room.RoomID)
	}

	a.Send(models.Notification{Type: models.NotifyPaired, RoomID: room.RoomID, PartnerName: room.User2Name})
	b.Send(models.Notification{Type: models.NotifyPaired, RoomID: room.RoomID, PartnerName: room.User1Name})

	logx.Info("Match found", "room_id", room.RoomID, "user1", room.User1ID, "user2", room.User2ID)
	return &room
}

// Relay forwards text from sender to the other participant of roomID.
func (r *RelayService) Relay(ctx context.Context, sender Client, roomID, text string) error {
	senderID := sender.GetUserID()

	ar := r.lookup(roomID)
	if ar == nil || sender.GetRoomID() != roomID || !ar.room.HasParticipant(senderID) {
		return errs.New(errs.ErrNotInRoom)
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.ended {
		return errs.New(errs.ErrNotInRoom)
	}

	partnerID := ar.room.PartnerOf(senderID)
	partner, ok := r.hub.Lookup(partnerID)
	if ok && partner.GetRoomID() != roomID {
		partner, ok = nil, false
	}

	if block := r.activeBlock(ctx, senderID); block != nil {
		sender.Send(blockedNotification(roomID, block))
		if ok {
			partner.Send(models.Notification{Type: models.NotifyPartnerBlocked, RoomID: roomID, Reason: block.Reason})
		}
		return nil
	}
	if block := r.activeBlock(ctx, partnerID); block != nil {
		if ok {
			partner.Send(blockedNotification(roomID, block))
		}
		sender.Send(models.Notification{Type: models.NotifyPartnerBlocked, RoomID: roomID, Reason: block.Reason})
		return nil
	}

	now := time.Now().UTC()
	msg := &models.ChatHistory{
		MessageID:  uuid.NewString(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: sender.GetUsername(),
		Content:    text,
		SentAt:     now,
	}
	if err := r.rooms.SaveMessage(ctx, msg); err != nil {
		logx.Error(err, "Failed to persist message", "room_id", roomID, "message_id", msg.MessageID)
	}

	if ok {
		partner.Send(models.Notification{
			Type:     models.NotifyMessage,
			RoomID:   roomID,
			Username: msg.SenderName,
			Text:     text,
			SentAt:   &now,
		})
	}

	r.publisher.Publish(models.ChatMessageEvent{
		ID:     msg.MessageID,
		UserID: senderID,
		Text:   text,
		SentAt: now,
	})
	return nil
}

// activeBlock fails open: a block list outage must not stop the relay.
func (r *RelayService) activeBlock(ctx context.Context, userID string) *models.BlockEntry {
	block, err := r.blocks.GetBlock(ctx, userID)
	if err != nil {
		logx.Error(err, "Block check failed", "user_id", userID)
		return nil
	}
	return block
}

func blockedNotification(roomID string, block *models.BlockEntry) models.Notification {
	expires := block.ExpiresAt
	return models.Notification{
		Type:      models.NotifyBlocked,
		RoomID:    roomID,
		Reason:    block.Reason,
		ExpiresAt: &expires,
	}
}

// EndChat ends roomID on behalf of byUserID. Ending a room that is no longer
// active is a no-op. The room is removed from memory even when closing the durable
// record fails; that failure is returned.
func (r *RelayService) EndChat(ctx context.Context, roomID, byUserID, reason string) error {
	ar := r.lookup(roomID)
	if ar == nil {
		return nil
	}
	if !ar.room.HasParticipant(byUserID) {
		return errs.New(errs.ErrNotInRoom)
	}

	ar.mu.Lock()
	if ar.ended {
		ar.mu.Unlock()
		return nil
	}
	ar.ended = true

	r.mu.Lock()
	delete(r.active, roomID)
	for _, id := range []string{ar.room.User1ID, ar.room.User2ID} {
		if r.byUser[id] == roomID {
			delete(r.byUser, id)
		}
	}
	r.mu.Unlock()

	otherID := ar.room.PartnerOf(byUserID)
	if other, ok := r.hub.Lookup(otherID); ok && other.GetRoomID() == roomID {
		other.Send(models.Notification{Type: models.NotifyPartnerLeft, RoomID: roomID, Reason: reason})
		releaseRoom(other, roomID)
	}
	if self, ok := r.hub.Lookup(byUserID); ok {
		releaseRoom(self, roomID)
	}
	ar.mu.Unlock()

	logx.Info("Chat ended", "room_id", roomID, "by", byUserID, "reason", reason)

	if err := r.rooms.CloseRoom(ctx, roomID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to close room %s: %w", roomID, err)
	}
	return nil
}

// History returns up to limit of the latest messages of roomID, oldest first. Only
// participants may read it; ended rooms are checked against the durable record.
func (r *RelayService) History(ctx context.Context, c Client, roomID string, limit int) ([]models.HistoryItem, error) {
	userID := c.GetUserID()

	if ar := r.lookup(roomID); ar != nil {
		if !ar.room.HasParticipant(userID) {
			return nil, errs.New(errs.ErrNotInRoom)
		}
	} else {
		room, err := r.rooms.GetRoomByID(ctx, roomID)
		if errors.Is(err, storage.ErrRoomNotFound) {
			return nil, errs.New(errs.ErrRoomNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
		}
		if !room.HasParticipant(userID) {
			return nil, errs.New(errs.ErrNotInRoom)
		}
	}

	switch {
	case limit <= 0:
		limit = config.DefaultHistoryLimit
	case limit > config.MaxHistoryLimit:
		limit = config.MaxHistoryLimit
	}

	history, err := r.rooms.GetChatHistory(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", roomID, err)
	}

	return lo.Map(history, func(m models.ChatHistory, _ int) models.HistoryItem {
		return models.HistoryItem{
			Username: m.SenderName,
			Text:     m.Content,
			SentAt:   m.SentAt,
			IsOwn:    m.SenderID == userID,
		}
	}), nil
}

// RecoverActiveRooms closes rooms a previous process left active. Their
// connections died with that process, so none of them can continue.
func (r *RelayService) RecoverActiveRooms(ctx context.Context) (int, error) {
	roomIDs, err := r.rooms.GetActiveRoomIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve active rooms: %w", err)
	}

	now := time.Now().UTC()
	closed := 0
	for _, roomID := range roomIDs {
		if r.lookup(roomID) != nil {
			continue
		}
		if err := r.rooms.CloseRoom(ctx, roomID, now); err != nil {
			logx.Error(err, "Failed to close stale room", "room_id", roomID)
			continue
		}
		closed++
	}

	logx.Info("Recovery complete", "found", len(roomIDs), "closed", closed)
	return closed, nil
}
