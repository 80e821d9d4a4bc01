// Package chathub implements the real-time side of the chat: presence, the
// matchmaker, the per-room relay and the WebSocket transport.
package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/errs"
	"anonchat/backend/internal/pkg/logx"
	"anonchat/backend/internal/storage"

	"github.com/go-playground/validator/v10"
)

// Hub routes inbound events of every connection to the services.
type Hub struct {
	Presence *ManagerService
	Matcher  *MatcherService
	Relay    *RelayService

	validate *validator.Validate
}

func NewHub(store storage.Storage, publisher MessagePublisher) *Hub {
	presence := NewManagerService()
	relay := NewRelayService(presence, store, store, publisher)

	return &Hub{
		Presence: presence,
		Matcher:  NewMatcherService(presence, relay, store, store),
		Relay:    relay,
		validate: validator.New(),
	}
}

type loginParams struct {
	UserID   string `validate:"required,max=128"`
	Username string `validate:"required,max=64"`
	Lang     string `validate:"omitempty,alpha,max=8"`
}

type sendParams struct {
	RoomID string `validate:"required"`
	Text   string `validate:"required"`
}

type roomParams struct {
	RoomID string `validate:"required"`
}

type historyParams struct {
	RoomID string `validate:"required"`
	Limit  int    `validate:"gte=0"`
}

// HandleEvent decodes and executes one raw inbound event from c. Every rejection
// is reported to c as an error notification.
func (h *Hub) HandleEvent(ctx context.Context, c Client, raw []byte) {
	if !c.Allow() {
		h.fail(c, errs.New(errs.ErrRateLimited), errs.ErrUnknown)
		return
	}

	var evt models.InboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		h.fail(c, errs.New(errs.ErrInvalidJSON), errs.ErrUnknown)
		return
	}

	if evt.Type == models.EventLogin {
		h.fail(c, h.login(c, evt), errs.ErrUnknown)
		return
	}

	if c.GetUserID() == "" {
		switch evt.Type {
		case models.EventFindPartner, models.EventSend, models.EventEnd, models.EventHistoryRequest:
			h.fail(c, errs.New(errs.ErrLoginRequired), errs.ErrUnknown)
		default:
			h.fail(c, errs.New(errs.ErrUnknownEventType), errs.ErrUnknown)
		}
		return
	}

	switch evt.Type {
	case models.EventFindPartner:
		h.fail(c, h.Matcher.FindPartner(ctx, c), errs.ErrMatchFailed)

	case models.EventSend:
		p := sendParams{RoomID: evt.RoomID, Text: evt.Text}
		if err := h.validate.Struct(p); err != nil || strings.TrimSpace(p.Text) == "" {
			h.fail(c, errs.New(errs.ErrInvalidParams), errs.ErrUnknown)
			return
		}
		if utf8.RuneCountInString(p.Text) > config.MaxMessageLength {
			h.fail(c, errs.New(errs.ErrMessageTooLong), errs.ErrUnknown)
			return
		}
		h.fail(c, h.Relay.Relay(ctx, c, p.RoomID, p.Text), errs.ErrUnknown)

	case models.EventEnd:
		p := roomParams{RoomID: evt.RoomID}
		if p.RoomID == "" {
			p.RoomID = c.GetRoomID()
		}
		if err := h.validate.Struct(p); err != nil {
			h.fail(c, errs.New(errs.ErrNotInRoom), errs.ErrUnknown)
			return
		}
		h.fail(c, h.Relay.EndChat(ctx, p.RoomID, c.GetUserID(), ReasonEnded), errs.ErrEndChatFailed)

	case models.EventHistoryRequest:
		p := historyParams{RoomID: evt.RoomID, Limit: evt.Limit}
		if err := h.validate.Struct(p); err != nil {
			h.fail(c, errs.New(errs.ErrInvalidParams), errs.ErrUnknown)
			return
		}
		items, err := h.Relay.History(ctx, c, p.RoomID, p.Limit)
		if err != nil {
			h.fail(c, err, errs.ErrHistoryFailed)
			return
		}
		c.Send(models.Notification{Type: models.NotifyHistory, RoomID: p.RoomID, Messages: items})

	default:
		h.fail(c, errs.New(errs.ErrUnknownEventType), errs.ErrUnknown)
	}
}

func (h *Hub) login(c Client, evt models.InboundEvent) error {
	p := loginParams{UserID: evt.UserID, Username: evt.Username, Lang: evt.Lang}
	if err := h.validate.Struct(p); err != nil {
		return errs.New(errs.ErrInvalidParams)
	}

	if auth := c.AuthenticatedID(); auth != "" && auth != p.UserID {
		return errs.New(errs.ErrIdentityMismatch)
	}
	if current := c.GetUserID(); current != "" {
		if current != p.UserID {
			return errs.New(errs.ErrIdentityMismatch)
		}
		c.SetLang(p.Lang)
		return nil
	}

	c.SetIdentity(models.Identity{UserID: p.UserID, Username: p.Username})
	c.SetLang(p.Lang)
	h.Presence.Register(c)

	logx.Info("User logged in", "user_id", p.UserID, "conn_id", c.ConnID())
	return nil
}

// Disconnect tears down everything c owns: queue entries, its room and its
// presence mapping.
func (h *Hub) Disconnect(ctx context.Context, c Client) {
	if c.GetUserID() == "" {
		return
	}

	h.Matcher.RemoveConnection(ctx, c)

	if roomID := c.GetRoomID(); roomID != "" {
		if err := h.Relay.EndChat(ctx, roomID, c.GetUserID(), ReasonDisconnected); err != nil {
			logx.Error(err, "Error ending chat on disconnect", "room_id", roomID, "user_id", c.GetUserID())
		}
	}

	h.Presence.Remove(c)
}

// fail reports err to c. Errors that are not a *errs.ChatError are logged and
// reported under fallback.
func (h *Hub) fail(c Client, err error, fallback int) {
	if err == nil {
		return
	}

	var chatErr *errs.ChatError
	if !errors.As(err, &chatErr) {
		logx.Error(err, "Event failed", "user_id", c.GetUserID(), "conn_id", c.ConnID())
		chatErr = errs.New(fallback)
	}
	c.Send(models.Notification{Type: models.NotifyError, Reason: chatErr.Reason})
}
