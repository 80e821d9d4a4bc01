package models

import "time"

// Inbound event types accepted from a connection.
const (
	EventLogin          = "login"
	EventFindPartner    = "find_partner"
	EventSend           = "send"
	EventEnd            = "end"
	EventHistoryRequest = "history_request"
)

// Outbound notification types.
const (
	NotifyWaiting           = "waiting"
	NotifyPaired            = "paired"
	NotifyMessage           = "message"
	NotifyPartnerLeft       = "partner_left"
	NotifyBlocked           = "blocked"
	NotifyPartnerBlocked    = "partner_blocked"
	NotifyHistory           = "history"
	NotifyError             = "error"
	NotifySessionSuperseded = "session_superseded"
)

// InboundEvent is the flat JSON envelope sent by clients. Which fields are
// required depends on Type.
type InboundEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	RoomID   string `json:"roomId,omitempty"`
	Text     string `json:"text,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

// Notification is everything the server pushes to a connection.
type Notification struct {
	Type        string        `json:"type"`
	RoomID      string        `json:"roomId,omitempty"`
	PartnerName string        `json:"partnerName,omitempty"`
	Username    string        `json:"username,omitempty"`
	Text        string        `json:"text,omitempty"`
	SentAt      *time.Time    `json:"sentAt,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
	Messages    []HistoryItem `json:"messages,omitempty"`
	// Message is a localized human-readable description.
	Message string `json:"message,omitempty"`
}
