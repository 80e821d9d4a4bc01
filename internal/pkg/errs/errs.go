/*
Package errs holds the error codes reported to chat clients.

Every code maps to a stable machine-readable reason (sent in the `reason` field of an
`error` notification) and a default human message.
*/
package errs

import "fmt"

const (
	// 1xxx: malformed or unsupported input
	ErrInvalidJSON      = 1001
	ErrUnknownEventType = 1002
	ErrInvalidParams    = 1003
	ErrMessageTooLong   = 1004
	ErrRateLimited      = 1005

	// 2xxx: session and room state
	ErrLoginRequired    = 2001
	ErrIdentityMismatch = 2002
	ErrNotInRoom        = 2003
	ErrAlreadyInRoom    = 2004
	ErrRoomNotFound     = 2005

	// 5xxx: internal failures surfaced to the caller
	ErrMatchFailed   = 5001
	ErrEndChatFailed = 5002
	ErrHistoryFailed = 5003
	ErrUnknown       = 5000
)

// ChatError is an error that can be reported to a client as-is.
type ChatError struct {
	Code    int
	Reason  string
	Message string
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("chat error %d (%s): %s", e.Code, e.Reason, e.Message)
}

var errorMap = map[int]ChatError{
	ErrInvalidJSON:      {Reason: "invalid_json", Message: "Message could not be parsed."},
	ErrUnknownEventType: {Reason: "unknown_event", Message: "Unsupported event type."},
	ErrInvalidParams:    {Reason: "invalid_params", Message: "Invalid event parameters."},
	ErrMessageTooLong:   {Reason: "message_too_long", Message: "Message is too long."},
	ErrRateLimited:      {Reason: "rate_limited", Message: "Too many messages. Slow down."},

	ErrLoginRequired:    {Reason: "login_required", Message: "Log in before chatting."},
	ErrIdentityMismatch: {Reason: "identity_mismatch", Message: "Login does not match your session."},
	ErrNotInRoom:        {Reason: "not_in_room", Message: "You are not in this chat."},
	ErrAlreadyInRoom:    {Reason: "already_in_room", Message: "You are already in a chat."},
	ErrRoomNotFound:     {Reason: "room_not_found", Message: "Chat not found."},

	ErrMatchFailed:   {Reason: "match_failed", Message: "Failed to find chat partner."},
	ErrEndChatFailed: {Reason: "end_chat_failed", Message: "Failed to end chat."},
	ErrHistoryFailed: {Reason: "history_failed", Message: "Failed to load chat history."},
	ErrUnknown:       {Reason: "internal", Message: "Something went wrong."},
}

// New returns the ChatError for code, falling back to ErrUnknown.
func New(code int) *ChatError {
	tmpl, ok := errorMap[code]
	if !ok {
		code = ErrUnknown
		tmpl = errorMap[ErrUnknown]
	}
	tmpl.Code = code
	return &tmpl
}
