package models

// Identity is the authenticated user behind a connection. It never changes for the
// lifetime of that connection.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// QueueEntry is a waiting user's placeholder in the matchmaking queue.
// ConnID identifies the exact connection that asked, so an entry left behind by a
// dropped or superseded connection can be told apart from a live one.
type QueueEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	ConnID   string `json:"connId"`
}
