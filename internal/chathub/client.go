package chathub

import (
	"encoding/json"
	"time"
)

// Client is the interface for any live connection the hub pushes to.
type Client interface {
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string

	// GetSendChannel returns the channel the hub writes envelopes to.
	// The hub never sends on it after Close.
	GetSendChannel() chan<- Envelope

	// Run starts the client's pumps.
	Run()
	// Close shuts the outgoing side down. Called by the hub exactly once,
	// after every forwarder of the session has stopped.
	Close()
}

// Command types accepted from clients.
const (
	CmdWatchConversation = "watch_conversation"
	CmdWatchRequest      = "watch_request"
	CmdWatchMatches      = "watch_matches"
	CmdUnwatch           = "unwatch"
)

// Envelope types sent to clients.
const (
	EnvNotification = "notification"
	EnvChange       = "change"
	EnvCandidates   = "candidates"
	EnvWatching     = "watching"
	EnvUnwatched    = "unwatched"
	EnvError        = "error"
)

// Command is a client request to start or stop a watch.
type Command struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	OtherUserID    string `json:"other_user_id,omitempty"`
	WatchID        string `json:"watch_id,omitempty"`
}

// Incoming pairs a command with the client that sent it.
type Incoming struct {
	Client  Client
	Command Command
}

// Envelope is one frame written to a client.
type Envelope struct {
	Type    string          `json:"type"`
	WatchID string          `json:"watch_id,omitempty"`
	Path    string          `json:"path,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Code    string          `json:"code,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
	At      time.Time       `json:"at"`
}

// Watch ids are derived from the command so that repeating a watch
// replaces the previous one.
func watchID(cmd Command) string {
	switch cmd.Type {
	case CmdWatchConversation:
		return "conversation:" + cmd.ConversationID
	case CmdWatchRequest:
		return "request:" + cmd.OtherUserID
	case CmdWatchMatches:
		return "matches"
	}
	return ""
}
