package models

import (
	"encoding/json"
	"time"
)

// ChangeEvent reports that the value at Path was written or deleted.
type ChangeEvent struct {
	Path    string          `json:"path"`
	Value   json.RawMessage `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
	At      time.Time       `json:"at"`
}

type NotificationKind string

const (
	NotifyConversationRequest NotificationKind = "conversation_request"
	NotifyRequestResolved     NotificationKind = "request_resolved"
	NotifyNewMessage          NotificationKind = "new_message"
)

// Notification is a fire-and-forget signal addressed to one user.
type Notification struct {
	UserID  string            `json:"user_id"`
	Kind    NotificationKind  `json:"kind"`
	Payload map[string]string `json:"payload,omitempty"`
	At      time.Time         `json:"at"`
}

func NotificationsPath(userID string) string {
	return "notifications/" + userID
}

// Notification payload keys.
const (
	PayloadRequestID      = "request_id"
	PayloadPairKey        = "pair_key"
	PayloadSenderID       = "sender_id"
	PayloadSenderName     = "sender_name"
	PayloadResponderName  = "responder_name"
	PayloadDecision       = "decision"
	PayloadConversationID = "conversation_id"
	PayloadSeq            = "seq"
	PayloadContent        = "content"
)
