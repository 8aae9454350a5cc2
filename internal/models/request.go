package models

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDeclined RequestStatus = "declined"
)

// Decision is the recipient's answer to a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDecline Decision = "decline"
)

// Status maps a decision to the terminal request status it produces.
func (d Decision) Status() (RequestStatus, bool) {
	switch d {
	case DecisionApprove:
		return RequestApproved, true
	case DecisionDecline:
		return RequestDeclined, true
	}
	return "", false
}

// PairKey identifies an unordered pair of users. Both orderings of the same
// two ids produce the same key.
type PairKey string

const pairSeparator = "_"

// NewPairKey orders a and b lexicographically and joins them.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey(a + pairSeparator + b)
}

// Users splits the key back into its two ids, smaller first. User ids are
// UUIDs and never contain the separator.
func (k PairKey) Users() (string, string, bool) {
	first, second, ok := strings.Cut(string(k), pairSeparator)
	if !ok || first == "" || second == "" {
		return "", "", false
	}
	return first, second, true
}

func (k PairKey) String() string { return string(k) }

// RequestPath is the store path of the request record for the pair.
func (k PairKey) RequestPath() string {
	return RequestsPath + "/" + string(k)
}

const RequestsPath = "requests"

// ConversationRequest is the single ledger record for a pair of users.
type ConversationRequest struct {
	ID          string        `json:"id"`
	PairKey     PairKey       `json:"pair_key"`
	SenderID    string        `json:"sender_id"`
	RecipientID string        `json:"recipient_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`
}

// Involves reports whether userID is the sender or the recipient.
func (r *ConversationRequest) Involves(userID string) bool {
	return r.SenderID == userID || r.RecipientID == userID
}

// PairStatus is the state of a pair as seen by one of its two users.
type PairStatus string

const (
	PairNone            PairStatus = "none"
	PairPendingSent     PairStatus = "pending_sent"
	PairPendingReceived PairStatus = "pending_received"
	PairApproved        PairStatus = "approved"
	PairDeclined        PairStatus = "declined"
)

// Pending reports whether the pair waits for an answer in either direction.
func (s PairStatus) Pending() bool {
	return s == PairPendingSent || s == PairPendingReceived
}

// StatusFor derives the pair status from viewerID's side. A nil request
// means no request was ever sent.
func StatusFor(req *ConversationRequest, viewerID string) PairStatus {
	if req == nil {
		return PairNone
	}
	switch req.Status {
	case RequestApproved:
		return PairApproved
	case RequestDeclined:
		return PairDeclined
	case RequestPending:
		if req.SenderID == viewerID {
			return PairPendingSent
		}
		return PairPendingReceived
	}
	return PairNone
}
