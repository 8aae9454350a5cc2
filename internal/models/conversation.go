package models

import "time"

// ConversationID is a pure function of the two participant ids, so both
// sides compute it without a lookup.
func ConversationID(a, b string) string {
	return string(NewPairKey(a, b))
}

func ConversationPath(id string) string {
	return ConversationsPath + "/" + id
}

const ConversationsPath = "conversations"

// Message is one entry of a conversation. Seq is assigned by the server and
// is unique and strictly increasing within the conversation.
type Message struct {
	Seq      int64     `json:"seq"`
	SenderID string    `json:"sender"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"date"`
}

// Conversation between exactly two users. User1 sorts before User2.
type Conversation struct {
	ID        string    `json:"id"`
	User1     string    `json:"user_1"`
	User2     string    `json:"user_2"`
	CreatedAt time.Time `json:"created_at"`
	NextSeq   int64     `json:"next_seq"`
	Messages  []Message `json:"messages"`
}

// NewConversation builds an empty conversation for the pair.
func NewConversation(a, b string, now time.Time) *Conversation {
	if b < a {
		a, b = b, a
	}
	return &Conversation{
		ID:        ConversationID(a, b),
		User1:     a,
		User2:     b,
		CreatedAt: now,
		NextSeq:   1,
		Messages:  []Message{},
	}
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.User1 == userID || c.User2 == userID)
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.User1 == userID {
		return c.User2
	}
	return c.User1
}

// LastMessage returns nil for an empty conversation.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}
