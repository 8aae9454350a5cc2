package negotiation

import (
	"meetinclick/backend/internal/models"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Budget is a sender's character allowance in one conversation.
type Budget struct {
	Ceiling   int `json:"ceiling"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// StripWhitespace removes every Unicode whitespace rune.
func StripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// CharactersUsed is what content costs against the budget: its length in
// code points once whitespace is removed.
func CharactersUsed(content string) int {
	return utf8.RuneCountInString(StripWhitespace(content))
}

// UsedBy sums the cost of every message senderID already sent in conv.
func UsedBy(conv *models.Conversation, senderID string) int {
	used := 0
	for _, m := range conv.Messages {
		if m.SenderID == senderID {
			used += CharactersUsed(m.Content)
		}
	}
	return used
}

func BudgetFor(conv *models.Conversation, senderID string, ceiling int) Budget {
	used := UsedBy(conv, senderID)
	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	return Budget{Ceiling: ceiling, Used: used, Remaining: remaining}
}
