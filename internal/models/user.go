package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// MainCategory is the activity a user wants to meet for.
type MainCategory string

const (
	CategoryConversation  MainCategory = "Conversation"
	CategorySportActivity MainCategory = "Sport Activity"
	CategoryTravel        MainCategory = "Travel"
	CategoryClubbing      MainCategory = "Clubbing"
)

// MainCategories lists the closed set of categories in display order.
var MainCategories = []MainCategory{
	CategoryConversation,
	CategorySportActivity,
	CategoryTravel,
	CategoryClubbing,
}

// Valid reports whether c is one of MainCategories.
func (c MainCategory) Valid() bool {
	for _, known := range MainCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Location is a last-known latitude/longitude pair in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// User is a registered member. MainCategory and ConversationTopics are filled
// during onboarding; until then the user never matches anyone.
type User struct {
	ID                 string         `gorm:"primaryKey" json:"id"`
	Username           string         `gorm:"uniqueIndex;not null" json:"username"`
	MainCategory       *MainCategory  `gorm:"type:text;index" json:"main_category,omitempty"`
	ConversationTopics pq.StringArray `gorm:"type:text[]" json:"conversation_topics"`
	Latitude           *float64       `json:"latitude,omitempty"`
	Longitude          *float64       `json:"longitude,omitempty"`
	Gender             string         `json:"gender,omitempty"`
	Age                int            `json:"age,omitempty"`
	ProfileImage       string         `json:"profile_image,omitempty"`
	TelegramChatID     *int64         `gorm:"uniqueIndex" json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the ID is empty.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Location returns nil unless both coordinates are known.
func (u *User) Location() *Location {
	if u.Latitude == nil || u.Longitude == nil {
		return nil
	}
	return &Location{Latitude: *u.Latitude, Longitude: *u.Longitude}
}

// SetLocation stores loc, or clears the coordinates when loc is nil.
func (u *User) SetLocation(loc *Location) {
	if loc == nil {
		u.Latitude, u.Longitude = nil, nil
		return
	}
	lat, lng := loc.Latitude, loc.Longitude
	u.Latitude, u.Longitude = &lat, &lng
}

// HasCompletedOnboarding reports whether the user picked a category and at
// least one topic.
func (u *User) HasCompletedOnboarding() bool {
	return u.MainCategory != nil && *u.MainCategory != "" && len(u.ConversationTopics) > 0
}

// Path is the semantic store path of the user record.
func (u *User) Path() string {
	return UserPath(u.ID)
}

func UserPath(id string) string {
	return "users/" + id
}

// UsersPath is the parent of every user path.
const UsersPath = "users"
