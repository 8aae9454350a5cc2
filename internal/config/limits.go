package config

import "time"

const (
	// Messaging
	MaxCharacters = 100

	// Discovery
	DefaultInterestRadiusKm = 10.0

	// Profile
	MinAge         = 18
	MaxAge         = 99
	MinUsernameLen = 3
	MaxUsernameLen = 32

	// Store
	DefaultStoreTimeout = 5 * time.Second
	MaxUpdateRetries    = 16

	// Tokens
	TokenTTL    = 72 * time.Hour
	TokenIssuer = "meetinclick"
)
