package handler

import (
	"errors"
	"fmt"
	"meetinclick/backend/internal/config"
	apperr "meetinclick/backend/pkg/errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

var errEmptySecret = errors.New("auth: empty signing secret")

// Claims carried by every API token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Authenticator видає та перевіряє HS256 токени.
type Authenticator struct {
	secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	return &Authenticator{secret: []byte(secret), TTL: config.TokenTTL, now: time.Now}, nil
}

// Issue генерує JWT для користувача
func (a *Authenticator) Issue(userID string) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse валідує токен і повертає user_id.
func (a *Authenticator) Parse(tokenString string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}
	if claims.UserID == "" {
		return "", errors.New("auth: token has no user_id")
	}
	return claims.UserID, nil
}

// RequireAuth accepts "Authorization: Bearer <jwt>" or, for browsers
// opening a WebSocket, a token query parameter.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			h.fail(c, apperr.ErrUnauthorized)
			return
		}
		userID, err := h.Auth.Parse(tokenString)
		if err != nil {
			h.log.WithError(err).Debug("token rejected")
			h.fail(c, apperr.ErrUnauthorized)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
