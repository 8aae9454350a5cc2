package storage

import (
	"context"
	"encoding/json"
	"errors"
	"meetinclick/backend/internal/config"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	apperr "meetinclick/backend/pkg/errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserDirectory is the read/write surface over registered users.
type UserDirectory interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, chatID int64) (*models.User, error)
	// ListTopicCandidates returns users in category sharing at least one of
	// topics, excluding excludeID. The result is a prefilter only.
	ListTopicCandidates(ctx context.Context, category models.MainCategory, topics []string, excludeID string) ([]models.User, error)

	SetMainCategory(ctx context.Context, id string, category models.MainCategory) (*models.User, error)
	SetConversationTopics(ctx context.Context, id string, topics []string) (*models.User, error)
	SetLocation(ctx context.Context, id string, loc *models.Location) (*models.User, error)
	LinkTelegram(ctx context.Context, id string, chatID int64) error

	// Subscribe delivers a change event whenever any profile changes.
	Subscribe(ctx context.Context) (*kv.Subscription, error)
}

type Service struct {
	DB     *gorm.DB
	Broker kv.Broker
	log    *logrus.Entry
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, broker kv.Broker) *Service {
	return &Service{
		DB:     db,
		Broker: broker,
		log:    logrus.WithField("component", "storage"),
	}
}

// Migrate creates or updates the users table.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(&models.User{})
}

// CreateUser validates and inserts a new user. ID is generated when empty.
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	user.Username = strings.TrimSpace(user.Username)
	if err := ValidateProfile(user); err != nil {
		return err
	}
	user.ConversationTopics = pq.StringArray(NormalizeTopics(user.ConversationTopics))

	err := s.DB.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrInvalidProfile.WithDetail("username %q is already taken", user.Username)
	}
	if err != nil {
		s.log.WithError(err).WithField("username", user.Username).Error("failed to create user")
		return apperr.StoreUnavailable(err)
	}
	s.log.WithField("user_id", user.ID).Info("new user registered")
	s.publish(ctx, user)
	return nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	return &user, nil
}

func (s *Service) GetUserByTelegramID(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	return &user, nil
}

func (s *Service) ListTopicCandidates(ctx context.Context, category models.MainCategory, topics []string, excludeID string) ([]models.User, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where("main_category = ?", category).
		Where("conversation_topics && ?", pq.Array(topics)).
		Where("id <> ?", excludeID).
		Order("created_at asc").
		Find(&users).Error
	if err != nil {
		s.log.WithError(err).Error("failed to list topic candidates")
		return nil, apperr.StoreUnavailable(err)
	}
	return users, nil
}

func (s *Service) SetMainCategory(ctx context.Context, id string, category models.MainCategory) (*models.User, error) {
	if !category.Valid() {
		return nil, apperr.ErrInvalidProfile.WithDetail("unknown main category %q", category)
	}
	return s.update(ctx, id, map[string]interface{}{"main_category": category})
}

func (s *Service) SetConversationTopics(ctx context.Context, id string, topics []string) (*models.User, error) {
	return s.update(ctx, id, map[string]interface{}{
		"conversation_topics": pq.StringArray(NormalizeTopics(topics)),
	})
}

// SetLocation stores the last known position; nil clears it.
func (s *Service) SetLocation(ctx context.Context, id string, loc *models.Location) (*models.User, error) {
	if loc != nil && !ValidCoordinates(*loc) {
		return nil, apperr.ErrInvalidProfile.WithDetail("coordinates out of range")
	}
	var u models.User
	u.SetLocation(loc)
	return s.update(ctx, id, map[string]interface{}{
		"latitude":  u.Latitude,
		"longitude": u.Longitude,
	})
}

func (s *Service) LinkTelegram(ctx context.Context, id string, chatID int64) error {
	_, err := s.update(ctx, id, map[string]interface{}{"telegram_chat_id": chatID})
	return err
}

func (s *Service) Subscribe(ctx context.Context) (*kv.Subscription, error) {
	sub, err := s.Broker.Subscribe(ctx, models.UsersPath)
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	return sub, nil
}

func (s *Service) update(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error) {
	fields["updated_at"] = time.Now()
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		s.log.WithError(res.Error).WithField("user_id", id).Error("failed to update user")
		return nil, apperr.StoreUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrUserNotFound
	}
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, user)
	return user, nil
}

// publish announces a committed profile change. Failures are only logged.
func (s *Service) publish(ctx context.Context, user *models.User) {
	if s.Broker == nil {
		return
	}
	value, err := json.Marshal(user)
	if err != nil {
		s.log.WithError(err).Error("failed to encode user change")
		return
	}
	err = s.Broker.Publish(ctx, models.ChangeEvent{
		Path:  user.Path(),
		Value: value,
		At:    time.Now().UTC(),
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("user change not published")
	}
}

// ValidateProfile checks the registration fields.
func ValidateProfile(u *models.User) error {
	n := len([]rune(u.Username))
	if n < config.MinUsernameLen || n > config.MaxUsernameLen {
		return apperr.ErrInvalidProfile.WithDetail("username must be %d to %d characters", config.MinUsernameLen, config.MaxUsernameLen)
	}
	if u.Age != 0 && (u.Age < config.MinAge || u.Age > config.MaxAge) {
		return apperr.ErrInvalidProfile.WithDetail("age must be between %d and %d", config.MinAge, config.MaxAge)
	}
	if u.MainCategory != nil && !u.MainCategory.Valid() {
		return apperr.ErrInvalidProfile.WithDetail("unknown main category %q", *u.MainCategory)
	}
	return nil
}

// NormalizeTopics trims tags and drops empty and repeated ones, keeping order.
// Case is preserved: "Music" and "music" are different topics.
func NormalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func ValidCoordinates(loc models.Location) bool {
	return loc.Latitude >= -90 && loc.Latitude <= 90 && loc.Longitude >= -180 && loc.Longitude <= 180
}
