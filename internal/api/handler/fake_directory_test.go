package handler_test

import (
	"context"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/storage"
	apperr "meetinclick/backend/pkg/errors"
	"sync"

	"github.com/lib/pq"
)

// fakeDirectory keeps users in memory. User ids equal usernames.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]models.User
}

var _ storage.UserDirectory = (*fakeDirectory)(nil)

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]models.User)}
}

func (d *fakeDirectory) CreateUser(_ context.Context, user *models.User) error {
	if err := storage.ValidateProfile(user); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.Username]; ok {
		return apperr.ErrInvalidProfile.WithDetail("username taken")
	}
	user.ID = user.Username
	user.ConversationTopics = pq.StringArray(storage.NormalizeTopics(user.ConversationTopics))
	d.users[user.ID] = *user
	return nil
}

func (d *fakeDirectory) GetUserByID(_ context.Context, id string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return &u, nil
}

func (d *fakeDirectory) GetUserByTelegramID(_ context.Context, chatID int64) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.TelegramChatID != nil && *u.TelegramChatID == chatID {
			return &u, nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (d *fakeDirectory) ListTopicCandidates(_ context.Context, category models.MainCategory, topics []string, excludeID string) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.User
	for _, u := range d.users {
		if u.ID == excludeID || u.MainCategory == nil || *u.MainCategory != category {
			continue
		}
		if overlaps(u.ConversationTopics, topics) {
			out = append(out, u)
		}
	}
	return out, nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func (d *fakeDirectory) modify(id string, fn func(u *models.User)) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	fn(&u)
	d.users[id] = u
	return &u, nil
}

func (d *fakeDirectory) SetMainCategory(_ context.Context, id string, category models.MainCategory) (*models.User, error) {
	if !category.Valid() {
		return nil, apperr.ErrInvalidProfile
	}
	return d.modify(id, func(u *models.User) { u.MainCategory = &category })
}

func (d *fakeDirectory) SetConversationTopics(_ context.Context, id string, topics []string) (*models.User, error) {
	return d.modify(id, func(u *models.User) {
		u.ConversationTopics = pq.StringArray(storage.NormalizeTopics(topics))
	})
}

func (d *fakeDirectory) SetLocation(_ context.Context, id string, loc *models.Location) (*models.User, error) {
	if loc != nil && !storage.ValidCoordinates(*loc) {
		return nil, apperr.ErrInvalidProfile
	}
	return d.modify(id, func(u *models.User) { u.SetLocation(loc) })
}

func (d *fakeDirectory) LinkTelegram(_ context.Context, id string, chatID int64) error {
	_, err := d.modify(id, func(u *models.User) { u.TelegramChatID = &chatID })
	return err
}

func (d *fakeDirectory) Subscribe(ctx context.Context) (*kv.Subscription, error) {
	return kv.NewMemoryBroker().Subscribe(ctx, models.UsersPath)
}
