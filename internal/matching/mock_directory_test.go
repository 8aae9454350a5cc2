package matching_test

import (
	"context"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockDirectory is a testify mock of storage.UserDirectory.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDirectory) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) GetUserByTelegramID(ctx context.Context, chatID int64) (*models.User, error) {
	args := m.Called(ctx, chatID)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) ListTopicCandidates(ctx context.Context, category models.MainCategory, topics []string, excludeID string) ([]models.User, error) {
	args := m.Called(ctx, category, topics, excludeID)
	if users := args.Get(0); users != nil {
		return users.([]models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) SetMainCategory(ctx context.Context, id string, category models.MainCategory) (*models.User, error) {
	args := m.Called(ctx, id, category)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDirectory) SetConversationTopics(ctx context.Context, id string, topics []string) (*models.User, error) {
	args := m.Called(ctx, id, topics)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDirectory) SetLocation(ctx context.Context, id string, loc *models.Location) (*models.User, error) {
	args := m.Called(ctx, id, loc)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDirectory) LinkTelegram(ctx context.Context, id string, chatID int64) error {
	args := m.Called(ctx, id, chatID)
	return args.Error(0)
}

func (m *MockDirectory) Subscribe(ctx context.Context) (*kv.Subscription, error) {
	args := m.Called(ctx)
	if sub := args.Get(0); sub != nil {
		return sub.(*kv.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}
