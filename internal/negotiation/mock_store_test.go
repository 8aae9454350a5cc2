package negotiation_test

import (
	"context"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	apperr "meetinclick/backend/pkg/errors"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of kv.Store for failure paths.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(path)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, path string, value []byte) error {
	return m.Called(path, value).Error(0)
}

func (m *MockStore) Update(ctx context.Context, path string, fn kv.UpdateFunc) error {
	return m.Called(path).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, path string) error {
	return m.Called(path).Error(0)
}

func (m *MockStore) Subscribe(ctx context.Context, path string) (*kv.Subscription, error) {
	args := m.Called(path)
	if s := args.Get(0); s != nil {
		return s.(*kv.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

// userTable is a fixed id -> username directory.
type userTable map[string]string

func (u userTable) GetUserByID(_ context.Context, id string) (*models.User, error) {
	name, ok := u[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return &models.User{ID: id, Username: name}, nil
}
