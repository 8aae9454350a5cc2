package chathub_test

import (
	"meetinclick/backend/internal/chathub"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type MockClient struct {
	userID      string
	RecvChannel chan chathub.Envelope
	closed      chan struct{}
	once        sync.Once
}

func newMockClient(userID string) *MockClient {
	return &MockClient{
		userID:      userID,
		RecvChannel: make(chan chathub.Envelope, 16),
		closed:      make(chan struct{}),
	}
}

func (c *MockClient) GetUserID() string {
	return c.userID
}

func (c *MockClient) GetSendChannel() chan<- chathub.Envelope {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.once.Do(func() { close(c.closed) })
}

// next waits for the next envelope delivered to the client.
func (c *MockClient) next(t *testing.T) chathub.Envelope {
	t.Helper()
	select {
	case env := <-c.RecvChannel:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s received nothing", c.userID)
		return chathub.Envelope{}
	}
}

func (c *MockClient) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s was not closed", c.userID)
	}
}

func (c *MockClient) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case env := <-c.RecvChannel:
		require.Failf(t, "unexpected envelope", "%+v", env)
	case <-time.After(50 * time.Millisecond):
	}
}
