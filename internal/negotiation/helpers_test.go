package negotiation_test

import (
	"context"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/negotiation"
	"meetinclick/backend/internal/notify"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	alice = "alice"
	bob   = "bob"
	carol = "carol"
)

type recorder struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recorder) dispatcher() notify.Dispatcher {
	return notify.Func(func(_ context.Context, n models.Notification) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sent = append(r.sent, n)
		return nil
	})
}

func (r *recorder) kinds(userID string) []models.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NotificationKind
	for _, n := range r.sent {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}

type fixture struct {
	store      *kv.MemoryStore
	ledger     *negotiation.Ledger
	negotiator *negotiation.Negotiator
	notes      *recorder
}

func newFixture() *fixture {
	store := kv.NewMemoryStore(nil)
	notes := &recorder{}
	ledger := negotiation.NewLedger(store, notes.dispatcher())
	return &fixture{
		store:      store,
		ledger:     ledger,
		negotiator: negotiation.NewNegotiator(store, ledger, notes.dispatcher()),
		notes:      notes,
	}
}

// approvedConversation walks a pair through request, approval and start.
func (f *fixture) approvedConversation(t *testing.T, a, b string) string {
	t.Helper()
	ctx := context.Background()
	req, err := f.ledger.SendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = f.ledger.Respond(ctx, req.PairKey, b, models.DecisionApprove)
	require.NoError(t, err)
	id, err := f.negotiator.StartConversation(ctx, a, b)
	require.NoError(t, err)
	return id
}

func text(n int) string {
	return strings.Repeat("x", n)
}
