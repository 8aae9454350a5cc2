package matching

import (
	"context"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// MatcherService answers "who can I talk to" for a user.
type MatcherService struct {
	Directory storage.UserDirectory
	Proximity ProximityFilter
	log       *logrus.Entry
}

func NewMatcherService(dir storage.UserDirectory, proximity ProximityFilter) *MatcherService {
	return &MatcherService{
		Directory: dir,
		Proximity: proximity,
		log:       logrus.WithField("component", "matcher"),
	}
}

// Candidates returns the current candidate list for userID. Users who have
// not finished onboarding get an empty list.
func (m *MatcherService) Candidates(ctx context.Context, userID string) ([]models.User, error) {
	u, err := m.Directory.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.HasCompletedOnboarding() {
		return []models.User{}, nil
	}

	// the directory query is only a prefilter, the rules below decide
	pool, err := m.Directory.ListTopicCandidates(ctx, *u.MainCategory, u.ConversationTopics, u.ID)
	if err != nil {
		return nil, err
	}
	return m.Proximity.Apply(u, FilterCandidates(u, pool)), nil
}

// Watch emits the candidate list now and again after every profile change.
// The channel is closed when ctx is done.
func (m *MatcherService) Watch(ctx context.Context, userID string) (<-chan []models.User, error) {
	sub, err := m.Directory.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	initial, err := m.Candidates(ctx, userID)
	if err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan []models.User, 1)
	out <- initial

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				list, err := m.Candidates(ctx, userID)
				if err != nil {
					m.log.WithError(err).WithField("user_id", userID).Warn("candidate recompute failed")
					continue
				}
				select {
				case out <- list:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
