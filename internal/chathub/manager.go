package chathub

import (
	"context"
	"encoding/json"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	apperr "meetinclick/backend/pkg/errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Conversations opens watches on conversations the viewer takes part in.
type Conversations interface {
	Subscribe(ctx context.Context, id, viewerID string) (*kv.Subscription, error)
}

// Requests opens watches on a pair's request record.
type Requests interface {
	Subscribe(ctx context.Context, pair models.PairKey) (*kv.Subscription, error)
}

// Candidates streams a user's candidate list.
type Candidates interface {
	Watch(ctx context.Context, userID string) (<-chan []models.User, error)
}

var errUnknownCommand = apperr.InvalidArg("UNKNOWN_COMMAND", "unknown command")

// ManagerService is the realtime hub. Run owns the clients map; everything
// else talks to it through the channels.
type ManagerService struct {
	clients map[Client]*session

	IncomingCh   chan Incoming
	RegisterCh   chan Client
	UnregisterCh chan Client

	Broker        kv.Broker
	Conversations Conversations
	Requests      Requests
	Matches       Candidates

	done chan struct{}
	log  *logrus.Entry
}

func NewManagerService(broker kv.Broker, conversations Conversations, requests Requests, matches Candidates) *ManagerService {
	return &ManagerService{
		clients:       make(map[Client]*session),
		IncomingCh:    make(chan Incoming),
		RegisterCh:    make(chan Client),
		UnregisterCh:  make(chan Client),
		Broker:        broker,
		Conversations: conversations,
		Requests:      requests,
		Matches:       matches,
		done:          make(chan struct{}),
		log:           logrus.WithField("component", "chathub"),
	}
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Run processes registrations and commands until ctx is cancelled, then
// releases every session.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	m.log.Info("hub started")

	for {
		select {
		case <-ctx.Done():
			for c, s := range m.clients {
				m.release(c, s)
			}
			m.log.Info("hub stopped")
			return

		case c := <-m.RegisterCh:
			if _, ok := m.clients[c]; ok {
				continue
			}
			s := newSession(ctx, c)
			m.clients[c] = s
			s.spawn(func() { m.forwardNotifications(s) })
			m.log.WithField("user_id", s.userID).Debug("client registered")

		case c := <-m.UnregisterCh:
			if s, ok := m.clients[c]; ok {
				m.release(c, s)
			}

		case in := <-m.IncomingCh:
			s, ok := m.clients[in.Client]
			if !ok {
				continue
			}
			cmd := in.Command
			s.spawn(func() { m.handleCommand(s, cmd) })
		}
	}
}

// Register hands c to the hub unless it has already stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// release cancels every watch of the session and closes the client once
// the last forwarder has returned.
func (m *ManagerService) release(c Client, s *session) {
	delete(m.clients, c)
	s.cancel()
	go func() {
		s.wg.Wait()
		c.Close()
	}()
	m.log.WithField("user_id", s.userID).Debug("client unregistered")
}

func (m *ManagerService) forwardNotifications(s *session) {
	sub, err := m.Broker.Subscribe(s.ctx, models.NotificationsPath(s.userID))
	if err != nil {
		m.log.WithError(err).WithField("user_id", s.userID).Warn("notification subscription failed")
		s.send(s.ctx, errorEnvelope("", apperr.StoreUnavailable(err)))
		return
	}
	defer sub.Close()
	s.pump(s.ctx, "", EnvNotification, sub)
}

func (m *ManagerService) handleCommand(s *session, cmd Command) {
	switch cmd.Type {
	case CmdWatchConversation, CmdWatchRequest:
		m.watchEvents(s, cmd)
	case CmdWatchMatches:
		m.watchMatches(s, cmd)
	case CmdUnwatch:
		s.stop(cmd.WatchID)
		s.send(s.ctx, Envelope{Type: EnvUnwatched, WatchID: cmd.WatchID})
	default:
		s.send(s.ctx, errorEnvelope("", errUnknownCommand))
	}
}

func (m *ManagerService) watchEvents(s *session, cmd Command) {
	id := watchID(cmd)
	ctx, w := s.begin(id)
	defer s.finish(id, w)

	sub, err := m.subscribe(ctx, s.userID, cmd)
	if err != nil {
		s.send(s.ctx, errorEnvelope(id, err))
		return
	}
	defer sub.Close()

	if !s.send(ctx, Envelope{Type: EnvWatching, WatchID: id}) {
		return
	}
	s.pump(ctx, id, EnvChange, sub)
}

func (m *ManagerService) subscribe(ctx context.Context, userID string, cmd Command) (*kv.Subscription, error) {
	if cmd.Type == CmdWatchConversation {
		if cmd.ConversationID == "" {
			return nil, apperr.ErrNoSuchConversation
		}
		return m.Conversations.Subscribe(ctx, cmd.ConversationID, userID)
	}
	if cmd.OtherUserID == "" || cmd.OtherUserID == userID {
		return nil, apperr.ErrInvalidTarget
	}
	return m.Requests.Subscribe(ctx, models.NewPairKey(userID, cmd.OtherUserID))
}

func (m *ManagerService) watchMatches(s *session, cmd Command) {
	if m.Matches == nil {
		s.send(s.ctx, errorEnvelope("", errUnknownCommand))
		return
	}
	id := watchID(cmd)
	ctx, w := s.begin(id)
	defer s.finish(id, w)

	lists, err := m.Matches.Watch(ctx, s.userID)
	if err != nil {
		s.send(s.ctx, errorEnvelope(id, err))
		return
	}
	if !s.send(ctx, Envelope{Type: EnvWatching, WatchID: id}) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case list, ok := <-lists:
			if !ok {
				return
			}
			data, err := json.Marshal(list)
			if err != nil {
				m.log.WithError(err).Error("candidate list not encodable")
				continue
			}
			if !s.send(ctx, Envelope{Type: EnvCandidates, WatchID: id, Data: data}) {
				return
			}
		}
	}
}

func errorEnvelope(watchID string, err error) Envelope {
	appErr, _ := apperr.As(apperr.StoreUnavailable(err))
	return Envelope{
		Type:    EnvError,
		WatchID: watchID,
		Code:    string(appErr.Code),
		Reason:  appErr.Reason,
		Message: appErr.Message,
	}
}

// session is one registered client with its open watches.
type session struct {
	userID string
	client Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	watches map[string]*watch
}

type watch struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(parent context.Context, c Client) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		userID:  c.GetUserID(),
		client:  c,
		ctx:     ctx,
		cancel:  cancel,
		watches: make(map[string]*watch),
	}
}

// spawn runs fn as a forwarder of the session. Only forwarders write to
// the client's send channel.
func (s *session) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *session) send(ctx context.Context, env Envelope) bool {
	if env.At.IsZero() {
		env.At = time.Now().UTC()
	}
	select {
	case s.client.GetSendChannel() <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *session) pump(ctx context.Context, id, kind string, sub *kv.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			env := Envelope{
				Type:    kind,
				WatchID: id,
				Path:    ev.Path,
				Deleted: ev.Deleted,
				Data:    ev.Value,
				At:      ev.At,
			}
			if !s.send(ctx, env) {
				return
			}
		}
	}
}

// begin registers a watch under id, replacing and stopping any previous one.
func (s *session) begin(id string) (context.Context, *watch) {
	ctx, cancel := context.WithCancel(s.ctx)
	w := &watch{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.watches[id]
	s.watches[id] = w
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}
	return ctx, w
}

func (s *session) finish(id string, w *watch) {
	s.mu.Lock()
	if s.watches[id] == w {
		delete(s.watches, id)
	}
	s.mu.Unlock()
	w.cancel()
	close(w.done)
}

// stop cancels the watch and waits until its subscription is released.
func (s *session) stop(id string) {
	s.mu.Lock()
	w := s.watches[id]
	s.mu.Unlock()
	if w == nil {
		return
	}
	w.cancel()
	<-w.done
}
