package chat

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stafflink/go-chat-core/internal/assistant"
	"github.com/stafflink/go-chat-core/internal/config"
	"github.com/stafflink/go-chat-core/internal/domain"
	"github.com/stafflink/go-chat-core/internal/repo"
)

// ----- Fake connection -----

type fakePusher struct {
	id string

	mu     sync.Mutex
	events []Envelope
	closed []string
}

func newFakePusher(id string) *fakePusher { return &fakePusher{id: id} }

func (p *fakePusher) ID() string { return p.id }

func (p *fakePusher) Push(ev Envelope) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *fakePusher) CloseWithReason(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, reason)
}

func (p *fakePusher) snapshot() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, len(p.events))
	copy(out, p.events)
	return out
}

func (p *fakePusher) count(event string) int {
	n := 0
	for _, ev := range p.snapshot() {
		if ev.Event == event {
			n++
		}
	}
	return n
}

// lastError returns the most recent error event pushed, if any.
func (p *fakePusher) lastError() (ErrorEvent, bool) {
	evs := p.snapshot()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Event == EventError {
			e, _ := evs[i].Data.(ErrorEvent)
			return e, true
		}
	}
	return ErrorEvent{}, false
}

// ----- Fake store -----

type fakeStore struct {
	mu sync.Mutex

	direct    []*domain.DirectMessage
	groupMsgs []*domain.GroupMessage
	groups    map[string]*domain.Group

	// directFailOn makes the Nth CreateDirectMessage call fail (1-based).
	directFailOn int
	directCalls  int

	groupMsgErr   error
	getGroupErr   error
	listErr       error
	lastMsgErr    error
	lastMsgCalls  int
	memberGroups  map[string][]domain.Group
	failDirectErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:        make(map[string]*domain.Group),
		memberGroups:  make(map[string][]domain.Group),
		failDirectErr: errDBDown,
	}
}

var errDBDown = &storeErr{"db down"}

type storeErr struct{ msg string }

func (e *storeErr) Error() string { return e.msg }

func (s *fakeStore) CreateDirectMessage(_ context.Context, senderID *string, recipientID, text string, fromAssistant bool) (*domain.DirectMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directCalls++
	if s.directFailOn != 0 && s.directCalls == s.directFailOn {
		return nil, s.failDirectErr
	}
	m := &domain.DirectMessage{
		ID:              uuid.NewString(),
		SenderID:        senderID,
		RecipientID:     recipientID,
		Text:            text,
		IsFromAssistant: fromAssistant,
		CreatedAt:       time.Now().UTC(),
	}
	s.direct = append(s.direct, m)
	return m, nil
}

func (s *fakeStore) CreateGroupMessage(_ context.Context, groupID, senderID, text string) (*domain.GroupMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupMsgErr != nil {
		return nil, s.groupMsgErr
	}
	m := &domain.GroupMessage{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	s.groupMsgs = append(s.groupMsgs, m)
	return m, nil
}

func (s *fakeStore) UpdateGroupLastMessage(_ context.Context, groupID, text, senderID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsgCalls++
	return s.lastMsgErr
}

func (s *fakeStore) GetGroup(_ context.Context, groupID string) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getGroupErr != nil {
		return nil, s.getGroupErr
	}
	g, ok := s.groups[groupID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return g, nil
}

func (s *fakeStore) ListActiveGroupsByMember(_ context.Context, userID string) ([]domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.memberGroups[userID], nil
}

func (s *fakeStore) directMessages() []*domain.DirectMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.DirectMessage, len(s.direct))
	copy(out, s.direct)
	return out
}

// addGroup registers a group whose members are plain member roles except the
// first, which is the owner.
func (s *fakeStore) addGroup(id string, active bool, settings domain.GroupSettings, memberIDs ...string) *domain.Group {
	g := &domain.Group{
		ID:       id,
		Name:     "Team " + id,
		Active:   active,
		Settings: settings,
	}
	for i, uid := range memberIDs {
		role := domain.RoleMember
		if i == 0 {
			role = domain.RoleOwner
			g.OwnerID = uid
		}
		g.Members = append(g.Members, domain.GroupMember{GroupID: id, UserID: uid, Role: role})
	}
	s.mu.Lock()
	s.groups[id] = g
	s.mu.Unlock()
	return g
}

// ----- Core construction -----

func testWSConfig() config.WSConfig {
	return config.WSConfig{
		WriteWait:      time.Second,
		PongWait:       time.Minute,
		PingPeriod:     50 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     32,
	}
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		DedupTTL:        time.Minute,
		DedupSweep:      30 * time.Second,
		MaxMessageRunes: 100,
		AssistantUserID: "bot",
	}
}

func queryAuth() Authenticator {
	return AuthenticatorFunc(func(r *http.Request) (Identity, error) {
		uid := r.URL.Query().Get("user_id")
		if uid == "" {
			return Identity{}, &storeErr{"no identity"}
		}
		return Identity{UserID: uid, DisplayName: "User " + uid}, nil
	})
}

func newTestCore(t *testing.T, store Store, delegate assistant.Delegate) *Core {
	t.Helper()
	if delegate == nil {
		delegate = assistant.DelegateFunc(func(context.Context, string, string) (string, error) {
			return "ok", nil
		})
	}
	return New(testWSConfig(), testChatConfig(), store, delegate, queryAuth(), zerolog.Nop())
}

func ident(userID string) Identity {
	return Identity{UserID: userID, DisplayName: "User " + userID}
}
