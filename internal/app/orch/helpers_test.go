package orch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type frame struct {
	Event string
	Data  json.RawMessage
}

type recSignal struct {
	mu     sync.Mutex
	frames []frame
}

func (s *recSignal) TrySend(f core.Frame) error {
	var env app.Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, frame{Event: env.Event, Data: env.Data})
	s.mu.Unlock()
	return nil
}

func (s *recSignal) Close() {}

func (s *recSignal) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, f.Event)
	}
	return out
}

func (s *recSignal) reset() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
}

// last decodes the data of the most recent event with the given name.
func (s *recSignal) last(t *testing.T, event string, v any) bool {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Event == event {
			if v != nil {
				require.NoError(t, json.Unmarshal(s.frames[i].Data, v))
			}
			return true
		}
	}
	return false
}

func (s *recSignal) lastSnapshot(t *testing.T) []core.MemberDTO {
	t.Helper()
	var snap []core.MemberDTO
	require.True(t, s.last(t, app.EventRoomUsers, &snap), "no roomUsers event")
	return snap
}

// fakeStore is an in-memory core.Store.
type fakeStore struct {
	mu        sync.Mutex
	passwords map[domain.RoomID]string
	bans      []domain.Ban
	roles     map[string]domain.Role
	messages  []domain.Message
	lastSeen  map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		passwords: make(map[domain.RoomID]string),
		roles:     make(map[string]domain.Role),
		lastSeen:  make(map[string]time.Time),
	}
}

func (s *fakeStore) setPassword(t *testing.T, id domain.RoomID, plain string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	s.mu.Lock()
	s.passwords[id] = string(hash)
	s.mu.Unlock()
}

func (s *fakeStore) RoomPasswordHash(_ context.Context, id domain.RoomID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.passwords[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return hash, nil
}

func (s *fakeStore) InsertBan(_ context.Context, ban domain.Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans = append(s.bans, ban)
	return nil
}

func (s *fakeStore) IsBanned(_ context.Context, username string, id domain.RoomID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bans {
		if b.Username == username && b.RoomID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) SetUserRole(_ context.Context, username string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[username] = role
	return nil
}

func (s *fakeStore) InsertMessage(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeStore) TouchLastSeen(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[username] = at
	return nil
}

func (s *fakeStore) ActiveUsers(_ context.Context, since time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for name, at := range s.lastSeen {
		if !at.Before(since) {
			out = append(out, name)
		}
	}
	return out, nil
}

func (s *fakeStore) ListMessages(_ context.Context, id domain.RoomID, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.RoomID == id {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) CreateRoom(context.Context, domain.NewRoom) (domain.Room, error) {
	return domain.Room{}, nil
}

func (s *fakeStore) ListRooms(context.Context) ([]domain.Room, error) { return nil, nil }

func (s *fakeStore) SetRoomOfficial(context.Context, domain.RoomID, bool) error { return nil }

func (s *fakeStore) Stats(context.Context, time.Time, time.Time) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Stats{Users: len(s.lastSeen), Messages: len(s.messages)}, nil
}

func (s *fakeStore) Close() error { return nil }

// mockStore lets a test script failures or assert that no call happened.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) RoomPasswordHash(ctx context.Context, id domain.RoomID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *mockStore) InsertBan(ctx context.Context, ban domain.Ban) error {
	return m.Called(ctx, ban).Error(0)
}

func (m *mockStore) IsBanned(ctx context.Context, username string, id domain.RoomID) (bool, error) {
	args := m.Called(ctx, username, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) SetUserRole(ctx context.Context, username string, role domain.Role) error {
	return m.Called(ctx, username, role).Error(0)
}

func (m *mockStore) InsertMessage(ctx context.Context, msg domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockStore) TouchLastSeen(ctx context.Context, username string, at time.Time) error {
	return m.Called(ctx, username, at).Error(0)
}

func (m *mockStore) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	args := m.Called(ctx, since)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *mockStore) ListMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, id, limit)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}

func (m *mockStore) CreateRoom(ctx context.Context, room domain.NewRoom) (domain.Room, error) {
	args := m.Called(ctx, room)
	r, _ := args.Get(0).(domain.Room)
	return r, args.Error(1)
}

func (m *mockStore) ListRooms(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]domain.Room)
	return rooms, args.Error(1)
}

func (m *mockStore) SetRoomOfficial(ctx context.Context, id domain.RoomID, official bool) error {
	return m.Called(ctx, id, official).Error(0)
}

func (m *mockStore) Stats(ctx context.Context, activeSince, weekSince time.Time) (domain.Stats, error) {
	args := m.Called(ctx, activeSince, weekSince)
	st, _ := args.Get(0).(domain.Stats)
	return st, args.Error(1)
}

func (m *mockStore) Close() error { return m.Called().Error(0) }

var fixedNow = time.Date(2026, time.March, 3, 14, 5, 9, 0, time.UTC)

func newTestOrch(store core.Store) *Orchestrator {
	o := New(store, app.DropPolicy{})
	o.DefaultAvatar = "/images/default-avatar.png"
	o.EnforceBans = true
	o.Now = func() time.Time { return fixedNow }
	return o
}

func connect(o *Orchestrator, id core.ConnID) *recSignal {
	sig := &recSignal{}
	o.Connect(id, sig, nil)
	return sig
}

func mustJoin(t *testing.T, o *Orchestrator, id core.ConnID, room domain.RoomID, username string) {
	t.Helper()
	require.NoError(t, o.Join(context.Background(), id, JoinRequest{RoomID: room, Username: username}))
}

// requireConsistent checks that every member of every room is registered
// as being in that room.
func requireConsistent(t *testing.T, o *Orchestrator) {
	t.Helper()
	for _, room := range o.Rooms.All() {
		for _, m := range room.MembersSnapshot() {
			got, ok := o.Registry.RoomOf(m.ID)
			require.True(t, ok, "member %s of room %s missing from registry", m.ID, room.ID())
			require.Equal(t, room.ID(), got, "member %s registered elsewhere", m.ID)
		}
	}
}
