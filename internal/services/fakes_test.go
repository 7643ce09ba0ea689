package services

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"dm-go/internal/crypto"
	"dm-go/internal/imtypes"
	"dm-go/internal/models"
	"dm-go/internal/storage"
)

var baseTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestCipher(t *testing.T) crypto.Cipher {
	t.Helper()
	c, err := crypto.NewCBCCipher(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	return c
}

// fakeUserRepo keeps users and follow edges in memory.
type fakeUserRepo struct {
	users     map[string]*models.User
	following map[string][]string
	err       error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*models.User{}, following: map[string][]string{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) follow(follower, followee string) {
	r.following[follower] = append(r.following[follower], followee)
}

func (r *fakeUserRepo) mutual(a, b string) {
	r.follow(a, b)
	r.follow(b, a)
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *fakeUserRepo) GetFollowingIDs(_ context.Context, userID string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	return append([]string(nil), r.following[userID]...), nil
}

func (r *fakeUserRepo) GetFollowerIDs(_ context.Context, userID string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	var ids []string
	for follower, followees := range r.following {
		for _, id := range followees {
			if id == userID {
				ids = append(ids, follower)
			}
		}
	}
	return ids, nil
}

func (r *fakeUserRepo) ListAdmins(_ context.Context) ([]*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	var admins []*models.User
	for _, u := range r.users {
		if u.Role == models.RoleAdmin {
			cp := *u
			admins = append(admins, &cp)
		}
	}
	return admins, nil
}

// fakeMessageRepo stores copies of messages and expands participants from users.
type fakeMessageRepo struct {
	mu        sync.Mutex
	users     *fakeUserRepo
	messages  []models.Message
	creates   int
	createErr error
	findErr   error
}

func (r *fakeMessageRepo) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.creates++
	m.EnsureID()
	if m.Timestamp.IsZero() {
		m.Timestamp = baseTime.Add(time.Duration(len(r.messages)) * time.Minute)
	}
	r.messages = append(r.messages, *m)
	return nil
}

// seed stores m as-is, bypassing the create counter.
func (r *fakeMessageRepo) seed(m models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.EnsureID()
	r.messages = append(r.messages, m)
}

func (r *fakeMessageRepo) expand(m models.Message) *models.Message {
	if u, ok := r.users.users[m.SenderID]; ok {
		cp := *u
		m.Sender = &cp
	}
	if u, ok := r.users.users[m.ReceiverID]; ok {
		cp := *u
		m.Receiver = &cp
	}
	return &m
}

func (r *fakeMessageRepo) FindPair(_ context.Context, a, b string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*models.Message
	for _, m := range r.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, r.expand(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *fakeMessageRepo) FindAllForParticipant(_ context.Context, userID string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*models.Message
	for _, m := range r.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, r.expand(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

type emitted struct {
	event   string
	payload interface{}
}

type fakeConn struct {
	userID string
	events []emitted
	err    error
}

func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Emit(event string, payload interface{}) error {
	c.events = append(c.events, emitted{event: event, payload: payload})
	return c.err
}

type fakePresence map[string]*fakeConn

func (p fakePresence) Lookup(userID string) (Connection, bool) {
	c, ok := p[userID]
	if !ok {
		return nil, false
	}
	return c, true
}

type fakePush struct {
	sent   []imtypes.PushNotification
	ctxErr error
	err    error
}

func (p *fakePush) Send(ctx context.Context, n imtypes.PushNotification) error {
	p.sent = append(p.sent, n)
	p.ctxErr = ctx.Err()
	return p.err
}

// fixture wires a messaging service over fakes with three users:
// alice and bob (plain, mutual followers) and mod (admin).
type fixture struct {
	cipher   crypto.Cipher
	users    *fakeUserRepo
	messages *fakeMessageRepo
	presence fakePresence
	push     *fakePush
	svc      MessagingService

	alice, bob, mod *models.User
}

func newFixture(t *testing.T, extra ...PostCommitHook) *fixture {
	t.Helper()
	f := &fixture{
		alice: &models.User{BaseModel: models.BaseModel{ID: "u-alice"}, Name: "Alice", Username: "alice", Email: "alice@example.com", Role: models.RolePlain, PushToken: "ExponentPushToken[alice]"},
		bob:   &models.User{BaseModel: models.BaseModel{ID: "u-bob"}, Name: "Bob", Username: "bob", Email: "bob@example.com", Role: models.RolePlain, PushToken: "ExponentPushToken[bob]"},
		mod:   &models.User{BaseModel: models.BaseModel{ID: "u-mod"}, Name: "Mod", Username: "moderator", Email: "mod@example.com", Role: models.RoleAdmin},
	}
	f.cipher = newTestCipher(t)
	f.users = newFakeUserRepo(f.alice, f.bob, f.mod)
	f.users.mutual(f.alice.ID, f.bob.ID)
	f.messages = &fakeMessageRepo{users: f.users}
	f.presence = fakePresence{}
	f.push = &fakePush{}
	f.svc = NewMessagingService(f.messages, f.users, f.cipher, f.presence, f.push, extra...)
	return f
}

func (f *fixture) caller(u *models.User) CallerContext {
	return CallerContext{UserID: u.ID, Role: u.Role}
}

func (f *fixture) online(u *models.User) *fakeConn {
	c := &fakeConn{userID: u.ID}
	f.presence[u.ID] = c
	return c
}

func (f *fixture) seedText(t *testing.T, from, to *models.User, text string, at time.Time) {
	t.Helper()
	token, err := f.cipher.Encrypt(text)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	f.messages.seed(models.Message{SenderID: from.ID, ReceiverID: to.ID, MessageType: models.TextMessage, Content: &token, Timestamp: at})
}
