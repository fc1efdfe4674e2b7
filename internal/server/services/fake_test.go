package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/dmitrijs2005/chatterbox/internal/server/auth"
	"github.com/dmitrijs2005/chatterbox/internal/server/config"
	"github.com/dmitrijs2005/chatterbox/internal/server/mail"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/chats"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/messages"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/otps"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/resets"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// --- helpers ---

// newTxDB returns an empty in-memory database. Services only use it to open
// transactions; the fake repositories keep all state in memory.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                  "k",
		SessionValidityDuration:    time.Hour,
		MaxSessions:                3,
		OTPValidityDuration:        5 * time.Minute,
		ResetGrantValidityDuration: 10 * time.Minute,
	}
}

// memStore is an in-memory implementation of every repository.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	otps     []*models.OTP
	resets   map[string]*models.PasswordReset
	chats    map[string]*models.Chat
	messages []*models.Message
	seq      int

	// failures injected per operation name
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*models.User{},
		resets: map[string]*models.PasswordReset{},
		chats:  map[string]*models.Chat{},
		fail:   map[string]error{},
	}
}

func (s *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }
func (s *memStore) Users(dbx.DBTX) users.Repository              { return memUsers{s} }
func (s *memStore) OTPs(dbx.DBTX) otps.Repository                { return memOTPs{s} }
func (s *memStore) Resets(dbx.DBTX) resets.Repository            { return memResets{s} }
func (s *memStore) Chats(dbx.DBTX) chats.Repository              { return memChats{s} }
func (s *memStore) Messages(dbx.DBTX) messages.Repository        { return memMessages{s} }

func (s *memStore) addUser(id, name, email string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, Name: name, Email: email, Pic: models.DefaultPic}
	s.users[id] = u
	return u
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Sessions = append(auth.Sessions(nil), u.Sessions...)
	return &c
}

func cloneChat(c *models.Chat) *models.Chat {
	out := *c
	out.Members = append([]string(nil), c.Members...)
	return &out
}

func cloneMessage(m *models.Message) *models.Message {
	out := *m
	out.ReadBy = append([]string(nil), m.ReadBy...)
	return &out
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["users.Create"]; err != nil {
		return nil, err
	}
	for _, e := range r.s.users {
		if e.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := cloneUser(u)
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	r.s.users[u.ID] = c
	return cloneUser(c), nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r memUsers) Search(_ context.Context, keyword, excludeID string) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kw := strings.ToLower(keyword)
	var out []*models.User
	for _, u := range r.s.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), kw) || strings.Contains(strings.ToLower(u.Email), kw) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memUsers) byEmail(email string) (*models.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) SetVerified(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, err := r.byEmail(email)
	if err != nil {
		return err
	}
	u.Verified = true
	return nil
}

func (r memUsers) ResetPassword(_ context.Context, email string, hash []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, err := r.byEmail(email)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.Sessions = auth.Sessions{}
	return nil
}

func (r memUsers) UpdatePic(_ context.Context, id, pic string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Pic = pic
	return nil
}

func (r memUsers) LockSessions(_ context.Context, id string) (auth.Sessions, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return append(auth.Sessions(nil), u.Sessions...), nil
}

func (r memUsers) SetSessions(_ context.Context, id string, sessions auth.Sessions) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Sessions = append(auth.Sessions(nil), sessions...)
	return nil
}

type memOTPs struct{ s *memStore }

func (r memOTPs) Create(_ context.Context, o *models.OTP) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *o
	r.s.otps = append(r.s.otps, &c)
	return nil
}

func (r memOTPs) Latest(_ context.Context, email, purpose string) (*models.OTP, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.OTP
	for _, o := range r.s.otps {
		if o.Email == email && o.Purpose == purpose && (latest == nil || !o.CreatedAt.Before(latest.CreatedAt)) {
			latest = o
		}
	}
	if latest == nil {
		return nil, common.ErrorNotFound
	}
	c := *latest
	return &c, nil
}

func (r memOTPs) filter(drop func(*models.OTP) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	kept := r.s.otps[:0]
	for _, o := range r.s.otps {
		if drop(o) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	r.s.otps = kept
	return n
}

func (r memOTPs) DeleteFor(_ context.Context, email, purpose string) (int64, error) {
	return r.filter(func(o *models.OTP) bool { return o.Email == email && o.Purpose == purpose }), nil
}

func (r memOTPs) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.filter(func(o *models.OTP) bool { return o.Expired(now) }), nil
}

type memResets struct{ s *memStore }

func (r memResets) Create(_ context.Context, g *models.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *g
	r.s.resets[g.TokenHash] = &c
	return nil
}

func (r memResets) Consume(_ context.Context, hash string, now time.Time) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.resets[hash]
	if !ok || !g.ExpiresAt.After(now) {
		return "", common.ErrorNotFound
	}
	delete(r.s.resets, hash)
	return g.Email, nil
}

func (r memResets) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, g := range r.s.resets {
		if !g.ExpiresAt.After(now) {
			delete(r.s.resets, k)
			n++
		}
	}
	return n, nil
}

type memChats struct{ s *memStore }

func (r memChats) Create(_ context.Context, c *models.Chat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.DirectKey != "" {
		for _, e := range r.s.chats {
			if e.DirectKey == c.DirectKey {
				return common.ErrorAlreadyExists
			}
		}
	}
	r.s.chats[c.ID] = cloneChat(c)
	return nil
}

func (r memChats) GetByID(_ context.Context, id string) (*models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.chats[id]; ok {
		return cloneChat(c), nil
	}
	return nil, common.ErrorNotFound
}

func (r memChats) GetDirect(_ context.Context, key string) (*models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.chats {
		if c.DirectKey == key {
			return cloneChat(c), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memChats) ListByMember(_ context.Context, userID string) ([]*models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Chat
	for _, c := range r.s.chats {
		if c.HasMember(userID) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r memChats) IsMember(_ context.Context, chatID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[chatID]
	return ok && c.HasMember(userID), nil
}

func (r memChats) AddMember(_ context.Context, chatID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[chatID]
	if !ok {
		return common.ErrorNotFound
	}
	if c.HasMember(userID) {
		return common.ErrorAlreadyExists
	}
	c.Members = append(c.Members, userID)
	return nil
}

func (r memChats) RemoveMember(_ context.Context, chatID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[chatID]
	if !ok || !c.HasMember(userID) {
		return common.ErrorNotFound
	}
	rest := c.Members[:0]
	for _, m := range c.Members {
		if m != userID {
			rest = append(rest, m)
		}
	}
	c.Members = rest
	return nil
}

func (r memChats) update(chatID string, fn func(*models.Chat)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[chatID]
	if !ok {
		return common.ErrorNotFound
	}
	fn(c)
	return nil
}

func (r memChats) Rename(_ context.Context, chatID, name string) error {
	return r.update(chatID, func(c *models.Chat) { c.Name = name })
}

func (r memChats) SetAdmin(_ context.Context, chatID, adminID string) error {
	return r.update(chatID, func(c *models.Chat) { c.AdminID = adminID })
}

func (r memChats) SetLatestMessage(_ context.Context, chatID, messageID string, at time.Time) error {
	return r.update(chatID, func(c *models.Chat) {
		c.LatestMessageID = messageID
		c.UpdatedAt = at
	})
}

type memMessages struct{ s *memStore }

func (r memMessages) Create(_ context.Context, m *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["messages.Create"]; err != nil {
		return err
	}
	r.s.seq++
	m.CreatedAt = time.Unix(int64(r.s.seq), 0).UTC()
	r.s.messages = append(r.s.messages, cloneMessage(m))
	return nil
}

func (r memMessages) GetByIDs(_ context.Context, ids []string) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Message
	for _, id := range ids {
		for _, m := range r.s.messages {
			if m.ID == id {
				out = append(out, cloneMessage(m))
			}
		}
	}
	return out, nil
}

func (r memMessages) ListByChat(_ context.Context, chatID string) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Message
	for _, m := range r.s.messages {
		if m.ChatID == chatID {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (r memMessages) ListUnread(_ context.Context, userID string) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Message
	for _, m := range r.s.messages {
		c := r.s.chats[m.ChatID]
		if c == nil || !c.HasMember(userID) || m.SenderID == userID || contains(m.ReadBy, userID) {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

func (r memMessages) MarkRead(_ context.Context, chatID, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages {
		if m.ChatID == chatID && m.SenderID != userID && !contains(m.ReadBy, userID) {
			m.ReadBy = append(m.ReadBy, userID)
			n++
		}
	}
	return n, nil
}

// fakeMailer records sent mails.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

var nopLog logging.Logger = logging.Nop{}
