package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/repomanager"
)

// UserView is the public part of a user, safe to hand to other users.
type UserView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Pic   string `json:"pic"`
}

// ProfileView is what a user sees about themself.
type ProfileView struct {
	UserView
	Verified bool `json:"verified"`
}

type ChatView struct {
	ID            string       `json:"id"`
	ChatName      string       `json:"chatName"`
	IsGroupChat   bool         `json:"isGroupChat"`
	Users         []UserView   `json:"users"`
	GroupAdmin    *UserView    `json:"groupAdmin,omitempty"`
	LatestMessage *MessageView `json:"latestMessage,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// MessageView embeds the sender, the chat with its members (without the
// chat's own latest message) and the users who read it. Inside
// ChatView.LatestMessage the Chat field is left out.
type MessageView struct {
	ID        string     `json:"id"`
	Sender    UserView   `json:"sender"`
	Content   string     `json:"content"`
	Chat      *ChatView  `json:"chat,omitempty"`
	ReadBy    []UserView `json:"readBy"`
	CreatedAt time.Time  `json:"createdAt"`
}

func newUserView(u *models.User) UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email, Pic: u.Pic}
}

func newProfileView(u *models.User) *ProfileView {
	return &ProfileView{UserView: newUserView(u), Verified: u.Verified}
}

// composer assembles views from primary rows: it batch-loads the users and
// messages the rows refer to and stitches them together.
type composer struct {
	repomanager repomanager.RepositoryManager
	db          dbx.DBTX
}

func (c *composer) users(ctx context.Context, ids []string) (map[string]UserView, error) {
	users, err := c.repomanager.Users(c.db).GetByIDs(ctx, unique(ids))
	if err != nil {
		return nil, fmt.Errorf("error loading users: %w", err)
	}

	out := make(map[string]UserView, len(users))
	for _, u := range users {
		out[u.ID] = newUserView(u)
	}
	return out, nil
}

func pick(users map[string]UserView, ids []string) []UserView {
	out := make([]UserView, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (c *composer) chatViews(ctx context.Context, chats []*models.Chat) ([]*ChatView, error) {
	var latestIDs []string
	for _, ch := range chats {
		if ch.LatestMessageID != "" {
			latestIDs = append(latestIDs, ch.LatestMessageID)
		}
	}

	latest, err := c.repomanager.Messages(c.db).GetByIDs(ctx, latestIDs)
	if err != nil {
		return nil, fmt.Errorf("error loading latest messages: %w", err)
	}
	latestByID := make(map[string]*models.Message, len(latest))

	var userIDs []string
	for _, m := range latest {
		latestByID[m.ID] = m
		userIDs = append(userIDs, m.SenderID)
		userIDs = append(userIDs, m.ReadBy...)
	}
	for _, ch := range chats {
		userIDs = append(userIDs, ch.Members...)
		if ch.AdminID != "" {
			userIDs = append(userIDs, ch.AdminID)
		}
	}

	users, err := c.users(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*ChatView, 0, len(chats))
	for _, ch := range chats {
		v := chatView(ch, users)
		if m, ok := latestByID[ch.LatestMessageID]; ok {
			v.LatestMessage = messageView(m, users, nil)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *composer) chatView(ctx context.Context, ch *models.Chat) (*ChatView, error) {
	views, err := c.chatViews(ctx, []*models.Chat{ch})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func chatView(ch *models.Chat, users map[string]UserView) *ChatView {
	v := &ChatView{
		ID:          ch.ID,
		ChatName:    ch.Name,
		IsGroupChat: ch.IsGroup,
		Users:       pick(users, ch.Members),
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}
	if admin, ok := users[ch.AdminID]; ok && ch.IsGroup {
		v.GroupAdmin = &admin
	}
	return v
}

func messageView(m *models.Message, users map[string]UserView, chat *ChatView) *MessageView {
	sender, ok := users[m.SenderID]
	if !ok {
		sender = UserView{ID: m.SenderID}
	}
	return &MessageView{
		ID:        m.ID,
		Sender:    sender,
		Content:   m.Content,
		Chat:      chat,
		ReadBy:    pick(users, m.ReadBy),
		CreatedAt: m.CreatedAt,
	}
}

// messageViews composes messages together with their chats. chats must hold
// every chat the messages belong to.
func (c *composer) messageViews(ctx context.Context, msgs []*models.Message, chats map[string]*models.Chat) ([]*MessageView, error) {
	var userIDs []string
	for _, m := range msgs {
		userIDs = append(userIDs, m.SenderID)
		userIDs = append(userIDs, m.ReadBy...)
	}
	for _, ch := range chats {
		userIDs = append(userIDs, ch.Members...)
		if ch.AdminID != "" {
			userIDs = append(userIDs, ch.AdminID)
		}
	}

	users, err := c.users(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	chatViews := make(map[string]*ChatView, len(chats))
	for id, ch := range chats {
		chatViews[id] = chatView(ch, users)
	}

	out := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView(m, users, chatViews[m.ChatID]))
	}
	return out, nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
