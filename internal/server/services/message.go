package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/dmitrijs2005/chatterbox/internal/server/events"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Counter is the subset of a metrics counter the service reports to.
type Counter interface {
	Inc()
}

type nopCounter struct{}

func (nopCounter) Inc() {}

// MessageService appends messages, tracks read state and lists messages.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	composer    *composer
	publisher   events.Publisher
	created     Counter
	log         logging.Logger
}

type MessageOption func(*MessageService)

// WithPublisher publishes a message.created event for every appended message.
func WithPublisher(p events.Publisher) MessageOption {
	return func(s *MessageService) { s.publisher = p }
}

// WithCreatedCounter counts appended messages.
func WithCreatedCounter(c Counter) MessageOption {
	return func(s *MessageService) { s.created = c }
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger, opts ...MessageOption) *MessageService {
	s := &MessageService{
		db:          db,
		repomanager: m,
		composer:    &composer{repomanager: m, db: db},
		publisher:   events.NopPublisher{},
		created:     nopCounter{},
		log:         log.With("module", "messages"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// memberChat loads chatID and checks that callerID belongs to it. Unknown
// chats and foreign chats both yield common.ErrorNotFound.
func (s *MessageService) memberChat(ctx context.Context, callerID, chatID string) (*models.Chat, error) {
	if err := required("chatId", chatID); err != nil {
		return nil, err
	}

	chat, err := s.repomanager.Chats(s.db).GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("chat not found: %w", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("error loading chat: %w", err)
	}
	if !chat.HasMember(callerID) {
		return nil, fmt.Errorf("chat not found: %w", common.ErrorNotFound)
	}
	return chat, nil
}

// Send appends content to chatID on behalf of senderID and moves the chat's
// latest-message pointer to it.
func (s *MessageService) Send(ctx context.Context, senderID, chatID, content string) (*MessageView, error) {
	if err := required("content", strings.TrimSpace(content)); err != nil {
		return nil, err
	}

	chat, err := s.memberChat(ctx, senderID, chatID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:       uuid.NewString(),
		ChatID:   chat.ID,
		SenderID: senderID,
		Content:  content,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Messages(tx).Create(ctx, msg); err != nil {
			return err
		}
		return s.repomanager.Chats(tx).SetLatestMessage(ctx, chat.ID, msg.ID, msg.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("error storing message: %w", err)
	}

	s.created.Inc()
	chat.LatestMessageID = msg.ID
	chat.UpdatedAt = msg.CreatedAt

	views, err := s.composer.messageViews(ctx, []*models.Message{msg}, map[string]*models.Chat{chat.ID: chat})
	if err != nil {
		return nil, err
	}
	view := views[0]

	s.publish(ctx, view)
	return view, nil
}

func (s *MessageService) publish(ctx context.Context, view *MessageView) {
	payload, err := json.Marshal(view)
	if err != nil {
		s.log.Error(ctx, "encode message event", "message_id", view.ID, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, view.Chat.ID, payload); err != nil {
		s.log.Warn(ctx, "publish message event", "message_id", view.ID, "error", err)
	}
}

// List returns every message of chatID in creation order.
func (s *MessageService) List(ctx context.Context, callerID, chatID string) ([]*MessageView, error) {
	chat, err := s.memberChat(ctx, callerID, chatID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.repomanager.Messages(s.db).ListByChat(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return s.composer.messageViews(ctx, msgs, map[string]*models.Chat{chat.ID: chat})
}

// ListUnread returns messages in the caller's chats that others sent and the
// caller has not read yet.
func (s *MessageService) ListUnread(ctx context.Context, callerID string) ([]*MessageView, error) {
	msgs, err := s.repomanager.Messages(s.db).ListUnread(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("error listing unread messages: %w", err)
	}
	if len(msgs) == 0 {
		return []*MessageView{}, nil
	}

	chats := make(map[string]*models.Chat)
	repo := s.repomanager.Chats(s.db)
	for _, m := range msgs {
		if _, ok := chats[m.ChatID]; ok {
			continue
		}
		ch, err := repo.GetByID(ctx, m.ChatID)
		if err != nil {
			return nil, fmt.Errorf("error loading chat: %w", err)
		}
		chats[ch.ID] = ch
	}

	return s.composer.messageViews(ctx, msgs, chats)
}

// MarkRead records that the caller read every message others sent in chatID.
// Repeating it changes nothing.
func (s *MessageService) MarkRead(ctx context.Context, callerID, chatID string) (int64, error) {
	chat, err := s.memberChat(ctx, callerID, chatID)
	if err != nil {
		return 0, err
	}

	n, err := s.repomanager.Messages(s.db).MarkRead(ctx, chat.ID, callerID)
	if err != nil {
		return 0, fmt.Errorf("error marking messages read: %w", err)
	}
	return n, nil
}
