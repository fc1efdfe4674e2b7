package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// MinGroupMembers is the number of members a new group needs besides its
// creator.
const MinGroupMembers = 2

const directChatName = "sender"

// ChatService manages direct and group chats.
type ChatService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	composer    *composer
	log         logging.Logger
	now         func() time.Time
}

func NewChatService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *ChatService {
	return &ChatService{
		db:          db,
		repomanager: m,
		composer:    &composer{repomanager: m, db: db},
		log:         log.With("module", "chats"),
		now:         time.Now,
	}
}

// AccessDirect returns the direct chat between callerID and userID, creating
// it on first use. Repeated calls return the same chat.
func (s *ChatService) AccessDirect(ctx context.Context, callerID, userID string) (*ChatView, error) {
	if err := required("userId", userID); err != nil {
		return nil, err
	}
	if callerID == userID {
		return nil, fmt.Errorf("cannot chat with yourself: %w", common.ErrorValidation)
	}

	if _, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("user not found: %w", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	key := models.DirectKey(callerID, userID)
	repo := s.repomanager.Chats(s.db)

	chat, err := repo.GetDirect(ctx, key)
	if err == nil {
		return s.composer.chatView(ctx, chat)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error loading chat: %w", err)
	}

	now := s.now()
	chat = &models.Chat{
		ID:        uuid.NewString(),
		Name:      directChatName,
		DirectKey: key,
		Members:   []string{callerID, userID},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Chats(tx).Create(ctx, chat)
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		// lost a race with the other participant
		chat, err = repo.GetDirect(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating chat: %w", err)
	}

	s.log.Info(ctx, "direct chat created", "chat_id", chat.ID)
	return s.composer.chatView(ctx, chat)
}

// List returns the caller's chats, most recently active first.
func (s *ChatService) List(ctx context.Context, callerID string) ([]*ChatView, error) {
	chats, err := s.repomanager.Chats(s.db).ListByMember(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("error listing chats: %w", err)
	}
	return s.composer.chatViews(ctx, chats)
}

// CreateGroup creates a group chat of memberIDs plus the creator, who becomes
// its admin.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*ChatView, error) {
	name = strings.TrimSpace(name)
	if err := required("name", name); err != nil {
		return nil, err
	}

	members := make([]string, 0, len(memberIDs)+1)
	for _, id := range unique(memberIDs) {
		if id != creatorID {
			members = append(members, id)
		}
	}
	if len(members) < MinGroupMembers {
		return nil, fmt.Errorf("at least %d users besides you are required to form a group chat: %w", MinGroupMembers, common.ErrorValidation)
	}

	found, err := s.repomanager.Users(s.db).GetByIDs(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("error loading users: %w", err)
	}
	if len(found) != len(members) {
		return nil, fmt.Errorf("some users do not exist: %w", common.ErrorNotFound)
	}

	now := s.now()
	chat := &models.Chat{
		ID:        uuid.NewString(),
		Name:      name,
		IsGroup:   true,
		AdminID:   creatorID,
		Members:   append(members, creatorID),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Chats(tx).Create(ctx, chat)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating group: %w", err)
	}

	s.log.Info(ctx, "group created", "chat_id", chat.ID, "members", len(chat.Members))
	return s.composer.chatView(ctx, chat)
}

// group loads a group chat the caller belongs to. Direct chats, unknown ids
// and groups the caller is not in all yield common.ErrorNotFound.
func (s *ChatService) group(ctx context.Context, db dbx.DBTX, callerID, chatID string) (*models.Chat, error) {
	if err := required("chatId", chatID); err != nil {
		return nil, err
	}

	chat, err := s.repomanager.Chats(db).GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("chat not found: %w", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("error loading chat: %w", err)
	}
	if !chat.IsGroup || !chat.HasMember(callerID) {
		return nil, fmt.Errorf("chat not found: %w", common.ErrorNotFound)
	}
	return chat, nil
}

func (s *ChatService) RenameGroup(ctx context.Context, callerID, chatID, name string) (*ChatView, error) {
	name = strings.TrimSpace(name)
	if err := required("chatName", name); err != nil {
		return nil, err
	}

	chat, err := s.group(ctx, s.db, callerID, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.Chats(s.db).Rename(ctx, chat.ID, name); err != nil {
		return nil, fmt.Errorf("error renaming group: %w", err)
	}
	chat.Name = name

	return s.composer.chatView(ctx, chat)
}

// AddMember adds userID to the group. Adding an existing member yields
// common.ErrorAlreadyExists.
func (s *ChatService) AddMember(ctx context.Context, callerID, chatID, userID string) (*ChatView, error) {
	if err := required("userId", userID); err != nil {
		return nil, err
	}

	var chat *models.Chat
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		chat, err = s.group(ctx, tx, callerID, chatID)
		if err != nil {
			return err
		}
		if chat.HasMember(userID) {
			return fmt.Errorf("user already in group: %w", common.ErrorAlreadyExists)
		}
		if _, err := s.repomanager.Users(tx).GetByID(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.Chats(tx).AddMember(ctx, chat.ID, userID); err != nil {
			return err
		}
		chat.Members = append(chat.Members, userID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "member added", "chat_id", chat.ID, "user_id", userID)
	return s.composer.chatView(ctx, chat)
}

// RemoveMember removes userID from the group. When the admin leaves, the
// first remaining member becomes admin. The last member cannot be removed.
func (s *ChatService) RemoveMember(ctx context.Context, callerID, chatID, userID string) (*ChatView, error) {
	if err := required("userId", userID); err != nil {
		return nil, err
	}

	var chat *models.Chat
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		chat, err = s.group(ctx, tx, callerID, chatID)
		if err != nil {
			return err
		}
		if !chat.HasMember(userID) {
			return fmt.Errorf("user not in group: %w", common.ErrorNotFound)
		}
		if len(chat.Members) == 1 {
			return fmt.Errorf("cannot remove the last member: %w", common.ErrorValidation)
		}

		repo := s.repomanager.Chats(tx)
		if err := repo.RemoveMember(ctx, chat.ID, userID); err != nil {
			return err
		}

		rest := make([]string, 0, len(chat.Members)-1)
		for _, m := range chat.Members {
			if m != userID {
				rest = append(rest, m)
			}
		}
		chat.Members = rest

		if chat.AdminID == userID {
			chat.AdminID = rest[0]
			return repo.SetAdmin(ctx, chat.ID, chat.AdminID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "member removed", "chat_id", chat.ID, "user_id", userID)
	return s.composer.chatView(ctx, chat)
}
