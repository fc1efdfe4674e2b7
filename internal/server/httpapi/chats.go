package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/server/services"
)

type ChatService interface {
	AccessDirect(ctx context.Context, callerID, userID string) (*services.ChatView, error)
	List(ctx context.Context, callerID string) ([]*services.ChatView, error)
	CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*services.ChatView, error)
	RenameGroup(ctx context.Context, callerID, chatID, name string) (*services.ChatView, error)
	AddMember(ctx context.Context, callerID, chatID, userID string) (*services.ChatView, error)
	RemoveMember(ctx context.Context, callerID, chatID, userID string) (*services.ChatView, error)
}

type chatHandler struct {
	chats ChatService
}

type accessChatRequest struct {
	UserID string `json:"userId"`
}

func (h *chatHandler) access(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	req, err := Decode[accessChatRequest](w, r)
	if err != nil {
		return err
	}

	chat, err := h.chats.AccessDirect(r.Context(), id.UserID, req.UserID)
	if err != nil {
		return err
	}

	WriteJSON(w, chat, http.StatusOK)
	return nil
}

func (h *chatHandler) list(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	chats, err := h.chats.List(r.Context(), id.UserID)
	if err != nil {
		return err
	}

	WriteJSON(w, chats, http.StatusOK)
	return nil
}

// memberList accepts a JSON array of ids or a string holding one, which is
// what older clients send.
type memberList []string

func (m *memberList) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err == nil {
		*m = ids
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("users must be an array of ids")
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return fmt.Errorf("users must be an array of ids")
	}
	*m = ids
	return nil
}

type createGroupRequest struct {
	ChatName string     `json:"chatName"`
	Users    memberList `json:"users"`
}

func (h *chatHandler) createGroup(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	req, err := Decode[createGroupRequest](w, r)
	if err != nil {
		return err
	}
	if req.Users == nil {
		return fmt.Errorf("please fill all the fields: %w", common.ErrorValidation)
	}

	chat, err := h.chats.CreateGroup(r.Context(), id.UserID, req.ChatName, req.Users)
	if err != nil {
		return err
	}

	WriteJSON(w, chat, http.StatusOK)
	return nil
}

type renameGroupRequest struct {
	ChatID   string `json:"chatId"`
	ChatName string `json:"chatName"`
}

func (h *chatHandler) rename(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	req, err := Decode[renameGroupRequest](w, r)
	if err != nil {
		return err
	}

	chat, err := h.chats.RenameGroup(r.Context(), id.UserID, req.ChatID, req.ChatName)
	if err != nil {
		return err
	}

	WriteJSON(w, chat, http.StatusOK)
	return nil
}

type groupMemberRequest struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

func (h *chatHandler) addMember(w http.ResponseWriter, r *http.Request) error {
	return h.changeMember(w, r, h.chats.AddMember)
}

func (h *chatHandler) removeMember(w http.ResponseWriter, r *http.Request) error {
	return h.changeMember(w, r, h.chats.RemoveMember)
}

func (h *chatHandler) changeMember(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, callerID, chatID, userID string) (*services.ChatView, error)) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	req, err := Decode[groupMemberRequest](w, r)
	if err != nil {
		return err
	}

	chat, err := op(r.Context(), id.UserID, req.ChatID, req.UserID)
	if err != nil {
		return err
	}

	WriteJSON(w, chat, http.StatusOK)
	return nil
}
