package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/chatterbox/internal/server/services"
)

type MessageService interface {
	Send(ctx context.Context, senderID, chatID, content string) (*services.MessageView, error)
	List(ctx context.Context, callerID, chatID string) ([]*services.MessageView, error)
	ListUnread(ctx context.Context, callerID string) ([]*services.MessageView, error)
	MarkRead(ctx context.Context, callerID, chatID string) (int64, error)
}

type messageHandler struct {
	messages MessageService
}

type sendMessageRequest struct {
	Content string `json:"content"`
	ChatID  string `json:"chatId"`
}

func (h *messageHandler) send(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	req, err := Decode[sendMessageRequest](w, r)
	if err != nil {
		return err
	}

	msg, err := h.messages.Send(r.Context(), id.UserID, req.ChatID, req.Content)
	if err != nil {
		return err
	}

	WriteJSON(w, msg, http.StatusOK)
	return nil
}

func (h *messageHandler) unread(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	msgs, err := h.messages.ListUnread(r.Context(), id.UserID)
	if err != nil {
		return err
	}

	WriteJSON(w, msgs, http.StatusOK)
	return nil
}

func (h *messageHandler) list(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	msgs, err := h.messages.List(r.Context(), id.UserID, r.PathValue("chatId"))
	if err != nil {
		return err
	}

	WriteJSON(w, msgs, http.StatusOK)
	return nil
}

func (h *messageHandler) markRead(w http.ResponseWriter, r *http.Request) error {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		return err
	}

	if _, err := h.messages.MarkRead(r.Context(), id.UserID, r.PathValue("chatId")); err != nil {
		return err
	}

	WriteJSON(w, ok("Messages read by user"), http.StatusOK)
	return nil
}
