package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/netx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient is a thin, stateful wrapper over the chatterbox HTTP API. It
// remembers the session token returned by Login and sends it on every call.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		token: token,
	}
}

func (c *HTTPClient) Token() string { return c.token }

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnavailable)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Kind: "internal"}
		var r Reply
		if json.Unmarshal(data, &r) == nil && r.Kind != "" {
			apiErr.Kind = r.Kind
			apiErr.Message = r.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *HTTPClient) Signup(ctx context.Context, name, email, password string) (*Reply, error) {
	var r Reply
	err := c.do(ctx, http.MethodPost, "/user/signup", map[string]string{
		"name": name, "email": email, "password": password,
	}, &r)
	return &r, err
}

func (c *HTTPClient) SendVerification(ctx context.Context, email string) (*Reply, error) {
	var r Reply
	err := c.do(ctx, http.MethodPost, "/user/verification-otp-mail", map[string]string{"email": email}, &r)
	return &r, err
}

// VerifyOTP consumes a code. For the "FP" purpose the reply carries the
// reset token needed by ResetPassword.
func (c *HTTPClient) VerifyOTP(ctx context.Context, email, otp, purpose string) (*Reply, error) {
	var r Reply
	err := c.do(ctx, http.MethodPost, "/user/verifyOtp", map[string]string{
		"email": email, "otp": otp, "otpType": purpose,
	}, &r)
	return &r, err
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) (*Reply, error) {
	var r Reply
	err := c.do(ctx, http.MethodPost, "/user/forgot-password-otp", map[string]string{"email": email}, &r)
	return &r, err
}

func (c *HTTPClient) ResetPassword(ctx context.Context, email, password, resetToken string) (*Reply, error) {
	var r Reply
	err := c.do(ctx, http.MethodPost, "/user/forgot-password", map[string]string{
		"email": email, "password": password, "resetToken": resetToken,
	}, &r)
	return &r, err
}

// Login stores the issued token for subsequent calls and returns it.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	var r Reply
	if err := c.do(ctx, http.MethodPost, "/user/login", map[string]string{
		"email": email, "password": password,
	}, &r); err != nil {
		return "", err
	}
	c.token = r.Token
	return r.Token, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/user/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *HTTPClient) Profile(ctx context.Context) (*User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/user/user", nil, &u)
	return &u, err
}

func (c *HTTPClient) SearchUsers(ctx context.Context, keyword string) ([]User, error) {
	path := "/user/"
	if keyword != "" {
		path += "?search=" + url.QueryEscape(keyword)
	}
	var users []User
	err := c.do(ctx, http.MethodGet, path, nil, &users)
	return users, err
}

func (c *HTTPClient) Chats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	err := c.do(ctx, http.MethodGet, "/chat/", nil, &chats)
	return chats, err
}

func (c *HTTPClient) AccessDirect(ctx context.Context, userID string) (*Chat, error) {
	var ch Chat
	err := c.do(ctx, http.MethodPost, "/chat/", map[string]string{"userId": userID}, &ch)
	return &ch, err
}

func (c *HTTPClient) CreateGroup(ctx context.Context, name string, memberIDs []string) (*Chat, error) {
	var ch Chat
	err := c.do(ctx, http.MethodPost, "/chat/create-group", map[string]any{
		"chatName": name, "users": memberIDs,
	}, &ch)
	return &ch, err
}

func (c *HTTPClient) RenameGroup(ctx context.Context, chatID, name string) (*Chat, error) {
	var ch Chat
	err := c.do(ctx, http.MethodPut, "/chat/rename-group", map[string]string{
		"chatId": chatID, "chatName": name,
	}, &ch)
	return &ch, err
}

func (c *HTTPClient) AddMember(ctx context.Context, chatID, userID string) (*Chat, error) {
	var ch Chat
	err := c.do(ctx, http.MethodPut, "/chat/group-add-user", map[string]string{
		"chatId": chatID, "userId": userID,
	}, &ch)
	return &ch, err
}

func (c *HTTPClient) RemoveMember(ctx context.Context, chatID, userID string) (*Chat, error) {
	var ch Chat
	err := c.do(ctx, http.MethodPut, "/chat/group-remove-user", map[string]string{
		"chatId": chatID, "userId": userID,
	}, &ch)
	return &ch, err
}

func (c *HTTPClient) Send(ctx context.Context, chatID, content string) (*Message, error) {
	var m Message
	err := c.do(ctx, http.MethodPost, "/message/", map[string]string{
		"chatId": chatID, "content": content,
	}, &m)
	return &m, err
}

func (c *HTTPClient) Messages(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	err := c.do(ctx, http.MethodGet, "/message/"+url.PathEscape(chatID), nil, &msgs)
	return msgs, err
}

func (c *HTTPClient) Unread(ctx context.Context) ([]Message, error) {
	var msgs []Message
	err := c.do(ctx, http.MethodGet, "/message/", nil, &msgs)
	return msgs, err
}

func (c *HTTPClient) MarkRead(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPut, "/message/"+url.PathEscape(chatID), nil, nil)
}

// SetAvatar asks for a presigned upload, PUTs the picture there and returns
// the URL the profile now points at.
func (c *HTTPClient) SetAvatar(ctx context.Context, contentType string, data []byte) (string, error) {
	var up Upload
	if err := c.do(ctx, http.MethodPost, "/user/avatar", map[string]string{"contentType": contentType}, &up); err != nil {
		return "", err
	}
	if err := netx.UploadToPresignedURL(ctx, c.http, up.UploadURL, contentType, data); err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrUnavailable)
	}
	return up.PublicURL, nil
}
