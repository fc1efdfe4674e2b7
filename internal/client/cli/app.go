package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/chatterbox/internal/client/client"
	"github.com/dmitrijs2005/chatterbox/internal/client/config"
)

// API is the part of the chatterbox HTTP API chatctl drives.
type API interface {
	Token() string
	Signup(ctx context.Context, name, email, password string) (*client.Reply, error)
	SendVerification(ctx context.Context, email string) (*client.Reply, error)
	VerifyOTP(ctx context.Context, email, otp, purpose string) (*client.Reply, error)
	ForgotPassword(ctx context.Context, email string) (*client.Reply, error)
	ResetPassword(ctx context.Context, email, password, resetToken string) (*client.Reply, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*client.User, error)
	SearchUsers(ctx context.Context, keyword string) ([]client.User, error)
	Chats(ctx context.Context) ([]client.Chat, error)
	AccessDirect(ctx context.Context, userID string) (*client.Chat, error)
	CreateGroup(ctx context.Context, name string, memberIDs []string) (*client.Chat, error)
	RenameGroup(ctx context.Context, chatID, name string) (*client.Chat, error)
	AddMember(ctx context.Context, chatID, userID string) (*client.Chat, error)
	RemoveMember(ctx context.Context, chatID, userID string) (*client.Chat, error)
	Send(ctx context.Context, chatID, content string) (*client.Message, error)
	Messages(ctx context.Context, chatID string) ([]client.Message, error)
	Unread(ctx context.Context) ([]client.Message, error)
	MarkRead(ctx context.Context, chatID string) error
	SetAvatar(ctx context.Context, contentType string, data []byte) (string, error)
}

type App struct {
	config *config.Config
	api    API
	reader *bufio.Reader
	out    io.Writer
	email  string
}

func NewApp(c *config.Config) (*App, error) {
	api := client.NewHTTPClient(c.ServerURL, c.Token, c.RequestTimeout)
	return &App{config: c, api: api, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

// Run executes args as one command, or starts the prompt when args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.runREPL(ctx)
		return nil
	}
	return a.execute(ctx, args)
}

func (a *App) isLoggedIn() bool {
	return a.api.Token() != ""
}

func (a *App) getStatus() string {
	switch {
	case a.isLoggedIn() && a.email != "":
		return "(" + a.email + ")"
	case a.isLoggedIn():
		return "(online)"
	default:
		return ""
	}
}
