package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/client/client"
	"github.com/dmitrijs2005/chatterbox/internal/common"
)

var errUsage = errors.New("usage")

// alreadyVerified is the server's reply when no verification mail was sent.
const alreadyVerified = "User already verified"

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

type command struct {
	usage string
	args  int // minimum number of arguments
	auth  bool
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"signup":  {usage: "signup <name> <email>", args: 2, run: (*App).signup},
	"verify":  {usage: "verify <email>", args: 1, run: (*App).verify},
	"reset":   {usage: "reset <email>", args: 1, run: (*App).reset},
	"login":   {usage: "login <email>", args: 1, run: (*App).login},
	"logout":  {usage: "logout", auth: true, run: (*App).logout},
	"me":      {usage: "me", auth: true, run: (*App).me},
	"users":   {usage: "users [keyword]", auth: true, run: (*App).users},
	"chats":   {usage: "chats", auth: true, run: (*App).chats},
	"dm":      {usage: "dm <userId>", args: 1, auth: true, run: (*App).dm},
	"group":   {usage: "group <name> <userId> <userId>...", args: 3, auth: true, run: (*App).group},
	"rename":  {usage: "rename <chatId> <name>", args: 2, auth: true, run: (*App).rename},
	"add":     {usage: "add <chatId> <userId>", args: 2, auth: true, run: (*App).addMember},
	"kick":    {usage: "kick <chatId> <userId>", args: 2, auth: true, run: (*App).kickMember},
	"send":    {usage: "send <chatId> [text...]", args: 1, auth: true, run: (*App).send},
	"history": {usage: "history <chatId>", args: 1, auth: true, run: (*App).history},
	"unread":  {usage: "unread", auth: true, run: (*App).unread},
	"read":    {usage: "read <chatId>", args: 1, auth: true, run: (*App).read},
	"avatar":  {usage: "avatar <image file>", args: 1, auth: true, run: (*App).avatar},
}

var commandOrder = []string{
	"signup", "verify", "reset", "login", "logout", "me", "users", "chats",
	"dm", "group", "rename", "add", "kick", "send", "history", "unread", "read", "avatar",
}

func (a *App) execute(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]

	if name == "help" {
		a.help()
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	if len(rest) < cmd.args {
		return fmt.Errorf("%w: %s", errUsage, cmd.usage)
	}
	if cmd.auth && !a.isLoggedIn() {
		return fmt.Errorf("not logged in, run login first or set CHATTERBOX_TOKEN: %w", common.ErrorUnauthenticated)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	return cmd.run(a, ctx, rest)
}

// timeout leaves room for interactive prompts inside a command.
func (a *App) timeout() time.Duration {
	if a.config.RequestTimeout <= 0 {
		return 10 * time.Minute
	}
	return a.config.RequestTimeout + 5*time.Minute
}

func (a *App) help() {
	fmt.Fprintln(a.out, "Available commands:")
	for _, name := range commandOrder {
		fmt.Fprintln(a.out, "  "+commands[name].usage)
	}
	fmt.Fprintln(a.out, "  help")
}

func (a *App) readPassword(prompt string) (string, error) {
	pw, err := getPassword(prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func (a *App) reply(r *client.Reply) {
	if r != nil && r.Message != "" {
		fmt.Fprintln(a.out, r.Message)
	}
}

func (a *App) signup(ctx context.Context, args []string) error {
	password, err := a.readPassword("Choose password")
	if err != nil {
		return err
	}
	r, err := a.api.Signup(ctx, args[0], args[1], password)
	if err != nil {
		return err
	}
	a.reply(r)
	return nil
}

func (a *App) verify(ctx context.Context, args []string) error {
	email := args[0]
	r, err := a.api.SendVerification(ctx, email)
	if err != nil {
		return err
	}
	a.reply(r)
	if r.Message == alreadyVerified {
		return nil
	}

	code, err := getSimpleText(a.reader, "Enter the code from the email", a.out)
	if err != nil {
		return err
	}
	r, err = a.api.VerifyOTP(ctx, email, code, common.OTPPurposeIdentity)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			fmt.Fprintln(a.out, alreadyVerified)
			return nil
		}
		return err
	}
	a.reply(r)
	return nil
}

func (a *App) reset(ctx context.Context, args []string) error {
	email := args[0]
	r, err := a.api.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}
	a.reply(r)

	code, err := getSimpleText(a.reader, "Enter the code from the email", a.out)
	if err != nil {
		return err
	}
	r, err = a.api.VerifyOTP(ctx, email, code, common.OTPPurposePasswordReset)
	if err != nil {
		return err
	}

	password, err := a.readPassword("New password")
	if err != nil {
		return err
	}
	r, err = a.api.ResetPassword(ctx, email, password, r.ResetToken)
	if err != nil {
		return err
	}
	a.reply(r)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	password, err := a.readPassword("Password")
	if err != nil {
		return err
	}
	token, err := a.api.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	a.email = common.NormalizeEmail(args[0])
	fmt.Fprintln(a.out, "Login successful. To reuse this session:")
	fmt.Fprintf(a.out, "  export CHATTERBOX_TOKEN=%s\n", token)
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	a.email = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) me(ctx context.Context, _ []string) error {
	u, err := a.api.Profile(ctx)
	if err != nil {
		return err
	}
	verified := "not verified"
	if u.Verified {
		verified = "verified"
	}
	fmt.Fprintf(a.out, "%s <%s> %s\n  id: %s\n  pic: %s\n", u.Name, u.Email, verified, u.ID, u.Pic)
	return nil
}

func (a *App) users(ctx context.Context, args []string) error {
	users, err := a.api.SearchUsers(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(a.out, "No users found")
		return nil
	}
	for _, u := range users {
		fmt.Fprintf(a.out, "%s  %s <%s>\n", u.ID, u.Name, u.Email)
	}
	return nil
}

func (a *App) chats(ctx context.Context, _ []string) error {
	chats, err := a.api.Chats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Fprintln(a.out, "No chats yet")
		return nil
	}
	for _, ch := range chats {
		a.printChat(&ch)
	}
	return nil
}

func (a *App) dm(ctx context.Context, args []string) error {
	ch, err := a.api.AccessDirect(ctx, args[0])
	if err != nil {
		return err
	}
	a.printChat(ch)
	return nil
}

func (a *App) group(ctx context.Context, args []string) error {
	ch, err := a.api.CreateGroup(ctx, args[0], args[1:])
	if err != nil {
		return err
	}
	a.printChat(ch)
	return nil
}

func (a *App) rename(ctx context.Context, args []string) error {
	ch, err := a.api.RenameGroup(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	a.printChat(ch)
	return nil
}

func (a *App) addMember(ctx context.Context, args []string) error {
	ch, err := a.api.AddMember(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.printChat(ch)
	return nil
}

func (a *App) kickMember(ctx context.Context, args []string) error {
	ch, err := a.api.RemoveMember(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.printChat(ch)
	return nil
}

func (a *App) send(ctx context.Context, args []string) error {
	content := strings.Join(args[1:], " ")
	if content == "" {
		var err error
		content, err = GetMultiline(a.reader, "Message", a.out)
		if err != nil {
			return err
		}
	}
	m, err := a.api.Send(ctx, args[0], content)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "sent %s\n", m.ID)
	return nil
}

func (a *App) history(ctx context.Context, args []string) error {
	msgs, err := a.api.Messages(ctx, args[0])
	if err != nil {
		return err
	}
	a.printMessages(msgs)
	return nil
}

func (a *App) unread(ctx context.Context, _ []string) error {
	msgs, err := a.api.Unread(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "No unread messages")
		return nil
	}
	a.printMessages(msgs)
	return nil
}

func (a *App) read(ctx context.Context, args []string) error {
	if err := a.api.MarkRead(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Messages read by user")
	return nil
}

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

func (a *App) avatar(ctx context.Context, args []string) error {
	data, err := readFile(args[0])
	if err != nil {
		return err
	}
	// strip parameters such as "; charset=utf-8"
	contentType, _, _ := strings.Cut(http.DetectContentType(data), ";")

	pic, err := a.api.SetAvatar(ctx, contentType, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Profile picture updated:", pic)
	return nil
}

func (a *App) printChat(ch *client.Chat) {
	name := ch.ChatName
	if !ch.IsGroupChat {
		var others []string
		for _, u := range ch.Users {
			if common.NormalizeEmail(u.Email) != a.email {
				others = append(others, u.Name)
			}
		}
		name = strings.Join(others, ", ")
	}

	kind := "direct"
	if ch.IsGroupChat {
		kind = fmt.Sprintf("group, %d members", len(ch.Users))
	}
	fmt.Fprintf(a.out, "%s  %s (%s)\n", ch.ID, name, kind)
	if m := ch.LatestMessage; m != nil {
		fmt.Fprintf(a.out, "    %s: %s\n", m.Sender.Name, m.Content)
	}
}

func (a *App) printMessages(msgs []client.Message) {
	for _, m := range msgs {
		where := ""
		if m.Chat != nil && m.Chat.IsGroupChat {
			where = " in " + m.Chat.ChatName
		}
		fmt.Fprintf(a.out, "[%s] %s%s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Sender.Name, where, m.Content)
	}
}
