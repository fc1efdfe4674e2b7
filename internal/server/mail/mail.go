// Package mail delivers one-time passcodes to users, over SMTP or, when no
// SMTP host is configured, into the log.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/dmitrijs2005/chatterbox/internal/server/config"
)

// Message is a passcode mail addressed to one user.
type Message struct {
	To      string
	Name    string
	Subject string
	Intro   string
	Code    string
}

var body = template.Must(template.New("otp").Parse(`<p>Hello {{.Name}},<br /><br />
Greetings!!!<br /><br />
{{.Intro}}<br /><br />
Your OTP is: <h2>{{.Code}}</h2><br />
<b>Note:</b> Kindly do not reply to this mail. This is an unattended email.
</p>
`))

// Render builds the MIME message sent for m.
func (m Message) Render(from string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")

	if err := body.Execute(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends mail through an SMTP relay using STARTTLS when offered.
type SMTPMailer struct {
	addr string
	host string
	auth smtp.Auth
	from string
	send sendFunc
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host: cfg.SMTPHost,
		auth: auth,
		from: cfg.MailFrom,
		send: smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.ContainsAny(msg.To, "\r\n") {
		return fmt.Errorf("invalid recipient %q", msg.To)
	}

	data, err := msg.Render(m.from)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return m.send(m.addr, m.auth, m.from, []string{msg.To}, data)
}

// LogMailer writes the passcode to the log instead of sending it. Meant for
// development setups without an SMTP relay.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log.With("module", "mail")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info(ctx, "mail not sent, no smtp host configured", "to", msg.To, "subject", msg.Subject, "otp", msg.Code)
	return nil
}
