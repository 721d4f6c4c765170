// Package mail delivers account lifecycle emails over SMTP.
package mail

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"docvault.org/internal/auth"
	"docvault.org/internal/config"
)

// Mailer sends HTML mail through a single SMTP endpoint. It satisfies the
// auth notifier contract.
type Mailer struct {
	addr string
	host string
	auth smtp.Auth
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ auth.Notifier = (*Mailer)(nil)

// New builds a Mailer from SMTP settings. PLAIN auth is used only when a
// username is configured.
func New(cfg config.SMTP) *Mailer {
	m := &Mailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
		from: cfg.From,
		send: smtp.SendMail,
	}
	if m.from == "" {
		m.from = cfg.Username
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// SendWelcome greets a freshly registered user.
func (m *Mailer) SendWelcome(ctx context.Context, user auth.User) error {
	body := fmt.Sprintf(`<h1>Welcome %s!</h1>
<p>Thank you for registering with our platform.</p>
<p>Your account has been successfully created.</p>
<p>You can now log in using your email: %s</p>`,
		html.EscapeString(user.FirstName), html.EscapeString(user.Email))
	return m.sendHTML(ctx, user.Email, "Welcome to Our Platform", body)
}

// SendDeactivation notifies a user whose account was disabled.
func (m *Mailer) SendDeactivation(ctx context.Context, user auth.User) error {
	body := fmt.Sprintf(`<h1>Account Deactivation</h1>
<p>Dear %s,</p>
<p>Your account has been deactivated.</p>
<p>If you believe this is a mistake, please contact our support team.</p>`,
		html.EscapeString(user.FirstName))
	return m.sendHTML(ctx, user.Email, "Account Deactivation Notice", body)
}

func (m *Mailer) sendHTML(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	// smtp.SendMail takes no context, so run it aside and abandon it when
	// the deadline fires. The buffered channel lets a late send finish
	// without leaking the goroutine.
	errc := make(chan error, 1)
	go func() {
		errc <- m.send(m.addr, m.auth, m.from, []string{to}, []byte(msg.String()))
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", to, ctx.Err())
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		return nil
	}
}
