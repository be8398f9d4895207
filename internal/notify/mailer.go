package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/metrics"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends newsletter confirmation emails over SMTP.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	siteName string
	send     SendFunc
	now      func() time.Time
}

func NewMailer(host string, port int, username, password, from, siteName string) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		siteName: siteName,
		send:     smtp.SendMail,
		now:      time.Now,
	}
}

// WithSendFunc replaces the SMTP transport.
func (m *Mailer) WithSendFunc(fn SendFunc) *Mailer {
	m.send = fn
	return m
}

func (m *Mailer) Configured() bool {
	return m != nil && m.host != "" && m.from != ""
}

// SendConfirmation mails the double opt-in link. Without SMTP settings the
// link is logged and ErrNotConfigured returned.
func (m *Mailer) SendConfirmation(ctx context.Context, to, link string) error {
	if !m.Configured() {
		logger.Info("Email dry run", "to", to, "link", link)
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Confirm your %s subscription", m.siteName)
	body := fmt.Sprintf("Thanks for subscribing to %s.\r\n\r\nConfirm your address by opening this link:\r\n%s\r\n\r\nIf you did not ask for this, ignore this email.\r\n", m.siteName, link)
	msg := m.compose(to, subject, body)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	if err := m.send(addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send confirmation to %s: %w", to, err)
	}
	metrics.Global.IncrementEmailsSent()
	logger.Info("Confirmation email sent", "to", to)
	return nil
}

func (m *Mailer) compose(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
