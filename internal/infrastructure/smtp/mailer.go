package smtp

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/config"
)

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier renders OTP and reset emails and hands them to an SMTP relay.
type Notifier struct {
	addr     string
	host     string
	from     string
	username string
	password string
	otpTTL   time.Duration
	resetTTL time.Duration
	send     sendFunc
}

func NewNotifier(cfg config.SMTP, otpTTL, resetTTL time.Duration) *Notifier {
	return &Notifier{
		addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		host:     cfg.Host,
		from:     cfg.From,
		username: cfg.Username,
		password: cfg.Password,
		otpTTL:   otpTTL,
		resetTTL: resetTTL,
		send:     smtp.SendMail,
	}
}

func (n *Notifier) Name() string { return "email" }

// Send renders m and delivers it. net/smtp has no context support, so ctx is
// only checked before dialing.
func (n *Notifier) Send(ctx context.Context, m notification.Message) error {
	if m.Email == "" {
		return nil
	}
	subject, body, err := n.render(m)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}
	if err := n.send(n.addr, auth, n.from, []string{m.Email}, buildMessage(n.from, m.Email, subject, body)); err != nil {
		return fmt.Errorf("smtp send %s: %w", m.Topic, err)
	}
	return nil
}

func (n *Notifier) render(m notification.Message) (subject string, body []byte, err error) {
	var (
		tmpl *template.Template
		ttl  time.Duration
	)
	switch m.Topic {
	case notification.TopicOTP:
		subject, tmpl, ttl = "Your Unifiro Verification Code", otpTemplate, n.otpTTL
	case notification.TopicPasswordReset:
		subject, tmpl, ttl = "Reset your Unifiro password", resetTemplate, n.resetTTL
	default:
		return "", nil, fmt.Errorf("smtp: unknown topic %q", m.Topic)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		notification.Message
		ValidFor string
	}{m, humanDuration(ttl)})
	if err != nil {
		return "", nil, fmt.Errorf("render %s email: %w", m.Topic, err)
	}
	return subject, buf.Bytes(), nil
}

func buildMessage(from, to, subject string, html []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: \"Unifiro\" <%s>\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.Write(html)
	return b.Bytes()
}

func humanDuration(d time.Duration) string {
	mins := int(d.Round(time.Minute) / time.Minute)
	switch {
	case mins == 1:
		return "1 minute"
	case mins < 60 || mins%60 != 0:
		return fmt.Sprintf("%d minutes", mins)
	case mins == 60:
		return "1 hour"
	default:
		return fmt.Sprintf("%d hours", mins/60)
	}
}
