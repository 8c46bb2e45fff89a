package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/config"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestNotifier(cfg config.SMTP) (*Notifier, *[]sentMail) {
	var sent []sentMail
	n := NewNotifier(cfg, 15*time.Minute, 15*time.Minute)
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr, a, from, to, string(msg)})
		return nil
	}
	return n, &sent
}

func TestNotifier_SendOTP(t *testing.T) {
	n, sent := newTestNotifier(config.SMTP{Host: "mail.local", Port: "1025", From: "noreply@unifiro.com"})

	err := n.Send(context.Background(), notification.Message{
		Topic: notification.TopicOTP,
		Email: "asha@example.com",
		Name:  "Asha",
		OTP:   "042137",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	m := (*sent)[0]
	assert.Equal(t, "mail.local:1025", m.addr)
	assert.Nil(t, m.auth)
	assert.Equal(t, []string{"asha@example.com"}, m.to)
	assert.Contains(t, m.msg, "Subject: Your Unifiro Verification Code\r\n")
	assert.Contains(t, m.msg, "Content-Type: text/html")
	assert.Contains(t, m.msg, "042137")
	assert.Contains(t, m.msg, "Hi Asha,")
	assert.Contains(t, m.msg, "15 minutes")
}

func TestNotifier_SendReset_EscapesLink(t *testing.T) {
	n, sent := newTestNotifier(config.SMTP{Host: "mail.local", Port: "25", From: "noreply@unifiro.com", Username: "u", Password: "p"})

	err := n.Send(context.Background(), notification.Message{
		Topic:     notification.TopicPasswordReset,
		Email:     "asha@example.com",
		ResetLink: "http://localhost:3000/reset-password?token=abc&type=user",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.NotNil(t, (*sent)[0].auth)
	assert.Contains(t, (*sent)[0].msg, `href="http://localhost:3000/reset-password?token=abc&amp;type=user"`)
	assert.NotContains(t, (*sent)[0].msg, "Hi ")
}

func TestNotifier_UnknownTopic(t *testing.T) {
	n, sent := newTestNotifier(config.SMTP{Host: "h", Port: "25"})
	err := n.Send(context.Background(), notification.Message{Topic: "digest", Email: "a@b.c"})
	assert.Error(t, err)
	assert.Empty(t, *sent)
}

func TestNotifier_RelayError(t *testing.T) {
	n := NewNotifier(config.SMTP{Host: "h", Port: "25"}, time.Minute, time.Minute)
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	err := n.Send(context.Background(), notification.Message{Topic: notification.TopicOTP, Email: "a@b.c", OTP: "000001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
	assert.Equal(t, "15 minutes", humanDuration(15*time.Minute))
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
	assert.Equal(t, "2 hours", humanDuration(2*time.Hour))
}
