package notification

import (
	"context"

	"github.com/unifiro-api/internal/domain"
)

// Topic says which template a message renders.
type Topic string

const (
	TopicOTP           Topic = "otp"
	TopicPasswordReset Topic = "password_reset"
)

// Message is one outbound notification. Only the field matching Topic is set:
// OTP for TopicOTP, ResetLink for TopicPasswordReset.
type Message struct {
	Topic       Topic              `json:"topic"`
	AccountKind domain.AccountKind `json:"account_kind"`
	Email       string             `json:"email"`
	Mobile      string             `json:"mobile,omitempty"`
	Name        string             `json:"name,omitempty"`
	OTP         string             `json:"otp,omitempty"`
	ResetLink   string             `json:"reset_link,omitempty"`
}

// Sender delivers a message over one channel (email, SMS, broker). A sender
// that does not handle a topic returns nil.
type Sender interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// Notifier is what the flows depend on. Enqueue must not block; it reports
// whether the message was accepted.
type Notifier interface {
	Enqueue(m Message) bool
}

// Observer receives delivery outcomes, usually prometheus counters.
type Observer interface {
	Sent(channel string)
	Failed(channel string)
	Dropped()
}

type nopObserver struct{}

func (nopObserver) Sent(string)   {}
func (nopObserver) Failed(string) {}
func (nopObserver) Dropped()      {}
