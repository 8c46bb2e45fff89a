package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/domain"
)

func TestEncode(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := notification.Message{
		Topic:       notification.TopicPasswordReset,
		AccountKind: domain.KindOrganizer,
		Email:       "acme@example.com",
		ResetLink:   "http://localhost:3000/reset-password?token=t&type=organizer",
	}

	key, pub, err := encode(m, now)
	require.NoError(t, err)
	assert.Equal(t, "notification.organizer.password_reset", key)
	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, "password_reset", pub.Type)
	assert.Equal(t, now, pub.Timestamp)
	assert.NotEmpty(t, pub.MessageId)

	var decoded notification.Message
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	assert.Equal(t, m, decoded)
}

func TestEncode_UniqueMessageIDs(t *testing.T) {
	_, a, err := encode(notification.Message{Topic: notification.TopicOTP}, time.Now())
	require.NoError(t, err)
	_, b, err := encode(notification.Message{Topic: notification.TopicOTP}, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, a.MessageId, b.MessageId)
}
