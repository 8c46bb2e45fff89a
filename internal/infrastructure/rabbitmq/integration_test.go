//go:build integration

package rabbitmq

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/domain"
)

func TestPublisher_Integration(t *testing.T) {
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5672")
	require.NoError(t, err)
	url := "amqp://guest:guest@" + host + ":" + port.Port() + "/"

	p, err := NewPublisher(url, "unifiro.notifications")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	msg := notification.Message{Topic: notification.TopicOTP, AccountKind: domain.KindUser, Email: "asha@example.com", OTP: "123456"}

	t.Run("unroutable", func(t *testing.T) {
		assert.Error(t, p.Send(ctx, msg))
	})

	t.Run("routed", func(t *testing.T) {
		conn, err := amqp.Dial(url)
		require.NoError(t, err)
		defer conn.Close()
		ch, err := conn.Channel()
		require.NoError(t, err)
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		require.NoError(t, err)
		require.NoError(t, ch.QueueBind(q.Name, "notification.#", "unifiro.notifications", false, nil))

		require.NoError(t, p.Send(ctx, msg))

		deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
		require.NoError(t, err)
		select {
		case d := <-deliveries:
			assert.Equal(t, "notification.user.otp", d.RoutingKey)
			assert.Contains(t, string(d.Body), `"otp":"123456"`)
		case <-time.After(5 * time.Second):
			t.Fatal("no delivery")
		}
	})
}
