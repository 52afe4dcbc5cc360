package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/messaging"

	"github.com/docker/docker/client"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const testQueue = "mission_events_test"

func TestRabbitMQEventPublisherIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("Docker client init error: %v. Ensure Docker is running and accessible.", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		t.Fatalf("Docker daemon is not running or accessible: %v", err)
	}
	cli.Close()

	ctx := context.Background()
	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete"),
		),
	)
	require.NoError(t, err, "Failed to start rabbitmq container")
	defer func() { _ = container.Terminate(ctx) }()

	amqpURL, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()

	publisher, err := messaging.NewRabbitMQEventPublisher(conn, testQueue, zap.NewNop())
	require.NoError(t, err)

	event := interfaces.MissionEvent{
		EventType: interfaces.EventMissionCompleted,
		MissionID: uuid.New(),
		PlayerID:  uuid.New(),
		Detail:    "Operation Glass Harbor",
	}
	require.NoError(t, publisher.PublishMissionEvent(ctx, event))

	// Consume on a second channel; the queue was declared by the publisher.
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	deliveries, err := ch.Consume(testQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	select {
	case msg := <-deliveries:
		require.Equal(t, "application/json", msg.ContentType)
		require.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)

		var got interfaces.MissionEvent
		require.NoError(t, json.Unmarshal(msg.Body, &got))
		require.Equal(t, event.EventType, got.EventType)
		require.Equal(t, event.MissionID, got.MissionID)
		require.Equal(t, event.PlayerID, got.PlayerID)
		require.Equal(t, event.Detail, got.Detail)
		require.False(t, got.OccurredAt.IsZero(), "publish must stamp the event time")
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the published event")
	}
}
