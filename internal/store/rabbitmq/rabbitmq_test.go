package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/nutribot/internal/task"
)

func TestNewTopology(t *testing.T) {
	top := NewTopology("task_queue")
	assert.Equal(t, "task_queue", top.Main)
	assert.Equal(t, "task_queue.dlq", top.DLQ)
}

func TestMainArgs_DeadLetterToDLQ(t *testing.T) {
	args := mainArgs(NewTopology("task_queue"))
	assert.Equal(t, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": "task_queue.dlq",
	}, args)
}

func TestEncode_RoundTripsThroughDecode(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := task.Record{
		Type:           task.TypeLLM,
		TaskID:         "01ENCODE",
		UserID:         3,
		ChatID:         30,
		UserQuery:      "squats?",
		RephrasedQuery: "how many squats per day?",
		Model:          "yandexgpt",
		Intent:         "fitness",
		ShowAuthPrompt: true,
		Timestamp:      ts,
	}

	msg, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "01ENCODE", msg.MessageId)
	assert.Equal(t, ts, msg.Timestamp)

	got, err := task.Decode(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestEncode_StampsMissingTimestamp(t *testing.T) {
	msg, err := Encode(task.Record{TaskID: "x", ChatID: 1})
	require.NoError(t, err)
	assert.False(t, msg.Timestamp.IsZero())
}
