package queue

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReceiver_RequiresQueueName(t *testing.T) {
	t.Parallel()

	_, err := NewReceiver("", nil, slog.Default())
	require.Error(t, err)

	receiver, err := NewReceiver("journey-events", map[string]string{"addr": "localhost:6379"}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "journey-events", receiver.Queue)
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	t.Run("valid event", func(t *testing.T) {
		t.Parallel()

		event, err := decodeEvent([]byte(`{
			"subject_id": "subject-1",
			"event_type": "signup",
			"payload": {"plan": "pro"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "subject-1", event.SubjectID)
		assert.Equal(t, "signup", event.EventType)
		assert.Equal(t, "pro", event.Payload["plan"])
		assert.False(t, event.Timestamp.IsZero())
	})

	t.Run("missing subject_id", func(t *testing.T) {
		t.Parallel()

		_, err := decodeEvent([]byte(`{"event_type": "signup"}`))
		assert.Error(t, err)
	})

	t.Run("empty event_type", func(t *testing.T) {
		t.Parallel()

		_, err := decodeEvent([]byte(`{"subject_id": "s1", "event_type": ""}`))
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		t.Parallel()

		_, err := decodeEvent([]byte(`hello`))
		assert.Error(t, err)
	})
}
