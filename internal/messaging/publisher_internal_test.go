package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingPublisher struct {
	failures int
	calls    int
	messages []*message.Message
}

func (p *countingPublisher) Publish(_ string, msgs ...*message.Message) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("saturated")
	}

	p.messages = append(p.messages, msgs...)

	return nil
}

func (p *countingPublisher) Close() error { return nil }

func newFastRetryPublisher(inner message.Publisher, onDrop func()) *RetryPublisher {
	p := NewRetryPublisher(inner, zap.NewNop(), onDrop)
	p.backoff = time.Microsecond

	return p
}

func TestRetryPublisher(t *testing.T) {
	t.Run("passes through on first success", func(t *testing.T) {
		inner := &countingPublisher{}
		publisher := newFastRetryPublisher(inner, nil)

		err := publisher.Publish("test.topic", message.NewMessage("1", nil))

		require.NoError(t, err)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		inner := &countingPublisher{failures: 2}
		publisher := newFastRetryPublisher(inner, nil)

		err := publisher.Publish("test.topic", message.NewMessage("1", nil))

		require.NoError(t, err)
		assert.Equal(t, 3, inner.calls)
		assert.Len(t, inner.messages, 1)
	})

	t.Run("drops after exhausting attempts and counts the drop", func(t *testing.T) {
		inner := &countingPublisher{failures: retryMaxAttempts}

		drops := 0
		publisher := newFastRetryPublisher(inner, func() { drops++ })

		err := publisher.Publish("test.topic", message.NewMessage("1", nil))

		// The drop is absorbed: the caller is not failed.
		require.NoError(t, err)
		assert.Equal(t, retryMaxAttempts, inner.calls)
		assert.Equal(t, 1, drops)
		assert.Empty(t, inner.messages)
	})
}
