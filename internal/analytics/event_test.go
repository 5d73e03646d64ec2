package analytics_test

import (
	"testing"
	"time"

	"github.com/serroba/shortlink-go/internal/analytics"
	"github.com/stretchr/testify/assert"
)

func TestVisitorHash(t *testing.T) {
	t.Run("is 16 hex characters", func(t *testing.T) {
		hash := analytics.VisitorHash("203.0.113.9", "Mozilla/5.0")

		assert.Len(t, hash, 16)
		assert.Regexp(t, "^[0-9a-f]{16}$", hash)
	})

	t.Run("is stable for the same client", func(t *testing.T) {
		a := analytics.VisitorHash("203.0.113.9", "Mozilla/5.0")
		b := analytics.VisitorHash("203.0.113.9", "Mozilla/5.0")

		assert.Equal(t, a, b)
	})

	t.Run("differs between clients", func(t *testing.T) {
		a := analytics.VisitorHash("203.0.113.9", "Mozilla/5.0")
		b := analytics.VisitorHash("203.0.113.10", "Mozilla/5.0")

		assert.NotEqual(t, a, b)
	})
}

func TestHitEventValidate(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	valid := func() analytics.HitEvent {
		return analytics.HitEvent{
			Code:      "abc1234",
			Timestamp: now.Add(-time.Hour),
			IP:        "203.0.113.9",
			UserAgent: "Mozilla/5.0",
		}
	}

	t.Run("accepts a complete recent event", func(t *testing.T) {
		event := valid()

		assert.NoError(t, event.Validate(now))
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		for _, mutate := range []func(*analytics.HitEvent){
			func(e *analytics.HitEvent) { e.Code = "" },
			func(e *analytics.HitEvent) { e.IP = "" },
			func(e *analytics.HitEvent) { e.UserAgent = "" },
			func(e *analytics.HitEvent) { e.Timestamp = time.Time{} },
		} {
			event := valid()
			mutate(&event)

			assert.Error(t, event.Validate(now))
		}
	})

	t.Run("rejects events older than a day", func(t *testing.T) {
		event := valid()
		event.Timestamp = now.Add(-25 * time.Hour)

		assert.ErrorIs(t, event.Validate(now), analytics.ErrEventOutsideWindow)
	})

	t.Run("rejects events too far in the future", func(t *testing.T) {
		event := valid()
		event.Timestamp = now.Add(6 * time.Minute)

		assert.ErrorIs(t, event.Validate(now), analytics.ErrEventOutsideWindow)
	})

	t.Run("tolerates small clock skew", func(t *testing.T) {
		event := valid()
		event.Timestamp = now.Add(4 * time.Minute)

		assert.NoError(t, event.Validate(now))
	})
}
