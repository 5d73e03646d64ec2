package analytics_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink-go/internal/analytics"
	"github.com/serroba/shortlink-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSubscriber struct {
	msgChan      chan *message.Message
	subscribeErr error
	mu           sync.Mutex
	closed       bool
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{
		msgChan: make(chan *message.Message, 100),
	}
}

func (m *mockSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	return m.msgChan, nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.msgChan)
	}

	return nil
}

func hitMessage(t *testing.T, event analytics.HitEvent) *message.Message {
	t.Helper()

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	return message.NewMessage(watermill.NewUUID(), payload)
}

func freshHit(code string) analytics.HitEvent {
	return analytics.HitEvent{
		Code:      code,
		Timestamp: time.Now().UTC().Add(-time.Minute),
		IP:        "203.0.113.9",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0",
		Referrer:  "https://news.example/article",
		Country:   "DE",
	}
}

func startConsumer(t *testing.T, sub *mockSubscriber, analyticsStore analytics.Store) *analytics.Consumer {
	t.Helper()

	consumer := analytics.NewConsumer(sub, analyticsStore, nil, nil, zap.NewNop(), analytics.ConsumerConfig{
		Topic:         "url.hits",
		BatchSize:     2,
		MaxInFlight:   2,
		FlushInterval: 20 * time.Millisecond,
	})

	require.NoError(t, consumer.Start(context.Background()))
	t.Cleanup(func() { _ = consumer.Shutdown() })

	return consumer
}

func waitAcked(t *testing.T, msg *message.Message) {
	t.Helper()

	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		t.Fatal("message was nacked")
	case <-time.After(2 * time.Second):
		t.Fatal("message neither acked nor nacked")
	}
}

func TestConsumerAppliesEvents(t *testing.T) {
	sub := newMockSubscriber()
	analyticsStore := store.NewMemoryAnalyticsStore()
	startConsumer(t, sub, analyticsStore)

	event := freshHit("abc1234")
	msg := hitMessage(t, event)
	sub.msgChan <- msg

	waitAcked(t, msg)

	day := event.Timestamp.UTC().Format("2006-01-02")

	hours, err := analyticsStore.HourlyHits(context.Background(), "abc1234", day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hours[event.Timestamp.UTC().Hour()])

	referrers, err := analyticsStore.Referrers(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), referrers["https://news.example/article"])

	unique, err := analyticsStore.UniqueVisitors(context.Background(), "abc1234", day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unique)
}

func TestConsumerCounterAccretion(t *testing.T) {
	sub := newMockSubscriber()
	analyticsStore := store.NewMemoryAnalyticsStore()

	consumer := analytics.NewConsumer(sub, analyticsStore, nil, nil, zap.NewNop(), analytics.ConsumerConfig{
		Topic:         "url.hits",
		BatchSize:     10,
		FlushInterval: 20 * time.Millisecond,
	})
	require.NoError(t, consumer.Start(context.Background()))
	t.Cleanup(func() { _ = consumer.Shutdown() })

	base := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour)
	stamps := []time.Time{base, base.Add(30 * time.Second), base.Add(time.Hour)}

	var msgs []*message.Message

	for _, ts := range stamps {
		event := freshHit("ordered1")
		event.Timestamp = ts
		msg := hitMessage(t, event)
		msgs = append(msgs, msg)
		sub.msgChan <- msg
	}

	for _, msg := range msgs {
		waitAcked(t, msg)
	}

	day := base.Format("2006-01-02")

	hours, err := analyticsStore.HourlyHits(context.Background(), "ordered1", day)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, hours[base.Hour()], int64(2))

	access, err := analyticsStore.AccessTimes(context.Background(), "ordered1")
	require.NoError(t, err)
	require.NotNil(t, access)
	assert.Equal(t, base, access.First)
	assert.Equal(t, base.Add(time.Hour), access.Last)
}

func TestConsumerDuplicateDelivery(t *testing.T) {
	sub := newMockSubscriber()
	analyticsStore := store.NewMemoryAnalyticsStore()
	startConsumer(t, sub, analyticsStore)

	event := freshHit("dup1234")

	first := hitMessage(t, event)
	sub.msgChan <- first
	waitAcked(t, first)

	second := hitMessage(t, event)
	sub.msgChan <- second
	waitAcked(t, second)

	day := event.Timestamp.UTC().Format("2006-01-02")

	// Counters may overcount on duplicate delivery; the unique-visitor set
	// must not.
	unique, err := analyticsStore.UniqueVisitors(context.Background(), "dup1234", day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unique)
}

func TestConsumerDeadLettersPoison(t *testing.T) {
	sub := newMockSubscriber()
	analyticsStore := store.NewMemoryAnalyticsStore()
	startConsumer(t, sub, analyticsStore)

	poison := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	healthy := hitMessage(t, freshHit("mix1234"))

	sub.msgChan <- poison
	sub.msgChan <- healthy

	waitAcked(t, poison)
	waitAcked(t, healthy)

	day := time.Now().UTC().Format("2006-01-02")

	hours, err := analyticsStore.HourlyHits(context.Background(), "mix1234", day)
	require.NoError(t, err)

	var total int64
	for _, count := range hours {
		total += count
	}

	assert.Equal(t, int64(1), total)
}

func TestConsumerDeadLettersStaleEvents(t *testing.T) {
	sub := newMockSubscriber()
	analyticsStore := store.NewMemoryAnalyticsStore()
	startConsumer(t, sub, analyticsStore)

	stale := freshHit("stale12")
	stale.Timestamp = time.Now().UTC().Add(-25 * time.Hour)

	msg := hitMessage(t, stale)
	sub.msgChan <- msg

	waitAcked(t, msg)

	access, err := analyticsStore.AccessTimes(context.Background(), "stale12")
	require.NoError(t, err)
	assert.Nil(t, access)
}

func TestConsumerNacksOnStoreFailure(t *testing.T) {
	sub := newMockSubscriber()
	analyticsStore := store.NewMemoryAnalyticsStore()
	analyticsStore.ApplyErr = errors.New("store unavailable")
	startConsumer(t, sub, analyticsStore)

	msg := hitMessage(t, freshHit("fail123"))
	sub.msgChan <- msg

	select {
	case <-msg.Nacked():
	case <-msg.Acked():
		t.Fatal("message should have been nacked")
	case <-time.After(2 * time.Second):
		t.Fatal("message neither acked nor nacked")
	}
}

func TestConsumerStartFailure(t *testing.T) {
	sub := newMockSubscriber()
	sub.subscribeErr = errors.New("subscribe failed")

	consumer := analytics.NewConsumer(sub, store.NewMemoryAnalyticsStore(), nil, nil, zap.NewNop(), analytics.ConsumerConfig{
		Topic: "url.hits",
	})

	assert.Error(t, consumer.Start(context.Background()))
}

func TestConsumerShutdownDrains(t *testing.T) {
	sub := newMockSubscriber()
	analyticsStore := store.NewMemoryAnalyticsStore()

	consumer := analytics.NewConsumer(sub, analyticsStore, nil, nil, zap.NewNop(), analytics.ConsumerConfig{
		Topic:         "url.hits",
		BatchSize:     100,
		FlushInterval: time.Hour, // only the shutdown flush applies the batch
	})
	require.NoError(t, consumer.Start(context.Background()))

	msg := hitMessage(t, freshHit("drain12"))
	sub.msgChan <- msg

	require.NoError(t, sub.Close())
	require.NoError(t, consumer.Shutdown())

	select {
	case <-msg.Acked():
	default:
		t.Fatal("pending message was not applied during drain")
	}
}
