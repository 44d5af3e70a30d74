package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"smartevents/internal/domain"
	"smartevents/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	fail   map[string]bool
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[topic] {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDispatchOnce_PublishesAndMarksSent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	outbox := memory.NewOutboxRepository(store)
	require.NoError(t, outbox.Append(ctx, domain.TopicCheckoutCompleted, []byte(`{"checkout_id":"c1"}`)))
	require.NoError(t, outbox.Append(ctx, domain.TopicRegistrationCancelled, []byte(`{}`)))

	pub := &recordingPublisher{}
	d := NewOutboxDispatcher(outbox, pub, DispatcherConfig{}, discardLogger())

	sent, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{domain.TopicCheckoutCompleted, domain.TopicRegistrationCancelled}, pub.topics)
	assert.Zero(t, store.Pending())

	sent, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

type fakeOutbox struct {
	msgs    []*domain.OutboxMessage
	retries map[int64]time.Time
	sent    []int64
}

func (f *fakeOutbox) Append(ctx context.Context, topic string, payload []byte) error { return nil }

func (f *fakeOutbox) Claim(ctx context.Context, limit int, lease time.Duration) ([]*domain.OutboxMessage, error) {
	out := f.msgs
	f.msgs = nil
	return out, nil
}

func (f *fakeOutbox) MarkSent(ctx context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutbox) MarkRetry(ctx context.Context, id int64, next time.Time) error {
	f.retries[id] = next
	return nil
}

func TestDispatchOnce_FailureSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	outbox := &fakeOutbox{
		msgs: []*domain.OutboxMessage{
			{ID: 1, Topic: domain.TopicPaymentRefunded, Attempts: 0},
			{ID: 2, Topic: domain.TopicPaymentRefunded, Attempts: 10},
			{ID: 3, Topic: domain.TopicCheckoutCompleted},
		},
		retries: map[int64]time.Time{},
	}
	pub := &recordingPublisher{fail: map[string]bool{domain.TopicPaymentRefunded: true}}
	d := NewOutboxDispatcher(outbox, pub, DispatcherConfig{}, discardLogger())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	sent, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{3}, outbox.sent)

	require.Len(t, outbox.retries, 2)
	first := outbox.retries[1].Sub(now)
	assert.InDelta(t, float64(time.Second), float64(first), float64(200*time.Millisecond))
	assert.Equal(t, now.Add(time.Minute), outbox.retries[2])
}

func TestDispatchOnce_ClaimError(t *testing.T) {
	d := NewOutboxDispatcher(&erroringOutbox{}, &recordingPublisher{}, DispatcherConfig{}, discardLogger())
	_, err := d.DispatchOnce(context.Background())
	require.Error(t, err)
}

type erroringOutbox struct{ fakeOutbox }

func (e *erroringOutbox) Claim(ctx context.Context, limit int, lease time.Duration) ([]*domain.OutboxMessage, error) {
	return nil, errors.New("connection reset")
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(discardLogger())
	require.NoError(t, p.Publish(context.Background(), domain.TopicCheckoutCompleted, []byte(`{}`)))
	require.NoError(t, p.Close())
}
