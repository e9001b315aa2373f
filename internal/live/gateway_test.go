package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

type recorder struct {
	mu      sync.Mutex
	updates []int
	errs    []error
}

func (r *recorder) onUpdate(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, v)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) snapshot() ([]int, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int{}, r.updates...), append([]error{}, r.errs...)
}

func (r *recorder) updateCount() int {
	u, _ := r.snapshot()
	return len(u)
}

func counterQuery(topic domain.ChangeTopic, key string) (Query[int], *atomic.Int64) {
	var calls atomic.Int64
	return Query[int]{
		Topic: topic,
		Key:   key,
		Fetch: func(context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
	}, &calls
}

func TestSubscribe_InitialResult(t *testing.T) {
	g := NewGateway()
	defer g.Close()

	q, _ := counterQuery(domain.TopicIncidents, "")
	rec := &recorder{}
	cancel := Subscribe(context.Background(), g, q, rec.onUpdate, rec.onError)
	defer cancel()

	require.Eventually(t, func() bool { return rec.updateCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, g.Len())
}

func TestPublish_Matching(t *testing.T) {
	tests := []struct {
		name    string
		topic   domain.ChangeTopic
		key     string
		change  domain.Change
		refresh bool
	}{
		{"same topic", domain.TopicIncidents, "", domain.Change{Topic: domain.TopicIncidents, Key: "I1"}, true},
		{"same key", domain.TopicMessages, "I1", domain.Change{Topic: domain.TopicMessages, Key: "I1"}, true},
		{"other key", domain.TopicMessages, "I1", domain.Change{Topic: domain.TopicMessages, Key: "I2"}, false},
		{"topic wide change", domain.TopicMessages, "I1", domain.Change{Topic: domain.TopicMessages}, true},
		{"other topic", domain.TopicIncidents, "", domain.Change{Topic: domain.TopicNotifications, Key: "U1"}, false},
		{"all topics", domain.TopicNotifications, "U1", domain.Change{Topic: domain.TopicAll}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway()
			defer g.Close()

			q, calls := counterQuery(tt.topic, tt.key)
			rec := &recorder{}
			cancel := Subscribe(context.Background(), g, q, rec.onUpdate, rec.onError)
			defer cancel()
			require.Eventually(t, func() bool { return rec.updateCount() == 1 }, time.Second, 5*time.Millisecond)

			g.Publish(tt.change)

			if tt.refresh {
				require.Eventually(t, func() bool { return rec.updateCount() == 2 }, time.Second, 5*time.Millisecond)
				return
			}
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, int64(1), calls.Load())
		})
	}
}

func TestPublish_CoalescesBursts(t *testing.T) {
	g := NewGateway()
	defer g.Close()

	release := make(chan struct{})
	var calls atomic.Int64
	q := Query[int]{
		Topic: domain.TopicIncidents,
		Fetch: func(ctx context.Context) (int, error) {
			n := calls.Add(1)
			if n == 2 {
				select {
				case <-release:
				case <-ctx.Done():
				}
			}
			return int(n), nil
		},
	}
	rec := &recorder{}
	cancel := Subscribe(context.Background(), g, q, rec.onUpdate, rec.onError)
	defer cancel()
	require.Eventually(t, func() bool { return rec.updateCount() == 1 }, time.Second, 5*time.Millisecond)

	g.Publish(domain.Change{Topic: domain.TopicIncidents})
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	// Changes during a running fetch collapse into a single follow-up fetch.
	for i := 0; i < 10; i++ {
		g.Publish(domain.Change{Topic: domain.TopicIncidents})
	}
	close(release)

	require.Eventually(t, func() bool { return rec.updateCount() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	updates, errs := rec.snapshot()
	assert.Equal(t, []int{1, 2, 3}, updates)
	assert.Empty(t, errs)
}

func TestSubscribe_FetchErrorEndsSubscription(t *testing.T) {
	g := NewGateway()
	defer g.Close()

	errBoom := errors.New("boom")
	q := Query[int]{
		Topic: domain.TopicIncidents,
		Fetch: func(context.Context) (int, error) { return 0, errBoom },
	}
	rec := &recorder{}
	Subscribe(context.Background(), g, q, rec.onUpdate, rec.onError)

	require.Eventually(t, func() bool { return g.Len() == 0 }, time.Second, 5*time.Millisecond)
	g.Publish(domain.Change{Topic: domain.TopicIncidents})
	time.Sleep(20 * time.Millisecond)

	updates, errs := rec.snapshot()
	assert.Empty(t, updates)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errBoom)
}

func TestCancel(t *testing.T) {
	g := NewGateway()
	defer g.Close()

	q, calls := counterQuery(domain.TopicIncidents, "")
	rec := &recorder{}
	cancel := Subscribe(context.Background(), g, q, rec.onUpdate, rec.onError)
	require.Eventually(t, func() bool { return rec.updateCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	cancel()
	assert.Equal(t, 0, g.Len())

	g.Publish(domain.Change{Topic: domain.TopicIncidents})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
}

func TestSubscribe_ContextCanceled(t *testing.T) {
	g := NewGateway()
	defer g.Close()

	ctx, cancelCtx := context.WithCancel(context.Background())
	q, _ := counterQuery(domain.TopicIncidents, "")
	rec := &recorder{}
	Subscribe(ctx, g, q, rec.onUpdate, rec.onError)
	require.Eventually(t, func() bool { return rec.updateCount() == 1 }, time.Second, 5*time.Millisecond)

	cancelCtx()
	require.Eventually(t, func() bool { return g.Len() == 0 }, time.Second, 5*time.Millisecond)

	_, errs := rec.snapshot()
	assert.Empty(t, errs, "cancellation is not reported as an error")
}

func TestClose(t *testing.T) {
	g := NewGateway()

	q, _ := counterQuery(domain.TopicIncidents, "")
	rec := &recorder{}
	Subscribe(context.Background(), g, q, rec.onUpdate, rec.onError)
	require.Eventually(t, func() bool { return rec.updateCount() == 1 }, time.Second, 5*time.Millisecond)

	g.Close()
	assert.Equal(t, 0, g.Len())

	require.Eventually(t, func() bool {
		_, errs := rec.snapshot()
		return len(errs) == 1
	}, time.Second, 5*time.Millisecond, "active subscribers are told about shutdown")
	_, errs := rec.snapshot()
	assert.ErrorIs(t, errs[0], ErrGatewayClosed)

	late := &recorder{}
	cancel := Subscribe(context.Background(), g, q, late.onUpdate, late.onError)
	cancel()
	_, errs = late.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrGatewayClosed)
}
