// Package live pushes query results to clients and refreshes them whenever a
// committed write may have changed them.
package live

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

// Query describes a live result set. Key narrows the topic to one record
// (an incident id or a recipient id); an empty Key matches the whole topic.
type Query[T any] struct {
	Topic domain.ChangeTopic
	Key   string
	Fetch func(ctx context.Context) (T, error)
}

// CancelFunc ends a subscription. It is safe to call more than once.
type CancelFunc func()

// Gateway fans change signals out to subscriptions.
type Gateway struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

type subscription struct {
	topic  domain.ChangeTopic
	key    string
	dirty  chan struct{}
	cancel context.CancelFunc

	// shutdown is set when the gateway, not the subscriber, ended the subscription.
	shutdown atomic.Bool
}

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{subs: make(map[uint64]*subscription)}
}

// Subscribe yields the current result of q, then a fresh result after every
// matching change. Results are delivered one at a time from a single
// goroutine; changes that arrive while a fetch is running are coalesced into
// one more fetch. A failed fetch is reported once through onError and ends
// the subscription, as does closing the gateway (with ErrGatewayClosed).
func Subscribe[T any](ctx context.Context, g *Gateway, q Query[T], onUpdate func(T), onError func(error)) CancelFunc {
	ctx, cancelCtx := context.WithCancel(ctx)
	sub := &subscription{
		topic:  q.Topic,
		key:    q.Key,
		dirty:  make(chan struct{}, 1),
		cancel: cancelCtx,
	}
	sub.dirty <- struct{}{}

	id, ok := g.add(sub)
	if !ok {
		cancelCtx()
		onError(ErrGatewayClosed)
		return func() {}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelCtx()
			g.remove(id)
		})
	}

	go func() {
		defer cancel()
		stopped := func() {
			if sub.shutdown.Load() {
				onError(ErrGatewayClosed)
			}
		}
		for {
			select {
			case <-ctx.Done():
				stopped()
				return
			case <-sub.dirty:
			}

			result, err := q.Fetch(ctx)
			if ctx.Err() != nil {
				stopped()
				return
			}
			if err != nil {
				refreshesTotal.WithLabelValues("error").Inc()
				onError(err)
				return
			}
			refreshesTotal.WithLabelValues("ok").Inc()
			onUpdate(result)
		}
	}()

	return cancel
}

// Publish marks every subscription the change may affect as stale.
func (g *Gateway) Publish(change domain.Change) {
	changesTotal.WithLabelValues(string(change.Topic)).Inc()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sub := range g.subs {
		if !sub.matches(change) {
			continue
		}
		select {
		case sub.dirty <- struct{}{}:
		default:
		}
	}
}

// Close ends every subscription and rejects new ones.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	for id, sub := range g.subs {
		sub.shutdown.Store(true)
		sub.cancel()
		delete(g.subs, id)
		activeSubscriptions.Dec()
	}
}

// Len returns the number of active subscriptions.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

func (g *Gateway) add(sub *subscription) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return 0, false
	}
	g.nextID++
	g.subs[g.nextID] = sub
	activeSubscriptions.Inc()
	return g.nextID, true
}

func (g *Gateway) remove(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.subs[id]; ok {
		delete(g.subs, id)
		activeSubscriptions.Dec()
	}
}

func (s *subscription) matches(change domain.Change) bool {
	if change.Topic == domain.TopicAll {
		return true
	}
	if change.Topic != s.topic {
		return false
	}
	return s.key == "" || change.Key == "" || change.Key == s.key
}
