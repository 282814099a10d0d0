package paymenthandler

import (
	"bytes"
	"sync"

	"github.com/google/uuid"

	paywall "github.com/lnpaywall/go-paywall"
)

type busEntry struct {
	listener paywall.PaymentListener
	filter   paywall.PaymentEventFilter
}

// eventBus fans payment events out to registered listeners. Delivery runs on
// the publisher's goroutine after the lock is released, so listeners may
// re-register without deadlocking.
type eventBus struct {
	mu        sync.Mutex
	listeners map[string]busEntry
}

func newEventBus() *eventBus {
	return &eventBus{listeners: make(map[string]busEntry)}
}

func (b *eventBus) register(listener paywall.PaymentListener, filter paywall.PaymentEventFilter) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.listeners[id] = busEntry{listener: listener, filter: filter}
	b.mu.Unlock()
	return id
}

func (b *eventBus) unregister(id string) {
	b.mu.Lock()
	delete(b.listeners, id)
	b.mu.Unlock()
}

func (b *eventBus) publish(event paywall.PaymentEvent) {
	b.mu.Lock()
	var matched []paywall.PaymentListener
	for id, entry := range b.listeners {
		if !matches(entry.filter, event) {
			continue
		}
		matched = append(matched, entry.listener)
		if entry.filter.UnregisterAfterEvent {
			delete(b.listeners, id)
		}
	}
	b.mu.Unlock()

	for _, l := range matched {
		l.OnPaymentEvent(event)
	}
}

func matches(filter paywall.PaymentEventFilter, event paywall.PaymentEvent) bool {
	if filter.Type != paywall.EventAny && filter.Type != "" && filter.Type != event.Type {
		return false
	}
	if filter.PreImageHash != nil {
		if event.Payment == nil || !bytes.Equal(filter.PreImageHash, event.Payment.PaymentPreImageHash()) {
			return false
		}
	}
	return true
}
