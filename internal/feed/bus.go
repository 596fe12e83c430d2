package feed

import (
	"context"
	"errors"
	"sync"
)

// Publisher delivers invalidations after a mutation commits.
type Publisher interface {
	Publish(ctx context.Context, inv Invalidation) error
}

// Handler reacts to an invalidation.
type Handler func(ctx context.Context, inv Invalidation) error

// Bus fans invalidations out to in-process subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for every future invalidation.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish runs every subscriber in registration order. All of them run
// even if one fails; the errors are joined.
func (b *Bus) Publish(ctx context.Context, inv Invalidation) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, inv); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publishers sends each invalidation to every publisher in turn.
type Publishers []Publisher

// Publish implements Publisher.
func (ps Publishers) Publish(ctx context.Context, inv Invalidation) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, inv); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
