// Package pipeline drains decoded events from a transport into the
// aggregate store, applying the active source/category filter on the way.
// One pipeline goroutine is the single consumer of the transport channel,
// which serializes store mutation across reconnects.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nixlim/agentstream/internal/aggregate"
	"github.com/nixlim/agentstream/internal/events"
)

// Pipeline filters the event stream and feeds the aggregate store.
type Pipeline struct {
	store *aggregate.Store
	log   *zap.Logger

	mu     sync.RWMutex
	filter events.Filter
}

// New creates a Pipeline feeding store. A nil logger disables logging.
func New(store *aggregate.Store, filter events.Filter, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:  store,
		log:    log,
		filter: filter,
	}
}

// Filter returns the active filter.
func (p *Pipeline) Filter() events.Filter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter
}

// SetFilter replaces the active filter. The change applies to events
// consumed after the call; already-aggregated state is never rewritten.
func (p *Pipeline) SetFilter(f events.Filter) {
	p.mu.Lock()
	p.filter = f
	p.mu.Unlock()
	p.log.Info("filter changed", zap.String("filter", f.String()))
}

// Run consumes events from in until the context is cancelled or the
// channel closes. Filtered-out events are discarded before they reach the
// store; duplicates are reported by the store and logged.
func (p *Pipeline) Run(ctx context.Context, in <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-in:
			if !ok {
				return
			}
			if !p.Filter().Matches(e) {
				continue
			}
			if !p.store.Accept(e) {
				p.log.Debug("dropped duplicate event",
					zap.Int64("seq", e.Seq),
					zap.String("source", e.Source),
					zap.String("category", e.Category))
			}
		}
	}
}
