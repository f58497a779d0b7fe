// Package watch implements the change notification hub: subscribers register
// watch filters over entity lifecycle events and receive them asynchronously,
// in commit order, without the mutation path ever blocking on delivery.
package watch

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// Handler processes one lifecycle event. Handlers run on the filter's own
// delivery goroutine; a panic is contained and logged, never propagated to
// the hub or to other subscribers.
type Handler func(ev entity.Event)

// FilterOptions configures one watch filter.
type FilterOptions struct {
	// Kinds restricts delivery to the listed event kinds. Empty means all.
	Kinds []entity.EventKind
	// Rate caps deliveries per second for this filter. Zero means
	// unlimited. Events above the cap queue; they are never dropped.
	Rate rate.Limit
	// Burst is the limiter burst size; defaults to 1 when Rate is set.
	Burst int
}

// Hub fans committed lifecycle events out to watch filters. Publish assigns
// each event a sequence number under the hub lock and enqueues it to every
// matching active filter before releasing, so a single filter always
// observes events in sequence order. Ordering across different filters is
// not defined.
type Hub struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	seq     int64
	filters map[string]*Filter
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(lg *zap.SugaredLogger) *Hub {
	if lg == nil {
		lg = logger.Logger
	}
	return &Hub{
		logger:  lg,
		filters: make(map[string]*Filter),
	}
}

// Watch registers a new filter in the Created state. No events are
// delivered until the caller starts it.
func (h *Hub) Watch(handler Handler, opts FilterOptions) (*Filter, error) {
	if handler == nil {
		return nil, errors.NewInvalidInputf("watch handler must not be nil")
	}
	for _, k := range opts.Kinds {
		if _, ok := entity.ParseEventKind(string(k)); !ok {
			return nil, errors.NewInvalidInputf("unknown event kind %q", k)
		}
	}

	f := newFilter(h, uuid.NewString(), handler, opts)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.WrapUnavailable(errors.New("hub closed"), "register watch filter")
	}
	h.filters[f.ID] = f
	h.logger.Debugw("watch filter registered", logger.FieldFilterID, f.ID)
	return f, nil
}

// Publish assigns the event its sequence number and enqueues it to every
// matching active filter. It never blocks on handler execution.
func (h *Hub) Publish(ev entity.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.seq++
	ev.Seq = h.seq
	for _, f := range h.filters {
		if f.wants(ev.Kind) {
			f.enqueue(ev)
		}
	}
}

// FilterCount reports registered (not uninstalled) filters.
func (h *Hub) FilterCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.filters)
}

// Close uninstalls every filter and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	remaining := make([]*Filter, 0, len(h.filters))
	for _, f := range h.filters {
		remaining = append(remaining, f)
	}
	h.mu.Unlock()

	for _, f := range remaining {
		f.Uninstall()
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.filters, id)
}
