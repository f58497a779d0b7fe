package watch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// State is a watch filter's lifecycle state.
type State int

const (
	// StateCreated is the initial state: registered, not yet delivering.
	StateCreated State = iota
	// StateActive delivers every matching event, at least once, in
	// sequence order.
	StateActive
	// StateStopped halts delivery but keeps the registration. Events
	// published while stopped are not queued; Start resumes the live
	// stream. Events already queued survive a stop and deliver on resume.
	StateStopped
	// StateUninstalled is terminal: resources released, no transitions out.
	StateUninstalled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	case StateUninstalled:
		return "uninstalled"
	}
	return "unknown"
}

// Filter is a live subscription handle. All methods are safe for concurrent
// use.
type Filter struct {
	ID string

	hub     *Hub
	handler Handler
	kinds   map[entity.EventKind]struct{}
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	queue []entity.Event
}

func newFilter(h *Hub, id string, handler Handler, opts FilterOptions) *Filter {
	f := &Filter{
		ID:      id,
		hub:     h,
		handler: handler,
		state:   StateCreated,
	}
	f.cond = sync.NewCond(&f.mu)
	f.ctx, f.cancel = context.WithCancel(context.Background())

	if len(opts.Kinds) > 0 {
		f.kinds = make(map[entity.EventKind]struct{}, len(opts.Kinds))
		for _, k := range opts.Kinds {
			f.kinds[k] = struct{}{}
		}
	}
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(opts.Rate, burst)
	}

	go f.run()
	return f
}

// State returns the filter's current lifecycle state.
func (f *Filter) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Start moves the filter to Active. Starting an already active filter is a
// no-op; starting an uninstalled one is an error.
func (f *Filter) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateCreated, StateStopped:
		f.state = StateActive
		f.cond.Signal()
		return nil
	case StateActive:
		return nil
	default:
		return errors.NewInvalidInputf("watch filter %s is uninstalled", f.ID)
	}
}

// Stop halts delivery while keeping the registration. Stopping a filter
// that was never started is an error; stopping a stopped one is a no-op.
func (f *Filter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateActive:
		f.state = StateStopped
		return nil
	case StateStopped:
		return nil
	case StateCreated:
		return errors.NewInvalidInputf("watch filter %s was never started", f.ID)
	default:
		return errors.NewInvalidInputf("watch filter %s is uninstalled", f.ID)
	}
}

// Uninstall releases the filter permanently. Idempotent; no transition out
// of this state exists.
func (f *Filter) Uninstall() {
	f.mu.Lock()
	if f.state == StateUninstalled {
		f.mu.Unlock()
		return
	}
	f.state = StateUninstalled
	f.queue = nil
	f.cond.Signal()
	f.mu.Unlock()

	f.cancel()
	f.hub.remove(f.ID)
	f.hub.logger.Debugw("watch filter uninstalled", logger.FieldFilterID, f.ID)
}

func (f *Filter) wants(kind entity.EventKind) bool {
	if f.kinds == nil {
		return true
	}
	_, ok := f.kinds[kind]
	return ok
}

// enqueue appends a matching event while the filter is active. Called with
// the hub lock held, which is what guarantees sequence order per filter.
func (f *Filter) enqueue(ev entity.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateActive {
		return
	}
	f.queue = append(f.queue, ev)
	f.cond.Signal()
}

// run is the filter's delivery goroutine, alive from registration to
// uninstall.
func (f *Filter) run() {
	for {
		f.mu.Lock()
		for f.state != StateUninstalled && !(f.state == StateActive && len(f.queue) > 0) {
			f.cond.Wait()
		}
		if f.state == StateUninstalled {
			f.mu.Unlock()
			return
		}
		ev := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()

		if f.limiter != nil {
			if err := f.limiter.Wait(f.ctx); err != nil {
				return // uninstalled while throttled
			}
		}
		f.deliver(ev)
	}
}

func (f *Filter) deliver(ev entity.Event) {
	defer func() {
		if r := recover(); r != nil {
			f.hub.logger.Errorw("watch handler panicked",
				logger.FieldFilterID, f.ID,
				logger.FieldEventKind, ev.Kind,
				logger.FieldEventSeq, ev.Seq,
				"panic", r,
			)
		}
	}()
	f.handler(ev)
}
