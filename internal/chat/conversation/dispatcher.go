package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	logx "github.com/Chative-core-poc-v1/sqlchat/pkg/logger"
)

// Dispatcher sends each submitted query to the Query API, one at a time, and
// writes the outcome back to the store at the same position.
//
// Dispatch is explicit. A call made while the dispatcher is busy returns
// ErrDispatchBusy without issuing a request; the running call keeps draining
// unanswered positions in submission order until none are left.
type Dispatcher struct {
	store   *Store
	backend model.QueryBackend

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func NewDispatcher(store *Store, backend model.QueryBackend) *Dispatcher {
	return &Dispatcher{store: store, backend: backend}
}

// Dispatch answers pos and then every position submitted while it was running.
// It returns the error that prevented pos from being dispatched, if any.
// Backend failures are recorded as error responses and are not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, pos int) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrDispatchBusy
	}
	d.running = true
	d.mu.Unlock()

	err := d.dispatchOne(ctx, pos)
	for {
		d.mu.Lock()
		next, ok := d.store.NextUnanswered()
		if !ok || ctx.Err() != nil {
			d.running = false
			d.mu.Unlock()
			return err
		}
		d.mu.Unlock()

		nextErr := d.dispatchOne(ctx, next)
		if errors.Is(nextErr, ErrDispatchInFlight) {
			// Someone outside the dispatcher owns the pending response.
			logx.Warn().Err(nextErr).Str("component", "dispatcher").Int("position", next).Msg("drain stopped")
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return err
		}
		// Any other failure means the state moved under us, usually a clear.
		// Re-read the next position.
	}
}

// Busy reports whether a Dispatch call is running.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// CancelInFlight aborts the backend call that is currently outstanding, if
// any. The dispatcher itself keeps running.
func (d *Dispatcher) CancelInFlight() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, pos int) error {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.cancel = nil
		d.mu.Unlock()
	}()

	ticket, q, err := d.store.beginDispatch(pos)
	if err != nil {
		return err
	}

	logx.Debug().Str("component", "dispatcher").Int("position", pos).Uint64("generation", ticket.Generation).Msg("dispatching query")

	payload, callErr := d.backend.Query(callCtx, q.Text)
	outcome := model.QueryOutcome{Payload: payload, Err: callErr}
	if callErr != nil {
		logx.Warn().Err(callErr).Str("component", "dispatcher").Int("position", pos).Msg("query failed")
	}

	if err := d.store.RecordResponse(ticket, outcome); err != nil {
		if errors.Is(err, ErrStaleTicket) {
			logx.Debug().Str("component", "dispatcher").Int("position", pos).Msg("dropped outcome from a cleared conversation")
			return nil
		}
		return err
	}
	return nil
}
