package scheduler

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/oshokin/tourist-safety/internal/clock"
)

// Owner groups scheduled actions for bulk cancellation.
type Owner string

// Handle identifies one scheduled action.
type Handle uint64

// Action is the payload invoked when a scheduled action fires.
type Action func()

// Observer receives queue lifecycle notifications. Calls are made outside the queue lock.
type Observer interface {
	Scheduled(owner Owner, label string)
	Fired(owner Owner, label string, lateness time.Duration)
	Cancelled(owner Owner, label string)
}

var (
	// ErrSchedulingConflict is returned when scheduling into an owner tag that was already cancelled.
	ErrSchedulingConflict = errors.New("scheduling conflict: owner already cancelled")
	// errManualClockRequired is returned by Advance on a queue driven by a non-manual clock.
	errManualClockRequired = errors.New("advance requires a manual clock")
)

// scheduledAction is one queued action. It is owned by the queue until it fires or is cancelled.
type scheduledAction struct {
	handle Handle
	owner  Owner
	label  string
	due    time.Time
	action Action
}

// Queue is an ordered set of delayed actions tagged by owner.
type Queue struct {
	clock    clock.Clock
	observer Observer

	// mu protects everything below.
	mu      sync.Mutex
	counter uint64
	// ordered is sorted by due time; equal due times keep scheduling order.
	ordered []*scheduledAction
	index   map[Handle]*scheduledAction
	pending map[Owner]int
	retired map[Owner]struct{}

	// wake is signalled whenever a new action is scheduled so Run can re-arm its timer.
	wake chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithObserver attaches an observer, e.g. a metrics collector.
func WithObserver(o Observer) Option {
	return func(q *Queue) {
		q.observer = o
	}
}

// New creates an empty queue reading time from c.
func New(c clock.Clock, opts ...Option) *Queue {
	q := &Queue{
		clock:   c,
		index:   make(map[Handle]*scheduledAction),
		pending: make(map[Owner]int),
		retired: make(map[Owner]struct{}),
		wake:    make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Now returns the queue's current time.
func (q *Queue) Now() time.Time {
	return q.clock.Now()
}

// Schedule queues action to fire after delay under owner.
// Negative delays are treated as zero.
func (q *Queue) Schedule(owner Owner, delay time.Duration, label string, action Action) (Handle, error) {
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()

	if _, ok := q.retired[owner]; ok {
		q.mu.Unlock()

		return 0, ErrSchedulingConflict
	}

	q.counter++

	sa := &scheduledAction{
		handle: Handle(q.counter),
		owner:  owner,
		label:  label,
		due:    q.clock.Now().Add(delay),
		action: action,
	}

	// Insert after every action due at or before sa.due to keep ties in scheduling order.
	at := sort.Search(len(q.ordered), func(i int) bool {
		return q.ordered[i].due.After(sa.due)
	})

	q.ordered = slices.Insert(q.ordered, at, sa)

	q.index[sa.handle] = sa
	q.pending[owner]++

	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	if q.observer != nil {
		q.observer.Scheduled(owner, label)
	}

	return sa.handle, nil
}

// Cancel drops a pending action. It is a no-op for fired, cancelled or unknown handles.
func (q *Queue) Cancel(h Handle) {
	q.mu.Lock()

	sa, ok := q.index[h]
	if !ok {
		q.mu.Unlock()

		return
	}

	q.removeLocked(sa)
	q.mu.Unlock()

	if q.observer != nil {
		q.observer.Cancelled(sa.owner, sa.label)
	}
}

// CancelAll drops every pending action of owner and retires the tag.
// It returns the number of actions cancelled.
func (q *Queue) CancelAll(owner Owner) int {
	q.mu.Lock()

	q.retired[owner] = struct{}{}

	var dropped []*scheduledAction

	kept := q.ordered[:0]

	for _, sa := range q.ordered {
		if sa.owner != owner {
			kept = append(kept, sa)

			continue
		}

		dropped = append(dropped, sa)
		delete(q.index, sa.handle)
	}

	clear(q.ordered[len(kept):])
	q.ordered = kept
	delete(q.pending, owner)

	q.mu.Unlock()

	if q.observer != nil {
		for _, sa := range dropped {
			q.observer.Cancelled(sa.owner, sa.label)
		}
	}

	return len(dropped)
}

// Pending returns how many actions of owner are still waiting to fire.
func (q *Queue) Pending(owner Owner) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.pending[owner]
}

// Len returns the number of pending actions across all owners.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.ordered)
}

// NextDue returns the due time of the earliest pending action.
func (q *Queue) NextDue() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ordered) == 0 {
		return time.Time{}, false
	}

	return q.ordered[0].due, true
}

// RunDue fires every action whose due time is not after the current time and
// returns how many fired. Actions scheduled by a firing action are picked up
// in the same call when they are already due.
func (q *Queue) RunDue() int {
	fired := 0

	for {
		sa, ok := q.popDue()
		if !ok {
			return fired
		}

		if q.observer != nil {
			q.observer.Fired(sa.owner, sa.label, q.clock.Now().Sub(sa.due))
		}

		if sa.action != nil {
			sa.action()
		}

		fired++
	}
}

// Advance moves the queue's manual clock forward by d, firing every action
// that becomes due on the way at its own due time.
func (q *Queue) Advance(d time.Duration) error {
	manual, ok := q.clock.(*clock.Manual)
	if !ok {
		return errManualClockRequired
	}

	target := manual.Now().Add(d)

	for {
		due, ok := q.NextDue()
		if !ok || due.After(target) {
			break
		}

		manual.Set(due)
		q.RunDue()
	}

	manual.Set(target)

	return nil
}

// Run fires actions from the wall clock until ctx is done.
// Every batch runs with locker held so actions are serialized with whatever
// else the caller guards with it.
func (q *Queue) Run(ctx context.Context, locker sync.Locker) {
	for {
		var (
			timer  *time.Timer
			expiry <-chan time.Time
		)

		if due, ok := q.NextDue(); ok {
			timer = time.NewTimer(max(due.Sub(q.clock.Now()), 0))
			expiry = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)

			return
		case <-q.wake:
			stopTimer(timer)
		case <-expiry:
			locker.Lock()
			q.RunDue()
			locker.Unlock()
		}
	}
}

// popDue removes and returns the earliest action if it is due.
// Removal happens under the lock, so a later Cancel of the same handle is a no-op
// and an action cancelled before this point can never be returned.
func (q *Queue) popDue() (*scheduledAction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ordered) == 0 {
		return nil, false
	}

	sa := q.ordered[0]
	if sa.due.After(q.clock.Now()) {
		return nil, false
	}

	q.removeLocked(sa)

	return sa, true
}

// removeLocked deletes sa from every index. q.mu must be held.
func (q *Queue) removeLocked(sa *scheduledAction) {
	for i, candidate := range q.ordered {
		if candidate == sa {
			q.ordered = slices.Delete(q.ordered, i, i+1)

			break
		}
	}

	delete(q.index, sa.handle)

	q.pending[sa.owner]--
	if q.pending[sa.owner] <= 0 {
		delete(q.pending, sa.owner)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
