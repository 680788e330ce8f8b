// Package scheduler implements the scheduled action queue that drives every
// simulation timeline.
//
// Actions are scheduled under an owner tag with a relative delay and fire in
// due-time order, ties broken by scheduling order. Cancel drops a single
// action, CancelAll drops every pending action of an owner and retires the tag
// so later attempts to schedule into it fail with ErrSchedulingConflict.
//
// The queue never fires anything on its own: RunDue fires what is due now,
// Advance walks a manual clock forward, and Run drives the queue from the
// wall clock while holding the caller's lock around every batch.
package scheduler
