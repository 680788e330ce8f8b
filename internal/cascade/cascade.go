// Package cascade turns declarative notification steps into scheduled
// actions that append to an owned, append-ordered notification log.
package cascade

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// Step declares one notification fired Delay after the cascade is emitted.
type Step struct {
	Delay    time.Duration
	Category safety.Category
	Message  string
}

// Log is the append-ordered notification log of one machine instance.
// IDs keep increasing across resets.
type Log struct {
	entries []safety.Notification
	lastID  uint64
}

// Append adds a fresh entry and returns it.
func (l *Log) Append(category safety.Category, message string, at time.Time) safety.Notification {
	l.lastID++

	n := safety.Notification{
		ID:        l.lastID,
		Category:  category,
		Message:   message,
		Timestamp: at,
	}

	l.entries = append(l.entries, n)

	return n
}

// Entries returns a copy of the log.
func (l *Log) Entries() []safety.Notification {
	return append([]safety.Notification(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// reset empties the log without rewinding IDs.
func (l *Log) reset() {
	l.entries = nil
}

// Cascade schedules notification steps on a queue and owns the resulting log.
type Cascade struct {
	queue    *scheduler.Queue
	log      Log
	onAppend func(safety.Notification)
	logger   *zap.SugaredLogger
}

// New creates a cascade on queue. onAppend, if set, is called for every appended entry.
func New(queue *scheduler.Queue, logger *zap.SugaredLogger, onAppend func(safety.Notification)) *Cascade {
	return &Cascade{
		queue:    queue,
		onAppend: onAppend,
		logger:   logger,
	}
}

// Emit schedules every step under owner in declaration order and returns how
// many were scheduled. Steps rejected because owner was already cancelled are dropped.
func (c *Cascade) Emit(owner scheduler.Owner, steps []Step) int {
	scheduled := 0

	for _, step := range steps {
		_, err := c.queue.Schedule(owner, step.Delay, "notify:"+string(step.Category), func() {
			c.append(step.Category, step.Message)
		})

		switch {
		case err == nil:
			scheduled++
		case errors.Is(err, scheduler.ErrSchedulingConflict):
			c.logger.Debugw("Cascade step dropped", "owner", owner, "category", step.Category, "error", err)
		default:
			c.logger.Errorw("Cascade step not scheduled", "owner", owner, "error", err)
		}
	}

	return scheduled
}

// Clear cancels every pending step of owner and empties the log.
func (c *Cascade) Clear(owner scheduler.Owner) int {
	cancelled := c.queue.CancelAll(owner)
	c.log.reset()

	return cancelled
}

// Entries returns a copy of the notification log.
func (c *Cascade) Entries() []safety.Notification {
	return c.log.Entries()
}

// Len returns the number of logged notifications.
func (c *Cascade) Len() int {
	return c.log.Len()
}

func (c *Cascade) append(category safety.Category, message string) {
	n := c.log.Append(category, message, c.queue.Now())

	c.logger.Infow("Notification appended", "id", n.ID, "category", n.Category, "message", n.Message)

	if c.onAppend != nil {
		c.onAppend(n)
	}
}
