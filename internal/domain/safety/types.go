package safety

import (
	"errors"
	"fmt"
	"time"
)

// Category classifies who a notification is addressed to.
type Category string

const (
	// CategoryAuthority is a message to police or the control room.
	CategoryAuthority Category = "authority"
	// CategoryContact is a message to the tourist's emergency contact.
	CategoryContact Category = "contact"
	// CategoryLedger is an entry written to the incident ledger.
	CategoryLedger Category = "ledger"
)

// ErrUnknownCategory is returned when parsing an unsupported category.
var ErrUnknownCategory = errors.New("unknown notification category")

// ParseCategory validates a textual category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryAuthority, CategoryContact, CategoryLedger:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// Notification is one immutable entry of a machine's notification log.
type Notification struct {
	// ID increases monotonically within one log and is never reused.
	ID uint64
	// Category tells the panel how to render the entry.
	Category Category
	// Message is the human readable text.
	Message string
	// Timestamp is when the entry was appended.
	Timestamp time.Time
}

// Position is a point on the normalized demo map.
type Position struct {
	X float64
	Y float64
}

// Actor identifies the operator who sent a trigger.
type Actor struct {
	// Hostname is the machine the trigger came from.
	Hostname string
	// Username is the system user who sent it.
	Username string
}

// String renders the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return a.Username + "@" + a.Hostname
}

// Clone returns a copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}
