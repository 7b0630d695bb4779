package mailqueue

import (
	"fmt"
	"slices"
	"time"
)

// lifecycle lists every status an item may move to from a given status.
// Terminal states only leave through the administrative reset.
var lifecycle = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusSent, StatusPending, StatusFailed},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether from -> to is part of the item lifecycle.
func CanTransition(from, to Status) bool {
	return slices.Contains(lifecycle[from], to)
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// moveTo changes the status in place and bumps UpdatedAt.
func (i *Item) moveTo(to Status, now time.Time) error {
	if err := checkTransition(i.Status, to); err != nil {
		return err
	}
	i.Status = to
	i.UpdatedAt = now
	return nil
}
