// Package position assigns and rewrites the integer positions of the two ordered
// collections a setlist owns (items and sections).
//
// Positions are unique inside one collection and the storage layer enforces that
// eagerly, so a batch reorder is applied in two phases: every moved element is first
// parked on a negative temporary position, then written to its final position. Real
// positions are never negative, so no intermediate write can collide.
package position

import (
	"context"
	"errors"
	"fmt"
)

// Kind names one of the two independent ordered collections of a setlist.
type Kind string

const (
	KindItem    Kind = "item"
	KindSection Kind = "section"
)

// ErrInvalidBatch is wrapped by every validation failure of PlanReorder.
var ErrInvalidBatch = errors.New("invalid reorder batch")

// Move requests that element ID ends up at Position.
type Move struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// Plan is the validated, two-phase form of a reorder batch.
type Plan struct {
	Temporary []Move
	Final     []Move
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Final) == 0
}

// Next returns the append position for a collection whose current maximum is max
// (nil when the collection is empty).
func Next(max *int) int {
	if max == nil {
		return 0
	}
	return *max + 1
}

// Temporary returns the parking position of the i-th (0-based) element of a batch.
func Temporary(i int) int {
	return -(i + 1)
}

// PlanReorder validates moves against the current positions of one collection
// (element id -> position) and builds the two-phase plan. Moves that leave an element
// where it already is are dropped from the plan.
func PlanReorder(current map[string]int, moves []Move) (Plan, error) {
	if len(moves) == 0 {
		return Plan{}, fmt.Errorf("%w: no moves given", ErrInvalidBatch)
	}

	seenIDs := make(map[string]struct{}, len(moves))
	targets := make(map[int]string, len(moves))
	for _, m := range moves {
		if m.ID == "" {
			return Plan{}, fmt.Errorf("%w: empty id", ErrInvalidBatch)
		}
		if _, ok := current[m.ID]; !ok {
			return Plan{}, fmt.Errorf("%w: %s does not belong to this setlist", ErrInvalidBatch, m.ID)
		}
		if _, dup := seenIDs[m.ID]; dup {
			return Plan{}, fmt.Errorf("%w: %s appears more than once", ErrInvalidBatch, m.ID)
		}
		seenIDs[m.ID] = struct{}{}
		if m.Position < 0 {
			return Plan{}, fmt.Errorf("%w: position %d for %s is negative", ErrInvalidBatch, m.Position, m.ID)
		}
		if other, dup := targets[m.Position]; dup {
			return Plan{}, fmt.Errorf("%w: %s and %s both target position %d", ErrInvalidBatch, other, m.ID, m.Position)
		}
		targets[m.Position] = m.ID
	}

	// A target held by an element that is not moving would collide in phase two.
	for id, pos := range current {
		if _, moving := seenIDs[id]; moving {
			continue
		}
		if mover, taken := targets[pos]; taken {
			return Plan{}, fmt.Errorf("%w: position %d requested for %s is held by %s", ErrInvalidBatch, pos, mover, id)
		}
	}

	var plan Plan
	for _, m := range moves {
		if current[m.ID] == m.Position {
			continue
		}
		plan.Temporary = append(plan.Temporary, Move{ID: m.ID, Position: Temporary(len(plan.Temporary))})
		plan.Final = append(plan.Final, m)
	}
	return plan, nil
}

// Writer persists one position change. Implementations are expected to run inside
// the caller's atomic unit so that a failed plan leaves no change behind.
type Writer interface {
	SetPosition(ctx context.Context, id string, position int) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, id string, position int) error

func (f WriterFunc) SetPosition(ctx context.Context, id string, position int) error {
	return f(ctx, id, position)
}

// Apply writes the plan: all temporary positions first, then all final ones.
func Apply(ctx context.Context, w Writer, p Plan) error {
	for _, m := range p.Temporary {
		if err := w.SetPosition(ctx, m.ID, m.Position); err != nil {
			return fmt.Errorf("park %s: %w", m.ID, err)
		}
	}
	for _, m := range p.Final {
		if err := w.SetPosition(ctx, m.ID, m.Position); err != nil {
			return fmt.Errorf("move %s to %d: %w", m.ID, m.Position, err)
		}
	}
	return nil
}
