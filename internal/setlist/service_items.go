package setlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"setlist-service/internal/position"
)

const (
	maxTuningLen = 50
	maxNotesLen  = 2000
)

// ItemInput adds a track to a setlist. Without a Position the item is appended.
type ItemInput struct {
	TrackID        string  `json:"trackId"`
	Position       *int    `json:"position"`
	CustomTuning   *string `json:"customTuning"`
	Notes          *string `json:"notes"`
	CustomDuration *int    `json:"customDuration"`
	SectionID      *string `json:"sectionId"`
}

// ItemPatch changes the overrides of an item. Absent fields are left alone; an
// explicit null clears the field.
type ItemPatch struct {
	CustomTuning   Nullable[string] `json:"customTuning"`
	Notes          Nullable[string] `json:"notes"`
	CustomDuration Nullable[int]    `json:"customDuration"`
	SectionID      Nullable[string] `json:"sectionId"`
}

func validateOverrides(tuning, notes *string, duration *int) error {
	if tuning != nil && len(*tuning) > maxTuningLen {
		return invalid("customTuning is too long")
	}
	if notes != nil && len(*notes) > maxNotesLen {
		return invalid("notes are too long")
	}
	if duration != nil && *duration < 0 {
		return invalid("customDuration must not be negative")
	}
	return nil
}

func checkSection(ctx context.Context, st Store, setlistID string, sectionID *string) error {
	if sectionID == nil {
		return nil
	}
	_, err := st.FindSection(ctx, setlistID, *sectionID)
	if errors.Is(err, ErrNotFound) {
		return invalid("section %s does not belong to this setlist", *sectionID)
	}
	return err
}

// placement returns the position a new element of kind takes: the requested one, which
// must be free, or the next append slot.
func placement(ctx context.Context, st Store, setlistID string, kind position.Kind, requested *int) (int, error) {
	if requested == nil {
		max, err := st.MaxPosition(ctx, setlistID, kind)
		if err != nil {
			return 0, err
		}
		return position.Next(max), nil
	}
	if *requested < 0 {
		return 0, invalid("position must not be negative")
	}
	taken, err := st.PositionTaken(ctx, setlistID, kind, *requested)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, invalid("%s position %d is taken", kind, *requested)
	}
	return *requested, nil
}

func (s *Service) AddItem(ctx context.Context, cred Credentials, setlistID string, in ItemInput) (*Item, error) {
	a := s.actor(ctx, cred)

	var created Item
	err := s.mutate(ctx, setlistID, a, LevelEdit, func(tx Store, sl *SetList) error {
		trackID := strings.TrimSpace(in.TrackID)
		if trackID == "" {
			return invalid("trackId is required")
		}
		tuning, notes := trimOptional(in.CustomTuning), trimOptional(in.Notes)
		if err := validateOverrides(tuning, notes, in.CustomDuration); err != nil {
			return err
		}
		ok, err := tx.TrackExists(ctx, trackID)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("track %s does not exist", trackID)
		}
		sectionID := trimOptional(in.SectionID)
		if err := checkSection(ctx, tx, setlistID, sectionID); err != nil {
			return err
		}

		pos, err := placement(ctx, tx, setlistID, position.KindItem, in.Position)
		if err != nil {
			return err
		}

		created = Item{
			ID:             s.newID(),
			SetlistID:      setlistID,
			TrackID:        trackID,
			Position:       pos,
			CustomTuning:   tuning,
			Notes:          notes,
			CustomDuration: in.CustomDuration,
			SectionID:      sectionID,
			CreatedAt:      s.now().UTC(),
		}
		return tx.CreateItem(ctx, &created)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, a, EventItemAdded, setlistID, created)
	return &created, nil
}

func (s *Service) UpdateItem(ctx context.Context, cred Credentials, setlistID, itemID string, p ItemPatch) (*Item, error) {
	a := s.actor(ctx, cred)

	var updated Item
	err := s.mutate(ctx, setlistID, a, LevelEdit, func(tx Store, sl *SetList) error {
		it, err := tx.FindItem(ctx, setlistID, itemID)
		if errors.Is(err, ErrNotFound) {
			return notFound("item not found")
		}
		if err != nil {
			return err
		}

		if p.CustomTuning.Set {
			it.CustomTuning = trimOptional(p.CustomTuning.Value)
		}
		if p.Notes.Set {
			it.Notes = trimOptional(p.Notes.Value)
		}
		if p.CustomDuration.Set {
			it.CustomDuration = p.CustomDuration.Value
		}
		if p.SectionID.Set {
			it.SectionID = trimOptional(p.SectionID.Value)
			if err := checkSection(ctx, tx, setlistID, it.SectionID); err != nil {
				return err
			}
		}
		if err := validateOverrides(it.CustomTuning, it.Notes, it.CustomDuration); err != nil {
			return err
		}

		if err := tx.UpdateItem(ctx, it); err != nil {
			return err
		}
		updated = *it
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, a, EventItemUpdated, setlistID, updated)
	return &updated, nil
}

// RemoveItem deletes an item. Positions of the remaining items are left as they are.
func (s *Service) RemoveItem(ctx context.Context, cred Credentials, setlistID, itemID string) error {
	a := s.actor(ctx, cred)

	err := s.mutate(ctx, setlistID, a, LevelEdit, func(tx Store, sl *SetList) error {
		err := tx.DeleteItem(ctx, setlistID, itemID)
		if errors.Is(err, ErrNotFound) {
			return notFound("item not found")
		}
		return err
	})
	if err != nil {
		return err
	}

	s.emit(ctx, a, EventItemDeleted, setlistID, deletedRef{ID: itemID})
	return nil
}

// ReorderItems moves a batch of items and returns the full list in its new order.
func (s *Service) ReorderItems(ctx context.Context, cred Credentials, setlistID string, moves []position.Move) ([]Item, error) {
	a := s.actor(ctx, cred)

	var items []Item
	err := s.mutate(ctx, setlistID, a, LevelEdit, func(tx Store, sl *SetList) error {
		current, err := tx.ListItems(ctx, setlistID)
		if err != nil {
			return err
		}
		positions := make(map[string]int, len(current))
		for _, it := range current {
			positions[it.ID] = it.Position
		}

		plan, err := position.PlanReorder(positions, moves)
		if err != nil {
			return invalid("%v", err)
		}
		w := position.WriterFunc(func(ctx context.Context, id string, pos int) error {
			return tx.SetItemPosition(ctx, setlistID, id, pos)
		})
		if err := position.Apply(ctx, w, plan); err != nil {
			return fmt.Errorf("reorder items: %w", err)
		}

		items, err = tx.ListItems(ctx, setlistID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, a, EventReordered, setlistID, items)
	return items, nil
}
