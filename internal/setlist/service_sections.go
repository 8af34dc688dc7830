package setlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"setlist-service/internal/position"
)

type SectionInput struct {
	Name          string `json:"name"`
	Position      *int   `json:"position"`
	BreakDuration *int   `json:"breakDuration"`
}

type SectionPatch struct {
	Name          *string       `json:"name"`
	BreakDuration Nullable[int] `json:"breakDuration"`
}

func validateSectionName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return "", invalid("section name must be between 1 and %d characters", maxNameLen)
	}
	return name, nil
}

func validateBreak(d *int) error {
	if d != nil && *d < 0 {
		return invalid("breakDuration must not be negative")
	}
	return nil
}

func (s *Service) AddSection(ctx context.Context, cred Credentials, setlistID string, in SectionInput) (*Section, error) {
	a := s.actor(ctx, cred)

	var created Section
	err := s.mutate(ctx, setlistID, a, LevelEdit, func(tx Store, sl *SetList) error {
		name, err := validateSectionName(in.Name)
		if err != nil {
			return err
		}
		if err := validateBreak(in.BreakDuration); err != nil {
			return err
		}
		pos, err := placement(ctx, tx, setlistID, position.KindSection, in.Position)
		if err != nil {
			return err
		}

		created = Section{
			ID:            s.newID(),
			SetlistID:     setlistID,
			Name:          name,
			Position:      pos,
			BreakDuration: in.BreakDuration,
			CreatedAt:     s.now().UTC(),
		}
		return tx.CreateSection(ctx, &created)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, a, EventSectionAdded, setlistID, created)
	return &created, nil
}

func (s *Service) UpdateSection(ctx context.Context, cred Credentials, setlistID, sectionID string, p SectionPatch) (*Section, error) {
	a := s.actor(ctx, cred)

	var updated Section
	err := s.mutate(ctx, setlistID, a, LevelEdit, func(tx Store, sl *SetList) error {
		sec, err := tx.FindSection(ctx, setlistID, sectionID)
		if errors.Is(err, ErrNotFound) {
			return notFound("section not found")
		}
		if err != nil {
			return err
		}

		if p.Name != nil {
			if sec.Name, err = validateSectionName(*p.Name); err != nil {
				return err
			}
		}
		if p.BreakDuration.Set {
			if err := validateBreak(p.BreakDuration.Value); err != nil {
				return err
			}
			sec.BreakDuration = p.BreakDuration.Value
		}

		if err := tx.UpdateSection(ctx, sec); err != nil {
			return err
		}
		updated = *sec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, a, EventSectionUpdated, setlistID, updated)
	return &updated, nil
}

// DeleteSection removes a section. Its items stay in the setlist without a section.
func (s *Service) DeleteSection(ctx context.Context, cred Credentials, setlistID, sectionID string) error {
	a := s.actor(ctx, cred)

	err := s.mutate(ctx, setlistID, a, LevelEdit, func(tx Store, sl *SetList) error {
		if _, err := tx.FindSection(ctx, setlistID, sectionID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFound("section not found")
			}
			return err
		}
		n, err := tx.UnsectionItems(ctx, setlistID, sectionID)
		if err != nil {
			return err
		}
		if err := tx.DeleteSection(ctx, setlistID, sectionID); err != nil {
			return err
		}
		s.log.Debug("setlist-service: section deleted", "setlist", setlistID, "section", sectionID, "unsectioned", n)
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, a, EventSectionDeleted, setlistID, deletedRef{ID: sectionID})
	return nil
}

// ReorderSections moves a batch of sections and returns all sections in their new order.
func (s *Service) ReorderSections(ctx context.Context, cred Credentials, setlistID string, moves []position.Move) ([]Section, error) {
	a := s.actor(ctx, cred)

	var sections []Section
	err := s.mutate(ctx, setlistID, a, LevelEdit, func(tx Store, sl *SetList) error {
		current, err := tx.ListSections(ctx, setlistID)
		if err != nil {
			return err
		}
		positions := make(map[string]int, len(current))
		for _, sec := range current {
			positions[sec.ID] = sec.Position
		}

		plan, err := position.PlanReorder(positions, moves)
		if err != nil {
			return invalid("%v", err)
		}
		w := position.WriterFunc(func(ctx context.Context, id string, pos int) error {
			return tx.SetSectionPosition(ctx, setlistID, id, pos)
		})
		if err := position.Apply(ctx, w, plan); err != nil {
			return fmt.Errorf("reorder sections: %w", err)
		}

		sections, err = tx.ListSections(ctx, setlistID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, a, EventSectionsReordered, setlistID, sections)
	return sections, nil
}
