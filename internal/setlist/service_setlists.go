package setlist

import (
	"context"
	"strings"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 2000
)

type SetlistInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	GroupID     *string `json:"groupId"`
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// CreateSetlist stores a new, empty setlist owned by the caller. Attaching a group
// requires the caller to be one of its members.
func (s *Service) CreateSetlist(ctx context.Context, cred Credentials, in SetlistInput) (*SetList, error) {
	a := s.actor(ctx, cred)
	if !a.authenticated() {
		return nil, unauthenticated("sign in to create a setlist")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLen {
		return nil, invalid("name must be between 1 and %d characters", maxNameLen)
	}
	desc := trimOptional(in.Description)
	if desc != nil && len(*desc) > maxDescriptionLen {
		return nil, invalid("description is too long")
	}
	group := trimOptional(in.GroupID)
	if group != nil {
		member, err := s.store.IsGroupMember(ctx, *group, a.caller.UserID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, forbidden("group membership required")
		}
	}

	now := s.now().UTC()
	sl := &SetList{
		ID:          s.newID(),
		Name:        name,
		Description: desc,
		OwnerID:     a.caller.UserID,
		GroupID:     group,
		IsPrivate:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSetlist(ctx, sl); err != nil {
		return nil, err
	}
	s.log.Info("setlist-service: setlist created", "setlist", sl.ID, "owner", sl.OwnerID)
	return sl, nil
}

// GetSetlist returns the setlist with its sections and items in position order.
func (s *Service) GetSetlist(ctx context.Context, cred Credentials, setlistID string) (*Detail, error) {
	a := s.actor(ctx, cred)
	sl, lvl, err := s.authorized(ctx, s.store, setlistID, a, LevelView, IntentRead)
	if err != nil {
		return nil, err
	}
	sections, err := s.store.ListSections(ctx, setlistID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, setlistID)
	if err != nil {
		return nil, err
	}
	return &Detail{Setlist: *sl, Sections: sections, Items: items, Access: lvl}, nil
}

// DuplicateSetlist copies a setlist the caller can see into a new one the caller owns.
// Sections are copied first so items can point at their copies; positions are kept.
// The copy has no group and no shares.
func (s *Service) DuplicateSetlist(ctx context.Context, cred Credentials, sourceID string, name *string) (*SetList, error) {
	a := s.actor(ctx, cred)

	var copied *SetList
	err := s.store.RunAtomic(ctx, func(tx Store) error {
		src, _, err := s.authorized(ctx, tx, sourceID, a, LevelView, IntentRead)
		if err != nil {
			return err
		}
		if !a.authenticated() {
			return unauthenticated("sign in to duplicate a setlist")
		}

		newName := src.Name + " (copy)"
		if n := trimOptional(name); n != nil {
			newName = *n
		}
		if len(newName) > maxNameLen {
			return invalid("name must be between 1 and %d characters", maxNameLen)
		}

		now := s.now().UTC()
		dst := &SetList{
			ID:          s.newID(),
			Name:        newName,
			Description: src.Description,
			OwnerID:     a.caller.UserID,
			IsPrivate:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateSetlist(ctx, dst); err != nil {
			return err
		}

		sections, err := tx.ListSections(ctx, src.ID)
		if err != nil {
			return err
		}
		sectionMap := make(map[string]string, len(sections))
		for _, sec := range sections {
			cp := sec
			cp.ID = s.newID()
			cp.SetlistID = dst.ID
			cp.CreatedAt = now
			if err := tx.CreateSection(ctx, &cp); err != nil {
				return err
			}
			sectionMap[sec.ID] = cp.ID
		}

		items, err := tx.ListItems(ctx, src.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			cp := it
			cp.ID = s.newID()
			cp.SetlistID = dst.ID
			cp.CreatedAt = now
			if it.SectionID != nil {
				if mapped, ok := sectionMap[*it.SectionID]; ok {
					cp.SectionID = &mapped
				} else {
					cp.SectionID = nil
				}
			}
			if err := tx.CreateItem(ctx, &cp); err != nil {
				return err
			}
		}

		copied = dst
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("setlist-service: setlist duplicated", "source", sourceID, "setlist", copied.ID, "owner", copied.OwnerID)
	return copied, nil
}
