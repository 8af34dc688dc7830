package setlist

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const maxTokenAttempts = 8

type ShareInput struct {
	Permission SharePermission `json:"permission"`
	ExpiresAt  *time.Time      `json:"expiresAt"`
}

// CreateShare issues a new share token for a setlist. Only the owner may do this,
// whatever share the caller presents.
func (s *Service) CreateShare(ctx context.Context, cred Credentials, setlistID string, in ShareInput) (*Share, error) {
	a := s.actor(ctx, cred)
	if _, _, err := s.authorized(ctx, s.store, setlistID, a, LevelOwner, IntentWrite); err != nil {
		return nil, err
	}

	perm := in.Permission
	if perm == "" {
		perm = PermissionViewOnly
	}
	if !perm.valid() {
		return nil, invalid("permission must be %s or %s", PermissionViewOnly, PermissionCanEdit)
	}
	now := s.now().UTC()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, invalid("expiresAt must be in the future")
	}

	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, fmt.Errorf("generate share token: %w", err)
		}
		_, err = s.store.FindShareByToken(ctx, token)
		if err == nil {
			s.log.Warn("setlist-service: share token collision", "attempt", attempt)
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		sh := &Share{
			ID:         s.newID(),
			SetlistID:  setlistID,
			Token:      token,
			Permission: perm,
			ExpiresAt:  in.ExpiresAt,
			CreatedBy:  a.caller.UserID,
			CreatedAt:  now,
		}
		err = s.store.CreateShare(ctx, sh)
		if errors.Is(err, ErrConflict) {
			// Another writer stored the same token between the check and the insert.
			s.log.Warn("setlist-service: share token collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("setlist-service: share created", "setlist", setlistID, "share", sh.ID, "permission", sh.Permission)
		return sh, nil
	}
	return nil, conflict("could not allocate a unique share token")
}

func (s *Service) ListShares(ctx context.Context, cred Credentials, setlistID string) ([]Share, error) {
	a := s.actor(ctx, cred)
	if _, _, err := s.authorized(ctx, s.store, setlistID, a, LevelOwner, IntentRead); err != nil {
		return nil, err
	}
	return s.store.ListShares(ctx, setlistID)
}

// RevokeShare deletes a share. Connections opened with it are not dropped.
func (s *Service) RevokeShare(ctx context.Context, cred Credentials, setlistID, shareID string) error {
	a := s.actor(ctx, cred)
	if _, _, err := s.authorized(ctx, s.store, setlistID, a, LevelOwner, IntentWrite); err != nil {
		return err
	}
	err := s.store.DeleteShare(ctx, setlistID, shareID)
	if errors.Is(err, ErrNotFound) {
		return notFound("share not found")
	}
	if err != nil {
		return err
	}
	s.log.Info("setlist-service: share revoked", "setlist", setlistID, "share", shareID)
	return nil
}
