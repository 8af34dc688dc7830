package setlist

import (
	"bytes"
	"encoding/json"
	"time"
)

// SetList is an ordered, sectioned collection of track references owned by one user.
// Group association grants access, it never transfers ownership.
type SetList struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId"`
	GroupID     *string   `json:"groupId,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Section groups items under a name. Positions are unique per setlist and numbered
// independently from item positions.
type Section struct {
	ID            string    `json:"id"`
	SetlistID     string    `json:"setlistId"`
	Name          string    `json:"name"`
	Position      int       `json:"position"`
	BreakDuration *int      `json:"breakDuration,omitempty"` // seconds
	CreatedAt     time.Time `json:"createdAt"`
}

// Item references a track. The custom fields shadow the track's own defaults.
type Item struct {
	ID             string    `json:"id"`
	SetlistID      string    `json:"setlistId"`
	TrackID        string    `json:"trackId"`
	Position       int       `json:"position"`
	CustomTuning   *string   `json:"customTuning,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	CustomDuration *int      `json:"customDuration,omitempty"` // seconds
	SectionID      *string   `json:"sectionId"`
	CreatedAt      time.Time `json:"createdAt"`
}

type SharePermission string

const (
	PermissionViewOnly SharePermission = "VIEW_ONLY"
	PermissionCanEdit  SharePermission = "CAN_EDIT"
)

func (p SharePermission) valid() bool {
	return p == PermissionViewOnly || p == PermissionCanEdit
}

// Share is a capability token for a private setlist. An expired share is inert but
// stays stored until it is revoked.
type Share struct {
	ID         string          `json:"id"`
	SetlistID  string          `json:"setlistId"`
	Token      string          `json:"token"`
	Permission SharePermission `json:"permission"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Detail is a setlist with its ordered contents, as returned to a reader.
type Detail struct {
	Setlist  SetList   `json:"setlist"`
	Sections []Section `json:"sections"`
	Items    []Item    `json:"items"`
	Access   Level     `json:"access"`
}

// Event types pushed to every connection of a setlist.
const (
	EventItemAdded         = "item-added"
	EventItemUpdated       = "item-updated"
	EventItemDeleted       = "item-deleted"
	EventReordered         = "reordered"
	EventSectionAdded      = "section-added"
	EventSectionUpdated    = "section-updated"
	EventSectionDeleted    = "section-deleted"
	EventSectionsReordered = "sections-reordered"
)

// Event is the wire form of a mutation notification.
type Event struct {
	Type      string    `json:"type"`
	SetlistID string    `json:"setlistId"`
	Data      any       `json:"data"`
	UserID    *string   `json:"userId"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

type deletedRef struct {
	ID string `json:"id"`
}

// Nullable tells an absent JSON field apart from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Null returns a Nullable that clears the field.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// Value returns a Nullable that sets the field to v.
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}
