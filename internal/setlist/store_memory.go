package setlist

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"setlist-service/internal/position"
)

type memState struct {
	setlists map[string]SetList
	items    map[string]Item
	sections map[string]Section
	shares   map[string]Share
	tracks   map[string]struct{}
	members  map[string]map[string]struct{} // group -> users
}

func newMemState() *memState {
	return &memState{
		setlists: make(map[string]SetList),
		items:    make(map[string]Item),
		sections: make(map[string]Section),
		shares:   make(map[string]Share),
		tracks:   make(map[string]struct{}),
		members:  make(map[string]map[string]struct{}),
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.setlists {
		c.setlists[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	for k, v := range st.sections {
		c.sections[k] = v
	}
	for k, v := range st.shares {
		c.shares[k] = v
	}
	for k := range st.tracks {
		c.tracks[k] = struct{}{}
	}
	for g, users := range st.members {
		cu := make(map[string]struct{}, len(users))
		for u := range users {
			cu[u] = struct{}{}
		}
		c.members[g] = cu
	}
	return c
}

// MemoryStore keeps everything in process memory. It enforces the same uniqueness
// rules as the Postgres schema at the moment of each write, so it is a faithful stand-in
// for the two-phase reorder. An atomic unit works on a private copy of the state that
// replaces the shared one only when the unit succeeds; units are serialized.
type MemoryStore struct {
	mu       sync.RWMutex
	state    *memState
	tx       bool
	anyTrack bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// AllowAnyTrack makes every non-empty track id resolve. Used when no track catalog is
// attached.
func (s *MemoryStore) AllowAnyTrack() {
	s.mu.Lock()
	s.anyTrack = true
	s.mu.Unlock()
}

func (s *MemoryStore) AddTrack(id string) {
	s.mu.Lock()
	s.state.tracks[id] = struct{}{}
	s.mu.Unlock()
}

func (s *MemoryStore) AddGroupMember(groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.state.members[groupID]
	if !ok {
		users = make(map[string]struct{})
		s.state.members[groupID] = users
	}
	users[userID] = struct{}{}
}

func (s *MemoryStore) read(fn func(st *memState) error) error {
	if !s.tx {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	return fn(s.state)
}

func (s *MemoryStore) write(fn func(st *memState) error) error {
	if !s.tx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}

func (s *MemoryStore) RunAtomic(ctx context.Context, fn func(tx Store) error) error {
	if s.tx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	view := &MemoryStore{state: s.state.clone(), tx: true, anyTrack: s.anyTrack}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = view.state
	return nil
}

// LockSetlist only checks existence; atomic units are already serialized.
func (s *MemoryStore) LockSetlist(ctx context.Context, setlistID string) error {
	return s.read(func(st *memState) error {
		if _, ok := st.setlists[setlistID]; !ok {
			return ErrNotFound
		}
		return nil
	})
}

func (s *MemoryStore) FindSetlist(ctx context.Context, id string) (*SetList, error) {
	var out *SetList
	err := s.read(func(st *memState) error {
		sl, ok := st.setlists[id]
		if !ok {
			return ErrNotFound
		}
		out = &sl
		return nil
	})
	return out, err
}

func (s *MemoryStore) CreateSetlist(ctx context.Context, sl *SetList) error {
	return s.write(func(st *memState) error {
		if _, dup := st.setlists[sl.ID]; dup {
			return fmt.Errorf("%w: setlist %s exists", ErrConflict, sl.ID)
		}
		st.setlists[sl.ID] = *sl
		return nil
	})
}

func (s *MemoryStore) ListItems(ctx context.Context, setlistID string) ([]Item, error) {
	items := []Item{}
	err := s.read(func(st *memState) error {
		for _, it := range st.items {
			if it.SetlistID == setlistID {
				items = append(items, it)
			}
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, err
}

func (s *MemoryStore) FindItem(ctx context.Context, setlistID, id string) (*Item, error) {
	var out *Item
	err := s.read(func(st *memState) error {
		it, ok := st.items[id]
		if !ok || it.SetlistID != setlistID {
			return ErrNotFound
		}
		out = &it
		return nil
	})
	return out, err
}

func (st *memState) itemAt(setlistID string, pos int) (string, bool) {
	for id, it := range st.items {
		if it.SetlistID == setlistID && it.Position == pos {
			return id, true
		}
	}
	return "", false
}

func (st *memState) sectionAt(setlistID string, pos int) (string, bool) {
	for id, sec := range st.sections {
		if sec.SetlistID == setlistID && sec.Position == pos {
			return id, true
		}
	}
	return "", false
}

func (s *MemoryStore) CreateItem(ctx context.Context, it *Item) error {
	return s.write(func(st *memState) error {
		if _, dup := st.items[it.ID]; dup {
			return fmt.Errorf("%w: item %s exists", ErrConflict, it.ID)
		}
		if holder, taken := st.itemAt(it.SetlistID, it.Position); taken {
			return fmt.Errorf("%w: item position %d held by %s", ErrConflict, it.Position, holder)
		}
		st.items[it.ID] = *it
		return nil
	})
}

func (s *MemoryStore) UpdateItem(ctx context.Context, it *Item) error {
	return s.write(func(st *memState) error {
		cur, ok := st.items[it.ID]
		if !ok || cur.SetlistID != it.SetlistID {
			return ErrNotFound
		}
		cur.CustomTuning = it.CustomTuning
		cur.Notes = it.Notes
		cur.CustomDuration = it.CustomDuration
		cur.SectionID = it.SectionID
		st.items[it.ID] = cur
		return nil
	})
}

func (s *MemoryStore) DeleteItem(ctx context.Context, setlistID, id string) error {
	return s.write(func(st *memState) error {
		it, ok := st.items[id]
		if !ok || it.SetlistID != setlistID {
			return ErrNotFound
		}
		delete(st.items, id)
		return nil
	})
}

func (s *MemoryStore) SetItemPosition(ctx context.Context, setlistID, id string, pos int) error {
	return s.write(func(st *memState) error {
		it, ok := st.items[id]
		if !ok || it.SetlistID != setlistID {
			return ErrNotFound
		}
		if holder, taken := st.itemAt(setlistID, pos); taken && holder != id {
			return fmt.Errorf("%w: item position %d held by %s", ErrConflict, pos, holder)
		}
		it.Position = pos
		st.items[id] = it
		return nil
	})
}

func (s *MemoryStore) ListSections(ctx context.Context, setlistID string) ([]Section, error) {
	sections := []Section{}
	err := s.read(func(st *memState) error {
		for _, sec := range st.sections {
			if sec.SetlistID == setlistID {
				sections = append(sections, sec)
			}
		}
		return nil
	})
	sort.Slice(sections, func(i, j int) bool { return sections[i].Position < sections[j].Position })
	return sections, err
}

func (s *MemoryStore) FindSection(ctx context.Context, setlistID, id string) (*Section, error) {
	var out *Section
	err := s.read(func(st *memState) error {
		sec, ok := st.sections[id]
		if !ok || sec.SetlistID != setlistID {
			return ErrNotFound
		}
		out = &sec
		return nil
	})
	return out, err
}

func (s *MemoryStore) CreateSection(ctx context.Context, sec *Section) error {
	return s.write(func(st *memState) error {
		if _, dup := st.sections[sec.ID]; dup {
			return fmt.Errorf("%w: section %s exists", ErrConflict, sec.ID)
		}
		if holder, taken := st.sectionAt(sec.SetlistID, sec.Position); taken {
			return fmt.Errorf("%w: section position %d held by %s", ErrConflict, sec.Position, holder)
		}
		st.sections[sec.ID] = *sec
		return nil
	})
}

func (s *MemoryStore) UpdateSection(ctx context.Context, sec *Section) error {
	return s.write(func(st *memState) error {
		cur, ok := st.sections[sec.ID]
		if !ok || cur.SetlistID != sec.SetlistID {
			return ErrNotFound
		}
		cur.Name = sec.Name
		cur.BreakDuration = sec.BreakDuration
		st.sections[sec.ID] = cur
		return nil
	})
}

// DeleteSection mirrors the ON DELETE SET NULL foreign key of set_items.
func (s *MemoryStore) DeleteSection(ctx context.Context, setlistID, id string) error {
	return s.write(func(st *memState) error {
		sec, ok := st.sections[id]
		if !ok || sec.SetlistID != setlistID {
			return ErrNotFound
		}
		delete(st.sections, id)
		st.unsection(setlistID, id)
		return nil
	})
}

func (s *MemoryStore) SetSectionPosition(ctx context.Context, setlistID, id string, pos int) error {
	return s.write(func(st *memState) error {
		sec, ok := st.sections[id]
		if !ok || sec.SetlistID != setlistID {
			return ErrNotFound
		}
		if holder, taken := st.sectionAt(setlistID, pos); taken && holder != id {
			return fmt.Errorf("%w: section position %d held by %s", ErrConflict, pos, holder)
		}
		sec.Position = pos
		st.sections[id] = sec
		return nil
	})
}

func (st *memState) unsection(setlistID, sectionID string) int {
	n := 0
	for id, it := range st.items {
		if it.SetlistID == setlistID && it.SectionID != nil && *it.SectionID == sectionID {
			it.SectionID = nil
			st.items[id] = it
			n++
		}
	}
	return n
}

func (s *MemoryStore) UnsectionItems(ctx context.Context, setlistID, sectionID string) (int, error) {
	var n int
	err := s.write(func(st *memState) error {
		n = st.unsection(setlistID, sectionID)
		return nil
	})
	return n, err
}

func (s *MemoryStore) MaxPosition(ctx context.Context, setlistID string, kind position.Kind) (*int, error) {
	var max *int
	err := s.read(func(st *memState) error {
		consider := func(p int) {
			if max == nil || p > *max {
				v := p
				max = &v
			}
		}
		switch kind {
		case position.KindItem:
			for _, it := range st.items {
				if it.SetlistID == setlistID {
					consider(it.Position)
				}
			}
		case position.KindSection:
			for _, sec := range st.sections {
				if sec.SetlistID == setlistID {
					consider(sec.Position)
				}
			}
		default:
			return fmt.Errorf("unknown collection %q", kind)
		}
		return nil
	})
	return max, err
}

func (s *MemoryStore) PositionTaken(ctx context.Context, setlistID string, kind position.Kind, pos int) (bool, error) {
	var taken bool
	err := s.read(func(st *memState) error {
		switch kind {
		case position.KindItem:
			_, taken = st.itemAt(setlistID, pos)
		case position.KindSection:
			_, taken = st.sectionAt(setlistID, pos)
		default:
			return fmt.Errorf("unknown collection %q", kind)
		}
		return nil
	})
	return taken, err
}

func (s *MemoryStore) TrackExists(ctx context.Context, trackID string) (bool, error) {
	var ok bool
	err := s.read(func(st *memState) error {
		_, ok = st.tracks[trackID]
		ok = ok || (s.anyTrack && trackID != "")
		return nil
	})
	return ok, err
}

func (s *MemoryStore) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	var ok bool
	err := s.read(func(st *memState) error {
		_, ok = st.members[groupID][userID]
		return nil
	})
	return ok, err
}

func (s *MemoryStore) FindShareByToken(ctx context.Context, token string) (*Share, error) {
	var out *Share
	err := s.read(func(st *memState) error {
		for _, sh := range st.shares {
			if sh.Token == token {
				sh := sh
				out = &sh
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (s *MemoryStore) ListShares(ctx context.Context, setlistID string) ([]Share, error) {
	shares := []Share{}
	err := s.read(func(st *memState) error {
		for _, sh := range st.shares {
			if sh.SetlistID == setlistID {
				shares = append(shares, sh)
			}
		}
		return nil
	})
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].CreatedAt.Equal(shares[j].CreatedAt) {
			return shares[i].ID < shares[j].ID
		}
		return shares[i].CreatedAt.Before(shares[j].CreatedAt)
	})
	return shares, err
}

func (s *MemoryStore) CreateShare(ctx context.Context, sh *Share) error {
	return s.write(func(st *memState) error {
		if _, dup := st.shares[sh.ID]; dup {
			return fmt.Errorf("%w: share %s exists", ErrConflict, sh.ID)
		}
		for _, other := range st.shares {
			if other.Token == sh.Token {
				return fmt.Errorf("%w: share token in use", ErrConflict)
			}
		}
		st.shares[sh.ID] = *sh
		return nil
	})
}

func (s *MemoryStore) DeleteShare(ctx context.Context, setlistID, id string) error {
	return s.write(func(st *memState) error {
		sh, ok := st.shares[id]
		if !ok || sh.SetlistID != setlistID {
			return ErrNotFound
		}
		delete(st.shares, id)
		return nil
	})
}
