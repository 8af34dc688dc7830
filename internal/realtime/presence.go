package realtime

import (
	"sort"
	"time"
)

// Entry is one live connection watching a setlist. A user connected from two tabs
// has two entries.
type Entry struct {
	ConnectionID    string    `json:"connectionId"`
	UserID          *string   `json:"userId"`
	UserName        string    `json:"userName"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	IsEditing       bool      `json:"isEditing"`
	JoinedAt        time.Time `json:"joinedAt"`

	seq uint64
}

type presenceSet struct {
	byConn map[string]*Entry
	seq    uint64
}

func (p *presenceSet) list() []Entry {
	out := make([]Entry, 0, len(p.byConn))
	for _, e := range p.byConn {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Registry tracks who is connected to each setlist. It lives in process memory only
// and is rebuilt as clients reconnect.
type Registry struct {
	sets *buckets[*presenceSet]
	now  func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sets: newBuckets(func() *presenceSet {
			return &presenceSet{byConn: make(map[string]*Entry)}
		}),
		now: now,
	}
}

// AddUser registers a connection with isEditing unset and returns the setlist's
// presence list in join order.
func (r *Registry) AddUser(setlistID, connectionID string, userID *string, userName string, authenticated bool) []Entry {
	var out []Entry
	r.sets.with(setlistID, true, func(p *presenceSet) bool {
		p.seq++
		var uid *string
		if userID != nil {
			v := *userID
			uid = &v
		}
		p.byConn[connectionID] = &Entry{
			ConnectionID:    connectionID,
			UserID:          uid,
			UserName:        userName,
			IsAuthenticated: authenticated,
			JoinedAt:        r.now().UTC(),
			seq:             p.seq,
		}
		out = p.list()
		return false
	})
	return out
}

// UpdateEditingStatus flips the editing flag of a connection. An unknown connection
// leaves the registry untouched.
func (r *Registry) UpdateEditingStatus(setlistID, connectionID string, editing bool) []Entry {
	out := []Entry{}
	r.sets.with(setlistID, false, func(p *presenceSet) bool {
		if e, ok := p.byConn[connectionID]; ok {
			e.IsEditing = editing
		}
		out = p.list()
		return false
	})
	return out
}

// RemoveUser drops a connection and returns what is left, possibly nothing.
func (r *Registry) RemoveUser(setlistID, connectionID string) []Entry {
	out := []Entry{}
	r.sets.with(setlistID, false, func(p *presenceSet) bool {
		delete(p.byConn, connectionID)
		out = p.list()
		return len(p.byConn) == 0
	})
	return out
}

func (r *Registry) GetPresence(setlistID string) []Entry {
	out := []Entry{}
	r.sets.with(setlistID, false, func(p *presenceSet) bool {
		out = p.list()
		return false
	})
	return out
}
