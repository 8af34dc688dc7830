package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinSendsSnapshotToJoinerThenOthers(t *testing.T) {
	e := NewEngine(nil, nil)
	first := newFakeSub("c1", 8)
	e.Join("sl1", first, Member{UserName: "Ana"})

	msgs := first.drain()
	require.Len(t, msgs, 1)
	snap := decodePresence(t, msgs[0])
	assert.Equal(t, "presence-update", snap.Type)
	assert.Equal(t, []string{"c1"}, connIDs(snap.Presence))

	uid := "u2"
	second := newFakeSub("c2", 8)
	e.Join("sl1", second, Member{UserID: &uid, UserName: "Ben", Authenticated: true})

	toJoiner := second.drain()
	toOthers := first.drain()
	require.Len(t, toJoiner, 1, "joiner gets exactly one snapshot")
	require.Len(t, toOthers, 1)
	assert.Equal(t, toJoiner[0], toOthers[0])
	assert.Equal(t, []string{"c1", "c2"}, connIDs(decodePresence(t, toJoiner[0]).Presence))
}

func TestEditingSignalsReachWholeGroup(t *testing.T) {
	e := NewEngine(nil, nil)
	a, b := newFakeSub("a", 8), newFakeSub("b", 8)
	sa := e.Join("sl1", a, Member{UserName: "A"})
	e.Join("sl1", b, Member{UserName: "B"})
	a.drain()
	b.drain()

	sa.Handle([]byte(`{"type":"start-editing"}`))

	for _, sub := range []*fakeSub{a, b} {
		msgs := sub.drain()
		require.Len(t, msgs, 1)
		p := decodePresence(t, msgs[0])
		require.Len(t, p.Presence, 2)
		assert.True(t, p.Presence[0].IsEditing)
		assert.False(t, p.Presence[1].IsEditing)
	}

	sa.Handle([]byte(`{"type":"stop-editing"}`))
	p := decodePresence(t, b.drain()[0])
	assert.False(t, p.Presence[0].IsEditing)
}

func TestBadMessagesAreIgnored(t *testing.T) {
	e := NewEngine(nil, nil)
	a := newFakeSub("a", 8)
	sa := e.Join("sl1", a, Member{UserName: "A"})
	a.drain()

	sa.Handle([]byte(`not json`))
	sa.Handle([]byte(`{"type":"dance"}`))
	sa.Handle([]byte(`[]`))

	assert.Empty(t, a.drain())
	assert.False(t, a.closed.Load())
	assert.Len(t, e.Presence().GetPresence("sl1"), 1)
}

func TestLeave(t *testing.T) {
	e := NewEngine(nil, nil)
	a, b := newFakeSub("a", 8), newFakeSub("b", 8)
	sa := e.Join("sl1", a, Member{UserName: "A"})
	sb := e.Join("sl1", b, Member{UserName: "B"})
	a.drain()
	b.drain()

	sa.Leave()
	sa.Leave()

	msgs := b.drain()
	require.Len(t, msgs, 1, "remaining member is told once")
	assert.Equal(t, []string{"b"}, connIDs(decodePresence(t, msgs[0]).Presence))
	assert.Empty(t, a.drain())
	assert.Equal(t, 1, e.Hub().Subscribers("sl1"))

	sb.Leave()
	assert.Empty(t, b.drain())
	assert.Empty(t, e.Presence().GetPresence("sl1"))
	assert.Equal(t, 0, e.Hub().Subscribers("sl1"))
}

func TestEnginePublishDeliversLocally(t *testing.T) {
	e := NewEngine(nil, nil)
	a := newFakeSub("a", 8)
	other := newFakeSub("o", 8)
	e.Join("sl1", a, Member{UserName: "A"})
	e.Join("sl2", other, Member{UserName: "O"})
	a.drain()
	other.drain()

	require.NoError(t, e.Publish(context.Background(), "sl1", map[string]any{"type": "item-added"}))

	msgs := a.drain()
	require.Len(t, msgs, 1)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(msgs[0], &ev))
	assert.Equal(t, "item-added", ev["type"])
	assert.Empty(t, other.drain())
}
