package orch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/one-word-story/internal/app"
	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames int
	closed bool
}

func (c *fakeConn) TrySend(core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type testConn struct {
	cid      core.ConnID
	conn     *fakeConn
	canceled *atomic.Bool
}

func newTestOrch(t *testing.T, tmpl core.RoomConfig) *Orchestrator {
	t.Helper()
	mgr := app.NewRoomManager(context.Background(), tmpl)
	o := &Orchestrator{Registry: app.NewRegistry(), Rooms: mgr, AutoCreate: true}
	mgr.SetObserver(o)
	t.Cleanup(mgr.Shutdown)
	return o
}

func (o *Orchestrator) bind(identity domain.Identity) testConn {
	tc := testConn{cid: core.NewConnID(), conn: &fakeConn{}, canceled: &atomic.Bool{}}
	o.Registry.BindSignal(tc.cid, identity, tc.conn, func() { tc.canceled.Store(true) })
	return tc
}

func TestOrchestrator_JoinAndSubmit(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	ctx := context.Background()
	alice, bob := o.bind("alice"), o.bind("bob")

	room, res, err := o.Join(ctx, alice.cid, JoinParams{RoomID: "tales", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.False(t, res.Reconnected)
	assert.Equal(t, domain.Identity("alice"), room.Room().Owner, "auto-created rooms belong to the first joiner")
	_, _, err = o.Join(ctx, bob.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)

	sub, err := o.Submit(ctx, alice.cid, "Once", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sub.Entry.Seq)

	_, err = o.Submit(ctx, alice.cid, "again", nil)
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	who, err := o.WhoAmI(alice.cid)
	require.NoError(t, err)
	assert.Equal(t, "Alice", who.DisplayName)
	assert.Equal(t, domain.RoomID("tales"), who.RoomID)
	assert.Equal(t, res.ParticipantID, who.ParticipantID)
}

func TestOrchestrator_JoinUnknownRoom(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	o.AutoCreate = false
	c := o.bind("alice")

	_, _, err := o.Join(context.Background(), c.cid, JoinParams{RoomID: "nowhere"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, _, err = o.Join(context.Background(), c.cid, JoinParams{RoomID: "  "})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, _, err = o.Join(context.Background(), core.NewConnID(), JoinParams{RoomID: "tales"})
	assert.ErrorIs(t, err, app.ErrUnknownConnection)
}

func TestOrchestrator_NewestConnectionWins(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	ctx := context.Background()
	first, second := o.bind("alice"), o.bind("alice")

	_, r1, err := o.Join(ctx, first.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)
	_, r2, err := o.Join(ctx, second.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)

	assert.Equal(t, r1.ParticipantID, r2.ParticipantID)
	assert.True(t, r2.Reconnected)
	assert.True(t, first.conn.isClosed())
	assert.True(t, first.canceled.Load())
	_, _, ok := o.Registry.Resolve(first.cid)
	assert.False(t, ok)
	_, pid, ok := o.Registry.Resolve(second.cid)
	require.True(t, ok)
	assert.Equal(t, r2.ParticipantID, pid)

	// the old read loop ending must not touch the new seat
	o.MarkDisconnected(ctx, first.cid)
	room, _ := o.Rooms.GetRoom("tales")
	assert.Equal(t, 1, room.Info().Participants)
}

func TestOrchestrator_JoinOtherRoomLeavesFirst(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	ctx := context.Background()
	c := o.bind("alice")

	first, _, err := o.Join(ctx, c.cid, JoinParams{RoomID: "one"})
	require.NoError(t, err)
	second, _, err := o.Join(ctx, c.cid, JoinParams{RoomID: "two"})
	require.NoError(t, err)

	assert.Equal(t, 0, first.Info().Participants)
	assert.Equal(t, 1, second.Info().Participants)
	roomID, _, ok := o.Registry.Resolve(c.cid)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("two"), roomID)
}

func TestOrchestrator_SecondTabJoiningElsewhereLeavesFirstRoom(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	ctx := context.Background()
	tab1, tab2 := o.bind("alice"), o.bind("alice")

	first, _, err := o.Join(ctx, tab1.cid, JoinParams{RoomID: "one"})
	require.NoError(t, err)
	second, _, err := o.Join(ctx, tab2.cid, JoinParams{RoomID: "two"})
	require.NoError(t, err)

	assert.Equal(t, 0, first.Info().Participants)
	assert.Equal(t, 1, second.Info().Participants)
	_, _, ok := o.Registry.Resolve(tab1.cid)
	assert.False(t, ok)
	assert.False(t, tab1.conn.isClosed(), "the other tab stays connected")
	roomID, _, ok := o.Registry.Resolve(tab2.cid)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("two"), roomID)
}

func TestOrchestrator_StoppedRoomDoesNotUnbindItsSuccessor(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	mgr := o.Rooms.(*app.RoomManagerImpl)
	ctx := context.Background()
	alice, bob := o.bind("alice"), o.bind("bob")

	old, _, err := o.Join(ctx, alice.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)
	mgr.StopRoom("tales")
	fresh, _, err := o.Join(ctx, bob.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)
	require.NotSame(t, old, fresh)
	<-old.Done()

	_, _, ok := o.Registry.Resolve(alice.cid)
	assert.False(t, ok)
	roomID, _, ok := o.Registry.Resolve(bob.cid)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("tales"), roomID)
	_, err = o.Submit(ctx, bob.cid, "Once", nil)
	assert.ErrorIs(t, err, domain.ErrRoomNotActive)
}

func TestOrchestrator_LeaveAndDisconnect(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	ctx := context.Background()
	alice, bob := o.bind("alice"), o.bind("bob")
	room, _, err := o.Join(ctx, alice.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)
	_, _, err = o.Join(ctx, bob.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)

	require.NoError(t, o.Leave(ctx, alice.cid))
	assert.ErrorIs(t, o.Leave(ctx, alice.cid), domain.ErrNotInRoom)
	_, err = o.Submit(ctx, alice.cid, "Once", nil)
	assert.ErrorIs(t, err, domain.ErrNotInRoom)

	// no grace configured, so the seat goes at once
	o.MarkDisconnected(ctx, bob.cid)
	assert.Equal(t, 0, room.Info().Participants)
	_, ok := o.Registry.Get(bob.cid)
	assert.False(t, ok)
}

func TestOrchestrator_CloseRoomUnbindsMembers(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	ctx := context.Background()
	alice, bob := o.bind("alice"), o.bind("bob")

	room := o.CreateRoom("alice", "  A tale  ")
	assert.Equal(t, domain.RoomName("A tale"), room.Room().Name)
	id := room.Room().ID
	_, _, err := o.Join(ctx, alice.cid, JoinParams{RoomID: id})
	require.NoError(t, err)
	_, _, err = o.Join(ctx, bob.cid, JoinParams{RoomID: id})
	require.NoError(t, err)

	assert.ErrorIs(t, o.CloseRoom(ctx, bob.cid), domain.ErrNotOwner)
	require.NoError(t, o.CloseRoom(ctx, alice.cid))
	<-room.Done()

	for _, c := range []testConn{alice, bob} {
		_, _, ok := o.Registry.Resolve(c.cid)
		assert.False(t, ok)
		assert.False(t, c.conn.isClosed(), "connections survive their room")
	}
	_, ok := o.Rooms.GetRoom(id)
	assert.False(t, ok)
}

func TestOrchestrator_ConnectionDropped(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{ReconnectGrace: time.Minute})
	ctx := context.Background()
	c := o.bind("alice")
	room, res, err := o.Join(ctx, c.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)

	o.ConnectionDropped(room.Room().ID, res.ParticipantID, c.conn)
	assert.True(t, c.conn.isClosed())
	assert.True(t, c.canceled.Load())
	_, _, ok := o.Registry.Resolve(c.cid)
	assert.False(t, ok)
}

func TestOrchestrator_Ban(t *testing.T) {
	o := newTestOrch(t, core.RoomConfig{})
	ctx := context.Background()
	alice, bob := o.bind("alice"), o.bind("bob")
	_, _, err := o.Join(ctx, alice.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)
	_, _, err = o.Join(ctx, bob.cid, JoinParams{RoomID: "tales"})
	require.NoError(t, err)

	_, err = o.Ban(ctx, bob.cid, "dragon", true)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	words, err := o.Ban(ctx, alice.cid, "dragon", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"dragon"}, words)

	_, err = o.Submit(ctx, alice.cid, "Dragon", nil)
	assert.ErrorIs(t, err, domain.ErrBannedWord)
}
