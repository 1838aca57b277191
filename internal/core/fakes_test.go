package core

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/one-word-story/internal/domain"
)

// --- Clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires every due timer in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// --- SignalConnection ---

var (
	errFakeFull   = errors.New("fake queue full")
	errFakeClosed = errors.New("fake conn closed")
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	limit  int
	closed bool
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errFakeClosed
	}
	if c.limit > 0 && len(c.frames) >= c.limit {
		return errFakeFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.messages(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range c.messages(t) {
		out = append(out, m["type"].(string))
	}
	return out
}

// --- RoomObserver / EventSink ---

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ParticipantRemoved(room domain.RoomID, pid domain.ParticipantID, reason string) {
	m.Called(room, pid, reason)
}

func (m *mockObserver) ConnectionDropped(room domain.RoomID, pid domain.ParticipantID, conn SignalConnection) {
	m.Called(room, pid, conn)
}

func (m *mockObserver) RoomClosed(room domain.RoomID, members []domain.ParticipantID, reason string) {
	m.Called(room, members, reason)
}

type recordingSink struct {
	mu     sync.Mutex
	events []SinkEvent
}

func (s *recordingSink) Record(e SinkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) reasons(kind string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e.Reason)
		}
	}
	return out
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

// --- room harness ---

type testRoom struct {
	*roomImpl
	clock    *fakeClock
	observer *mockObserver
	sink     *recordingSink
}

func defaultTestConfig() RoomConfig {
	return RoomConfig{
		TurnTimeout:     5 * time.Second,
		MaxSkips:        3,
		ReconnectGrace:  30 * time.Second,
		IdleTimeout:     10 * time.Minute,
		MinParticipants: 2,
	}
}

func newTestRoom(t *testing.T, cfg RoomConfig) *testRoom {
	t.Helper()
	clock := newFakeClock()
	observer := &mockObserver{}
	observer.On("ParticipantRemoved", mock.Anything, mock.Anything, mock.Anything).Maybe()
	observer.On("ConnectionDropped", mock.Anything, mock.Anything, mock.Anything).Maybe()
	observer.On("RoomClosed", mock.Anything, mock.Anything, mock.Anything).Maybe()
	sink := &recordingSink{}

	cfg.Clock = clock
	cfg.Observer = observer
	cfg.Sink = sink
	room := &domain.Room{ID: "room1", Name: "tales", Owner: "owner"}
	r := NewRoomService(room, cfg).(*roomImpl)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return &testRoom{roomImpl: r, clock: clock, observer: observer, sink: sink}
}

// settle waits until every command queued so far has run.
func (tr *testRoom) settle(t *testing.T) {
	t.Helper()
	err := tr.exec(context.Background(), func() {})
	if err != nil {
		require.ErrorIs(t, err, domain.ErrRoomClosed)
	}
}

func (tr *testRoom) advance(t *testing.T, d time.Duration) {
	t.Helper()
	tr.clock.Advance(d)
	tr.settle(t)
}

func (tr *testRoom) join(t *testing.T, identity domain.Identity) (domain.ParticipantID, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	res, err := tr.Join(context.Background(), JoinRequest{Identity: identity, DisplayName: string(identity), Conn: conn})
	require.NoError(t, err)
	return res.ParticipantID, conn
}

func (tr *testRoom) submit(pid domain.ParticipantID, word string) (SubmitResult, error) {
	return tr.Submit(context.Background(), Submission{ParticipantID: pid, Word: word})
}

// snapshot reads scheduler state on the room goroutine.
func (tr *testRoom) snapshot(t *testing.T) (domain.RoomState, domain.ParticipantID, []domain.ParticipantID) {
	t.Helper()
	var (
		state  domain.RoomState
		holder domain.ParticipantID
		roster []domain.ParticipantID
	)
	require.NoError(t, tr.exec(context.Background(), func() {
		state = tr.sched.State()
		holder, _ = tr.sched.Holder()
		roster = tr.sched.Roster()
	}))
	return state, holder, roster
}
