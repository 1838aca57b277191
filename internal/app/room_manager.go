package app

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type managedRoom struct {
	svc    core.RoomService
	cancel context.CancelFunc
}

// RoomManagerImpl owns every room goroutine. Rooms report their own closure
// through RoomObserver and are dropped from the index then.
type RoomManagerImpl struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*managedRoom
	observer core.RoomObserver

	ctx  context.Context
	stop context.CancelFunc
	wg   conc.WaitGroup
	tmpl core.RoomConfig
}

// NewRoomManager starts rooms from tmpl. Cancelling ctx closes every room.
func NewRoomManager(ctx context.Context, tmpl core.RoomConfig) *RoomManagerImpl {
	ctx, stop := context.WithCancel(ctx)
	return &RoomManagerImpl{
		rooms: make(map[domain.RoomID]*managedRoom),
		ctx:   ctx,
		stop:  stop,
		tmpl:  tmpl,
	}
}

// SetObserver forwards room notifications to obs after the manager's own
// bookkeeping. Call before the first room is created.
func (f *RoomManagerImpl) SetObserver(obs core.RoomObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observer = obs
}

func (f *RoomManagerImpl) CreateRoom(name domain.RoomName, owner domain.Identity) core.RoomService {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := domain.NewRoomID()
	for f.rooms[id] != nil {
		id = domain.NewRoomID()
	}
	if name == "" {
		name = domain.RoomName(id)
	}
	return f.startLocked(&domain.Room{ID: id, Name: name, Owner: owner})
}

func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID, owner domain.Identity) (core.RoomService, bool) {
	f.mu.RLock()
	m, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return m.svc, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok = f.rooms[id]; ok {
		return m.svc, false
	}
	return f.startLocked(&domain.Room{ID: id, Name: domain.RoomName(id), Owner: owner}), true
}

func (f *RoomManagerImpl) startLocked(room *domain.Room) core.RoomService {
	cfg := f.tmpl
	cfg.Observer = f
	svc := core.NewRoomService(room, cfg)
	ctx, cancel := context.WithCancel(f.ctx)
	f.rooms[room.ID] = &managedRoom{svc: svc, cancel: cancel}
	f.wg.Go(func() {
		defer cancel()
		svc.Run(ctx)
	})
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("owner", string(room.Owner)).Msg("room created")
	return svc
}

func (f *RoomManagerImpl) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.rooms[id]
	if !ok {
		return nil, false
	}
	return m.svc, true
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for _, m := range f.rooms {
		out = append(out, m.svc.Info())
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// StopRoom unlists the room and cancels its goroutine, which closes it with
// reason "shutdown" unless it already closed on its own.
func (f *RoomManagerImpl) StopRoom(id domain.RoomID) {
	f.mu.Lock()
	m, ok := f.rooms[id]
	delete(f.rooms, id)
	f.mu.Unlock()
	if ok {
		m.cancel()
	}
}

func (f *RoomManagerImpl) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}

// Shutdown closes every room and waits for their goroutines.
func (f *RoomManagerImpl) Shutdown() {
	f.stop()
	f.wg.Wait()
	log.Info().Str("module", "app.rooms").Msg("all rooms stopped")
}

func (f *RoomManagerImpl) obs() core.RoomObserver {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.observer
}

func (f *RoomManagerImpl) ParticipantRemoved(room domain.RoomID, pid domain.ParticipantID, reason string) {
	if o := f.obs(); o != nil {
		o.ParticipantRemoved(room, pid, reason)
	}
}

func (f *RoomManagerImpl) ConnectionDropped(room domain.RoomID, pid domain.ParticipantID, conn core.SignalConnection) {
	if o := f.obs(); o != nil {
		o.ConnectionDropped(room, pid, conn)
	}
}

// RoomClosed drops the room from the index unless the id already belongs to
// a newer room, which happens when a stopped room reports late. The observer
// is told either way; members identify the closed instance.
func (f *RoomManagerImpl) RoomClosed(room domain.RoomID, members []domain.ParticipantID, reason string) {
	f.mu.Lock()
	if m, ok := f.rooms[room]; ok && m.svc.Info().State == domain.RoomClosed {
		delete(f.rooms, room)
		m.cancel()
	}
	f.mu.Unlock()
	if o := f.obs(); o != nil {
		o.RoomClosed(room, members, reason)
	}
}
