package app

import (
	"context"
	"sync"

	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrUnknownConnection = domain.NotFound("unknown_connection")

type connEntry struct {
	Identity    domain.Identity
	Conn        core.SignalConnection
	Cancel      context.CancelFunc
	Room        domain.RoomID
	Participant domain.ParticipantID
}

// Registry is the weak index from live connections to room membership.
// Rooms own the participants; the registry only remembers where a
// connection's messages should go.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*connEntry
	users map[domain.Identity]*domain.User
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[core.ConnID]*connEntry),
		users: make(map[domain.Identity]*domain.User),
	}
}

func (r *Registry) GetOrCreateUser(identity domain.Identity) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[identity]; ok {
		return *u
	}
	u := &domain.User{Identity: identity, DisplayName: "guest"}
	r.users[identity] = u
	log.Info().Str("module", "app.registry").Str("identity", string(identity)).Msg("created new user")
	return *u
}

func (r *Registry) UpdateDisplayName(identity domain.Identity, name string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[identity]
	if !ok {
		u = &domain.User{Identity: identity}
	}
	next := *u
	if err := next.SetDisplayName(name); err != nil {
		return *u, err
	}
	*u = next
	r.users[identity] = u
	log.Info().Str("module", "app.registry").Str("identity", string(identity)).Str("name", u.DisplayName).Msg("updated display name")
	return *u, nil
}

// BindSignal registers a freshly accepted connection that is not in a room yet.
func (r *Registry) BindSignal(cid core.ConnID, identity domain.Identity, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[cid] = &connEntry{Identity: identity, Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("identity", string(identity)).Msg("bound signal")
}

// Binding is a copy of one registry entry.
type Binding struct {
	ConnID      core.ConnID
	Identity    domain.Identity
	Conn        core.SignalConnection
	Room        domain.RoomID
	Participant domain.ParticipantID
}

func (e *connEntry) binding(cid core.ConnID) Binding {
	return Binding{ConnID: cid, Identity: e.Identity, Conn: e.Conn, Room: e.Room, Participant: e.Participant}
}

func (r *Registry) Get(cid core.ConnID) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return Binding{}, false
	}
	return e.binding(cid), true
}

// Resolve maps a connection to its room membership.
func (r *Registry) Resolve(cid core.ConnID) (domain.RoomID, domain.ParticipantID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok || e.Room == "" {
		return "", "", false
	}
	return e.Room, e.Participant, true
}

func (r *Registry) UpdateRoom(cid core.ConnID, room domain.RoomID, pid domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return false
	}
	e.Room, e.Participant = room, pid
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("room", string(room)).Str("participant", string(pid)).Msg("updated room")
	return true
}

func (r *Registry) RemoveRoom(cid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[cid]; ok {
		e.Room, e.Participant = "", ""
	}
	log.Debug().Str("module", "app.registry").Str("cid", string(cid)).Msg("removed room association")
}

func (r *Registry) Unbind(cid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, cid)
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("unbind connection")
}

// ByParticipant lists every connection bound to pid in room. After a newest
// join wins there is briefly more than one.
func (r *Registry) ByParticipant(room domain.RoomID, pid domain.ParticipantID) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Binding
	for cid, e := range r.conns {
		if e.Room == room && e.Participant == pid {
			out = append(out, e.binding(cid))
		}
	}
	return out
}

// ByIdentity lists every connection of identity, in a room or not.
func (r *Registry) ByIdentity(identity domain.Identity) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Binding
	for cid, e := range r.conns {
		if e.Identity == identity {
			out = append(out, e.binding(cid))
		}
	}
	return out
}

func (r *Registry) MembersOfRoom(room domain.RoomID) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.conns))
	for cid, e := range r.conns {
		if e.Room == room {
			out = append(out, e.binding(cid))
		}
	}
	return out
}

// Cancel stops the connection's pumps. The adapter closes the socket.
func (r *Registry) Cancel(cid core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[cid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("canceled connection")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
