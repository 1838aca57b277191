package orch

import (
	"context"
	"errors"
	"strings"

	"github.com/dkeye/one-word-story/internal/app"
	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/rs/zerolog/log"
)

const ownerClosed = "owner_closed"

type JoinParams struct {
	RoomID      domain.RoomID
	DisplayName string
	Since       uint64
}

// Join admits the connection into a room, leaving its current room first.
// A second connection of the same identity takes over the seat and the
// older one is closed.
func (o *Orchestrator) Join(ctx context.Context, cid core.ConnID, p JoinParams) (core.RoomService, core.JoinResult, error) {
	b, ok := o.Registry.Get(cid)
	if !ok {
		return nil, core.JoinResult{}, app.ErrUnknownConnection
	}
	p.RoomID = domain.RoomID(strings.TrimSpace(string(p.RoomID)))
	if p.RoomID == "" || len(p.RoomID) > domain.MaxRoomNameLen {
		return nil, core.JoinResult{}, domain.ErrRoomNotFound
	}

	user := o.Registry.GetOrCreateUser(b.Identity)
	if p.DisplayName != "" {
		u, err := o.Registry.UpdateDisplayName(b.Identity, p.DisplayName)
		if err != nil {
			return nil, core.JoinResult{}, err
		}
		user = u
	}

	o.leaveOtherRooms(ctx, b.Identity, p.RoomID)

	room, ok := o.Rooms.GetRoom(p.RoomID)
	if !ok {
		if !o.AutoCreate {
			return nil, core.JoinResult{}, domain.ErrRoomNotFound
		}
		room, _ = o.Rooms.GetOrCreate(p.RoomID, b.Identity)
	}

	res, err := room.Join(ctx, core.JoinRequest{
		Identity:    b.Identity,
		DisplayName: user.DisplayName,
		Conn:        b.Conn,
		Since:       p.Since,
	})
	if err != nil {
		return nil, core.JoinResult{}, err
	}
	o.Registry.UpdateRoom(cid, p.RoomID, res.ParticipantID)
	if res.Replaced != nil {
		o.evictStale(p.RoomID, res.ParticipantID, cid)
	}

	log.Info().
		Str("module", "orch").
		Str("cid", string(cid)).
		Str("room", string(p.RoomID)).
		Str("participant", string(res.ParticipantID)).
		Bool("reconnected", res.Reconnected).
		Msg("joined room")
	return room, res, nil
}

// leaveOtherRooms gives up every seat identity holds outside keep. Other
// tabs of the same identity end up unbound but stay connected.
func (o *Orchestrator) leaveOtherRooms(ctx context.Context, identity domain.Identity, keep domain.RoomID) {
	for _, b := range o.Registry.ByIdentity(identity) {
		if b.Room == "" || b.Room == keep {
			continue
		}
		if err := o.leave(ctx, b); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("cid", string(b.ConnID)).Str("from_room", string(b.Room)).Msg("leave before join")
		}
	}
}

// evictStale unbinds and closes every other connection still bound to pid.
func (o *Orchestrator) evictStale(room domain.RoomID, pid domain.ParticipantID, keep core.ConnID) {
	for _, old := range o.Registry.ByParticipant(room, pid) {
		if old.ConnID == keep {
			continue
		}
		o.Registry.RemoveRoom(old.ConnID)
		o.Registry.Cancel(old.ConnID)
		old.Conn.Close()
		log.Info().Str("module", "orch").Str("cid", string(old.ConnID)).Str("participant", string(pid)).Msg("replaced by newer connection")
	}
}

func (o *Orchestrator) Leave(ctx context.Context, cid core.ConnID) error {
	b, ok := o.Registry.Get(cid)
	if !ok {
		return app.ErrUnknownConnection
	}
	if b.Room == "" {
		return domain.ErrNotInRoom
	}
	return o.leave(ctx, b)
}

func (o *Orchestrator) leave(ctx context.Context, b app.Binding) error {
	defer o.Registry.RemoveRoom(b.ConnID)
	room, ok := o.Rooms.GetRoom(b.Room)
	if !ok {
		return nil
	}
	err := room.Leave(ctx, b.Participant)
	if errors.Is(err, domain.ErrRoomClosed) || errors.Is(err, domain.ErrParticipantNotFound) {
		return nil
	}
	return err
}

func (o *Orchestrator) Submit(ctx context.Context, cid core.ConnID, word string, claimed *uint64) (core.SubmitResult, error) {
	room, pid, err := o.resolveRoom(cid)
	if err != nil {
		return core.SubmitResult{}, err
	}
	return room.Submit(ctx, core.Submission{ParticipantID: pid, Word: word, ClaimedSeq: claimed})
}

// MarkDisconnected is called once a connection's read loop ends. The room
// keeps the seat for the grace period.
func (o *Orchestrator) MarkDisconnected(ctx context.Context, cid core.ConnID) {
	defer o.Registry.Unbind(cid)
	b, ok := o.Registry.Get(cid)
	if !ok || b.Room == "" {
		return
	}
	room, ok := o.Rooms.GetRoom(b.Room)
	if !ok {
		return
	}
	if err := room.Disconnect(ctx, b.Participant, b.Conn); err != nil && !errors.Is(err, domain.ErrRoomClosed) {
		log.Warn().Err(err).Str("module", "orch").Str("cid", string(cid)).Msg("disconnect")
	}
}

func (o *Orchestrator) CreateRoom(owner domain.Identity, name string) core.RoomService {
	return o.Rooms.CreateRoom(domain.NormalizeRoomName(name), owner)
}

func (o *Orchestrator) CloseRoom(ctx context.Context, cid core.ConnID) error {
	room, _, err := o.resolveRoom(cid)
	if err != nil {
		return err
	}
	b, _ := o.Registry.Get(cid)
	return room.Close(ctx, b.Identity, ownerClosed)
}

func (o *Orchestrator) Ban(ctx context.Context, cid core.ConnID, word string, banned bool) ([]string, error) {
	room, _, err := o.resolveRoom(cid)
	if err != nil {
		return nil, err
	}
	b, _ := o.Registry.Get(cid)
	return room.Ban(ctx, b.Identity, word, banned)
}

type WhoAmI struct {
	Identity      domain.Identity
	DisplayName   string
	RoomID        domain.RoomID
	RoomName      domain.RoomName
	ParticipantID domain.ParticipantID
}

func (o *Orchestrator) WhoAmI(cid core.ConnID) (WhoAmI, error) {
	b, ok := o.Registry.Get(cid)
	if !ok {
		return WhoAmI{}, app.ErrUnknownConnection
	}
	user := o.Registry.GetOrCreateUser(b.Identity)
	w := WhoAmI{Identity: b.Identity, DisplayName: user.DisplayName}
	if b.Room != "" {
		if room, ok := o.Rooms.GetRoom(b.Room); ok {
			w.RoomID, w.RoomName, w.ParticipantID = b.Room, room.Room().Name, b.Participant
		}
	}
	return w, nil
}

func (o *Orchestrator) resolveRoom(cid core.ConnID) (core.RoomService, domain.ParticipantID, error) {
	if _, ok := o.Registry.Get(cid); !ok {
		return nil, "", app.ErrUnknownConnection
	}
	roomID, pid, ok := o.Registry.Resolve(cid)
	if !ok {
		return nil, "", domain.ErrNotInRoom
	}
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		o.Registry.RemoveRoom(cid)
		return nil, "", domain.ErrNotInRoom
	}
	return room, pid, nil
}
