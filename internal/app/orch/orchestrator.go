package orch

import (
	"slices"

	"github.com/dkeye/one-word-story/internal/app"
	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs the connection-level use cases. It keeps the registry in
// step with decisions rooms make on their own by observing them.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomFactory
	// AutoCreate lets a join with an unknown room id open that room.
	AutoCreate bool
}

var _ core.RoomObserver = (*Orchestrator)(nil)

func (o *Orchestrator) ParticipantRemoved(room domain.RoomID, pid domain.ParticipantID, reason string) {
	for _, b := range o.Registry.ByParticipant(room, pid) {
		o.Registry.RemoveRoom(b.ConnID)
	}
	log.Debug().Str("module", "orch").Str("room", string(room)).Str("participant", string(pid)).Str("reason", reason).Msg("participant removed")
}

// ConnectionDropped closes a connection the room gave up on. The participant
// keeps its seat for the grace period and replays on reconnect.
func (o *Orchestrator) ConnectionDropped(room domain.RoomID, pid domain.ParticipantID, conn core.SignalConnection) {
	for _, b := range o.Registry.ByParticipant(room, pid) {
		if b.Conn != conn {
			continue
		}
		o.Registry.RemoveRoom(b.ConnID)
		o.Registry.Cancel(b.ConnID)
	}
	conn.Close()
	log.Warn().Str("module", "orch").Str("room", string(room)).Str("participant", string(pid)).Msg("slow connection closed")
}

// RoomClosed unbinds the closed room's members. Their sockets stay open so
// they can join elsewhere.
func (o *Orchestrator) RoomClosed(room domain.RoomID, members []domain.ParticipantID, reason string) {
	unbound := 0
	for _, b := range o.Registry.MembersOfRoom(room) {
		if !slices.Contains(members, b.Participant) {
			continue
		}
		o.Registry.RemoveRoom(b.ConnID)
		unbound++
	}
	log.Info().Str("module", "orch").Str("room", string(room)).Str("reason", reason).Int("unbound", unbound).Msg("room closed")
}
