package core

import (
	"time"

	"github.com/dkeye/one-word-story/internal/domain"
)

const (
	KindRoomCreated             = "room_created"
	KindRoomClosed              = "room_closed"
	KindTurnAccepted            = "turn_accepted"
	KindTurnSkipped             = "turn_skipped"
	KindParticipantJoined       = "participant_joined"
	KindParticipantReconnected  = "participant_reconnected"
	KindParticipantDisconnected = "participant_disconnected"
	KindParticipantLeft         = "participant_left"
)

// SinkEvent is the structured record a room emits for logging and metrics.
type SinkEvent struct {
	Kind        string
	Room        domain.RoomID
	Participant domain.ParticipantID
	Seq         uint64
	Reason      string
	At          time.Time
}

// EventSink receives room events. Record is called from the room goroutine
// and must not block.
type EventSink interface {
	Record(SinkEvent)
}

// RoomObserver lets the owner of the connection index follow membership
// changes the room decides on its own. Called from the room goroutine, so
// implementations must not call back into the room. RoomClosed lists the
// participants seated at close, so a newer room reusing the id is not
// confused with the closed one.
type RoomObserver interface {
	ParticipantRemoved(room domain.RoomID, pid domain.ParticipantID, reason string)
	ConnectionDropped(room domain.RoomID, pid domain.ParticipantID, conn SignalConnection)
	RoomClosed(room domain.RoomID, members []domain.ParticipantID, reason string)
}

type nopSink struct{}

func (nopSink) Record(SinkEvent) {}

type nopObserver struct{}

func (nopObserver) ParticipantRemoved(domain.RoomID, domain.ParticipantID, string) {}
func (nopObserver) ConnectionDropped(domain.RoomID, domain.ParticipantID, SignalConnection) {}
func (nopObserver) RoomClosed(domain.RoomID, []domain.ParticipantID, string) {}
