package domain

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantID string

func NewParticipantID() ParticipantID { return ParticipantID(uuid.NewString()) }

type ParticipantStatus string

const (
	StatusActive       ParticipantStatus = "active"
	StatusDisconnected ParticipantStatus = "disconnected"
)

// Participant is a user's seat in one room.
type Participant struct {
	ID          ParticipantID     `json:"id"`
	Identity    Identity          `json:"-"`
	DisplayName string            `json:"display_name"`
	JoinedAt    time.Time         `json:"joined_at"`
	Status      ParticipantStatus `json:"status"`
}

// Reasons reported with participant_left.
const (
	LeftVoluntarily  = "left"
	LeftGraceExpired = "grace_expired"
	LeftSkippedOut   = "skipped_out"
	LeftRoomClosed   = "room_closed"
)
