package domain

import "time"

// Outbound message types.
const (
	EventJoined            = "joined"
	EventWordAccepted      = "word_accepted"
	EventTurnSkipped       = "turn_skipped"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventRosterSnapshot    = "roster_snapshot"
	EventRoomClosed        = "room_closed"
	EventReplay            = "replay"
	EventError             = "error"
)

// Entry is one accepted word. Immutable once appended.
type Entry struct {
	Seq         uint64        `json:"sequence_number"`
	Word        string        `json:"word"`
	Contributor ParticipantID `json:"contributor_id"`
	At          time.Time     `json:"timestamp"`
}

// WordAccepted doubles as the acknowledgment for an idempotent retry and as
// the replay frame on reconnect; NextTurn is only set on live broadcasts.
type WordAccepted struct {
	Type string `json:"type"`
	Entry
	NextTurn     ParticipantID `json:"next_turn,omitempty"`
	TurnDeadline *time.Time    `json:"turn_deadline,omitempty"`
}

func NewWordAccepted(e Entry) WordAccepted {
	return WordAccepted{Type: EventWordAccepted, Entry: e}
}

type TurnSkipped struct {
	Type          string        `json:"type"`
	ParticipantID ParticipantID `json:"participant_id"`
	NextTurn      ParticipantID `json:"next_turn,omitempty"`
	TurnDeadline  *time.Time    `json:"turn_deadline,omitempty"`
}

type ParticipantJoined struct {
	Type        string      `json:"type"`
	Participant Participant `json:"participant"`
	Reconnected bool        `json:"reconnected,omitempty"`
}

type ParticipantLeft struct {
	Type          string        `json:"type"`
	ParticipantID ParticipantID `json:"participant_id"`
	Reason        string        `json:"reason"`
}

// RosterSnapshot is the full turn state. Sent after every roster change and
// to a participant on join.
type RosterSnapshot struct {
	Type         string        `json:"type"`
	RoomID       RoomID        `json:"room_id"`
	State        RoomState     `json:"state"`
	Roster       []Participant `json:"roster"`
	TurnHolder   ParticipantID `json:"turn_holder,omitempty"`
	TurnDeadline *time.Time    `json:"turn_deadline,omitempty"`
	Tail         uint64        `json:"tail"`
}

type Joined struct {
	Type          string        `json:"type"`
	RoomID        RoomID        `json:"room_id"`
	RoomName      RoomName      `json:"room_name"`
	ParticipantID ParticipantID `json:"participant_id"`
	State         RoomState     `json:"state"`
}

// Replay carries transcript entries a (re)joining participant has not seen yet.
type Replay struct {
	Type    string  `json:"type"`
	Entries []Entry `json:"entries"`
}

type RoomClosedEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type ErrorMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: EventError, Reason: Reason(err)}
}
