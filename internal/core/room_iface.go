package core

import (
	"context"
	"iter"
	"time"

	"github.com/dkeye/one-word-story/internal/domain"
)

// RoomConfig holds the per-room knobs. Zero durations disable the matching timer.
type RoomConfig struct {
	TurnTimeout     time.Duration
	MaxSkips        int
	ReconnectGrace  time.Duration
	IdleTimeout     time.Duration
	MinParticipants int
	MaxParticipants int
	MaxWords        int
	Words           domain.WordValidator
	// Banned seeds the room's censor; the owner can extend it at runtime.
	Banned []string

	Clock    Clock
	Sink     EventSink
	Observer RoomObserver
}

type JoinRequest struct {
	Identity    domain.Identity
	DisplayName string
	Conn        SignalConnection
	// Since is the last sequence number the client already holds.
	Since uint64
}

type JoinResult struct {
	ParticipantID domain.ParticipantID
	Reconnected   bool
	// Replaced is the connection that lost its broadcast target to this join.
	Replaced SignalConnection
}

type Submission struct {
	ParticipantID domain.ParticipantID
	Word          string
	// ClaimedSeq is set by clients retrying a submission they are unsure landed.
	ClaimedSeq *uint64
}

type SubmitResult struct {
	Entry     domain.Entry
	Duplicate bool
}

type RoomInfo struct {
	ID           domain.RoomID    `json:"id"`
	Name         domain.RoomName  `json:"name"`
	State        domain.RoomState `json:"state"`
	Participants int              `json:"participants"`
	Words        uint64           `json:"words"`
	CreatedAt    time.Time        `json:"created_at"`
}

// RoomService is the core-facing API of a room. Every mutating call is
// serialized through the room's single goroutine.
// It never closes adapter-owned connections.
type RoomService interface {
	Room() *domain.Room
	Info() RoomInfo
	Story() iter.Seq[domain.Entry]
	Done() <-chan struct{}

	Join(ctx context.Context, req JoinRequest) (JoinResult, error)
	Leave(ctx context.Context, pid domain.ParticipantID) error
	Disconnect(ctx context.Context, pid domain.ParticipantID, conn SignalConnection) error
	Submit(ctx context.Context, sub Submission) (SubmitResult, error)
	Close(ctx context.Context, by domain.Identity, reason string) error
	// Ban adds or removes a banned word and returns the resulting list.
	Ban(ctx context.Context, by domain.Identity, word string, banned bool) ([]string, error)

	Run(ctx context.Context)
}

type RoomFactory interface {
	CreateRoom(name domain.RoomName, owner domain.Identity) RoomService
	// GetOrCreate reports whether the room was created by this call.
	GetOrCreate(id domain.RoomID, owner domain.Identity) (RoomService, bool)
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
