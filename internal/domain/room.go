package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	RoomName string
	RoomID   string
)

const (
	MaxRoomNameLen = 36
	roomIDLen      = 8
)

// NewRoomID returns a short, url-safe room code.
func NewRoomID() RoomID {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return RoomID(raw[:roomIDLen])
}

// NormalizeRoomName trims and clips a client supplied room name.
func NormalizeRoomName(raw string) RoomName {
	name := []rune(strings.TrimSpace(raw))
	if len(name) > MaxRoomNameLen {
		name = name[:MaxRoomNameLen]
	}
	return RoomName(name)
}

type RoomState string

const (
	RoomWaiting RoomState = "waiting"
	RoomActive  RoomState = "active"
	RoomClosed  RoomState = "closed"
)

type Room struct {
	ID        RoomID
	Name      RoomName
	Owner     Identity
	CreatedAt time.Time
}
