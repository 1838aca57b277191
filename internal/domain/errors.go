package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindValidation is reported to the submitting client only, nothing changes.
	KindValidation ErrorKind = iota + 1
	KindNotFound
	// KindCapacity and KindConcurrency are fatal to the room.
	KindCapacity
	KindConcurrency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCapacity:
		return "capacity"
	case KindConcurrency:
		return "concurrency"
	default:
		return "unknown"
	}
}

// Error carries a stable wire reason. Two errors match under errors.Is when
// kinds match and the target reason is empty or equal.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Fatal reports whether the error must close the room.
func (e *Error) Fatal() bool {
	return e.Kind == KindCapacity || e.Kind == KindConcurrency
}

func Validation(reason string) *Error  { return &Error{Kind: KindValidation, Reason: reason} }
func NotFound(reason string) *Error    { return &Error{Kind: KindNotFound, Reason: reason} }
func Capacity(reason string) *Error    { return &Error{Kind: KindCapacity, Reason: reason} }
func Concurrency(reason string) *Error { return &Error{Kind: KindConcurrency, Reason: reason} }

// Class sentinels.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrCapacity    = &Error{Kind: KindCapacity}
	ErrConcurrency = &Error{Kind: KindConcurrency}
)

var (
	ErrNotYourTurn      = Validation("not_your_turn")
	ErrInvalidWord      = Validation("invalid_word")
	ErrRoomNotActive    = Validation("room_not_active")
	ErrSequenceMismatch = Validation("sequence_mismatch")
	ErrNotOwner         = Validation("not_owner")
	ErrRoomClosed       = Validation("room_closed")
	ErrRoomFull         = Validation("room_full")
	ErrRateLimited      = Validation("rate_limited")
	ErrBadPayload       = Validation("bad_payload")

	ErrRoomNotFound        = NotFound("room_not_found")
	ErrParticipantNotFound = NotFound("participant_not_found")
	ErrNotInRoom           = NotFound("not_in_room")

	ErrTranscriptFull = Capacity("transcript_full")
)

// Reason extracts the wire reason for any error, falling back to "internal".
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return "internal"
}
