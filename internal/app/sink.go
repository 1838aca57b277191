package app

import (
	"sync/atomic"

	"github.com/dkeye/one-word-story/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogSink writes room events to the global logger and counts them for /api/stats.
type LogSink struct {
	log zerolog.Logger

	roomsCreated  atomic.Int64
	roomsClosed   atomic.Int64
	wordsAccepted atomic.Int64
	turnsSkipped  atomic.Int64
	joins         atomic.Int64
	reconnects    atomic.Int64
	disconnects   atomic.Int64
	leaves        atomic.Int64
}

func NewLogSink() *LogSink {
	return &LogSink{log: log.With().Str("module", "app.sink").Logger()}
}

type Stats struct {
	RoomsCreated  int64 `json:"rooms_created"`
	RoomsClosed   int64 `json:"rooms_closed"`
	WordsAccepted int64 `json:"words_accepted"`
	TurnsSkipped  int64 `json:"turns_skipped"`
	Joins         int64 `json:"joins"`
	Reconnects    int64 `json:"reconnects"`
	Disconnects   int64 `json:"disconnects"`
	Leaves        int64 `json:"leaves"`
}

func (s *LogSink) Record(e core.SinkEvent) {
	switch e.Kind {
	case core.KindRoomCreated:
		s.roomsCreated.Add(1)
	case core.KindRoomClosed:
		s.roomsClosed.Add(1)
	case core.KindTurnAccepted:
		s.wordsAccepted.Add(1)
	case core.KindTurnSkipped:
		s.turnsSkipped.Add(1)
	case core.KindParticipantJoined:
		s.joins.Add(1)
	case core.KindParticipantReconnected:
		s.reconnects.Add(1)
	case core.KindParticipantDisconnected:
		s.disconnects.Add(1)
	case core.KindParticipantLeft:
		s.leaves.Add(1)
	}

	ev := s.log.Debug()
	if e.Kind == core.KindRoomClosed || e.Kind == core.KindParticipantLeft {
		ev = s.log.Info()
	}
	ev = ev.Str("event", e.Kind).Str("room", string(e.Room)).Time("at", e.At)
	if e.Participant != "" {
		ev = ev.Str("participant", string(e.Participant))
	}
	if e.Seq > 0 {
		ev = ev.Uint64("seq", e.Seq)
	}
	if e.Reason != "" {
		ev = ev.Str("reason", e.Reason)
	}
	ev.Msg("room event")
}

func (s *LogSink) Stats() Stats {
	return Stats{
		RoomsCreated:  s.roomsCreated.Load(),
		RoomsClosed:   s.roomsClosed.Load(),
		WordsAccepted: s.wordsAccepted.Load(),
		TurnsSkipped:  s.turnsSkipped.Load(),
		Joins:         s.joins.Load(),
		Reconnects:    s.reconnects.Load(),
		Disconnects:   s.disconnects.Load(),
		Leaves:        s.leaves.Load(),
	}
}
