package core

import (
	"encoding/json"

	"github.com/dkeye/one-word-story/internal/domain"
)

// broadcast enqueues v on every connected member except one. Enqueueing never
// blocks; members whose queue is full lose their connection and replay from
// the transcript when they come back.
func (r *roomImpl) broadcast(v any, except domain.ParticipantID) {
	frame, ok := r.encode(v)
	if !ok {
		return
	}
	var dropped []*member
	sent := 0
	for pid, m := range r.members {
		if pid == except || m.conn == nil {
			continue
		}
		if err := m.conn.TrySend(frame); err != nil {
			dropped = append(dropped, m)
			continue
		}
		sent++
	}
	r.log.Debug().Int("sent_to", sent).Int("dropped", len(dropped)).Msg("broadcast result")
	for _, m := range dropped {
		r.dropConnection(m)
	}
}

func (r *roomImpl) sendTo(m *member, v any) {
	if m.conn == nil {
		return
	}
	frame, ok := r.encode(v)
	if !ok {
		return
	}
	if err := m.conn.TrySend(frame); err != nil {
		r.dropConnection(m)
	}
}

func (r *roomImpl) dropConnection(m *member) {
	conn := m.conn
	if conn == nil {
		return
	}
	r.log.Warn().Str("participant", string(m.p.ID)).Msg("outbound queue full, dropping connection")
	r.markDisconnected(m)
	r.cfg.Observer.ConnectionDropped(r.room.ID, m.p.ID, conn)
}

func (r *roomImpl) broadcastRoster() {
	roster := make([]domain.Participant, 0, r.sched.Len())
	for _, pid := range r.sched.Roster() {
		if m, ok := r.members[pid]; ok {
			roster = append(roster, m.p)
		}
	}
	holder, _ := r.sched.Holder()
	r.broadcast(domain.RosterSnapshot{
		Type:         domain.EventRosterSnapshot,
		RoomID:       r.room.ID,
		State:        r.sched.State(),
		Roster:       roster,
		TurnHolder:   holder,
		TurnDeadline: r.deadline(),
		Tail:         r.transcript.Tail(),
	}, "")
}

func (r *roomImpl) encode(v any) (Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		r.log.Error().Err(err).Msg("encode outbound message")
		return nil, false
	}
	return b, true
}
