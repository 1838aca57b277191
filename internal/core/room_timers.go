package core

import (
	"time"

	"github.com/dkeye/one-word-story/internal/domain"
)

// Every timer carries a generation number. Stopping or re-arming bumps it,
// so a callback that was already queued when the timer stopped is ignored.

func (r *roomImpl) armTurn() {
	r.stopTurn()
	if _, ok := r.sched.Holder(); !ok || r.cfg.TurnTimeout <= 0 {
		return
	}
	gen := r.turnGen
	r.turnDeadline = r.cfg.Clock.Now().Add(r.cfg.TurnTimeout)
	r.turnTimer = r.cfg.Clock.AfterFunc(r.cfg.TurnTimeout, func() {
		r.post(func() { r.onTurnTimeout(gen) })
	})
}

// rearmTurn restarts the deadline after the holder changed outside of an
// accept, or cancels it when nobody holds the turn anymore.
func (r *roomImpl) rearmTurn() {
	if _, ok := r.sched.Holder(); ok {
		r.armTurn()
		return
	}
	r.stopTurn()
}

func (r *roomImpl) stopTurn() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
	r.turnGen++
	r.turnDeadline = time.Time{}
}

func (r *roomImpl) deadline() *time.Time {
	if r.turnDeadline.IsZero() {
		return nil
	}
	d := r.turnDeadline
	return &d
}

func (r *roomImpl) armGrace(m *member) {
	r.stopGrace(m)
	gen, pid := m.graceGen, m.p.ID
	m.graceTimer = r.cfg.Clock.AfterFunc(r.cfg.ReconnectGrace, func() {
		r.post(func() { r.onGraceExpired(pid, gen) })
	})
}

func (r *roomImpl) stopGrace(m *member) {
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.graceGen++
}

func (r *roomImpl) onGraceExpired(pid domain.ParticipantID, gen uint64) {
	m, ok := r.members[pid]
	if !ok || m.graceGen != gen || m.conn != nil {
		return
	}
	r.removeMember(m, domain.LeftGraceExpired)
}

func (r *roomImpl) armIdle() {
	r.stopIdle()
	if r.cfg.IdleTimeout <= 0 {
		return
	}
	gen := r.idleGen
	r.idleTimer = r.cfg.Clock.AfterFunc(r.cfg.IdleTimeout, func() {
		r.post(func() { r.onIdle(gen) })
	})
}

func (r *roomImpl) stopIdle() {
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
	r.idleGen++
}

func (r *roomImpl) onIdle(gen uint64) {
	if gen != r.idleGen || len(r.members) > 0 {
		return
	}
	r.closeRoom("idle")
}
