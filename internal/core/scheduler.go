package core

import (
	"slices"

	"github.com/dkeye/one-word-story/internal/domain"
)

// Scheduler is the turn state machine of one room. It is not safe for
// concurrent use; the room goroutine owns it.
type Scheduler struct {
	roster   []domain.ParticipantID
	index    int
	skips    map[domain.ParticipantID]int
	state    domain.RoomState
	min      int
	maxSkips int
}

func NewScheduler(minParticipants, maxSkips int) *Scheduler {
	if minParticipants < 2 {
		minParticipants = 2
	}
	return &Scheduler{
		skips:    make(map[domain.ParticipantID]int),
		state:    domain.RoomWaiting,
		min:      minParticipants,
		maxSkips: maxSkips,
	}
}

func (s *Scheduler) State() domain.RoomState { return s.state }

func (s *Scheduler) Len() int { return len(s.roster) }

func (s *Scheduler) Roster() []domain.ParticipantID { return slices.Clone(s.roster) }

func (s *Scheduler) Contains(pid domain.ParticipantID) bool {
	return slices.Contains(s.roster, pid)
}

// Holder returns the participant whose word is expected, only while active.
func (s *Scheduler) Holder() (domain.ParticipantID, bool) {
	if s.state != domain.RoomActive || len(s.roster) == 0 {
		return "", false
	}
	return s.roster[s.index], true
}

func (s *Scheduler) Skips(pid domain.ParticipantID) int { return s.skips[pid] }

// Add appends pid to the end of the turn order. Reports whether the room
// just became active.
func (s *Scheduler) Add(pid domain.ParticipantID) bool {
	if s.state == domain.RoomClosed || s.Contains(pid) {
		return false
	}
	s.roster = append(s.roster, pid)
	if s.state == domain.RoomWaiting && len(s.roster) >= s.min {
		if s.index >= len(s.roster) {
			s.index = 0
		}
		s.state = domain.RoomActive
		return true
	}
	return false
}

// Remove drops pid and re-maps the pointer so the same participant keeps
// the turn, or the next one inherits it when pid was the holder. Reports
// whether the holder or the state changed.
func (s *Scheduler) Remove(pid domain.ParticipantID) bool {
	i := slices.Index(s.roster, pid)
	if i < 0 {
		return false
	}
	before, wasActive := s.Holder()

	s.roster = slices.Delete(s.roster, i, i+1)
	delete(s.skips, pid)
	switch {
	case len(s.roster) == 0:
		s.index = 0
	case i < s.index:
		s.index--
	case s.index >= len(s.roster):
		s.index = 0
	}

	if s.state == domain.RoomActive && len(s.roster) < s.min {
		s.state = domain.RoomWaiting
	}
	after, isActive := s.Holder()
	return wasActive != isActive || before != after
}

// Accept records a word from the holder and passes the turn on.
func (s *Scheduler) Accept() domain.ParticipantID {
	holder, ok := s.Holder()
	if !ok {
		return ""
	}
	s.skips[holder] = 0
	s.index = (s.index + 1) % len(s.roster)
	next, _ := s.Holder()
	return next
}

// Skip passes the turn on without a word. When the holder reaches the
// consecutive skip limit it is removed from the roster and exhausted is true.
func (s *Scheduler) Skip() (skipped domain.ParticipantID, exhausted bool) {
	holder, ok := s.Holder()
	if !ok {
		return "", false
	}
	s.skips[holder]++
	if s.maxSkips > 0 && s.skips[holder] >= s.maxSkips {
		s.Remove(holder)
		return holder, true
	}
	s.index = (s.index + 1) % len(s.roster)
	return holder, false
}

func (s *Scheduler) Close() {
	s.state = domain.RoomClosed
}
