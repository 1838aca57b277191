package core

import (
	"context"
	"errors"
	"iter"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const inboxSize = 256

// member pairs a participant record with its current transport endpoint.
// conn is nil while the participant is disconnected.
type member struct {
	p          domain.Participant
	conn       SignalConnection
	graceTimer Timer
	graceGen   uint64
}

// roomImpl is an actor: every command runs on the goroutine started by Run,
// so roster, turn pointer and transcript tail never need finer locking.
type roomImpl struct {
	room       *domain.Room
	cfg        RoomConfig
	transcript *Transcript
	sched      *Scheduler
	censor     *domain.Censor

	members    map[domain.ParticipantID]*member
	byIdentity map[domain.Identity]domain.ParticipantID

	turnTimer    Timer
	turnGen      uint64
	turnDeadline time.Time
	idleTimer    Timer
	idleGen      uint64
	closeReason  string

	inbox chan func()
	done  chan struct{}
	info  atomic.Pointer[RoomInfo]
	log   zerolog.Logger
}

func NewRoomService(room *domain.Room, cfg RoomConfig) RoomService {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Words == nil {
		cfg.Words = domain.DefaultWordPolicy()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = cfg.Clock.Now()
	}
	r := &roomImpl{
		room:       room,
		cfg:        cfg,
		transcript: NewTranscript(cfg.MaxWords),
		sched:      NewScheduler(cfg.MinParticipants, cfg.MaxSkips),
		censor:     domain.NewCensor(cfg.Banned...),
		members:    make(map[domain.ParticipantID]*member),
		byIdentity: make(map[domain.Identity]domain.ParticipantID),
		inbox:      make(chan func(), inboxSize),
		done:       make(chan struct{}),
		log:        log.With().Str("module", "core.room").Str("room", string(room.ID)).Logger(),
	}
	r.publishInfo()
	return r
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) Info() RoomInfo { return *r.info.Load() }

func (r *roomImpl) Story() iter.Seq[domain.Entry] { return r.transcript.ReadSince(0) }

func (r *roomImpl) Done() <-chan struct{} { return r.done }

// Run is the room's serialization point. It returns once the room is closed,
// either by a command or by ctx.
func (r *roomImpl) Run(ctx context.Context) {
	r.record(KindRoomCreated, "", 0, "")
	r.log.Info().Str("name", string(r.room.Name)).Msg("room started")
	r.armIdle()
	for {
		select {
		case <-ctx.Done():
			r.closeRoom("shutdown")
		case fn := <-r.inbox:
			fn()
		}
		r.publishInfo()
		if r.sched.State() == domain.RoomClosed {
			r.teardown()
			return
		}
	}
}

// exec runs fn on the room goroutine and waits for it. ctx only bounds the
// wait for an inbox slot; once queued the command always completes.
func (r *roomImpl) exec(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	cmd := func() {
		defer close(ran)
		fn()
		r.publishInfo()
	}
	select {
	case r.inbox <- cmd:
	case <-r.done:
		return domain.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-r.done:
		select {
		case <-ran:
			return nil
		default:
			return domain.ErrRoomClosed
		}
	}
}

// post is exec without waiting, used by timer callbacks.
func (r *roomImpl) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

func (r *roomImpl) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	var (
		res JoinResult
		err error
	)
	if execErr := r.exec(ctx, func() { res, err = r.join(req) }); execErr != nil {
		return JoinResult{}, execErr
	}
	return res, err
}

func (r *roomImpl) Leave(ctx context.Context, pid domain.ParticipantID) error {
	var err error
	if execErr := r.exec(ctx, func() { err = r.leave(pid) }); execErr != nil {
		return execErr
	}
	return err
}

func (r *roomImpl) Disconnect(ctx context.Context, pid domain.ParticipantID, conn SignalConnection) error {
	var err error
	if execErr := r.exec(ctx, func() { err = r.disconnect(pid, conn) }); execErr != nil {
		return execErr
	}
	return err
}

func (r *roomImpl) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	var (
		res SubmitResult
		err error
	)
	if execErr := r.exec(ctx, func() { res, err = r.submit(sub) }); execErr != nil {
		return SubmitResult{}, execErr
	}
	return res, err
}

func (r *roomImpl) Close(ctx context.Context, by domain.Identity, reason string) error {
	var err error
	execErr := r.exec(ctx, func() {
		if by != "" && by != r.room.Owner {
			err = domain.ErrNotOwner
			return
		}
		r.closeRoom(reason)
	})
	if execErr != nil {
		return execErr
	}
	return err
}

func (r *roomImpl) Ban(ctx context.Context, by domain.Identity, word string, banned bool) ([]string, error) {
	var (
		words []string
		err   error
	)
	execErr := r.exec(ctx, func() {
		if by != r.room.Owner {
			err = domain.ErrNotOwner
			return
		}
		var changed bool
		if banned {
			changed = r.censor.Ban(word)
		} else {
			changed = r.censor.Unban(word)
		}
		if changed {
			r.log.Info().Str("word", word).Bool("banned", banned).Msg("censor updated")
		}
		words = r.censor.Words()
	})
	if execErr != nil {
		return nil, execErr
	}
	return words, err
}

func (r *roomImpl) join(req JoinRequest) (JoinResult, error) {
	if pid, ok := r.byIdentity[req.Identity]; ok {
		return r.rejoin(r.members[pid], req), nil
	}
	if r.cfg.MaxParticipants > 0 && len(r.members) >= r.cfg.MaxParticipants {
		return JoinResult{}, domain.ErrRoomFull
	}

	m := &member{
		p: domain.Participant{
			ID:          domain.NewParticipantID(),
			Identity:    req.Identity,
			DisplayName: req.DisplayName,
			JoinedAt:    r.cfg.Clock.Now(),
			Status:      domain.StatusActive,
		},
		conn: req.Conn,
	}
	r.members[m.p.ID] = m
	r.byIdentity[req.Identity] = m.p.ID
	r.stopIdle()
	if r.sched.Add(m.p.ID) {
		r.armTurn()
	}

	r.sendJoined(m, req.Since)
	r.broadcast(domain.ParticipantJoined{Type: domain.EventParticipantJoined, Participant: m.p}, m.p.ID)
	r.broadcastRoster()

	r.record(KindParticipantJoined, m.p.ID, 0, "")
	r.log.Info().Str("participant", string(m.p.ID)).Str("name", m.p.DisplayName).Msg("participant joined")
	return JoinResult{ParticipantID: m.p.ID}, nil
}

// rejoin hands the seat back to the newest connection of the same identity.
func (r *roomImpl) rejoin(m *member, req JoinRequest) JoinResult {
	replaced := m.conn
	if replaced == req.Conn {
		replaced = nil
	}
	m.conn = req.Conn
	m.p.Status = domain.StatusActive
	if req.DisplayName != "" {
		m.p.DisplayName = req.DisplayName
	}
	r.stopGrace(m)

	r.sendJoined(m, req.Since)
	r.broadcast(domain.ParticipantJoined{Type: domain.EventParticipantJoined, Participant: m.p, Reconnected: true}, m.p.ID)
	r.broadcastRoster()

	r.record(KindParticipantReconnected, m.p.ID, 0, "")
	r.log.Info().Str("participant", string(m.p.ID)).Bool("replaced", replaced != nil).Msg("participant reconnected")
	return JoinResult{ParticipantID: m.p.ID, Reconnected: true, Replaced: replaced}
}

func (r *roomImpl) sendJoined(m *member, since uint64) {
	r.sendTo(m, domain.Joined{
		Type:          domain.EventJoined,
		RoomID:        r.room.ID,
		RoomName:      r.room.Name,
		ParticipantID: m.p.ID,
		State:         r.sched.State(),
	})
	// one frame however long the story, so catch-up costs a single queue slot
	if missed := slices.Collect(r.transcript.ReadSince(since)); len(missed) > 0 {
		r.sendTo(m, domain.Replay{Type: domain.EventReplay, Entries: missed})
	}
}

func (r *roomImpl) leave(pid domain.ParticipantID) error {
	m, ok := r.members[pid]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	r.removeMember(m, domain.LeftVoluntarily)
	return nil
}

func (r *roomImpl) disconnect(pid domain.ParticipantID, conn SignalConnection) error {
	m, ok := r.members[pid]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if m.conn == nil || m.conn != conn {
		// a newer join already owns the seat
		return nil
	}
	r.markDisconnected(m)
	return nil
}

func (r *roomImpl) markDisconnected(m *member) {
	m.conn = nil
	m.p.Status = domain.StatusDisconnected
	r.record(KindParticipantDisconnected, m.p.ID, 0, "")
	r.log.Info().Str("participant", string(m.p.ID)).Dur("grace", r.cfg.ReconnectGrace).Msg("participant disconnected")

	if r.cfg.ReconnectGrace <= 0 {
		r.removeMember(m, domain.LeftGraceExpired)
		return
	}
	r.armGrace(m)
	r.broadcastRoster()
}

func (r *roomImpl) removeMember(m *member, reason string) {
	pid := m.p.ID
	r.stopGrace(m)
	r.broadcast(domain.ParticipantLeft{Type: domain.EventParticipantLeft, ParticipantID: pid, Reason: reason}, "")

	delete(r.members, pid)
	delete(r.byIdentity, m.p.Identity)
	if r.sched.Remove(pid) {
		r.rearmTurn()
	}
	r.broadcastRoster()

	r.cfg.Observer.ParticipantRemoved(r.room.ID, pid, reason)
	r.record(KindParticipantLeft, pid, 0, reason)
	r.log.Info().Str("participant", string(pid)).Str("reason", reason).Msg("participant left")

	if len(r.members) == 0 {
		r.armIdle()
	}
}

func (r *roomImpl) submit(sub Submission) (SubmitResult, error) {
	m, ok := r.members[sub.ParticipantID]
	if !ok {
		return SubmitResult{}, domain.ErrParticipantNotFound
	}

	// 0 names no entry and counts as no claim
	if sub.ClaimedSeq != nil && *sub.ClaimedSeq > 0 {
		claimed, tail := *sub.ClaimedSeq, r.transcript.Tail()
		switch {
		case claimed <= tail:
			e, ok := r.transcript.At(claimed)
			if !ok || e.Contributor != m.p.ID {
				return SubmitResult{}, domain.ErrSequenceMismatch
			}
			r.sendTo(m, domain.NewWordAccepted(e))
			return SubmitResult{Entry: e, Duplicate: true}, nil
		case claimed > tail+1:
			return SubmitResult{}, domain.ErrSequenceMismatch
		}
	}

	if r.sched.State() != domain.RoomActive {
		return SubmitResult{}, domain.ErrRoomNotActive
	}
	holder, _ := r.sched.Holder()
	if _, ok := r.members[holder]; !ok {
		r.fail(domain.Concurrency("turn_holder_missing"))
		return SubmitResult{}, domain.ErrRoomClosed
	}
	if holder != m.p.ID {
		return SubmitResult{}, domain.ErrNotYourTurn
	}
	word, err := r.cfg.Words.Validate(sub.Word)
	if err != nil {
		return SubmitResult{}, err
	}
	if r.censor.Blocks(word) {
		return SubmitResult{}, domain.ErrBannedWord
	}

	prev := r.transcript.Tail()
	e, err := r.transcript.Append(word, m.p.ID, r.cfg.Clock.Now())
	if err != nil {
		r.fail(err)
		return SubmitResult{}, err
	}
	if e.Seq != prev+1 {
		err = domain.Concurrency("sequence_gap")
		r.fail(err)
		return SubmitResult{}, err
	}

	r.sched.Accept()
	r.armTurn()
	next, _ := r.sched.Holder()
	r.broadcast(domain.WordAccepted{
		Type:         domain.EventWordAccepted,
		Entry:        e,
		NextTurn:     next,
		TurnDeadline: r.deadline(),
	}, "")

	r.record(KindTurnAccepted, m.p.ID, e.Seq, "")
	r.log.Debug().Str("participant", string(m.p.ID)).Uint64("seq", e.Seq).Msg("word accepted")
	return SubmitResult{Entry: e}, nil
}

func (r *roomImpl) onTurnTimeout(gen uint64) {
	if gen != r.turnGen {
		return
	}
	skipped, exhausted := r.sched.Skip()
	if skipped == "" {
		return
	}
	r.rearmTurn()
	next, _ := r.sched.Holder()
	r.broadcast(domain.TurnSkipped{
		Type:          domain.EventTurnSkipped,
		ParticipantID: skipped,
		NextTurn:      next,
		TurnDeadline:  r.deadline(),
	}, "")
	r.record(KindTurnSkipped, skipped, 0, "")
	r.log.Debug().Str("participant", string(skipped)).Bool("exhausted", exhausted).Msg("turn skipped")

	if !exhausted {
		return
	}
	m, ok := r.members[skipped]
	if !ok {
		r.fail(domain.Concurrency("turn_holder_missing"))
		return
	}
	m.p.Status = domain.StatusDisconnected
	r.removeMember(m, domain.LeftSkippedOut)
}

// fail closes the room on an error the room cannot recover from.
func (r *roomImpl) fail(err error) {
	ev := r.log.Warn()
	if errors.Is(err, domain.ErrConcurrency) {
		ev = r.log.Error()
	}
	ev.Err(err).Msg("fatal room error")
	r.closeRoom(domain.Reason(err))
}

func (r *roomImpl) closeRoom(reason string) {
	if r.sched.State() == domain.RoomClosed {
		return
	}
	r.closeReason = reason
	r.sched.Close()
	r.stopTurn()
	r.stopIdle()
	for _, m := range r.members {
		r.stopGrace(m)
	}
	r.broadcast(domain.RoomClosedEvent{Type: domain.EventRoomClosed, Reason: reason}, "")
}

// teardown runs after the last command. Observers must not call back into
// the room from RoomClosed.
func (r *roomImpl) teardown() {
	seated := slices.Sorted(maps.Keys(r.members))
	for _, pid := range seated {
		r.record(KindParticipantLeft, pid, 0, domain.LeftRoomClosed)
	}
	r.cfg.Observer.RoomClosed(r.room.ID, seated, r.closeReason)
	r.record(KindRoomClosed, "", r.transcript.Tail(), r.closeReason)
	r.log.Info().Str("reason", r.closeReason).Uint64("words", r.transcript.Tail()).Msg("room closed")
	close(r.done)
}

func (r *roomImpl) publishInfo() {
	info := RoomInfo{
		ID:           r.room.ID,
		Name:         r.room.Name,
		State:        r.sched.State(),
		Participants: len(r.members),
		Words:        r.transcript.Tail(),
		CreatedAt:    r.room.CreatedAt,
	}
	r.info.Store(&info)
}

func (r *roomImpl) record(kind string, pid domain.ParticipantID, seq uint64, reason string) {
	r.cfg.Sink.Record(SinkEvent{
		Kind:        kind,
		Room:        r.room.ID,
		Participant: pid,
		Seq:         seq,
		Reason:      reason,
		At:          r.cfg.Clock.Now(),
	})
}
