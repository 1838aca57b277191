package core

import (
	"iter"
	"sync"
	"time"

	"github.com/dkeye/one-word-story/internal/domain"
)

// Transcript is the append-only story record of one room.
// Only the room goroutine appends; readers may run concurrently.
type Transcript struct {
	mu      sync.RWMutex
	entries []domain.Entry
	max     int
}

// NewTranscript bounds the transcript at max entries, zero means unbounded.
func NewTranscript(max int) *Transcript {
	return &Transcript{max: max}
}

// Append assigns the next sequence number. It fails only when the bound is hit.
func (t *Transcript) Append(word string, contributor domain.ParticipantID, at time.Time) (domain.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.max > 0 && len(t.entries) >= t.max {
		return domain.Entry{}, domain.ErrTranscriptFull
	}
	e := domain.Entry{
		Seq:         uint64(len(t.entries)) + 1,
		Word:        word,
		Contributor: contributor,
		At:          at,
	}
	t.entries = append(t.entries, e)
	return e, nil
}

func (t *Transcript) Tail() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.entries))
}

func (t *Transcript) At(seq uint64) (domain.Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if seq == 0 || seq > uint64(len(t.entries)) {
		return domain.Entry{}, false
	}
	return t.entries[seq-1], true
}

// ReadSince yields every entry after seq that exists when iteration starts.
// The sequence can be ranged over any number of times.
func (t *Transcript) ReadSince(seq uint64) iter.Seq[domain.Entry] {
	return func(yield func(domain.Entry) bool) {
		t.mu.RLock()
		snap := t.entries[:len(t.entries):len(t.entries)]
		t.mu.RUnlock()
		if seq >= uint64(len(snap)) {
			return
		}
		for _, e := range snap[seq:] {
			if !yield(e) {
				return
			}
		}
	}
}
