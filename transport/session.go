// Package transport manages the contactless session lifecycle: polling for
// a tag, rejecting multi-tag detections, delegating to the chip sequencer,
// and guaranteeing that every scan attempt resolves exactly once.
package transport

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sudachi-dev/cardscan/chip"
)

type outcome struct {
	rec chip.Record
	err error
}

// session is the ephemeral state of one scan attempt. The done channel is a
// one-shot result slot guarded by a consumed flag so that the detect, error
// and timeout paths can all race to resolve without double delivery.
type session struct {
	id       string
	consumed atomic.Bool
	done     chan outcome
}

func newSession() *session {
	return &session{id: uuid.NewString(), done: make(chan outcome, 1)}
}

// resolve delivers the session outcome if no other path got there first.
// It reports whether this call won.
func (s *session) resolve(rec chip.Record, err error) bool {
	if !s.consumed.CompareAndSwap(false, true) {
		return false
	}
	s.done <- outcome{rec: rec, err: err}
	return true
}
