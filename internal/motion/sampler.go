package motion

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrUnsupported is returned by a Source whose host platform has no motion
// sensor. The condition is permanent for the monitoring session.
var ErrUnsupported = errors.New("motion: sensor not available on this device")

// Source delivers raw motion readings at the platform's native event rate.
// Subscribe registers the callback and starts delivery; Unsubscribe stops it.
type Source interface {
	Subscribe(fn func(Reading)) error
	Unsubscribe()
}

// PairFunc receives the two most recent complete samples, newest first.
type PairFunc func(current, previous Sample)

// Sampler retains the last two complete samples and hands each consecutive
// pair to its callback. It owns no other state.
type Sampler struct {
	source Source
	onPair PairFunc

	mu       sync.Mutex
	current  *Sample
	previous *Sample
	active   bool
}

// NewSampler wires a source to a pair callback. Nothing starts until Start.
func NewSampler(source Source, onPair PairFunc) *Sampler {
	return &Sampler{source: source, onPair: onPair}
}

// Start subscribes to the motion source. ErrUnsupported is passed through so
// the caller can report it once and continue with the remaining sensors.
func (s *Sampler) Start() error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = true
	s.mu.Unlock()

	if err := s.source.Subscribe(s.handle); err != nil {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// Stop unsubscribes and discards the retained samples.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.current = nil
	s.previous = nil
	s.mu.Unlock()

	s.source.Unsubscribe()
}

// Reset drops the retained sample pair so the next classification starts
// clean, without detaching from the source.
func (s *Sampler) Reset() {
	s.mu.Lock()
	s.current = nil
	s.previous = nil
	s.mu.Unlock()
}

func (s *Sampler) handle(r Reading) {
	if !r.Complete() {
		// Partial sensor event, treated as a no-op rather than a failure.
		logrus.Debug("motion: skipping reading with missing axis data")
		return
	}
	sample := r.Sample()

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	if s.current != nil {
		s.previous = s.current
	}
	s.current = &sample

	var current, previous Sample
	ready := s.previous != nil
	if ready {
		current = *s.current
		previous = *s.previous
	}
	s.mu.Unlock()

	if ready && s.onPair != nil {
		s.onPair(current, previous)
	}
}
