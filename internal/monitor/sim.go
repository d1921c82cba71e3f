package monitor

import (
	"sync"

	"safedrive/internal/location"
	"safedrive/internal/motion"
)

// SimMotionSource is a motion source driven by explicit Inject calls,
// used by the simulate command and by integration exercises.
type SimMotionSource struct {
	mu sync.Mutex
	fn func(motion.Reading)
}

func (s *SimMotionSource) Subscribe(fn func(motion.Reading)) error {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	return nil
}

func (s *SimMotionSource) Unsubscribe() {
	s.mu.Lock()
	s.fn = nil
	s.mu.Unlock()
}

// Inject delivers one complete reading to the subscriber, if any.
func (s *SimMotionSource) Inject(x, y, z float64) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(motion.Reading{X: &x, Y: &y, Z: &z})
	}
}

// SimLocationSource replays fixes injected by the caller.
type SimLocationSource struct {
	mu    sync.Mutex
	onFix func(location.Fix)
	onErr func(error)
}

func (s *SimLocationSource) Watch(onFix func(location.Fix), onErr func(error)) error {
	s.mu.Lock()
	s.onFix = onFix
	s.onErr = onErr
	s.mu.Unlock()
	return nil
}

func (s *SimLocationSource) Clear() {
	s.mu.Lock()
	s.onFix = nil
	s.onErr = nil
	s.mu.Unlock()
}

// Inject delivers one position fix to the watcher, if any.
func (s *SimLocationSource) Inject(fix location.Fix) {
	s.mu.Lock()
	onFix := s.onFix
	s.mu.Unlock()
	if onFix != nil {
		onFix(fix)
	}
}

