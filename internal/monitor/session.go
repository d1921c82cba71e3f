package monitor

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"safedrive/internal/drowsiness"
	"safedrive/internal/location"
	"safedrive/internal/motion"
)

// Session owns one monitoring run: it starts the motion, location and
// drowsiness pipelines together and tears them all down deterministically,
// in reverse, when monitoring stops.
type Session struct {
	id          string
	coordinator *Coordinator
	sampler     *motion.Sampler
	tracker     *location.Tracker
	link        *drowsiness.Link
	camera      drowsiness.Camera

	mu      sync.Mutex
	running bool
}

// NewSession assembles a session. camera may be nil when no video device is
// available; drowsiness inference then receives no frames but the rest of
// the pipeline runs.
func NewSession(
	coordinator *Coordinator,
	sampler *motion.Sampler,
	tracker *location.Tracker,
	link *drowsiness.Link,
	camera drowsiness.Camera,
) *Session {
	coordinator.SetSampler(sampler)
	return &Session{
		id:          uuid.New().String(),
		coordinator: coordinator,
		sampler:     sampler,
		tracker:     tracker,
		link:        link,
		camera:      camera,
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Coordinator exposes the incident state machine, mainly for the CLI to
// forward dialog responses.
func (s *Session) Coordinator() *Coordinator { return s.coordinator }

// Start brings the pipelines up. Motion-sensor absence is reported once and
// is not fatal; the session still tracks location and drowsiness.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	log := logrus.WithField("session", s.id)
	log.Info("monitor: session starting")

	if s.camera != nil {
		frames, err := s.camera.Acquire()
		if err != nil {
			log.WithError(err).Warn("monitor: camera unavailable")
		} else {
			s.link.SetFrameSource(frames)
		}
	}
	s.link.Start()
	s.tracker.Start()

	if err := s.sampler.Start(); err != nil {
		if errors.Is(err, motion.ErrUnsupported) {
			log.Warn("monitor: motion sensing unsupported on this device")
		} else {
			log.WithError(err).Warn("monitor: motion sampler failed to start")
		}
	}

	log.Info("monitor: session started")
	return nil
}

// Stop tears the session down in reverse start order. Safe to call twice.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log := logrus.WithField("session", s.id)
	log.Info("monitor: session stopping")

	s.sampler.Stop()
	s.tracker.Stop()
	s.link.Stop()
	s.link.SetFrameSource(nil)
	if s.camera != nil {
		s.camera.Release()
	}
	s.coordinator.Dispose()

	log.Info("monitor: session stopped")
}
