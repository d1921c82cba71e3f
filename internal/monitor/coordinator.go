// Package monitor fuses jerk severity, drowsiness, speed and location into
// the incident lifecycle: arm, detect, report, confirm or stand.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"safedrive/internal/alert"
	"safedrive/internal/drowsiness"
	"safedrive/internal/journal"
	"safedrive/internal/location"
	"safedrive/internal/motion"
	"safedrive/internal/report"
)

// State is the incident lifecycle of one monitoring session.
type State int

const (
	// StateArmed: monitoring active, watching for a major jerk.
	StateArmed State = iota
	// StatePending: snapshot assembled, report submitted, confirmation open.
	StatePending
	// StateLogged: the dialog was closed without confirmation; the record
	// stands. The session re-arms for the next incident.
	StateLogged
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLogged:
		return "logged"
	default:
		return "armed"
	}
}

// Gateway is the external collaborator that persists incident records and
// fans out notifications.
type Gateway interface {
	Create(ctx context.Context, incident report.Incident) (string, error)
	Delete(ctx context.Context, id string) error
	Contacts(ctx context.Context) ([]string, error)
	Notify(ctx context.Context, a report.Alert) (int, error)
}

// Snapshot is the fused sensor state captured the instant a major jerk is
// classified.
type Snapshot struct {
	Reference  string // agent-side uuid for journaling
	Location   [2]float64
	SpeedKmh   float64
	IsDrowsy   bool
	IsOversped bool
	VictimID   string
}

// Prompter opens the driver-facing confirmation dialog. respond is invoked
// with true for "I'm okay" (false alarm) and false for a plain close.
// Failure to open the dialog is the one hard error in the pipeline: if the
// driver cannot be asked, the safety purpose is defeated.
type Prompter interface {
	Open(s Snapshot, respond func(okay bool)) error
}

// Recorder is the local incident journal. Satisfied by *journal.Journal;
// may be nil when local persistence is disabled.
type Recorder interface {
	Record(e *journal.Entry) error
	SetStatus(reference, status string) error
	SetRemoteID(reference, remoteID string) error
}

// Config carries the coordinator timings and identity.
type Config struct {
	MinorJerkWindow time.Duration // suppression window after a minor jerk
	RearmDelay      time.Duration // guard-clear delay after a major jerk
	VictimID        string
}

func (c Config) withDefaults() Config {
	if c.MinorJerkWindow <= 0 {
		c.MinorJerkWindow = 2 * time.Second
	}
	if c.RearmDelay <= 0 {
		c.RearmDelay = 5 * time.Second
	}
	return c
}

// Coordinator is the state machine that enforces at-most-one in-flight
// incident and drives the report/notify/resolve lifecycle.
type Coordinator struct {
	cfg        Config
	classifier motion.Classifier
	tracker    *location.Tracker
	link       *drowsiness.Link
	gateway    Gateway
	notifier   alert.Notifier
	alarm      alert.Alarm
	prompter   Prompter
	recorder   Recorder
	sampler    *motion.Sampler

	mu         sync.Mutex
	state      State
	suppressed bool // minor-jerk window open
	minorTimer *time.Timer
	rearmTimer *time.Timer
	pendingRef string
	remoteID   string
	disposed   bool
}

// NewCoordinator wires the pipeline together. tracker, link, gateway,
// notifier, alarm and prompter are required; recorder may be nil.
func NewCoordinator(
	cfg Config,
	classifier motion.Classifier,
	tracker *location.Tracker,
	link *drowsiness.Link,
	gateway Gateway,
	notifier alert.Notifier,
	alarm alert.Alarm,
	prompter Prompter,
	recorder Recorder,
) *Coordinator {
	return &Coordinator{
		cfg:        cfg.withDefaults(),
		classifier: classifier,
		tracker:    tracker,
		link:       link,
		gateway:    gateway,
		notifier:   notifier,
		alarm:      alarm,
		prompter:   prompter,
		recorder:   recorder,
		state:      StateArmed,
	}
}

// SetSampler lets the session hand over the motion sampler so dismissal can
// clear the retained sample pair.
func (c *Coordinator) SetSampler(s *motion.Sampler) {
	c.mu.Lock()
	c.sampler = s
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandlePair is the motion sampler callback: classify the pair and act.
func (c *Coordinator) HandlePair(current, previous motion.Sample) {
	c.HandleSeverity(c.classifier.Classify(current, previous))
}

// HandleSeverity applies one classification result to the state machine.
// A major jerk bypasses the minor suppression window; a real accident often
// is a minor jerk followed by a major one.
func (c *Coordinator) HandleSeverity(severity motion.Severity) {
	switch severity {
	case motion.SeverityMajor:
		c.trigger()
	case motion.SeverityMinor:
		c.suppress()
	}
}

// suppress opens the single minor-jerk suppression window. Arming a new
// window supersedes the previous one.
func (c *Coordinator) suppress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || c.state != StateArmed {
		return
	}
	if c.suppressed {
		return
	}
	c.suppressed = true
	if c.minorTimer != nil {
		c.minorTimer.Stop()
	}
	c.minorTimer = time.AfterFunc(c.cfg.MinorJerkWindow, func() {
		c.mu.Lock()
		c.suppressed = false
		c.mu.Unlock()
	})
	logrus.Debug("monitor: minor jerk, suppression window opened")
}

// trigger runs the Armed → Pending transition. The state is advanced
// synchronously before any asynchronous work so two back-to-back motion
// events cannot both pass the check.
func (c *Coordinator) trigger() {
	c.mu.Lock()
	if c.disposed || c.state != StateArmed {
		c.mu.Unlock()
		return
	}
	c.state = StatePending
	if c.minorTimer != nil {
		c.minorTimer.Stop()
		c.minorTimer = nil
	}
	c.suppressed = false

	reference := uuid.New().String()
	c.pendingRef = reference
	c.remoteID = ""

	// Clear the guard after a fixed delay regardless of how the report
	// round-trip goes; a network failure must not wedge detection.
	c.rearmTimer = time.AfterFunc(c.cfg.RearmDelay, func() {
		c.mu.Lock()
		if c.state == StatePending || c.state == StateLogged {
			c.state = StateArmed
		}
		c.mu.Unlock()
	})
	c.mu.Unlock()

	lat, lng := c.tracker.BestKnown()
	snapshot := Snapshot{
		Reference:  reference,
		Location:   [2]float64{lat, lng},
		SpeedKmh:   c.tracker.SpeedKmh(),
		IsDrowsy:   c.link.IsDrowsy(),
		IsOversped: c.tracker.IsOverspeeding(),
		VictimID:   c.cfg.VictimID,
	}

	logrus.WithFields(logrus.Fields{
		"reference":   reference,
		"latitude":    lat,
		"longitude":   lng,
		"speed_kmh":   snapshot.SpeedKmh,
		"is_drowsy":   snapshot.IsDrowsy,
		"is_oversped": snapshot.IsOversped,
	}).Warn("monitor: possible accident detected")

	// The dialog opens before any network call so the driver always sees
	// the prompt, even under latency or backend failure.
	if err := c.prompter.Open(snapshot, func(okay bool) { c.Resolve(okay) }); err != nil {
		// The one failure that must never be swallowed.
		logrus.WithError(err).Error("monitor: FAILED to open accident confirmation dialog")
		c.notifier.Error("Accident detected but the confirmation dialog could not be shown")
	}

	if err := c.alarm.Play(); err != nil {
		logrus.WithError(err).Debug("monitor: alarm playback failed")
	}

	if c.recorder != nil {
		entry := &journal.Entry{
			Reference:  reference,
			Latitude:   lat,
			Longitude:  lng,
			SpeedKmh:   snapshot.SpeedKmh,
			IsDrowsy:   snapshot.IsDrowsy,
			IsOversped: snapshot.IsOversped,
			Status:     journal.StatusReported,
		}
		if err := c.recorder.Record(entry); err != nil {
			logrus.WithError(err).Warn("monitor: failed to journal incident")
		}
	}

	go c.submit(snapshot)
}

// submit runs the network side of the Pending transition: create the record,
// then best-effort notification fan-out with freshly fetched contacts.
func (c *Coordinator) submit(s Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	id, err := c.gateway.Create(ctx, report.Incident{
		Location:   s.Location,
		Speed:      s.SpeedKmh,
		IsDrowsy:   s.IsDrowsy,
		IsOversped: s.IsOversped,
		VictimID:   s.VictimID,
	})
	if err != nil {
		logrus.WithError(err).Error("monitor: failed to report accident")
		c.notifier.Warn("Failed to report accident to emergency services")
		return
	}

	c.mu.Lock()
	if c.pendingRef == s.Reference {
		c.remoteID = id
	}
	c.mu.Unlock()

	if c.recorder != nil {
		if err := c.recorder.SetRemoteID(s.Reference, id); err != nil {
			logrus.WithError(err).Warn("monitor: failed to store remote id")
		}
	}
	c.notifier.Info("Accident report sent to emergency services")

	contacts, err := c.gateway.Contacts(ctx)
	if err != nil {
		logrus.WithError(err).Warn("monitor: failed to fetch emergency contacts")
		contacts = nil
	}
	sent, err := c.gateway.Notify(ctx, report.Alert{
		Location:          s.Location,
		Speed:             s.SpeedKmh,
		IsDrowsy:          s.IsDrowsy,
		IsOversped:        s.IsOversped,
		VictimDetails:     s.VictimID,
		EmergencyContacts: contacts,
	})
	if err != nil {
		logrus.WithError(err).Warn("monitor: notification fan-out failed")
		c.notifier.Warn("Failed to send emergency notifications")
		return
	}
	c.notifier.Info(fmt.Sprintf("Alert messages sent to %d emergency contacts", sent))
}

// Resolve handles the driver's answer to the confirmation dialog.
// okay=true is "I'm okay": the record is deleted and local flags reset.
// okay=false is a plain close: the record stands, nothing is cleared.
func (c *Coordinator) Resolve(okay bool) {
	c.mu.Lock()
	if c.pendingRef == "" {
		c.mu.Unlock()
		return
	}
	reference := c.pendingRef
	remoteID := c.remoteID
	c.pendingRef = ""
	c.remoteID = ""

	if okay {
		c.state = StateArmed
		if c.rearmTimer != nil {
			c.rearmTimer.Stop()
			c.rearmTimer = nil
		}
	} else if c.state == StatePending {
		c.state = StateLogged
	}
	sampler := c.sampler
	c.mu.Unlock()

	if !okay {
		// Silent accept: the record stands permanently.
		if c.recorder != nil {
			if err := c.recorder.SetStatus(reference, journal.StatusLogged); err != nil {
				logrus.WithError(err).Warn("monitor: failed to journal logged status")
			}
		}
		return
	}

	c.alarm.Stop()

	if remoteID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.gateway.Delete(ctx, remoteID); err != nil {
			logrus.WithError(err).Warn("monitor: failed to delete accident record")
			c.notifier.Warn("Failed to remove most recent record")
		} else {
			c.notifier.Info("Removed most recent record")
		}
	} else {
		c.notifier.Info("No accident record to delete")
	}

	if c.recorder != nil {
		if err := c.recorder.SetStatus(reference, journal.StatusDismissed); err != nil {
			logrus.WithError(err).Warn("monitor: failed to journal dismissed status")
		}
	}

	// Next classification starts clean.
	c.link.ResetResult()
	c.tracker.ResetFlags()
	if sampler != nil {
		sampler.Reset()
	}
}

// Dispose cancels pending timers so they never fire against torn-down state.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	if c.minorTimer != nil {
		c.minorTimer.Stop()
		c.minorTimer = nil
	}
	if c.rearmTimer != nil {
		c.rearmTimer.Stop()
		c.rearmTimer = nil
	}
	c.suppressed = false
}
