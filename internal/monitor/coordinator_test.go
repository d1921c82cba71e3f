package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"safedrive/internal/drowsiness"
	"safedrive/internal/location"
	"safedrive/internal/motion"
	"safedrive/internal/report"
)

type fakeGateway struct {
	mu       sync.Mutex
	created  []report.Incident
	deleted  []string
	contacts []string
	notified []report.Alert
	createCh chan string
	deleteCh chan string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		contacts: []string{"+254700000001", "+254700000002"},
		createCh: make(chan string, 8),
		deleteCh: make(chan string, 8),
	}
}

func (g *fakeGateway) Create(ctx context.Context, incident report.Incident) (string, error) {
	g.mu.Lock()
	g.created = append(g.created, incident)
	id := "41"
	g.mu.Unlock()
	g.createCh <- id
	return id, nil
}

func (g *fakeGateway) Delete(ctx context.Context, id string) error {
	g.mu.Lock()
	g.deleted = append(g.deleted, id)
	g.mu.Unlock()
	g.deleteCh <- id
	return nil
}

func (g *fakeGateway) Contacts(ctx context.Context) ([]string, error) {
	return g.contacts, nil
}

func (g *fakeGateway) Notify(ctx context.Context, a report.Alert) (int, error) {
	g.mu.Lock()
	g.notified = append(g.notified, a)
	g.mu.Unlock()
	return len(a.EmergencyContacts), nil
}

func (g *fakeGateway) createCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

type fakePrompter struct {
	mu      sync.Mutex
	opens   int
	respond func(okay bool)
}

func (p *fakePrompter) Open(s Snapshot, respond func(okay bool)) error {
	p.mu.Lock()
	p.opens++
	p.respond = respond
	p.mu.Unlock()
	return nil
}

func (p *fakePrompter) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

type fakeAlarm struct {
	mu      sync.Mutex
	playing bool
	stops   int
}

func (a *fakeAlarm) Play() error {
	a.mu.Lock()
	a.playing = true
	a.mu.Unlock()
	return nil
}

func (a *fakeAlarm) Stop() {
	a.mu.Lock()
	a.playing = false
	a.stops++
	a.mu.Unlock()
}

type silentNotifier struct{}

func (silentNotifier) Info(msg string)  {}
func (silentNotifier) Warn(msg string)  {}
func (silentNotifier) Error(msg string) {}

type fixture struct {
	coordinator *Coordinator
	gateway     *fakeGateway
	prompter    *fakePrompter
	alarm       *fakeAlarm
	tracker     *location.Tracker
	locationSrc *SimLocationSource
	link        *drowsiness.Link
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	gateway := newFakeGateway()
	prompter := &fakePrompter{}
	alarm := &fakeAlarm{}
	notifier := silentNotifier{}

	locationSrc := &SimLocationSource{}
	tracker := location.NewTracker(locationSrc, notifier, 80)
	tracker.Start()
	t.Cleanup(tracker.Stop)

	link := drowsiness.NewLink(drowsiness.Config{URL: "ws://unused"}, notifier, alarm)

	c := NewCoordinator(cfg, motion.NewClassifier(0, 0, 0),
		tracker, link, gateway, notifier, alarm, prompter, nil)
	t.Cleanup(c.Dispose)

	return &fixture{
		coordinator: c,
		gateway:     gateway,
		prompter:    prompter,
		alarm:       alarm,
		tracker:     tracker,
		locationSrc: locationSrc,
		link:        link,
	}
}

func waitFor(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gateway call")
		return ""
	}
}

func TestMajorJerkCreatesExactlyOneReportPerGuardWindow(t *testing.T) {
	f := newFixture(t, Config{RearmDelay: 60 * time.Millisecond})

	f.locationSrc.Inject(location.Fix{Latitude: -1.28, Longitude: 36.82, SpeedMs: 20})

	// A burst of major jerks while pending must produce one report.
	for i := 0; i < 4; i++ {
		f.coordinator.HandleSeverity(motion.SeverityMajor)
	}
	waitFor(t, f.gateway.createCh)
	if got := f.gateway.createCount(); got != 1 {
		t.Fatalf("got %d creates during guard window, want 1", got)
	}
	if got := f.prompter.openCount(); got != 1 {
		t.Fatalf("got %d dialogs, want 1", got)
	}

	incident := f.gateway.created[0]
	if incident.Location[0] != -1.28 || incident.Location[1] != 36.82 {
		t.Errorf("incident location = %v", incident.Location)
	}
	if incident.Speed != 72 {
		t.Errorf("incident speed = %v, want 72", incident.Speed)
	}

	// After the guard clears, the next major jerk reports again.
	time.Sleep(100 * time.Millisecond)
	f.coordinator.HandleSeverity(motion.SeverityMajor)
	waitFor(t, f.gateway.createCh)
	if got := f.gateway.createCount(); got != 2 {
		t.Fatalf("got %d creates after re-arm, want 2", got)
	}
}

func TestMinorJerkSuppressionWindow(t *testing.T) {
	f := newFixture(t, Config{MinorJerkWindow: 40 * time.Millisecond, RearmDelay: 40 * time.Millisecond})

	f.coordinator.HandleSeverity(motion.SeverityMinor)
	if f.coordinator.State() != StateArmed {
		t.Fatal("minor jerk must not leave Armed")
	}
	if f.gateway.createCount() != 0 {
		t.Fatal("minor jerk created a report")
	}
}

func TestMajorBypassesMinorSuppression(t *testing.T) {
	f := newFixture(t, Config{MinorJerkWindow: time.Hour, RearmDelay: time.Hour})

	// A real crash often starts with a small jolt.
	f.coordinator.HandleSeverity(motion.SeverityMinor)
	f.coordinator.HandleSeverity(motion.SeverityMajor)
	waitFor(t, f.gateway.createCh)
	if got := f.gateway.createCount(); got != 1 {
		t.Fatalf("major during suppression window: got %d creates, want 1", got)
	}
}

func TestImOkayDeletesReportAndClearsFlags(t *testing.T) {
	f := newFixture(t, Config{RearmDelay: time.Hour})

	f.locationSrc.Inject(location.Fix{Latitude: -1.28, Longitude: 36.82, SpeedMs: 25}) // overspeeding
	f.coordinator.HandleSeverity(motion.SeverityMajor)
	waitFor(t, f.gateway.createCh)

	f.coordinator.Resolve(true)
	deleted := waitFor(t, f.gateway.deleteCh)
	if deleted != "41" {
		t.Fatalf("deleted id %q, want the created id", deleted)
	}
	if f.coordinator.State() != StateArmed {
		t.Fatalf("state after dismissal = %v, want armed", f.coordinator.State())
	}
	if f.tracker.IsOverspeeding() {
		t.Fatal("overspeeding flag survived dismissal")
	}
	f.alarm.mu.Lock()
	stopped := f.alarm.stops > 0
	f.alarm.mu.Unlock()
	if !stopped {
		t.Fatal("alarm not stopped on dismissal")
	}
}

func TestCloseWithoutConfirmKeepsRecord(t *testing.T) {
	f := newFixture(t, Config{RearmDelay: time.Hour})

	f.locationSrc.Inject(location.Fix{Latitude: -1.28, Longitude: 36.82, SpeedMs: 25})
	f.coordinator.HandleSeverity(motion.SeverityMajor)
	waitFor(t, f.gateway.createCh)

	f.coordinator.Resolve(false)
	if f.coordinator.State() != StateLogged {
		t.Fatalf("state = %v, want logged", f.coordinator.State())
	}
	select {
	case id := <-f.gateway.deleteCh:
		t.Fatalf("record %s was deleted on a plain close", id)
	case <-time.After(50 * time.Millisecond):
	}
	// Deliberate asymmetry: only an explicit "I'm okay" clears the flags.
	if !f.tracker.IsOverspeeding() {
		t.Fatal("flags were cleared on a plain close")
	}
}

func TestSnapshotFallsBackToLastValidFix(t *testing.T) {
	f := newFixture(t, Config{RearmDelay: time.Hour})

	f.locationSrc.Inject(location.Fix{Latitude: -1.28, Longitude: 36.82, SpeedMs: 10})
	f.locationSrc.Inject(location.Fix{Latitude: 0, Longitude: 0, SpeedMs: 10})

	f.coordinator.HandleSeverity(motion.SeverityMajor)
	waitFor(t, f.gateway.createCh)

	incident := f.gateway.created[0]
	if incident.Location[0] != -1.28 || incident.Location[1] != 36.82 {
		t.Fatalf("snapshot location = %v, want the last valid fix", incident.Location)
	}
}

func TestNotifyFanOutUsesFreshContacts(t *testing.T) {
	f := newFixture(t, Config{RearmDelay: time.Hour})

	f.coordinator.HandleSeverity(motion.SeverityMajor)
	waitFor(t, f.gateway.createCh)

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.gateway.mu.Lock()
		n := len(f.gateway.notified)
		f.gateway.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fan-out never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.gateway.mu.Lock()
	defer f.gateway.mu.Unlock()
	if len(f.gateway.notified[0].EmergencyContacts) != 2 {
		t.Fatalf("fan-out contacts = %v", f.gateway.notified[0].EmergencyContacts)
	}
}
