// Package location continuously samples device position and speed while a
// monitoring session is active. It keeps the current fix and the most recent
// valid one so an incident snapshot never has to fall back to a stale value
// from some other field.
package location

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"safedrive/internal/alert"
)

// validEpsilon excludes the (0,0) unset sentinel. Real equatorial or prime
// meridian fixes inside the band are an accepted approximation here.
const validEpsilon = 0.001

// DefaultSpeedLimitKmh is the overspeed threshold when none is configured.
const DefaultSpeedLimitKmh = 80.0

// Fix is one raw position report from the platform. SpeedMs is ground speed
// in m/s; negative means the receiver did not report speed for this fix.
type Fix struct {
	Latitude  float64
	Longitude float64
	SpeedMs   float64
	Timestamp time.Time
}

// Position is a processed sample with speed converted to km/h.
type Position struct {
	Latitude  float64
	Longitude float64
	SpeedKmh  float64
	Timestamp time.Time
}

// Valid reports whether the coordinates are a usable fix rather than the
// unset sentinel.
func (p Position) Valid() bool {
	return math.Abs(p.Latitude) > validEpsilon && math.Abs(p.Longitude) > validEpsilon
}

// Source delivers position fixes. Watch starts continuous delivery and calls
// onErr for non-fatal position failures (permission denial, timeout);
// Clear stops the watch.
type Source interface {
	Watch(onFix func(Fix), onErr func(error)) error
	Clear()
}

// Tracker maintains current and last-known-valid position plus the
// overspeeding flag for the active session.
type Tracker struct {
	source   Source
	notifier alert.Notifier
	limitKmh float64

	mu             sync.Mutex
	current        Position
	lastValid      Position
	overspeeding   bool
	tripDistanceKm float64
	watching       bool
}

// NewTracker builds a tracker over the given source. A zero speed limit
// falls back to the default.
func NewTracker(source Source, notifier alert.Notifier, speedLimitKmh float64) *Tracker {
	if speedLimitKmh == 0 {
		speedLimitKmh = DefaultSpeedLimitKmh
	}
	return &Tracker{source: source, notifier: notifier, limitKmh: speedLimitKmh}
}

// Start begins the position watch. Source failure to start is reported once
// and the tracker keeps serving its retained samples.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.watching {
		t.mu.Unlock()
		return
	}
	t.watching = true
	t.mu.Unlock()

	if err := t.source.Watch(t.handleFix, t.handleError); err != nil {
		logrus.WithError(err).Warn("location: position watch unavailable")
		t.notifier.Warn("Location tracking is not available on this device")
	}
}

// Stop synchronously clears the position watch.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.watching {
		t.mu.Unlock()
		return
	}
	t.watching = false
	t.overspeeding = false
	t.mu.Unlock()

	t.source.Clear()
}

func (t *Tracker) handleFix(fix Fix) {
	pos := Position{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Timestamp: fix.Timestamp,
	}
	if fix.SpeedMs >= 0 {
		pos.SpeedKmh = fix.SpeedMs * 3.6
	}

	t.mu.Lock()
	if !t.watching {
		t.mu.Unlock()
		return
	}
	prevValid := t.lastValid
	if fix.SpeedMs < 0 {
		// Keep the previous speed when the receiver omits it.
		pos.SpeedKmh = t.current.SpeedKmh
	}
	t.current = pos
	if pos.Valid() {
		if prevValid.Valid() {
			t.tripDistanceKm += haversineKm(
				prevValid.Latitude, prevValid.Longitude,
				pos.Latitude, pos.Longitude,
			)
		}
		t.lastValid = pos
	}

	wasOverspeeding := t.overspeeding
	t.overspeeding = pos.SpeedKmh > t.limitKmh
	warn := t.overspeeding && !wasOverspeeding
	t.mu.Unlock()

	if warn {
		// Edge-triggered on the transition into overspeeding; warning on
		// every sample of a fast GPS loop is an alert storm.
		logrus.WithFields(logrus.Fields{
			"speed_kmh": pos.SpeedKmh,
			"limit_kmh": t.limitKmh,
		}).Warn("location: speed limit exceeded")
		t.notifier.Warn("Slow down! You're exceeding the speed limit!")
	}
}

func (t *Tracker) handleError(err error) {
	// Non-fatal: tracking keeps reporting the retained samples.
	logrus.WithError(err).Warn("location: position error")
	t.notifier.Warn("Unable to track location. Please check your permissions.")
}

// Current returns the latest sample, valid or not.
func (t *Tracker) Current() Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// LastKnownValid returns the most recent non-sentinel fix since tracking
// started. It is never cleared once set.
func (t *Tracker) LastKnownValid() Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastValid
}

// BestKnown resolves the location for an incident snapshot: current if
// valid, else last-known-valid, else the zero sentinel.
func (t *Tracker) BestKnown() (lat, lng float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current.Valid() {
		return t.current.Latitude, t.current.Longitude
	}
	if t.lastValid.Valid() {
		return t.lastValid.Latitude, t.lastValid.Longitude
	}
	return 0, 0
}

// SpeedKmh returns the latest reported ground speed.
func (t *Tracker) SpeedKmh() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.SpeedKmh
}

// IsOverspeeding reports whether the latest sample exceeded the limit.
func (t *Tracker) IsOverspeeding() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overspeeding
}

// ResetFlags clears the overspeeding flag after an incident is dismissed.
func (t *Tracker) ResetFlags() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overspeeding = false
}

// TripDistanceKm returns the distance accumulated over valid fixes this
// session.
func (t *Tracker) TripDistanceKm() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tripDistanceKm
}

// haversineKm calculates the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// toRadians converts an angle from degrees to radians.
func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
