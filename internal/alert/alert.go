// Package alert carries user-facing notices and the local alarm out of the
// monitoring pipeline. Every notice is non-blocking: sensors and timers keep
// running while the driver is being told something.
package alert

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Notifier surfaces transient notices to the driver. A vehicle head unit
// would render these as toasts; the default implementation writes structured
// log lines.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Alarm is the local audible alert played on a possible accident or a
// drowsiness transition. Playback failures are swallowed by callers.
type Alarm interface {
	Play() error
	Stop()
}

// LogNotifier routes notices through logrus.
type LogNotifier struct{}

func (LogNotifier) Info(msg string)  { logrus.WithField("notice", "info").Info(msg) }
func (LogNotifier) Warn(msg string)  { logrus.WithField("notice", "warn").Warn(msg) }
func (LogNotifier) Error(msg string) { logrus.WithField("notice", "error").Error(msg) }

// LogAlarm records alarm activity instead of driving a speaker. Platforms
// with audio output swap in their own Alarm.
type LogAlarm struct {
	mu      sync.Mutex
	playing bool
}

func (a *LogAlarm) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playing {
		return nil
	}
	a.playing = true
	logrus.Info("alarm: playing")
	return nil
}

func (a *LogAlarm) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.playing {
		return
	}
	a.playing = false
	logrus.Info("alarm: stopped")
}
