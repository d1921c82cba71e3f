// Package drowsiness maintains the duplex telemetry channel to the remote
// inference service: camera frames go out at a fixed rate, per-frame
// drowsiness results come back whenever the server produces them.
package drowsiness

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"safedrive/internal/alert"
)

// State is the lifecycle of the telemetry channel.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Result is the latest inference output. It is replaced wholesale on every
// inbound message; no history is merged.
type Result struct {
	IsDrowsy             bool
	EAR                  float64
	DrowsinessPercentage float64
	FaceDetected         bool
	AlertSent            bool
	ReceivedAt           time.Time
}

// Wire formats shared with the inference service.
type frameMessage struct {
	Frame string `json:"frame"`
}

type resultMessage struct {
	IsDrowsy             bool    `json:"is_drowsy"`
	EAR                  float64 `json:"ear"`
	DrowsinessPercentage float64 `json:"drowsiness_percentage"`
	AlertSent            bool    `json:"alert_sent"`
	FaceDetected         bool    `json:"face_detected"`
}

// FrameSource supplies encoded JPEG frames. ok is false while the video
// source has no decoded dimensions yet; such ticks are skipped silently.
type FrameSource interface {
	Frame() (jpeg []byte, ok bool)
}

// Camera owns the physical video device. It is acquired when monitoring
// turns on and released when it turns off; acquisition failure does not by
// itself close the telemetry channel.
type Camera interface {
	Acquire() (FrameSource, error)
	Release()
}

// Config tunes the channel per vehicle/device class.
type Config struct {
	URL           string
	FrameRate     int           // frames per second, default 6
	MaxReconnects int           // retry budget after abnormal closes, default 3
	ReconnectBase time.Duration // default 1s
	ReconnectMax  time.Duration // default 10s
}

func (c Config) withDefaults() Config {
	if c.FrameRate <= 0 {
		c.FrameRate = 6
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 3
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 10 * time.Second
	}
	return c
}

// Link is the reconnecting telemetry channel.
type Link struct {
	cfg      Config
	notifier alert.Notifier
	alarm    alert.Alarm
	dialer   *websocket.Dialer

	mu        sync.Mutex
	state     State
	closeCode int
	attempts  int
	result    Result
	frames    FrameSource
	conn      *websocket.Conn
	writeMu   sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	stopping  bool
	lastErr   error
}

// NewLink builds a channel for the given endpoint. Nothing connects until
// Start.
func NewLink(cfg Config, notifier alert.Notifier, alarm alert.Alarm) *Link {
	return &Link{
		cfg:      cfg.withDefaults(),
		notifier: notifier,
		alarm:    alarm,
		dialer:   websocket.DefaultDialer,
		state:    StateIdle,
	}
}

// SetFrameSource attaches (or, with nil, detaches) the camera frame supply.
// The channel simply has no frames to send while detached.
func (l *Link) SetFrameSource(fs FrameSource) {
	l.mu.Lock()
	l.frames = fs
	l.mu.Unlock()
}

// Start opens the channel and runs it until Stop or retry exhaustion.
func (l *Link) Start() {
	l.mu.Lock()
	if l.done != nil {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	done := make(chan struct{})
	l.done = done
	l.stopping = false
	l.attempts = 0
	l.mu.Unlock()

	go l.run(ctx, done)
}

// Stop closes the channel with a normal-closure code, suppressing
// auto-reconnect, and waits for the run loop to exit.
func (l *Link) Stop() {
	l.mu.Lock()
	if l.done == nil {
		l.mu.Unlock()
		return
	}
	l.stopping = true
	conn := l.conn
	cancel := l.cancel
	done := l.done
	l.done = nil
	l.cancel = nil
	l.mu.Unlock()

	if conn != nil {
		l.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "monitoring stopped"),
			deadline)
		l.writeMu.Unlock()
		conn.Close()
	}
	cancel()
	<-done
}

// State returns the current channel state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Latest returns the most recent inference result.
func (l *Link) Latest() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}

// IsDrowsy is a convenience for the incident snapshot.
func (l *Link) IsDrowsy() bool {
	return l.Latest().IsDrowsy
}

// ResetResult clears the stored result after an incident is dismissed.
func (l *Link) ResetResult() {
	l.mu.Lock()
	l.result = Result{}
	l.mu.Unlock()
}

// CloseCode returns the close code of the most recent disconnect.
func (l *Link) CloseCode() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCode
}

// Err returns the terminal error after the retry budget is exhausted.
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Link) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		l.setState(StateConnecting)
		conn, _, err := l.dialer.DialContext(ctx, l.cfg.URL, nil)
		if err != nil {
			logrus.WithError(err).Warn("drowsiness: connection failed")
			if !l.scheduleRetry(ctx, err) {
				return
			}
			continue
		}

		l.mu.Lock()
		l.conn = conn
		l.state = StateOpen
		l.attempts = 0
		l.mu.Unlock()
		logrus.WithField("url", l.cfg.URL).Info("drowsiness: channel open")
		l.notifier.Info("Connected to drowsiness monitoring system")

		captureCtx, stopCapture := context.WithCancel(ctx)
		go l.captureLoop(captureCtx, conn)

		closeCode := l.readLoop(conn)
		stopCapture()
		conn.Close()

		l.mu.Lock()
		l.conn = nil
		l.state = StateClosed
		l.closeCode = closeCode
		stopping := l.stopping
		l.mu.Unlock()

		if stopping || closeCode == websocket.CloseNormalClosure {
			// Intentional closure is terminal by design.
			return
		}
		if !l.scheduleRetry(ctx, fmt.Errorf("drowsiness: channel closed with code %d", closeCode)) {
			return
		}
	}
}

// scheduleRetry applies the exponential backoff policy. It returns false
// once the retry budget is exhausted or the context is cancelled.
func (l *Link) scheduleRetry(ctx context.Context, cause error) bool {
	l.mu.Lock()
	l.attempts++
	attempt := l.attempts
	if attempt > l.cfg.MaxReconnects {
		l.state = StateClosed
		l.lastErr = fmt.Errorf("drowsiness: giving up after %d attempts: %w", l.cfg.MaxReconnects, cause)
		l.mu.Unlock()
		logrus.WithError(cause).Error("drowsiness: reconnect budget exhausted")
		l.notifier.Error(fmt.Sprintf("Connection failed after %d attempts. Please try again later.", l.cfg.MaxReconnects))
		return false
	}
	l.mu.Unlock()

	delay := backoff(attempt, l.cfg.ReconnectBase, l.cfg.ReconnectMax)
	logrus.WithFields(logrus.Fields{
		"attempt": attempt,
		"max":     l.cfg.MaxReconnects,
		"delay":   delay,
	}).Warn("drowsiness: reconnecting")
	l.notifier.Warn(fmt.Sprintf("Connection lost. Reconnecting (%d/%d)...", attempt, l.cfg.MaxReconnects))

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// backoff is min(base × 2^attempt, max).
func backoff(attempt int, base, max time.Duration) time.Duration {
	d := base * time.Duration(1<<uint(attempt))
	if d > max {
		d = max
	}
	return d
}

// readLoop consumes inbound messages until the connection drops, returning
// the close code (CloseAbnormalClosure when none was supplied).
func (l *Link) readLoop(conn *websocket.Conn) int {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr.Code
			}
			return websocket.CloseAbnormalClosure
		}
		l.handleMessage(payload)
	}
}

func (l *Link) handleMessage(payload []byte) {
	var msg resultMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		// Malformed inference output drops this tick only.
		logrus.WithError(err).Warn("drowsiness: dropping malformed message")
		return
	}

	next := Result{
		IsDrowsy:             msg.IsDrowsy,
		EAR:                  msg.EAR,
		DrowsinessPercentage: msg.DrowsinessPercentage,
		FaceDetected:         msg.FaceDetected,
		AlertSent:            msg.AlertSent,
		ReceivedAt:           time.Now(),
	}

	l.mu.Lock()
	wasDrowsy := l.result.IsDrowsy
	l.result = next
	l.mu.Unlock()

	// Edge-triggered: alert once on the false→true transition, not on every
	// message while drowsiness persists.
	if next.IsDrowsy && !wasDrowsy {
		if err := l.alarm.Play(); err != nil {
			logrus.WithError(err).Debug("drowsiness: alarm playback failed")
		}
		l.notifier.Error("Drowsiness detected! Please take a break.")
	}
}

// captureLoop transmits one frame per tick at the configured rate.
func (l *Link) captureLoop(ctx context.Context, conn *websocket.Conn) {
	interval := time.Second / time.Duration(l.cfg.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			fs := l.frames
			l.mu.Unlock()
			if fs == nil {
				continue
			}
			data, ok := fs.Frame()
			if !ok {
				// Video source has no decoded dimensions yet.
				continue
			}
			msg := frameMessage{
				Frame: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
			}
			l.writeMu.Lock()
			err := conn.WriteJSON(msg)
			l.writeMu.Unlock()
			if err != nil {
				logrus.WithError(err).Debug("drowsiness: frame send failed")
				return
			}
		}
	}
}
