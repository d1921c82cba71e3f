package config

import (
	"log"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Agent holds every tunable for the on-device monitoring pipeline.
// All values come from the environment so thresholds can be tuned per
// vehicle/device class without rebuilding the agent.
type Agent struct {
	// Jerk classification
	JerkThreshold     float64
	AccidentThreshold float64
	Sensitivity       float64

	// Location tracking
	SpeedLimitKmh float64

	// Drowsiness telemetry channel
	DrowsinessURL    string
	FrameRate        int
	FrameQuality     int
	MaxReconnects    int
	ReconnectBase    time.Duration
	ReconnectMax     time.Duration

	// Incident lifecycle
	MinorJerkWindow time.Duration
	RearmDelay      time.Duration

	// Report server
	ServerURL string
	AuthToken string
	VictimID  string

	// Local journal
	JournalPath string
}

// LoadAgent reads the agent configuration from the environment,
// loading a .env file first if one is present.
func LoadAgent() Agent {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	return Agent{
		JerkThreshold:     getEnvFloat("JERK_THRESHOLD", 3),
		AccidentThreshold: getEnvFloat("ACCIDENT_THRESHOLD", 7),
		Sensitivity:       getEnvFloat("JERK_SENSITIVITY", 1.0),
		SpeedLimitKmh:     getEnvFloat("SPEED_LIMIT_KMH", 80),
		DrowsinessURL:     getEnv("DROWSINESS_WS_URL", "ws://localhost:8000/ws/drowsiness"),
		FrameRate:         getEnvInt("FRAME_RATE", 6),
		FrameQuality:      getEnvInt("FRAME_QUALITY", 80),
		MaxReconnects:     getEnvInt("WS_MAX_RECONNECTS", 3),
		ReconnectBase:     getEnvDuration("WS_RECONNECT_BASE_MS", 1000*time.Millisecond),
		ReconnectMax:      getEnvDuration("WS_RECONNECT_MAX_MS", 10000*time.Millisecond),
		MinorJerkWindow:   getEnvDuration("MINOR_JERK_WINDOW_MS", 2000*time.Millisecond),
		RearmDelay:        getEnvDuration("REARM_DELAY_MS", 5000*time.Millisecond),
		ServerURL:         getEnv("SERVER_URL", "http://localhost:8080"),
		AuthToken:         getEnv("AUTH_TOKEN", ""),
		VictimID:          getEnv("VICTIM_ID", ""),
		JournalPath:       getEnv("JOURNAL_PATH", "safedrive_journal.db"),
	}
}

// getEnvFloat reads a float environment variable or returns the default
func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable or returns the default
func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count or returns the default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return time.Duration(v) * time.Millisecond
	}
	return defaultValue
}
