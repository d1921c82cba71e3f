// Package motion reads accelerometer samples and classifies the change
// between consecutive readings into jerk severities. A sudden large change in
// acceleration is used as a proxy for a collision.
package motion

import "math"

// Default classification thresholds, overridable via configuration.
const (
	DefaultJerkThreshold     = 3.0
	DefaultAccidentThreshold = 7.0
)

// Sample is one instantaneous accelerometer reading, in sensor units.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Reading is a raw platform motion event. Axes are pointers because some
// sensors report partial events; a reading with any missing axis is skipped.
type Reading struct {
	X *float64
	Y *float64
	Z *float64
}

// Complete reports whether all three axes are present.
func (r Reading) Complete() bool {
	return r.X != nil && r.Y != nil && r.Z != nil
}

// Sample converts a complete reading into a sample. Callers must check
// Complete first.
func (r Reading) Sample() Sample {
	return Sample{X: *r.X, Y: *r.Y, Z: *r.Z}
}

// Severity is the classification of one sample pair.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityMajor
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	default:
		return "none"
	}
}

// Classifier converts a pair of consecutive samples into a severity.
type Classifier struct {
	JerkThreshold     float64
	AccidentThreshold float64
	Sensitivity       float64
}

// NewClassifier returns a classifier with the given thresholds. Zero-valued
// thresholds fall back to the defaults; zero sensitivity falls back to 1.0.
func NewClassifier(jerkThreshold, accidentThreshold, sensitivity float64) Classifier {
	if jerkThreshold == 0 {
		jerkThreshold = DefaultJerkThreshold
	}
	if accidentThreshold == 0 {
		accidentThreshold = DefaultAccidentThreshold
	}
	if sensitivity == 0 {
		sensitivity = 1.0
	}
	return Classifier{
		JerkThreshold:     jerkThreshold,
		AccidentThreshold: accidentThreshold,
		Sensitivity:       sensitivity,
	}
}

// Magnitude returns the jerk magnitude for a sample pair:
// (|Δx| + |Δy| + |Δz|) scaled by the sensitivity multiplier.
func (c Classifier) Magnitude(current, previous Sample) float64 {
	dx := math.Abs(current.X - previous.X)
	dy := math.Abs(current.Y - previous.Y)
	dz := math.Abs(current.Z - previous.Z)
	return (dx + dy + dz) * c.Sensitivity
}

// Classify buckets a sample pair. Both thresholds are strict: a magnitude
// exactly equal to a threshold falls into the lower bucket.
func (c Classifier) Classify(current, previous Sample) Severity {
	magnitude := c.Magnitude(current, previous)
	switch {
	case magnitude > c.AccidentThreshold:
		return SeverityMajor
	case magnitude > c.JerkThreshold:
		return SeverityMinor
	default:
		return SeverityNone
	}
}
