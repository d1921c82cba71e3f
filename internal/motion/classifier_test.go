package motion

import (
	"math"
	"testing"
)

func TestClassifyBucketsSamplePairs(t *testing.T) {
	c := NewClassifier(0, 0, 0) // defaults: 3, 7, 1.0

	tests := []struct {
		name     string
		current  Sample
		previous Sample
		want     Severity
	}{
		{
			name:     "crash profile",
			current:  Sample{X: 25, Y: 15, Z: 20},
			previous: Sample{X: 5, Y: 3, Z: 2},
			want:     SeverityMajor,
		},
		{
			name:     "steady cruise",
			current:  Sample{X: 1, Y: 1, Z: 1},
			previous: Sample{X: 1, Y: 1, Z: 1},
			want:     SeverityNone,
		},
		{
			name:     "pothole",
			current:  Sample{X: 3, Y: 2, Z: 1},
			previous: Sample{X: 1, Y: 1, Z: 0},
			want:     SeverityMinor,
		},
		{
			name:     "exactly at jerk threshold stays none",
			current:  Sample{X: 3, Y: 0, Z: 0},
			previous: Sample{X: 0, Y: 0, Z: 0},
			want:     SeverityNone,
		},
		{
			name:     "exactly at accident threshold stays minor",
			current:  Sample{X: 7, Y: 0, Z: 0},
			previous: Sample{X: 0, Y: 0, Z: 0},
			want:     SeverityMinor,
		},
		{
			name:     "direction does not matter",
			current:  Sample{X: -10, Y: 0, Z: 0},
			previous: Sample{X: 0, Y: 0, Z: 0},
			want:     SeverityMajor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.current, tt.previous)
			if got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.current, tt.previous, got, tt.want)
			}
		})
	}
}

func TestMagnitudeIsScaledSumOfAxisDeltas(t *testing.T) {
	c := NewClassifier(3, 7, 1.0)
	got := c.Magnitude(Sample{X: 25, Y: 15, Z: 20}, Sample{X: 5, Y: 3, Z: 2})
	if math.Abs(got-50) > 1e-9 {
		t.Fatalf("Magnitude = %v, want 50", got)
	}
}

func TestSensitivityScalesClassification(t *testing.T) {
	// Magnitude 4 is minor at sensitivity 1 and major at sensitivity 2.
	current := Sample{X: 4, Y: 0, Z: 0}
	previous := Sample{}

	if got := NewClassifier(3, 7, 1.0).Classify(current, previous); got != SeverityMinor {
		t.Errorf("sensitivity 1.0: got %v, want minor", got)
	}
	if got := NewClassifier(3, 7, 2.0).Classify(current, previous); got != SeverityMajor {
		t.Errorf("sensitivity 2.0: got %v, want major", got)
	}
}

func TestNewClassifierDefaults(t *testing.T) {
	c := NewClassifier(0, 0, 0)
	if c.JerkThreshold != DefaultJerkThreshold {
		t.Errorf("JerkThreshold = %v, want %v", c.JerkThreshold, DefaultJerkThreshold)
	}
	if c.AccidentThreshold != DefaultAccidentThreshold {
		t.Errorf("AccidentThreshold = %v, want %v", c.AccidentThreshold, DefaultAccidentThreshold)
	}
	if c.Sensitivity != 1.0 {
		t.Errorf("Sensitivity = %v, want 1.0", c.Sensitivity)
	}
}
