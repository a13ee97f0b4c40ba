package metrics

import (
	"testing"
	"time"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}

	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}

	// Verify start time is recent (within last second)
	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 100 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()

	// Verify duration is at least the sleep duration (allowing small overhead)
	if duration < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", duration, sleepDuration)
	}

	if duration > sleepDuration+time.Second {
		t.Errorf("Timer.Duration() = %v, want < %v", duration, sleepDuration+time.Second)
	}
}

// TestSetConnectionState tests that exactly one state gauge is set
func TestSetConnectionState(t *testing.T) {
	SetConnectionState("connected")
	SetConnectionState("reconnecting")
	// Last call wins; no panic on unknown label churn is all we assert
	// here, the gauge values are scrape-side concerns.
	SetConnectionState("idle")
}
