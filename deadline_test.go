package uart

import (
	"testing"
	"time"
)

func TestDeadlineFor(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		timeout time.Duration
		want    time.Duration
	}{
		{0, 0},
		{time.Second, time.Second},
		{-1, forever},
		{forever, forever},
		{2 * forever, forever},
	}

	for _, tt := range tests {
		if got := deadlineFor(now, tt.timeout).Sub(now); got != tt.want {
			t.Errorf("deadlineFor(now, %v) = now+%v, want now+%v", tt.timeout, got, tt.want)
		}
	}
}

func TestRemaining(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline time.Time
		want     time.Duration
	}{
		{"past", now.Add(-time.Second), 0},
		{"now", now, 0},
		{"one second", now.Add(time.Second), time.Second},
		{"a year", now.Add(forever), forever},
		{"beyond a year", now.Add(2 * forever), forever},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := remaining(now, tt.deadline); got != tt.want {
				t.Errorf("remaining(now, %v) = %v, want %v", tt.deadline, got, tt.want)
			}
		})
	}
}

func TestEarliest(t *testing.T) {
	tests := []struct {
		cur, d, want time.Duration
	}{
		{-1, time.Second, time.Second},
		{time.Second, 2 * time.Second, time.Second},
		{2 * time.Second, 0, 0},
	}

	for _, tt := range tests {
		if got := earliest(tt.cur, tt.d); got != tt.want {
			t.Errorf("earliest(%v, %v) = %v, want %v", tt.cur, tt.d, got, tt.want)
		}
	}
}
