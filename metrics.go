package uart

import (
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Metrics tracks what the engine has done since it was created. The
// counters may be read from any goroutine.
type Metrics struct {
	Opens         atomic.Int64 // Successful opens
	OpenFailures  atomic.Int64 // Failed opens
	BytesWritten  atomic.Int64
	BytesRead     atomic.Int64
	WriteTimeouts atomic.Int64 // Writes completed with eagain
	ReadTimeouts  atomic.Int64 // Passive reads completed empty after waiting
	Cancellations atomic.Int64 // Operations completed with ecanceled
	ErrorCloses   atomic.Int64 // Ports closed because of an I/O error
	Notifications atomic.Int64 // Unsolicited messages queued for the host
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Opens         int64
	OpenFailures  int64
	BytesWritten  int64
	BytesRead     int64
	WriteTimeouts int64
	ReadTimeouts  int64
	Cancellations int64
	ErrorCloses   int64
	Notifications int64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Opens:         m.Opens.Load(),
		OpenFailures:  m.OpenFailures.Load(),
		BytesWritten:  m.BytesWritten.Load(),
		BytesRead:     m.BytesRead.Load(),
		WriteTimeouts: m.WriteTimeouts.Load(),
		ReadTimeouts:  m.ReadTimeouts.Load(),
		Cancellations: m.Cancellations.Load(),
		ErrorCloses:   m.ErrorCloses.Load(),
		Notifications: m.Notifications.Load(),
	}
}

// MarshalZerologObject lets a snapshot be logged with Event.Object.
func (s MetricsSnapshot) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("opens", s.Opens).
		Int64("open_failures", s.OpenFailures).
		Int64("bytes_written", s.BytesWritten).
		Int64("bytes_read", s.BytesRead).
		Int64("write_timeouts", s.WriteTimeouts).
		Int64("read_timeouts", s.ReadTimeouts).
		Int64("cancellations", s.Cancellations).
		Int64("error_closes", s.ErrorCloses).
		Int64("notifications", s.Notifications)
}
