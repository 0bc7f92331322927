package warmup

import (
	"sync/atomic"
	"time"
)

// ReadinessState tracks whether the startup department warm-up finished.
// The service also reports ready once the grace period has elapsed so a slow
// upstream cannot keep it out of rotation forever; department lookups then
// answer ErrDepartmentsNotReady until the crawl lands.
type ReadinessState struct {
	ready     atomic.Bool
	startTime time.Time
	timeout   time.Duration
}

// ReadinessStatus is the /readyz body.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// NewReadinessState creates a state that is not ready until MarkReady is
// called or timeout elapses.
func NewReadinessState(timeout time.Duration) *ReadinessState {
	return &ReadinessState{
		startTime: time.Now(),
		timeout:   timeout,
	}
}

// IsReady reports whether the service should receive traffic.
func (s *ReadinessState) IsReady() bool {
	return s.ready.Load() || time.Since(s.startTime) >= s.timeout
}

// MarkReady records that the warm-up completed.
func (s *ReadinessState) MarkReady() {
	s.ready.Store(true)
}

// Status returns the current readiness for the probe endpoint.
func (s *ReadinessState) Status() ReadinessStatus {
	isReady := s.IsReady()
	status := ReadinessStatus{
		Ready:          isReady,
		ElapsedSeconds: int(time.Since(s.startTime).Seconds()),
		TimeoutSeconds: int(s.timeout.Seconds()),
	}
	switch {
	case !isReady:
		status.Reason = "department warm-up in progress"
	case !s.ready.Load():
		status.Reason = "grace period elapsed (warm-up still running)"
	}
	return status
}

// WarmupCompleted reports whether MarkReady was called. Unlike IsReady it
// ignores the grace period.
func (s *ReadinessState) WarmupCompleted() bool {
	return s.ready.Load()
}
