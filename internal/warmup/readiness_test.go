package warmup

import (
	"sync"
	"testing"
	"time"
)

func TestReadinessStateInitial(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(10 * time.Minute)

	if state.IsReady() {
		t.Error("Expected IsReady() to return false initially")
	}
	if state.WarmupCompleted() {
		t.Error("Expected WarmupCompleted() to return false initially")
	}

	status := state.Status()
	if status.Ready {
		t.Error("Expected status.Ready to be false initially")
	}
	if status.Reason != "department warm-up in progress" {
		t.Errorf("Unexpected reason %q", status.Reason)
	}
	if status.TimeoutSeconds != 600 {
		t.Errorf("Expected TimeoutSeconds=600, got %d", status.TimeoutSeconds)
	}
}

func TestReadinessStateMarkReady(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(10 * time.Minute)
	state.MarkReady()
	state.MarkReady()

	if !state.IsReady() || !state.WarmupCompleted() {
		t.Error("Expected ready and completed after MarkReady()")
	}
	if reason := state.Status().Reason; reason != "" {
		t.Errorf("Expected empty reason after MarkReady(), got %q", reason)
	}
}

func TestReadinessStateGracePeriod(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(50 * time.Millisecond)
	if state.IsReady() {
		t.Error("Expected IsReady() to return false before the grace period")
	}

	time.Sleep(60 * time.Millisecond)

	if !state.IsReady() {
		t.Error("Expected IsReady() to return true after the grace period")
	}
	if state.WarmupCompleted() {
		t.Error("Expected WarmupCompleted() to stay false")
	}
	if reason := state.Status().Reason; reason != "grace period elapsed (warm-up still running)" {
		t.Errorf("Unexpected reason %q", reason)
	}
}

func TestReadinessStateConcurrent(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(10 * time.Minute)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = state.IsReady()
				_ = state.Status()
			}
		}()
		go func() {
			defer wg.Done()
			state.MarkReady()
		}()
	}
	wg.Wait()

	if !state.IsReady() {
		t.Error("Expected IsReady() to return true after concurrent MarkReady calls")
	}
}
