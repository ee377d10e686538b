// internal/provision/status_test.go
//
// Transition-table tests for the provisioning state machine.

package provision

import "testing"

func TestLegalTransitions(t *testing.T) {
	legal := []struct {
		from, to Status
	}{
		{StatusPending, StatusInProgress},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusFailed},
		{StatusFailed, StatusPending}, // operator reset
	}
	for _, tc := range legal {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("%s → %s should be legal", tc.from, tc.to)
		}
	}
}

func TestIllegalTransitions(t *testing.T) {
	illegal := []struct {
		from, to Status
	}{
		{StatusPending, StatusCompleted},   // must pass through in-progress
		{StatusCompleted, StatusPending},   // completed is terminal
		{StatusCompleted, StatusFailed},    //
		{StatusFailed, StatusInProgress},   // retry goes through pending
		{StatusFailed, StatusCompleted},    //
		{StatusInProgress, StatusPending},  // no backwards edge
	}
	for _, tc := range illegal {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("%s → %s should be illegal", tc.from, tc.to)
		}
	}
}

func TestServableOnlyWhenCompleted(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusFailed} {
		if s.Servable() {
			t.Errorf("%s must not be servable", s)
		}
	}
	if !StatusCompleted.Servable() {
		t.Error("completed must be servable")
	}
}

func TestInFlight(t *testing.T) {
	if !StatusPending.InFlight() || !StatusInProgress.InFlight() {
		t.Error("pending and in-progress are in flight")
	}
	if StatusCompleted.InFlight() || StatusFailed.InFlight() {
		t.Error("completed and failed are not in flight")
	}
	if Status("bogus").Valid() {
		t.Error("bogus must not be valid")
	}
}
