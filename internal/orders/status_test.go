package orders

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusCompleted, true},
		{StatusCreated, StatusReconciling, true},
		{StatusReconciling, StatusCompleted, true},
		{StatusReconciling, StatusFailed, true},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusCompleted, StatusCreated, false},
		{StatusCreated, StatusFailed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
