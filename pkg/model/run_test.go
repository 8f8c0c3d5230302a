package model

import "testing"

func TestRunState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    RunState
		terminal bool
	}{
		{RunStateRunning, false},
		{RunStateCompleted, true},
		{RunStateHalted, true},
		{RunStateCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("RunState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestCPUShare(t *testing.T) {
	reports := []TaskReport{
		{ID: 0, TicksUsed: 30},
		{ID: 1, TicksUsed: 10},
		{ID: 2, TicksUsed: 0},
	}
	share := CPUShare(reports)
	if share[0] != 0.75 {
		t.Errorf("share[0] = %v, want 0.75", share[0])
	}
	if share[1] != 0.25 {
		t.Errorf("share[1] = %v, want 0.25", share[1])
	}
	if share[2] != 0 {
		t.Errorf("share[2] = %v, want 0", share[2])
	}
}

func TestCPUShare_Empty(t *testing.T) {
	if got := CPUShare(nil); len(got) != 0 {
		t.Errorf("CPUShare(nil) = %v, want empty", got)
	}
}
