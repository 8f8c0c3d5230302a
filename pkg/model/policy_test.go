package model

import "testing"

func TestPolicy_Valid(t *testing.T) {
	tests := []struct {
		policy Policy
		valid  bool
	}{
		{PolicyPeriodicCatchup, true},
		{PolicyPeriodicSkip, true},
		{PolicyOpportunistic, true},
		{PolicyEventDriven, true},
		{Policy(""), false},
		{Policy("ROUND_ROBIN"), false},
	}
	for _, tt := range tests {
		if got := tt.policy.Valid(); got != tt.valid {
			t.Errorf("Policy(%q).Valid() = %v, want %v", tt.policy, got, tt.valid)
		}
	}
}

func TestPolicy_IsPeriodic(t *testing.T) {
	if !PolicyPeriodicCatchup.IsPeriodic() || !PolicyPeriodicSkip.IsPeriodic() {
		t.Error("periodic policies should report IsPeriodic")
	}
	if PolicyOpportunistic.IsPeriodic() || PolicyEventDriven.IsPeriodic() {
		t.Error("non-periodic policies should not report IsPeriodic")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"PERIODIC_CATCHUP", PolicyPeriodicCatchup, false},
		{"skip", PolicyPeriodicSkip, false},
		{" opportunistic ", PolicyOpportunistic, false},
		{"EVENT", PolicyEventDriven, false},
		{"fifo", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTaskID_String(t *testing.T) {
	if got := TaskID(3).String(); got != "3" {
		t.Errorf("TaskID(3).String() = %q, want %q", got, "3")
	}
	if got := NoTask.String(); got != "-" {
		t.Errorf("NoTask.String() = %q, want %q", got, "-")
	}
}
