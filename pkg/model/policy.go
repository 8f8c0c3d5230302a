package model

import (
	"fmt"
	"strings"
)

// Policy is the scheduling policy of a task.
type Policy string

const (
	PolicyPeriodicCatchup Policy = "PERIODIC_CATCHUP"
	PolicyPeriodicSkip    Policy = "PERIODIC_SKIP"
	PolicyOpportunistic   Policy = "OPPORTUNISTIC"
	PolicyEventDriven     Policy = "EVENT_DRIVEN"
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	return string(p)
}

// Valid reports whether p is one of the known policies.
func (p Policy) Valid() bool {
	switch p {
	case PolicyPeriodicCatchup, PolicyPeriodicSkip, PolicyOpportunistic, PolicyEventDriven:
		return true
	}
	return false
}

// IsPeriodic returns true for the two policies driven by a period countdown.
func (p Policy) IsPeriodic() bool {
	return p == PolicyPeriodicCatchup || p == PolicyPeriodicSkip
}

// Short is the compact label used in tables and charts.
func (p Policy) Short() string {
	switch p {
	case PolicyPeriodicCatchup:
		return "CATCHUP"
	case PolicyPeriodicSkip:
		return "SKIP"
	case PolicyOpportunistic:
		return "OPP"
	case PolicyEventDriven:
		return "EVENT"
	}
	return "?"
}

// ParsePolicy accepts the canonical names and the short labels, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PERIODIC_CATCHUP", "CATCHUP":
		return PolicyPeriodicCatchup, nil
	case "PERIODIC_SKIP", "SKIP":
		return PolicyPeriodicSkip, nil
	case "OPPORTUNISTIC", "OPP":
		return PolicyOpportunistic, nil
	case "EVENT_DRIVEN", "EVENT":
		return PolicyEventDriven, nil
	}
	return "", fmt.Errorf("unknown scheduling policy %q", s)
}

// TaskID is the index of a task in the task table.
type TaskID uint8

// NoTask is the sentinel for "no task": an unlocked mutex owner or a failed registration.
const NoTask TaskID = 0xFF

// String renders the id, or "-" for NoTask.
func (id TaskID) String() string {
	if id == NoTask {
		return "-"
	}
	return fmt.Sprintf("%d", uint8(id))
}
