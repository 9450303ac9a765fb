package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outcome is the terminal state of one account workflow.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAuthFailed
	OutcomePartialFailure
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAuthFailed:
		return "auth_failed"
	case OutcomePartialFailure:
		return "partial_failure"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of [Outcome.String].
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{OutcomeSuccess, OutcomeAuthFailed, OutcomePartialFailure, OutcomeError} {
		if o.String() == s {
			return o, nil
		}
	}
	return OutcomeError, fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Operation kinds recorded in [ItemResult].
const (
	OpInstall = "install"
	OpRemove  = "remove"
)

// ItemResult is the result of one remote addon operation.
type ItemResult struct {
	Op      string   `json:"op"`
	Addon   AddonRef `json:"addon"`
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
}

// Report is the terminal artifact of one account workflow.
type Report struct {
	Identifier     string         `json:"identifier"`
	Outcome        Outcome        `json:"outcome"`
	Reason         string         `json:"reason,omitempty"`
	DryRun         bool           `json:"dry_run,omitempty"`
	TokenRefreshed bool           `json:"token_refreshed"`
	Preserved      []AddonRef     `json:"preserved"`
	Kept           []AddonRef     `json:"kept"`
	Removed        []AddonRef     `json:"removed"`
	Added          []AddonRef     `json:"added"`
	Skipped        []SkippedAddon `json:"skipped,omitempty"`
	Items          []ItemResult   `json:"items,omitempty"`
	Started        time.Time      `json:"started"`
	Finished       time.Time      `json:"finished"`
}

// FailedItems returns the operations that did not succeed.
func (r *Report) FailedItems() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if !it.Success {
			out = append(out, it)
		}
	}
	return out
}

// Failed reports whether the account did not fully converge.
func (r *Report) Failed() bool {
	return r.Outcome != OutcomeSuccess
}

// Duration returns how long the workflow ran.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() || r.Started.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// RunSummary aggregates the reports of a run.
type RunSummary struct {
	ID       string    `json:"id"`
	Sequence int       `json:"sequence,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	DryRun   bool      `json:"dry_run"`
	Reports  []Report  `json:"reports"`
}

// Counts returns the number of accounts per outcome.
func (s *RunSummary) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, 4)
	for _, r := range s.Reports {
		counts[r.Outcome]++
	}
	return counts
}

// Succeeded returns the number of accounts that fully converged.
func (s *RunSummary) Succeeded() int {
	return s.Counts()[OutcomeSuccess]
}

// Failed returns the number of accounts with any non-success outcome.
func (s *RunSummary) Failed() int {
	return len(s.Reports) - s.Succeeded()
}
