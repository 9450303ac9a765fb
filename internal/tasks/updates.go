package tasks

import (
	"fmt"

	"github.com/desertthunder/readdon/internal/models"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase      Phase  // Operation phase
	Identifier string // Account the update belongs to
	Step       int    // Current step number within phase
	Total      int    // Total steps in this phase
	Message    string // Human-readable message for display
	Data       any    // Optional phase-specific data (*models.ItemResult, models.Report)
}

// Operation phase enumeration
type Phase int

const (
	AccountStart Phase = iota
	Authenticate
	PlanAddons
	AddonOperation
	AccountDone
)

func (p Phase) String() string {
	switch p {
	case AccountStart:
		return "account_start"
	case Authenticate:
		return "authenticate"
	case PlanAddons:
		return "plan"
	case AddonOperation:
		return "addon_operation"
	case AccountDone:
		return "account_done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func accountStartUpdate(step, total int, identifier string) ProgressUpdate {
	return ProgressUpdate{
		Phase:      AccountStart,
		Identifier: identifier,
		Step:       step,
		Total:      total,
		Message:    fmt.Sprintf("[%d/%d] Starting %s...", step, total, identifier),
	}
}

func authenticateUpdate(identifier string) ProgressUpdate {
	return ProgressUpdate{
		Phase:      Authenticate,
		Identifier: identifier,
		Step:       1,
		Total:      1,
		Message:    fmt.Sprintf("Authenticating %s...", identifier),
	}
}

func planUpdate(identifier string) ProgressUpdate {
	return ProgressUpdate{
		Phase:      PlanAddons,
		Identifier: identifier,
		Step:       1,
		Total:      1,
		Message:    fmt.Sprintf("Reading addon collection for %s...", identifier),
	}
}

func addonOperationUpdate(step, total int, identifier string, item models.ItemResult) ProgressUpdate {
	mark := "✓"
	if !item.Success {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:      AddonOperation,
		Identifier: identifier,
		Step:       step,
		Total:      total,
		Message:    fmt.Sprintf("[%d/%d] %s %s %s", step, total, mark, item.Op, item.Addon),
		Data:       &item,
	}
}

func accountDoneUpdate(step, total int, report models.Report) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s: %s", step, total, report.Identifier, report.Outcome)
	if report.Reason != "" {
		msg += " (" + report.Reason + ")"
	}
	return ProgressUpdate{
		Phase:      AccountDone,
		Identifier: report.Identifier,
		Step:       step,
		Total:      total,
		Message:    msg,
		Data:       report,
	}
}
