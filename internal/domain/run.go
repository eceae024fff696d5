package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of one execution.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

func ValidRunStatus(s string) bool {
	switch RunStatus(s) {
	case RunStatusSuccess, RunStatusError:
		return true
	}
	return false
}

// NextBotStatus is the status a bot moves to once a run with this outcome is recorded.
func (s RunStatus) NextBotStatus() BotStatus {
	switch s {
	case RunStatusSuccess:
		return BotStatusIdle
	case RunStatusError:
		return BotStatusError
	}
	return BotStatusError
}

// Run is immutable once appended to the ledger.
type Run struct {
	ID           uuid.UUID `json:"id"`
	BotID        uuid.UUID `json:"bot_id"`
	RunTime      time.Time `json:"run_time"`
	Processed    int       `json:"processed"`
	Posted       int       `json:"posted"`
	Duration     float64   `json:"duration"`
	Status       RunStatus `json:"status"`
	ErrorMessage *string   `json:"error_message"`
}

// RunResult is what the external executor reports after a run finishes.
type RunResult struct {
	Processed    int
	Posted       int
	Duration     float64
	Outcome      RunStatus
	ErrorMessage string
}

func (r RunResult) Validate() error {
	var problems []string
	if r.Processed < 0 {
		problems = append(problems, "processed must not be negative")
	}
	if r.Posted < 0 {
		problems = append(problems, "posted must not be negative")
	}
	if r.Posted > r.Processed {
		problems = append(problems, "posted must not exceed processed")
	}
	switch {
	case math.IsNaN(r.Duration) || math.IsInf(r.Duration, 0):
		problems = append(problems, "duration must be a finite number")
	case r.Duration < 0:
		problems = append(problems, "duration must not be negative")
	}
	if !ValidRunStatus(string(r.Outcome)) {
		problems = append(problems, "status must be one of success, error")
	}
	if len(problems) > 0 {
		return NewValidationError(problems...)
	}
	return nil
}

// NewRun builds the ledger record for a validated result.
func (r RunResult) NewRun(botID uuid.UUID, at time.Time) *Run {
	run := &Run{
		BotID:     botID,
		RunTime:   at,
		Processed: r.Processed,
		Posted:    r.Posted,
		Duration:  r.Duration,
		Status:    r.Outcome,
	}
	if r.Outcome == RunStatusError {
		if msg := strings.TrimSpace(r.ErrorMessage); msg != "" {
			run.ErrorMessage = &msg
		}
	}
	return run
}

// RunAggregate holds per-bot run counts.
type RunAggregate struct {
	BotID          uuid.UUID
	TotalRuns      int
	SuccessfulRuns int
}
