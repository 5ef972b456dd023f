// internal/syncer/report.go
package syncer

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus is the declared outcome of one pipeline stage.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageSkipped StageStatus = "skipped"
	StageFailed  StageStatus = "failed"
)

// StageResult records what one stage did to one target.
type StageResult struct {
	Stage  string      `json:"stage"`
	Target string      `json:"target,omitempty"`
	Status StageStatus `json:"status"`
	Count  int         `json:"count"`
	Reason string      `json:"reason,omitempty"`
}

// RunReport aggregates the per-stage results of one full sync run, making
// continue-on-failure an explicit policy instead of scattered logging.
type RunReport struct {
	RunID         uuid.UUID     `json:"run_id"`
	IntegrationID string        `json:"integration_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Stages        []StageResult `json:"stages"`
}

func (r *RunReport) add(stage, target string, status StageStatus, count int, reason string) {
	r.Stages = append(r.Stages, StageResult{
		Stage:  stage,
		Target: target,
		Status: status,
		Count:  count,
		Reason: reason,
	})
}

// Failed returns the stages that did not complete.
func (r *RunReport) Failed() []StageResult {
	var failed []StageResult
	for _, st := range r.Stages {
		if st.Status == StageFailed {
			failed = append(failed, st)
		}
	}
	return failed
}
