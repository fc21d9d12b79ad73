package model

import "time"

// Stage is a state of the ingestion state machine.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageAcquiring  Stage = "acquiring"
	StageAssembling Stage = "assembling"
	StageUploading  Stage = "uploading"
	StageAnalyzing  Stage = "analyzing"
	StagePersisting Stage = "persisting"
	StageSucceeded  Stage = "succeeded"
	StageCancelled  Stage = "cancelled"
	StageFailed     Stage = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s Stage) Terminal() bool {
	switch s {
	case StageSucceeded, StageCancelled, StageFailed:
		return true
	}
	return false
}

// RunStatus is a snapshot of one pipeline run as reported to callers.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	OwnerID   string    `json:"-"`
	Stage     Stage     `json:"stage"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	FailedAt  Stage     `json:"failed_at,omitempty"`
	Error     string    `json:"error,omitempty"`
	FileLink  string    `json:"fileLink,omitempty"`
	RecordID  int64     `json:"record_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	Report *StructuredReport `json:"report,omitempty"`
}
