package model

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an execution job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (s JobStatus) stage() int {
	switch s {
	case JobPending:
		return 0
	case JobRunning:
		return 1
	case JobCompleted, JobFailed:
		return 2
	}
	return -1
}

// CanTransition reports whether a job may move from s to next.
// pending -> running -> {completed|failed}; staying put is allowed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return true
	}
	from, to := s.stage(), next.stage()
	if from < 0 || to < 0 || s.Terminal() {
		return false
	}
	return to > from
}

// ExecutionJob is one analysis run as reported by the backend
type ExecutionJob struct {
	ID           int64      `json:"id" yaml:"id"`
	Status       JobStatus  `json:"status" yaml:"status"`
	TipoGatilho  string     `json:"tipo_gatilho" yaml:"tipo_gatilho"` // trigger type, e.g. "manual"
	IniciadoEm   *time.Time `json:"iniciado_em,omitempty" yaml:"iniciado_em,omitempty"`
	FinalizadoEm *time.Time `json:"finalizado_em,omitempty" yaml:"finalizado_em,omitempty"`
	Resultado    *string    `json:"resultado,omitempty" yaml:"resultado,omitempty"`
}

// Duration is the elapsed run time. Running jobs are measured against now.
// ok is false when the job has not started.
func (j ExecutionJob) Duration(now time.Time) (d time.Duration, ok bool) {
	if j.IniciadoEm == nil {
		return 0, false
	}
	end := now
	if j.FinalizadoEm != nil {
		end = *j.FinalizadoEm
	}
	if end.Before(*j.IniciadoEm) {
		return 0, true
	}
	return end.Sub(*j.IniciadoEm), true
}

// FormatDuration renders d as "Xm Ys".
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// AnalysisPayload is the request body for one analysis run. It is built
// fresh from the current selection and never changed after submission.
type AnalysisPayload struct {
	Entities     []string `json:"entities" yaml:"entities"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
	StartDate    string   `json:"start_date" yaml:"start_date"`
	EndDate      string   `json:"end_date" yaml:"end_date"`
	ConnectionID int64    `json:"connection_id" yaml:"connection_id"`
}
