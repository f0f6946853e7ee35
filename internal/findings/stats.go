package findings

import (
	"time"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// Stats are the counters shown above the results table
type Stats struct {
	Total  int `json:"total" yaml:"total"`
	High   int `json:"alto" yaml:"alto"`
	Medium int `json:"medio" yaml:"medio"`
	Low    int `json:"baixo" yaml:"baixo"`
}

func Summarize(findings []model.Finding) Stats {
	s := Stats{Total: len(findings)}
	for _, f := range findings {
		switch f.RiskLevel {
		case model.RiskHigh:
			s.High++
		case model.RiskMedium:
			s.Medium++
		case model.RiskLow:
			s.Low++
		}
	}
	return s
}

// JobStats are the counters shown above the jobs history
type JobStats struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}

func SummarizeJobs(jobs []model.ExecutionJob) JobStats {
	s := JobStats{Total: len(jobs)}
	for _, j := range jobs {
		switch j.Status {
		case model.JobPending:
			s.Pending++
		case model.JobRunning:
			s.Running++
		case model.JobCompleted:
			s.Completed++
		case model.JobFailed:
			s.Failed++
		}
	}
	return s
}

// JobDuration renders a job's run time, or "-" when it never started.
func JobDuration(j model.ExecutionJob, now time.Time) string {
	d, ok := j.Duration(now)
	if !ok {
		return "-"
	}
	return model.FormatDuration(d)
}
