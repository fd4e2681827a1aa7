package scheduler

import (
	"context"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron expression, seconds field first
	// e.g. "0 30 8 * * 1-5" (평일 08:30), "@daily"
	Schedule() string
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// maxHistory 잡별 보관 결과 수
const maxHistory = 100

// JobHistory keeps the most recent results of one job plus counters that
// survive trimming.
type JobHistory struct {
	Results []JobResult

	total       int
	failures    int
	streak      int // 연속 실패 횟수
	lastSuccess *JobResult
	lastFailure *JobResult
}

// AddResult records a result and trims the window to maxHistory
func (h *JobHistory) AddResult(result JobResult) {
	h.total++
	if result.Success {
		h.streak = 0
		r := result
		h.lastSuccess = &r
	} else {
		h.failures++
		h.streak++
		r := result
		h.lastFailure = &r
	}

	h.Results = append(h.Results, result)
	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

// GetLatestResults returns up to n of the newest results, oldest first
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	out := make([]JobResult, n)
	copy(out, h.Results[len(h.Results)-n:])
	return out
}

// Total / Failures count every run ever recorded, not just the window
func (h *JobHistory) Total() int    { return h.total }
func (h *JobHistory) Failures() int { return h.failures }

// ConsecutiveFailures 마지막 성공 이후 실패 횟수
func (h *JobHistory) ConsecutiveFailures() int { return h.streak }

// LastSuccess returns the newest successful run, if any
func (h *JobHistory) LastSuccess() (JobResult, bool) {
	if h.lastSuccess == nil {
		return JobResult{}, false
	}
	return *h.lastSuccess, true
}

// LastFailure returns the newest failed run, if any
func (h *JobHistory) LastFailure() (JobResult, bool) {
	if h.lastFailure == nil {
		return JobResult{}, false
	}
	return *h.lastFailure, true
}

// GetSuccessRate returns the lifetime success rate (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	if h.total == 0 {
		return 0.0
	}
	return float64(h.total-h.failures) / float64(h.total)
}
