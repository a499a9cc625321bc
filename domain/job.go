package domain

// JobType enumerates background work dispatched through the driver.
type JobType string

const (
	JobSummarization       JobType = "summarization"
	JobRetentionEvaluation JobType = "retention_evaluation"
)

func ValidJobType(t string) bool {
	switch JobType(t) {
	case JobSummarization, JobRetentionEvaluation:
		return true
	}
	return false
}

// JobStatus is the worker-visible lifecycle of a job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// MaxJobAttempts is the terminal failure threshold. A job failing this many
// times is marked failed permanently and emitted to audit.
const MaxJobAttempts = 5

// Job is the persisted unit of background work under job:{id}.
type Job struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Tenant    string    `json:"tenant"`
	Agent     string    `json:"agent,omitempty"`
	Layer     Layer     `json:"layer,omitempty"`
	CreatedAt int64     `json:"created_at"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
}
