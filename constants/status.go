package constants

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning JobStatus = "RUNNING" // in progress
	JobStatusOK      JobStatus = "OK"      // oracle returned at least one field
	JobStatusEmpty   JobStatus = "EMPTY"   // processed, nothing evidenced in the excerpt
	JobStatusFailed  JobStatus = "FAILED"  // acquisition, decode or oracle failure
)

// JobStatuses lists every value accepted by the status column.
var JobStatuses = []string{
	string(JobStatusRunning),
	string(JobStatusOK),
	string(JobStatusEmpty),
	string(JobStatusFailed),
}
