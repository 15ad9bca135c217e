package jobs

const (
	// KeyPrefixStatus is the prefix for job record keys.
	KeyPrefixStatus = "jobs:status:"
	// KeyPrefixResult is the prefix for detached result payload keys.
	KeyPrefixResult = "jobs:result:"
	// KeyPendingList is the list of job ids awaiting a worker.
	KeyPendingList = "jobs:pending"
)

// StatusKey returns the Redis key for a job record by id.
func StatusKey(jobID string) string {
	return KeyPrefixStatus + jobID
}

// ResultKey returns the Redis key for a job's detached result payload.
func ResultKey(jobID string) string {
	return KeyPrefixResult + jobID
}
