package memory

import "time"

// JobStatus is the lifecycle state of an extraction job.
// Transitions: pending -> processing -> {completed, failed}. A job may be
// created directly in processing when it is dispatched immediately.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// InFlight reports whether the job still occupies its (owner, entry) slot.
// At most one in-flight job per (owner, sourceEntryId) may exist.
func (s JobStatus) InFlight() bool {
	return s == JobPending || s == JobProcessing
}

// Terminal reports whether the job has finished, successfully or not.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Candidate is a memory proposed by the extraction call before it is
// persisted. Confidence and Importance are nil when the proposer left them
// unset and defaults should apply.
type Candidate struct {
	Type       Type     `json:"memory_type"`
	Category   Category `json:"category,omitempty"`
	Content    string   `json:"content"`
	Confidence *float64 `json:"confidence,omitempty"`
	Importance *int     `json:"importance,omitempty"`
}

// ExtractionJob is the asynchronous unit of work converting one journal
// entry into zero or more memories.
type ExtractionJob struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	SourceEntryID string    `json:"source_entry_id"`
	Status        JobStatus `json:"status"`

	// Extracted snapshots the proposer output on success, kept for audit.
	Extracted []Candidate `json:"extracted_memories,omitempty"`

	// Notes carries the error text for failed jobs.
	Notes string `json:"notes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Clone returns a deep copy of the job.
func (j *ExtractionJob) Clone() *ExtractionJob {
	c := *j
	if j.Extracted != nil {
		c.Extracted = make([]Candidate, len(j.Extracted))
		for i, cand := range j.Extracted {
			c.Extracted[i] = cand
			if cand.Confidence != nil {
				v := *cand.Confidence
				c.Extracted[i].Confidence = &v
			}
			if cand.Importance != nil {
				v := *cand.Importance
				c.Extracted[i].Importance = &v
			}
		}
	}
	if j.ProcessedAt != nil {
		t := *j.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}
