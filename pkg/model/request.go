package model

// JobParameter is one named value passed through to the remote job.
type JobParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SubmissionRequest is the service-neutral request the gateway turns into a
// remote start call.
type SubmissionRequest struct {
	JobName            string         `json:"jobName"`
	DisplayName        string         `json:"displayName"`
	Description        string         `json:"description"`
	MaxConcurrentSteps int            `json:"maxConcurrentSteps"`
	Parameters         []JobParameter `json:"parameters,omitempty"`
	ClientToken        string         `json:"clientToken"`
}
