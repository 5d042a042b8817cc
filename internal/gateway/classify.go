package gateway

import (
	"strings"

	"github.com/me/remotetask/pkg/model"
)

// Vocabulary maps a service's status words onto the three status classes.
// Words in neither list, including ones the service adds later, classify as
// failed so polling never waits on an unknown terminal word.
type Vocabulary struct {
	Running   []string
	Succeeded []string
}

// SageMakerVocabulary covers PipelineExecutionStatus. Stopping is still in
// flight; Stopped and Failed fall through to failure.
var SageMakerVocabulary = Vocabulary{
	Running:   []string{"Executing", "Stopping"},
	Succeeded: []string{"Succeeded"},
}

// AppServiceVocabulary covers AppService task states.
var AppServiceVocabulary = Vocabulary{
	Running:   []string{"queued", "pending", "in-progress"},
	Succeeded: []string{"completed"},
}

// Classify maps a raw status onto an ExecutionStatus. Matching ignores case.
func (v Vocabulary) Classify(raw, reason string) model.ExecutionStatus {
	st := model.ExecutionStatus{Raw: raw, Class: model.StatusClassFailed, Reason: reason}
	switch {
	case contains(v.Running, raw):
		st.Class = model.StatusClassRunning
	case contains(v.Succeeded, raw):
		st.Class = model.StatusClassSucceeded
	}
	return st
}

func contains(words []string, raw string) bool {
	for _, w := range words {
		if strings.EqualFold(w, raw) {
			return true
		}
	}
	return false
}
