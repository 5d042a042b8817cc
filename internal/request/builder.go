// Package request builds submission requests from job definitions and typed
// task overrides. Building is pure: no network, no clock.
package request

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/me/remotetask/pkg/model"
)

// tokenNamespace seeds client request tokens. Changing it changes every
// token and so defeats deduplication of in-flight submissions.
var tokenNamespace = uuid.MustParse("6f1c3c0e-5b7a-4e53-9a52-2a4f3b1f8d10")

// Definition keys read from the job document. Everything else is opaque.
var (
	nameKeys        = []string{"PipelineName", "pipelineName", "name"}
	displayNameKeys = []string{"PipelineExecutionDisplayName", "displayName"}
	descriptionKeys = []string{"PipelineExecutionDescription", "description"}
	parameterKeys   = []string{"PipelineParameters", "parameters"}
)

// BuildSubmissionRequest merges the job-definition document doc with the
// typed overrides in p.
//
// The job name comes from the document and must match p.JobName when that is
// set. Display name and description fall back to the document, then to the
// job name. The concurrency limit comes from p.MaxConcurrentSteps, else from
// the document's ParallelismConfiguration; absent or below 1 is rejected.
func BuildSubmissionRequest(p model.SubmissionParameters, doc map[string]any) (model.SubmissionRequest, error) {
	name, err := firstString(doc, nameKeys)
	if err != nil {
		return model.SubmissionRequest{}, err
	}
	if name == "" {
		return model.SubmissionRequest{}, model.Errorf(model.KindInvalidDefinition, "definition does not name a job")
	}
	if p.JobName != "" && p.JobName != name {
		return model.SubmissionRequest{}, model.Errorf(model.KindInvalidDefinition,
			"declared job name %q does not match definition job name %q", p.JobName, name)
	}

	steps, err := concurrency(p, doc)
	if err != nil {
		return model.SubmissionRequest{}, err
	}

	displayName, err := firstString(doc, displayNameKeys)
	if err != nil {
		return model.SubmissionRequest{}, err
	}
	description, err := firstString(doc, descriptionKeys)
	if err != nil {
		return model.SubmissionRequest{}, err
	}

	params, err := parameters(doc)
	if err != nil {
		return model.SubmissionRequest{}, err
	}

	req := model.SubmissionRequest{
		JobName:            name,
		DisplayName:        pick(p.DisplayName, displayName, name),
		Description:        pick(p.Description, description, name),
		MaxConcurrentSteps: steps,
		Parameters:         params,
	}
	if p.AttemptID != "" {
		req.ClientToken = ClientToken(p.AttemptID, name)
	}
	return req, nil
}

// ClientToken derives the idempotency token for one attempt of one job.
func ClientToken(attemptID, jobName string) string {
	return uuid.NewSHA1(tokenNamespace, []byte(attemptID+"\x00"+jobName)).String()
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstString(doc map[string]any, keys []string) (string, error) {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", model.Errorf(model.KindInvalidDefinition, "%s must be a string, got %T", k, v)
		}
		return s, nil
	}
	return "", nil
}

func concurrency(p model.SubmissionParameters, doc map[string]any) (int, error) {
	if p.MaxConcurrentSteps != nil {
		n := *p.MaxConcurrentSteps
		if n < 1 || n > model.MaxConcurrentStepsLimit {
			return 0, model.Errorf(model.KindInvalidConfiguration,
				"maxConcurrentSteps must be between 1 and %d, got %d", model.MaxConcurrentStepsLimit, n)
		}
		return n, nil
	}

	pc, ok := doc["ParallelismConfiguration"].(map[string]any)
	if !ok {
		return 0, model.Errorf(model.KindInvalidConfiguration, "maxConcurrentSteps is required")
	}
	raw, ok := pc["MaxParallelExecutionSteps"]
	if !ok || raw == nil {
		return 0, model.Errorf(model.KindInvalidConfiguration, "maxConcurrentSteps is required")
	}
	n, err := toInt(raw)
	if err != nil {
		return 0, model.NewTaskError(model.KindInvalidConfiguration, "MaxParallelExecutionSteps", err)
	}
	if n < 1 || n > model.MaxConcurrentStepsLimit {
		return 0, model.Errorf(model.KindInvalidConfiguration,
			"MaxParallelExecutionSteps must be between 1 and %d, got %d", model.MaxConcurrentStepsLimit, n)
	}
	return n, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, fmt.Errorf("%d out of range", n)
		}
		return int(n), nil
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("%d out of range", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, fmt.Errorf("%v out of range", n)
		}
		return int(n), nil
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%s is not an integer in range", n)
		}
		return int(i), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func parameters(doc map[string]any) ([]model.JobParameter, error) {
	var raw any
	var key string
	for _, k := range parameterKeys {
		if v, ok := doc[k]; ok && v != nil {
			raw, key = v, k
			break
		}
	}
	if raw == nil {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, model.Errorf(model.KindInvalidDefinition, "%s must be a list, got %T", key, raw)
	}
	seen := make(map[string]bool, len(list))
	params := make([]model.JobParameter, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, model.Errorf(model.KindInvalidDefinition, "%s[%d] must be a mapping", key, i)
		}
		name, _ := firstString(m, []string{"Name", "name"})
		if name == "" {
			return nil, model.Errorf(model.KindInvalidDefinition, "%s[%d] has no name", key, i)
		}
		if seen[name] {
			return nil, model.Errorf(model.KindInvalidDefinition, "%s: duplicate parameter %q", key, name)
		}
		seen[name] = true
		params = append(params, model.JobParameter{Name: name, Value: scalar(m, "Value", "value")})
	}
	return params, nil
}

// scalar renders a parameter value as the string the remote service expects.
func scalar(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			return x
		case json.Number:
			return x.String()
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return fmt.Sprint(x)
		}
	}
	return ""
}
