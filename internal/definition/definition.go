// Package definition loads and decodes job-definition documents.
package definition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/remotetask/pkg/model"
)

// Fetcher reads an object from remote storage.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Loader reads the raw job definition named by task parameters.
type Loader struct {
	// Fetcher serves s3:// URIs. Nil disables them.
	Fetcher Fetcher
}

// Load returns the raw definition text: the inline definition if present,
// otherwise the contents of DefinitionURI.
func (l *Loader) Load(ctx context.Context, p model.SubmissionParameters) ([]byte, error) {
	if p.Definition != "" {
		return []byte(p.Definition), nil
	}

	u, err := url.Parse(p.DefinitionURI)
	if err != nil {
		return nil, model.NewTaskError(model.KindInvalidDefinition, "parse definitionUri", err)
	}
	switch u.Scheme {
	case "file", "":
		path := u.Path
		if u.Scheme == "" {
			path = p.DefinitionURI
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, model.NewTaskError(model.KindInvalidDefinition, "read definition", err)
		}
		return data, nil
	case "s3":
		if l.Fetcher == nil {
			return nil, model.Errorf(model.KindInvalidDefinition, "s3 definitions are not enabled")
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, model.Errorf(model.KindInvalidDefinition, "malformed s3 uri %q", p.DefinitionURI)
		}
		data, err := l.Fetcher.Fetch(ctx, u.Host, key)
		if err != nil {
			return nil, model.NewTaskError(model.KindInvalidDefinition, "fetch "+p.DefinitionURI, err)
		}
		return data, nil
	default:
		return nil, model.Errorf(model.KindInvalidDefinition, "unsupported definitionUri scheme %q", u.Scheme)
	}
}

// Decode parses a definition document. JSON objects are decoded with
// encoding/json; anything else is treated as YAML.
func Decode(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, model.Errorf(model.KindInvalidDefinition, "definition is empty")
	}

	var doc map[string]any
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, model.NewTaskError(model.KindInvalidDefinition, "decode json definition", err)
		}
		return doc, nil
	}

	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, model.NewTaskError(model.KindInvalidDefinition, "decode yaml definition", err)
	}
	if doc == nil {
		return nil, model.Errorf(model.KindInvalidDefinition, "definition is not a mapping")
	}
	return doc, nil
}

// Describe summarises a decoded definition for logs.
func Describe(doc map[string]any) string {
	name, _ := doc["PipelineName"].(string)
	return fmt.Sprintf("%s (%d top-level keys)", name, len(doc))
}
