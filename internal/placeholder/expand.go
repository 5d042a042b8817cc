// Package placeholder expands host variables inside job-definition documents.
//
// Two forms are supported in string values:
//   - ${name}: replaced with the host variable of that name
//   - $(expr): a JavaScript expression evaluated with the host variables
//     bound to `vars`, e.g. $(vars.bizdate.replace(/-/g, ""))
//
// A backslash escapes either form. Evaluation is deterministic: Date and
// Math.random are removed from the JavaScript runtime. Each expression runs
// for at most the expander's timeout and is interrupted when the context
// passed to ExpandDocument is done.
package placeholder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds the evaluation of a single $(expr).
const DefaultTimeout = 5 * time.Second

// ErrTimeout is wrapped by errors from expressions that ran too long.
var ErrTimeout = errors.New("expression timed out")

// Expander expands placeholders using a fixed set of host variables.
type Expander struct {
	vars    map[string]string
	timeout time.Duration
	vm      *goja.Runtime
}

// New creates an Expander for vars. The JavaScript runtime is created lazily
// on the first $(expr).
func New(vars map[string]string) *Expander {
	if vars == nil {
		vars = map[string]string{}
	}
	return &Expander{vars: vars, timeout: DefaultTimeout}
}

// WithTimeout sets the per-expression evaluation bound and returns e.
func (e *Expander) WithTimeout(d time.Duration) *Expander {
	e.timeout = d
	return e
}

// ExpandDocument returns a copy of doc with every string value expanded.
// Map keys are not expanded. A running expression is interrupted when ctx
// is done.
func (e *Expander) ExpandDocument(ctx context.Context, doc map[string]any) (map[string]any, error) {
	out, err := e.expandValue(ctx, doc, "")
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func (e *Expander) expandValue(ctx context.Context, v any, path string) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			x, err := e.expandValue(ctx, val[k], joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			x, err := e.expandValue(ctx, item, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case string:
		s, err := e.expand(ctx, val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return s, nil
	default:
		return v, nil
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// Expand expands all placeholders in s.
func (e *Expander) Expand(s string) (string, error) {
	return e.expand(context.Background(), s)
}

func (e *Expander) expand(ctx context.Context, s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+2 < len(s) && s[i+1] == '$' && (s[i+2] == '{' || s[i+2] == '(') {
			b.WriteByte('$')
			i += 2
			continue
		}
		if c != '$' || i+1 >= len(s) {
			b.WriteByte(c)
			i++
			continue
		}
		switch s[i+1] {
		case '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated ${ at offset %d", i)
			}
			name := strings.TrimSpace(s[i+2 : i+2+end])
			val, ok := e.vars[name]
			if !ok {
				return "", fmt.Errorf("undefined variable %q", name)
			}
			b.WriteString(val)
			i += end + 3
		case '(':
			end := matchingParen(s, i+1)
			if end < 0 {
				return "", fmt.Errorf("unterminated $( at offset %d", i)
			}
			val, err := e.eval(ctx, s[i+2:end])
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i = end + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// matchingParen returns the index of the parenthesis closing the one at open,
// or -1.
func matchingParen(s string, open int) int {
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func (e *Expander) runtime() (*goja.Runtime, error) {
	if e.vm != nil {
		return e.vm, nil
	}
	vm := goja.New()
	vars := make(map[string]any, len(e.vars))
	for k, v := range e.vars {
		vars[k] = v
	}
	if err := vm.Set("vars", vars); err != nil {
		return nil, fmt.Errorf("set vars: %w", err)
	}
	if _, err := vm.RunString("delete this.Date; delete Math.random;"); err != nil {
		return nil, fmt.Errorf("sandbox runtime: %w", err)
	}
	e.vm = vm
	return vm, nil
}

func (e *Expander) eval(ctx context.Context, code string) (string, error) {
	vm, err := e.runtime()
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(code)
	if strings.HasPrefix(trimmed, "{") {
		trimmed = "(" + trimmed + ")"
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("expression $(%s) not evaluated: %w", code, err)
	}

	stopCtx := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	timer := time.AfterFunc(e.timeout, func() { vm.Interrupt(ErrTimeout) })
	val, err := vm.RunString(trimmed)
	timer.Stop()
	stopCtx()
	vm.ClearInterrupt()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return "", fmt.Errorf("expression $(%s) interrupted: %w", code, cause)
			}
		}
		return "", fmt.Errorf("expression error in $(%s): %w", code, err)
	}
	if goja.IsUndefined(val) || goja.IsNull(val) {
		return "", fmt.Errorf("expression $(%s) returned %s", code, val.String())
	}
	return toString(val.Export()), nil
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
