// Package diag defines the structured, serializable error type produced
// by analysis and compilation. Errors carry a closed code taxonomy, a
// JSON-pointer path locating the offending node, and an optional
// edit-distance-based name suggestion.
package diag

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Code identifies an error kind. The set is closed.
type Code string

// Error codes.
const (
	SchemaInvalid       Code = "SCHEMA_INVALID"
	UndefinedState      Code = "UNDEFINED_STATE"
	UndefinedAction     Code = "UNDEFINED_ACTION"
	DuplicateAction     Code = "DUPLICATE_ACTION"
	UnsupportedVersion  Code = "UNSUPPORTED_VERSION"
	ComponentNotFound   Code = "COMPONENT_NOT_FOUND"
	ComponentPropMissed Code = "COMPONENT_PROP_MISSING"
	ComponentCycle      Code = "COMPONENT_CYCLE"
	ComponentPropType   Code = "COMPONENT_PROP_TYPE"
	ParamUndefined      Code = "PARAM_UNDEFINED"
	InvalidDataSource   Code = "INVALID_DATA_SOURCE"
	UndefinedDataSource Code = "UNDEFINED_DATA_SOURCE"
	UndefinedData       Code = "UNDEFINED_DATA"
	DataNotDefined      Code = "DATA_NOT_DEFINED"
	VarUndefined        Code = "VAR_UNDEFINED"
)

// Severity indicates the importance of a diagnostic.
type Severity string

// Severity levels.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Context carries extra metadata attached to an error, currently the
// declared names that were available at the error site.
type Context struct {
	AvailableNames []string `json:"availableNames,omitempty"`
}

// Error is one analysis or compilation finding. It is a value type
// accumulated in lists; analysis never throws it.
type Error struct {
	Code       Code     `json:"code"`
	Message    string   `json:"message"`
	Path       string   `json:"path"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion,omitempty"`
	Expected   string   `json:"expected,omitempty"`
	Actual     string   `json:"actual,omitempty"`
	Context    *Context `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
}

// ToJSON returns the stable serialized form of the error.
func (e *Error) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// New creates an error with the given code, path and message.
func New(code Code, path, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Path:     path,
		Severity: SeverityError,
	}
}

// NewUndefined creates a reference error for a name that is not in the
// declared set, filling in the suggestion and availableNames context.
func NewUndefined(code Code, path, what, name string, available []string) *Error {
	e := New(code, path, "%s %q is not defined", what, name)
	e.Actual = name
	if len(available) > 0 {
		names := append([]string(nil), available...)
		sort.Strings(names)
		e.Context = &Context{AvailableNames: names}
		if s := Suggest(name, names); s != "" {
			e.Suggestion = s
			e.Message += fmt.Sprintf("; did you mean %q?", s)
		}
	}
	return e
}

// maxSuggestDistance is the largest edit distance still offered as a
// suggestion.
const maxSuggestDistance = 3

// Suggest returns the closest candidate by Levenshtein distance, or ""
// when nothing is close enough. Ties break toward the first candidate
// in the (sorted) list.
func Suggest(name string, candidates []string) string {
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, c := range candidates {
		if d := levenshtein(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
