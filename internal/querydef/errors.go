package querydef

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error code constants for definition problems.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // File read error
	ErrCodeUnsupported = "E003" // Unsupported file type
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build or schema check failed
	ErrCodeYAML        = "E007" // YAML parse failed

	ErrCodeInvalidField    = "E120" // Field failed validation
	ErrCodeInvalidPipeline = "E121" // Pipeline text does not parse
	ErrCodeInvalidParam    = "E122" // Parameter value has the wrong type
	ErrCodeUnknownQuery    = "E123" // No query with the requested name
	ErrCodeInvalidFunction = "E124" // Function mapping rejected
	ErrCodeInvalidType     = "E125" // Unknown field or parameter type
)

// LoadError is a definition problem, with the CUE position when known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, format string, args ...any) *LoadError {
	return &LoadError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// fromCUE converts CUE errors to LoadErrors with position info.
func fromCUE(code string, err error) []error {
	var out []error
	for _, e := range errors.Errors(err) {
		le := &LoadError{Code: code, Message: e.Error()}
		if positions := errors.Positions(e); len(positions) > 0 {
			le.Pos = positions[0]
		}
		out = append(out, le)
	}
	if len(out) == 0 {
		out = append(out, &LoadError{Code: code, Message: err.Error()})
	}
	return out
}
