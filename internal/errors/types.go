// Package errors defines the structured error taxonomy shared by the loader
// pipeline, the dependency collector and the island protocol.
//
// Every failure in the build path is fatal for the module or render that
// produced it. Nothing in isle retries; the type carried by an IsleError
// only tells the driver what went wrong and where.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeResolution ErrorType = "resolution"
	ErrorTypeTransform  ErrorType = "transform"
	ErrorTypeChannel    ErrorType = "channel"
	ErrorTypeEncoding   ErrorType = "encoding"
	ErrorTypeAnalysis   ErrorType = "analysis"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// IsleError is a structured error type with context.
type IsleError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	FilePath  string
	Specifier string
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *IsleError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath+":")
	}

	if e.Specifier != "" {
		parts = append(parts, fmt.Sprintf("%q", e.Specifier))
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *IsleError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an IsleError with the same type and code.
// A target without a code matches any error of the same type.
func (e *IsleError) Is(target error) bool {
	var t *IsleError
	if !errors.As(target, &t) {
		return false
	}
	if t.Code == "" {
		return e.Type == t.Type
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context information to the error.
func (e *IsleError) WithContext(key string, value interface{}) *IsleError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the file the error is about.
func (e *IsleError) WithFile(path string) *IsleError {
	e.FilePath = path

	return e
}

// Sentinel values for errors.Is checks against a whole category.
var (
	ErrResolution = &IsleError{Type: ErrorTypeResolution}
	ErrTransform  = &IsleError{Type: ErrorTypeTransform}
	ErrChannel    = &IsleError{Type: ErrorTypeChannel}
	ErrEncoding   = &IsleError{Type: ErrorTypeEncoding}
	ErrAnalysis   = &IsleError{Type: ErrorTypeAnalysis}
	ErrConfig     = &IsleError{Type: ErrorTypeConfig}
)

// NewResolutionError reports that no hook and no fallback could resolve a
// specifier.
func NewResolutionError(specifier, parentURL string, cause error) *IsleError {
	return &IsleError{
		Type:      ErrorTypeResolution,
		Code:      "UNRESOLVED",
		Message:   "cannot resolve module",
		Cause:     cause,
		FilePath:  parentURL,
		Specifier: specifier,
	}
}

// NewTransformError reports a failed source rewrite for the module at url.
func NewTransformError(code, url, message string, cause error) *IsleError {
	return &IsleError{
		Type:     ErrorTypeTransform,
		Code:     code,
		Message:  message,
		Cause:    cause,
		FilePath: url,
	}
}

// NewChannelError reports a lost peer or a malformed message.
func NewChannelError(code, message string, cause error) *IsleError {
	return &IsleError{
		Type:    ErrorTypeChannel,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewEncodingError reports props that cannot be embedded as island metadata.
func NewEncodingError(path string, cause error) *IsleError {
	return &IsleError{
		Type:     ErrorTypeEncoding,
		Code:     "PROPS_NOT_JSON",
		Message:  "island props are not JSON-serializable",
		Cause:    cause,
		FilePath: path,
	}
}

// NewAnalysisError reports a failed or incomplete dependency analysis.
func NewAnalysisError(code, message string, cause error) *IsleError {
	return &IsleError{
		Type:    ErrorTypeAnalysis,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *IsleError {
	return &IsleError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *IsleError {
	return &IsleError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapIO wraps a filesystem failure.
func WrapIO(err error, code, path string) *IsleError {
	if err == nil {
		return nil
	}
	return &IsleError{
		Type:     ErrorTypeIO,
		Code:     code,
		Message:  "i/o failure",
		Cause:    err,
		FilePath: path,
	}
}

// IsType reports whether err is, or wraps, an IsleError of type t.
func IsType(err error, t ErrorType) bool {
	var te *IsleError
	for err != nil {
		if errors.As(err, &te) {
			if te.Type == t {
				return true
			}
			err = te.Cause
			continue
		}
		return false
	}
	return false
}

// TypeOf returns the type of the outermost IsleError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var te *IsleError
	if errors.As(err, &te) {
		return te.Type
	}
	return ErrorTypeInternal
}

// FilePathOf returns the first file path recorded in err's chain.
func FilePathOf(err error) string {
	var te *IsleError
	for err != nil {
		if !errors.As(err, &te) {
			return ""
		}
		if te.FilePath != "" {
			return te.FilePath
		}
		err = te.Cause
	}
	return ""
}
