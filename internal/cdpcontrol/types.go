package cdpcontrol

import (
	"errors"
	"fmt"
)

const (
	CodeValidation       = "VALIDATION"
	CodeTabNotFound      = "TAB_NOT_FOUND"
	CodeOriginNotAllowed = "ORIGIN_NOT_ALLOWED"
	CodeNoData           = "NO_DATA"
	CodeEvalFailure      = "EVAL_FAILURE"
	CodeEvalTimeout      = "EVAL_TIMEOUT"
	CodeCDPUnavailable   = "CDP_UNAVAILABLE"
	CodeStorageFailure   = "STORAGE_FAILURE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// NewError builds a CodedError for callers outside this package.
func NewError(code, msg string, cause error) error {
	return newError(code, msg, cause)
}

// ErrorCode returns the code of the first CodedError in err's chain.
func ErrorCode(err error) string {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return ""
	}
	return coded.Code
}

// TabInfo describes a page target.
type TabInfo struct {
	TabID  string `json:"tab_id"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Active bool   `json:"active"`
}

// EventKind names a tab lifecycle event.
type EventKind string

const (
	EventActivated EventKind = "activated"
	EventUpdated   EventKind = "updated"
	EventStartup   EventKind = "startup"
	EventInstalled EventKind = "installed"
)

// StatusComplete marks an Updated event for a finished load.
const StatusComplete = "complete"

// TabEvent is one tab lifecycle notification. Startup and Installed carry no
// tab; the consumer resolves the active tab itself.
type TabEvent struct {
	Kind   EventKind
	TabID  string
	Status string
	Active bool
}
