package types

import "fmt"

// ErrorKind classifies failures of the crop pipeline
type ErrorKind string

const (
	KindPrecondition ErrorKind = "precondition"
	KindDetection    ErrorKind = "detection"
	KindUnsupported  ErrorKind = "unsupported"
	KindExternal     ErrorKind = "external"
)

// Error carries the failing stage along with its kind
type Error struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s/%s", e.Kind, e.Stage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrDetection) works
// regardless of stage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Stage == "" && t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is
var (
	ErrPrecondition = &Error{Kind: KindPrecondition}
	ErrDetection    = &Error{Kind: KindDetection}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrExternal     = &Error{Kind: KindExternal}
)

func NewError(kind ErrorKind, stage, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

func DetectionError(stage, message string) *Error {
	return NewError(KindDetection, stage, message, nil)
}

func UnsupportedError(stage, message string) *Error {
	return NewError(KindUnsupported, stage, message, nil)
}

func ExternalError(stage, message string, err error) *Error {
	return NewError(KindExternal, stage, message, err)
}

// Require panics with a precondition error when cond is false. Range and
// rectangle contracts between internal functions are programming errors.
func Require(cond bool, stage, format string, args ...interface{}) {
	if !cond {
		panic(NewError(KindPrecondition, stage, fmt.Sprintf(format, args...), nil))
	}
}
