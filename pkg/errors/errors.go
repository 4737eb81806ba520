package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnsortedInput   = errors.New("input stream is not sorted")
	ErrEmptyScope      = errors.New("empty category/bucket scope")
	ErrNoCategories    = errors.New("term has no categories")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUpstream        = errors.New("upstream request failed")
	ErrNotFound        = errors.New("not found")
	ErrInternal        = errors.New("internal error")
)

// Exit codes returned by the reviewterms binary.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitUsage     = 2
	ExitDataError = 65
	ExitUnavail   = 69
	ExitInvariant = 70
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// ExitCode maps an error returned by a pipeline stage to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrMalformedRecord), errors.Is(err, ErrUnsortedInput), errors.Is(err, ErrInvalidInput):
		return ExitDataError
	case errors.Is(err, ErrInvalidConfig):
		return ExitUsage
	case errors.Is(err, ErrEmptyScope), errors.Is(err, ErrNoCategories), errors.Is(err, ErrInternal):
		return ExitInvariant
	case errors.Is(err, ErrUpstream):
		return ExitUnavail
	default:
		return ExitFailure
	}
}
