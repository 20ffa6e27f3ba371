package models

import (
	"errors"
	"fmt"
)

// ErrorType identifies the category of error that occurred.
type ErrorType string

const (
	// Template copy and substitution
	ErrFileSystem ErrorType = "file_system_error"

	// git add / commit / push
	ErrVersionControl ErrorType = "version_control_error"

	// Remote platform rejected a task lookup, create, build, run or update
	ErrRemoteAPI ErrorType = "remote_api_error"

	// Malformed task URL, actor URL or task list
	ErrParse ErrorType = "parse_error"

	// Bounded wait elapsed
	ErrTimeoutExceeded ErrorType = "timeout_exceeded"

	// Catch-all
	ErrInternalError ErrorType = "internal_error"
)

// Stage names a step of the per-record pipeline.
type Stage string

const (
	StageResolve     Stage = "resolve"
	StageMaterialize Stage = "materialize"
	StagePublish     Stage = "publish"
	StageCreate      Stage = "create"
	StageBuild       Stage = "build"
	StageRun         Stage = "run"
	StageCollect     Stage = "collect"
	StageUpdate      Stage = "update"
)

// StageError is an error raised by a pipeline stage, tagged with its category.
type StageError struct {
	Type  ErrorType
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Type, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err, or returns nil when err is nil.
func NewStageError(stage Stage, typ ErrorType, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Type: typ, Stage: stage, Err: err}
}

// ErrorTypeOf returns the category of err, or ErrInternalError if it carries none.
func ErrorTypeOf(err error) ErrorType {
	var se *StageError
	if errors.As(err, &se) {
		return se.Type
	}
	return ErrInternalError
}
