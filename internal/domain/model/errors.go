package model

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage that produced a fatal error.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageProbe   Stage = "probe"
	StageEncode  Stage = "encode"
	StageSegment Stage = "segment"
	StagePreview Stage = "preview"
	StagePublish Stage = "publish"
	StageNotify  Stage = "notify"
)

// FailureClass distinguishes which party can act on a failure.
type FailureClass string

const (
	// FailureSource means the uploaded source is the problem (bad upload,
	// unreachable URL, corrupt file) and the user can correct it.
	FailureSource FailureClass = "source"

	// FailureSystem means encoding or storage failed and an operator needs
	// to look at it.
	FailureSystem FailureClass = "system"
)

// StageError tags an error with the pipeline stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage tagged on err, or "" when err is untagged.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ClassOf maps a fatal pipeline error to the party that can correct it.
// Fetch and probe failures are source problems; everything else is a system
// problem.
func ClassOf(err error) FailureClass {
	switch StageOf(err) {
	case StageFetch, StageProbe:
		return FailureSource
	default:
		return FailureSystem
	}
}
