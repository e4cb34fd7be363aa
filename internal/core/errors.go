package core

import "errors"

var (
	// ErrNotFound is returned when a suggestion, job, or policy id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when acting on a suggestion that is not
	// pending, or whose review window has expired.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrPolicyResolution is a configuration error: no active global policy
	// exists, so a product cannot resolve to any policy. Fatal to analysis.
	ErrPolicyResolution = errors.New("no active global reorder policy")

	// ErrJobTimeout marks a job that exceeded its wall-clock budget.
	ErrJobTimeout = errors.New("analysis job timed out")
)
