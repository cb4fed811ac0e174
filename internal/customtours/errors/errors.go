package errors

import "errors"

var (
	ErrNotFound = errors.New("customized tour not found")

	ErrInvalidID = errors.New("invalid customized tour ID format")

	ErrGuideNotFound = errors.New("guide not found")

	// ErrConditionFailed means a conditional update matched no document: the
	// request is missing or no longer in the state the caller checked.
	ErrConditionFailed = errors.New("customized tour not in expected state")
)
