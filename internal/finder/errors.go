package finder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"common-addresses/internal/intersect"
)

var (
	// ErrInsufficientFiles is returned when fewer than two files are uploaded.
	ErrInsufficientFiles = errors.New("at least 2 files are required")

	// ErrTooManyFiles is returned when more files are uploaded than allowed.
	ErrTooManyFiles = errors.New("too many files")

	// ErrInsufficientValidFiles is returned when fewer than two uploads
	// survive normalization.
	ErrInsufficientValidFiles = errors.New("fewer than 2 valid files")

	// ErrStaging wraps failures of the staging backend.
	ErrStaging = errors.New("staging failed")
)

// Dropped describes an upload that failed normalization and was left out of
// the intersection.
type Dropped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// DroppedFilesError carries the drop details behind ErrInsufficientValidFiles.
type DroppedFilesError struct {
	Received int
	Accepted int
	Dropped  []Dropped
}

func (e *DroppedFilesError) Error() string {
	names := make([]string, 0, len(e.Dropped))
	for _, d := range e.Dropped {
		names = append(names, fmt.Sprintf("%s (%s)", d.Name, d.Reason))
	}
	return fmt.Sprintf("%v: %d of %d files usable; dropped %s",
		ErrInsufficientValidFiles, e.Accepted, e.Received, strings.Join(names, ", "))
}

func (e *DroppedFilesError) Unwrap() error { return ErrInsufficientValidFiles }

// runError renders err without client-supplied file names, for storage in
// run history.
func runError(err error) string {
	var dfe *DroppedFilesError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &dfe):
		reasons := make([]string, 0, len(dfe.Dropped))
		for _, d := range dfe.Dropped {
			reasons = append(reasons, d.Reason)
		}
		return fmt.Sprintf("%v: %d of %d files usable; dropped reasons %s",
			ErrInsufficientValidFiles, dfe.Accepted, dfe.Received, strings.Join(reasons, ", "))
	case errors.Is(err, ErrInsufficientFiles):
		return ErrInsufficientFiles.Error()
	case errors.Is(err, ErrTooManyFiles):
		return ErrTooManyFiles.Error()
	case errors.Is(err, ErrStaging):
		return ErrStaging.Error()
	case errors.Is(err, context.Canceled):
		return context.Canceled.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded.Error()
	default:
		return Outcome(err)
	}
}

// dropReason maps a normalization error to a short, stable reason code.
func dropReason(err error) string {
	switch {
	case errors.Is(err, intersect.ErrDecode):
		return "decode"
	case errors.Is(err, intersect.ErrInvalidJSON):
		return "invalid_json"
	case errors.Is(err, intersect.ErrEmptyContent):
		return "empty"
	default:
		return "unknown"
	}
}

// Outcome classifies the result of a Find call for metrics and run history.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientFiles):
		return "insufficient_files"
	case errors.Is(err, ErrTooManyFiles):
		return "too_many_files"
	case errors.Is(err, ErrInsufficientValidFiles):
		return "insufficient_valid_files"
	case errors.Is(err, ErrStaging):
		return "staging_error"
	default:
		return "error"
	}
}
