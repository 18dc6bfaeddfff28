package main

import (
	"errors"
	"fmt"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/qualitygate"
	"github.com/efebarandurmaz/apistat/internal/report"
	"github.com/efebarandurmaz/apistat/internal/snapshot"
)

const (
	exitFailure    = 1
	exitUsage      = 2
	exitGateFailed = 3
)

// ExitError carries the exit status for an error returned from a RunE.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func (e *ExitError) ExitCode() int { return e.Code }

func usageErrorf(format string, args ...any) error {
	return &ExitError{Code: exitUsage, Err: fmt.Errorf(format, args...)}
}

// withExitCode attaches an exit status to err based on what went wrong.
func withExitCode(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	var (
		presentation *report.UnsupportedPresentationError
		grouping     *aggregate.UnknownGroupingError
		mismatch     *snapshot.GroupingMismatchError
		gates        *qualitygate.FailedError
	)
	switch {
	case errors.As(err, &gates):
		return &ExitError{Code: exitGateFailed, Err: err}
	case errors.As(err, &presentation), errors.As(err, &grouping), errors.As(err, &mismatch):
		return &ExitError{Code: exitUsage, Err: err}
	}
	return &ExitError{Code: exitFailure, Err: err}
}
