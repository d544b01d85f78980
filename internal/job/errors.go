package job

import (
	"errors"
	"fmt"
)

var (
	ErrNotSubmitted   = errors.New("job has not been submitted")
	ErrMalformedJobID = errors.New("malformed job id")
	ErrNoJobs         = errors.New("no jobs given")
	ErrStatusNotFound = errors.New("scheduler returned no status for job")
	ErrInvalidLogType = errors.New("log type must be \"o\" or \"e\"")
)

// CapabilityError reports an operation that the job's kind can never perform.
type CapabilityError struct {
	Operation string
	Kind      Kind
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s cannot be performed on %s", e.Operation, e.Kind.article())
}

// SubmissionError is returned when uploading the script or running qsub fails. Message carries the
// remote side's explanation.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return "failed to submit job: " + e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func IsCapabilityError(err error) bool {
	var capErr *CapabilityError
	return errors.As(err, &capErr)
}

func IsSubmissionError(err error) bool {
	var subErr *SubmissionError
	return errors.As(err, &subErr)
}
