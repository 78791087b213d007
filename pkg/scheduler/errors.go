package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidJobParameters rejects a job at enqueue time without changing state
	ErrInvalidJobParameters = errors.New("scheduler: invalid job parameters")
	// ErrInputUnavailable fails a job whose source image cannot be loaded
	ErrInputUnavailable = errors.New("scheduler: input unavailable")
	// ErrSinkFailed fails a job whose output could not be delivered
	ErrSinkFailed = errors.New("scheduler: output sink failed")
)

// JobError reports the failure of a single job. The scheduler keeps running
// after a job fails.
type JobError struct {
	Job Job
	Err error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %v", e.Job.ID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
