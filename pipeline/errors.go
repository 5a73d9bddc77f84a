package pipeline

import "fmt"

// PreconditionError reports a record that is missing the data a stage
// requires. It maps to a client error and is never retried automatically.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// NotFoundError reports a missing script or presenter reference.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func preconditionf(format string, args ...interface{}) error {
	return &PreconditionError{Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...interface{}) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}
