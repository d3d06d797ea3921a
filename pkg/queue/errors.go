package queue

import "errors"

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// ValidationError marks bad caller input. Not retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ConflictError marks a lost claim race or a cancel against an in-flight
// job. The caller moves on; nothing is retried.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// TransientError marks a failure worth retrying (backend unavailable,
// timeout). Retried up to the job's retry budget.
type TransientError struct {
	Msg string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *TransientError) Unwrap() error { return e.Err }

// StructuralError marks an unusable document (corrupt, encrypted, empty
// text). Terminal immediately regardless of retry budget.
type StructuralError struct {
	Msg string
	Err error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *StructuralError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsStructural reports whether err is a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
