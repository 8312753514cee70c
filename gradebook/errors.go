package gradebook

import "errors"

// Validation error kinds. Match them with errors.Is.
var (
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidCredits      = errors.New("invalid credits")
	ErrDuplicateCourseCode = errors.New("duplicate course code")
	ErrMissingSelection    = errors.New("missing selection")
	ErrInvalidGrade        = errors.New("invalid grade")
)

// Lookup failures for stale or unknown identifiers
var (
	ErrStudentNotFound = errors.New("student not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// ValidationError reports rejected user input. The book is left unchanged.
type ValidationError struct {
	Kind error  // One of the Err* validation kinds
	Msg  string // Message suitable for showing to the user
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func invalid(kind error, msg string) error {
	return &ValidationError{Kind: kind, Msg: msg}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
