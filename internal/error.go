package internal

import "fmt"

// WrappedError represents an error that contains another error.
type WrappedError interface {
	// Message gets the basic message of the error.
	Message() string
	// Inner gets the inner error if one exists.
	Inner() error
}

// RolledUpErrorMessage gets a flattened error message.
func RolledUpErrorMessage(err error) string {
	if wrappedErr, ok := err.(WrappedError); ok {
		inner := wrappedErr.Inner()
		if inner != nil {
			return fmt.Sprintf("%s: %s", wrappedErr.Message(), RolledUpErrorMessage(inner))
		}

		return wrappedErr.Message()
	}

	return err.Error()
}

// WrapError wraps an error with a message.
func WrapError(inner error, message string) error {
	return &wrappedError{message, inner}
}

// WrapErrorf wraps an error with a message.
func WrapErrorf(inner error, format string, args ...interface{}) error {
	return &wrappedError{fmt.Sprintf(format, args...), inner}
}

type wrappedError struct {
	message string
	inner   error
}

func (e *wrappedError) Message() string {
	return e.message
}

func (e *wrappedError) Error() string {
	return RolledUpErrorMessage(e)
}

func (e *wrappedError) Inner() error {
	return e.inner
}

func (e *wrappedError) Unwrap() error {
	return e.inner
}

// MultiError combines multiple errors into a single error. Nil errors
// are discarded; zero remaining errors yield nil, and a single remaining
// error is returned as itself.
func MultiError(errors ...error) error {
	var actual []error
	for _, err := range errors {
		if err != nil {
			actual = append(actual, err)
		}
	}

	switch len(actual) {
	case 0:
		return nil
	case 1:
		return actual[0]
	}

	return multiError(actual)
}

type multiError []error

func (e multiError) Error() string {
	result := "multiple errors encountered:"
	for _, err := range e {
		result += "\n  " + err.Error()
	}
	return result
}

// Errors returns the individual errors.
func (e multiError) Errors() []error {
	return e
}
