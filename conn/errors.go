package conn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"gopkg.in/mgo.v2/bson"
)

var (
	// ErrConnectionDead occurs when using a connection that has
	// already been marked dead by a previous failure.
	ErrConnectionDead = errors.New("connection is dead")

	ErrUnknownCommandFailure   = errors.New("unknown command failure")
	ErrNoCommandResponse       = errors.New("no command response document")
	ErrMultiDocCommandResponse = errors.New("command returned multiple documents")
	ErrNoDocCommandResponse    = errors.New("command returned no documents")
)

// Error represents an error that occurred in the conn package.
type Error struct {
	ConnectionID string

	message string
	inner   error
}

// Message gets the basic error message.
func (e *Error) Message() string {
	return e.message
}

// Error gets a rolled-up error message.
func (e *Error) Error() string {
	return internal.RolledUpErrorMessage(e)
}

// Inner gets the inner error if one exists.
func (e *Error) Inner() error {
	return e.inner
}

// Unwrap supports errors.Is/As.
func (e *Error) Unwrap() error {
	return e.inner
}

// DesyncError occurs when a reply's correlation id does not match the
// request the connection was waiting on. The connection cannot be
// trusted afterwards and is closed.
type DesyncError struct {
	ConnectionID string
	Expected     int32
	Actual       int32
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("connection(%s) protocol desync: expected a reply to %d but got a reply to %d", e.ConnectionID, e.Expected, e.Actual)
}

// CommandFailureError is an error with a failure response as a document.
type CommandFailureError struct {
	Msg      string
	Response bson.D
}

func (e *CommandFailureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Msg, e.Response)
}

// Message retrieves the message of the error.
func (e *CommandFailureError) Message() string {
	return e.Msg
}

// CommandResponseError is an error in the response to a command.
type CommandResponseError struct {
	Message string
}

// NewCommandResponseError creates a new CommandResponseError.
func NewCommandResponseError(msg string) *CommandResponseError {
	return &CommandResponseError{msg}
}

func (e *CommandResponseError) Error() string {
	return e.Message
}

// CommandError is an error in the execution of a command.
type CommandError struct {
	Code    int32
	Message string
	Name    string
}

func (e *CommandError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("(%v) %v", e.Name, e.Message)
	}
	return e.Message
}

// IsNsNotFound indicates if the error is about a namespace not being
// found.
func IsNsNotFound(err error) bool {
	e, ok := err.(*CommandError)
	return ok && e.Code == 26
}

// IsCommandNotFound indicates if the error is about a command not being
// found.
func IsCommandNotFound(err error) bool {
	e, ok := err.(*CommandError)
	return ok && (e.Code == 59 || strings.HasPrefix(e.Message, "no such cmd:"))
}
