package rotor

import (
	"github.com/rotorlabs/rotor-go-driver/ops"
)

// WriteError is a write failure reported by the server when
// acknowledging a write.
type WriteError = ops.WriteError

// ConfigurationError is an error related to client configuration.
type ConfigurationError string

func (e ConfigurationError) Error() string {
	return "configuration error: " + string(e)
}

// IsDuplicateKeyError reports whether err was caused by inserting or
// updating a document whose unique key already exists.
func IsDuplicateKeyError(err error) bool {
	return ops.IsDuplicateKey(err)
}
