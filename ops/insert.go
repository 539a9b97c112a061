package ops

import (
	"context"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg"
	"github.com/rotorlabs/rotor-go-driver/writeconcern"
)

// InsertOption configures an insert.
type InsertOption func(*msg.Insert)

// InsertContinueOnError makes the server attempt the remaining
// documents of a batch after one fails.
func InsertContinueOnError() InsertOption {
	return func(m *msg.Insert) {
		m.Flags |= msg.ContinueOnError
	}
}

// Insert inserts the given documents.
func Insert(ctx context.Context, s Server, ns Namespace, wc *writeconcern.WriteConcern,
	docs []interface{}, options ...InsertOption) (*WriteResult, error) {

	if err := ns.validate(); err != nil {
		return nil, err
	}

	request := &msg.Insert{
		ReqID:              msg.NextRequestID(),
		FullCollectionName: ns.FullName(),
		Documents:          docs,
	}
	for _, option := range options {
		option(request)
	}

	result, err := executeWrite(ctx, s, ns.DB, request, wc)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute insert")
	}

	return result, nil
}
