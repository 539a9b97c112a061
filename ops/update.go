package ops

import (
	"context"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg"
	"github.com/rotorlabs/rotor-go-driver/writeconcern"
)

// UpdateOption configures an update.
type UpdateOption func(*msg.Update)

// UpdateUpsert inserts the document when no document matches the
// selector.
func UpdateUpsert() UpdateOption {
	return func(m *msg.Update) {
		m.Flags |= msg.Upsert
	}
}

// UpdateMulti updates every document matching the selector instead of
// the first.
func UpdateMulti() UpdateOption {
	return func(m *msg.Update) {
		m.Flags |= msg.MultiUpdate
	}
}

// Update updates documents matching the selector.
func Update(ctx context.Context, s Server, ns Namespace, wc *writeconcern.WriteConcern,
	selector interface{}, update interface{}, options ...UpdateOption) (*WriteResult, error) {

	if err := ns.validate(); err != nil {
		return nil, err
	}

	request := &msg.Update{
		ReqID:              msg.NextRequestID(),
		FullCollectionName: ns.FullName(),
		Selector:           selector,
		Update:             update,
	}
	for _, option := range options {
		option(request)
	}

	result, err := executeWrite(ctx, s, ns.DB, request, wc)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute update")
	}

	return result, nil
}
