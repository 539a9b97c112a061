package ops

import (
	"context"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg"
	"github.com/rotorlabs/rotor-go-driver/writeconcern"
)

// DeleteOption configures a delete.
type DeleteOption func(*msg.Delete)

// DeleteSingle removes only the first document matching the selector.
func DeleteSingle() DeleteOption {
	return func(m *msg.Delete) {
		m.Flags |= msg.SingleRemove
	}
}

// Delete removes documents matching the selector. Removing from an
// empty collection is not an error: the acknowledgement simply
// reports zero removed documents.
func Delete(ctx context.Context, s Server, ns Namespace, wc *writeconcern.WriteConcern,
	selector interface{}, options ...DeleteOption) (*WriteResult, error) {

	if err := ns.validate(); err != nil {
		return nil, err
	}

	request := &msg.Delete{
		ReqID:              msg.NextRequestID(),
		FullCollectionName: ns.FullName(),
		Selector:           selector,
	}
	for _, option := range options {
		option(request)
	}

	result, err := executeWrite(ctx, s, ns.DB, request, wc)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute delete")
	}

	return result, nil
}
