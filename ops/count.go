package ops

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/internal"
)

// Count returns the number of documents matching the filter.
func Count(ctx context.Context, s Server, ns Namespace, filter interface{}) (int64, error) {
	if err := ns.validate(); err != nil {
		return 0, err
	}

	command := bson.D{{Name: "count", Value: ns.Collection}}
	if filter != nil {
		command = append(command, bson.DocElem{Name: "query", Value: filter})
	}

	var result struct {
		N int64 `bson:"n"`
	}
	if err := Run(ctx, s, ns.DB, command, &result); err != nil {
		return 0, internal.WrapError(err, "failed to execute count")
	}

	return result.N, nil
}
