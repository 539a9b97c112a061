package ops

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/internal"
)

// Distinct returns the distinct values of the field named by key
// among the documents matching the filter.
func Distinct(ctx context.Context, s Server, ns Namespace, key string, filter interface{}) ([]interface{}, error) {
	if err := ns.validate(); err != nil {
		return nil, err
	}

	command := bson.D{
		{Name: "distinct", Value: ns.Collection},
		{Name: "key", Value: key},
	}
	if filter != nil {
		command = append(command, bson.DocElem{Name: "query", Value: filter})
	}

	var result struct {
		Values []interface{} `bson:"values"`
	}
	if err := Run(ctx, s, ns.DB, command, &result); err != nil {
		return nil, internal.WrapError(err, "failed to execute distinct")
	}

	return result.Values, nil
}
