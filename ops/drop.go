package ops

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/internal"
)

// DropCollection drops the collection. Dropping a collection that
// does not exist is not an error.
func DropCollection(ctx context.Context, s Server, ns Namespace) error {
	if err := ns.validate(); err != nil {
		return err
	}

	command := bson.D{{Name: "drop", Value: ns.Collection}}

	var result bson.D
	err := Run(ctx, s, ns.DB, command, &result)
	if err != nil && !conn.IsNsNotFound(err) {
		return internal.WrapError(err, "failed to execute drop")
	}

	return nil
}
