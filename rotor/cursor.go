package rotor

import (
	"github.com/rotorlabs/rotor-go-driver/ops"
)

// Cursor instances iterate a stream of documents. Each document is
// decoded into the result according to the rules of the bson package.
//
// A typical usage of the Cursor interface is:
//
//	cursor, err := collection.Find(ctx, filter)
//	if err != nil { return err }
//	defer cursor.Close(ctx)
//
//	for cursor.Next(ctx, &doc) {
//		...
//	}
//	return cursor.Err()
type Cursor = ops.Cursor

// ErrCursorNotFound is returned when the server has already reaped
// the cursor being iterated.
var ErrCursorNotFound = ops.ErrCursorNotFound
