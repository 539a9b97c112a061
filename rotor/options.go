package rotor

import (
	"github.com/rotorlabs/rotor-go-driver/ops"
)

// Options are defined as functions so callers do not have to supply a
// default value when they want none:
//
//	coll.Find(ctx, filter)
//	coll.Find(ctx, filter, rotor.Limit(10), rotor.Sort(bson.D{{Name: "age", Value: -1}}))

// FindOption configures a query.
type FindOption = ops.FindOption

// UpdateOption configures an update.
type UpdateOption = ops.UpdateOption

// InsertOption configures an insert.
type InsertOption = ops.InsertOption

// Limit caps the number of documents a query returns.
func Limit(limit int32) FindOption {
	return ops.FindLimit(limit)
}

// Skip skips the first documents matching a query.
func Skip(skip int32) FindOption {
	return ops.FindSkip(skip)
}

// BatchSize sets the number of documents fetched per server round trip.
func BatchSize(batchSize int32) FindOption {
	return ops.FindBatchSize(batchSize)
}

// Sort orders the documents a query returns.
func Sort(sort interface{}) FindOption {
	return ops.FindSort(sort)
}

// Projection limits the fields returned for each matching document.
func Projection(projection interface{}) FindOption {
	return ops.FindProjection(projection)
}

// Upsert inserts a new document when the update filter matches nothing.
func Upsert() UpdateOption {
	return ops.UpdateUpsert()
}

// ContinueOnError keeps a multi-document insert going after an
// individual document fails.
func ContinueOnError() InsertOption {
	return ops.InsertContinueOnError()
}
