package rotor

// InsertOneResult is a result of an InsertOne operation.
type InsertOneResult struct {
	// The identifier of the inserted document.
	InsertedID interface{}
}

// InsertManyResult is a result of an InsertMany operation.
type InsertManyResult struct {
	// The identifiers of the inserted documents, in input order.
	InsertedIDs []interface{}
}

// DeleteResult is a result of a DeleteOne or DeleteMany operation.
type DeleteResult struct {
	// The number of documents that were deleted.
	DeletedCount int64
}

// UpdateResult is a result of an update operation.
type UpdateResult struct {
	// The number of documents that matched the filter.
	MatchedCount int64
	// Whether an existing document was modified, as opposed to an
	// upsert inserting a new one.
	UpdatedExisting bool
	// The identifier of the inserted document if an upsert took place.
	UpsertedID interface{}
}

func newUpdateResult(n int, updatedExisting bool, upsertedID interface{}) *UpdateResult {
	result := &UpdateResult{UpdatedExisting: updatedExisting, UpsertedID: upsertedID}
	if upsertedID == nil {
		result.MatchedCount = int64(n)
	}
	return result
}
