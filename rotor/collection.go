package rotor

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/ops"
)

// Collection performs operations on a given collection.
type Collection struct {
	client *Client
	db     *Database
	name   string
}

// Database returns the Database the collection was created from.
func (coll *Collection) Database() *Database {
	return coll.db
}

// Name returns the name of the collection.
func (coll *Collection) Name() string {
	return coll.name
}

func (coll *Collection) namespace() ops.Namespace {
	return ops.NewNamespace(coll.db.name, coll.name)
}

// InsertOne inserts a single document into the collection. When the
// document has no _id, one is generated client side and reported in
// the result.
func (coll *Collection) InsertOne(ctx context.Context, document interface{},
	options ...InsertOption) (*InsertOneResult, error) {

	doc, insertedID, err := getOrInsertID(document)
	if err != nil {
		return nil, err
	}

	_, err = ops.Insert(ctx, coll.client, coll.namespace(), coll.client.writeConcern,
		[]interface{}{doc}, options...)
	if err != nil {
		return nil, err
	}

	return &InsertOneResult{InsertedID: insertedID}, nil
}

// InsertMany inserts the given documents into the collection.
func (coll *Collection) InsertMany(ctx context.Context, documents []interface{},
	options ...InsertOption) (*InsertManyResult, error) {

	docs := make([]interface{}, 0, len(documents))
	ids := make([]interface{}, 0, len(documents))
	for _, document := range documents {
		doc, id, err := getOrInsertID(document)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, id)
	}

	_, err := ops.Insert(ctx, coll.client, coll.namespace(), coll.client.writeConcern,
		docs, options...)
	if err != nil {
		return nil, err
	}

	return &InsertManyResult{InsertedIDs: ids}, nil
}

// DeleteOne deletes at most one document matching the filter.
func (coll *Collection) DeleteOne(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	return coll.delete(ctx, filter, ops.DeleteSingle())
}

// DeleteMany deletes all the documents matching the filter. Deleting
// from an empty collection is not an error: the result simply reports
// zero deleted documents.
func (coll *Collection) DeleteMany(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	return coll.delete(ctx, filter)
}

func (coll *Collection) delete(ctx context.Context, filter interface{},
	options ...ops.DeleteOption) (*DeleteResult, error) {

	result, err := ops.Delete(ctx, coll.client, coll.namespace(), coll.client.writeConcern,
		filter, options...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return &DeleteResult{DeletedCount: int64(result.N)}, nil
}

// UpdateOne updates a single document in the collection. The update
// document must only contain update operators.
func (coll *Collection) UpdateOne(ctx context.Context, filter interface{}, update interface{},
	options ...UpdateOption) (*UpdateResult, error) {

	if err := ensureUpdateDoc(update); err != nil {
		return nil, err
	}

	return coll.update(ctx, filter, update, options...)
}

// UpdateMany updates all the documents matching the filter. The
// update document must only contain update operators.
func (coll *Collection) UpdateMany(ctx context.Context, filter interface{}, update interface{},
	options ...UpdateOption) (*UpdateResult, error) {

	if err := ensureUpdateDoc(update); err != nil {
		return nil, err
	}

	options = append(options, ops.UpdateMulti())
	return coll.update(ctx, filter, update, options...)
}

// ReplaceOne replaces a single document in the collection. The
// replacement document must not contain update operators.
func (coll *Collection) ReplaceOne(ctx context.Context, filter interface{},
	replacement interface{}, options ...UpdateOption) (*UpdateResult, error) {

	if err := ensureReplacementDoc(replacement); err != nil {
		return nil, err
	}

	return coll.update(ctx, filter, replacement, options...)
}

// Save inserts the document when its _id is not yet present in the
// collection and replaces the existing document otherwise. When the
// document has no _id, one is generated client side.
func (coll *Collection) Save(ctx context.Context, document interface{}) (*UpdateResult, error) {
	doc, id, err := getOrInsertID(document)
	if err != nil {
		return nil, err
	}

	result, err := coll.update(ctx, bson.D{{Name: "_id", Value: id}}, doc, Upsert())
	if err != nil {
		return nil, err
	}
	if result != nil && result.MatchedCount == 0 {
		result.UpsertedID = id
	}
	return result, nil
}

func (coll *Collection) update(ctx context.Context, filter interface{}, update interface{},
	options ...UpdateOption) (*UpdateResult, error) {

	result, err := ops.Update(ctx, coll.client, coll.namespace(), coll.client.writeConcern,
		filter, update, options...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return newUpdateResult(result.N, result.UpdatedExisting, result.UpsertedID), nil
}

// Find returns a cursor over the documents matching the filter.
func (coll *Collection) Find(ctx context.Context, filter interface{},
	options ...FindOption) (Cursor, error) {

	return ops.Find(ctx, coll.client, coll.namespace(), filter, options...)
}

// FindOne returns up to one document matching the filter, reporting
// whether one was found.
func (coll *Collection) FindOne(ctx context.Context, filter interface{}, result interface{},
	options ...FindOption) (bool, error) {

	options = append(options, Limit(1))

	cursor, err := coll.Find(ctx, filter, options...)
	if err != nil {
		return false, err
	}
	// the limit means the server already closed its cursor, but close
	// anyway so a server that ignored it is not left with a live one
	defer cursor.Close(ctx)

	found := cursor.Next(ctx, result)
	if err = cursor.Err(); err != nil {
		return false, err
	}

	return found, nil
}

// Count gets the number of documents matching the filter.
func (coll *Collection) Count(ctx context.Context, filter interface{}) (int64, error) {
	return ops.Count(ctx, coll.client, coll.namespace(), filter)
}

// Distinct finds the distinct values for the given field across the
// collection.
func (coll *Collection) Distinct(ctx context.Context, fieldName string, filter interface{}) ([]interface{}, error) {
	return ops.Distinct(ctx, coll.client, coll.namespace(), fieldName, filter)
}

// Drop drops the collection. Dropping a collection that does not
// exist is not an error.
func (coll *Collection) Drop(ctx context.Context) error {
	return ops.DropCollection(ctx, coll.client, coll.namespace())
}
