package rotor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/rotor"
)

type event struct {
	ID    interface{} `bson:"_id"`
	Kind  string      `bson:"kind"`
	Level int         `bson:"level"`
}

func TestCollection_insert_then_find_one(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	result, err := coll.InsertOne(context.Background(), bson.M{"kind": "login", "level": 3})
	require.NoError(t, err)
	require.NotNil(t, result.InsertedID)

	var found event
	ok, err := coll.FindOne(context.Background(), bson.D{{Name: "kind", Value: "login"}}, &found)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, result.InsertedID, found.ID)
	require.Equal(t, 3, found.Level)

	ok, err = coll.FindOne(context.Background(), bson.D{{Name: "kind", Value: "logout"}}, &found)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCollection_InsertOne_keeps_user_supplied_id(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	result, err := coll.InsertOne(context.Background(), bson.M{"_id": 7, "kind": "login"})
	require.NoError(t, err)
	require.Equal(t, 7, result.InsertedID)

	_, err = coll.InsertOne(context.Background(), bson.M{"_id": 7, "kind": "login"})
	require.Error(t, err)
	require.True(t, rotor.IsDuplicateKeyError(err))
}

func TestCollection_InsertMany(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	result, err := coll.InsertMany(context.Background(), []interface{}{
		bson.M{"kind": "login"},
		bson.M{"kind": "logout"},
		bson.M{"_id": "fixed", "kind": "login"},
	})
	require.NoError(t, err)
	require.Len(t, result.InsertedIDs, 3)
	require.Equal(t, "fixed", result.InsertedIDs[2])

	n, err := coll.Count(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestCollection_InsertMany_ordered_stops_at_duplicate(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertMany(context.Background(), []interface{}{
		bson.M{"_id": 1},
		bson.M{"_id": 1},
		bson.M{"_id": 2},
	})
	require.True(t, rotor.IsDuplicateKeyError(err))

	// documents before the offending one stay committed
	n, err := coll.Count(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// an unordered insert skips the duplicate and keeps going
	_, err = coll.InsertMany(context.Background(), []interface{}{
		bson.M{"_id": 1},
		bson.M{"_id": 3},
	}, rotor.ContinueOnError())
	require.True(t, rotor.IsDuplicateKeyError(err))

	n, err = coll.Count(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestCollection_delete_is_idempotent(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertMany(context.Background(), []interface{}{
		bson.M{"kind": "login"},
		bson.M{"kind": "login"},
	})
	require.NoError(t, err)

	result, err := coll.DeleteMany(context.Background(), bson.D{{Name: "kind", Value: "login"}})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.DeletedCount)

	// a second identical delete matches nothing and succeeds
	result, err = coll.DeleteMany(context.Background(), bson.D{{Name: "kind", Value: "login"}})
	require.NoError(t, err)
	require.Equal(t, int64(0), result.DeletedCount)
}

func TestCollection_DeleteOne(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertMany(context.Background(), []interface{}{
		bson.M{"kind": "login"},
		bson.M{"kind": "login"},
	})
	require.NoError(t, err)

	result, err := coll.DeleteOne(context.Background(), bson.D{{Name: "kind", Value: "login"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.DeletedCount)

	n, err := coll.Count(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestCollection_UpdateOne(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertOne(context.Background(), bson.M{"_id": 1, "level": 1})
	require.NoError(t, err)

	result, err := coll.UpdateOne(context.Background(),
		bson.D{{Name: "_id", Value: 1}},
		bson.D{{Name: "$set", Value: bson.D{{Name: "level", Value: 5}}}})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.MatchedCount)
	require.True(t, result.UpdatedExisting)
	require.Nil(t, result.UpsertedID)

	var found event
	ok, err := coll.FindOne(context.Background(), bson.D{{Name: "_id", Value: 1}}, &found)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5, found.Level)

	// a replacement style document is rejected
	_, err = coll.UpdateOne(context.Background(),
		bson.D{{Name: "_id", Value: 1}},
		bson.D{{Name: "level", Value: 9}})
	require.Error(t, err)
}

func TestCollection_UpdateOne_upsert(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	result, err := coll.UpdateOne(context.Background(),
		bson.D{{Name: "_id", Value: 42}},
		bson.D{{Name: "$set", Value: bson.D{{Name: "level", Value: 2}}}},
		rotor.Upsert())
	require.NoError(t, err)
	require.Equal(t, int64(0), result.MatchedCount)
	require.False(t, result.UpdatedExisting)
	require.Equal(t, 42, result.UpsertedID)
}

func TestCollection_UpdateMany(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertMany(context.Background(), []interface{}{
		bson.M{"kind": "login", "level": 1},
		bson.M{"kind": "login", "level": 2},
		bson.M{"kind": "logout", "level": 3},
	})
	require.NoError(t, err)

	result, err := coll.UpdateMany(context.Background(),
		bson.D{{Name: "kind", Value: "login"}},
		bson.D{{Name: "$inc", Value: bson.D{{Name: "level", Value: 10}}}})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.MatchedCount)

	n, err := coll.Count(context.Background(), bson.D{{Name: "level", Value: 11}})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestCollection_ReplaceOne(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertOne(context.Background(), bson.M{"_id": 1, "kind": "login", "level": 1})
	require.NoError(t, err)

	result, err := coll.ReplaceOne(context.Background(),
		bson.D{{Name: "_id", Value: 1}},
		bson.D{{Name: "kind", Value: "logout"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.MatchedCount)

	var found bson.M
	ok, err := coll.FindOne(context.Background(), bson.D{{Name: "_id", Value: 1}}, &found)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "logout", found["kind"])
	require.NotContains(t, found, "level")

	// an operator style document is rejected
	_, err = coll.ReplaceOne(context.Background(),
		bson.D{{Name: "_id", Value: 1}},
		bson.D{{Name: "$set", Value: bson.D{{Name: "kind", Value: "x"}}}})
	require.Error(t, err)
}

func TestCollection_Save(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	result, err := coll.Save(context.Background(), bson.M{"_id": "e1", "level": 1})
	require.NoError(t, err)
	require.Equal(t, "e1", result.UpsertedID)
	require.Equal(t, int64(0), result.MatchedCount)

	result, err = coll.Save(context.Background(), bson.M{"_id": "e1", "level": 2})
	require.NoError(t, err)
	require.Nil(t, result.UpsertedID)
	require.True(t, result.UpdatedExisting)
	require.Equal(t, int64(1), result.MatchedCount)

	var found event
	ok, err := coll.FindOne(context.Background(), bson.D{{Name: "_id", Value: "e1"}}, &found)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, found.Level)

	n, err := coll.Count(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestCollection_Find_with_options(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	docs := make([]interface{}, 0, 10)
	for i := 0; i < 10; i++ {
		docs = append(docs, bson.M{"_id": i, "level": i})
	}
	_, err := coll.InsertMany(context.Background(), docs)
	require.NoError(t, err)

	cursor, err := coll.Find(context.Background(), nil,
		rotor.Sort(bson.D{{Name: "level", Value: -1}}),
		rotor.Skip(2),
		rotor.Limit(3),
		rotor.BatchSize(2),
		rotor.Projection(bson.D{{Name: "level", Value: 1}}))
	require.NoError(t, err)
	defer cursor.Close(context.Background())

	var levels []int
	var doc bson.M
	for cursor.Next(context.Background(), &doc) {
		require.NotContains(t, doc, "kind")
		levels = append(levels, doc["level"].(int))
	}
	require.NoError(t, cursor.Err())
	require.Equal(t, []int{7, 6, 5}, levels)
}

func TestCollection_Find_early_close_kills_server_cursor(t *testing.T) {
	t.Parallel()

	server, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	docs := make([]interface{}, 0, 10)
	for i := 0; i < 10; i++ {
		docs = append(docs, bson.M{"_id": i})
	}
	_, err := coll.InsertMany(context.Background(), docs)
	require.NoError(t, err)

	cursor, err := coll.Find(context.Background(), nil, rotor.BatchSize(3))
	require.NoError(t, err)

	var doc bson.M
	require.True(t, cursor.Next(context.Background(), &doc))
	require.NoError(t, cursor.Close(context.Background()))

	require.Eventually(t, func() bool {
		return len(server.KilledCursors()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCollection_FindOne_leaves_no_open_cursor(t *testing.T) {
	t.Parallel()

	server, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertMany(context.Background(), []interface{}{
		bson.M{"kind": "login", "level": 1},
		bson.M{"kind": "login", "level": 2},
		bson.M{"kind": "login", "level": 3},
	})
	require.NoError(t, err)

	var found event
	ok, err := coll.FindOne(context.Background(), bson.D{{Name: "kind", Value: "login"}}, &found)
	require.NoError(t, err)
	require.True(t, ok)

	require.Empty(t, server.OpenCursors())
}

func TestCollection_concurrent_finds_complete_independently(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertOne(context.Background(), bson.M{"_id": 1})
	require.NoError(t, err)

	// the slow query holds its own pooled connection, so the fast one
	// is not queued behind it
	order := make(chan string, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var doc bson.M
		_, err := coll.FindOne(context.Background(),
			bson.D{{Name: "$delay", Value: 500}, {Name: "_id", Value: 1}}, &doc)
		require.NoError(t, err)
		order <- "slow"
	}()

	time.Sleep(50 * time.Millisecond)

	go func() {
		defer wg.Done()
		var doc bson.M
		_, err := coll.FindOne(context.Background(), bson.D{{Name: "_id", Value: 1}}, &doc)
		require.NoError(t, err)
		order <- "fast"
	}()

	wg.Wait()
	close(order)
	require.Equal(t, "fast", <-order)
	require.Equal(t, "slow", <-order)
}

func TestCollection_unacknowledged_writes_become_visible(t *testing.T) {
	t.Parallel()

	server, client := startClient(t, "?w=0")
	coll := client.Database("test").Collection("events")

	result, err := coll.InsertOne(context.Background(), bson.M{"_id": 1})
	require.NoError(t, err)
	require.Equal(t, 1, result.InsertedID)

	deleted, err := coll.DeleteMany(context.Background(), bson.D{{Name: "_id", Value: 2}})
	require.NoError(t, err)
	require.Nil(t, deleted)

	// the write is fire and forget, so observe it through a second,
	// acknowledged client
	reader, err := rotor.NewClient("mongodb://" + server.Addr())
	require.NoError(t, err)
	t.Cleanup(reader.Close)

	readColl := reader.Database("test").Collection("events")
	require.Eventually(t, func() bool {
		n, err := readColl.Count(context.Background(), nil)
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCollection_Distinct_and_Drop(t *testing.T) {
	t.Parallel()

	_, client := startClient(t, "")
	coll := client.Database("test").Collection("events")

	_, err := coll.InsertMany(context.Background(), []interface{}{
		bson.M{"kind": "login"},
		bson.M{"kind": "logout"},
		bson.M{"kind": "login"},
	})
	require.NoError(t, err)

	kinds, err := coll.Distinct(context.Background(), "kind", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []interface{}{"login", "logout"}, kinds)

	require.NoError(t, coll.Drop(context.Background()))

	n, err := coll.Count(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	// dropping again is fine
	require.NoError(t, coll.Drop(context.Background()))
}
