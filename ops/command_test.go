package ops_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/ops"
)

func TestCount(t *testing.T) {
	t.Parallel()

	_, s := startServerAndPool(t)
	ns := ops.NewNamespace("test", "items")
	insertTestDocs(t, s, ns, 5)

	n, err := ops.Count(context.Background(), s, ns, nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	n, err = ops.Count(context.Background(), s, ns, bson.D{{Name: "v", Value: 20}})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestDistinct(t *testing.T) {
	t.Parallel()

	_, s := startServerAndPool(t)
	ns := ops.NewNamespace("test", "items")

	docs := []interface{}{
		bson.D{{Name: "_id", Value: 1}, {Name: "tag", Value: "a"}},
		bson.D{{Name: "_id", Value: 2}, {Name: "tag", Value: "b"}},
		bson.D{{Name: "_id", Value: 3}, {Name: "tag", Value: "a"}},
	}
	_, err := ops.Insert(context.Background(), s, ns, nil, docs)
	require.NoError(t, err)

	values, err := ops.Distinct(context.Background(), s, ns, "tag", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []interface{}{"a", "b"}, values)
}

func TestDropCollection(t *testing.T) {
	t.Parallel()

	_, s := startServerAndPool(t)
	ns := ops.NewNamespace("test", "items")
	insertTestDocs(t, s, ns, 2)

	require.NoError(t, ops.DropCollection(context.Background(), s, ns))

	n, err := ops.Count(context.Background(), s, ns, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	// dropping a collection that no longer exists is fine
	require.NoError(t, ops.DropCollection(context.Background(), s, ns))
}

func TestRun(t *testing.T) {
	t.Parallel()

	_, s := startServerAndPool(t)

	var result struct {
		OK int `bson:"ok"`
	}
	err := ops.Run(context.Background(), s, "admin", bson.D{{Name: "ping", Value: 1}}, &result)
	require.NoError(t, err)
	require.Equal(t, 1, result.OK)
}

func TestNamespace(t *testing.T) {
	t.Parallel()

	ns := ops.NewNamespace("foo", "bar.baz")
	require.Equal(t, "foo.bar.baz", ns.FullName())

	_, err := ops.Insert(context.Background(), nil, ops.NewNamespace("bar.baz", "foo"), nil, nil)
	require.Error(t, err)

	_, err = ops.Insert(context.Background(), nil, ops.NewNamespace("bar baz", "foo"), nil, nil)
	require.Error(t, err)

	_, err = ops.Insert(context.Background(), nil, ops.NewNamespace("bar", ""), nil, nil)
	require.Error(t, err)

	parsed := ops.ParseNamespace("foo.bar.baz")
	require.Equal(t, "foo", parsed.DB)
	require.Equal(t, "bar.baz", parsed.Collection)
}
