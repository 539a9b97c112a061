package ops

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg"
)

type findConfig struct {
	limit      int32
	skip       int32
	batchSize  int32
	sort       interface{}
	projection interface{}
	flags      msg.QueryFlags
}

// FindOption configures a query.
type FindOption func(*findConfig)

// FindLimit caps the total number of returned documents.
func FindLimit(limit int32) FindOption {
	return func(cfg *findConfig) {
		cfg.limit = limit
	}
}

// FindSkip skips the given number of matching documents.
func FindSkip(skip int32) FindOption {
	return func(cfg *findConfig) {
		cfg.skip = skip
	}
}

// FindBatchSize sets the number of documents fetched per round trip.
func FindBatchSize(batchSize int32) FindOption {
	return func(cfg *findConfig) {
		cfg.batchSize = batchSize
	}
}

// FindSort orders the results by the given sort document.
func FindSort(sort interface{}) FindOption {
	return func(cfg *findConfig) {
		cfg.sort = sort
	}
}

// FindProjection restricts the fields of the returned documents.
func FindProjection(projection interface{}) FindOption {
	return func(cfg *findConfig) {
		cfg.projection = projection
	}
}

// FindTailable returns a cursor that stays open after the initial
// results are exhausted.
func FindTailable() FindOption {
	return func(cfg *findConfig) {
		cfg.flags |= msg.TailableCursor
	}
}

// Find executes a query and returns a cursor over its results.
func Find(ctx context.Context, s Server, ns Namespace, filter interface{}, options ...FindOption) (Cursor, error) {
	if err := ns.validate(); err != nil {
		return nil, err
	}

	var cfg findConfig
	for _, option := range options {
		option(&cfg)
	}

	query := filter
	if cfg.sort != nil {
		if query == nil {
			query = bson.D{}
		}
		query = bson.D{
			{Name: "$query", Value: query},
			{Name: "$orderby", Value: cfg.sort},
		}
	}

	request := &msg.Query{
		ReqID:                msg.NextRequestID(),
		Flags:                cfg.flags,
		FullCollectionName:   ns.FullName(),
		NumberToSkip:         cfg.skip,
		NumberToReturn:       firstBatchSize(cfg.limit, cfg.batchSize),
		Query:                query,
		ReturnFieldsSelector: cfg.projection,
	}

	c, err := s.Connection(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err = c.Write(ctx, request); err != nil {
		return nil, internal.WrapError(err, "failed to execute find")
	}

	resp, err := c.Read(ctx, request.RequestID())
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute find")
	}

	reply, err := readQueryReply(resp)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute find")
	}

	return newCursor(reply, ns, cfg.batchSize, cfg.limit, s)
}

// firstBatchSize computes the document count requested by the initial
// query. A limit below the batch size caps the first batch since no
// further batches will be requested.
func firstBatchSize(limit, batchSize int32) int32 {
	if limit > 0 && (batchSize == 0 || limit < batchSize) {
		return limit
	}
	return batchSize
}

func readQueryReply(resp msg.Response) (*msg.Reply, error) {
	reply, ok := resp.(*msg.Reply)
	if !ok {
		return nil, conn.NewCommandResponseError("unknown response message type")
	}

	if reply.ResponseFlags&msg.QueryFailure != 0 {
		var doc bson.D
		if ok, err := reply.Iter().One(&doc); err != nil || !ok {
			return nil, conn.ErrUnknownCommandFailure
		}
		return nil, &conn.CommandFailureError{
			Msg:      "query failure",
			Response: doc,
		}
	}

	return reply, nil
}
