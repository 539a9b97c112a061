package msg

// InsertFlags are the flags in an Insert.
type InsertFlags int32

// InsertFlags constants.
const (
	// ContinueOnError makes the server keep inserting the
	// remaining documents after one fails.
	ContinueOnError InsertFlags = 1 << iota
)

// UpdateFlags are the flags in an Update.
type UpdateFlags int32

// UpdateFlags constants.
const (
	Upsert UpdateFlags = 1 << iota
	MultiUpdate
)

// DeleteFlags are the flags in a Delete.
type DeleteFlags int32

// DeleteFlags constants.
const (
	SingleRemove DeleteFlags = 1 << iota
)

// Insert is a message inserting one or more documents into a
// collection namespace. The server sends no reply; outcome is
// observed through a subsequent getLastError command on the
// same connection.
type Insert struct {
	ReqID              int32
	Flags              InsertFlags
	FullCollectionName string
	Documents          []interface{}
}

// Update is a message updating the documents matched by Selector.
// The server sends no reply.
type Update struct {
	ReqID              int32
	FullCollectionName string
	Flags              UpdateFlags
	Selector           interface{}
	Update             interface{}
}

// Delete is a message removing the documents matched by Selector.
// The server sends no reply.
type Delete struct {
	ReqID              int32
	FullCollectionName string
	Flags              DeleteFlags
	Selector           interface{}
}

// GetMore is a message fetching the next batch of an open
// server-side cursor.
type GetMore struct {
	ReqID              int32
	FullCollectionName string
	NumberToReturn     int32
	CursorID           int64
}

// KillCursors is a message releasing server-side cursors. The
// server sends no reply; delivery is best effort.
type KillCursors struct {
	ReqID     int32
	CursorIDs []int64
}
