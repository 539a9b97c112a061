package wiretest

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/msg"
)

const (
	maxBSONObjectSize   = 16 * 1024 * 1024
	maxMessageSizeBytes = 48 * 1024 * 1024
	maxWriteBatchSize   = 1000
)

// NewServer creates an in-process server speaking the binary wire
// protocol against an in-memory document store. It exists so the
// driver can be tested end to end without a real deployment.
func NewServer() *Server {
	return &Server{
		store: newStore(),
		codec: msg.NewWireProtocolCodec(),
	}
}

// Server is an in-process wire protocol server.
type Server struct {
	store *store
	codec msg.Codec

	// Compressors the server advertises during the handshake.
	Compressors []string

	ln         net.Listener
	wg         sync.WaitGroup
	mu         sync.Mutex
	conns      map[net.Conn]struct{}
	closed     bool
	nextConnID int32
}

// Start listens on a random loopback port.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.serve(ln)
	return nil
}

// StartIPv6 listens on a random port on the IPv6 loopback. It fails
// where the host has no IPv6 support.
func (s *Server) StartIPv6() error {
	ln, err := net.Listen("tcp6", "[::1]:0")
	if err != nil {
		return err
	}
	s.serve(ln)
	return nil
}

// StartTLS listens on a random loopback port, wrapping every accepted
// connection with the given TLS config.
func (s *Server) StartTLS(config *tls.Config) error {
	ln, err := tls.Listen("tcp", "127.0.0.1:0", config)
	if err != nil {
		return err
	}
	s.serve(ln)
	return nil
}

func (s *Server) serve(ln net.Listener) {
	s.ln = ln
	s.conns = make(map[net.Conn]struct{})
	s.wg.Add(1)
	go s.acceptLoop()
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops the listener and closes every open connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	// serveConn deletes map entries under the mutex, so snapshot the
	// connections before closing them outside it
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.ln.Close()
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

// KilledCursors returns the ids of every cursor killed so far.
func (s *Server) KilledCursors() []int64 {
	return s.store.killedCursors()
}

// OpenCursors returns the ids of every cursor still open.
func (s *Server) OpenCursors() []int64 {
	return s.store.openCursors()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(c)
	}
}

// session holds the per connection state the legacy protocol depends
// on, notably the outcome of the last write for getLastError.
type session struct {
	connID    int32
	lastError gleState
}

type gleState struct {
	n               int
	updatedExisting bool
	upsertedID      interface{}
	err             string
	code            int32
}

func (s *Server) serveConn(c net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.Close()
	}()

	sess := &session{connID: atomic.AddInt32(&s.nextConnID, 1)}

	for {
		m, err := s.codec.Decode(c)
		if err != nil {
			return
		}

		var reply *msg.Reply
		switch req := m.(type) {
		case *msg.Query:
			reply = s.handleQuery(sess, req)
		case *msg.Insert:
			s.handleInsert(sess, req)
		case *msg.Update:
			s.handleUpdate(sess, req)
		case *msg.Delete:
			s.handleDelete(sess, req)
		case *msg.GetMore:
			reply = s.handleGetMore(req)
		case *msg.KillCursors:
			s.store.killCursors(req.CursorIDs)
		}

		if reply != nil {
			if err := s.codec.Encode(c, reply); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleInsert(sess *session, req *msg.Insert) {
	docs, err := decodeAll(req.Documents)
	if err != nil {
		sess.lastError = gleState{err: err.Error(), code: 22}
		return
	}

	continueOnError := req.Flags&msg.ContinueOnError != 0
	n, err := s.store.insert(req.FullCollectionName, docs, continueOnError)
	if err != nil {
		sess.lastError = gleState{n: n, err: err.Error(), code: 11000}
		return
	}
	sess.lastError = gleState{n: n}
}

func (s *Server) handleUpdate(sess *session, req *msg.Update) {
	selector, err := decodeDoc(req.Selector)
	if err != nil {
		sess.lastError = gleState{err: err.Error(), code: 22}
		return
	}
	update, err := decodeDoc(req.Update)
	if err != nil {
		sess.lastError = gleState{err: err.Error(), code: 22}
		return
	}

	multi := req.Flags&msg.MultiUpdate != 0
	upsert := req.Flags&msg.Upsert != 0
	n, updatedExisting, upsertedID, err := s.store.update(req.FullCollectionName, selector, update, multi, upsert)
	if err != nil {
		sess.lastError = gleState{err: err.Error(), code: 11000}
		return
	}
	sess.lastError = gleState{n: n, updatedExisting: updatedExisting, upsertedID: upsertedID}
}

func (s *Server) handleDelete(sess *session, req *msg.Delete) {
	selector, err := decodeDoc(req.Selector)
	if err != nil {
		sess.lastError = gleState{err: err.Error(), code: 22}
		return
	}

	single := req.Flags&msg.SingleRemove != 0
	n := s.store.remove(req.FullCollectionName, selector, single)
	sess.lastError = gleState{n: n}
}

func (s *Server) handleQuery(sess *session, req *msg.Query) *msg.Reply {
	db, coll := splitNamespace(req.FullCollectionName)
	if coll == "$cmd" {
		return s.handleCommand(sess, db, req)
	}

	filter, err := decodeDoc(req.Query)
	if err != nil {
		return failureReply(req.ReqID, err.Error())
	}

	var orderBy bson.D
	if wrapped, ok := lookup(filter, "$query"); ok {
		if ob, found := lookup(filter, "$orderby"); found {
			orderBy, _ = ob.(bson.D)
		}
		filter, _ = wrapped.(bson.D)
	}

	applyDelay(filter)

	docs := s.store.find(req.FullCollectionName, filter)
	sortDocs(docs, orderBy)
	docs = project(docs, req.ReturnFieldsSelector)

	if req.NumberToSkip > 0 {
		if int(req.NumberToSkip) >= len(docs) {
			docs = nil
		} else {
			docs = docs[req.NumberToSkip:]
		}
	}

	batchSize := int(req.NumberToReturn)
	singleBatch := false
	if batchSize < 0 {
		batchSize = -batchSize
		singleBatch = true
	}
	// the legacy protocol treats numberToReturn 1 like -1: one batch,
	// no cursor left open
	if batchSize == 1 {
		singleBatch = true
	}
	if batchSize == 0 || batchSize > len(docs) {
		batchSize = len(docs)
	}

	batch := docs[:batchSize]
	var cursorID int64
	if !singleBatch && batchSize < len(docs) {
		cursorID = s.store.openCursor(req.FullCollectionName, docs)
		// the first batch was already consumed
		s.store.advance(cursorID, batchSize)
	}

	return docsReply(req.ReqID, cursorID, 0, batch)
}

func (s *Server) handleGetMore(req *msg.GetMore) *msg.Reply {
	batch, startingFrom, ok, exhausted := s.store.advance(req.CursorID, int(req.NumberToReturn))
	if !ok {
		return &msg.Reply{
			ReqID:         msg.NextRequestID(),
			RespTo:        req.ReqID,
			ResponseFlags: msg.CursorNotFound,
		}
	}

	cursorID := req.CursorID
	if exhausted {
		cursorID = 0
	}
	return docsReply(req.ReqID, cursorID, int32(startingFrom), batch)
}

func (s *Server) handleCommand(sess *session, db string, req *msg.Query) *msg.Reply {
	cmd, err := decodeDoc(req.Query)
	if err != nil || len(cmd) == 0 {
		return failureReply(req.ReqID, "invalid command document")
	}

	name := cmd[0].Name
	switch strings.ToLower(name) {
	case "ismaster":
		return s.isMasterReply(req, cmd)
	case "buildinfo":
		return commandReply(req.ReqID, bson.D{
			{Name: "version", Value: "3.6.4"},
			{Name: "gitVersion", Value: "wiretest"},
			{Name: "versionArray", Value: []int{3, 6, 4, 0}},
			{Name: "ok", Value: 1},
		})
	case "getlasterror":
		le := sess.lastError
		doc := bson.D{
			{Name: "connectionId", Value: sess.connID},
			{Name: "n", Value: le.n},
			{Name: "updatedExisting", Value: le.updatedExisting},
		}
		if le.upsertedID != nil {
			doc = append(doc, bson.DocElem{Name: "upserted", Value: le.upsertedID})
		}
		if le.err != "" {
			doc = append(doc, bson.DocElem{Name: "err", Value: le.err})
			doc = append(doc, bson.DocElem{Name: "code", Value: le.code})
		}
		doc = append(doc, bson.DocElem{Name: "ok", Value: 1})
		return commandReply(req.ReqID, doc)
	case "ping":
		return commandReply(req.ReqID, bson.D{{Name: "ok", Value: 1}})
	case "count":
		coll, _ := cmd[0].Value.(string)
		filter := subdocument(cmd, "query")
		applyDelay(filter)
		n := len(s.store.find(db+"."+coll, filter))
		return commandReply(req.ReqID, bson.D{
			{Name: "n", Value: n},
			{Name: "ok", Value: 1},
		})
	case "distinct":
		coll, _ := cmd[0].Value.(string)
		key, _ := lookup(cmd, "key")
		keyName, _ := key.(string)
		filter := subdocument(cmd, "query")
		var values []interface{}
		for _, doc := range s.store.find(db+"."+coll, filter) {
			v, ok := lookup(doc, keyName)
			if !ok {
				continue
			}
			seen := false
			for _, existing := range values {
				if valuesEqual(existing, v) {
					seen = true
					break
				}
			}
			if !seen {
				values = append(values, v)
			}
		}
		return commandReply(req.ReqID, bson.D{
			{Name: "values", Value: values},
			{Name: "ok", Value: 1},
		})
	case "drop":
		coll, _ := cmd[0].Value.(string)
		if !s.store.drop(db + "." + coll) {
			return commandReply(req.ReqID, bson.D{
				{Name: "ok", Value: 0},
				{Name: "errmsg", Value: "ns not found"},
				{Name: "code", Value: 26},
				{Name: "codeName", Value: "NamespaceNotFound"},
			})
		}
		return commandReply(req.ReqID, bson.D{{Name: "ok", Value: 1}})
	}

	return commandReply(req.ReqID, bson.D{
		{Name: "ok", Value: 0},
		{Name: "errmsg", Value: fmt.Sprintf("no such command: '%s'", name)},
		{Name: "code", Value: 59},
		{Name: "codeName", Value: "CommandNotFound"},
	})
}

func (s *Server) isMasterReply(req *msg.Query, cmd bson.D) *msg.Reply {
	doc := bson.D{
		{Name: "ismaster", Value: true},
		{Name: "maxBsonObjectSize", Value: maxBSONObjectSize},
		{Name: "maxMessageSizeBytes", Value: maxMessageSizeBytes},
		{Name: "maxWriteBatchSize", Value: maxWriteBatchSize},
		{Name: "minWireVersion", Value: 0},
		{Name: "maxWireVersion", Value: 6},
	}

	if requested, ok := lookup(cmd, "compression"); ok {
		var negotiated []string
		if names, ok := requested.([]interface{}); ok {
			for _, n := range names {
				name, _ := n.(string)
				for _, supported := range s.Compressors {
					if name == supported {
						negotiated = append(negotiated, name)
					}
				}
			}
		}
		if len(negotiated) > 0 {
			doc = append(doc, bson.DocElem{Name: "compression", Value: negotiated})
		}
	}

	doc = append(doc, bson.DocElem{Name: "ok", Value: 1})
	return commandReply(req.ReqID, doc)
}

func commandReply(respTo int32, doc bson.D) *msg.Reply {
	return docsReply(respTo, 0, 0, []bson.D{doc})
}

func failureReply(respTo int32, errmsg string) *msg.Reply {
	reply := docsReply(respTo, 0, 0, []bson.D{{
		{Name: "$err", Value: errmsg},
		{Name: "code", Value: 2},
	}})
	reply.ResponseFlags = msg.QueryFailure
	return reply
}

func docsReply(respTo int32, cursorID int64, startingFrom int32, docs []bson.D) *msg.Reply {
	var body []byte
	for _, doc := range docs {
		b, err := bson.Marshal(doc)
		if err != nil {
			panic(err)
		}
		body = append(body, b...)
	}
	return &msg.Reply{
		ReqID:          msg.NextRequestID(),
		RespTo:         respTo,
		CursorID:       cursorID,
		StartingFrom:   startingFrom,
		NumberReturned: int32(len(docs)),
		DocumentsBytes: body,
	}
}

func decodeDoc(v interface{}) (bson.D, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.(*bson.Raw)
	if !ok {
		return nil, fmt.Errorf("unexpected document type %T", v)
	}
	var doc bson.D
	if err := raw.Unmarshal(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeAll(vs []interface{}) ([]bson.D, error) {
	docs := make([]bson.D, 0, len(vs))
	for _, v := range vs {
		doc, err := decodeDoc(v)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func subdocument(cmd bson.D, name string) bson.D {
	v, ok := lookup(cmd, name)
	if !ok {
		return nil
	}
	doc, _ := v.(bson.D)
	return doc
}

func splitNamespace(ns string) (db, coll string) {
	parts := strings.SplitN(ns, ".", 2)
	if len(parts) != 2 {
		return ns, ""
	}
	return parts[0], parts[1]
}

// applyDelay sleeps when the filter carries a $delay condition holding
// a millisecond count. Tests use it to control completion order.
func applyDelay(filter bson.D) {
	v, ok := lookup(filter, "$delay")
	if !ok {
		return
	}
	if ms, isNum := asFloat(v); isNum {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}

func sortDocs(docs []bson.D, orderBy bson.D) {
	if len(orderBy) == 0 {
		return
	}
	key := orderBy[0].Name
	dir, _ := asFloat(orderBy[0].Value)

	sortSlice(docs, func(a, b bson.D) bool {
		av, _ := lookup(a, key)
		bv, _ := lookup(b, key)
		af, aNum := asFloat(av)
		bf, bNum := asFloat(bv)
		var less bool
		if aNum && bNum {
			less = af < bf
		} else {
			less = fmt.Sprintf("%v", av) < fmt.Sprintf("%v", bv)
		}
		if dir < 0 {
			return !less
		}
		return less
	})
}

func sortSlice(docs []bson.D, less func(a, b bson.D) bool) {
	// insertion sort keeps equal documents in their stored order
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0 && less(docs[j], docs[j-1]); j-- {
			docs[j], docs[j-1] = docs[j-1], docs[j]
		}
	}
}

func project(docs []bson.D, selector interface{}) []bson.D {
	fields, err := decodeDoc(selector)
	if err != nil || len(fields) == 0 {
		return docs
	}

	include := false
	for _, f := range fields {
		if v, _ := asFloat(f.Value); v != 0 && f.Name != "_id" {
			include = true
		}
	}

	out := make([]bson.D, 0, len(docs))
	for _, doc := range docs {
		var projected bson.D
		for _, elem := range doc {
			v, specified := lookup(fields, elem.Name)
			keep := !include
			if specified {
				f, _ := asFloat(v)
				keep = f != 0
			} else if elem.Name == "_id" {
				keep = true
			}
			if keep {
				projected = append(projected, elem)
			}
		}
		out = append(out, projected)
	}
	return out
}
