package wiretest

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/mgo.v2/bson"
)

// store is the in-memory document store behind a Server. Documents
// are kept per namespace in insertion order.
type store struct {
	mu           sync.Mutex
	namespaces   map[string][]bson.D
	order        []string
	cursors      map[int64]*storedCursor
	nextCursorID int64
	killed       []int64
}

type storedCursor struct {
	ns   string
	docs []bson.D
	pos  int
}

func newStore() *store {
	return &store{
		namespaces: make(map[string][]bson.D),
		cursors:    make(map[int64]*storedCursor),
	}
}

func (s *store) insert(ns string, docs []bson.D, continueOnError bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.namespaces[ns]
	n := 0
	var firstErr error
	for _, doc := range docs {
		id, ok := lookup(doc, "_id")
		if ok && isDuplicate(existing, id) {
			if firstErr == nil {
				firstErr = fmt.Errorf("E11000 duplicate key error collection: %s index: _id_ dup key: { _id: %v }", ns, id)
			}
			// an ordered insert stops here, but the documents before
			// the offending one stay committed
			if !continueOnError {
				break
			}
			continue
		}
		existing = append(existing, doc)
		n++
	}

	if _, ok := s.namespaces[ns]; !ok {
		s.order = append(s.order, ns)
	}
	s.namespaces[ns] = existing
	return n, firstErr
}

func isDuplicate(docs []bson.D, id interface{}) bool {
	for _, doc := range docs {
		otherID, hasID := lookup(doc, "_id")
		if hasID && valuesEqual(id, otherID) {
			return true
		}
	}
	return false
}

func (s *store) update(ns string, selector, update bson.D, multi, upsert bool) (n int, updatedExisting bool, upsertedID interface{}, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.namespaces[ns]
	for i, doc := range docs {
		if !matches(doc, selector) {
			continue
		}
		docs[i] = applyUpdate(doc, update)
		n++
		updatedExisting = true
		if !multi {
			break
		}
	}

	if n == 0 && upsert {
		doc := applyUpdate(upsertSeed(selector, update), update)
		if _, ok := lookup(doc, "_id"); !ok {
			doc = append(bson.D{{Name: "_id", Value: bson.NewObjectId()}}, doc...)
		}
		if _, ok := s.namespaces[ns]; !ok {
			s.order = append(s.order, ns)
		}
		s.namespaces[ns] = append(docs, doc)
		upsertedID, _ = lookup(doc, "_id")
		return 1, false, upsertedID, nil
	}

	s.namespaces[ns] = docs
	return n, updatedExisting, nil, nil
}

func (s *store) remove(ns string, selector bson.D, single bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.namespaces[ns]
	kept := docs[:0]
	n := 0
	for _, doc := range docs {
		if matches(doc, selector) && (!single || n == 0) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	s.namespaces[ns] = kept
	return n
}

func (s *store) find(ns string, filter bson.D) []bson.D {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []bson.D
	for _, doc := range s.namespaces[ns] {
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out
}

func (s *store) drop(ns string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.namespaces[ns]; !ok {
		return false
	}
	delete(s.namespaces, ns)
	for i, name := range s.order {
		if name == ns {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *store) openCursor(ns string, docs []bson.D) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCursorID++
	id := s.nextCursorID
	s.cursors[id] = &storedCursor{ns: ns, docs: docs}
	return id
}

// advance returns the next batch for the cursor, reporting whether the
// cursor exists and whether it was exhausted and discarded.
func (s *store) advance(cursorID int64, batchSize int) (batch []bson.D, startingFrom int, ok, exhausted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, found := s.cursors[cursorID]
	if !found {
		return nil, 0, false, false
	}

	startingFrom = c.pos
	remaining := len(c.docs) - c.pos
	if batchSize <= 0 || batchSize > remaining {
		batchSize = remaining
	}
	batch = c.docs[c.pos : c.pos+batchSize]
	c.pos += batchSize

	if c.pos >= len(c.docs) {
		delete(s.cursors, cursorID)
		return batch, startingFrom, true, true
	}
	return batch, startingFrom, true, false
}

func (s *store) killCursors(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.cursors, id)
		s.killed = append(s.killed, id)
	}
}

func (s *store) killedCursors() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.killed...)
}

func (s *store) openCursors() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.cursors))
	for id := range s.cursors {
		ids = append(ids, id)
	}
	return ids
}

func lookup(doc bson.D, name string) (interface{}, bool) {
	for _, elem := range doc {
		if elem.Name == name {
			return elem.Value, true
		}
	}
	return nil, false
}

// matches reports whether doc satisfies a filter of top level
// equality conditions.
func matches(doc bson.D, filter bson.D) bool {
	for _, cond := range filter {
		if strings.HasPrefix(cond.Name, "$") {
			continue
		}
		v, ok := lookup(doc, cond.Name)
		if !ok || !valuesEqual(v, cond.Value) {
			return false
		}
	}
	return true
}

// valuesEqual compares two decoded bson values, treating all numeric
// types as equivalent.
func valuesEqual(a, b interface{}) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// applyUpdate applies an update document to doc. Documents containing
// $set or $inc are treated as operator updates, anything else replaces
// the document wholesale keeping its _id.
func applyUpdate(doc bson.D, update bson.D) bson.D {
	hasOperator := false
	for _, elem := range update {
		if strings.HasPrefix(elem.Name, "$") {
			hasOperator = true
			break
		}
	}

	if !hasOperator {
		id, hadID := lookup(doc, "_id")
		if _, updHasID := lookup(update, "_id"); !updHasID && hadID {
			return append(bson.D{{Name: "_id", Value: id}}, update...)
		}
		return update
	}

	out := append(bson.D(nil), doc...)
	for _, op := range update {
		fields, ok := op.Value.(bson.D)
		if !ok {
			continue
		}
		for _, f := range fields {
			switch op.Name {
			case "$set":
				out = setField(out, f.Name, f.Value)
			case "$inc":
				cur, _ := lookup(out, f.Name)
				curF, _ := asFloat(cur)
				incF, _ := asFloat(f.Value)
				out = setField(out, f.Name, curF+incF)
			}
		}
	}
	return out
}

func setField(doc bson.D, name string, value interface{}) bson.D {
	for i, elem := range doc {
		if elem.Name == name {
			doc[i].Value = value
			return doc
		}
	}
	return append(doc, bson.DocElem{Name: name, Value: value})
}

// upsertSeed builds the base document for an upsert from the plain
// equality conditions of the selector.
func upsertSeed(selector, update bson.D) bson.D {
	hasOperator := false
	for _, elem := range update {
		if strings.HasPrefix(elem.Name, "$") {
			hasOperator = true
			break
		}
	}
	if !hasOperator {
		return nil
	}

	var seed bson.D
	for _, cond := range selector {
		if !strings.HasPrefix(cond.Name, "$") {
			seed = append(seed, cond)
		}
	}
	return seed
}
