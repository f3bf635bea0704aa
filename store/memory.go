package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore implements Store on per-collection maps with per-document
// versions. Transactions record the version of every document they read
// and commit only if none moved, which reproduces the backend's
// optimistic-concurrency behavior closely enough for tests and local runs.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]memDoc
	watchers    map[*memWatcher]struct{}
	version     uint64
	commitHook  func() error
}

type memDoc struct {
	data    bson.Raw
	version uint64
}

type memWatcher struct {
	collection string
	filter     Filter
	sub        *Subscription
}

type readKey struct {
	collection string
	id         string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]memDoc),
		watchers:    make(map[*memWatcher]struct{}),
	}
}

// SetCommitHook installs a hook run just before a transaction commits.
// A non-nil error fails the commit with ErrWriteFailure and discards every
// staged write. Test seam for simulating backend write failures.
func (m *MemoryStore) SetCommitHook(hook func() error) {
	m.mu.Lock()
	m.commitHook = hook
	m.mu.Unlock()
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return bson.Unmarshal(d.data, out)
}

func (m *MemoryStore) Query(ctx context.Context, collection string, filter Filter, out any) error {
	m.mu.Lock()
	raws := m.queryLocked(collection, filter)
	m.mu.Unlock()
	return decodeAll(raws, out)
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)
	w := &memWatcher{collection: collection, filter: filter, sub: sub}

	m.mu.Lock()
	m.watchers[w] = struct{}{}
	sub.emit(Event{Docs: m.queryLocked(collection, filter)})
	m.mu.Unlock()

	go func() {
		<-wctx.Done()
		m.mu.Lock()
		delete(m.watchers, w)
		m.mu.Unlock()
		sub.markDetached()
		sub.finish()
	}()
	return sub, nil
}

func (m *MemoryStore) SubscribeDoc(ctx context.Context, collection, id string) (*Subscription, error) {
	return m.Subscribe(ctx, collection, Where().Eq("_id", id))
}

func (m *MemoryStore) Transaction(ctx context.Context, policy RetryPolicy, body func(tx Tx) error) error {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		err := m.runOnce(body)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAborted) && (policy.MaxAttempts == 0 || attempts < policy.MaxAttempts) {
			continue
		}
		return err
	}
}

func (m *MemoryStore) runOnce(body func(tx Tx) error) error {
	tx := &memTx{store: m, reads: make(map[readKey]uint64)}
	if err := body(tx); err != nil {
		return err
	}
	if tx.err != nil {
		return tx.err
	}
	return m.commit(tx)
}

func (m *MemoryStore) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, readVersion := range tx.reads {
		var current uint64
		if d, ok := m.collections[key.collection][key.id]; ok {
			current = d.version
		}
		if current != readVersion {
			return fmt.Errorf("concurrent write on %s/%s: %w", key.collection, key.id, ErrAborted)
		}
	}

	if m.commitHook != nil {
		if err := m.commitHook(); err != nil {
			return fmt.Errorf("commit rejected: %v: %w", err, ErrWriteFailure)
		}
	}

	touched := make(map[string]bool)
	for _, op := range tx.ops {
		m.applyLocked(op)
		touched[op.collection] = true
	}
	for w := range m.watchers {
		if touched[w.collection] {
			w.sub.emit(Event{Docs: m.queryLocked(w.collection, w.filter)})
		}
	}
	return nil
}

// queryLocked evaluates a filter over one collection, ordered by id so
// results are stable. Caller holds the lock.
func (m *MemoryStore) queryLocked(collection string, filter Filter) []bson.Raw {
	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var raws []bson.Raw
	for _, id := range ids {
		var decoded bson.M
		if err := bson.Unmarshal(docs[id].data, &decoded); err != nil {
			continue
		}
		if filter.Matches(decoded) {
			raws = append(raws, docs[id].data)
		}
	}
	return raws
}

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opPush
	opPull
	opDelete
)

type memOp struct {
	kind       opKind
	collection string
	id         string
	doc        bson.Raw
	fields     map[string]any
	field      string
	values     []any
}

func (m *MemoryStore) applyLocked(op memOp) {
	coll := m.collections[op.collection]
	if coll == nil {
		coll = make(map[string]memDoc)
		m.collections[op.collection] = coll
	}

	switch op.kind {
	case opSet:
		m.version++
		coll[op.id] = memDoc{data: op.doc, version: m.version}

	case opDelete:
		delete(coll, op.id)

	case opUpdate, opPush, opPull:
		d, ok := coll[op.id]
		if !ok {
			return
		}
		var decoded bson.M
		if err := bson.Unmarshal(d.data, &decoded); err != nil {
			return
		}
		switch op.kind {
		case opUpdate:
			for k, v := range op.fields {
				decoded[k] = v
			}
		case opPush:
			arr, _ := decoded[op.field].(primitive.A)
			for _, v := range op.values {
				present := false
				for _, existing := range arr {
					if valueEq(existing, v) {
						present = true
						break
					}
				}
				if !present {
					arr = append(arr, v)
				}
			}
			decoded[op.field] = arr
		case opPull:
			arr, _ := decoded[op.field].(primitive.A)
			kept := make(primitive.A, 0, len(arr))
			for _, existing := range arr {
				remove := false
				for _, v := range op.values {
					if valueEq(existing, v) {
						remove = true
						break
					}
				}
				if !remove {
					kept = append(kept, existing)
				}
			}
			decoded[op.field] = kept
		}
		data, err := bson.Marshal(decoded)
		if err != nil {
			return
		}
		m.version++
		coll[op.id] = memDoc{data: data, version: m.version}
	}
}

type memTx struct {
	store *MemoryStore
	reads map[readKey]uint64
	ops   []memOp
	err   error
}

func (t *memTx) Get(collection, id string, out any) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	d, ok := t.store.collections[collection][id]
	if !ok {
		t.reads[readKey{collection, id}] = 0
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	t.reads[readKey{collection, id}] = d.version
	return bson.Unmarshal(d.data, out)
}

func (t *memTx) Set(collection, id string, doc any) {
	if t.err != nil {
		return
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		t.err = fmt.Errorf("encode %s/%s: %w", collection, id, err)
		return
	}
	t.ops = append(t.ops, memOp{kind: opSet, collection: collection, id: id, doc: data})
}

func (t *memTx) Update(collection, id string, fields map[string]any) {
	if t.err != nil {
		return
	}
	t.ops = append(t.ops, memOp{kind: opUpdate, collection: collection, id: id, fields: fields})
}

func (t *memTx) Push(collection, id, field string, values ...any) {
	if t.err != nil {
		return
	}
	t.ops = append(t.ops, memOp{kind: opPush, collection: collection, id: id, field: field, values: values})
}

func (t *memTx) Pull(collection, id, field string, values ...any) {
	if t.err != nil {
		return
	}
	t.ops = append(t.ops, memOp{kind: opPull, collection: collection, id: id, field: field, values: values})
}

func (t *memTx) Delete(collection, id string) {
	if t.err != nil {
		return
	}
	t.ops = append(t.ops, memOp{kind: opDelete, collection: collection, id: id})
}

// MemoryBlobStore keeps uploaded payloads in process memory. Test and
// local-development counterpart of the GridFS store.
type MemoryBlobStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{files: make(map[string][]byte)}
}

func (b *MemoryBlobStore) Upload(ctx context.Context, path string, r io.Reader, size int64) <-chan UploadEvent {
	events := make(chan UploadEvent, 4)
	go func() {
		defer close(events)
		data, err := io.ReadAll(r)
		if err != nil {
			events <- UploadEvent{Kind: UploadError, Err: fmt.Errorf("read payload: %w", err)}
			return
		}
		b.mu.Lock()
		b.files[path] = data
		b.mu.Unlock()
		events <- UploadEvent{Kind: UploadProgress, Fraction: 1}
		events <- UploadEvent{Kind: UploadSuccess, URL: "/api/blobs/" + path}
	}()
	return events
}

func (b *MemoryBlobStore) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	delete(b.files, path)
	b.mu.Unlock()
	return nil
}

// Blob returns a stored payload; used by tests.
func (b *MemoryBlobStore) Blob(path string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[path]
	return data, ok
}
