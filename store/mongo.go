package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Error labels the server attaches to retriable transaction failures.
const (
	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"
)

// MongoStore implements Store on a MongoDB database: sessions and
// multi-document transactions for mutation, change streams for live
// subscriptions.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials the database and verifies the connection.
func Connect(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping %s: %w", uri, err)
	}
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Database exposes the underlying handle for GridFS wiring.
func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

func (s *MongoStore) Get(ctx context.Context, collection, id string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %v: %w", collection, id, err, ErrWriteFailure)
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filter Filter, out any) error {
	cursor, err := s.db.Collection(collection).Find(ctx, filter.ToBSON())
	if err != nil {
		return fmt.Errorf("query %s: %v: %w", collection, err, ErrWriteFailure)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s query: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)

	stream, err := s.db.Collection(collection).Watch(wctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %v: %w", collection, err, ErrWriteFailure)
	}

	sub := newSubscription(cancel)
	go func() {
		defer func() {
			// Close detaches the server-side cursor even when wctx is
			// already cancelled, hence the fresh context.
			stream.Close(context.Background())
			sub.markDetached()
			sub.finish()
		}()

		sub.emit(s.snapshot(wctx, collection, filter))
		for stream.Next(wctx) {
			// Any relevant change invalidates the previous result; the
			// contract is a full fresh result per change, so re-run the
			// query rather than patching incrementally.
			sub.emit(s.snapshot(wctx, collection, filter))
		}
		if err := stream.Err(); err != nil && wctx.Err() == nil {
			sub.emit(Event{Err: fmt.Errorf("change stream on %s: %w", collection, err)})
		}
	}()
	return sub, nil
}

func (s *MongoStore) SubscribeDoc(ctx context.Context, collection, id string) (*Subscription, error) {
	return s.Subscribe(ctx, collection, Where().Eq("_id", id))
}

func (s *MongoStore) snapshot(ctx context.Context, collection string, filter Filter) Event {
	cursor, err := s.db.Collection(collection).Find(ctx, filter.ToBSON())
	if err != nil {
		return Event{Err: fmt.Errorf("query %s: %w", collection, err)}
	}
	defer cursor.Close(ctx)

	var raws []bson.Raw
	for cursor.Next(ctx) {
		raw := make(bson.Raw, len(cursor.Current))
		copy(raw, cursor.Current)
		raws = append(raws, raw)
	}
	if err := cursor.Err(); err != nil {
		return Event{Err: fmt.Errorf("iterate %s: %w", collection, err)}
	}
	return Event{Docs: raws}
}

func (s *MongoStore) Transaction(ctx context.Context, policy RetryPolicy, body func(tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %v: %w", err, ErrWriteFailure)
	}
	defer session.EndSession(ctx)

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		err := s.runOnce(ctx, session, body)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			if policy.MaxAttempts == 0 || attempts < policy.MaxAttempts {
				continue
			}
			return fmt.Errorf("conflict after %d attempt(s): %v: %w", attempts, err, ErrAborted)
		}
		return err
	}
}

func (s *MongoStore) runOnce(ctx context.Context, session mongo.Session, body func(tx Tx) error) error {
	return mongo.WithSession(ctx, session, func(sctx mongo.SessionContext) error {
		if err := session.StartTransaction(); err != nil {
			return fmt.Errorf("start transaction: %v: %w", err, ErrWriteFailure)
		}
		tx := &mongoTx{db: s.db, sctx: sctx}
		if err := body(tx); err != nil {
			_ = session.AbortTransaction(sctx)
			return err
		}
		if tx.err != nil {
			_ = session.AbortTransaction(sctx)
			return tx.err
		}
		return session.CommitTransaction(sctx)
	})
}

// isTransient reports whether the server labelled the failure as safe to
// retry from scratch.
func isTransient(err error) bool {
	var labeled interface{ HasErrorLabel(string) bool }
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel(labelTransient) || labeled.HasErrorLabel(labelUnknownCommit)
	}
	return false
}

// classifyWrite keeps transient labels intact for the retry loop and folds
// everything else into ErrWriteFailure.
func classifyWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrWriteFailure)
}

// mongoTx executes operations inside the session immediately and remembers
// the first failure; Transaction aborts instead of committing when any
// write failed.
type mongoTx struct {
	db   *mongo.Database
	sctx mongo.SessionContext
	err  error
}

func (t *mongoTx) Get(collection, id string, out any) error {
	if t.err != nil {
		return t.err
	}
	err := t.db.Collection(collection).FindOne(t.sctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return classifyWrite(fmt.Sprintf("read %s/%s", collection, id), err)
	}
	return nil
}

func (t *mongoTx) Set(collection, id string, doc any) {
	if t.err != nil {
		return
	}
	_, err := t.db.Collection(collection).ReplaceOne(t.sctx,
		bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	t.err = classifyWrite(fmt.Sprintf("set %s/%s", collection, id), err)
}

func (t *mongoTx) Update(collection, id string, fields map[string]any) {
	if t.err != nil {
		return
	}
	_, err := t.db.Collection(collection).UpdateOne(t.sctx,
		bson.M{"_id": id}, bson.M{"$set": fields})
	t.err = classifyWrite(fmt.Sprintf("update %s/%s", collection, id), err)
}

func (t *mongoTx) Push(collection, id, field string, values ...any) {
	if t.err != nil {
		return
	}
	_, err := t.db.Collection(collection).UpdateOne(t.sctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{field: bson.M{"$each": values}}})
	t.err = classifyWrite(fmt.Sprintf("push %s/%s.%s", collection, id, field), err)
}

func (t *mongoTx) Pull(collection, id, field string, values ...any) {
	if t.err != nil {
		return
	}
	_, err := t.db.Collection(collection).UpdateOne(t.sctx,
		bson.M{"_id": id},
		bson.M{"$pull": bson.M{field: bson.M{"$in": values}}})
	t.err = classifyWrite(fmt.Sprintf("pull %s/%s.%s", collection, id, field), err)
}

func (t *mongoTx) Delete(collection, id string) {
	if t.err != nil {
		return
	}
	_, err := t.db.Collection(collection).DeleteOne(t.sctx, bson.M{"_id": id})
	t.err = classifyWrite(fmt.Sprintf("delete %s/%s", collection, id), err)
}
