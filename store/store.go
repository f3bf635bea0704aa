// Package store is the document-store layer the rest of the core runs on.
// It exposes point reads, filtered queries, optimistic multi-document
// transactions and live change subscriptions, with a MongoDB
// implementation for production and an in-memory one for tests and local
// development.
package store

import "context"

// Collection names, one per entity.
const (
	Users       = "users"
	Teams       = "teams"
	Projects    = "projects"
	Tasks       = "tasks"
	Comments    = "comments"
	Attachments = "attachments"
	History     = "history"
	Feedbacks   = "feedbacks"
	Chats       = "chats"
	Messages    = "messages"
)

// RetryPolicy bounds how many times a transaction body is re-run after an
// optimistic-concurrency abort. MaxAttempts of zero means the store
// default: retry transient aborts until the backend gives up.
type RetryPolicy struct {
	MaxAttempts int
}

var (
	// RetryDefault re-runs the body on every transient abort.
	RetryDefault = RetryPolicy{}
	// SingleAttempt never re-runs the body. Mutations whose side effects
	// must not be applied twice under contention use this policy.
	SingleAttempt = RetryPolicy{MaxAttempts: 1}
)

// Tx is the handle a transaction body works with.
//
// All reads must happen before the first write: Get observes the state as
// committed before the transaction, not the transaction's own staged
// writes. Write calls do not fail directly; the first write error is
// remembered and returned from Transaction instead of committing.
type Tx interface {
	// Get reads one document into out. Returns ErrNotFound if absent;
	// absence is validated at commit like any other read.
	Get(collection, id string, out any) error
	// Set creates or fully replaces a document.
	Set(collection, id string, doc any)
	// Update sets individual top-level fields. No-op if the document is
	// absent.
	Update(collection, id string, fields map[string]any)
	// Push appends values to an array field, skipping values already
	// present. No-op if the document is absent.
	Push(collection, id, field string, values ...any)
	// Pull removes values from an array field. No-op for values (or
	// documents) that are absent.
	Pull(collection, id, field string, values ...any)
	// Delete removes a document. No-op if already gone.
	Delete(collection, id string)
}

// Store is the document store contract the services are written against.
type Store interface {
	// Get reads one document into out. Returns ErrNotFound if absent.
	Get(ctx context.Context, collection, id string, out any) error

	// Query reads every document matching the filter into out, which must
	// be a pointer to a slice.
	Query(ctx context.Context, collection string, filter Filter, out any) error

	// Subscribe opens a live stream over the query: the current result is
	// delivered immediately and a full fresh result follows every relevant
	// change, until the subscription is cancelled. Independent calls share
	// nothing.
	Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error)

	// SubscribeDoc is Subscribe scoped to a single document.
	SubscribeDoc(ctx context.Context, collection, id string) (*Subscription, error)

	// Transaction runs body atomically. A conflicting concurrent write
	// aborts the attempt and re-runs body from scratch per the policy;
	// exhausted retries surface as ErrAborted. On any failure no effect of
	// the transaction is visible.
	Transaction(ctx context.Context, policy RetryPolicy, body func(tx Tx) error) error
}
