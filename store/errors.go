package store

import "errors"

var (
	// ErrNotFound means a referenced document was absent at read time.
	ErrNotFound = errors.New("document not found")

	// ErrAborted means the optimistic-concurrency check failed and the
	// configured retries were exhausted.
	ErrAborted = errors.New("transaction aborted")

	// ErrWriteFailure is a network or permission failure from the backing
	// store.
	ErrWriteFailure = errors.New("write failed")

	// ErrPartialCascade means a multi-step, non-transactional cascade
	// completed some but not all of its steps. Re-running the whole
	// cascade is safe; every step is idempotent.
	ErrPartialCascade = errors.New("cascade partially applied")
)
