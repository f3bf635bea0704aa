package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct {
	ID   string   `bson:"_id,omitempty"`
	N    int      `bson:"n"`
	Tags []string `bson:"tags"`
}

func write(t *testing.T, st Store, fn func(tx Tx)) {
	t.Helper()
	err := st.Transaction(context.Background(), RetryDefault, func(tx Tx) error {
		fn(tx)
		return nil
	})
	require.NoError(t, err)
}

func TestGetAndQuery(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	write(t, st, func(tx Tx) {
		tx.Set("things", "a", thing{ID: "a", N: 1, Tags: []string{"x", "y"}})
		tx.Set("things", "b", thing{ID: "b", N: 2, Tags: []string{"y"}})
	})

	var got thing
	require.NoError(t, st.Get(ctx, "things", "a", &got))
	assert.Equal(t, 1, got.N)

	err := st.Get(ctx, "things", "missing", &got)
	assert.ErrorIs(t, err, ErrNotFound)

	var both []thing
	require.NoError(t, st.Query(ctx, "things", Where().Contains("tags", "y"), &both))
	assert.Len(t, both, 2)

	var one []thing
	require.NoError(t, st.Query(ctx, "things", Where().Contains("tags", "x"), &one))
	require.Len(t, one, 1)
	assert.Equal(t, "a", one[0].ID)

	var none []thing
	require.NoError(t, st.Query(ctx, "things", Where().Eq("n", 3), &none))
	assert.Empty(t, none)
}

func TestTransactionConflictRetries(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	write(t, st, func(tx Tx) {
		tx.Set("things", "a", thing{ID: "a", N: 0})
	})

	attempts := 0
	err := st.Transaction(ctx, RetryDefault, func(tx Tx) error {
		attempts++
		var doc thing
		if err := tx.Get("things", "a", &doc); err != nil {
			return err
		}
		if attempts == 1 {
			// A concurrent writer moves the document between our read and
			// our commit.
			write(t, st, func(tx2 Tx) {
				tx2.Update("things", "a", map[string]any{"n": 100})
			})
		}
		tx.Update("things", "a", map[string]any{"n": doc.N + 1})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	var got thing
	require.NoError(t, st.Get(ctx, "things", "a", &got))
	assert.Equal(t, 101, got.N)
}

func TestSingleAttemptAbortsOnConflict(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	write(t, st, func(tx Tx) {
		tx.Set("things", "a", thing{ID: "a", N: 0})
	})

	err := st.Transaction(ctx, SingleAttempt, func(tx Tx) error {
		var doc thing
		if err := tx.Get("things", "a", &doc); err != nil {
			return err
		}
		write(t, st, func(tx2 Tx) {
			tx2.Update("things", "a", map[string]any{"n": 100})
		})
		tx.Update("things", "a", map[string]any{"n": doc.N + 1})
		return nil
	})
	assert.ErrorIs(t, err, ErrAborted)

	var got thing
	require.NoError(t, st.Get(ctx, "things", "a", &got))
	assert.Equal(t, 100, got.N, "aborted transaction must leave no effect")
}

func TestReadOfAbsentDocValidatedAtCommit(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	err := st.Transaction(ctx, SingleAttempt, func(tx Tx) error {
		var doc thing
		if err := tx.Get("things", "ghost", &doc); !errors.Is(err, ErrNotFound) {
			return err
		}
		// Someone creates the document we just observed as absent.
		write(t, st, func(tx2 Tx) {
			tx2.Set("things", "ghost", thing{ID: "ghost", N: 1})
		})
		tx.Set("things", "other", thing{ID: "other", N: 2})
		return nil
	})
	assert.ErrorIs(t, err, ErrAborted)

	var other thing
	assert.ErrorIs(t, st.Get(ctx, "things", "other", &other), ErrNotFound)
}

func TestCommitHookFailureDiscardsEverything(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	write(t, st, func(tx Tx) {
		tx.Set("things", "a", thing{ID: "a", N: 1})
	})

	st.SetCommitHook(func() error { return errors.New("backend down") })
	err := st.Transaction(ctx, RetryDefault, func(tx Tx) error {
		tx.Delete("things", "a")
		tx.Set("things", "b", thing{ID: "b", N: 2})
		return nil
	})
	assert.ErrorIs(t, err, ErrWriteFailure)

	st.SetCommitHook(nil)
	var a thing
	require.NoError(t, st.Get(ctx, "things", "a", &a))
	var b thing
	assert.ErrorIs(t, st.Get(ctx, "things", "b", &b), ErrNotFound)
}

func TestPushSkipsPresentAndPullRemoves(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	write(t, st, func(tx Tx) {
		tx.Set("things", "a", thing{ID: "a", Tags: []string{"x"}})
	})

	write(t, st, func(tx Tx) {
		tx.Push("things", "a", "tags", "x", "y")
	})
	var got thing
	require.NoError(t, st.Get(ctx, "things", "a", &got))
	assert.Equal(t, []string{"x", "y"}, got.Tags)

	write(t, st, func(tx Tx) {
		tx.Pull("things", "a", "tags", "x", "missing")
	})
	require.NoError(t, st.Get(ctx, "things", "a", &got))
	assert.Equal(t, []string{"y"}, got.Tags)

	// Array mutations on absent documents are no-ops, not errors.
	write(t, st, func(tx Tx) {
		tx.Push("things", "nope", "tags", "z")
		tx.Pull("things", "nope", "tags", "z")
	})
}

func TestSubscribeDeliversInitialAndUpdates(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	write(t, st, func(tx Tx) {
		tx.Set("things", "a", thing{ID: "a", N: 1, Tags: []string{"watch"}})
	})

	sub, err := st.Subscribe(ctx, "things", Where().Contains("tags", "watch"))
	require.NoError(t, err)
	defer sub.Cancel()
	results := Decode[thing](sub)

	first := <-results
	require.NoError(t, first.Err)
	require.Len(t, first.Docs, 1)
	assert.Equal(t, "a", first.Docs[0].ID)

	write(t, st, func(tx Tx) {
		tx.Set("things", "b", thing{ID: "b", N: 2, Tags: []string{"watch"}})
	})
	second := <-results
	require.NoError(t, second.Err)
	assert.Len(t, second.Docs, 2)

	// A change not matching the filter still refreshes the result set for
	// the touched collection, without changing its content.
	write(t, st, func(tx Tx) {
		tx.Set("things", "c", thing{ID: "c", N: 3})
	})
	third := <-results
	require.NoError(t, third.Err)
	assert.Len(t, third.Docs, 2)
}

func TestCancelDetachesListener(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	sub, err := st.Subscribe(ctx, "things", Where())
	require.NoError(t, err)
	results := Decode[thing](sub)

	first := <-results
	require.NoError(t, first.Err)

	sub.Cancel()
	assert.Eventually(t, sub.Detached, time.Second, 5*time.Millisecond,
		"listener must report itself detached after cancel")

	write(t, st, func(tx Tx) {
		tx.Set("things", "late", thing{ID: "late", N: 9})
	})

	for result := range results {
		for _, doc := range result.Docs {
			assert.NotEqual(t, "late", doc.ID, "no values may arrive after cancel")
		}
	}
}

func TestIndependentSubscriptions(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	subA, err := st.Subscribe(ctx, "things", Where())
	require.NoError(t, err)
	subB, err := st.Subscribe(ctx, "things", Where())
	require.NoError(t, err)
	defer subB.Cancel()

	subA.Cancel()
	assert.Eventually(t, subA.Detached, time.Second, 5*time.Millisecond)

	write(t, st, func(tx Tx) {
		tx.Set("things", "a", thing{ID: "a", N: 1})
	})

	results := Decode[thing](subB)
	deadline := time.After(time.Second)
	for {
		select {
		case result := <-results:
			require.NoError(t, result.Err)
			if len(result.Docs) == 1 {
				return // subB keeps receiving after subA cancelled
			}
		case <-deadline:
			t.Fatal("surviving subscription received nothing")
		}
	}
}

func TestContextCancellationDetaches(t *testing.T) {
	st := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := st.Subscribe(ctx, "things", Where())
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, sub.Detached, time.Second, 5*time.Millisecond)
}
