package store

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/madgroup31/teamon-sub001/logging"
)

type UploadEventKind int

const (
	UploadProgress UploadEventKind = iota
	UploadSuccess
	UploadError
)

// UploadEvent is one delivery on an upload stream: zero or more Progress
// events followed by exactly one Success or Error, after which the stream
// closes.
type UploadEvent struct {
	Kind     UploadEventKind
	Fraction float64
	URL      string
	Err      error
}

// BlobChannel stores file payloads under id-addressed paths such as
// "images/{id}" and "files/{id}".
type BlobChannel interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64) <-chan UploadEvent
	Delete(ctx context.Context, path string) error
}

const uploadChunkSize = 255 * 1024

// GridFSBlobStore keeps payloads in GridFS buckets named after the first
// path segment. The blob backend is a separate remote system from the
// document collections, so its calls go through a circuit breaker.
type GridFSBlobStore struct {
	db      *mongo.Database
	breaker *gobreaker.CircuitBreaker
}

func NewGridFSBlobStore(db *mongo.Database) *GridFSBlobStore {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "blob-store-cb",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Circuit breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
	return &GridFSBlobStore{db: db, breaker: breaker}
}

// splitBlobPath turns "files/abc" into bucket "files" and id "abc".
func splitBlobPath(path string) (bucket, id string, err error) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed blob path %q", path)
	}
	return parts[0], parts[1], nil
}

// Upload streams the payload into GridFS, reporting progress as the
// fraction of bytes written. The fraction uses floating-point division so
// intermediate progress is visible, not just 0 and 1.
func (s *GridFSBlobStore) Upload(ctx context.Context, path string, r io.Reader, size int64) <-chan UploadEvent {
	events := make(chan UploadEvent, 4)
	go func() {
		defer close(events)

		terminal := func(e UploadEvent) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}

		bucketName, id, err := splitBlobPath(path)
		if err != nil {
			terminal(UploadEvent{Kind: UploadError, Err: err})
			return
		}

		_, err = s.breaker.Execute(func() (any, error) {
			bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(bucketName))
			if err != nil {
				return nil, fmt.Errorf("open bucket %s: %w", bucketName, err)
			}
			// Re-uploading under the same id replaces the previous payload.
			_ = bucket.Delete(id)

			stream, err := bucket.OpenUploadStreamWithID(id, id)
			if err != nil {
				return nil, fmt.Errorf("open upload stream %s: %w", path, err)
			}

			buf := make([]byte, uploadChunkSize)
			var transferred int64
			for {
				if ctx.Err() != nil {
					_ = stream.Abort()
					return nil, ctx.Err()
				}
				n, readErr := r.Read(buf)
				if n > 0 {
					if _, err := stream.Write(buf[:n]); err != nil {
						_ = stream.Abort()
						return nil, fmt.Errorf("write chunk: %w", err)
					}
					transferred += int64(n)
					if size > 0 {
						select {
						case events <- UploadEvent{Kind: UploadProgress, Fraction: float64(transferred) / float64(size)}:
						case <-ctx.Done():
							_ = stream.Abort()
							return nil, ctx.Err()
						}
					}
				}
				if readErr == io.EOF {
					break
				}
				if readErr != nil {
					_ = stream.Abort()
					return nil, fmt.Errorf("read payload: %w", readErr)
				}
			}
			if err := stream.Close(); err != nil {
				return nil, fmt.Errorf("finalize upload %s: %w", path, err)
			}
			return nil, nil
		})
		if err != nil {
			terminal(UploadEvent{Kind: UploadError, Err: fmt.Errorf("upload %s: %v: %w", path, err, ErrWriteFailure)})
			return
		}
		terminal(UploadEvent{Kind: UploadSuccess, URL: "/api/blobs/" + path})
	}()
	return events
}

func (s *GridFSBlobStore) Delete(ctx context.Context, path string) error {
	bucketName, id, err := splitBlobPath(path)
	if err != nil {
		return err
	}
	_, err = s.breaker.Execute(func() (any, error) {
		bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(bucketName))
		if err != nil {
			return nil, err
		}
		if err := bucket.Delete(id); err != nil && err != gridfs.ErrFileNotFound {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("delete blob %s: %v: %w", path, err, ErrWriteFailure)
	}
	return nil
}

// Open returns a reader over a stored payload, for the download endpoint.
func (s *GridFSBlobStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucketName, id, err := splitBlobPath(path)
	if err != nil {
		return nil, err
	}
	result, err := s.breaker.Execute(func() (any, error) {
		bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(bucketName))
		if err != nil {
			return nil, err
		}
		stream, err := bucket.OpenDownloadStream(id)
		if err == gridfs.ErrFileNotFound {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return stream, err
	})
	if err != nil {
		return nil, err
	}
	return result.(io.ReadCloser), nil
}
