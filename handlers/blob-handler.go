package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// BlobOpener reads stored payloads back; satisfied by the GridFS store.
type BlobOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

type BlobHandler struct {
	blobs BlobOpener
}

func NewBlobHandler(blobs BlobOpener) *BlobHandler {
	return &BlobHandler{blobs: blobs}
}

// Download streams a stored payload. Only the two known buckets are
// reachable through the route pattern.
func (h *BlobHandler) Download(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path := vars["bucket"] + "/" + vars["id"]
	stream, err := h.blobs.Open(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, stream); err != nil {
		// Response already started; nothing sensible left to send.
		return
	}
}
