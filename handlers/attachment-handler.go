package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/services"
)

const maxAttachmentMemory = 10 << 20

type AttachmentHandler struct {
	service *services.AttachmentService
}

func NewAttachmentHandler(service *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// CreateAttachment accepts a multipart form with a single "file" field and
// links the upload to the task.
func (h *AttachmentHandler) CreateAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	attachment := models.Attachment{
		Name:     header.Filename,
		FileType: header.Header.Get("Content-Type"),
		FileSize: header.Size,
	}
	created, err := h.service.CreateAttachment(r.Context(), mux.Vars(r)["taskID"], attachment, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AttachmentHandler) UpdateAttachment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.UpdateAttachment(r.Context(), mux.Vars(r)["attachmentID"], body.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AttachmentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.DeleteAttachment(r.Context(), vars["taskID"], vars["attachmentID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AttachmentHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	attachment, err := h.service.GetAttachment(r.Context(), mux.Vars(r)["attachmentID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attachment)
}
