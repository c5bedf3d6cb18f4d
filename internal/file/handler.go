package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/filedrop/service/internal/middleware"
	"github.com/filedrop/service/internal/response"
)

// maxUploadBytes caps a single upload payload.
const maxUploadBytes = 32 << 20

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new file Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// UpdateEnvInput is the body for the admin env-update endpoint.
type UpdateEnvInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SignedURLOutput carries a minted time-limited download link.
type SignedURLOutput struct {
	URL string `json:"url"`
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Stores the uploaded file and returns its public (download) and private (delete) keys. The private key is shown only in this response and cannot be recovered later.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"file to upload"
//	@Security		BearerAuth
//	@Success		201	{object}	response.Envelope{data=UploadOutput}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/files [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "please select a file to upload")
		return
	}
	defer f.Close()

	out, err := h.svc.Upload(r.Context(), actor, header.Filename, header.Header.Get("Content-Type"), f)
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.Created(w, out)
}

// Download godoc
//
//	@Summary		Download a file
//	@Description	Streams the file identified by its public key.
//	@Tags			files
//	@Produce		octet-stream
//	@Param			publicKey	path	string	true	"public key of the file"
//	@Security		BearerAuth
//	@Success		200	{file}		file
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/files/{publicKey} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	publicKey := chi.URLParam(r, "publicKey")

	d, err := h.svc.Download(r.Context(), publicKey)
	if err != nil {
		h.respondError(w, err)
		return
	}
	defer d.Content.Close()

	w.Header().Set("Content-Type", d.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", publicKey))
	if _, err := io.Copy(w, d.Content); err != nil {
		log.Printf("file: streaming %s aborted: %v", publicKey, err)
	}
}

// Delete godoc
//
//	@Summary		Delete a file
//	@Description	Deletes the file identified by its private key. Only the owner (or an admin) may delete.
//	@Tags			files
//	@Produce		json
//	@Param			privateKey	path	string	true	"private key of the file"
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=response.Message}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/files/{privateKey} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	msg, err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "privateKey"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.OK(w, response.Message{Message: msg})
}

// SignedLink godoc
//
//	@Summary		Mint a signed download link
//	@Description	Returns a time-limited presigned URL for files stored on a backend that supports signing.
//	@Tags			files
//	@Produce		json
//	@Param			publicKey	path	string	true	"public key of the file"
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=SignedURLOutput}
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/files/{publicKey}/link [get]
func (h *Handler) SignedLink(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.SignedURL(r.Context(), chi.URLParam(r, "publicKey"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.OK(w, SignedURLOutput{URL: url})
}

// UpdateEnv godoc
//
//	@Summary		Update one env file entry (admin only)
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			input	body	UpdateEnvInput	true	"key and value to set"
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=response.Message}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/files/update-env [post]
func (h *Handler) UpdateEnv(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input UpdateEnvInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	msg, err := h.svc.UpdateEnv(actor, input.Key, input.Value)
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.OK(w, response.Message{Message: msg})
}

// respondError maps the service error taxonomy onto HTTP statuses. Anything
// outside the client-facing set is a generic 500 so backend internals never
// leak.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "file not found")
	case errors.Is(err, ErrUnauthorized):
		response.Unauthorized(w, "you are not allowed to perform this action")
	case errors.Is(err, ErrBadInput):
		response.BadRequest(w, err.Error())
	default:
		log.Printf("file: request failed: %v", err)
		response.InternalError(w)
	}
}

func actorFrom(r *http.Request) (Actor, bool) {
	id, ok := middleware.ActorID(r.Context())
	if !ok {
		return Actor{}, false
	}
	return Actor{ID: id, Roles: middleware.ActorRoles(r.Context())}, true
}
