package file

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop/service/internal/middleware"
	"github.com/filedrop/service/internal/response"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t, StorageLocal)
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Route("/files", func(r chi.Router) {
		r.Post("/", h.Upload)
		r.Post("/update-env", h.UpdateEnv)
		r.Get("/{publicKey}", h.Download)
		r.Get("/{publicKey}/link", h.SignedLink)
		r.Delete("/{privateKey}", h.Delete)
	})
	return r, svc
}

// asActor injects the context values the auth middleware would set.
func asActor(r *http.Request, actor Actor) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, actor.ID)
	ctx = context.WithValue(ctx, middleware.UserRolesKey, actor.Roles)
	return r.WithContext(ctx)
}

func multipartUpload(t *testing.T, fieldName, fileName, contentType, body string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + fieldName + `"; filename="` + fileName + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func uploadFile(t *testing.T, router *chi.Mux, actor Actor, fileName, contentType, body string) UploadOutput {
	t.Helper()
	payload, formType := multipartUpload(t, "file", fileName, contentType, body)
	req := httptest.NewRequest(http.MethodPost, "/files", payload)
	req.Header.Set("Content-Type", formType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, actor))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env struct {
		Success bool         `json:"success"`
		Data    UploadOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	return env.Data
}

func TestUploadEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	out := uploadFile(t, router, userU, "note.txt", "text/plain", "hello world")
	assert.Len(t, out.PublicKey, 36)
	assert.Len(t, out.PrivateKey, 36)
	assert.NotEqual(t, out.PublicKey, out.PrivateKey)
}

func TestUploadEndpointMissingFile(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/files", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userU))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadEndpointUnauthenticated(t *testing.T) {
	router, _ := newTestRouter(t)

	payload, formType := multipartUpload(t, "file", "a.txt", "text/plain", "x")
	req := httptest.NewRequest(http.MethodPost, "/files", payload)
	req.Header.Set("Content-Type", formType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req) // no actor in context

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDownloadEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	out := uploadFile(t, router, userU, "note.txt", "text/plain", "hello world")

	req := httptest.NewRequest(http.MethodGet, "/files/"+out.PublicKey, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userV))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="`+out.PublicKey+`"`, rec.Header().Get("Content-Disposition"))
}

func TestDownloadEndpointUnknownKey(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/files/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userU))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	out := uploadFile(t, router, userU, "note.txt", "text/plain", "hello world")

	req := httptest.NewRequest(http.MethodDelete, "/files/"+out.PrivateKey, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userU))

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data response.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Contains(t, env.Data.Message, "note.txt")

	// the public key is dead from here on
	req = httptest.NewRequest(http.MethodGet, "/files/"+out.PublicKey, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userU))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEndpointNotOwner(t *testing.T) {
	router, _ := newTestRouter(t)
	out := uploadFile(t, router, userU, "note.txt", "text/plain", "hello world")

	req := httptest.NewRequest(http.MethodDelete, "/files/"+out.PrivateKey, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userV))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// still retrievable afterwards
	req = httptest.NewRequest(http.MethodGet, "/files/"+out.PublicKey, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userU))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteEndpointUnknownKey(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/files/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userU))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateEnvEndpointRequiresAdmin(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"key":"FEATURE","value":"on"}`
	req := httptest.NewRequest(http.MethodPost, "/files/update-env", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userU))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/files/update-env", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, admin))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSignedLinkEndpointLocalBackend(t *testing.T) {
	router, _ := newTestRouter(t)
	out := uploadFile(t, router, userU, "note.txt", "text/plain", "hello world")

	req := httptest.NewRequest(http.MethodGet, "/files/"+out.PublicKey+"/link", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asActor(req, userU))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
