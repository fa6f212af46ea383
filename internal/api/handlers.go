package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/auth"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/storage"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *doctree.Service
	auth   *auth.Authenticator
	blobs  *storage.FS
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *doctree.Service, a *auth.Authenticator, blobs *storage.FS, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, auth: a, blobs: blobs, logger: logger}
}

// ListItems handles GET /api/doc_items.
//
//	@Summary		List document tree items
//	@Tags			doc_items
//	@Produce		json
//	@Param			parentId	query		string	false	"Parent folder id (default root)"
//	@Param			tag			query		string	false	"Only items carrying this tag"
//	@Success		200			{array}		models.Node
//	@Failure		401			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc_items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.List(r.Context(), doctree.ListQuery{ParentID: q.Get("parentId"), Tag: q.Get("tag")})
	if err != nil {
		h.writeError(w, r, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetItem handles GET /api/doc_items/{id}.
//
//	@Summary		Get one item
//	@Tags			doc_items
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	models.Node
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc_items/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateItem handles POST /api/doc_items.
//
//	@Summary		Create a folder, file or link
//	@Tags			doc_items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		doctree.CreateInput	true	"Item to create"
//	@Success		201		{object}	models.Node
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc_items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in doctree.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, "create item", err)
		return
	}
	n, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// UpdateItem handles PUT /api/doc_items/{id}. Only name, parentId, tags and
// url are applied.
//
//	@Summary		Rename, retag, relink or reparent an item
//	@Tags			doc_items
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string	true	"Item id"
//	@Success		200		{object}	models.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc_items/{id} [put]
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		h.writeError(w, r, "update item", err)
		return
	}
	p, err := doctree.DecodePatch(body)
	if err != nil {
		h.writeError(w, r, "update item", err)
		return
	}
	n, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, r, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type moveRequest struct {
	NewParentID string `json:"newParentId" validate:"required"`
}

// MoveItem handles PATCH /api/doc_items/{id}/move.
//
//	@Summary		Move an item under another folder
//	@Tags			doc_items
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Item id"
//	@Param			body	body		moveRequest	true	"Destination"
//	@Success		200		{object}	models.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc_items/{id}/move [patch]
func (h *Handler) MoveItem(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "move item", err)
		return
	}
	n, err := h.svc.Move(r.Context(), chi.URLParam(r, "id"), req.NewParentID)
	if err != nil {
		h.writeError(w, r, "move item", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type deleteResponse struct {
	Message string `json:"message"`
	doctree.DeleteResult
}

// DeleteItem handles DELETE /api/doc_items/{id}. Folders are removed with
// their whole subtree.
//
//	@Summary		Delete an item recursively
//	@Tags			doc_items
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	deleteResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc_items/{id} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "delete item", err)
		return
	}
	h.logger.Info("delete requested",
		slog.String("id", id),
		slog.String("subject", Subject(r.Context())),
		slog.Int("deleted", res.Deleted))
	writeJSON(w, http.StatusOK, deleteResponse{Message: "item deleted", DeleteResult: res})
}

// DownloadURL handles GET /api/doc_items/{id}/download-url.
//
//	@Summary		Issue a time-limited download link
//	@Tags			doc_items
//	@Produce		json
//	@Param			id	path		string	true	"File item id"
//	@Success		200	{object}	doctree.SignedURL
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc_items/{id}/download-url [get]
func (h *Handler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.DownloadURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "download url", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type loginRequest struct {
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Login handles POST /api/auth/login.
//
//	@Summary		Exchange the admin password for a bearer token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	loginResponse
//	@Failure		401		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "login", err)
		return
	}
	if req.Password == "" {
		h.writeError(w, r, "login", apperr.Validation("password is required"))
		return
	}
	token, exp, err := h.auth.Login(req.Password)
	if err != nil {
		h.logger.Warn("login rejected", slog.String("remote", r.RemoteAddr))
		h.writeError(w, r, "login", err)
		return
	}
	resp := loginResponse{Token: token}
	if !exp.IsZero() {
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}
