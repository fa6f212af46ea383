package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/doctree"
)

// ListFacilities handles GET /api/facilities.
//
//	@Summary		List facilities
//	@Tags			facilities
//	@Produce		json
//	@Success		200	{array}	models.Facility
//	@Security		BearerAuth
//	@Router			/facilities [get]
func (h *Handler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListFacilities(r.Context())
	if err != nil {
		h.writeError(w, r, "list facilities", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetFacility handles GET /api/facilities/{id}.
func (h *Handler) GetFacility(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.GetFacility(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get facility", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// CreateFacility handles POST /api/facilities.
//
//	@Summary		Register a facility
//	@Tags			facilities
//	@Accept			json
//	@Produce		json
//	@Param			body	body		doctree.FacilityInput	true	"Facility"
//	@Success		201		{object}	models.Facility
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/facilities [post]
func (h *Handler) CreateFacility(w http.ResponseWriter, r *http.Request) {
	var in doctree.FacilityInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, "create facility", err)
		return
	}
	f, err := h.svc.CreateFacility(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "create facility", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// UploadFile handles POST /api/facilities/{id}/files (multipart/form-data).
// Fields: document (the file), parentId, create and repeated tags. The id
// may be "_uncategorized".
//
//	@Summary		Upload file bytes, optionally creating the file item
//	@Tags			facilities
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id			path		string	true	"Facility id or _uncategorized"
//	@Param			document	formData	file	true	"File"
//	@Param			parentId	formData	string	false	"Destination folder (default root)"
//	@Param			create		formData	bool	false	"Also create the file item"
//	@Success		200			{object}	doctree.UploadResult
//	@Success		201			{object}	models.Node
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/facilities/{id}/files [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	limit := h.svc.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, r, "upload", apperr.Validation("file exceeds the %d byte upload limit", limit))
			return
		}
		h.writeError(w, r, "upload", apperr.Validation("invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("document")
	if err != nil {
		h.writeError(w, r, "upload", apperr.Validation("missing 'document' field in multipart form"))
		return
	}
	defer file.Close()

	create := false
	if v := r.FormValue("create"); v != "" {
		if create, err = strconv.ParseBool(v); err != nil {
			h.writeError(w, r, "upload", apperr.Validation("create must be a boolean"))
			return
		}
	}
	var tags []string
	if vs, ok := r.MultipartForm.Value["tags"]; ok {
		tags = vs
	}

	res, n, err := h.svc.Upload(r.Context(), doctree.UploadInput{
		ContextID:   chi.URLParam(r, "id"),
		ParentID:    r.FormValue("parentId"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
		Create:      create,
		Tags:        tags,
	})
	if err != nil {
		h.writeError(w, r, "upload", err)
		return
	}
	if n != nil {
		writeJSON(w, http.StatusCreated, n)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
