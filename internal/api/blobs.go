package api

import (
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/facdocs/internal/apperr"
)

// blobPath extracts the storage path from the URL (everything after
// /api/blobs/), tolerating encoded slashes.
func blobPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ServeBlob handles GET /api/blobs/*?token=. It serves bytes from the
// filesystem blob store to holders of a signed download link.
func (h *Handler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	p := blobPath(r)
	if p == "" {
		h.writeError(w, r, "serve blob", apperr.Validation("blob path is required"))
		return
	}
	if err := h.blobs.Signer().Verify(r.URL.Query().Get("token"), p); err != nil {
		h.writeError(w, r, "serve blob", err)
		return
	}
	rc, err := h.blobs.Open(r.Context(), p)
	if err != nil {
		h.writeError(w, r, "serve blob", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(path.Base(p), `"`, "")+`"`)
	w.Header().Set("Cache-Control", "private, no-store")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, path.Base(p), time.Time{}, rs)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, rc)
}
