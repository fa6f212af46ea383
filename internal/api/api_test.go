package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/facdocs/internal/auth"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/models"
	"github.com/starford/facdocs/internal/ratelimit"
	"github.com/starford/facdocs/internal/testutil"
)

// testEnv builds a router over temp stores. An empty token means disabled auth.
func testEnv(t *testing.T, token string) (*doctree.Service, http.Handler) {
	t.Helper()
	return testEnvOpts(t, token, doctree.Options{}, nil)
}

func testEnvOpts(t *testing.T, token string, opts doctree.Options, limiter *ratelimit.Limiter) (*doctree.Service, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	blobs := testutil.TestBlobs(t)
	svc := doctree.NewService(db, blobs, testutil.Logger(), opts)

	cfg := auth.Config{}
	if token != "" {
		cfg = auth.Config{Mode: auth.ModeToken, Token: token}
	}
	router := NewRouter(Deps{
		Service:      svc,
		Auth:         auth.New(cfg),
		Blobs:        blobs,
		LoginLimiter: limiter,
		CORSOrigins:  []string{"https://dashboard.example.com"},
		Logger:       testutil.Logger(),
	})
	return svc, router
}

func do(t *testing.T, h http.Handler, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func createFolder(t *testing.T, h http.Handler, name, parent string) models.Node {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/doc_items", map[string]any{"name": name, "type": "folder", "parentId": parent}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d %s", name, w.Code, w.Body.String())
	}
	return decode[models.Node](t, w)
}

func TestHealth(t *testing.T) {
	_, router := testEnv(t, "secret")
	for _, p := range []string{"/health/live", "/health/ready"} {
		w := do(t, router, http.MethodGet, p, nil, "")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
			t.Errorf("%s = %d %s", p, w.Code, w.Body.String())
		}
	}
}

func TestCreateListGet(t *testing.T) {
	_, router := testEnv(t, "")
	docs := createFolder(t, router, "Docs", models.RootID)
	createFolder(t, router, "Archive", models.RootID)
	createFolder(t, router, "Permits", docs.ID)

	w := do(t, router, http.MethodGet, "/api/doc_items", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	items := decode[[]models.Node](t, w)
	if len(items) != 2 || items[0].Name != "Archive" || items[1].Name != "Docs" {
		t.Errorf("root listing = %+v", items)
	}

	w = do(t, router, http.MethodGet, "/api/doc_items?parentId="+docs.ID, nil, "")
	if items := decode[[]models.Node](t, w); len(items) != 1 || items[0].Name != "Permits" {
		t.Errorf("child listing = %+v", items)
	}

	w = do(t, router, http.MethodGet, "/api/doc_items/"+docs.ID, nil, "")
	if got := decode[models.Node](t, w); got.ID != docs.ID || got.Type != models.TypeFolder {
		t.Errorf("get = %+v", got)
	}
	if w := do(t, router, http.MethodGet, "/api/doc_items/missing", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d", w.Code)
	}
}

func TestCreateResponseTagsIsArray(t *testing.T) {
	_, h := testEnv(t, "")
	a := createFolder(t, h, "A", models.RootID)

	w := do(t, h, http.MethodPost, "/api/doc_items", map[string]any{"name": "B", "type": "folder", "parentId": a.ID}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"tags":[]`) {
		t.Fatalf("create body tags should be an empty array: %s", w.Body.String())
	}
	id := decode[models.Node](t, w).ID

	g := do(t, h, http.MethodGet, "/api/doc_items/"+id, nil, "")
	if !strings.Contains(g.Body.String(), `"tags":[]`) {
		t.Fatalf("get body tags should be an empty array: %s", g.Body.String())
	}
}

func TestReservedRootName(t *testing.T) {
	_, h := testEnv(t, "")
	w := do(t, h, http.MethodPost, "/api/doc_items", map[string]any{"name": "/", "type": "folder", "parentId": models.RootID}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create / = %d %s", w.Code, w.Body.String())
	}

	b := createFolder(t, h, "B", models.RootID)
	w = do(t, h, http.MethodPut, "/api/doc_items/"+b.ID, map[string]any{"name": "/"}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("rename to / = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodDelete, "/api/doc_items/"+b.ID, nil, ""); w.Code != http.StatusOK {
		t.Fatalf("delete B = %d %s", w.Code, w.Body.String())
	}
}

func TestCreateValidationErrors(t *testing.T) {
	_, router := testEnv(t, "")
	cases := map[string]any{
		"link without url": map[string]any{"name": "x", "type": "link", "parentId": "root"},
		"missing parent":   map[string]any{"name": "x", "type": "folder", "parentId": "nope"},
		"bad json":         "{",
	}
	for name, body := range cases {
		w := do(t, router, http.MethodPost, "/api/doc_items", body, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, w.Code)
			continue
		}
		if msg := decode[errResponse](t, w).Message; msg == "" {
			t.Errorf("%s: empty message", name)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	_, router := testEnv(t, "secret")

	if w := do(t, router, http.MethodGet, "/api/doc_items", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/doc_items", nil, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/doc_items", nil, "secret"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d", w.Code)
	}

	w := do(t, router, http.MethodPost, "/api/auth/login", map[string]string{"password": "secret"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	if got := decode[loginResponse](t, w); got.Token != "secret" {
		t.Errorf("login token = %q", got.Token)
	}
	if w := do(t, router, http.MethodPost, "/api/auth/login", map[string]string{"password": "nope"}, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d", w.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Hour, 1)
	defer limiter.Close()
	_, router := testEnvOpts(t, "secret", doctree.Options{}, limiter)

	do(t, router, http.MethodPost, "/api/auth/login", map[string]string{"password": "nope"}, "")
	w := do(t, router, http.MethodPost, "/api/auth/login", map[string]string{"password": "secret"}, "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second login = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestUpdateIgnoresUnknownKeys(t *testing.T) {
	_, router := testEnv(t, "")
	n := createFolder(t, router, "old", models.RootID)

	w := do(t, router, http.MethodPut, "/api/doc_items/"+n.ID, `{"name":"new","type":"file","createdAt":"2000-01-01T00:00:00Z"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}
	got := decode[models.Node](t, w)
	if got.Name != "new" || got.Type != models.TypeFolder || !got.CreatedAt.Equal(n.CreatedAt) {
		t.Errorf("updated = %+v", got)
	}

	if w := do(t, router, http.MethodPut, "/api/doc_items/"+n.ID, `{"tags":"x"}`, ""); w.Code != http.StatusBadRequest {
		t.Errorf("non-array tags = %d", w.Code)
	}
}

func TestMoveRejectsCycles(t *testing.T) {
	_, router := testEnv(t, "")
	a := createFolder(t, router, "a", models.RootID)
	b := createFolder(t, router, "b", a.ID)
	c := createFolder(t, router, "c", b.ID)

	w := do(t, router, http.MethodPatch, "/api/doc_items/"+a.ID+"/move", map[string]string{"newParentId": c.ID}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("cycle move = %d", w.Code)
	}
	w = do(t, router, http.MethodPatch, "/api/doc_items/"+c.ID+"/move", map[string]string{"newParentId": "root"}, "")
	if w.Code != http.StatusOK || decode[models.Node](t, w).ParentID != models.RootID {
		t.Errorf("move to root = %d %s", w.Code, w.Body.String())
	}
}

func TestDeleteRecursive(t *testing.T) {
	_, router := testEnv(t, "")
	a := createFolder(t, router, "a", models.RootID)
	b := createFolder(t, router, "b", a.ID)
	createFolder(t, router, "c", b.ID)

	w := do(t, router, http.MethodDelete, "/api/doc_items/"+a.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	got := decode[deleteResponse](t, w)
	if got.Deleted != 3 || got.Message == "" {
		t.Errorf("delete response = %+v", got)
	}
	if w := do(t, router, http.MethodGet, "/api/doc_items/"+b.ID, nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("descendant after delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/api/doc_items/"+a.ID, nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("repeat delete = %d", w.Code)
	}
}

func upload(t *testing.T, h http.Handler, contextID string, fields map[string]string, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("document", "inspection report.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/facilities/"+contextID+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	_, router := testEnv(t, "")
	docs := createFolder(t, router, "Docs", models.RootID)

	w := upload(t, router, doctree.UncategorizedContext, map[string]string{"parentId": docs.ID, "create": "true"}, "cell inventory")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", w.Code, w.Body.String())
	}
	file := decode[models.Node](t, w)
	if file.Type != models.TypeFile || file.ParentID != docs.ID || file.Size != 14 {
		t.Errorf("file = %+v", file)
	}

	w = do(t, router, http.MethodGet, "/api/doc_items/"+file.ID+"/download-url", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("download-url = %d %s", w.Code, w.Body.String())
	}
	link := decode[doctree.SignedURL](t, w)
	u, err := url.Parse(link.URL)
	if err != nil {
		t.Fatal(err)
	}

	w = do(t, router, http.MethodGet, u.RequestURI(), nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "cell inventory" {
		t.Errorf("blob fetch = %d %q", w.Code, w.Body.String())
	}

	q := u.Query()
	q.Set("token", "forged")
	u.RawQuery = q.Encode()
	if w := do(t, router, http.MethodGet, u.RequestURI(), nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("forged token = %d", w.Code)
	}
}

func TestUploadTwoStepAndLimits(t *testing.T) {
	_, router := testEnvOpts(t, "", doctree.Options{MaxUploadBytes: 8}, nil)

	w := upload(t, router, doctree.UncategorizedContext, nil, "small")
	if w.Code != http.StatusOK {
		t.Fatalf("upload = %d %s", w.Code, w.Body.String())
	}
	res := decode[doctree.UploadResult](t, w)
	if res.Name != "inspection report.txt" || res.ParentID != models.RootID || res.Size != 5 {
		t.Errorf("result = %+v", res)
	}

	if w := upload(t, router, doctree.UncategorizedContext, nil, "far too large"); w.Code != http.StatusBadRequest {
		t.Errorf("oversize = %d", w.Code)
	}
	if w := upload(t, router, "no-such-plant", nil, "x"); w.Code != http.StatusNotFound {
		t.Errorf("unknown facility = %d", w.Code)
	}
}

func TestFacilities(t *testing.T) {
	_, router := testEnv(t, "")
	body := map[string]string{"id": "plant-a", "name": "Plant A", "company": "Cellcycle"}
	if w := do(t, router, http.MethodPost, "/api/facilities", body, ""); w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/api/facilities", body, ""); w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d", w.Code)
	}
	w := do(t, router, http.MethodGet, "/api/facilities/plant-a", nil, "")
	if got := decode[models.Facility](t, w); got.Status != models.StatusOperational {
		t.Errorf("facility = %+v", got)
	}
	w = do(t, router, http.MethodGet, "/api/facilities", nil, "")
	if list := decode[[]models.Facility](t, w); len(list) != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, router := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodOptions, "/api/doc_items", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Errorf("allow origin = %q", got)
	}
}
