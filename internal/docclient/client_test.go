package docclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/facdocs/internal/api"
	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/auth"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/models"
	"github.com/starford/facdocs/internal/testutil"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	svc, _, blobs := testutil.TestService(t, doctree.Options{})
	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Service: svc,
		Auth:    auth.New(auth.Config{Mode: auth.ModeToken, Token: "secret"}),
		Blobs:   blobs,
		Logger:  testutil.Logger(),
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestUnauthorizedUntilLogin(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	if _, err := c.Children(ctx, models.RootID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("anonymous list = %v, want ErrUnauthorized", err)
	}
	if _, err := c.Login(ctx, "wrong"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("bad login = %v", err)
	}
	if _, err := c.Login(ctx, "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	items, err := c.Children(ctx, models.RootID)
	if err != nil || len(items) != 0 {
		t.Errorf("list after login = %v, %v", items, err)
	}
}

func TestTreeOperations(t *testing.T) {
	c := testClient(t)
	c.SetToken("secret")
	ctx := context.Background()

	docs, err := c.Create(ctx, doctree.CreateInput{Name: "Docs", Type: models.TypeFolder, ParentID: models.RootID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sub, err := c.Create(ctx, doctree.CreateInput{Name: "Sub", Type: models.TypeFolder, ParentID: docs.ID})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Move(ctx, docs.ID, sub.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("cyclic move = %v", err)
	}
	if _, err := c.Rename(ctx, sub.ID, "Permits"); err != nil {
		t.Errorf("Rename: %v", err)
	}

	file, err := c.Upload(ctx, doctree.UncategorizedContext, sub.ID, "cert.txt", strings.NewReader("certificate"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if file.ParentID != sub.ID || file.Size != 11 {
		t.Errorf("uploaded = %+v", file)
	}
	link, err := c.DownloadURL(ctx, file.ID)
	if err != nil || !strings.Contains(link.URL, "token=") {
		t.Errorf("DownloadURL = %+v, %v", link, err)
	}

	res, err := c.Delete(ctx, docs.ID)
	if err != nil || res.Deleted != 3 {
		t.Errorf("Delete = %+v, %v", res, err)
	}
	if _, err := c.Get(ctx, file.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
}
