package nodestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
)

func testDB(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "facdocs-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func node(id, name string, typ models.NodeType, parent string, tags ...string) *models.Node {
	now := time.Now().UTC()
	return &models.Node{ID: id, Name: name, Type: typ, ParentID: parent, Tags: tags, CreatedAt: now, UpdatedAt: now}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"doc_items", "doc_item_tags", "facilities"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestCreateAndGetNode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := node("f1", "report.pdf", models.TypeFile, models.RootID, "facility:plant-a", "safety")
	n.StoragePath = "files/plant-a/f1/report.pdf"
	n.Size = 42
	n.ContentType = "application/pdf"
	if err := db.CreateNode(ctx, n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	got, err := db.GetNode(ctx, "f1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Name != "report.pdf" || got.Type != models.TypeFile || got.Size != 42 {
		t.Errorf("got %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "facility:plant-a" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.CreatedAt.IsZero() {
		t.Error("createdAt not persisted")
	}
}

func TestGetNode_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetNode(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateNode_DuplicateID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.CreateNode(ctx, node("a", "A", models.TypeFolder, models.RootID))
	err := db.CreateNode(ctx, node("a", "B", models.TypeFolder, models.RootID))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestListNodes_OrderAndFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.CreateNode(ctx, node("1", "zeta", models.TypeFolder, models.RootID, "facility:a"))
	_ = db.CreateNode(ctx, node("2", "alpha", models.TypeFolder, models.RootID))
	_ = db.CreateNode(ctx, node("3", "mid", models.TypeFile, "1", "facility:a"))
	_ = db.CreateNode(ctx, node("4", "beta", models.TypeLink, models.RootID, "facility:a"))

	top, err := db.ListNodes(ctx, Filter{ParentID: models.RootID})
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	var names []string
	for _, n := range top {
		names = append(names, n.Name)
	}
	if len(names) != 3 || names[0] != "alpha" || names[1] != "beta" || names[2] != "zeta" {
		t.Errorf("root children = %v", names)
	}

	tagged, _ := db.ListNodes(ctx, Filter{Tag: "facility:a"})
	if len(tagged) != 3 {
		t.Errorf("tag filter returned %d, want 3", len(tagged))
	}

	both, _ := db.ListNodes(ctx, Filter{ParentID: models.RootID, Tag: "facility:a"})
	if len(both) != 2 {
		t.Errorf("combined filter returned %d, want 2", len(both))
	}
}

func TestUpdateNode_ReplacesTags(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := node("x", "old", models.TypeFolder, models.RootID, "one")
	_ = db.CreateNode(ctx, n)

	n.Name = "new"
	n.Tags = []string{"two"}
	if err := db.UpdateNode(ctx, n); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	if old, _ := db.ListNodes(ctx, Filter{Tag: "one"}); len(old) != 0 {
		t.Error("old tag should be gone")
	}
	if cur, _ := db.ListNodes(ctx, Filter{Tag: "two"}); len(cur) != 1 || cur[0].Name != "new" {
		t.Errorf("tag two = %+v", cur)
	}

	if err := db.UpdateNode(ctx, node("ghost", "g", models.TypeFolder, models.RootID)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}
}

func TestDeleteNode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.CreateNode(ctx, node("d", "bye", models.TypeFolder, models.RootID, "t"))
	if err := db.DeleteNode(ctx, "d"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if err := db.DeleteNode(ctx, "d"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
	var count int
	_ = db.conn.QueryRow(`SELECT count(*) FROM doc_item_tags WHERE item_id = 'd'`).Scan(&count)
	if count != 0 {
		t.Errorf("tag rows left behind: %d", count)
	}
}

func TestStoragePaths(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := node("f", "a.txt", models.TypeFile, models.RootID)
	f.StoragePath = "files/_uncategorized/f/a.txt"
	_ = db.CreateNode(ctx, f)
	_ = db.CreateNode(ctx, node("d", "dir", models.TypeFolder, models.RootID))

	paths, err := db.StoragePaths(ctx)
	if err != nil {
		t.Fatalf("StoragePaths: %v", err)
	}
	if _, ok := paths["files/_uncategorized/f/a.txt"]; !ok || len(paths) != 1 {
		t.Errorf("paths = %v", paths)
	}
}

func TestFacilities(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f := &models.Facility{ID: "plant-b", Name: "Plant B", Status: models.StatusPlanned, CreatedAt: now, UpdatedAt: now}
	if err := db.CreateFacility(ctx, f); err != nil {
		t.Fatalf("CreateFacility: %v", err)
	}
	if err := db.CreateFacility(ctx, f); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate facility = %v, want ErrConflict", err)
	}
	_ = db.CreateFacility(ctx, &models.Facility{ID: "plant-a", Name: "Plant A", Status: models.StatusOperational, CreatedAt: now, UpdatedAt: now})

	got, err := db.GetFacility(ctx, "plant-b")
	if err != nil || got.Name != "Plant B" {
		t.Fatalf("GetFacility = %+v, %v", got, err)
	}
	all, _ := db.ListFacilities(ctx)
	if len(all) != 2 || all[0].ID != "plant-a" {
		t.Errorf("ListFacilities = %+v", all)
	}
	if _, err := db.GetFacility(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing facility = %v", err)
	}
}
