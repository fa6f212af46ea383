// Package testutil provides shared test helpers for setting up node stores,
// blob stores and tree services.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/nodestore"
	"github.com/starford/facdocs/internal/storage"
)

// SignerKey is the blob URL signing key used by TestBlobs.
const SignerKey = "test-signing-key"

// TestDB creates a temporary SQLite node store that is automatically cleaned up.
func TestDB(t *testing.T) *nodestore.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "facdocs-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := nodestore.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBlobs creates a temporary filesystem blob store.
func TestBlobs(t *testing.T) *storage.FS {
	t.Helper()
	blobs, err := storage.NewFS(t.TempDir(), storage.NewSigner([]byte(SignerKey), "http://localhost/api/blobs"))
	if err != nil {
		t.Fatal(err)
	}
	return blobs
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestService wires a tree service over fresh stores.
func TestService(t *testing.T, opts doctree.Options) (*doctree.Service, *nodestore.SQLite, *storage.FS) {
	t.Helper()
	db := TestDB(t)
	blobs := TestBlobs(t)
	return doctree.NewService(db, blobs, Logger(), opts), db, blobs
}
