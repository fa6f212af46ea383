package nodestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
)

const nodeColumns = `id, name, type, parent_id, tags, storage_path, size, content_type, checksum, url, created_at, updated_at`

// CreateNode inserts n and its tag rows within a transaction.
func (db *SQLite) CreateNode(ctx context.Context, n *models.Node) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("nodestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	_, err = tx.ExecContext(ctx, `INSERT INTO doc_items (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Name, string(n.Type), n.ParentID, string(tagsJSON), n.StoragePath, n.Size,
		n.ContentType, n.Checksum, n.URL, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		if isConstraint(err) {
			return apperr.Conflict("item %q already exists", n.ID)
		}
		return fmt.Errorf("nodestore: insert item: %w", err)
	}
	if err := replaceTags(ctx, tx, n.ID, n.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// GetNode returns the node with the given id.
func (db *SQLite) GetNode(ctx context.Context, id string) (*models.Node, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM doc_items WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("item %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("nodestore: get item: %w", err)
	}
	return n, nil
}

// UpdateNode overwrites the mutable columns of an existing node.
func (db *SQLite) UpdateNode(ctx context.Context, n *models.Node) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("nodestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	res, err := tx.ExecContext(ctx, `
		UPDATE doc_items SET
			name = ?, parent_id = ?, tags = ?, storage_path = ?, size = ?,
			content_type = ?, checksum = ?, url = ?, updated_at = ?
		WHERE id = ?`,
		n.Name, n.ParentID, string(tagsJSON), n.StoragePath, n.Size,
		n.ContentType, n.Checksum, n.URL, n.UpdatedAt.UTC(), n.ID)
	if err != nil {
		return fmt.Errorf("nodestore: update item: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("item %q not found", n.ID)
	}
	if err := replaceTags(ctx, tx, n.ID, n.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNode removes a single node. Tag rows go with it through the cascade.
func (db *SQLite) DeleteNode(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM doc_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("nodestore: delete item: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("item %q not found", id)
	}
	return nil
}

// ListNodes returns nodes matching f ordered by name.
func (db *SQLite) ListNodes(ctx context.Context, f Filter) ([]models.Node, error) {
	var (
		where []string
		args  []any
	)
	if f.ParentID != "" {
		where = append(where, "d.parent_id = ?")
		args = append(args, f.ParentID)
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM doc_item_tags t WHERE t.item_id = d.id AND t.tag = ?)")
		args = append(args, f.Tag)
	}
	q := `SELECT ` + prefixed("d.", nodeColumns) + ` FROM doc_items d`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY d.name, d.id"

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("nodestore: list items: %w", err)
	}
	defer rows.Close()

	out := []models.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("nodestore: scan item: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// StoragePaths returns every blob path referenced by a file node.
func (db *SQLite) StoragePaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT storage_path FROM doc_items WHERE type = 'file' AND storage_path != ''`)
	if err != nil {
		return nil, fmt.Errorf("nodestore: storage paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

func replaceTags(ctx context.Context, tx *sql.Tx, id string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_item_tags WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("nodestore: clear tags: %w", err)
	}
	if len(tags) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO doc_item_tags (item_id, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("nodestore: prepare tag insert: %w", err)
	}
	defer stmt.Close()
	for _, tag := range tags {
		if _, err := stmt.ExecContext(ctx, id, tag); err != nil {
			return fmt.Errorf("nodestore: insert tag: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*models.Node, error) {
	var (
		n        models.Node
		typ      string
		tagsJSON string
	)
	if err := s.Scan(&n.ID, &n.Name, &typ, &n.ParentID, &tagsJSON, &n.StoragePath, &n.Size,
		&n.ContentType, &n.Checksum, &n.URL, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Type = models.NodeType(typ)
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", n.ID, err)
	}
	n.Tags = nonNil(n.Tags)
	return &n, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
