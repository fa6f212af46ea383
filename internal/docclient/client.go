// Package docclient is a typed client for the document tree REST API.
package docclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/models"
)

// Client talks to one facdocs server. Responses with an error status are
// returned as apperr kinds, so callers can test for apperr.ErrUnauthorized.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer credential.
func (c *Client) SetToken(token string) { c.token = token }

// statusError converts an error response into an apperr kind.
func statusError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
		if body.Message == "" {
			body.Message = http.StatusText(resp.StatusCode)
		}
	}
	var kind error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		kind = apperr.ErrValidation
	case http.StatusUnauthorized:
		kind = apperr.ErrUnauthorized
	case http.StatusForbidden:
		kind = apperr.ErrForbidden
	case http.StatusNotFound:
		kind = apperr.ErrNotFound
	case http.StatusConflict:
		kind = apperr.ErrConflict
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Message)
	}
	return &apperr.Error{Kind: kind, Msg: body.Message}
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
		ct = "application/json"
	}
	return c.send(ctx, method, path, body, ct, out)
}

func itemPath(id string, rest ...string) string {
	return "/api/doc_items/" + url.PathEscape(id) + strings.Join(rest, "")
}

// Login exchanges the admin password for a token. The client keeps using the
// returned token.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{"password": password}, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

// Children lists the items whose parent is parentID.
func (c *Client) Children(ctx context.Context, parentID string) ([]models.Node, error) {
	var out []models.Node
	err := c.doJSON(ctx, http.MethodGet, "/api/doc_items?parentId="+url.QueryEscape(parentID), nil, &out)
	return out, err
}

// Get returns one item.
func (c *Client) Get(ctx context.Context, id string) (*models.Node, error) {
	var out models.Node
	if err := c.doJSON(ctx, http.MethodGet, itemPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create creates an item.
func (c *Client) Create(ctx context.Context, in doctree.CreateInput) (*models.Node, error) {
	var out models.Node
	if err := c.doJSON(ctx, http.MethodPost, "/api/doc_items", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rename changes an item's name.
func (c *Client) Rename(ctx context.Context, id, name string) (*models.Node, error) {
	var out models.Node
	if err := c.doJSON(ctx, http.MethodPut, itemPath(id), map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Move reparents an item.
func (c *Client) Move(ctx context.Context, id, newParentID string) (*models.Node, error) {
	var out models.Node
	if err := c.doJSON(ctx, http.MethodPatch, itemPath(id, "/move"), map[string]string{"newParentId": newParentID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an item recursively.
func (c *Client) Delete(ctx context.Context, id string) (doctree.DeleteResult, error) {
	var out doctree.DeleteResult
	err := c.doJSON(ctx, http.MethodDelete, itemPath(id), nil, &out)
	return out, err
}

// DownloadURL requests a signed download link for a file item.
func (c *Client) DownloadURL(ctx context.Context, id string) (*doctree.SignedURL, error) {
	var out doctree.SignedURL
	if err := c.doJSON(ctx, http.MethodGet, itemPath(id, "/download-url"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload streams a file to /api/facilities/{contextID}/files and creates the
// file item under parentID.
func (c *Client) Upload(ctx context.Context, contextID, parentID, filename string, r io.Reader) (*models.Node, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if err := mw.WriteField("parentId", parentID); err != nil {
				return err
			}
			if err := mw.WriteField("create", "true"); err != nil {
				return err
			}
			fw, err := mw.CreateFormFile("document", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(fw, r); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	var out models.Node
	path := "/api/facilities/" + url.PathEscape(contextID) + "/files"
	if err := c.send(ctx, http.MethodPost, path, pr, mw.FormDataContentType(), &out); err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	return &out, nil
}
