package doctree

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/checksum"
	"github.com/starford/facdocs/internal/models"
)

// UncategorizedContext is the upload context for files not tied to a facility.
const UncategorizedContext = "_uncategorized"

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SignedURL is a time-limited download link.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DownloadURL issues a read-only link to the bytes of a file node.
func (s *Service) DownloadURL(ctx context.Context, id string) (*SignedURL, error) {
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Type != models.TypeFile {
		return nil, apperr.Validation("item %q is a %s, not a file", id, n.Type)
	}
	if n.StoragePath == "" {
		return nil, apperr.Validation("file %q has no stored content", id)
	}
	ok, err := s.blobs.Exists(ctx, n.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if !ok {
		return nil, apperr.NotFound("stored content of %q is missing", id)
	}
	expires := s.now().Add(s.opts.URLTTL)
	u, err := s.blobs.SignedURL(ctx, n.StoragePath, s.opts.URLTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return &SignedURL{URL: u, ExpiresAt: expires}, nil
}

// UploadInput describes an upload. ContextID is a facility id or
// UncategorizedContext. An empty ParentID means the top level.
type UploadInput struct {
	ContextID   string
	ParentID    string
	FileName    string
	ContentType string
	Body        io.Reader
	// Create also creates the file node. Tags follows CreateInput semantics.
	Create bool
	Tags   []string
}

// UploadResult is the metadata a caller passes to Create in the two-step flow.
type UploadResult struct {
	Name        string `json:"name"`
	StoragePath string `json:"storagePath"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ParentID    string `json:"parentId"`
}

// Upload stores file bytes under files/<context>/<fileId>/<name>. With
// in.Create set it also creates the node, deleting the blob again when node
// creation fails.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, *models.Node, error) {
	contextID := strings.TrimSpace(in.ContextID)
	if contextID == "" {
		return nil, nil, apperr.Validation("upload context is required")
	}
	if contextID != UncategorizedContext {
		if _, err := s.store.GetFacility(ctx, contextID); err != nil {
			return nil, nil, err
		}
	}
	parentID := strings.TrimSpace(in.ParentID)
	if parentID == "" {
		parentID = models.RootID
	}
	parent, err := s.resolveParent(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	if in.Body == nil {
		return nil, nil, apperr.Validation("file content is required")
	}

	name := strings.TrimSpace(path.Base(strings.ReplaceAll(in.FileName, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		name = "upload.bin"
	}
	if err := checkField("name", name, nameRules...); err != nil {
		return nil, nil, err
	}
	storagePath := path.Join("files", contextID, s.newID(), safeBlobName(name))

	body := bufio.NewReader(&capReader{r: in.Body, max: s.opts.MaxUploadBytes})
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := body.Peek(512)
		if len(head) > 0 {
			contentType = http.DetectContentType(head)
		} else {
			contentType = "application/octet-stream"
		}
	}
	hashed, digest := checksum.Tee(body)

	size, err := s.blobs.Put(ctx, storagePath, hashed, contentType)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	res := &UploadResult{
		Name:        name,
		StoragePath: storagePath,
		ContentType: contentType,
		Size:        size,
		Checksum:    digest(),
		ParentID:    parentID,
	}
	s.logger.Info("file uploaded",
		slog.String("storage_path", storagePath),
		slog.Int64("size", size),
		slog.String("content_type", contentType))

	if !in.Create {
		return res, nil, nil
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
		if parent != nil {
			tags = parent.FacilityTags()
		}
		if contextID != UncategorizedContext {
			tags = append(tags, models.FacilityTag(contextID))
		}
	}
	n, err := s.Create(ctx, CreateInput{
		Name:        name,
		Type:        models.TypeFile,
		ParentID:    parentID,
		Tags:        tags,
		StoragePath: storagePath,
		Size:        size,
		ContentType: contentType,
		Checksum:    res.Checksum,
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), storagePath); delErr != nil {
			s.logger.Warn("orphaned blob cleanup failed",
				slog.String("storage_path", storagePath),
				slog.String("error", delErr.Error()))
		}
		return nil, nil, err
	}
	return res, n, nil
}

func safeBlobName(name string) string {
	name = unsafeNameRe.ReplaceAllString(name, "_")
	if strings.Trim(name, "._") == "" {
		return "upload.bin"
	}
	return name
}

// capReader fails once more than max bytes have been read.
type capReader struct {
	r   io.Reader
	max int64
	n   int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.n > c.max {
		return 0, tooLarge(c.max)
	}
	if rem := c.max + 1 - c.n; int64(len(p)) > rem {
		p = p[:rem]
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.max {
		return n, tooLarge(c.max)
	}
	return n, err
}

func tooLarge(limit int64) error {
	return apperr.Validation("file exceeds the %d byte upload limit", limit)
}
