package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/models"
)

type uploadResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	StoragePath string `json:"storagePath"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

func (s *Server) uploadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := s.svc.MaxUploadBytes()

	var data []byte
	var contentType string
	if strings.HasPrefix(source, "data:") {
		data, contentType, err = decodeDataURI(source)
	} else {
		data, contentType, err = fetchHTTP(ctx, source, limit)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filename := optional(req, "filename")
	if filename == "" {
		filename = filenameFromSource(source, contentType)
	}
	parentID := optional(req, "parentId")
	facility := optional(req, "facilityId")
	if facility == "" && parentID != "" && parentID != models.RootID {
		if parent, err := s.svc.Get(ctx, parentID); err == nil {
			facility = parent.FacilityID()
		}
	}
	if facility == "" {
		facility = doctree.UncategorizedContext
	}

	res, n, err := s.svc.Upload(ctx, doctree.UploadInput{
		ContextID:   facility,
		ParentID:    parentID,
		FileName:    filename,
		ContentType: contentType,
		Body:        bytes.NewReader(data),
		Create:      true,
	})
	if err != nil {
		return toolError(err), nil
	}
	out, _ := json.Marshal(uploadResponse{
		ID:          n.ID,
		Name:        n.Name,
		StoragePath: res.StoragePath,
		Size:        res.Size,
		ContentType: res.ContentType,
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "text/plain"
	}
	return data, contentType, nil
}

// fetchHTTP downloads at most limit bytes from an http(s) URL, refusing
// loopback and cloud metadata hosts.
func fetchHTTP(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %q (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", limit)
	}
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return data, ct, nil
}

var metadataIP = net.ParseIP("169.254.169.254")

// checkBlockedHost rejects loopback, unspecified and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "" || host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %q", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client report DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() || ip.IsUnspecified() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(metadataIP) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// filenameFromSource takes the last URL path segment, or invents a name
// with an extension matching contentType.
func filenameFromSource(source, contentType string) string {
	if !strings.HasPrefix(source, "data:") {
		if parsed, err := url.Parse(source); err == nil {
			base := path.Base(parsed.Path)
			if base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return uuid.NewString() + ext
}
