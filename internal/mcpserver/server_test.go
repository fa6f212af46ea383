package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/models"
	"github.com/starford/facdocs/internal/testutil"
)

func testServer(t *testing.T) (*Server, *doctree.Service) {
	t.Helper()
	svc, _, _ := testutil.TestService(t, doctree.Options{})
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_items":       srv.listItems,
		"get_item":         srv.getItem,
		"create_folder":    srv.createFolder,
		"create_link":      srv.createLink,
		"rename_item":      srv.renameItem,
		"move_item":        srv.moveItem,
		"delete_item":      srv.deleteItem,
		"get_download_url": srv.getDownloadURL,
		"upload_file":      srv.uploadFile,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func resultNode(t *testing.T, r *mcp.CallToolResult) models.Node {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var n models.Node
	if err := json.Unmarshal([]byte(resultText(r)), &n); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return n
}

func TestFolderLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	a := resultNode(t, callTool(t, srv, "create_folder", map[string]any{"name": "Permits", "tags": "facility:plant-a, archive"}))
	if a.ParentID != models.RootID || len(a.Tags) != 2 {
		t.Errorf("folder = %+v", a)
	}
	b := resultNode(t, callTool(t, srv, "create_folder", map[string]any{"name": "2024", "parentId": a.ID}))
	if b.FacilityID() != "plant-a" {
		t.Errorf("inherited tags = %v", b.Tags)
	}

	r := callTool(t, srv, "move_item", map[string]any{"id": a.ID, "newParentId": b.ID})
	if !r.IsError {
		t.Error("moving a folder into its child should fail")
	}

	renamed := resultNode(t, callTool(t, srv, "rename_item", map[string]any{"id": b.ID, "name": "FY2024"}))
	if renamed.Name != "FY2024" {
		t.Errorf("rename = %+v", renamed)
	}

	r = callTool(t, srv, "list_items", map[string]any{"parentId": a.ID})
	var items []models.Node
	_ = json.Unmarshal([]byte(resultText(r)), &items)
	if len(items) != 1 || items[0].ID != b.ID {
		t.Errorf("list = %s", resultText(r))
	}

	r = callTool(t, srv, "delete_item", map[string]any{"id": a.ID})
	if got := resultText(r); got != "deleted 2 item(s)" {
		t.Errorf("delete = %q", got)
	}
	if r := callTool(t, srv, "get_item", map[string]any{"id": b.ID}); !r.IsError {
		t.Error("child survived delete")
	}
}

func TestCreateLinkValidation(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_link", map[string]any{"name": "Permit portal", "url": "not a url"})
	if !r.IsError {
		t.Errorf("bad url accepted: %s", resultText(r))
	}
	n := resultNode(t, callTool(t, srv, "create_link", map[string]any{"name": "Permit portal", "url": "https://permits.example.com"}))
	if n.Type != models.TypeLink {
		t.Errorf("link = %+v", n)
	}
	if r := callTool(t, srv, "get_item", map[string]any{}); !r.IsError {
		t.Error("missing id accepted")
	}
}

func TestUploadDataURIAndDownload(t *testing.T) {
	srv, _ := testServer(t)
	src := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("cell inventory"))

	r := callTool(t, srv, "upload_file", map[string]any{"source": src, "filename": "inventory.txt"})
	if r.IsError {
		t.Fatalf("upload: %s", resultText(r))
	}
	var up uploadResponse
	if err := json.Unmarshal([]byte(resultText(r)), &up); err != nil {
		t.Fatal(err)
	}
	if up.Size != 14 || !strings.HasPrefix(up.StoragePath, "files/_uncategorized/") {
		t.Errorf("upload = %+v", up)
	}

	r = callTool(t, srv, "get_download_url", map[string]any{"id": up.ID})
	if r.IsError || !strings.Contains(resultText(r), "token=") {
		t.Errorf("download url = %s", resultText(r))
	}
}

func TestUploadInfersFacilityFromParent(t *testing.T) {
	srv, svc := testServer(t)
	if _, err := svc.CreateFacility(context.Background(), doctree.FacilityInput{ID: "plant-a", Name: "Plant A"}); err != nil {
		t.Fatal(err)
	}
	dir := resultNode(t, callTool(t, srv, "create_folder", map[string]any{"name": "Permits", "tags": "facility:plant-a"}))
	src := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("air permit"))

	r := callTool(t, srv, "upload_file", map[string]any{"source": src, "filename": "permit.txt", "parentId": dir.ID})
	if r.IsError {
		t.Fatalf("upload: %s", resultText(r))
	}
	var up uploadResponse
	if err := json.Unmarshal([]byte(resultText(r)), &up); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(up.StoragePath, "files/plant-a/") {
		t.Errorf("storage path = %q", up.StoragePath)
	}
	n, err := svc.Get(context.Background(), up.ID)
	if err != nil || n.ParentID != dir.ID {
		t.Fatalf("uploaded node = %+v, %v", n, err)
	}
	if len(n.Tags) != 1 || n.Tags[0] != "facility:plant-a" {
		t.Errorf("uploaded tags = %v", n.Tags)
	}
}

func TestUploadRejectsBlockedSources(t *testing.T) {
	srv, _ := testServer(t)
	for _, src := range []string{"http://127.0.0.1/secret", "ftp://example.com/a.pdf", "data:text/plain,plain"} {
		if r := callTool(t, srv, "upload_file", map[string]any{"source": src}); !r.IsError {
			t.Errorf("source %q accepted", src)
		}
	}
}

func TestFilenameFromSource(t *testing.T) {
	if got := filenameFromSource("https://example.com/docs/permit.pdf?x=1", ""); got != "permit.pdf" {
		t.Errorf("url name = %q", got)
	}
	if got := filenameFromSource("data:application/pdf;base64,AAAA", "application/pdf"); !strings.HasSuffix(got, ".pdf") {
		t.Errorf("data uri name = %q", got)
	}
}

func TestItemModelResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readItemModel(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("read = %v, %v", contents, err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != itemModelURI || !strings.Contains(tc.Text, "parentId") {
		t.Errorf("resource = %+v", contents[0])
	}
}
