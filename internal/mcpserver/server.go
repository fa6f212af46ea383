// Package mcpserver exposes the document tree as MCP (Model Context
// Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/models"
)

const itemModelURI = "facdocs://item-model"

// Server wraps the MCP server with document tree tools.
type Server struct {
	mcp *server.MCPServer
	svc *doctree.Service
}

// New creates an MCP server with all tree tools registered.
func New(svc *doctree.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"facdocs",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List the children of a folder, ordered by name. Omit parentId for the top level."),
		mcp.WithString("parentId", mcp.Description(`Folder id, or "root"`)),
		mcp.WithString("tag", mcp.Description("Only items carrying this tag, e.g. facility:plant-a")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Get one folder, file or link by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder. Facility tags of the parent are inherited when tags is omitted."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Folder name")),
		mcp.WithString("parentId", mcp.Description(`Parent folder id (default "root")`)),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	), s.createFolder)

	s.mcp.AddTool(mcp.NewTool("create_link",
		mcp.WithDescription("Create a link item pointing at an external http(s) URL."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http or https URL")),
		mcp.WithString("parentId", mcp.Description(`Parent folder id (default "root")`)),
	), s.createLink)

	s.mcp.AddTool(mcp.NewTool("rename_item",
		mcp.WithDescription("Rename an item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New name")),
	), s.renameItem)

	s.mcp.AddTool(mcp.NewTool("move_item",
		mcp.WithDescription("Move an item under another folder. Moving a folder into itself or a descendant is rejected."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("newParentId", mcp.Required(), mcp.Description(`Destination folder id, or "root"`)),
	), s.moveItem)

	s.mcp.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Delete an item. Folders are deleted with everything inside them, including stored files."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.deleteItem)

	s.mcp.AddTool(mcp.NewTool("get_download_url",
		mcp.WithDescription("Issue a time-limited download URL for a file item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("File item id")),
	), s.getDownloadURL)

	s.mcp.AddTool(mcp.NewTool("upload_file",
		mcp.WithDescription("Store a file and create its item. The source is a base64 data URI or an http(s) URL."),
		mcp.WithString("source", mcp.Required(), mcp.Description("data:<mime>;base64,<data> or http(s) URL")),
		mcp.WithString("filename", mcp.Description("File name; derived from the source when omitted")),
		mcp.WithString("facilityId", mcp.Description(`Owning facility id (default: the parent folder's facility, else "`+doctree.UncategorizedContext+`")`)),
		mcp.WithString("parentId", mcp.Description(`Destination folder id (default "root")`)),
	), s.uploadFile)

	s.mcp.AddResource(
		mcp.NewResource(itemModelURI, "Document Tree Item Model",
			mcp.WithResourceDescription("Fields, types and rules of document tree items."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readItemModel,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// optional returns the string argument key, or "" when absent.
func optional(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(apperr.Message(err, err.Error()))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.List(ctx, doctree.ListQuery{ParentID: optional(req, "parentId"), Tag: optional(req, "tag")})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(items)
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n)
}

func parentOrRoot(req mcp.CallToolRequest) string {
	if p := optional(req, "parentId"); p != "" {
		return p
	}
	return models.RootID
}

func (s *Server) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Create(ctx, doctree.CreateInput{
		Name:     name,
		Type:     models.TypeFolder,
		ParentID: parentOrRoot(req),
		Tags:     splitTags(optional(req, "tags")),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n)
}

func (s *Server) createLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	u, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Create(ctx, doctree.CreateInput{Name: name, Type: models.TypeLink, ParentID: parentOrRoot(req), URL: u})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n)
}

func (s *Server) renameItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Update(ctx, id, doctree.Patch{Name: &name})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n)
}

func (s *Server) moveItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dest, err := req.RequireString("newParentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Move(ctx, id, dest)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n)
}

func (s *Server) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Delete(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	msg := fmt.Sprintf("deleted %d item(s)", res.Deleted)
	if res.BlobFailures > 0 {
		msg += fmt.Sprintf(", %d stored file(s) could not be removed", res.BlobFailures)
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) getDownloadURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	u, err := s.svc.DownloadURL(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(u)
}

func (s *Server) readItemModel(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      itemModelURI,
			MIMEType: "text/markdown",
			Text:     ItemModel,
		},
	}, nil
}
