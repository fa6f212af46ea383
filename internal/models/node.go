// Package models defines the domain types of the facility document tree.
package models

import (
	"strings"
	"time"
)

// RootID is the sentinel parent of every top-level node. No node carries it
// as its own id.
const RootID = "root"

// FacilityTagPrefix marks a tag that associates a node with a facility.
const FacilityTagPrefix = "facility:"

// NodeType is the immutable kind of a tree node.
type NodeType string

const (
	TypeFolder NodeType = "folder"
	TypeFile   NodeType = "file"
	TypeLink   NodeType = "link"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case TypeFolder, TypeFile, TypeLink:
		return true
	}
	return false
}

// Node is one entry of the document tree.
type Node struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Type        NodeType  `json:"type" bson:"type"`
	ParentID    string    `json:"parentId" bson:"parentId"`
	Tags        []string  `json:"tags" bson:"tags"`
	StoragePath string    `json:"storagePath,omitempty" bson:"storagePath,omitempty"`
	Size        int64     `json:"size,omitempty" bson:"size,omitempty"`
	ContentType string    `json:"contentType,omitempty" bson:"contentType,omitempty"`
	Checksum    string    `json:"checksum,omitempty" bson:"checksum,omitempty"`
	URL         string    `json:"url,omitempty" bson:"url,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsFolder reports whether the node can hold children.
func (n *Node) IsFolder() bool { return n.Type == TypeFolder }

// IsAbsoluteRoot reports whether n is the synthetic "/" folder seeded for
// facilities. It cannot be renamed, moved or deleted.
func (n *Node) IsAbsoluteRoot() bool {
	return n.Type == TypeFolder && n.ParentID == RootID && n.Name == "/"
}

// FacilityTags returns the facility:* tags of n in order, never nil.
func (n *Node) FacilityTags() []string {
	out := []string{}
	for _, t := range n.Tags {
		if strings.HasPrefix(t, FacilityTagPrefix) {
			out = append(out, t)
		}
	}
	return out
}

// FacilityID returns the first facility the node is tagged with, or "".
func (n *Node) FacilityID() string {
	for _, t := range n.Tags {
		if id, ok := strings.CutPrefix(t, FacilityTagPrefix); ok && id != "" {
			return id
		}
	}
	return ""
}

// FacilityTag builds the association tag for a facility id.
func FacilityTag(facilityID string) string {
	return FacilityTagPrefix + facilityID
}

// BlobInfo describes an object held by the blob store.
type BlobInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}
