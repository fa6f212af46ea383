package mcpserver

// ItemModel describes document tree items for MCP clients.
const ItemModel = `# Document Tree Item Model

The tree is a flat collection of items. Each item points at its parent
folder through ` + "`parentId`" + `; top-level items use the parent id ` + "`root`" + `.

## Fields

| field | type | notes |
|---|---|---|
| id | string | assigned by the server |
| name | string | 1 to 255 characters, trimmed |
| type | folder, file, link | fixed at creation |
| parentId | string | a folder id or ` + "`root`" + ` |
| tags | string list | up to 64; ` + "`facility:<id>`" + ` marks the owning facility |
| storagePath, size, contentType, checksum | file only | checksum is hex SHA-256 |
| url | link only | absolute http(s) URL |
| createdAt, updatedAt | RFC 3339 UTC | assigned by the server |

## Rules

1. A parent must be an existing folder or ` + "`root`" + `.
2. A folder cannot be moved into itself or into one of its descendants.
3. Deleting a folder deletes everything below it, including stored files.
4. A new item without tags inherits the facility tags of its parent folder.
5. The folder named "/" at the top level is a facility root and cannot be
   renamed, moved or deleted.
6. File bytes are read through ` + "`get_download_url`" + `; links expire after a
   few minutes.
7. Uploads go to ` + "`files/<facility>/<fileId>/<name>`" + `; use the facility
   ` + "`_uncategorized`" + ` for files not tied to a site.
`
