// Package drive_tools contributes the Google Drive tools to the
// registry.
package drive_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/workspace-mcp/internal/tools"
)

// Register adds the Drive tools to the registry.
func Register(reg *tools.Registry) {
	searchTool := mcp.NewTool("drive_search",
		mcp.WithDescription("Search for files in Google Drive using Drive search queries. Returns file metadata including name, type, size, and modification date. Use Drive query syntax like \"name contains 'report'\", \"mimeType = 'application/pdf'\", \"modifiedTime > '2024-01-01T00:00:00'\""),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Drive search query using Drive operators. Examples: \"name contains 'presentation'\", \"fullText contains 'meeting notes'\", \"modifiedTime > '2024-01-01T00:00:00'\""),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of files to return (1-100, default: 10)"),
		),
	)
	reg.Register(searchTool, handleSearch)

	readTool := mcp.NewTool("drive_read",
		mcp.WithDescription("Read the text content of a Google Drive file. Only works with text-based files (txt, json, js, etc.). For binary files or Google Docs, returns a message indicating the file type. Use drive_search first to find file IDs."),
		mcp.WithString("fileId",
			mcp.Required(),
			mcp.Description("The Google Drive file ID obtained from drive_search results. Must be a text-based file."),
		),
	)
	reg.Register(readTool, handleRead)

	listTool := mcp.NewTool("drive_list",
		mcp.WithDescription("List files and folders in a specific Google Drive folder. Returns all direct children of the specified folder. Use \"root\" for the root folder, or provide a folder ID from drive_search results."),
		mcp.WithString("folderId",
			mcp.Description("The Google Drive folder ID to list contents from. Use \"root\" for the main Drive folder (default: \"root\")."),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of items to return (1-100, default: 20)"),
		),
	)
	reg.Register(listTool, handleList)
}

func handleSearch(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	query, err := tools.RequireString(args, "query")
	if err != nil {
		return nil, err
	}
	maxResults := tools.IntArg(args, "maxResults", 10)

	return caps.Drive.Search(ctx, query, maxResults)
}

func handleRead(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	fileID, err := tools.RequireString(args, "fileId")
	if err != nil {
		return nil, err
	}

	return caps.Drive.Read(ctx, fileID)
}

func handleList(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	folderID := tools.StringArg(args, "folderId", "root")
	maxResults := tools.IntArg(args, "maxResults", 20)

	return caps.Drive.List(ctx, folderID, maxResults)
}
