package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/teemow/workspace-mcp/internal/google"
	"github.com/teemow/workspace-mcp/internal/instrumentation"
)

// maxPageSize is the Drive API page size ceiling.
const maxPageSize = 100

// summaryFields is the partial-response selector for search and list.
const summaryFields = "files(id,name,mimeType,modifiedTime,size,webViewLink)"

// Client wraps the Drive Files service for one authenticated session.
type Client struct {
	svc *drive.FilesService
}

// NewClient creates a Drive client authenticated by the given token
// source. Extra options are appended last so tests can redirect the
// client at a fake API endpoint.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*Client, error) {
	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if ts != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(google.HTTPClient(ctx, ts)))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	return &Client{svc: svc.Files}, nil
}

// Search lists files matching a Drive query. The query uses Drive
// search operators verbatim, e.g. "name contains 'report'".
func (c *Client) Search(ctx context.Context, query string, maxResults int64) ([]*FileSummary, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceDrive, instrumentation.OperationSearch)
	defer span.End()

	res, err := c.svc.List().
		Q(query).
		PageSize(clampPageSize(maxResults, 10)).
		Fields(summaryFields).
		Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	instrumentation.SetSpanSuccess(span)
	return summarize(res.Files), nil
}

// List returns the direct, non-trashed children of a folder ordered by
// most recently modified first. folderID "root" addresses the Drive
// root folder.
func (c *Client) List(ctx context.Context, folderID string, maxResults int64) ([]*FileSummary, error) {
	if folderID == "" {
		folderID = "root"
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceDrive, instrumentation.OperationList)
	defer span.End()

	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	res, err := c.svc.List().
		Q(query).
		PageSize(clampPageSize(maxResults, 20)).
		Fields(summaryFields).
		OrderBy("modifiedTime desc").
		Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	instrumentation.SetSpanSuccess(span)
	return summarize(res.Files), nil
}

// Read fetches a file's metadata and, for text-like files, its content.
// Binary files and Google Docs formats are not downloaded; Content
// carries a placeholder naming the MIME type instead.
func (c *Client) Read(ctx context.Context, fileID string) (*FileContent, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceDrive, instrumentation.OperationGet)
	defer span.End()

	meta, err := c.svc.Get(fileID).Fields("name,mimeType,size").Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}

	file := &FileContent{
		ID:       fileID,
		Name:     meta.Name,
		MimeType: meta.MimeType,
		Size:     meta.Size,
	}

	if !isTextMimeType(meta.MimeType) {
		file.Content = fmt.Sprintf("File is of type %s and cannot be read as text.", meta.MimeType)
		instrumentation.SetSpanSuccess(span)
		return file, nil
	}

	res, err := c.svc.Get(fileID).Context(ctx).Download()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer res.Body.Close()

	content, err := io.ReadAll(res.Body)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to read file %s content: %w", fileID, err)
	}

	file.Content = string(content)
	instrumentation.SetSpanSuccess(span)
	return file, nil
}

// isTextMimeType reports whether a file can be downloaded as text.
func isTextMimeType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") ||
		mimeType == "application/json" ||
		mimeType == "application/javascript"
}

func clampPageSize(n, fallback int64) int64 {
	if n <= 0 {
		return fallback
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

func summarize(files []*drive.File) []*FileSummary {
	summaries := make([]*FileSummary, 0, len(files))
	for _, f := range files {
		summaries = append(summaries, &FileSummary{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			ModifiedTime: f.ModifiedTime,
			Size:         f.Size,
			WebViewLink:  f.WebViewLink,
		})
	}
	return summaries
}
