package drive

// FileSummary is the metadata slice returned for search and list hits.
type FileSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,omitempty"`
	WebViewLink  string `json:"webViewLink,omitempty"`
}

// FileContent is a file's metadata plus its content. For non-text
// files Content holds a placeholder explaining why nothing was read.
type FileContent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size,omitempty"`
	Content  string `json:"content"`
}
