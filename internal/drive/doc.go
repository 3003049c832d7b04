// Package drive wraps the Drive v3 Files API for the file tools:
// query-based search, folder listing, and reading text file content.
//
// Content download is restricted to text-like MIME types. Binary files
// and Google Docs formats get a placeholder message instead of bytes,
// so tool output stays valid UTF-8 text.
package drive
