package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// UploadFile posts a single file as multipart/form-data under field.
// The file is buffered so the request can be replayed on retry.
func (c *Client) UploadFile(ctx context.Context, path string, query url.Values, field, filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	return c.Upload(ctx, path, query, field, filepath.Base(filePath), file)
}

// Upload posts content as a multipart file part named filename.
func (c *Client) Upload(ctx context.Context, path string, query url.Values, field, filename string, content io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Query:       query,
		RawBody:     buf.Bytes(),
		ContentType: writer.FormDataContentType(),
	})
}
