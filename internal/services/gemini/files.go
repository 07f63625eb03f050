package gemini

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Remote file states reported by the files API.
const (
	StateProcessing = "PROCESSING"
	StateActive     = "ACTIVE"
	StateFailed     = "FAILED"
)

// File is a handle to media stored by the files API.
type File struct {
	Name           string    `json:"name"`
	DisplayName    string    `json:"displayName,omitempty"`
	URI            string    `json:"uri"`
	MimeType       string    `json:"mimeType"`
	SizeBytes      string    `json:"sizeBytes,omitempty"`
	State          string    `json:"state"`
	ExpirationTime time.Time `json:"expirationTime,omitzero"`
	Error          *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type fileEnvelope struct {
	File File `json:"file"`
}

// UploadFile sends the file at path through the resumable upload protocol.
// The returned handle may still be PROCESSING.
func (c *Client) UploadFile(ctx context.Context, path, mimeType string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, services.Wrap(services.ErrExtraction, "analysis", "upload", "read chunk", err)
	}
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	start, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/upload/"+apiVersion+"/files",
		strings.NewReader(fmt.Sprintf(`{"file":{"display_name":%q}}`, filepath.Base(path))))
	if err != nil {
		return File{}, fmt.Errorf("upload start: new request: %w", err)
	}
	start.Header.Set("Content-Type", "application/json")
	start.Header.Set("X-Goog-Upload-Protocol", "resumable")
	start.Header.Set("X-Goog-Upload-Command", "start")
	start.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	start.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	_, headers, err := c.send(start, "upload start")
	if err != nil {
		return File{}, err
	}
	uploadURL := headers.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return File{}, services.Wrap(services.ErrMalformedResponse, "analysis", "upload start", "missing upload url", nil)
	}

	finalize, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return File{}, fmt.Errorf("upload finalize: new request: %w", err)
	}
	finalize.ContentLength = int64(len(data))
	finalize.Header.Set("X-Goog-Upload-Offset", "0")
	finalize.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	body, _, err := c.send(finalize, "upload finalize")
	if err != nil {
		return File{}, err
	}
	var env fileEnvelope
	if err := DecodeJSON(string(body), &env); err != nil || env.File.Name == "" {
		return File{}, services.Wrap(services.ErrMalformedResponse, "analysis", "upload finalize",
			"missing file handle: "+summarizePayloadSnippet(string(body)), err)
	}
	return env.File, nil
}

// GetFile fetches the current state of a remote file. Missing files wrap
// services.ErrNotFound.
func (c *Client) GetFile(ctx context.Context, name string) (File, error) {
	var file File
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(name), nil, &file, "get file"); err != nil {
		return File{}, err
	}
	return file, nil
}

// WaitForActive polls until the file leaves PROCESSING. FAILED states and
// timeouts are transient service errors so the caller may upload again.
func (c *Client) WaitForActive(ctx context.Context, file File) (File, error) {
	deadline := time.Now().Add(c.cfg.MaxWait)
	for file.State == StateProcessing || file.State == "" {
		if time.Now().After(deadline) {
			return file, services.Wrap(services.ErrTransientService, "analysis", "wait for file",
				fmt.Sprintf("%s still processing after %s", file.Name, c.cfg.MaxWait), nil)
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return file, err
		}
		next, err := c.GetFile(ctx, file.Name)
		if err != nil {
			return file, err
		}
		file = next
	}
	if file.State != StateActive {
		msg := fmt.Sprintf("%s entered state %s", file.Name, file.State)
		if file.Error != nil {
			msg += ": " + file.Error.Message
		}
		return file, services.Wrap(services.ErrTransientService, "analysis", "wait for file", msg, nil)
	}
	return file, nil
}

// DeleteFile removes a remote file. Already-deleted files are not an error.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	err := c.doJSON(ctx, http.MethodDelete, c.endpoint(name), nil, nil, "delete file")
	if statusCode(err) == http.StatusNotFound {
		return nil
	}
	return err
}
