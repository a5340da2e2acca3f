package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// ManifestFieldLimit is the maximum number of file names carried in a
// single form field when registering an upload. Larger manifests are
// split into successive indexed fields (files, files1, files2, ...) and
// registered atomically in one request.
const ManifestFieldLimit = 5000

// PrevUpload is the response from the previous-upload check.
type PrevUpload struct {
	Exists        bool        `json:"exists"`
	Path          string      `json:"path"`
	UploadedFiles []string    `json:"uploadedFiles"`
	ElapsedSec    float64     `json:"elapsed_sec"`
	ID            json.Number `json:"id"`
}

// UploadCounts is the server-reported progress of an upload.
type UploadCounts struct {
	Uploaded int `json:"uploaded"`
	Total    int `json:"total"`
}

// RegisterUploadRequest contains the fields for registering a new upload.
type RegisterUploadRequest struct {
	Collection string
	Location   string
	Path       string
	Comment    string
	Files      []string
	Timestamp  string // ISO 8601
	Timezone   string // IANA name
}

// ChunkFile is one file sent as part of a chunk upload.
type ChunkFile struct {
	Name      string // relative path, used as the part name
	LocalPath string
}

// CheckPreviousUpload asks the server whether an upload already exists
// for the given relative folder path.
func (c *Client) CheckPreviousUpload(ctx context.Context, path string) (*PrevUpload, error) {
	var result PrevUpload
	r, err := c.restClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"path": path}).
		SetResult(&result).
		Post("/sandboxPrev")

	if err != nil {
		return nil, fmt.Errorf("failed to check previous upload: %w", err)
	}
	if err := c.checkResponse(r); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterUpload registers a new upload and returns its server-issued id.
func (c *Client) RegisterUpload(ctx context.Context, req RegisterUploadRequest) (string, error) {
	form := map[string]string{
		"collection": req.Collection,
		"location":   req.Location,
		"path":       req.Path,
		"comment":    req.Comment,
		"ts":         req.Timestamp,
		"tz":         req.Timezone,
	}

	// Split the manifest so no single field exceeds the server's limit.
	files := req.Files
	for i := 0; len(files) > 0 || i == 0; i++ {
		n := len(files)
		if n > ManifestFieldLimit {
			n = ManifestFieldLimit
		}
		encoded, err := json.Marshal(files[:n])
		if err != nil {
			return "", fmt.Errorf("failed to encode file manifest: %w", err)
		}
		field := "files"
		if i > 0 {
			field = fmt.Sprintf("files%d", i)
		}
		form[field] = string(encoded)
		files = files[n:]
	}

	var result struct {
		ID json.Number `json:"id"`
	}
	r, err := c.restClient.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post("/sandboxNew")

	if err != nil {
		return "", fmt.Errorf("failed to register upload: %w", err)
	}
	if err := c.checkResponse(r); err != nil {
		return "", err
	}
	return result.ID.String(), nil
}

// UploadChunk sends one multipart request carrying the given files.
func (c *Client) UploadChunk(ctx context.Context, uploadID, tzOffset, requestID string, files []ChunkFile) error {
	req := c.restClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"id":     uploadID,
			"tz_off": tzOffset,
			"req":    requestID,
		})

	readers := make([]*os.File, 0, len(files))
	defer func() {
		for _, f := range readers {
			f.Close()
		}
	}()
	for _, file := range files {
		f, err := os.Open(file.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file.LocalPath, err)
		}
		readers = append(readers, f)
		req.SetFileReader(file.Name, file.Name, f)
	}

	r, err := req.Post("/sandboxFile")
	if err != nil {
		return fmt.Errorf("failed to upload chunk: %w", err)
	}
	return c.checkResponse(r)
}

// GetUploadCounts polls the server for upload progress.
func (c *Client) GetUploadCounts(ctx context.Context, uploadID string) (*UploadCounts, error) {
	var result UploadCounts
	r, err := c.restClient.R().
		SetContext(ctx).
		SetQueryParam("i", uploadID).
		SetResult(&result).
		Get("/sandboxCounts")

	if err != nil {
		return nil, fmt.Errorf("failed to get upload counts: %w", err)
	}
	if err := c.checkResponse(r); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUnloadedFiles returns the file names the server believes were not
// uploaded.
func (c *Client) GetUnloadedFiles(ctx context.Context, uploadID string) ([]string, error) {
	var result []string
	r, err := c.restClient.R().
		SetContext(ctx).
		SetQueryParam("i", uploadID).
		SetResult(&result).
		Get("/sandboxUnloadedFiles")

	if err != nil {
		return nil, fmt.Errorf("failed to get unloaded files: %w", err)
	}
	if err := c.checkResponse(r); err != nil {
		return nil, err
	}
	return result, nil
}

// CompleteUpload marks the upload as completed on the server.
func (c *Client) CompleteUpload(ctx context.Context, uploadID string) error {
	r, err := c.restClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"id": uploadID}).
		Post("/sandboxCompleted")

	if err != nil {
		return fmt.Errorf("failed to complete upload: %w", err)
	}
	return c.checkResponse(r)
}

// ResetUpload resets the recorded progress of an upload so the same file
// list can be re-uploaded from the beginning. Returns the upload id to
// continue under.
func (c *Client) ResetUpload(ctx context.Context, uploadID string, files []string) (string, error) {
	encoded, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("failed to encode file manifest: %w", err)
	}

	var result struct {
		ID json.Number `json:"id"`
	}
	r, err := c.restClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"id":    uploadID,
			"files": string(encoded),
		}).
		SetResult(&result).
		Post("/sandboxReset")

	if err != nil {
		return "", fmt.Errorf("failed to reset upload: %w", err)
	}
	if err := c.checkResponse(r); err != nil {
		return "", err
	}
	return result.ID.String(), nil
}

// AbandonUpload abandons the upload. The server marks it completed but
// does not guarantee physical cleanup of already-staged files.
func (c *Client) AbandonUpload(ctx context.Context, uploadID string) error {
	r, err := c.restClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"id": uploadID}).
		Post("/sandboxAbandon")

	if err != nil {
		return fmt.Errorf("failed to abandon upload: %w", err)
	}
	return c.checkResponse(r)
}
