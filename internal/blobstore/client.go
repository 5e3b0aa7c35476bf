// Package blobstore предоставляет клиент хранилища бинарных файлов.
package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrUpload возвращается, если хранилище ответило не-2xx статусом.
var ErrUpload = errors.New("blob store upload failed")

// Client инкапсулирует HTTP-взаимодействие с хранилищем файлов.
type Client struct {
	baseURL      string
	uploadPreset string
	httpClient   *http.Client
}

// UploadResult описывает ответ хранилища на загрузку одного файла.
type UploadResult struct {
	OriginalFilename string `json:"original_filename"`
	SecureURL        string `json:"secure_url"`
	PublicID         string `json:"public_id"`
	Bytes            int64  `json:"bytes"`
	Format           string `json:"format"`
}

// NewClient создаёт HTTP-клиент хранилища файлов по указанному адресу.
func NewClient(baseURL, uploadPreset string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		uploadPreset: uploadPreset,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Upload передаёт содержимое файла в хранилище в каталог folder.
// Документы загружаются как raw-ресурсы, изображения — как image.
func (c *Client) Upload(ctx context.Context, name string, data []byte, isDocument bool, folder string) (*UploadResult, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("blob store client not configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.WriteField("upload_preset", c.uploadPreset); err != nil {
		return nil, fmt.Errorf("write upload preset: %w", err)
	}
	if err := writer.WriteField("folder", folder); err != nil {
		return nil, fmt.Errorf("write folder: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	resourceType := "image"
	if isDocument {
		resourceType = "raw"
	}

	url := fmt.Sprintf("%s/%s/upload", base, resourceType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
