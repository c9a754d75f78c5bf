// Package remote is the client of the translation backend. Both calls are
// single request/response exchanges: Start means "remote accepted the job",
// never "job is done", and RetrieveArtifact is an independent download
// request made after completion. Neither call retries; retry policy belongs
// to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNetwork marks transport-level failures where no response was received.
var ErrNetwork = errors.New("remote service unreachable")

// ServiceError is a non-2xx response from the remote service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("remote service error (status %d): %s", e.StatusCode, e.Message)
}

// maxErrorBody bounds the raw-text fallback so arbitrary error payloads
// never reach the user unbounded.
const maxErrorBody = 200

type StartRequest struct {
	TaskID         string `json:"taskId"`
	UserID         string `json:"userId"`
	FileName       string `json:"fileName"`
	PDFContent     string `json:"pdfContent"`
	TargetLanguage string `json:"targetLanguage"`
}

type ArtifactRequest struct {
	TranslatedContent string `json:"translatedContent"`
	OriginalFileName  string `json:"originalFileName"`
	TargetLanguage    string `json:"targetLanguage"`
}

// Artifact is the downloaded result blob.
type Artifact struct {
	FileName string
	Data     []byte
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Start asks the remote service to begin processing a task. A nil return
// means the job was accepted, not that it finished.
func (c *Client) Start(ctx context.Context, req *StartRequest) error {
	resp, err := c.post(ctx, "/translate", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		svcErr := c.classify(resp)
		c.logger.Error("Trigger request rejected",
			zap.String("task_id", req.TaskID),
			zap.Int("status", svcErr.StatusCode),
			zap.String("message", svcErr.Message),
		)
		return svcErr
	}

	// Acknowledgement body shape is ignored beyond success.
	io.Copy(io.Discard, resp.Body)

	c.logger.Info("Translation accepted by remote service",
		zap.String("task_id", req.TaskID),
	)
	return nil
}

// RetrieveArtifact downloads the rendered result for a completed task. A
// failure here does not invalidate the completed translation.
func (c *Client) RetrieveArtifact(ctx context.Context, req *ArtifactRequest) (*Artifact, error) {
	resp, err := c.post(ctx, "/generate-pdf", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		svcErr := c.classify(resp)
		c.logger.Error("Artifact retrieval rejected",
			zap.Int("status", svcErr.StatusCode),
			zap.String("message", svcErr.Message),
		)
		return nil, svcErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	return &Artifact{
		FileName: artifactFileName(resp.Header.Get("Content-Disposition"), req.OriginalFileName, req.TargetLanguage),
		Data:     data,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return resp, nil
}

// classify turns a non-2xx response into a ServiceError, preferring a
// structured {"error": ...} body and falling back to truncated raw text.
func (c *Client) classify(resp *http.Response) *ServiceError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var structured struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && structured.Error != "" {
		return &ServiceError{StatusCode: resp.StatusCode, Message: structured.Error}
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody] + "..."
	}
	if raw == "" {
		raw = resp.Status
	}
	return &ServiceError{StatusCode: resp.StatusCode, Message: raw}
}

func artifactFileName(contentDisposition, originalFileName, targetLanguage string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}

	base := strings.TrimSuffix(filepath.Base(originalFileName), filepath.Ext(originalFileName))
	if base == "" || base == "." {
		base = "document"
	}
	return fmt.Sprintf("%s_translated_%s.pdf", base, targetLanguage)
}
