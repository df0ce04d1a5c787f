// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend is the typed HTTP client for the knowledge-index
// service. It owns the wire contract: paths, query parameters, payload
// shapes, and the translation of non-2xx responses into the error
// taxonomy the orchestration components react to.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/kbctl/internal/httputil"
	"github.com/pdiddy/kbctl/pkg/types"
)

// Client talks to one knowledge-index service.
type Client struct {
	cfg     types.BackendConfig
	http    *http.Client
	session string
}

// New builds a client from config. Each client carries a session ID sent
// as X-Request-ID so the service can correlate one CLI session's calls.
func New(cfg types.BackendConfig) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		session: uuid.NewString(),
	}
}

// ServiceConfig is the service's self-description from GET /config.
type ServiceConfig struct {
	// OperationsRestricted disables create, delete, and upload
	// server-side; the client mirrors the refusal locally.
	OperationsRestricted bool `json:"operationsRestricted"`

	// Environment names the deployment ("local", "azure", ...).
	Environment string `json:"environment"`
}

// UploadResult is the service's acknowledgement of a stored file.
type UploadResult struct {
	Message string `json:"message"`
	Pages   int    `json:"pages"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-Request-ID", c.session)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := httputil.DoWithRetry(req.Context(), c.http, req, c.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// statusError drains the body into a StatusError.
func statusError(resp *http.Response) error {
	return &StatusError{Code: resp.StatusCode, Detail: httputil.ErrorBody(resp)}
}

func restrictedQuery(ix types.Index) url.Values {
	return url.Values{"is_restricted": {strconv.FormatBool(ix.Restricted)}}
}

// Config fetches the service's self-description.
func (c *Client) Config(ctx context.Context) (ServiceConfig, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/config", nil, nil, "")
	if err != nil {
		return ServiceConfig{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return ServiceConfig{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return ServiceConfig{}, statusError(resp)
	}

	var cfg ServiceConfig
	if err := httputil.DecodeJSON(resp, &cfg); err != nil {
		return ServiceConfig{}, err
	}
	return cfg, nil
}

// ListIndexes fetches the full index list. Entries arrive in any of the
// historical wire shapes; decoding through types.Index normalizes them.
// Zero-named entries (malformed wire data) are dropped.
func (c *Client) ListIndexes(ctx context.Context) ([]types.Index, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/indexes", nil, nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var payload struct {
		Indexes []types.Index `json:"indexes"`
	}
	if err := httputil.DecodeJSON(resp, &payload); err != nil {
		return nil, err
	}

	indexes := payload.Indexes[:0]
	for _, ix := range payload.Indexes {
		if !ix.IsZero() {
			indexes = append(indexes, ix)
		}
	}
	return indexes, nil
}

// CreateIndex asks the service to create an index.
func (c *Client) CreateIndex(ctx context.Context, ix types.Index) error {
	body, err := json.Marshal(map[string]any{"name": ix.Name, "is_restricted": ix.Restricted})
	if err != nil {
		return fmt.Errorf("encoding create request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/indexes", nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// DeleteIndex removes an index and everything in it.
func (c *Client) DeleteIndex(ctx context.Context, ix types.Index) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/indexes/"+url.PathEscape(ix.Name), restrictedQuery(ix), nil, "")
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// ListFiles fetches per-file metadata for one index. A 404 translates
// to ErrMissingCapability; every other non-2xx is a StatusError.
func (c *Client) ListFiles(ctx context.Context, ix types.Index) ([]types.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/indexes/"+url.PathEscape(ix.Name)+"/files", restrictedQuery(ix), nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, ErrMissingCapability
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var payload struct {
		Files []types.Document `json:"files"`
	}
	if err := httputil.DecodeJSON(resp, &payload); err != nil {
		return nil, err
	}
	return payload.Files, nil
}

// Upload stores one document in an index via a multipart request. The
// multimodal flag requests enhanced (image-aware) processing.
func (c *Client) Upload(ctx context.Context, ix types.Index, filename string, r io.Reader, multimodal bool) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.WriteField("multimodal", strconv.FormatBool(multimodal)); err != nil {
		return UploadResult{}, fmt.Errorf("building multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("building multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/indexes/"+url.PathEscape(ix.Name)+"/upload", restrictedQuery(ix), &buf, mw.FormDataContentType())
	if err != nil {
		return UploadResult{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return UploadResult{}, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return UploadResult{}, statusError(resp)
	}

	var result UploadResult
	if err := httputil.DecodeJSON(resp, &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// StartIndexing asks the service to begin the background indexing job.
func (c *Client) StartIndexing(ctx context.Context, ix types.Index) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/indexes/"+url.PathEscape(ix.Name)+"/index", restrictedQuery(ix), nil, "")
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", statusError(resp)
	}

	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := httputil.DecodeJSON(resp, &payload); err != nil {
		return "", err
	}
	return payload.Message, nil
}

// JobStatus fetches one observation of the indexing job. Unrecognized
// status strings map to JobNotStarted; failure detail may arrive in
// either "message" or "error".
func (c *Client) JobStatus(ctx context.Context, ix types.Index) (types.JobSnapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/indexes/"+url.PathEscape(ix.Name)+"/index/status", restrictedQuery(ix), nil, "")
	if err != nil {
		return types.JobSnapshot{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return types.JobSnapshot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return types.JobSnapshot{}, statusError(resp)
	}

	var payload struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Message  string `json:"message"`
		Error    string `json:"error"`
	}
	if err := httputil.DecodeJSON(resp, &payload); err != nil {
		return types.JobSnapshot{}, err
	}

	snap := types.JobSnapshot{Progress: payload.Progress, Message: payload.Message}
	if snap.Message == "" {
		snap.Message = payload.Error
	}
	switch payload.Status {
	case "in_progress":
		snap.State = types.JobInProgress
	case "completed":
		snap.State = types.JobCompleted
	case "failed":
		snap.State = types.JobFailed
	default:
		snap.State = types.JobNotStarted
	}
	return snap, nil
}
