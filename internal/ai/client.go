package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// asyncImageModel is the one model the upstream executes as a
	// background task; submissions for it must carry the async-mode header.
	asyncImageModel = "Tongyi-MAI/Z-Image-Turbo"

	defaultImageModel = "Kwai-Kolors/Kolors"
	defaultImageSize  = "1024x1024"

	headerAsyncMode = "X-ModelScope-Async-Mode"
	headerTaskType  = "X-ModelScope-Task-Type"
	taskTypeImage   = "image_generation"
)

// Options configures the upstream client.
type Options struct {
	BaseURL string
	APIKey  string
	// HTTPClient must not carry its own Timeout: streaming responses stay
	// open indefinitely and per-call deadlines are applied via context.
	HTTPClient *http.Client
	// SubmitTimeout bounds a single generation submission call.
	SubmitTimeout time.Duration
	// PollTimeout bounds a single status check. Much smaller than the
	// poller's overall deadline.
	PollTimeout time.Duration
}

// Client performs HTTP calls against the upstream generative-AI service.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	submitTimeout time.Duration
	pollTimeout   time.Duration
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 60 * time.Second
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	return &Client{
		httpClient:    httpClient,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiKey:        strings.TrimSpace(opts.APIKey),
		submitTimeout: submitTimeout,
		pollTimeout:   pollTimeout,
	}
}

// Configured reports whether the client has both an upstream URL and key.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// TaskStatus is the normalized lifecycle state of an async generation task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusRunning   TaskStatus = "RUNNING"
	StatusSucceeded TaskStatus = "SUCCEEDED"
	StatusFailed    TaskStatus = "FAILED"
	StatusUnknown   TaskStatus = "UNKNOWN"
)

// normalizeStatus folds the upstream wire spellings into TaskStatus.
// DashScope-style backends report "SUCCEED", others "SUCCEEDED".
func normalizeStatus(raw string) TaskStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "QUEUED":
		return StatusPending
	case "RUNNING", "PROCESSING":
		return StatusRunning
	case "SUCCEED", "SUCCEEDED", "SUCCESS":
		return StatusSucceeded
	case "FAILED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

type urlEntry struct {
	URL string `json:"url"`
}

// taskResult holds every result-location field the upstream is known to
// use. Which one is populated varies by model.
type taskResult struct {
	Data         []urlEntry `json:"data"`
	OutputImages []string   `json:"output_images"`
	Results      []urlEntry `json:"results"`
	Images       []urlEntry `json:"images"`
}

// resultExtractors are tried in order against a succeeded task. Keeping
// the strategies in an explicit list makes upstream schema drift visible
// in one place.
var resultExtractors = []struct {
	name string
	fn   func(taskResult) (string, bool)
}{
	{"output_images", func(r taskResult) (string, bool) {
		if len(r.OutputImages) > 0 && r.OutputImages[0] != "" {
			return r.OutputImages[0], true
		}
		return "", false
	}},
	{"results", func(r taskResult) (string, bool) {
		if len(r.Results) > 0 && r.Results[0].URL != "" {
			return r.Results[0].URL, true
		}
		return "", false
	}},
	{"images", func(r taskResult) (string, bool) {
		if len(r.Images) > 0 && r.Images[0].URL != "" {
			return r.Images[0].URL, true
		}
		return "", false
	}},
}

func extractResultURL(r taskResult) (string, bool) {
	for _, ex := range resultExtractors {
		if url, ok := ex.fn(r); ok {
			return url, true
		}
	}
	return "", false
}

// Task is one observed snapshot of an async generation task.
type Task struct {
	Status TaskStatus
	Result taskResult
	// Detail carries the raw response body for FAILED tasks.
	Detail string
}

// ResultURL returns the first recognizable image location.
func (t *Task) ResultURL() (string, bool) {
	return extractResultURL(t.Result)
}

// SubmitResult distinguishes the two successful submission outcomes:
// an async task handle, or an immediately available image.
type SubmitResult struct {
	TaskID string
	URL    string
}

type submitPayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	N      int    `json:"n"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	taskResult
}

// SubmitImage posts a generation request. Models the upstream runs
// asynchronously come back as a task id; everything else returns the
// image URL inline.
func (c *Client) SubmitImage(ctx context.Context, prompt, model, size string) (SubmitResult, error) {
	if !c.Configured() {
		return SubmitResult{}, ErrNotConfigured
	}
	if model == "" {
		model = defaultImageModel
	}
	if size == "" {
		size = defaultImageSize
	}
	body, err := json.Marshal(submitPayload{Model: model, Prompt: prompt, Size: size, N: 1})
	if err != nil {
		return SubmitResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if model == asyncImageModel {
		req.Header.Set(headerAsyncMode, "true")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("ai: submit generation: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("ai: read submit response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SubmitResult{}, &UpstreamRequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return SubmitResult{}, fmt.Errorf("ai: decode submit response: %w", err)
	}
	if out.TaskID != "" {
		return SubmitResult{TaskID: out.TaskID}, nil
	}
	if len(out.Data) > 0 && out.Data[0].URL != "" {
		return SubmitResult{URL: out.Data[0].URL}, nil
	}
	if url, ok := extractResultURL(out.taskResult); ok {
		return SubmitResult{URL: url}, nil
	}
	return SubmitResult{}, ErrUnrecognizedResult
}

type taskStatusResponse struct {
	TaskStatus string `json:"task_status"`
	taskResult
}

// PollTask performs one status check for the task. A client-side network
// failure or per-call timeout comes back as a TransientPollError so the
// poller can retry; a non-success HTTP status is an UpstreamRequestError;
// an upstream-reported FAILED status is a terminal GenerationFailedError.
func (c *Client) PollTask(ctx context.Context, taskID string) (*Task, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	callCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set(headerTaskType, taskTypeImage)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Caller cancellation is not a transient upstream hiccup.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientPollError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientPollError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamRequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var out taskStatusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransientPollError{Err: fmt.Errorf("decode task status: %w", err)}
	}
	task := &Task{Status: normalizeStatus(out.TaskStatus), Result: out.taskResult}
	if task.Status == StatusFailed {
		task.Detail = string(raw)
		return task, &GenerationFailedError{Detail: task.Detail}
	}
	return task, nil
}

// ChatMessage is one turn of a completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionPayload struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete performs a synchronous, non-streaming chat completion and
// returns the assistant's text.
func (c *Client) Complete(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(completionPayload{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("ai: read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamRequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ai: decode completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("ai: completion response carried no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// openStream posts the caller's payload to the streaming chat endpoint
// and hands back the live response. The caller owns resp.Body.
func (c *Client) openStream(ctx context.Context, payload io.Reader) (*http.Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: streaming request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, &UpstreamRequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}
