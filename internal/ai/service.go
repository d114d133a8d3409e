package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/doccache"
)

// ImageRecord is the history row persisted after a successful generation.
// Prompt holds the user's original text, before style expansion.
type ImageRecord struct {
	UserID string
	Prompt string
	Model  string
	Size   string
	Style  string
	URL    string
}

// ImageRecorder is the storage collaborator for generation history.
type ImageRecorder interface {
	SaveGenerated(ctx context.Context, rec ImageRecord) error
}

// GenerationRequest is a caller's image request before validation.
type GenerationRequest struct {
	Prompt string
	Model  string
	Size   string
	Style  string
}

// DocumentAnswer is the result of a document-augmented completion.
type DocumentAnswer struct {
	Analysis string
	FileName string
}

// ServiceOptions wires the orchestration facade.
type ServiceOptions struct {
	Client    *Client
	Cache     *doccache.Cache
	Recorder  ImageRecorder
	Logger    *zerolog.Logger
	Metrics   *Metrics
	ChatModel string
	// Sleep and Now are forwarded to per-request pollers; tests use them
	// to run on a virtual clock.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Service composes the upstream client, the poller, and the document
// cache. It is the only entry point route handlers talk to.
type Service struct {
	client    *Client
	cache     *doccache.Cache
	recorder  ImageRecorder
	logger    zerolog.Logger
	metrics   *Metrics
	chatModel string
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewService constructs the facade.
func NewService(opts ServiceOptions) *Service {
	s := &Service{
		client:    opts.Client,
		cache:     opts.Cache,
		recorder:  opts.Recorder,
		logger:    zerolog.New(io.Discard),
		metrics:   opts.Metrics,
		chatModel: opts.ChatModel,
		sleep:     opts.Sleep,
		now:       opts.Now,
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}
	if s.cache == nil {
		s.cache = doccache.New()
	}
	if s.chatModel == "" {
		s.chatModel = "Qwen/Qwen2.5-72B-Instruct"
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CompleteChat relays a streaming completion exchange byte-for-byte.
func (s *Service) CompleteChat(ctx context.Context, payload io.Reader, w http.ResponseWriter) error {
	if !s.client.Configured() {
		return ErrNotConfigured
	}
	return s.client.RelayChatStream(ctx, payload, w)
}

// GenerateImage validates and style-expands the prompt, submits it, and
// waits out the async task when the upstream hands one back. The history
// record is written off the request path: a persistence failure is logged
// and counted but never fails a response the user already earned.
func (s *Service) GenerateImage(ctx context.Context, userID string, req GenerationRequest) (string, error) {
	prompt, err := ValidatePrompt(req.Prompt)
	if err != nil {
		return "", err
	}
	if !s.client.Configured() {
		return "", ErrNotConfigured
	}
	expanded := ExpandStyle(prompt, req.Style)
	start := s.now()

	submitted, err := s.client.SubmitImage(ctx, expanded, req.Model, req.Size)
	if err != nil {
		s.metrics.observeGeneration(outcomeLabel(err))
		return "", err
	}

	url := submitted.URL
	if submitted.TaskID != "" {
		s.logger.Info().Str("task_id", submitted.TaskID).Str("model", req.Model).Msg("awaiting async generation task")
		poller := NewTaskPoller(PollerOptions{
			Fetcher: s.client,
			Logger:  &s.logger,
			Sleep:   s.sleep,
			Now:     s.now,
		})
		url, err = poller.Await(ctx, submitted.TaskID)
		if err != nil {
			s.metrics.observeGeneration(outcomeLabel(err))
			return "", err
		}
	}

	s.metrics.observeGeneration("succeeded")
	s.metrics.observeDuration(s.now().Sub(start).Seconds())

	if s.recorder != nil && userID != "" {
		rec := ImageRecord{
			UserID: userID,
			Prompt: prompt,
			Model:  req.Model,
			Size:   req.Size,
			Style:  req.Style,
			URL:    url,
		}
		go s.persistRecord(rec)
	}
	return url, nil
}

func (s *Service) persistRecord(rec ImageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.recorder.SaveGenerated(ctx, rec); err != nil {
		s.metrics.observePersistFailure()
		s.logger.Error().Err(err).Str("user_id", rec.UserID).Msg("failed to record generated image")
		return
	}
	s.logger.Debug().Str("user_id", rec.UserID).Msg("image record saved")
}

// CacheDocument stores decoded document text for the session. The cache
// bounds and timestamps it.
func (s *Service) CacheDocument(sessionKey, fileName, content string) {
	s.cache.Put(sessionKey, fileName, content)
}

// CompleteWithDocument consumes the session's cached document and asks
// the upstream a question about it. A missing or expired document is a
// hard failure so a stale upload can never answer for a new one.
func (s *Service) CompleteWithDocument(ctx context.Context, sessionKey, prompt string) (DocumentAnswer, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return DocumentAnswer{}, &ValidationError{Reason: "question must not be empty"}
	}
	if !s.client.Configured() {
		return DocumentAnswer{}, ErrNotConfigured
	}
	doc, ok := s.cache.TakeIfFresh(sessionKey)
	if !ok {
		return DocumentAnswer{}, ErrNoDocumentContext
	}
	messages := []ChatMessage{
		{
			Role: "system",
			Content: fmt.Sprintf(
				"You are a document analysis assistant. Answer strictly based on the document %q below.\n\n%s",
				doc.FileName, doc.Content,
			),
		},
		{Role: "user", Content: prompt},
	}
	analysis, err := s.client.Complete(ctx, s.chatModel, messages)
	if err != nil {
		return DocumentAnswer{}, err
	}
	return DocumentAnswer{Analysis: analysis, FileName: doc.FileName}, nil
}

func outcomeLabel(err error) string {
	var (
		validation *ValidationError
		upstream   *UpstreamRequestError
		failed     *GenerationFailedError
	)
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnrecognizedResult):
		return "unrecognized_result"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.As(err, &failed):
		return "failed"
	case errors.As(err, &upstream):
		return "upstream_error"
	case errors.As(err, &validation):
		return "invalid"
	default:
		return "error"
	}
}
