package openai

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

	"github.com/cenkalti/backoff/v4"

	"github.com/kirki-ai/kirki-backend/pkg/config"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
)

const (
	requestBodyReadLimit int64 = 2048
	chatTemperature            = 0.3
	imageSize                  = "1024x1024"
	imageQuality               = "standard"
)

var errAPIKeyRequired = errors.New("openai api key is required")

// Client wraps the OpenAI endpoints used by the processing pipeline:
// audio transcription, chat completions and image generation.
type Client struct {
	httpClient     *http.Client
	downloadClient *http.Client
	baseURL        string
	apiKey         string
	speechModel    string
	chatModel      string
	imageModel     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the OpenAI client from configuration.
func NewClient(cfg config.OpenAIConfig, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(cfg.APIKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:         trimmedKey,
		baseURL:        strings.TrimSpace(cfg.BaseURL),
		speechModel:    cfg.SpeechModel,
		chatModel:      cfg.ChatModel,
		imageModel:     cfg.ImageModel,
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		downloadClient: &http.Client{Timeout: cfg.DownloadTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.baseURL == "" {
		client.baseURL = "https://api.openai.com/v1"
	}

	return client, nil
}

// Word is a single transcribed word with its timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcription is the result of a speech-to-text call.
type Transcription struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Words    []Word  `json:"words"`
}

// Transcribe sends media bytes to the transcription endpoint and returns the
// verbose result with word-level timestamps. Some providers reject the word
// granularity parameter, so a failed first attempt is retried without it; the
// retried result carries no word timings.
func (c *Client) Transcribe(ctx context.Context, filename string, content []byte) (*Transcription, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "openai client not configured")
	}
	if len(content) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transcription content is empty")
	}

	result, err := c.transcribeOnce(ctx, filename, content, true)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	return c.transcribeOnce(ctx, filename, content, false)
}

func (c *Client) transcribeOnce(ctx context.Context, filename string, content []byte, withWords bool) (*Transcription, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build transcription form")
	}
	if _, err := part.Write(content); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write transcription payload")
	}
	if err := writer.WriteField("model", c.speechModel); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write transcription model field")
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write transcription format field")
	}
	if withWords {
		if err := writer.WriteField("timestamp_granularities[]", "word"); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write transcription granularity field")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize transcription form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("audio/transcriptions"), &body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build transcription request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute transcription request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "transcription request failed")
	}

	var result Transcription
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode transcription response")
	}

	return &result, nil
}

// ChatJSON runs a chat completion constrained to a JSON object response and
// returns the raw content string.
func (c *Client) ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.chat(ctx, systemPrompt, userPrompt, true)
}

// Chat runs an unconstrained chat completion and returns the content string.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.chat(ctx, systemPrompt, userPrompt, false)
}

func (c *Client) chat(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "openai client not configured")
	}
	if strings.TrimSpace(userPrompt) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "chat prompt is required")
	}

	payload := map[string]any{
		"model":       c.chatModel,
		"temperature": chatTemperature,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	if jsonMode {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal chat request")
	}

	var content string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("chat/completions"), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build chat request"))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute chat request")
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return statusError(resp, "chat request failed")
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(statusError(resp, "chat request failed"))
		}

		var apiResp struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode chat response"))
		}
		if len(apiResp.Choices) == 0 {
			return backoff.Permanent(pkgerrors.New(pkgerrors.CodeDependency, "chat response has no choices"))
		}

		content = apiResp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return "", err
	}

	return content, nil
}

// GenerateImage creates an image from a prompt and returns its temporary URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "openai client not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image prompt is required")
	}

	payload := map[string]any{
		"model":   c.imageModel,
		"prompt":  prompt,
		"size":    imageSize,
		"quality": imageQuality,
		"n":       1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal image request")
	}

	var imageURL string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("images/generations"), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build image request"))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute image request")
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return statusError(resp, "image request failed")
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(statusError(resp, "image request failed"))
		}

		var apiResp struct {
			Data []struct {
				URL string `json:"url"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode image response"))
		}
		if len(apiResp.Data) == 0 || apiResp.Data[0].URL == "" {
			return backoff.Permanent(pkgerrors.New(pkgerrors.CodeDependency, "image response has no data"))
		}

		imageURL = apiResp.Data[0].URL
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return "", err
	}

	return imageURL, nil
}

// FetchImage downloads generated image bytes from the provider's temporary URL.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "openai client not configured")
	}
	if strings.TrimSpace(imageURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image URL is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build image download request")
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute image download request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "image download failed")
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func retryPolicy(ctx context.Context) backoff.BackOffContext {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second
	return backoff.WithContext(policy, ctx)
}

func statusError(resp *http.Response, msg string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
	return pkgerrors.Wrap(
		pkgerrors.CodeDependency,
		fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		msg,
	)
}
