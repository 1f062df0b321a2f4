// Package llm is the Gemini-backed conversation collaborator.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loan-assistant/internal/common/errors"
	httpclient "loan-assistant/internal/common/http"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/metrics"
	"loan-assistant/internal/models"
)

var (
	ErrLLMFailed  = stderrors.New("LLM_FAILED")
	ErrEmptyReply = stderrors.New("empty reply")
)

// HTTPClient is satisfied by *http.Client and the shared outbound client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Reply is one model answer. HintErr is set when the reply carried an
// entity block that failed validation; Text is still usable.
type Reply struct {
	Text     string
	Hint     *models.EntityHint
	HintErr  error
	Attempts int
}

type Client struct {
	config *Config
	http   HTTPClient
	logger logger.Logger
}

type Option func(*Client)

func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(cfg *Config, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		config: cfg,
		http:   httpclient.NewClient(cfg.Timeout + 5*time.Second),
		logger: logger.Component(log, "llm"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
	SafetySettings    []safetySetting  `json:"safetySettings,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

var safetySettings = []safetySetting{
	{"HARM_CATEGORY_HARASSMENT", "BLOCK_MEDIUM_AND_ABOVE"},
	{"HARM_CATEGORY_HATE_SPEECH", "BLOCK_MEDIUM_AND_ABOVE"},
	{"HARM_CATEGORY_SEXUALLY_EXPLICIT", "BLOCK_MEDIUM_AND_ABOVE"},
	{"HARM_CATEGORY_DANGEROUS_CONTENT", "BLOCK_MEDIUM_AND_ABOVE"},
}

// Send asks the model to answer masked given the prior history. Transient
// failures are retried with exponential backoff; whatever remains after the
// last attempt is returned as a single StandardError.
func (c *Client) Send(ctx context.Context, history []models.Message, masked string, o Overrides) (*Reply, error) {
	body, err := json.Marshal(generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemPrompt}}},
		Contents:          buildContents(history, masked),
		GenerationConfig:  c.config.Generation.With(o),
		SafetySettings:    safetySettings,
	})
	if err != nil {
		return nil, errors.NewLLMAPIFailureError(0, fmt.Errorf("%w: encode request: %v", ErrLLMFailed, err))
	}

	var lastErr error
	var lastStatus int
	timedOut := false
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.LLMCalls.WithLabelValues("timeout").Inc()
				return nil, errors.NewLLMTimeoutError(c.config.Timeout)
			}
		}

		raw, status, err := c.call(ctx, body)
		if err == nil {
			metrics.LLMCalls.WithLabelValues("success").Inc()
			text, hint, hintErr := ParseReply(raw)
			return &Reply{Text: text, Hint: hint, HintErr: hintErr, Attempts: attempt + 1}, nil
		}

		lastErr, lastStatus = err, status
		timedOut = stderrors.Is(err, context.DeadlineExceeded)
		c.logger.Warn("LLM attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"status":  status,
			"error":   err.Error(),
		})

		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			metrics.LLMCalls.WithLabelValues("auth_failed").Inc()
			return nil, errors.NewLLMAuthFailedError(status)
		}
		if ctx.Err() != nil {
			break
		}
	}

	switch {
	case timedOut || ctx.Err() != nil:
		metrics.LLMCalls.WithLabelValues("timeout").Inc()
		return nil, errors.NewLLMTimeoutError(c.config.Timeout)
	case lastStatus == http.StatusTooManyRequests:
		metrics.LLMCalls.WithLabelValues("quota").Inc()
		return nil, errors.NewLLMQuotaExceededError(lastStatus)
	default:
		metrics.LLMCalls.WithLabelValues("failure").Inc()
		return nil, errors.NewLLMAPIFailureError(c.config.MaxAttempts, fmt.Errorf("%w: %v", ErrLLMFailed, lastErr))
	}
}

// call makes one bounded attempt and returns the reply text or the HTTP
// status with the error.
func (c *Client) call(ctx context.Context, body []byte) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.config.BaseURL, "/"), c.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", resp.StatusCode, fmt.Errorf("prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", resp.StatusCode, ErrEmptyReply
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", resp.StatusCode, fmt.Errorf("%w (finish reason %s)", ErrEmptyReply, out.Candidates[0].FinishReason)
	}
	return sb.String(), resp.StatusCode, nil
}

// buildContents maps history to alternating user/model turns ending with
// the new user text. Apology replies are skipped, leading assistant turns
// are dropped and consecutive same-role turns are joined.
func buildContents(history []models.Message, masked string) []content {
	var out []content
	add := func(role, text string) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts[0].Text += "\n" + text
			return
		}
		out = append(out, content{Role: role, Parts: []part{{Text: text}}})
	}

	for _, m := range history {
		if m.Error {
			continue
		}
		role := "user"
		if m.Role == models.RoleAssistant {
			if len(out) == 0 {
				continue
			}
			role = "model"
		}
		add(role, m.Text)
	}
	add("user", masked)
	return out
}
