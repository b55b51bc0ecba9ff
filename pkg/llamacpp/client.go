// Package llamacpp is the crop review backend for llama.cpp servers and
// other OpenAI compatible chat completion endpoints.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/leafcrop/pkg/client"
	"github.com/menta2k/leafcrop/pkg/types"
)

const (
	DefaultURL     = "http://localhost:8080"
	completionPath = "/v1/chat/completions"
	defaultTimeout = 300 * time.Second
)

var _ client.VisionClient = (*Client)(nil)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// sampling holds the generation knobs of one request
type sampling struct {
	temperature float64
	maxTokens   int
	topP        float64
}

var (
	chatSampling   = sampling{temperature: 0.7, maxTokens: 2048, topP: 0.9}
	reviewSampling = sampling{temperature: 0.1, maxTokens: 1024, topP: 0.8}
)

type part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string `json:"role"`
	Content []part `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

// the reply content is either a plain string or a list of parts
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient targets serverURL, or DefaultURL when it is empty.
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("llama.cpp url %q needs an http or https scheme", serverURL)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	text, err := c.complete(ctx, model, prompt, imgB64, chatSampling)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", types.ExternalError("llamacpp", "no text content in response", nil)
	}
	return text, nil
}

// ReviewCrop asks the model to judge a crop overlay and parses its verdict
func (c *Client) ReviewCrop(ctx context.Context, model, prompt, imgB64 string) (*types.CropReview, error) {
	text, err := c.complete(ctx, model, prompt, imgB64, reviewSampling)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, types.ExternalError("llamacpp", "empty review from server", nil)
	}
	return client.ParseCropReview(text), nil
}

// complete sends one user turn with an optional JPEG and returns the text
// of the first choice.
func (c *Client) complete(ctx context.Context, model, prompt, imgB64 string, s sampling) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	content := []part{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		content = append(content, part{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/jpeg;base64," + imgB64},
		})
	}

	body, err := c.post(ctx, completionRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: content}},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		TopP:        s.topP,
	})
	if err != nil {
		return "", err
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", types.ExternalError("llamacpp", "undecodable response", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.ExternalError("llamacpp", "no choices in response", nil)
	}
	return contentText(resp.Choices[0].Message.Content), nil
}

func contentText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var parts []part
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	for _, p := range parts {
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, payload completionRequest) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.ExternalError("llamacpp", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.ExternalError("llamacpp", "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.ExternalError("llamacpp", fmt.Sprintf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	return body, nil
}
