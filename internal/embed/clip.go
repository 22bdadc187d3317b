package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CLIPClient calls a CLIP model server sidecar. The sidecar exposes
//
//	POST {baseURL}/embed
//	{"model": "...", "images": ["<base64>"], "texts": ["..."]}
//	→ {"image_embeds": [[...]], "text_embeds": [[...]]}
//
// and returns projected (image_embeds / text_embeds) CLIP vectors.
type CLIPClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewCLIPClient creates a client for the sidecar at baseURL.
func NewCLIPClient(baseURL, model string, timeout time.Duration) *CLIPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CLIPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *CLIPClient) ProviderName() string { return "clip" }
func (c *CLIPClient) ModelName() string    { return c.model }

type clipRequest struct {
	Model  string   `json:"model"`
	Images []string `json:"images,omitempty"`
	Texts  []string `json:"texts,omitempty"`
}

type clipResponse struct {
	ImageEmbeds [][]float32 `json:"image_embeds"`
	TextEmbeds  [][]float32 `json:"text_embeds"`
	Error       string      `json:"error,omitempty"`
}

func (c *CLIPClient) Embed(ctx context.Context, req Request) (*Result, error) {
	body := clipRequest{Model: c.model, Texts: req.Texts}
	if req.Image != nil {
		body.Images = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding clip request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "listing-check/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("clip sidecar call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("reading clip response: %w", err)
	}

	var out clipResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(data, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("clip sidecar: HTTP %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("clip sidecar: HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing clip response: %w", err)
	}

	result := &Result{
		Texts:    out.TextEmbeds,
		Provider: c.ProviderName(),
		Model:    c.model,
	}
	if req.Image != nil {
		if len(out.ImageEmbeds) != 1 {
			return nil, fmt.Errorf("clip sidecar returned %d image embeddings, want 1", len(out.ImageEmbeds))
		}
		result.Image = out.ImageEmbeds[0]
	}
	if len(req.Texts) == 0 {
		result.Texts = nil
	}

	if err := result.check(req); err != nil {
		return nil, err
	}
	return result, nil
}
