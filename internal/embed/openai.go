package embed

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient uses the OpenAI embeddings API shape against a server that
// hosts a CLIP model (self-hosted inference servers expose this). Images
// are sent as data URIs in the input list.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client. baseURL may be empty to use api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string    { return o.model }

func (o *OpenAIClient) Embed(ctx context.Context, req Request) (*Result, error) {
	result := &Result{
		Provider: o.ProviderName(),
		Model:    o.model,
	}

	if len(req.Texts) > 0 {
		vecs, err := o.create(ctx, req.Texts)
		if err != nil {
			return nil, fmt.Errorf("embedding texts: %w", err)
		}
		result.Texts = vecs
	}

	if req.Image != nil {
		vecs, err := o.create(ctx, []string{imageDataURI(req.Image)})
		if err != nil {
			return nil, fmt.Errorf("embedding image: %w", err)
		}
		result.Image = vecs[0]
	}

	if err := result.check(req); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *OpenAIClient) create(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings call: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(inputs))
	}

	// The API does not promise response order; Index does.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func imageDataURI(data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(data), base64.StdEncoding.EncodeToString(data))
}
