package embeddings

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hirelens/hirelens/internal/utils"
)

// Provider turns text into a fixed-dimension vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

// OpenAIProvider calls the OpenAI embeddings endpoint. The requested
// dimension must match the vector columns (768 by default).
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dims   int
}

func NewOpenAIProvider(apiKey, model string, dims int) *OpenAIProvider {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if dims <= 0 {
		dims = 768
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
		dims:   dims,
	}
}

func (p *OpenAIProvider) Model() string   { return p.model }
func (p *OpenAIProvider) Dimensions() int { return p.dims }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "OpenAIProvider.Embed"

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dims,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, utils.E(utils.CodeInternal, op, "embedding response contained no vector", nil)
	}
	return resp.Data[0].Embedding, nil
}

var _ Provider = (*OpenAIProvider)(nil)
