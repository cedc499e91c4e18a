package knowledge

import (
	"context"

	"github.com/mrosst/voicerag/internal/bedrock"
)

// TitanEmbedder embeds text with an Amazon Titan embedding model.
type TitanEmbedder struct {
	client  *bedrock.Client
	modelID string
}

func NewTitanEmbedder(client *bedrock.Client, modelID string) *TitanEmbedder {
	return &TitanEmbedder{client: client, modelID: modelID}
}

func (e *TitanEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.client.EmbedText(ctx, e.modelID, text)
}
