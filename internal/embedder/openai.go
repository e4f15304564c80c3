// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package embedder

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// Compile-time interface check.
var _ Embedder = (*OpenAI)(nil)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAI embeds text through the OpenAI embeddings API. Dimensions is
// passed on every request so the returned vectors always fit the index.
type OpenAI struct {
	client     openaisdk.Client
	model      string
	dimensions int
}

// NewOpenAI creates an OpenAI embedder. Returns an error if the API key
// is missing.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, mnerr.New(mnerr.CodeConfigValidateInvalidValue,
			"openai embedder requires an api key")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultDimensions
	}

	return &OpenAI{
		client:     openaisdk.NewClient(opts...),
		model:      model,
		dimensions: dims,
	}, nil
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input:      openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model:      openaisdk.EmbeddingModel(o.model),
		Dimensions: openaisdk.Int(int64(o.dimensions)),
	})
	if err != nil {
		return nil, mnerr.Wrapf(err, mnerr.CodeEmbedderFailure,
			"embedding text with %s", o.model)
	}
	if len(resp.Data) == 0 {
		return nil, mnerr.New(mnerr.CodeEmbedderFailure, "embeddings response had no data")
	}

	raw := resp.Data[0].Embedding
	if len(raw) != o.dimensions {
		return nil, mnerr.New(mnerr.CodeEmbedderDimMismatch,
			"embedding has wrong dimensions",
			mnerr.Field("want", o.dimensions),
			mnerr.Field("got", len(raw)))
	}

	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (o *OpenAI) Dimensions() int {
	return o.dimensions
}
