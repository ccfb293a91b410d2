// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/ragdir/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoChoices is returned when the model responds without any completion.
var ErrNoChoices = errors.New("model returned no choices")

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate answers the request and blocks until the full answer is available.
func (g *Generator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	return g.generate(ctx, req, nil)
}

// GenerateStream answers the request, passing each streamed fragment to onFragment.
func (g *Generator) GenerateStream(ctx context.Context, req ai.GenerateRequest, onFragment ai.FragmentFunc) (string, error) {
	return g.generate(ctx, req, onFragment)
}

func (g *Generator) generate(ctx context.Context, req ai.GenerateRequest, onFragment ai.FragmentFunc) (string, error) {
	content := buildMessages(req)

	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	var streamed strings.Builder
	if onFragment != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			streamed.Write(chunk)
			return onFragment(ctx, string(chunk))
		}))
	}

	g.logger.Debug("generating answer",
		"contextLength", len(req.Context),
		"history", len(req.History),
		"streaming", onFragment != nil)

	response, err := g.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		if streamed.Len() > 0 {
			return streamed.String(), nil
		}
		g.logger.Warn("no choices returned from model")
		return "", ErrNoChoices
	}

	answer := response.Choices[0].Content
	if answer == "" && streamed.Len() > 0 {
		answer = streamed.String()
	}
	return strings.TrimSpace(answer), nil
}

// buildMessages lays out the system prompt, prior exchanges and the final
// question with its context.
func buildMessages(req ai.GenerateRequest) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, 2+2*len(req.History))
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
	})

	for _, ex := range req.History {
		content = append(content,
			llms.MessageContent{
				Role:  llms.ChatMessageTypeHuman,
				Parts: []llms.ContentPart{llms.TextPart(ex.Question)},
			},
			llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: []llms.ContentPart{llms.TextPart(ex.Answer)},
			},
		)
	}

	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(buildUserPrompt(req))},
	})
	return content
}
