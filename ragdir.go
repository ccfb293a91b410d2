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


// Package ragdir answers questions about a directory of documents using a
// local embedding model and chat model.
//
// App wires a config.Config to the AI provider and creates chat sessions:
//
//	app, err := ragdir.New(config.Default())
//	sess, err := app.NewSession()
//	report, err := sess.LoadDirectory(ctx, "./docs")
//	answer, err := sess.Ask(ctx, "How is the index built?")
package ragdir

import (
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragdir/ai"
	"github.com/poiesic/ragdir/ai/cache"
	"github.com/poiesic/ragdir/ai/openai"
	"github.com/poiesic/ragdir/chunker"
	"github.com/poiesic/ragdir/config"
	"github.com/poiesic/ragdir/index"
	badgerindex "github.com/poiesic/ragdir/index/badger"
	"github.com/poiesic/ragdir/search"
	"github.com/poiesic/ragdir/session"
)

// QueryCacheTTL is how long a question embedding stays cached.
const QueryCacheTTL = 10 * time.Minute

type App struct {
	cfg      *config.Config
	provider ai.AIProvider
	embedder ai.Embedder
	monitor  search.RankMonitor
	progress io.Writer
	logger   *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	provider ai.AIProvider
	monitor  search.RankMonitor
	progress io.Writer
	logger   *slog.Logger
}

// WithProvider uses provider instead of an OpenAI-compatible one built from
// the config.
func WithProvider(provider ai.AIProvider) AppOption {
	return func(o *appOptions) {
		o.provider = provider
	}
}

// WithRankMonitor attaches a monitor to every session's ranker.
func WithRankMonitor(monitor search.RankMonitor) AppOption {
	return func(o *appOptions) {
		o.monitor = monitor
	}
}

// WithProgress reports embedding progress to w while loading.
func WithProgress(w io.Writer) AppOption {
	return func(o *appOptions) {
		o.progress = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) {
		o.logger = logger
	}
}

func New(cfg *config.Config, opts ...AppOption) (*App, error) {
	options := &appOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return nil, err
		}
	}

	return &App{
		cfg:      cfg,
		provider: provider,
		embedder: cache.Wrap(provider.Embedder(), cfg.Index.QueryCacheSize, QueryCacheTTL),
		monitor:  options.monitor,
		progress: options.progress,
		logger:   options.logger.With("component", "app"),
	}, nil
}

// Config returns the validated configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Embedder returns the provider's embedder behind the query cache. Sessions
// use it for questions only; chunks are embedded uncached.
func (a *App) Embedder() ai.Embedder {
	return a.embedder
}

// Generator returns the provider's generator.
func (a *App) Generator() ai.Generator {
	return a.provider.Generator()
}

// Close releases the AI provider. Sessions must be exited first.
func (a *App) Close() error {
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
		return err
	}
	return nil
}

// NewSession creates an idle session configured from the App's config.
// opts are applied after the configured ones and win over them.
func (a *App) NewSession(opts ...session.Option) (*session.Session, error) {
	sessionOpts, err := a.sessionOptions()
	if err != nil {
		return nil, err
	}
	return session.New(a, append(sessionOpts, opts...)...)
}

func (a *App) sessionOptions() ([]session.Option, error) {
	cfg := a.cfg

	c, err := chunker.New(
		chunker.WithMaxChunkSize(cfg.Chunking.MaxChunkSize),
		chunker.WithOverlap(*cfg.Chunking.Overlap),
		chunker.WithLookahead(cfg.Chunking.Lookahead),
		chunker.WithSemanticBoundaries(*cfg.Chunking.Semantic),
		chunker.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	factory := index.NewFlatFactory()
	if cfg.Index.Backend == "badger" {
		factory = badgerindex.NewFactory(badgerindex.WithLogger(a.logger))
	}

	policy, _ := session.ParseEmptyResultPolicy(cfg.Retrieval.EmptyResult)

	opts := []session.Option{
		session.WithLogger(a.logger),
		session.WithChunker(c),
		session.WithIndexFactory(factory),
		session.WithIndexEmbedder(a.provider.Embedder()),
		session.WithBuilderOptions(
			index.WithPoolSize(cfg.Index.Workers),
			index.WithRateLimit(cfg.Index.RateLimit, cfg.Index.Burst),
			index.WithRetry(cfg.Index.MaxAttempts, cfg.RetryDelay()),
			index.WithProgress(a.progress),
		),
		session.WithTopK(cfg.Retrieval.TopK),
		session.WithMinScore(*cfg.Retrieval.MinScore),
		session.WithMaxContextChars(cfg.Retrieval.MaxContextChars),
		session.WithHistoryTurns(*cfg.Session.HistoryTurns),
		session.WithEmptyResultPolicy(policy),
		session.WithRankMonitor(a.monitor),
	}
	if len(cfg.Session.ExitCommands) > 0 {
		opts = append(opts, session.WithExitCommands(cfg.Session.ExitCommands...))
	}
	return opts, nil
}
