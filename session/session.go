package session

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/ragdir/ai"
	"github.com/poiesic/ragdir/assemble"
	"github.com/poiesic/ragdir/chunker"
	"github.com/poiesic/ragdir/core"
	"github.com/poiesic/ragdir/index"
	"github.com/poiesic/ragdir/search"
	"github.com/poiesic/ragdir/source"
)

// Session answers questions about one loaded corpus.
// All methods are safe for concurrent use, but only one question is
// answered at a time.
type Session struct {
	mu      sync.Mutex
	id      string
	state   State
	loading bool
	cancel  context.CancelFunc // Cancels the question in flight

	embedder      ai.Embedder
	indexEmbedder ai.Embedder // Embeds chunks while loading
	generator     ai.Generator
	chunker   index.Chunker
	newIndex  index.Factory
	loader    *source.Loader
	ranker    *search.Ranker
	assembler *assemble.Assembler
	monitor   search.RankMonitor

	builderOpts     []index.Option
	topK            int
	minScore        float32
	maxContextChars int
	historyTurns    int
	policy          EmptyResultPolicy
	exitCommands    map[string]bool

	idx     index.Index
	report  *index.BuildReport
	history []core.ConversationTurn
	logger  *slog.Logger
}

// New creates an idle Session using the provider's embedder and generator.
func New(provider ai.AIProvider, opts ...Option) (*Session, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Session{
		id:              uuid.NewString(),
		state:           Idle,
		embedder:        provider.Embedder(),
		generator:       provider.Generator(),
		newIndex:        index.NewFlatFactory(),
		topK:            DefaultTopK,
		minScore:        DefaultMinScore,
		maxContextChars: DefaultMaxContextChars,
		historyTurns:    DefaultHistoryTurns,
		policy:          Refuse,
		logger:          slog.Default(),
	}
	if err := WithExitCommands(DefaultExitCommands...)(s); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "session", "session", s.id)
	if s.indexEmbedder == nil {
		s.indexEmbedder = s.embedder
	}

	if s.chunker == nil {
		c, err := chunker.New(chunker.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.chunker = c
	}

	var err error
	if s.loader, err = source.NewLoader(source.WithLogger(s.logger)); err != nil {
		return nil, err
	}
	if s.ranker, err = search.NewRanker(search.WithLogger(s.logger), search.WithMonitor(s.monitor)); err != nil {
		return nil, err
	}
	if s.assembler, err = assemble.NewAssembler(assemble.WithLogger(s.logger)); err != nil {
		return nil, err
	}

	return s, nil
}

// ID returns the session identifier used in log records.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the completed turns, oldest first.
func (s *Session) History() []core.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Report returns the result of the last successful load, or nil.
func (s *Session) Report() *index.BuildReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return nil
	}
	r := *s.report
	r.Warnings = slices.Clone(s.report.Warnings)
	return &r
}

// LoadDirectory reads every supported file under root and builds the index.
// It is only valid while the session is Idle.
//
// Files that cannot be read and chunks that cannot be embedded are reported
// as warnings in the returned report. If nothing could be indexed the
// error wraps core.ErrIndexBuildFailed and the session stays Idle.
func (s *Session) LoadDirectory(ctx context.Context, root string) (*index.BuildReport, error) {
	if err := s.beginLoad(); err != nil {
		return nil, err
	}

	docs, warnings, err := s.loader.LoadDirectory(ctx, root)
	if err != nil {
		s.endLoad(nil, nil)
		return nil, err
	}
	return s.build(ctx, docs, warnings)
}

// LoadDocuments builds the index from already extracted documents.
// It is only valid while the session is Idle.
func (s *Session) LoadDocuments(ctx context.Context, docs []*core.Document) (*index.BuildReport, error) {
	if err := s.beginLoad(); err != nil {
		return nil, err
	}
	return s.build(ctx, docs, nil)
}

func (s *Session) beginLoad() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == Terminated:
		return ErrSessionTerminated
	case s.loading:
		return ErrLoadInProgress
	case s.state != Idle:
		return ErrAlreadyLoaded
	}
	s.loading = true
	return nil
}

// endLoad installs idx and leaves Idle, or stays Idle when idx is nil.
func (s *Session) endLoad(idx index.Index, report *index.BuildReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false
	if idx == nil {
		return
	}
	if s.state == Terminated {
		closeIndex(idx, s.logger)
		return
	}
	s.idx = idx
	s.report = report
	s.state = AwaitingQuestion
}

func (s *Session) build(ctx context.Context, docs []*core.Document, warnings []error) (*index.BuildReport, error) {
	docs, duplicates := source.Dedupe(docs)
	warnings = append(warnings, duplicates...)

	idx, err := s.newIndex()
	if err != nil {
		s.endLoad(nil, nil)
		return nil, err
	}

	opts := append([]index.Option{index.WithLogger(s.logger)}, s.builderOpts...)
	builder, err := index.NewBuilder(idx, s.chunker, s.indexEmbedder, opts...)
	if err != nil {
		closeIndex(idx, s.logger)
		s.endLoad(nil, nil)
		return nil, err
	}
	defer builder.Release()

	report, err := builder.Build(ctx, docs)
	if report != nil {
		report.Warnings = append(warnings, report.Warnings...)
	}
	if err != nil {
		s.logger.Error("index build failed", "err", err)
		closeIndex(idx, s.logger)
		s.endLoad(nil, nil)
		return report, err
	}

	s.logger.Info("documents loaded", "documents", report.Documents, "chunks", report.Embedded,
		"warnings", len(report.Warnings))
	s.endLoad(idx, report)
	return report, nil
}

// Exit terminates the session, cancels a question in flight and releases
// the index. Exit is idempotent.
func (s *Session) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked()
}

func (s *Session) terminateLocked() {
	if s.state == Terminated {
		return
	}
	s.state = Terminated
	if s.cancel != nil {
		s.cancel()
	}
	if s.idx != nil {
		closeIndex(s.idx, s.logger)
		s.idx = nil
	}
	s.logger.Info("session terminated", "turns", len(s.history))
}

func closeIndex(idx index.Index, logger *slog.Logger) {
	if c, ok := idx.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close index", "err", err)
		}
	}
}
