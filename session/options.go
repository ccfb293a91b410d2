package session

import (
	"log/slog"
	"strings"

	"github.com/poiesic/ragdir/ai"
	"github.com/poiesic/ragdir/index"
	"github.com/poiesic/ragdir/search"
)

const (
	// DefaultTopK is the default number of chunks retrieved per question.
	DefaultTopK = 3

	// DefaultMinScore is the default similarity threshold.
	DefaultMinScore = 0.3

	// DefaultMaxContextChars is the default context budget in characters.
	DefaultMaxContextChars = 4000

	// DefaultHistoryTurns is the default number of earlier turns sent to the generator.
	DefaultHistoryTurns = 4
)

// DefaultExitCommands end a session when asked as a question.
var DefaultExitCommands = []string{"exit", "quit", ":q"}

// Option configures a Session.
type Option func(*Session) error

// WithChunker sets the chunker used when loading documents.
// Default is chunker.New() with default settings.
func WithChunker(c index.Chunker) Option {
	return func(s *Session) error {
		if c != nil {
			s.chunker = c
		}
		return nil
	}
}

// WithIndexEmbedder sets the embedder used for chunks while loading.
// Questions still use the provider's embedder.
// Default is the provider's embedder.
func WithIndexEmbedder(e ai.Embedder) Option {
	return func(s *Session) error {
		if e != nil {
			s.indexEmbedder = e
		}
		return nil
	}
}

// WithIndexFactory sets how the session creates its index.
// Default is index.NewFlatFactory().
func WithIndexFactory(f index.Factory) Option {
	return func(s *Session) error {
		if f != nil {
			s.newIndex = f
		}
		return nil
	}
}

// WithBuilderOptions passes options to the index builder, e.g. pool size
// or rate limit.
func WithBuilderOptions(opts ...index.Option) Option {
	return func(s *Session) error {
		s.builderOpts = append(s.builderOpts, opts...)
		return nil
	}
}

// WithTopK sets how many chunks are retrieved per question.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(s *Session) error {
		if k <= 0 {
			return ErrInvalidTopK
		}
		s.topK = k
		return nil
	}
}

// WithMinScore sets the similarity threshold below which chunks are ignored.
// Default is DefaultMinScore.
func WithMinScore(score float32) Option {
	return func(s *Session) error {
		if score < -1 || score > 1 {
			return ErrInvalidMinScore
		}
		s.minScore = score
		return nil
	}
}

// WithMaxContextChars sets the context budget. Zero or less means unbounded.
// Default is DefaultMaxContextChars.
func WithMaxContextChars(n int) Option {
	return func(s *Session) error {
		s.maxContextChars = n
		return nil
	}
}

// WithHistoryTurns sets how many earlier successful turns accompany each
// question. Default is DefaultHistoryTurns.
func WithHistoryTurns(n int) Option {
	return func(s *Session) error {
		s.historyTurns = max(n, 0)
		return nil
	}
}

// WithEmptyResultPolicy sets what happens when nothing relevant is found.
// Default is Refuse.
func WithEmptyResultPolicy(p EmptyResultPolicy) Option {
	return func(s *Session) error {
		s.policy = p
		return nil
	}
}

// WithExitCommands replaces the words that end the session.
// Matching ignores case and surrounding whitespace.
func WithExitCommands(commands ...string) Option {
	return func(s *Session) error {
		s.exitCommands = make(map[string]bool, len(commands))
		for _, c := range commands {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				s.exitCommands[c] = true
			}
		}
		return nil
	}
}

// WithRankMonitor observes ranking for every question.
func WithRankMonitor(m search.RankMonitor) Option {
	return func(s *Session) error {
		s.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}
