package search

import (
	"log/slog"

	"github.com/poiesic/ragdir/core"
	"github.com/poiesic/ragdir/index"
)

// Ranker selects the chunks relevant to a query vector.
type Ranker struct {
	monitor RankMonitor
	logger  *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithMonitor sets a RankMonitor observing every Rank call.
// A nil monitor restores the no-op default.
func WithMonitor(monitor RankMonitor) Option {
	return func(r *Ranker) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		r.monitor = monitor
		return nil
	}
}

// NewRanker creates a Ranker.
func NewRanker(opts ...Option) (*Ranker, error) {
	r := &Ranker{
		monitor: &noopMonitor{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "ranker")
	return r, nil
}

// Rank returns up to k chunks of idx whose similarity to queryVector is at
// least minScore, best first. Equal scores are ordered by ascending chunk ID.
//
// An empty result is not an error; callers decide whether it is. A query
// vector whose length differs from the index dimension fails with
// core.ErrDimensionMismatch.
func (r *Ranker) Rank(queryVector []float32, idx index.Index, k int, minScore float32) ([]core.ScoredChunk, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if len(queryVector) == 0 {
		return nil, ErrEmptyQueryVector
	}

	r.monitor.Start(k, minScore)

	candidates, err := idx.Query(queryVector, k)
	if err != nil {
		r.logger.Error("index query failed", "k", k, "err", err)
		return nil, err
	}
	r.monitor.AfterQuery(candidates)

	results := make([]core.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < minScore {
			r.monitor.Rejected(c)
			continue
		}
		results = append(results, c)
	}
	index.SortScored(results)

	r.logger.Debug("ranked", "candidates", len(candidates), "kept", len(results))
	r.monitor.Finish(results)
	return results, nil
}
