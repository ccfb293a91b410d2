package search

import (
	"log/slog"

	"github.com/poiesic/ragdir/core"
)

// RankMonitor provides hooks to observe the ranking process.
// Implement this interface to track intermediate steps and results.
type RankMonitor interface {
	Start(k int, minScore float32)
	AfterQuery(candidates []core.ScoredChunk)
	Rejected(candidate core.ScoredChunk)
	Finish(results []core.ScoredChunk)
}

// noopMonitor is a no-op implementation of RankMonitor
type noopMonitor struct{}

var _ RankMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ int, _ float32)          {}
func (n *noopMonitor) AfterQuery(_ []core.ScoredChunk) {}
func (n *noopMonitor) Rejected(_ core.ScoredChunk)     {}
func (n *noopMonitor) Finish(_ []core.ScoredChunk)     {}

// LogMonitor reports every ranking stage to a slog.Logger at Info level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ RankMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a monitor writing to logger, or slog.Default() when nil.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "rank-monitor")}
}

func (m *LogMonitor) Start(k int, minScore float32) {
	m.logger.Info("ranking", "k", k, "minScore", minScore)
}

func (m *LogMonitor) AfterQuery(candidates []core.ScoredChunk) {
	m.logger.Info("candidates", "count", len(candidates))
}

func (m *LogMonitor) Rejected(candidate core.ScoredChunk) {
	m.logger.Info("below threshold",
		"chunk", candidate.Chunk.ID,
		"path", candidate.Chunk.Path,
		"score", candidate.Score)
}

func (m *LogMonitor) Finish(results []core.ScoredChunk) {
	for i, r := range results {
		m.logger.Info("hit",
			"rank", i+1,
			"chunk", r.Chunk.ID,
			"path", r.Chunk.Path,
			"start", r.Chunk.Start,
			"end", r.Chunk.End,
			"score", r.Score)
	}
}
