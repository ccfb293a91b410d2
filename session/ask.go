package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/ragdir/ai"
	"github.com/poiesic/ragdir/assemble"
	"github.com/poiesic/ragdir/core"
	"github.com/poiesic/ragdir/index"
)

// Answer is the outcome of one question.
type Answer struct {
	Text       string
	Citations  []core.Citation
	Context    *assemble.Context      // What the generator was given
	Turn       *core.ConversationTurn // Copy of the recorded turn, nil when none was recorded
	Terminated bool                   // The question was an exit command
	NoContext  bool                   // Generated without any retrieved passage
}

// turn carries the state of one question between stages.
type turn struct {
	ctx      context.Context
	question string
	idx      index.Index
	history  []ai.Exchange
	seq      int
}

// Ask answers question and blocks until the full answer is available.
//
// Errors wrapping core.ErrRetrievalFailure, core.ErrDimensionMismatch,
// core.ErrEmptyResult, core.ErrGenerationFailure or ErrCanceled leave the
// session awaiting the next question.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	return s.ask(ctx, question, nil)
}

// AskStream is Ask with the answer delivered incrementally to onFragment
// as the generator produces it.
func (s *Session) AskStream(ctx context.Context, question string, onFragment ai.FragmentFunc) (*Answer, error) {
	if onFragment == nil {
		onFragment = func(context.Context, string) error { return nil }
	}
	return s.ask(ctx, question, onFragment)
}

// Search ranks the loaded chunks against query without generating an
// answer or recording a turn.
func (s *Session) Search(ctx context.Context, query string, k int) ([]core.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuestion
	}

	s.mu.Lock()
	idx, err := s.readyLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.topK
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrRetrievalFailure, err)
	}
	return s.rank(vector, idx, k)
}

func (s *Session) readyLocked() (index.Index, error) {
	switch {
	case s.state == Terminated:
		return nil, ErrSessionTerminated
	case s.loading:
		return nil, ErrLoadInProgress
	case s.state == Idle:
		return nil, ErrNoIndex
	case s.state != AwaitingQuestion:
		return nil, ErrTurnInProgress
	}
	return s.idx, nil
}

func (s *Session) ask(ctx context.Context, question string, onFragment ai.FragmentFunc) (*Answer, error) {
	t, answer, err := s.begin(ctx, question)
	if t == nil {
		return answer, err
	}
	defer s.finish()

	started := time.Now()
	s.logger.Info("question", "seq", t.seq, "question", t.question)

	ranked, assembled, err := s.retrieve(t)
	if err != nil {
		return nil, s.interrupted(t, err)
	}

	noContext := len(ranked) == 0
	if noContext && s.policy == Refuse {
		s.logger.Info("no relevant context", "seq", t.seq, "minScore", s.minScore)
		return nil, core.ErrEmptyResult
	}
	if !noContext && assembled.Empty() {
		s.logger.Warn("no passage fits the context budget", "seq", t.seq, "passages", len(ranked),
			"maxContextChars", s.maxContextChars)
		return nil, fmt.Errorf("%w: %d passages found, budget is %d characters",
			ErrContextTooSmall, len(ranked), s.maxContextChars)
	}

	if !s.transition(Retrieving, Generating) {
		return nil, ErrSessionTerminated
	}

	req := ai.GenerateRequest{Context: assembled.Text, Question: t.question, History: t.history}
	var text string
	if onFragment != nil {
		text, err = s.generator.GenerateStream(t.ctx, req, onFragment)
	} else {
		text, err = s.generator.Generate(t.ctx, req)
	}
	if t.ctx.Err() != nil {
		return nil, s.interrupted(t, t.ctx.Err())
	}

	record := core.ConversationTurn{
		Seq:       t.seq,
		Question:  t.question,
		ChunkIDs:  assembled.ChunkIDs(),
		Citations: assembled.Citations,
		Answer:    text,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Answer = ""
		record.Err = err.Error()
		s.logger.Error("generation failed", "seq", t.seq, "err", err)
		s.record(record)
		return &Answer{Context: assembled, Turn: &record, NoContext: noContext},
			fmt.Errorf("%w: %w", core.ErrGenerationFailure, err)
	}

	s.record(record)
	s.logger.Info("answered", "seq", t.seq, "chunks", len(assembled.Chunks),
		"sources", len(assembled.Citations), "elapsed", time.Since(started))

	return &Answer{
		Text:      text,
		Citations: assembled.Citations,
		Context:   assembled,
		Turn:      &record,
		NoContext: noContext,
	}, nil
}

// begin validates the question and moves to Retrieving. It returns a nil
// turn when there is nothing to answer, with the Answer or error to return.
func (s *Session) begin(ctx context.Context, question string) (*turn, *Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readyLocked()
	if err != nil {
		return nil, nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrEmptyQuestion
	}
	if s.exitCommands[strings.ToLower(question)] {
		s.terminateLocked()
		return nil, &Answer{Terminated: true}, nil
	}

	turnCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Retrieving

	return &turn{
		ctx:      turnCtx,
		question: question,
		idx:      idx,
		history:  s.exchangesLocked(),
		seq:      len(s.history) + 1,
	}, nil, nil
}

// finish returns to AwaitingQuestion unless the session was terminated
// meanwhile.
func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.state != Terminated {
		s.state = AwaitingQuestion
	}
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

// retrieve returns the ranked passages for the question and the context
// assembled from them.
func (s *Session) retrieve(t *turn) ([]core.ScoredChunk, *assemble.Context, error) {
	vector, err := s.embedder.EmbedText(t.ctx, t.question)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, nil, t.ctx.Err()
		}
		s.logger.Error("question embedding failed", "seq", t.seq, "err", err)
		return nil, nil, fmt.Errorf("%w: %w", core.ErrRetrievalFailure, err)
	}
	if err := t.ctx.Err(); err != nil {
		return nil, nil, err
	}

	ranked, err := s.rank(vector, t.idx, s.topK)
	if err != nil {
		return nil, nil, err
	}
	return ranked, s.assembler.Assemble(ranked, s.maxContextChars), nil
}

func (s *Session) rank(vector []float32, idx index.Index, k int) ([]core.ScoredChunk, error) {
	ranked, err := s.ranker.Rank(vector, idx, k, s.minScore)
	switch {
	case err == nil:
		return ranked, nil
	case errors.Is(err, core.ErrDimensionMismatch):
		s.logger.Error("query vector does not match index", "err", err)
		return nil, fmt.Errorf("query: %w", err)
	default:
		return nil, fmt.Errorf("%w: %w", core.ErrRetrievalFailure, err)
	}
}

// interrupted maps a context error to ErrCanceled, or to
// ErrSessionTerminated when Exit caused it. Other errors pass through.
func (s *Session) interrupted(t *turn, err error) error {
	if t.ctx.Err() == nil {
		return err
	}
	if s.State() == Terminated {
		return ErrSessionTerminated
	}
	s.logger.Info("question canceled", "seq", t.seq)
	return fmt.Errorf("%w: %w", ErrCanceled, t.ctx.Err())
}

func (s *Session) record(t core.ConversationTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
}

// exchangesLocked returns the last historyTurns successful turns.
func (s *Session) exchangesLocked() []ai.Exchange {
	if s.historyTurns == 0 {
		return nil
	}
	var exchanges []ai.Exchange
	for i := len(s.history) - 1; i >= 0 && len(exchanges) < s.historyTurns; i-- {
		if s.history[i].Failed() {
			continue
		}
		exchanges = append(exchanges, ai.Exchange{Question: s.history[i].Question, Answer: s.history[i].Answer})
	}
	slices.Reverse(exchanges)
	return exchanges
}
