package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/ragdir/ai"
	"github.com/poiesic/ragdir/ai/mock"
	"github.com/poiesic/ragdir/core"
	"github.com/poiesic/ragdir/index"
	badgerindex "github.com/poiesic/ragdir/index/badger"
	"github.com/poiesic/ragdir/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const badgerQuestion = "Where does badger keep data?"

var vocabulary = []string{"badger", "vector", "chunk"}

// keywordVector counts vocabulary words, so texts sharing a word are similar
// and texts without any are orthogonal to everything.
func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(vocabulary))
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(lower, w))
	}
	return v
}

func newTestProvider() (*mock.MockEmbedder, *mock.MockGenerator, ai.AIProvider) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		return keywordVector(text), nil
	}
	generator := mock.NewMockGenerator()
	return embedder, generator, mock.NewMockProviderWithServices(embedder, generator)
}

func testDocs() []*core.Document {
	return []*core.Document{
		core.NewDocument("a.txt", core.FormatPlainText, "Badger stores data.", nil),
		core.NewDocument("b.md", core.FormatMarkdown, "Vectors are normalized.", nil),
	}
}

func newLoadedSession(t *testing.T, opts ...Option) (*Session, *mock.MockEmbedder, *mock.MockGenerator) {
	t.Helper()
	embedder, generator, provider := newTestProvider()

	s, err := New(provider, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Exit)

	_, err = s.LoadDocuments(context.Background(), testDocs())
	require.NoError(t, err)
	require.Equal(t, AwaitingQuestion, s.State())
	return s, embedder, generator
}

func TestNew(t *testing.T) {
	_, _, provider := newTestProvider()

	t.Run("defaults", func(t *testing.T) {
		s, err := New(provider)
		require.NoError(t, err)
		assert.Equal(t, Idle, s.State())
		assert.NotEmpty(t, s.ID())
		assert.Nil(t, s.Report())
		assert.Empty(t, s.History())
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrAIProviderRequired)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := New(provider, WithTopK(0))
		assert.ErrorIs(t, err, ErrInvalidTopK)

		_, err = New(provider, WithMinScore(1.5))
		assert.ErrorIs(t, err, ErrInvalidMinScore)
	})

	t.Run("unique ids", func(t *testing.T) {
		a, err := New(provider)
		require.NoError(t, err)
		b, err := New(provider)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID(), b.ID())
	})
}

func TestLoadDocuments(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, _, _ := newLoadedSession(t)
		report := s.Report()
		require.NotNil(t, report)
		assert.Equal(t, 2, report.Documents)
		assert.Equal(t, 2, report.Embedded)
		assert.Equal(t, len(vocabulary), report.Dimension)
	})

	t.Run("nothing to index", func(t *testing.T) {
		_, _, provider := newTestProvider()
		s, err := New(provider)
		require.NoError(t, err)

		_, err = s.LoadDocuments(context.Background(), nil)
		assert.ErrorIs(t, err, core.ErrIndexBuildFailed)
		assert.Equal(t, Idle, s.State())

		_, err = s.LoadDocuments(context.Background(), testDocs())
		require.NoError(t, err, "a failed load can be retried")
		assert.Equal(t, AwaitingQuestion, s.State())
	})

	t.Run("nil document is a warning", func(t *testing.T) {
		_, _, provider := newTestProvider()
		s, err := New(provider)
		require.NoError(t, err)
		defer s.Exit()

		report, err := s.LoadDocuments(context.Background(), append(testDocs(), nil))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Embedded)
		require.Len(t, report.Warnings, 1)
		assert.ErrorIs(t, report.Warnings[0], core.ErrInvalidDocument)
	})

	t.Run("only once", func(t *testing.T) {
		s, _, _ := newLoadedSession(t)
		_, err := s.LoadDocuments(context.Background(), testDocs())
		assert.ErrorIs(t, err, ErrAlreadyLoaded)
	})

	t.Run("report is a copy", func(t *testing.T) {
		s, _, _ := newLoadedSession(t)
		s.Report().Embedded = 99
		assert.Equal(t, 2, s.Report().Embedded)
	})
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":     "Badger stores data.",
		"copy.txt":  "Badger stores data.",
		"image.png": "not really an image",
		"notes.md":  "# Vectors\n\nVectors are normalized.",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	_, _, provider := newTestProvider()
	s, err := New(provider)
	require.NoError(t, err)
	defer s.Exit()

	report, err := s.LoadDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Embedded)
	require.Len(t, report.Warnings, 2)

	var duplicate bool
	for _, w := range report.Warnings {
		assert.ErrorIs(t, w, core.ErrIngestionWarning)
		duplicate = duplicate || errors.Is(w, source.ErrDuplicateContent)
	}
	assert.True(t, duplicate)

	answer, err := s.Ask(context.Background(), badgerQuestion)
	require.NoError(t, err)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, filepath.Join(dir, "a.txt"), answer.Citations[0].Path)
}

func TestLoadDirectory_Empty(t *testing.T) {
	_, _, provider := newTestProvider()
	s, err := New(provider)
	require.NoError(t, err)

	_, err = s.LoadDirectory(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, core.ErrIndexBuildFailed)
	assert.Equal(t, Idle, s.State())
}

func TestAsk_Success(t *testing.T) {
	s, _, generator := newLoadedSession(t)

	answer, err := s.Ask(context.Background(), "  "+badgerQuestion+"  ")
	require.NoError(t, err)

	assert.Contains(t, answer.Text, badgerQuestion)
	assert.False(t, answer.NoContext)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "a.txt", answer.Citations[0].Path)
	assert.Equal(t, []core.Span{{Start: 0, End: 19}}, answer.Citations[0].Spans)

	req := generator.LastRequest()
	assert.Equal(t, "[a.txt, chars 0-19]\nBadger stores data.", req.Context)
	assert.Equal(t, badgerQuestion, req.Question)
	assert.Empty(t, req.History)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Seq)
	assert.Equal(t, badgerQuestion, history[0].Question)
	assert.Equal(t, []core.ID{1}, history[0].ChunkIDs)
	assert.Equal(t, answer.Text, history[0].Answer)
	assert.False(t, history[0].Failed())
	assert.Equal(t, AwaitingQuestion, s.State())
}

func TestAsk_NotLoaded(t *testing.T) {
	_, _, provider := newTestProvider()
	s, err := New(provider)
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), badgerQuestion)
	assert.ErrorIs(t, err, ErrNoIndex)
	assert.Equal(t, Idle, s.State())
}

func TestAsk_EmptyQuestion(t *testing.T) {
	s, embedder, generator := newLoadedSession(t)
	embedder.Reset()

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := s.Ask(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	}
	assert.Equal(t, AwaitingQuestion, s.State())
	assert.Zero(t, embedder.CallCount())
	assert.Zero(t, generator.CallCount())
	assert.Empty(t, s.History())
}

func TestAsk_ExitCommand(t *testing.T) {
	for _, cmd := range []string{"exit", "QUIT ", ":q"} {
		t.Run(cmd, func(t *testing.T) {
			s, _, generator := newLoadedSession(t)

			answer, err := s.Ask(context.Background(), cmd)
			require.NoError(t, err)
			assert.True(t, answer.Terminated)
			assert.Equal(t, Terminated, s.State())
			assert.Zero(t, generator.CallCount())

			_, err = s.Ask(context.Background(), badgerQuestion)
			assert.ErrorIs(t, err, ErrSessionTerminated)
			_, err = s.LoadDocuments(context.Background(), testDocs())
			assert.ErrorIs(t, err, ErrSessionTerminated)
			_, err = s.Search(context.Background(), "badger", 1)
			assert.ErrorIs(t, err, ErrSessionTerminated)
		})
	}

	t.Run("custom commands", func(t *testing.T) {
		s, _, _ := newLoadedSession(t, WithExitCommands("bye"), WithEmptyResultPolicy(Forward))

		answer, err := s.Ask(context.Background(), "exit")
		require.NoError(t, err)
		assert.False(t, answer.Terminated)

		answer, err = s.Ask(context.Background(), "Bye")
		require.NoError(t, err)
		assert.True(t, answer.Terminated)
	})
}

func TestAsk_RetrievalFailure(t *testing.T) {
	s, embedder, generator := newLoadedSession(t)
	embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}

	_, err := s.Ask(context.Background(), badgerQuestion)
	assert.ErrorIs(t, err, core.ErrRetrievalFailure)
	assert.Equal(t, AwaitingQuestion, s.State())
	assert.Zero(t, generator.CallCount())
	assert.Empty(t, s.History())

	embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		return keywordVector(text), nil
	}
	_, err = s.Ask(context.Background(), badgerQuestion)
	assert.NoError(t, err, "session recovers after a retrieval failure")
}

func TestAsk_DimensionMismatch(t *testing.T) {
	s, embedder, generator := newLoadedSession(t)
	embedder.EmbedTextFunc = func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	_, err := s.Ask(context.Background(), badgerQuestion)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Equal(t, AwaitingQuestion, s.State())
	assert.Zero(t, generator.CallCount())
	assert.Equal(t, 2, s.Report().Embedded)
}

func TestAsk_EmptyResult(t *testing.T) {
	t.Run("refuse", func(t *testing.T) {
		s, _, generator := newLoadedSession(t)

		answer, err := s.Ask(context.Background(), "Tell me about PDF files")
		assert.ErrorIs(t, err, core.ErrEmptyResult)
		assert.Nil(t, answer)
		assert.Equal(t, AwaitingQuestion, s.State())
		assert.Zero(t, generator.CallCount())
		assert.Empty(t, s.History())
	})

	t.Run("forward", func(t *testing.T) {
		s, _, generator := newLoadedSession(t, WithEmptyResultPolicy(Forward))

		answer, err := s.Ask(context.Background(), "Tell me about PDF files")
		require.NoError(t, err)
		assert.True(t, answer.NoContext)
		assert.Empty(t, answer.Citations)
		assert.Equal(t, 1, generator.CallCount())
		assert.Empty(t, generator.LastRequest().Context)
		assert.Len(t, s.History(), 1)
	})

	t.Run("threshold", func(t *testing.T) {
		s, _, _ := newLoadedSession(t, WithMinScore(-1))

		answer, err := s.Ask(context.Background(), "Tell me about PDF files")
		require.NoError(t, err)
		assert.False(t, answer.NoContext)
		assert.Len(t, answer.Citations, 2)
	})
}

func TestWithIndexEmbedder(t *testing.T) {
	queries, generator, _ := newTestProvider()
	chunks := mock.NewMockEmbedder()
	chunks.EmbedTextFunc = queries.EmbedTextFunc

	s, err := New(mock.NewMockProviderWithServices(queries, generator), WithIndexEmbedder(chunks))
	require.NoError(t, err)
	defer s.Exit()

	_, err = s.LoadDocuments(context.Background(), testDocs())
	require.NoError(t, err)
	assert.Equal(t, 2, chunks.CallCount())
	assert.Zero(t, queries.CallCount())

	_, err = s.Ask(context.Background(), badgerQuestion)
	require.NoError(t, err)
	assert.Equal(t, 2, chunks.CallCount())
	assert.Equal(t, 1, queries.CallCount())
}

func TestAsk_ContextBudgetTooSmall(t *testing.T) {
	for _, policy := range []EmptyResultPolicy{Refuse, Forward} {
		t.Run(policy.String(), func(t *testing.T) {
			s, _, generator := newLoadedSession(t, WithMaxContextChars(10), WithEmptyResultPolicy(policy))

			hits, err := s.Search(context.Background(), badgerQuestion, 0)
			require.NoError(t, err)
			require.NotEmpty(t, hits)

			answer, err := s.Ask(context.Background(), badgerQuestion)
			assert.ErrorIs(t, err, ErrContextTooSmall)
			assert.NotErrorIs(t, err, core.ErrEmptyResult)
			assert.Nil(t, answer)
			assert.Zero(t, generator.CallCount())
			assert.Equal(t, AwaitingQuestion, s.State())
			assert.Empty(t, s.History())
		})
	}
}

func TestAsk_GenerationFailure(t *testing.T) {
	s, _, generator := newLoadedSession(t)
	generator.GenerateFunc = func(context.Context, ai.GenerateRequest) (string, error) {
		return "", errors.New("model offline")
	}

	answer, err := s.Ask(context.Background(), badgerQuestion)
	assert.ErrorIs(t, err, core.ErrGenerationFailure)
	require.NotNil(t, answer)
	require.NotNil(t, answer.Turn)
	assert.True(t, answer.Turn.Failed())
	assert.Equal(t, AwaitingQuestion, s.State())

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "model offline", history[0].Err)

	generator.GenerateFunc = nil
	_, err = s.Ask(context.Background(), badgerQuestion)
	require.NoError(t, err)
	assert.Empty(t, generator.LastRequest().History, "failed turns are not sent as history")
	assert.Len(t, s.History(), 2)
}

func TestAsk_Canceled(t *testing.T) {
	s, _, generator := newLoadedSession(t)

	started := make(chan struct{})
	generator.GenerateFunc = func(ctx context.Context, _ ai.GenerateRequest) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := s.Ask(ctx, badgerQuestion)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, AwaitingQuestion, s.State())
	assert.Empty(t, s.History())
}

func TestAsk_TurnInProgress(t *testing.T) {
	s, _, generator := newLoadedSession(t)

	started := make(chan struct{})
	release := make(chan struct{})
	generator.GenerateFunc = func(context.Context, ai.GenerateRequest) (string, error) {
		close(started)
		<-release
		return "done", nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), badgerQuestion)
		done <- err
	}()

	<-started
	assert.Equal(t, Generating, s.State())
	_, err := s.Ask(context.Background(), badgerQuestion)
	assert.ErrorIs(t, err, ErrTurnInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, AwaitingQuestion, s.State())
	assert.Len(t, s.History(), 1)
}

func TestExit_DuringQuestion(t *testing.T) {
	s, _, generator := newLoadedSession(t)

	started := make(chan struct{})
	generator.GenerateFunc = func(ctx context.Context, _ ai.GenerateRequest) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), badgerQuestion)
		done <- err
	}()

	<-started
	s.Exit()
	assert.ErrorIs(t, <-done, ErrSessionTerminated)
	assert.Equal(t, Terminated, s.State())
	assert.Empty(t, s.History())

	s.Exit()
	assert.Equal(t, Terminated, s.State())
}

func TestAskStream(t *testing.T) {
	s, _, _ := newLoadedSession(t)

	var fragments []string
	answer, err := s.AskStream(context.Background(), badgerQuestion, func(_ context.Context, f string) error {
		fragments = append(fragments, f)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, len(fragments), 1)
	assert.Equal(t, answer.Text, strings.Join(fragments, ""))
	assert.Len(t, s.History(), 1)

	answer, err = s.AskStream(context.Background(), badgerQuestion, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
}

func TestAsk_HistoryWindow(t *testing.T) {
	s, _, generator := newLoadedSession(t, WithHistoryTurns(2))

	questions := []string{"badger one", "badger two", "badger three", "badger four"}
	var answers []string
	for _, q := range questions {
		answer, err := s.Ask(context.Background(), q)
		require.NoError(t, err)
		answers = append(answers, answer.Text)
	}

	assert.Equal(t, []ai.Exchange{
		{Question: "badger two", Answer: answers[1]},
		{Question: "badger three", Answer: answers[2]},
	}, generator.LastRequest().History)

	history := s.History()
	require.Len(t, history, 4)
	for i, turn := range history {
		assert.Equal(t, i+1, turn.Seq)
	}
}

func TestSearch(t *testing.T) {
	s, _, generator := newLoadedSession(t)

	results, err := s.Search(context.Background(), "vector math", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.md", results[0].Chunk.Path)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	_, err = s.Search(context.Background(), " ", 0)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	assert.Zero(t, generator.CallCount())
	assert.Empty(t, s.History())
}

func TestBadgerIndexIsClosedOnExit(t *testing.T) {
	var created *badgerindex.Index
	factory := func() (index.Index, error) {
		idx, err := badgerindex.NewIndex()
		created = idx
		return idx, err
	}

	s, _, _ := newLoadedSession(t, WithIndexFactory(factory))
	_, err := s.Ask(context.Background(), badgerQuestion)
	require.NoError(t, err)

	s.Exit()
	_, err = created.Query(keywordVector("badger"), 1)
	assert.ErrorIs(t, err, badgerindex.ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting-question", AwaitingQuestion.String())
	assert.Equal(t, "retrieving", Retrieving.String())
	assert.Equal(t, "generating", Generating.String())
	assert.Equal(t, "terminated", Terminated.String())
}

func TestParseEmptyResultPolicy(t *testing.T) {
	p, ok := ParseEmptyResultPolicy("forward")
	assert.True(t, ok)
	assert.Equal(t, Forward, p)

	p, ok = ParseEmptyResultPolicy("refuse")
	assert.True(t, ok)
	assert.Equal(t, Refuse, p)

	_, ok = ParseEmptyResultPolicy("maybe")
	assert.False(t, ok)
}
