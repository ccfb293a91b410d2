package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/poiesic/ragdir"
	"github.com/poiesic/ragdir/assemble"
	"github.com/poiesic/ragdir/config"
	"github.com/poiesic/ragdir/core"
	"github.com/poiesic/ragdir/index"
	"github.com/poiesic/ragdir/search"
	"github.com/poiesic/ragdir/session"
	"github.com/poiesic/ragdir/tui"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const noRelevantInformation = "No relevant information found."

type runner struct {
	appOpts []ragdir.AppOption
}

// loaded is an App with a session whose directory has been indexed.
type loaded struct {
	app    *ragdir.App
	sess   *session.Session
	report *index.BuildReport
}

func (l *loaded) close() {
	l.sess.Exit()
	if err := l.app.Close(); err != nil {
		slog.Warn("error closing app", "err", err)
	}
}

func (r *runner) loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadEnv(c.String("env-file")); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, path, err = config.LoadDefault()
		if path != "" {
			slog.Debug("using config file", "path", path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyEnv()
	applyFlags(c, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides config values with flags given on the command line.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("host") {
		cfg.Model.Host = c.String("host")
		cfg.Model.EmbeddingHost = ""
		cfg.Model.ChatHost = ""
	}
	if c.IsSet("embedding-model") {
		cfg.Model.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("chat-model") {
		cfg.Model.ChatModel = c.String("chat-model")
	}
	if c.IsSet("chunk-size") {
		cfg.Chunking.MaxChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("overlap") {
		overlap := c.Int("overlap")
		cfg.Chunking.Overlap = &overlap
	}
	if c.IsSet("backend") {
		cfg.Index.Backend = c.String("backend")
	}
	if c.IsSet("workers") {
		cfg.Index.Workers = c.Int("workers")
	}
	if c.IsSet("top-k") {
		cfg.Retrieval.TopK = c.Int("top-k")
	}
	if c.IsSet("min-score") {
		minScore := float32(c.Float64("min-score"))
		cfg.Retrieval.MinScore = &minScore
	}
	if c.IsSet("max-context") {
		cfg.Retrieval.MaxContextChars = c.Int("max-context")
	}
	if c.IsSet("empty-result") {
		cfg.Retrieval.EmptyResult = c.String("empty-result")
	}
}

// open loads the directory named by the first argument. Loading can be
// interrupted with Ctrl-C.
func (r *runner) open(c *cli.Context) (*loaded, error) {
	dir := c.Args().First()
	if dir == "" {
		return nil, errors.New("directory argument is required")
	}

	cfg, err := r.loadConfig(c)
	if err != nil {
		return nil, err
	}

	opts := append([]ragdir.AppOption{}, r.appOpts...)
	if showProgress(c) {
		opts = append(opts, ragdir.WithProgress(c.App.ErrWriter))
	}
	if c.Bool("explain") {
		explain := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelInfo}))
		opts = append(opts, ragdir.WithRankMonitor(search.NewLogMonitor(explain)))
	}

	app, err := ragdir.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	sess, err := app.NewSession()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	l := &loaded{app: app, sess: sess}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	l.report, err = sess.LoadDirectory(ctx, dir)
	if l.report != nil {
		printWarnings(c.App.ErrWriter, l.report.Warnings)
	}
	if err != nil {
		l.close()
		return nil, fmt.Errorf("failed to load %s: %w", dir, err)
	}
	return l, nil
}

func showProgress(c *cli.Context) bool {
	if c.IsSet("progress") {
		return c.Bool("progress")
	}
	return isTerminal(c.App.ErrWriter)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printWarnings(w io.Writer, warnings []error) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %v\n", warning)
	}
}

func (r *runner) indexCommand(c *cli.Context) error {
	l, err := r.open(c)
	if err != nil {
		return err
	}
	defer l.close()

	report := l.report
	w := c.App.Writer
	fmt.Fprintf(w, "Indexed %d of %d chunks from %d documents (dimension %d) in %s\n",
		report.Embedded, report.Chunks, report.Documents, report.Dimension, report.Elapsed.Round(time.Millisecond))
	if len(report.Warnings) > 0 {
		fmt.Fprintf(w, "%d files or chunks were skipped\n", len(report.Warnings))
	}
	return nil
}

func (r *runner) searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Tail(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("query argument is required")
	}

	l, err := r.open(c)
	if err != nil {
		return err
	}
	defer l.close()

	results, err := l.sess.Search(c.Context, query, 0)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	w := c.App.Writer
	if len(results) == 0 {
		fmt.Fprintln(w, noRelevantInformation)
		return nil
	}

	terms := search.Terms(query)
	for i, hit := range results {
		fmt.Fprintf(w, "%d. %s score %.3f\n", i+1, assemble.Marker(hit.Chunk), hit.Score)
		if matched := search.MatchedTerms(hit.Chunk.Text, terms); len(matched) > 0 {
			fmt.Fprintf(w, "   matched: %s\n", strings.Join(matched, ", "))
		}
		fmt.Fprintf(w, "   %s\n", snippet(hit.Chunk.Text, 200))
	}
	return nil
}

// snippet collapses whitespace and shortens text to at most n characters.
func snippet(text string, n int) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}

func (r *runner) askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Tail(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("question argument is required")
	}

	l, err := r.open(c)
	if err != nil {
		return err
	}
	defer l.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	_, err = answer(ctx, l.sess, question, c.App.Writer)
	if errors.Is(err, core.ErrEmptyResult) {
		return nil
	}
	return err
}

func (r *runner) chatCommand(c *cli.Context) error {
	l, err := r.open(c)
	if err != nil {
		return err
	}
	defer l.close()

	w := c.App.Writer
	interactive := isTerminal(c.App.Reader)
	fmt.Fprintf(w, "Loaded %d chunks from %d documents. Ask a question, or type exit to quit.\n",
		l.report.Embedded, l.report.Documents)

	scanner := bufio.NewScanner(c.App.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Fprint(w, "\n> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		// Ctrl-C cancels the current answer; at the prompt it exits.
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		ans, err := answer(ctx, l.sess, scanner.Text(), w)
		stop()

		switch {
		case ans != nil && ans.Terminated:
			return nil
		case errors.Is(err, session.ErrSessionTerminated):
			return nil
		case errors.Is(err, session.ErrEmptyQuestion):
			continue
		case errors.Is(err, session.ErrCanceled):
			fmt.Fprintln(w, "\n(canceled)")
		case errors.Is(err, core.ErrEmptyResult):
		case err != nil:
			fmt.Fprintf(c.App.ErrWriter, "error: %v\n", err)
		}
	}
}

// answer asks question, streaming the answer to w followed by its sources.
func answer(ctx context.Context, sess *session.Session, question string, w io.Writer) (*session.Answer, error) {
	ans, err := sess.AskStream(ctx, question, func(_ context.Context, fragment string) error {
		_, err := io.WriteString(w, fragment)
		return err
	})
	if errors.Is(err, core.ErrEmptyResult) {
		fmt.Fprintln(w, noRelevantInformation)
		return nil, err
	}
	if err != nil || ans.Terminated {
		return ans, err
	}

	fmt.Fprintln(w)
	if ans.NoContext {
		fmt.Fprintln(w, "(answered without matching passages)")
	}
	if sources := assemble.FormatSources(ans.Citations); sources != "" {
		fmt.Fprintf(w, "\n%s\n", sources)
	}
	return ans, nil
}

func (r *runner) tuiCommand(c *cli.Context) error {
	l, err := r.open(c)
	if err != nil {
		return err
	}
	defer l.close()

	summary := fmt.Sprintf("%d documents, %d chunks, dimension %d",
		l.report.Documents, l.report.Embedded, l.report.Dimension)
	return tui.Run(c.Context, l.sess, summary)
}
