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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/ragdir"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. appOpts are passed to every ragdir.App
// the commands create.
func newApp(appOpts ...ragdir.AppOption) *cli.App {
	r := &runner{appOpts: appOpts}

	dirArg := "DIR"
	return &cli.App{
		Name:  "ragdir",
		Usage: "Ask questions about a directory of documents using local models",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML config file (default: ./ragdir.yaml, ./ragdir.toml, ~/.config/ragdir/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with RAGDIR_* variables",
				Value: ".env",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "chat",
				Usage:     "Load a directory and answer questions interactively",
				ArgsUsage: dirArg,
				Action:    r.chatCommand,
				Flags:     append(retrievalFlags(), modelFlags()...),
			},
			{
				Name:      "ask",
				Usage:     "Load a directory and answer a single question",
				ArgsUsage: dirArg + " QUESTION...",
				Action:    r.askCommand,
				Flags:     append(retrievalFlags(), modelFlags()...),
			},
			{
				Name:      "search",
				Usage:     "Show the passages most similar to a query without generating an answer",
				ArgsUsage: dirArg + " QUERY...",
				Action:    r.searchCommand,
				Flags:     append(retrievalFlags(), modelFlags()...),
			},
			{
				Name:      "index",
				Usage:     "Build the index for a directory and report what was indexed",
				ArgsUsage: dirArg,
				Action:    r.indexCommand,
				Flags:     modelFlags(),
			},
			{
				Name:      "tui",
				Usage:     "Chat in a full-screen terminal interface",
				ArgsUsage: dirArg,
				Action:    r.tuiCommand,
				Flags:     append(retrievalFlags(), modelFlags()...),
			},
		},
	}
}

func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Usage: "Base URL of the OpenAI-compatible server for both models"},
		&cli.StringFlag{Name: "embedding-model", Usage: "Embedding model name"},
		&cli.StringFlag{Name: "chat-model", Usage: "Chat model name"},
		&cli.IntFlag{Name: "chunk-size", Usage: "Maximum chunk length in characters"},
		&cli.IntFlag{Name: "overlap", Usage: "Characters shared by consecutive chunks"},
		&cli.StringFlag{Name: "backend", Usage: "Index backend (memory, badger)"},
		&cli.IntFlag{Name: "workers", Usage: "Concurrent embedding calls"},
		&cli.BoolFlag{Name: "progress", Usage: "Show embedding progress (default: when stderr is a terminal)"},
	}
}

func retrievalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of passages to retrieve"},
		&cli.Float64Flag{Name: "min-score", Usage: "Minimum cosine similarity of a passage"},
		&cli.IntFlag{Name: "max-context", Usage: "Maximum context length in characters"},
		&cli.StringFlag{Name: "empty-result", Usage: "When nothing is relevant: refuse or forward"},
		&cli.BoolFlag{Name: "explain", Usage: "Log how passages were ranked"},
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
