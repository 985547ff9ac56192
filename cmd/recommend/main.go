// Copyright 2026 Zheng Tzer
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
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	cfstep "github.com/ZhengTzer/cf-step"
	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/model"
	"github.com/ZhengTzer/cf-step/storage"
)

func main() {
	app := &cli.App{
		Name:      "recommend",
		Usage:     "Query top-k recommendations from a trained model",
		ArgsUsage: "[user [k]]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db",
				Aliases:  []string{"d"},
				Usage:    "Path to BadgerDB database directory",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "users",
				Usage:    "Number of user rows in the model",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "items",
				Usage:    "Number of item rows in the model",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "dim",
				Usage: "Embedding dimensionality",
				Value: 16,
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "Seed for parameter initialization",
				Value: 42,
			},
			&cli.IntFlag{
				Name:    "k",
				Aliases: []string{"n"},
				Usage:   "Number of items to recommend",
				Value:   5,
			},
			&cli.StringSliceFlag{
				Name:  "tag",
				Usage: "Only recommend items carrying this tag (repeatable)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Action: recommendAction,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func recommendAction(c *cli.Context) error {
	ctx := context.Background()

	recommender, err := cfstep.Open(c.String("db"), cfstep.WithModelConfig(model.MFConfig{
		Users: c.Int("users"),
		Items: c.Int("items"),
		Dim:   c.Int("dim"),
		Seed:  c.Int64("seed"),
	}))
	if err != nil {
		return fmt.Errorf("failed to open recommender: %w", err)
	}
	defer recommender.Close()

	if err := recommender.RestoreLatest(ctx); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
		fmt.Fprintln(os.Stderr, "No snapshot found; scores come from an untrained model")
	}

	k := c.Int("k")
	tags := c.StringSlice("tag")

	// One-shot query when a user id is given on the command line
	if c.Args().Len() > 0 {
		user, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
		if err != nil {
			return fmt.Errorf("bad user id %q: %w", c.Args().Get(0), err)
		}
		if c.Args().Len() > 1 {
			if k, err = strconv.Atoi(c.Args().Get(1)); err != nil {
				return fmt.Errorf("bad k %q: %w", c.Args().Get(1), err)
			}
		}
		return printTopK(ctx, recommender, core.ID(user), k, tags)
	}

	// Interactive loop: one user id (optionally followed by k) per line
	fmt.Println("Enter a user id, optionally followed by k. Blank line exits.")
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("user> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}

		fields := strings.Fields(line)
		user, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			fmt.Printf("bad user id %q\n", fields[0])
			fmt.Print("user> ")
			continue
		}
		n := k
		if len(fields) > 1 {
			if n, err = strconv.Atoi(fields[1]); err != nil {
				fmt.Printf("bad k %q\n", fields[1])
				fmt.Print("user> ")
				continue
			}
		}

		// Bad ids are part of normal operation here: report and keep going.
		if err := printTopK(ctx, recommender, core.ID(user), n, tags); err != nil {
			if errors.Is(err, core.ErrUnknownUser) {
				fmt.Printf("user %d is outside the model\n", user)
			} else {
				fmt.Printf("query failed: %v\n", err)
			}
		}
		fmt.Print("user> ")
	}
	return scanner.Err()
}

// printTopK queries and prints one ranking.
func printTopK(ctx context.Context, recommender *cfstep.Recommender, user core.ID, k int, tags []string) error {
	items, err := recommender.TopK(ctx, user, k, tags...)
	if err != nil {
		return err
	}

	scores, err := recommender.Model().ScoreItems(user)
	if err != nil {
		return err
	}

	fmt.Printf("Top %d for user %d\n", len(items), user)
	for i, item := range items {
		title := item.Title
		if title == "" {
			title = "(uncataloged)"
		}
		fmt.Printf("%d: '%s' (%d)[%0.3f]\n", i, title, item.Id, scores[item.Id])
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
