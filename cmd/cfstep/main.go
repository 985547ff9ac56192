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
	"time"

	"github.com/urfave/cli/v2"

	cfstep "github.com/ZhengTzer/cf-step"
	"github.com/ZhengTzer/cf-step/coldstart"
	"github.com/ZhengTzer/cf-step/coldstart/openai"
	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/loss"
	"github.com/ZhengTzer/cf-step/model"
	"github.com/ZhengTzer/cf-step/optim"
	"github.com/ZhengTzer/cf-step/storage"
	"github.com/ZhengTzer/cf-step/storage/badger"
	"github.com/ZhengTzer/cf-step/train"
)

func main() {
	app := &cli.App{
		Name:  "cfstep",
		Usage: "Incremental collaborative filtering trainer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "train",
				Usage:  "Retrain the model over the whole interaction log",
				Action: trainCommand,
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
						Name:  "epochs",
						Usage: "Number of passes over the interaction log",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of interactions per training batch",
						Value: train.DefaultBatchSize,
					},
					&cli.StringFlag{
						Name:  "objective",
						Usage: "Training objective (mse, logistic, hinge)",
						Value: "mse",
					},
					&cli.StringFlag{
						Name:  "optimizer",
						Usage: "Parameter update rule (sgd, adagrad)",
						Value: "sgd",
					},
					&cli.Float64Flag{
						Name:  "lr",
						Usage: "Learning rate",
						Value: 0.01,
					},
					&cli.Float64Flag{
						Name:  "weight-decay",
						Usage: "L2 regularization coefficient (sgd only)",
					},
					&cli.StringFlag{
						Name:  "confidence",
						Usage: "Confidence weighting (none, constant, linear, log)",
						Value: "none",
					},
					&cli.Float64Flag{
						Name:  "alpha",
						Usage: "Confidence strength parameter",
						Value: 1,
					},
					&cli.StringFlag{
						Name:  "device",
						Usage: "Compute device name",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N examples",
						Value: 1000,
					},
				},
			},
			{
				Name:   "add",
				Usage:  "Append interactions to the log",
				Action: addCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "src",
						Usage: "File with one event per line: user,item,rating[,preference]",
					},
					&cli.Int64Flag{
						Name:  "user",
						Usage: "User id of a single event",
					},
					&cli.Int64Flag{
						Name:  "item",
						Usage: "Item id of a single event",
					},
					&cli.Float64Flag{
						Name:  "rating",
						Usage: "Raw rating of a single event",
					},
					&cli.Float64Flag{
						Name:  "preference",
						Usage: "Training target of a single event (defaults to the rating)",
					},
				},
			},
			{
				Name:   "bootstrap",
				Usage:  "Seed item embeddings from catalog text",
				Action: bootstrapCommand,
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
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "api-key",
						Usage: "API key for the embedding service",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of items to embed in each request",
						Value: 32,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed requests",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "snapshot",
				Usage:  "Inspect, export or import model snapshots",
				Action: snapshotCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.Int64Flag{
						Name:  "id",
						Usage: "Snapshot version to inspect (default: latest)",
					},
					&cli.StringFlag{
						Name:  "export",
						Usage: "Write the snapshot to this file",
					},
					&cli.StringFlag{
						Name:  "import",
						Usage: "Read a snapshot from this file and store it",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func trainCommand(c *cli.Context) error {
	ctx := context.Background()

	dbPath := c.String("db")
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	objective, err := objectiveFromName(c.String("objective"))
	if err != nil {
		return err
	}
	optimizer, err := optimizerFromName(c.String("optimizer"), c.Float64("lr"), c.Float64("weight-decay"))
	if err != nil {
		return err
	}
	confidence, err := confidenceFromName(c.String("confidence"), c.Float64("alpha"))
	if err != nil {
		return err
	}

	opts := []cfstep.RecommenderOption{
		cfstep.WithModelConfig(model.MFConfig{
			Users: c.Int("users"),
			Items: c.Int("items"),
			Dim:   c.Int("dim"),
			Seed:  c.Int64("seed"),
		}),
		cfstep.WithObjective(objective),
		cfstep.WithOptimizer(optimizer),
		cfstep.WithBatchSize(c.Int("batch-size")),
		cfstep.WithMonitor(train.NewProgressMonitor(os.Stderr, c.Int("report-interval"))),
	}
	if confidence != nil {
		opts = append(opts, cfstep.WithConfidence(confidence))
	}
	if device := c.String("device"); device != "" {
		opts = append(opts, cfstep.WithDevice(device))
	}

	recommender, err := cfstep.Open(dbPath, opts...)
	if err != nil {
		return fmt.Errorf("failed to open recommender: %w", err)
	}
	defer recommender.Close()

	// Continue from the latest snapshot when one matches the model geometry
	if err := recommender.RestoreLatest(ctx); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fmt.Fprintln(os.Stderr, "No snapshot found, training from scratch")
		case errors.Is(err, core.ErrCorruptState):
			fmt.Fprintln(os.Stderr, "Snapshot geometry differs, training from scratch")
		default:
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
	}

	count, err := recommender.Interactions().CountInteractions(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("interaction log is empty, nothing to train on")
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "Interactions: %d\n", count)
	fmt.Fprintf(os.Stderr, "Objective: %s\n", c.String("objective"))
	fmt.Fprintf(os.Stderr, "Optimizer: %s\n", c.String("optimizer"))
	fmt.Fprintln(os.Stderr)

	if err := recommender.Retrain(ctx, c.Int("epochs")); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	saved, err := recommender.Checkpoint(ctx)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Saved snapshot version %d\n", saved.Id)

	return nil
}

func addCommand(c *cli.Context) error {
	ctx := context.Background()

	dbPath := c.String("db")
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	var interactions []*core.Interaction
	if src := c.String("src"); src != "" {
		var err error
		interactions, err = interactionsFromFile(src)
		if err != nil {
			return err
		}
	} else {
		if !c.IsSet("user") || !c.IsSet("item") {
			return fmt.Errorf("either --src or --user and --item are required")
		}
		preference := c.Float64("preference")
		if !c.IsSet("preference") {
			preference = c.Float64("rating")
		}
		interactions = []*core.Interaction{{
			User:       core.ID(c.Int64("user")),
			Item:       core.ID(c.Int64("item")),
			Rating:     float32(c.Float64("rating")),
			Preference: float32(preference),
		}}
	}

	for _, interaction := range interactions {
		if err := core.ValidateInteraction(interaction); err != nil {
			return err
		}
	}

	// Appending to the log does not need the model
	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewInteractionRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	added, err := repo.AddInteractions(ctx, interactions...)
	if err != nil {
		return fmt.Errorf("failed to append interactions: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Appended %d interactions\n", len(added))
	return nil
}

func bootstrapCommand(c *cli.Context) error {
	ctx := context.Background()

	dbPath := c.String("db")
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	embedderOpts := []openai.ConfigOption{
		openai.WithHost(c.String("embedding-host")),
		openai.WithModel(c.String("embedding-model")),
	}
	if token := c.String("api-key"); token != "" {
		embedderOpts = append(embedderOpts, openai.WithToken(token))
	}

	embedder, err := openai.NewEmbedder(openai.NewConfig(embedderOpts...))
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	recommender, err := cfstep.Open(dbPath, cfstep.WithModelConfig(model.MFConfig{
		Users: c.Int("users"),
		Items: c.Int("items"),
		Dim:   c.Int("dim"),
		Seed:  c.Int64("seed"),
	}))
	if err != nil {
		return fmt.Errorf("failed to open recommender: %w", err)
	}
	defer recommender.Close()

	// Bootstrap on top of trained state when a snapshot exists
	if err := recommender.RestoreLatest(ctx); err != nil &&
		!errors.Is(err, storage.ErrNotFound) && !errors.Is(err, core.ErrCorruptState) {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	items, err := recommender.Catalog().Items(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("catalog is empty, nothing to bootstrap")
	}

	bootstrapper, err := recommender.NewBootstrapper(embedder,
		coldstart.WithBatchSize(c.Int("batch-size")),
		coldstart.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
	)
	if err != nil {
		return fmt.Errorf("failed to create bootstrapper: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintf(os.Stderr, "Catalog items: %d\n", len(items))
	fmt.Fprintln(os.Stderr)

	if err := bootstrapper.Bootstrap(ctx, items...); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	saved, err := recommender.Checkpoint(ctx)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Bootstrapped %d items, saved snapshot version %d\n", len(items), saved.Id)

	return nil
}

func snapshotCommand(c *cli.Context) error {
	ctx := context.Background()

	dbPath := c.String("db")
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewSnapshotRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	if src := c.String("import"); src != "" {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		snapshot, err := storage.UnmarshalSnapshot(data)
		if err != nil {
			return fmt.Errorf("failed to decode snapshot: %w", err)
		}
		saved, err := repo.SaveSnapshot(ctx, snapshot)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Imported snapshot as version %d\n", saved.Id)
		return nil
	}

	var snapshot *core.Snapshot
	if id := c.Int64("id"); id > 0 {
		snapshot, err = repo.GetSnapshot(ctx, core.ID(id))
		if err != nil {
			return err
		}
	} else {
		snapshot, err = repo.LatestSnapshot(ctx)
		if err != nil {
			return err
		}
		if snapshot == nil {
			return fmt.Errorf("no snapshots in %s", dbPath)
		}
	}

	if dst := c.String("export"); dst != "" {
		if err := os.WriteFile(dst, storage.MarshalSnapshot(snapshot), 0644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported snapshot version %d to %s\n", snapshot.Id, dst)
		return nil
	}

	fmt.Printf("Version: %d\n", snapshot.Id)
	fmt.Printf("Created: %s\n", snapshot.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Dim:     %d\n", snapshot.Dim)
	fmt.Printf("Users:   %d\n", len(snapshot.Users))
	fmt.Printf("Items:   %d\n", len(snapshot.Items))
	return nil
}

// interactionsFromFile parses one event per line: user,item,rating[,preference]
func interactionsFromFile(path string) ([]*core.Interaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var interactions []*core.Interaction
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Split(text, ",")
		if len(fields) < 3 || len(fields) > 4 {
			return nil, fmt.Errorf("line %d: want user,item,rating[,preference], got %q", line, text)
		}

		user, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad user id: %w", line, err)
		}
		item, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad item id: %w", line, err)
		}
		rating, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad rating: %w", line, err)
		}
		preference := rating
		if len(fields) == 4 {
			preference, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad preference: %w", line, err)
			}
		}

		interactions = append(interactions, &core.Interaction{
			User:       core.ID(user),
			Item:       core.ID(item),
			Rating:     float32(rating),
			Preference: float32(preference),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return interactions, nil
}

func objectiveFromName(name string) (loss.Objective, error) {
	switch strings.ToLower(name) {
	case "mse":
		return loss.NewMSE(), nil
	case "logistic":
		return loss.NewLogistic(), nil
	case "hinge":
		return loss.NewHinge(), nil
	default:
		return nil, fmt.Errorf("unknown objective %q: must be one of mse, logistic, hinge", name)
	}
}

func optimizerFromName(name string, lr, weightDecay float64) (optim.Optimizer, error) {
	switch strings.ToLower(name) {
	case "sgd":
		return optim.NewSGD(optim.SGDConfig{LearningRate: lr, WeightDecay: weightDecay}), nil
	case "adagrad":
		return optim.NewAdaGrad(optim.AdaGradConfig{LearningRate: lr}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q: must be one of sgd, adagrad", name)
	}
}

func confidenceFromName(name string, alpha float64) (train.ConfidenceFunc, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "constant":
		return train.ConstantConfidence(float32(alpha)), nil
	case "linear":
		return train.LinearConfidence(float32(alpha)), nil
	case "log":
		return train.LogConfidence(float32(alpha), 1), nil
	default:
		return nil, fmt.Errorf("unknown confidence %q: must be one of none, constant, linear, log", name)
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
