package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"

	cfstep "github.com/ZhengTzer/cf-step"
	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/model"
	"github.com/ZhengTzer/cf-step/stream"
)

// catalog is the demo item set. The slice index is the item's embedding row.
var catalog = []struct {
	title string
	tags  []string
}{
	{"Metropolis", []string{"sci-fi", "drama"}},
	{"Nosferatu", []string{"horror"}},
	{"The General", []string{"comedy", "war"}},
	{"M", []string{"crime", "thriller"}},
	{"It Happened One Night", []string{"comedy", "romance"}},
	{"Bride of Frankenstein", []string{"horror"}},
	{"Stagecoach", []string{"western"}},
	{"His Girl Friday", []string{"comedy", "romance"}},
	{"Citizen Kane", []string{"drama"}},
	{"Casablanca", []string{"drama", "romance"}},
	{"Double Indemnity", []string{"crime", "noir"}},
	{"Detour", []string{"crime", "noir"}},
	{"The Big Sleep", []string{"crime", "noir"}},
	{"Out of the Past", []string{"crime", "noir"}},
	{"Bicycle Thieves", []string{"drama"}},
	{"The Third Man", []string{"thriller", "noir"}},
	{"Sunset Boulevard", []string{"drama", "noir"}},
	{"Rashomon", []string{"crime", "drama"}},
	{"The Day the Earth Stood Still", []string{"sci-fi"}},
	{"Singin' in the Rain", []string{"comedy", "musical"}},
	{"High Noon", []string{"western"}},
	{"Tokyo Story", []string{"drama"}},
	{"Seven Samurai", []string{"adventure", "drama"}},
	{"Rear Window", []string{"thriller"}},
	{"Diabolique", []string{"horror", "thriller"}},
	{"The Night of the Hunter", []string{"thriller", "noir"}},
	{"Forbidden Planet", []string{"sci-fi"}},
	{"Invasion of the Body Snatchers", []string{"sci-fi", "horror"}},
	{"The Searchers", []string{"western"}},
	{"The Killing", []string{"crime", "noir"}},
	{"12 Angry Men", []string{"drama"}},
	{"The Seventh Seal", []string{"drama", "fantasy"}},
	{"Paths of Glory", []string{"war", "drama"}},
	{"Sweet Smell of Success", []string{"drama", "noir"}},
	{"Touch of Evil", []string{"crime", "noir"}},
	{"Vertigo", []string{"thriller", "romance"}},
	{"Some Like It Hot", []string{"comedy", "romance"}},
	{"North by Northwest", []string{"thriller", "adventure"}},
	{"Rio Bravo", []string{"western"}},
	{"Breathless", []string{"crime", "drama"}},
	{"Psycho", []string{"horror", "thriller"}},
	{"The Apartment", []string{"comedy", "drama"}},
	{"Yojimbo", []string{"adventure", "comedy"}},
	{"The Innocents", []string{"horror"}},
	{"Lawrence of Arabia", []string{"adventure", "war"}},
	{"The Great Escape", []string{"adventure", "war"}},
	{"The Good, the Bad and the Ugly", []string{"western", "adventure"}},
	{"Night of the Living Dead", []string{"horror"}},
}

var (
	dbPath = flag.String("db", "./cfstep_db", "path to the database directory")
	users  = flag.Int("users", 50, "number of user rows in the model")
	events = flag.Int("events", 2000, "number of synthetic interactions to generate")
	dim    = flag.Int("dim", 16, "embedding dimensionality")
	seed   = flag.Int64("seed", 1, "seed for model init and event generation")
	src    = flag.String("src", "", "seed events from a file (user,item,rating[,preference] per line) instead of generating them")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// eventsFromFile returns an iterator over events parsed from a file.
// Blank lines and #-comments are skipped; unparseable lines are logged and
// skipped so one bad row does not kill the seeding run.
func eventsFromFile(filename string) (iter.Seq[*core.Interaction], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(*core.Interaction) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		line := 0
		for scanner.Scan() {
			line++
			event, err := parseEvent(scanner.Text())
			if err != nil {
				slog.Warn("skipping event", "line", line, "err", err)
				continue
			}
			if event == nil {
				continue
			}
			if !yield(event) {
				return
			}
		}
	}, nil
}

// parseEvent parses one user,item,rating[,preference] line. Blank lines and
// comments return nil, nil.
func parseEvent(text string) (*core.Interaction, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "#") {
		return nil, nil
	}

	fields := strings.Split(text, ",")
	if len(fields) < 3 || len(fields) > 4 {
		return nil, fmt.Errorf("want user,item,rating[,preference], got %q", text)
	}

	user, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad user id: %w", err)
	}
	item, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad item id: %w", err)
	}
	rating, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 32)
	if err != nil {
		return nil, fmt.Errorf("bad rating: %w", err)
	}
	preference := rating
	if len(fields) == 4 {
		preference, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 32)
		if err != nil {
			return nil, fmt.Errorf("bad preference: %w", err)
		}
	}

	return &core.Interaction{
		User:       core.ID(user),
		Item:       core.ID(item),
		Rating:     float32(rating),
		Preference: float32(preference),
	}, nil
}

// syntheticEvents returns a deterministic stream of interactions. Every user
// favors one tag; most of their events land on items carrying it with high
// ratings and a positive preference, the rest are uniform low-rated noise.
// The same seed always yields the same stream.
func syntheticEvents(seed int64, users, count int, items []*core.Item) iter.Seq[*core.Interaction] {
	return func(yield func(*core.Interaction) bool) {
		rng := rand.New(rand.NewSource(seed))

		byTag := make(map[string][]core.ID)
		var tags []string
		for _, item := range items {
			for _, tag := range item.Tags {
				if len(byTag[tag]) == 0 {
					tags = append(tags, tag)
				}
				byTag[tag] = append(byTag[tag], item.Id)
			}
		}

		favorite := make([]string, users)
		for u := range favorite {
			favorite[u] = tags[rng.Intn(len(tags))]
		}

		for i := 0; i < count; i++ {
			user := rng.Intn(users)

			event := &core.Interaction{User: core.ID(user)}
			if liked := byTag[favorite[user]]; rng.Float64() < 0.7 {
				event.Item = liked[rng.Intn(len(liked))]
				event.Rating = float32(3 + rng.Intn(3))
				event.Preference = 1
			} else {
				event.Item = items[rng.Intn(len(items))].Id
				event.Rating = float32(1 + rng.Intn(2))
				event.Preference = 0
			}

			if !yield(event) {
				return
			}
		}
	}
}

// publishBatched reads events from a source iterator and publishes them to
// the consumer in batches. Returns the number of events published.
func publishBatched(ctx context.Context, consumer *stream.Consumer, source iter.Seq[*core.Interaction], batchSize int) (int, error) {
	total := 0
	batch := make([]*core.Interaction, 0, batchSize)

	for event := range source {
		batch = append(batch, event)
		if len(batch) == batchSize {
			if err := consumer.Publish(ctx, batch...); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}

	// Publish any remaining events
	if len(batch) > 0 {
		if err := consumer.Publish(ctx, batch...); err != nil {
			return total, err
		}
		total += len(batch)
	}

	return total, nil
}

func main() {
	recommender, err := cfstep.Open(*dbPath, cfstep.WithModelConfig(model.MFConfig{
		Users: *users,
		Items: len(catalog),
		Dim:   *dim,
		Seed:  *seed,
	}))
	if err != nil {
		panic(err)
	}
	defer recommender.Close()

	ctx := context.Background()

	items := make([]*core.Item, len(catalog))
	for i, entry := range catalog {
		items[i] = &core.Item{Id: core.ID(i), Title: entry.title, Tags: entry.tags}
	}
	if _, err := recommender.Catalog().AddItems(ctx, items...); err != nil {
		panic(err)
	}

	consumer, err := recommender.NewConsumer(stream.WithSnapshotEvery(500))
	if err != nil {
		panic(err)
	}
	defer consumer.Release()

	// Determine source of seed events
	var source iter.Seq[*core.Interaction]
	if *src != "" {
		source, err = eventsFromFile(*src)
		if err != nil {
			panic(err)
		}
	} else {
		source = syntheticEvents(*seed, *users, *events, items)
	}

	// Publish in batches of 100 and train as the events arrive
	total, err := publishBatched(ctx, consumer, source, 100)
	if err != nil {
		panic(err)
	}
	consumer.Flush()

	saved, err := recommender.Checkpoint(ctx)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Seeded %d catalog items and %d events, snapshot version %d\n",
		len(items), total, saved.Id)
}
