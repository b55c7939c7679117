package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/levenlabs/go-lflag"

	"github.com/nodeenergy/nodeenergy/pkg/common"
	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

func main() {
	target := lflag.String("seed-target", "stdout", "Where to write the generated states (stdout, firestore, server)")
	serverURL := lflag.String("seed-server", "http://localhost:8080", "Base URL of the server when seed-target=server")
	projectID := lflag.String("seed-firestore-project-id", "test-project-id", "Firestore project when seed-target=firestore")
	collection := lflag.String("seed-firestore-collection", "states", "Firestore collection when seed-target=firestore")
	entities := lflag.String("seed-entities", "sensor.garden_node,sensor.shed_node", "comma-delimited list of entities to generate")
	history := lflag.Duration("seed-history", 48*time.Hour, "Length of the generated history")
	lflag.Configure()
	if err := log.Configure(); err != nil {
		panic(err)
	}

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	var states []types.EntityState
	for i, entity := range strings.Split(*entities, ",") {
		entity = strings.TrimSpace(entity)
		if entity == "" {
			continue
		}
		n := node{
			Entity:        entity,
			Name:          friendlyName(entity),
			LoadW:         0.8 + float64(i)*0.4,
			SolarPeakW:    6 + float64(i)*2,
			Cells:         2 + i,
			CellMAh:       3500,
			CellV:         3.7,
			WeatherEntity: "weather.home",
			HistoryHours:  int(history.Hours()),
			ForecastDays:  types.MaxDays,
			StartSOC:      40 + rng.Float64()*40,
		}
		states = append(states, generate(n, now, rng))
	}
	log.Ctx(ctx).InfoContext(ctx, "generated states", slog.Int("count", len(states)), slog.String("target", *target))

	var err error
	switch *target {
	case "stdout":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(states)
	case "firestore":
		err = seedFirestore(ctx, *projectID, *collection, states)
	case "server":
		err = seedServer(ctx, *serverURL, states)
	default:
		err = fmt.Errorf("unknown seed-target: %s", *target)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed states", slog.Any("error", err))
		os.Exit(1)
	}
}

func friendlyName(entity string) string {
	name := strings.TrimPrefix(entity, "sensor.")
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func seedFirestore(ctx context.Context, projectID, collection string, states []types.EntityState) error {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	f := source.NewFirestore(projectID, "", collection)
	if err := f.Init(ctx); err != nil {
		return err
	}
	defer f.Close()
	for _, st := range states {
		if err := f.Mirror(ctx, st); err != nil {
			return fmt.Errorf("error seeding %s: %w", st.EntityID, err)
		}
		log.Ctx(ctx).InfoContext(ctx, "seeded state", slog.String("entity", st.EntityID))
	}
	return nil
}

func seedServer(ctx context.Context, baseURL string, states []types.EntityState) error {
	client := resty.NewWithClient(common.HTTPClient(30*time.Second)).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if token := os.Getenv("NODEENERGY_TOKEN"); token != "" {
		client.SetAuthToken(token)
	}
	for _, st := range states {
		resp, err := client.R().
			SetContext(ctx).
			SetPathParam("entity", st.EntityID).
			SetBody(st).
			Post("/api/states/{entity}")
		if err != nil {
			return fmt.Errorf("error pushing %s: %w", st.EntityID, err)
		}
		if resp.IsError() {
			return fmt.Errorf("error pushing %s: status %d: %s", st.EntityID, resp.StatusCode(), resp.String())
		}
		log.Ctx(ctx).InfoContext(ctx, "pushed state", slog.String("entity", st.EntityID))
	}
	return nil
}
