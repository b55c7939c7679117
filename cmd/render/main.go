// Command render renders a single card once and writes it to a file or
// stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/nodeenergy/nodeenergy/pkg/card"
	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

type options struct {
	entity    string
	cardsFile string
	cardName  string
	query     url.Values
	format    string
	out       string
	timeout   time.Duration
}

func main() {
	src := source.Configured()

	entity := lflag.String("entity", "", "Entity to render")
	cardsFile := lflag.String("cards-file", "", "Path to a YAML file of named cards")
	cardName := lflag.String("card", "", "Name of the card in --cards-file to render instead of --entity")
	cells := lflag.String("cells", "", "Number of cells (1-12)")
	days := lflag.String("days", "", "Forecast days (1-14)")
	cellMAh := lflag.String("cell-mah", "", "Cell capacity in mAh")
	cellV := lflag.String("cell-v", "", "Cell voltage")
	layout := lflag.String("layout", "", "Layout (stacked, compact, overlay)")
	tz := lflag.String("tz", "", "Time zone of the time axis labels")
	formatName := lflag.String("format", "svg", "Output format (svg, png, echarts)")
	out := lflag.String("out", "", "Output path, stdout if empty")
	timeout := lflag.Duration("timeout", 30*time.Second, "Timeout for fetching the entity state")

	lflag.Configure()
	if err := log.Configure(); err != nil {
		panic(err)
	}

	err := run(src, options{
		entity:    *entity,
		cardsFile: *cardsFile,
		cardName:  *cardName,
		query: url.Values{
			"cells":    {*cells},
			"days":     {*days},
			"cell_mah": {*cellMAh},
			"cell_v":   {*cellV},
			"layout":   {*layout},
			"tz":       {*tz},
		},
		format:  *formatName,
		out:     *out,
		timeout: *timeout,
	})
	if err != nil {
		log.Ctx(context.Background()).Error("failed to render card", slog.Any("error", err))
		os.Exit(1)
	}
}

// run renders one card and closes src before returning.
func run(src source.Source, opts options) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	defer func() {
		if err := src.Close(); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to close source", slog.Any("error", err))
		}
	}()

	var cfg types.CardConfig
	var err error
	if opts.cardName != "" {
		cfg, err = namedCard(opts.cardsFile, opts.cardName)
	} else {
		cfg, err = card.ConfigFromQuery(opts.entity, opts.query)
	}
	if err != nil {
		return fmt.Errorf("invalid card config: %w", err)
	}
	format, err := card.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	v, err := render(ctx, src, cfg)
	if err != nil {
		return fmt.Errorf("error rendering %s: %w", cfg.Entity, err)
	}
	if err := write(opts.out, v, format); err != nil {
		return fmt.Errorf("error writing card: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "card rendered", slog.String("entity", cfg.Entity), slog.String("kind", v.Kind.String()))
	return nil
}

func namedCard(path, name string) (types.CardConfig, error) {
	if path == "" {
		return types.CardConfig{}, errors.New("--card requires --cards-file")
	}
	cards, err := card.LoadConfigs(path)
	if err != nil {
		return types.CardConfig{}, err
	}
	cfg, ok := cards[name]
	if !ok {
		return types.CardConfig{}, fmt.Errorf("card %q not found in %s", name, path)
	}
	return cfg, nil
}

func render(ctx context.Context, src source.Source, cfg types.CardConfig) (card.View, error) {
	var state *types.EntityState
	st, err := src.GetState(ctx, cfg.Entity)
	if err == nil {
		state = &st
	} else if !errors.Is(err, source.ErrEntityNotFound) {
		return card.View{}, err
	}
	return card.Build(card.Input{Config: cfg, State: state}), nil
}

func write(path string, v card.View, format card.Format) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("error creating output: %w", err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	if err := card.Write(bw, v, format); err != nil {
		return err
	}
	return bw.Flush()
}
