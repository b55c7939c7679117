package card

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// CardsFile is the YAML file listing named cards.
type CardsFile struct {
	Cards []types.CardConfig `yaml:"cards"`
}

// ParseConfigs decodes a cards file and validates every card. Cards are keyed
// by name, falling back to the entity.
func ParseConfigs(b []byte) (map[string]types.CardConfig, error) {
	var f CardsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("error decoding cards: %w", err)
	}
	out := make(map[string]types.CardConfig, len(f.Cards))
	var errs []error
	for i, c := range f.Cards {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("card %d: %w", i, err))
			continue
		}
		name := c.Name
		if name == "" {
			name = c.Entity
		}
		if _, ok := out[name]; ok {
			errs = append(errs, fmt.Errorf("card %d: duplicate name %q", i, name))
			continue
		}
		c.Name = name
		out[name] = c.Normalize()
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// LoadConfigs reads and parses a cards file.
func LoadConfigs(path string) (map[string]types.CardConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading cards file: %w", err)
	}
	return ParseConfigs(b)
}

// ConfigFromQuery builds the config of a card showing entity from URL query
// parameters (cells, days, cell_mah, cell_v, layout, tz). The result is
// validated but not normalized.
func ConfigFromQuery(entity string, q url.Values) (types.CardConfig, error) {
	cfg := types.CardConfig{
		Entity:   entity,
		Layout:   q.Get("layout"),
		TimeZone: q.Get("tz"),
	}
	var err error
	if v := q.Get("cells"); v != "" {
		if cfg.Cells, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("invalid cells: %w", err)
		}
	}
	if v := q.Get("days"); v != "" {
		if cfg.Days, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("invalid days: %w", err)
		}
	}
	if v := q.Get("cell_mah"); v != "" {
		if cfg.CellMAh, err = strconv.ParseFloat(v, 64); err != nil {
			return cfg, fmt.Errorf("invalid cell_mah: %w", err)
		}
	}
	if v := q.Get("cell_v"); v != "" {
		if cfg.CellV, err = strconv.ParseFloat(v, 64); err != nil {
			return cfg, fmt.Errorf("invalid cell_v: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
