package types

import (
	"errors"
	"fmt"
	"time"
	// card time zones must resolve on hosts without zoneinfo
	_ "time/tzdata"
)

const (
	DefaultCells   = 2
	MinCells       = 1
	MaxCells       = 12
	DefaultDays    = 7
	MinDays        = 1
	MaxDays        = 14
	DefaultCellMAh = 3500.0
	DefaultCellV   = 3.7

	LayoutStacked = "stacked"
	LayoutCompact = "compact"
	LayoutOverlay = "overlay"

	DefaultTimeZone = "UTC"
)

// ErrMissingEntity is returned when a card has no entity configured.
var ErrMissingEntity = errors.New("entity is required")

// CardConfig is the user-facing configuration of a card. Zero values mean
// "use the default"; Normalize fills them in.
type CardConfig struct {
	Name     string  `json:"name,omitempty" yaml:"name"`
	Entity   string  `json:"entity" yaml:"entity"`
	Cells    int     `json:"cells" yaml:"cells"`
	Days     int     `json:"days" yaml:"days"`
	CellMAh  float64 `json:"cell_mah,omitempty" yaml:"cell_mah"`
	CellV    float64 `json:"cell_v,omitempty" yaml:"cell_v"`
	Layout   string  `json:"layout,omitempty" yaml:"layout"`
	TimeZone string  `json:"timezone,omitempty" yaml:"timezone"`
}

// StubCardConfig returns the config suggested for a freshly added card.
func StubCardConfig(entity string) CardConfig {
	return CardConfig{Entity: entity, Cells: DefaultCells, Days: DefaultDays}
}

// Normalize fills in defaults and clamps cells and days into their allowed
// ranges. Out-of-range values are clamped, never rejected.
func (c CardConfig) Normalize() CardConfig {
	if c.Cells == 0 {
		c.Cells = DefaultCells
	}
	c.Cells = clampInt(c.Cells, MinCells, MaxCells)
	if c.Days == 0 {
		c.Days = DefaultDays
	}
	c.Days = clampInt(c.Days, MinDays, MaxDays)
	if !IsFinite(c.CellMAh) || c.CellMAh < 0 {
		c.CellMAh = 0
	}
	if !IsFinite(c.CellV) || c.CellV < 0 {
		c.CellV = 0
	}
	if c.Layout == "" {
		c.Layout = LayoutStacked
	}
	if c.TimeZone == "" {
		c.TimeZone = DefaultTimeZone
	}
	return c
}

// Validate rejects configurations that can't be rendered at all. It should be
// called once, before any render is attempted.
func (c CardConfig) Validate() error {
	if c.Entity == "" {
		return ErrMissingEntity
	}
	switch c.Layout {
	case "", LayoutStacked, LayoutCompact, LayoutOverlay:
	default:
		return fmt.Errorf("unknown layout: %s", c.Layout)
	}
	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.TimeZone, err)
		}
	}
	return nil
}

// Location returns the configured time zone, defaulting to UTC.
func (c CardConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EnergyModel builds the projection model from the card config and the
// sensor attributes. Card overrides win over the upstream meta, which wins over
// the defaults.
func (c CardConfig) EnergyModel(attrs Attributes) EnergyModel {
	var model ModelAttrs
	if attrs.Model != nil {
		model = *attrs.Model
	}
	var meta MetaAttrs
	if attrs.Meta != nil {
		meta = *attrs.Meta
	}
	cellMAh := c.CellMAh
	if cellMAh <= 0 {
		cellMAh = Opt(meta.CellMAh, 0)
	}
	if cellMAh <= 0 {
		cellMAh = DefaultCellMAh
	}
	cellV := c.CellV
	if cellV <= 0 {
		cellV = Opt(meta.CellV, 0)
	}
	if cellV <= 0 {
		cellV = DefaultCellV
	}
	return EnergyModel{
		LoadW:          model.LoadW.Or(0),
		SolarPeakW:     model.SolarPeakW.Or(0),
		CellCount:      c.Cells,
		CellCapacityWh: CellCapacityWh(cellMAh, cellV),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
