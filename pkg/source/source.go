package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/levenlabs/go-lflag"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

var (
	// ErrEntityNotFound is returned when the host has no state for an entity.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrReadOnly is returned by sources that don't accept pushed states.
	ErrReadOnly = errors.New("source is read-only")
)

// Source provides the latest state snapshots of the host's entities.
type Source interface {
	// GetState returns the snapshot of a single entity or ErrEntityNotFound.
	GetState(ctx context.Context, entityID string) (types.EntityState, error)
	// ListStates returns every entity the source knows about.
	ListStates(ctx context.Context) ([]types.EntityState, error)
	// PutState replaces the snapshot of an entity. Read-only sources return
	// ErrReadOnly.
	PutState(ctx context.Context, st types.EntityState) error

	Close() error
}

// NodeEnergyStates filters states down to node energy sensors, sorted by name
// and then entity ID.
func NodeEnergyStates(states []types.EntityState) []types.EntityState {
	out := make([]types.EntityState, 0, len(states))
	for _, st := range states {
		if st.IsNodeEnergy() {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// Configured sets up the Source based on flags.
func Configured() Source {
	provider := lflag.String("source-provider", "memory", "Source of entity states (available: memory, homeassistant, firestore, file)")

	var p struct{ Source }

	ha := configuredHomeAssistant()
	fs := configuredFirestore()
	file := configuredFile()

	lflag.Do(func() {
		switch *provider {
		case "memory":
			p.Source = NewMemory()
		case "homeassistant":
			if err := ha.Validate(); err != nil {
				panic(fmt.Sprintf("homeassistant validation failed: %v", err))
			}
			p.Source = ha
		case "firestore":
			p.Source = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "file":
			if err := file.Validate(); err != nil {
				panic(fmt.Sprintf("file validation failed: %v", err))
			}
			p.Source = file
		default:
			panic(fmt.Sprintf("unknown source provider: %s", *provider))
		}
	})

	return &p
}
