package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/levenlabs/go-lflag"
	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// File reads states from a JSON file holding either a single state object or
// an array of them, as returned by the Home Assistant states API. The file is
// re-read on every call so edits show up on the next render.
type File struct {
	path string
}

func configuredFile() *File {
	path := lflag.String("states-file", "", "Path to a JSON file of entity states")

	f := &File{}
	lflag.Do(func() {
		f.path = *path
	})
	return f
}

// NewFile returns a source reading the file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Validate checks if the source is properly configured.
func (f *File) Validate() error {
	if f.path == "" {
		return errors.New("states-file is required")
	}
	return nil
}

// GetState implements Source.
func (f *File) GetState(ctx context.Context, entityID string) (types.EntityState, error) {
	states, err := f.ListStates(ctx)
	if err != nil {
		return types.EntityState{}, err
	}
	for _, st := range states {
		if st.EntityID == entityID {
			return st, nil
		}
	}
	return types.EntityState{}, ErrEntityNotFound
}

// ListStates implements Source.
func (f *File) ListStates(ctx context.Context) ([]types.EntityState, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("error reading states file: %w", err)
	}
	return DecodeStates(ctx, b)
}

// PutState implements Source.
func (f *File) PutState(ctx context.Context, st types.EntityState) error {
	return ErrReadOnly
}

// Close implements Source.
func (f *File) Close() error {
	return nil
}

// DecodeStates decodes a single state object or an array of states. Array
// entries that don't decode are skipped.
func DecodeStates(ctx context.Context, b []byte) ([]types.EntityState, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("error decoding states: %w", err)
		}
		return decodeStateList(ctx, raw), nil
	}
	var st types.EntityState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("error decoding state: %w", err)
	}
	return []types.EntityState{st}, nil
}

func decodeStateList(ctx context.Context, raw []json.RawMessage) []types.EntityState {
	states := make([]types.EntityState, 0, len(raw))
	for i, msg := range raw {
		var st types.EntityState
		if err := json.Unmarshal(msg, &st); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping malformed state", slog.Int("index", i), slog.Any("err", err))
			continue
		}
		states = append(states, st)
	}
	return states
}
