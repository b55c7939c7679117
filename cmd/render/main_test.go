package main

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nodeenergy/nodeenergy/pkg/card"
	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/source/sourcemock"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

func TestNamedCard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cards:\n  - name: garden\n    entity: sensor.garden_node\n    days: 3\n"), 0o600))

	cfg, err := namedCard(path, "garden")
	require.NoError(t, err)
	assert.Equal(t, "sensor.garden_node", cfg.Entity)
	assert.Equal(t, 3, cfg.Days)

	_, err = namedCard(path, "shed")
	assert.ErrorContains(t, err, "not found")

	_, err = namedCard("", "garden")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	mockSource := new(sourcemock.MockSource)
	mockSource.On("GetState", mock.Anything, "sensor.missing").Return(types.EntityState{}, source.ErrEntityNotFound)
	mockSource.On("GetState", mock.Anything, "sensor.broken").Return(types.EntityState{}, errors.New("boom"))

	v, err := render(ctx, mockSource, types.CardConfig{Entity: "sensor.missing"})
	require.NoError(t, err)
	assert.Equal(t, card.ViewNotFound, v.Kind)

	_, err = render(ctx, mockSource, types.CardConfig{Entity: "sensor.broken"})
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.html")
	v := card.Build(card.Input{Config: types.CardConfig{Entity: "sensor.missing"}})
	require.NoError(t, write(path, v, card.FormatHTML))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Entity not found: sensor.missing")
}

func TestRun(t *testing.T) {
	t.Run("writes the card and closes the source", func(t *testing.T) {
		mockSource := new(sourcemock.MockSource)
		mockSource.On("GetState", mock.Anything, "sensor.missing").Return(types.EntityState{}, source.ErrEntityNotFound)
		mockSource.On("Close").Return(nil)

		path := filepath.Join(t.TempDir(), "card.html")
		err := run(mockSource, options{
			entity:  "sensor.missing",
			query:   url.Values{"cells": {"3"}},
			format:  "svg",
			out:     path,
			timeout: time.Second,
		})
		require.NoError(t, err)
		mockSource.AssertCalled(t, "Close")

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(b), "Entity not found: sensor.missing")
	})

	t.Run("closes the source on failure", func(t *testing.T) {
		mockSource := new(sourcemock.MockSource)
		mockSource.On("Close").Return(nil)

		err := run(mockSource, options{
			entity:  "sensor.garden_node",
			format:  "gif",
			timeout: time.Second,
		})
		assert.Error(t, err)
		mockSource.AssertCalled(t, "Close")
		mockSource.AssertNotCalled(t, "GetState", mock.Anything, mock.Anything)
	})

	t.Run("invalid config", func(t *testing.T) {
		mockSource := new(sourcemock.MockSource)
		mockSource.On("Close").Return(nil)

		err := run(mockSource, options{
			entity:  "sensor.garden_node",
			query:   url.Values{"cells": {"many"}},
			format:  "svg",
			timeout: time.Second,
		})
		assert.ErrorContains(t, err, "invalid cells")
		mockSource.AssertCalled(t, "Close")
	})
}
