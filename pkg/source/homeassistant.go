package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/levenlabs/go-lflag"
	"github.com/nodeenergy/nodeenergy/pkg/common"
	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// HomeAssistant reads entity states from the Home Assistant REST API.
type HomeAssistant struct {
	baseURL string
	token   string
	client  *resty.Client
}

func configuredHomeAssistant() *HomeAssistant {
	baseURL := lflag.String("homeassistant-url", "", "Base URL of the Home Assistant instance")
	token := lflag.String("homeassistant-token", "", "Long-lived access token for Home Assistant")
	timeout := lflag.Duration("homeassistant-timeout", 10*time.Second, "Timeout for Home Assistant requests")

	h := &HomeAssistant{}
	lflag.Do(func() {
		*h = *NewHomeAssistant(*baseURL, *token, *timeout)
	})
	return h
}

// NewHomeAssistant returns a source reading from the Home Assistant instance
// at baseURL.
func NewHomeAssistant(baseURL, token string, timeout time.Duration) *HomeAssistant {
	client := resty.NewWithClient(common.HTTPClient(timeout)).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HomeAssistant{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

// Validate checks if the source is properly configured.
func (h *HomeAssistant) Validate() error {
	if h.baseURL == "" {
		return errors.New("homeassistant-url is required")
	}
	if h.token == "" {
		return errors.New("homeassistant-token is required")
	}
	return nil
}

// GetState implements Source.
func (h *HomeAssistant) GetState(ctx context.Context, entityID string) (types.EntityState, error) {
	var st types.EntityState
	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParam("entity", entityID).
		SetResult(&st).
		Get("/api/states/{entity}")
	if err != nil {
		return types.EntityState{}, fmt.Errorf("error fetching state of %s: %w", entityID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return types.EntityState{}, ErrEntityNotFound
	}
	if resp.IsError() {
		log.Ctx(ctx).WarnContext(
			ctx,
			"unexpected homeassistant response",
			slog.String("entity", entityID),
			slog.Int("status", resp.StatusCode()),
		)
		return types.EntityState{}, fmt.Errorf("homeassistant returned status %d for %s", resp.StatusCode(), entityID)
	}
	return st, nil
}

// ListStates implements Source. States that don't decode are skipped.
func (h *HomeAssistant) ListStates(ctx context.Context) ([]types.EntityState, error) {
	var raw []json.RawMessage
	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&raw).
		Get("/api/states")
	if err != nil {
		return nil, fmt.Errorf("error listing states: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("homeassistant returned status %d listing states", resp.StatusCode())
	}
	return decodeStateList(ctx, raw), nil
}

// PutState implements Source. Home Assistant owns its states.
func (h *HomeAssistant) PutState(ctx context.Context, st types.EntityState) error {
	return ErrReadOnly
}

// Close implements Source.
func (h *HomeAssistant) Close() error {
	return nil
}
