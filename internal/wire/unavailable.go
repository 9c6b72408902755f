package wire

import (
	"context"
	"errors"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/secondary"
)

// ErrNoSearchBackend is returned when neither a backend URL nor a candidate
// file is configured.
var ErrNoSearchBackend = errors.New("no hospital search configured: set backend.url or pass --candidates")

type unavailableSearch struct{}

func (unavailableSearch) Search(ctx context.Context, query secondary.SearchQuery) (dispatch.Tiers, error) {
	return dispatch.Tiers{}, ErrNoSearchBackend
}
