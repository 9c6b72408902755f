package primary

import (
	"context"

	"github.com/example/safebridge/internal/core/dispatch"
)

// SearchService defines the primary port for finding candidate hospitals.
type SearchService interface {
	// Search returns normalized, deduplicated tiers for a case.
	Search(ctx context.Context, c dispatch.CaseInfo) (dispatch.Tiers, error)
}
