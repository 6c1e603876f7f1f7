package cache

import (
	"context"

	"github.com/munnorthwest/conference-messaging/internal/dispatch"
)

// SummaryCache keeps dispatch outcomes so status queries don't hit the store.
type SummaryCache interface {
	StoreSummary(ctx context.Context, messageID int64, out dispatch.Outcome) error
	GetSummary(ctx context.Context, messageID int64) (dispatch.Outcome, bool, error)
}
