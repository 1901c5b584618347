package repository

import (
	"context"
	"time"

	"stillpoint/internal/domain/model"
)

// ActivityRepository reads the raw journal/meditation rows owned by the
// surrounding product. This service only counts and renders them.
type ActivityRepository interface {
	FindEntries(ctx context.Context, tx Tx, ids []string) ([]*model.JournalEntry, error)
	ListEntriesBetween(ctx context.Context, tx Tx, userID string, from, to time.Time) ([]*model.JournalEntry, error)
	CountEntriesBetween(ctx context.Context, tx Tx, userID string, from, to time.Time) (int, error)
	CountSessionsBetween(ctx context.Context, tx Tx, userID string, from, to time.Time) (int, error)
}
