package repository

import (
	"context"

	"stillpoint/internal/domain/model"
)

type TagSyncRepository interface {
	Find(ctx context.Context, tx Tx, userID string) (*model.TagSyncState, error)
	Save(ctx context.Context, tx Tx, state *model.TagSyncState) error
}
