package repository

import (
	"context"
	"time"

	"stillpoint/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// ListActiveSince pages users with activity after the cutoff; drives the
	// weekly progress sweep.
	ListActiveSince(ctx context.Context, tx Tx, since time.Time, offset, limit int) ([]*model.User, error)
}
