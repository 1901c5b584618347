package adapter

import "context"

// AudienceClient pushes per-user tags to the external segmentation service.
// Values are strings per its contract.
type AudienceClient interface {
	UpsertTags(ctx context.Context, userID string, tags map[string]string) error
}
