package adapter

import (
	"context"
	"io"
)

// ArtifactStore persists generated audio. Keys are opaque to callers.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
}
