package storage

import (
	"context"
)

// Provider stores output files in an object bucket.
type Provider interface {
	// CheckBucket makes sure the bucket exists, creating it if needed.
	CheckBucket(ctx context.Context) error

	// PutFile uploads the local file at path under objectKey, replacing any
	// previous version.
	PutFile(ctx context.Context, objectKey, path string) error
}
