// Package storage archives raw scrape snapshots as JSON blobs.
// The Provider abstraction keeps the pipeline independent of where archives
// land (Google Cloud Storage, the local filesystem, or memory in tests).
package storage

import (
	"context"
)

// Provider defines the common interface for an archive destination.
// It abstracts the operation of saving a document.
type Provider interface {
	// Save writes one document to a specified object path/key.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider is an archive provider that performs no operations.
// It is useful for dry runs where countries are scraped and loaded but raw
// snapshots are not kept.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
