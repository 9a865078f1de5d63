package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/logging"
)

// GCSClientFactory builds GCS clients. It exists so tests can inject a
// client pointed at a fake endpoint.
type GCSClientFactory interface {
	NewClient(ctx context.Context) (*storage.Client, error)
}

// ADCClientFactory creates clients authenticated through Google's
// "Application Default Credentials" (ADC).
type ADCClientFactory struct{}

// NewClient returns a client using ambient credentials.
func (ADCClientFactory) NewClient(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx) //nolint:wrapcheck
}

// GCSProvider implements the storage.Provider interface for Google Cloud Storage.
type GCSProvider struct {
	Client     *storage.Client
	BucketName string
}

// NewGCSProvider initializes a new GCS client and verifies the connection.
// A nil factory falls back to Application Default Credentials.
func NewGCSProvider(ctx context.Context, bucketName string, factory GCSClientFactory) (*GCSProvider, error) {
	if factory == nil {
		factory = ADCClientFactory{}
	}
	client, err := factory.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	// Check that the bucket exists and we have permission to access it, so a
	// bad configuration fails at startup instead of mid-run.
	bkt := client.Bucket(bucketName)
	if _, err := bkt.Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logging.L.Warn("Failed to close GCS client after bucket existence check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to get GCS bucket '%s' attributes: %w", bucketName, err)
	}

	return &GCSProvider{
		Client:     client,
		BucketName: bucketName,
	}, nil
}

// Save uploads one snapshot document to the GCS bucket. Every archived
// document is JSON, so the content type is fixed.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	wc := g.Client.Bucket(g.BucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/json"

	if _, err := wc.Write(data); err != nil {
		// Still close the writer to clean up; the write failure is the error
		// we report.
		errTwo := wc.Close()
		logging.L.Warn("Failed to close GCS writer after write failure", zap.Error(err), zap.NamedError("close_error", errTwo))
		return fmt.Errorf("failed to write data to GCS object %s: %w", objectName, err)
	}

	// Close must be called to finalize the upload. It flushes any buffered data.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for object %s: %w", objectName, err)
	}

	return nil
}

// Close releases the underlying client.
func (g *GCSProvider) Close() error {
	return g.Client.Close() //nolint:wrapcheck
}
