package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/wbstats/internal/scrape"
)

// Scraper walks the country index and detail pages. scrape.Scraper satisfies
// this; tests substitute stubs.
type Scraper interface {
	CountryList(ctx context.Context) ([]scrape.CountryLink, error)
	CountryDetail(ctx context.Context, link scrape.CountryLink) (scrape.CountryRecord, error)
	Pause(ctx context.Context)
	Close()
}

// Hasher computes digests for snapshot integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
