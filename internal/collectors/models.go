package collectors

import (
	"context"

	"github.com/hetulpatel/crossarb/internal/models"
)

// FetchOptions control how many pages a collector walks per cycle and how
// many page requests it keeps in flight.
type FetchOptions struct {
	// MaxPages caps the number of pages walked; 0 means until the venue
	// reports the last page.
	MaxPages int
	PageSize int
	// Workers is the wave width for concurrent page fetches.
	Workers int
}

// WithDefaults fills unset fields and clamps PageSize to the venue limit.
func (o FetchOptions) WithDefaults(pageSize, maxPageSize int) FetchOptions {
	if o.PageSize <= 0 {
		o.PageSize = pageSize
	}
	if maxPageSize > 0 && o.PageSize > maxPageSize {
		o.PageSize = maxPageSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	return o
}

// Collector is implemented by venue-specific listing adapters. Each collector
// fetches every active listing, converts it to a MarketRecord, and drops
// records that fail validation.
type Collector interface {
	Venue() models.Venue
	FetchRecords(ctx context.Context) ([]models.MarketRecord, error)
}

// BookFetcher returns the ask side of a token's order book, ascending by price.
type BookFetcher interface {
	FetchBook(ctx context.Context, tokenID string) ([]models.OrderBookLevel, error)
}

// Source is a venue that can both list markets and serve order books.
type Source interface {
	Collector
	BookFetcher
}
