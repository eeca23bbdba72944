package collectors

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

// Result is one collector's output for a cycle.
type Result struct {
	Venue   models.Venue
	Records []models.MarketRecord
	Err     error
}

// FetchAll runs every collector concurrently. A failing collector yields an
// empty record list and its error; the others are unaffected.
func FetchAll(ctx context.Context, sources ...Collector) []Result {
	results := make([]Result, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			records, err := src.FetchRecords(ctx)
			if err != nil {
				logging.Errorf("[%s] fetch failed: %v", src.Venue(), err)
				records = nil
			} else {
				logging.Infof("[%s] fetched %d records in %s", src.Venue(), len(records), time.Since(start).Round(time.Millisecond))
			}
			results[i] = Result{Venue: src.Venue(), Records: records, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// KeepValid drops records that fail validation or are not open for trading.
func KeepValid(name string, records []models.MarketRecord) []models.MarketRecord {
	out := records[:0]
	for _, r := range records {
		if err := r.Validate(); err != nil {
			logging.Debugf("[%s] drop record: %v", name, err)
			continue
		}
		if !r.Tradable() {
			continue
		}
		out = append(out, r)
	}
	return out
}
