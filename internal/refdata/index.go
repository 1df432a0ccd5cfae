package refdata

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/medbillai/medbill/internal/common"
)

// MinQueryLength is the shortest accepted search query.
const MinQueryLength = 2

// ErrQueryTooShort rejects sub-minimum search queries.
var ErrQueryTooShort = common.NewAppError("QUERY_TOO_SHORT",
	fmt.Sprintf("query must be at least %d characters", MinQueryLength),
	common.ErrInvalidInput)

// Index serves reference-data lookups from an in-memory snapshot of the
// SQLite reference database. Reload swaps the snapshot wholesale; readers
// never see a half-loaded state.
type Index struct {
	path  string
	snap  atomic.Pointer[Snapshot]
	cache *gocache.Cache
	log   *slog.Logger
}

// Open loads the reference database at path. A missing or empty database is
// not an error: the index serves empty snapshots and the rules that need it
// degrade to warnings.
func Open(path string, cacheTTL time.Duration, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	ix := &Index{
		path:  path,
		cache: gocache.New(cacheTTL, 2*cacheTTL),
		log:   logger,
	}
	if err := ix.Reload(context.Background()); err != nil {
		ix.log.Warn("refdata.open.load_failed", "path", path, "error", err)
		ix.snap.Store(NewSnapshot(nil, nil, nil))
	}
	return ix, nil
}

// Reload reads the database and swaps the snapshot atomically.
func (ix *Index) Reload(ctx context.Context) error {
	snap, err := loadSnapshot(ctx, ix.path)
	if err != nil {
		return common.NewAppError("REFDATA_LOAD", "load reference data", err)
	}
	ix.snap.Store(snap)
	ix.cache.Flush()
	ix.log.Info("refdata.reload.done",
		"path", ix.path,
		"rates", len(snap.Rates),
		"hospitals", len(snap.Hospitals),
		"stats", len(snap.Stats),
	)
	return nil
}

// Snapshot returns the current immutable view for rule evaluation.
func (ix *Index) Snapshot() *Snapshot {
	return ix.snap.Load()
}

// Counts reports dataset sizes for the status endpoint.
func (ix *Index) Counts() (rates, hospitals, stats int) {
	s := ix.snap.Load()
	return len(s.Rates), len(s.Hospitals), len(s.Stats)
}

// SearchRates runs a ranked tariff search, TTL-cached per query.
func (ix *Index) SearchRates(q string) ([]Rate, error) {
	if len(q) < MinQueryLength {
		return nil, ErrQueryTooShort
	}
	key := "rates:" + normalize(q)
	if v, ok := ix.cache.Get(key); ok {
		return v.([]Rate), nil
	}
	out := ix.snap.Load().SearchRates(q)
	ix.cache.SetDefault(key, out)
	return out, nil
}

// SearchHospitals runs a ranked registry search, TTL-cached per query.
func (ix *Index) SearchHospitals(q string) ([]Hospital, error) {
	if len(q) < MinQueryLength {
		return nil, ErrQueryTooShort
	}
	key := "hospitals:" + normalize(q)
	if v, ok := ix.cache.Get(key); ok {
		return v.([]Hospital), nil
	}
	out := ix.snap.Load().SearchHospitals(q)
	ix.cache.SetDefault(key, out)
	return out, nil
}
