package resolver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/cache"
	"github.com/mgnrega-tn/backend/internal/catalog"
	"github.com/mgnrega-tn/backend/internal/metrics"
	"github.com/mgnrega-tn/backend/internal/snapshot"
	"github.com/mgnrega-tn/backend/internal/storage/models"
	"github.com/mgnrega-tn/backend/pkg/logger"
)

var ErrNotFound = errors.New("district not found")

// Store is the read side of the primary relational store.
type Store interface {
	ListDistricts(ctx context.Context) ([]models.District, error)
	GetDistrict(ctx context.Context, id int64) (*models.District, error)
	ListMonthlyMetrics(ctx context.Context, districtID int64) ([]models.MonthlyMetric, error)
}

// Snapshots finds a district's monthly rows in archived upstream responses.
type Snapshots interface {
	FindDistrict(ctx context.Context, name string) ([]snapshot.Row, error)
}

// Tier names the data source that produced an answer.
type Tier string

const (
	TierCache    Tier = "cache"
	TierStore    Tier = "store"
	TierSnapshot Tier = "snapshot"
	TierCatalog  Tier = "catalog"
	TierNone     Tier = "none"
)

type DistrictRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type MonthlySummary struct {
	Year       int   `json:"year"`
	Month      int   `json:"month"`
	Persons    int64 `json:"persons"`
	PersonDays int64 `json:"person_days"`
	Wages      int64 `json:"wages"`
	Households int64 `json:"households"`
}

// Engine answers district reads from the freshest tier that has data:
// cache, primary store, snapshot archive, static catalog.
type Engine struct {
	store     Store
	cache     *cache.Cache
	snapshots Snapshots
	catalog   *catalog.Catalog
	ttl       time.Duration
}

// NewEngine wires the tiers. store and snapshots may be nil when the
// deployment has no database or archive; a nil cache never hits.
func NewEngine(store Store, resultCache *cache.Cache, snapshots Snapshots, cat *catalog.Catalog, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Engine{
		store:     store,
		cache:     resultCache,
		snapshots: snapshots,
		catalog:   cat,
		ttl:       ttl,
	}
}

// ListDistricts never fails; the worst case is an empty list.
func (e *Engine) ListDistricts(ctx context.Context) ([]DistrictRef, Tier) {
	start := time.Now()
	defer observe("list_districts", start)

	key := cache.DistrictsListKey()
	var cached []DistrictRef
	if e.cache.GetJSON(ctx, key, &cached) {
		resolved("list_districts", TierCache)
		return nonNil(cached), TierCache
	}

	out, tier := e.storeDistricts(ctx), TierStore
	if out.outcome != OutcomeOK {
		out, tier = e.catalogDistricts(), TierCatalog
	}

	refs := nonNil(out.value)
	e.cache.SetJSON(ctx, key, refs, e.ttl)

	resolved("list_districts", tier)
	return refs, tier
}

// DistrictSummary returns the monthly metrics of a district ordered by
// (year, month). Only store-sourced answers are cached.
func (e *Engine) DistrictSummary(ctx context.Context, districtID int64) ([]MonthlySummary, Tier, error) {
	start := time.Now()
	defer observe("district_summary", start)

	key := cache.DistrictSummaryKey(districtID)
	var cached []MonthlySummary
	if e.cache.GetJSON(ctx, key, &cached) {
		resolved("district_summary", TierCache)
		return nonNil(cached), TierCache, nil
	}

	if rows := e.storeSummary(ctx, districtID); rows.outcome == OutcomeOK {
		e.cache.SetJSON(ctx, key, rows.value, e.ttl)
		resolved("district_summary", TierStore)
		return rows.value, TierStore, nil
	}

	name := e.districtName(ctx, districtID)
	if name == "" {
		resolved("district_summary", TierNone)
		return nil, TierNone, ErrNotFound
	}

	if rows := e.snapshotSummary(ctx, name); rows.outcome == OutcomeOK {
		resolved("district_summary", TierSnapshot)
		return rows.value, TierSnapshot, nil
	}

	resolved("district_summary", TierNone)
	return nil, TierNone, ErrNotFound
}

// DistrictDetails returns catalog metadata (area, taluks) for a district.
func (e *Engine) DistrictDetails(districtID int64) (catalog.District, error) {
	d, ok := e.catalog.ByID(districtID)
	if !ok {
		return catalog.District{}, ErrNotFound
	}
	return d, nil
}

func (e *Engine) storeDistricts(ctx context.Context) lookup[[]DistrictRef] {
	if e.store == nil {
		return unavailable[[]DistrictRef](TierStore, errStoreUnconfigured)
	}

	districts, err := e.store.ListDistricts(ctx)
	if err != nil {
		return unavailable[[]DistrictRef](TierStore, err)
	}
	if len(districts) == 0 {
		return empty[[]DistrictRef](TierStore)
	}

	refs := make([]DistrictRef, 0, len(districts))
	for _, d := range districts {
		refs = append(refs, DistrictRef{ID: d.ID, Name: d.Name})
	}
	return ok(TierStore, refs)
}

func (e *Engine) catalogDistricts() lookup[[]DistrictRef] {
	all := e.catalog.All()
	if len(all) == 0 {
		return empty[[]DistrictRef](TierCatalog)
	}

	refs := make([]DistrictRef, 0, len(all))
	for _, d := range all {
		refs = append(refs, DistrictRef{ID: d.ID, Name: d.Name})
	}
	return ok(TierCatalog, refs)
}

func (e *Engine) storeSummary(ctx context.Context, districtID int64) lookup[[]MonthlySummary] {
	if e.store == nil {
		return unavailable[[]MonthlySummary](TierStore, errStoreUnconfigured)
	}

	rows, err := e.store.ListMonthlyMetrics(ctx, districtID)
	if err != nil {
		return unavailable[[]MonthlySummary](TierStore, err, zap.Int64("district_id", districtID))
	}
	if len(rows) == 0 {
		return empty[[]MonthlySummary](TierStore)
	}

	out := make([]MonthlySummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, MonthlySummary{
			Year:       r.Year,
			Month:      r.Month,
			Persons:    r.PersonsBenefitted,
			PersonDays: r.PersonDays,
			Wages:      r.WagesPaid,
			Households: r.HouseholdsWorked,
		})
	}
	return ok(TierStore, out)
}

// districtName resolves a display name from the store, then the catalog.
func (e *Engine) districtName(ctx context.Context, districtID int64) string {
	if e.store != nil {
		d, err := e.store.GetDistrict(ctx, districtID)
		switch {
		case err == nil && d != nil && d.Name != "":
			return d.Name
		case err != nil && !errors.Is(err, models.ErrNotFound):
			logger.Warn("District name lookup failed",
				zap.Int64("district_id", districtID),
				zap.Error(err),
			)
		}
	}

	if d, ok := e.catalog.ByID(districtID); ok {
		return d.Name
	}
	return ""
}

func (e *Engine) snapshotSummary(ctx context.Context, name string) lookup[[]MonthlySummary] {
	if e.snapshots == nil {
		return empty[[]MonthlySummary](TierSnapshot)
	}

	rows, err := e.snapshots.FindDistrict(ctx, name)
	if err != nil {
		return unavailable[[]MonthlySummary](TierSnapshot, err, zap.String("district", name))
	}
	if len(rows) == 0 {
		return empty[[]MonthlySummary](TierSnapshot)
	}

	snapshot.SortRows(rows)
	out := make([]MonthlySummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, MonthlySummary{
			Year:       r.Year,
			Month:      r.Month,
			Persons:    r.Persons,
			PersonDays: r.PersonDays,
			Wages:      r.Wages,
			Households: r.Households,
		})
	}
	return ok(TierSnapshot, out)
}

func observe(operation string, start time.Time) {
	metrics.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func resolved(operation string, tier Tier) {
	metrics.TierResolutions.WithLabelValues(operation, string(tier)).Inc()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
