package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/metrics"
	"github.com/mgnrega-tn/backend/internal/snapshot"
	"github.com/mgnrega-tn/backend/internal/storage/models"
	"github.com/mgnrega-tn/backend/internal/storage/sqlstore"
	"github.com/mgnrega-tn/backend/pkg/logger"
	"github.com/mgnrega-tn/backend/pkg/utils"
)

var ErrRunInProgress = errors.New("ingestion run already in progress")

const lockKey = "ingestion:run"

// Fetcher returns the raw upstream payload for a region.
type Fetcher interface {
	FetchRegion(ctx context.Context, region string) ([]byte, error)
}

type Archiver interface {
	Write(ctx context.Context, at time.Time, payload []byte) (string, error)
}

type Store interface {
	WithTx(ctx context.Context, fn func(tx *sqlstore.Tx) error) error
}

// Locker is a cross-process mutual exclusion primitive. The Redis client
// satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

type RunReport struct {
	RunID        string        `json:"run_id"`
	Region       string        `json:"region"`
	SnapshotPath string        `json:"snapshot_path"`
	Checksum     string        `json:"checksum"`
	Seen         int           `json:"seen"`
	Skipped      int           `json:"skipped"`
	Created      int           `json:"created"`
	Updated      int           `json:"updated"`
	Duration     time.Duration `json:"duration"`
}

type Job struct {
	region  string
	fetcher Fetcher
	archive Archiver
	store   Store
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

type Option func(*Job)

// WithLocker adds a distributed run lock on top of the in-process one.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(j *Job) {
		j.locker = l
		if ttl > 0 {
			j.lockTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

func NewJob(region string, fetcher Fetcher, archive Archiver, store Store, opts ...Option) *Job {
	j := &Job{
		region:  region,
		fetcher: fetcher,
		archive: archive,
		store:   store,
		lockTTL: 15 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run performs one fetch, archive and upsert cycle. A run that overlaps
// another run of the same job, in this process or any process sharing the
// locker, fails fast with ErrRunInProgress.
func (j *Job) Run(ctx context.Context) (*RunReport, error) {
	if !j.mu.TryLock() {
		metrics.IngestionRuns.WithLabelValues("skipped").Inc()
		return nil, ErrRunInProgress
	}
	defer j.mu.Unlock()

	release, err := j.acquire(ctx)
	if err != nil {
		metrics.IngestionRuns.WithLabelValues("skipped").Inc()
		return nil, err
	}
	defer release()

	start := j.now()
	report := &RunReport{RunID: uuid.New().String(), Region: j.region}
	log := logger.GetLogger().With(zap.String("run_id", report.RunID), zap.String("region", j.region))

	log.Info("Ingestion run started")

	payload, err := j.fetcher.FetchRegion(ctx, j.region)
	if err != nil {
		metrics.IngestionRuns.WithLabelValues("fetch_failed").Inc()
		log.Error("Upstream fetch failed", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch upstream data: %w", err)
	}

	records, err := snapshot.DecodeRecords(payload)
	if err != nil {
		metrics.IngestionRuns.WithLabelValues("fetch_failed").Inc()
		log.Error("Upstream payload unreadable", zap.Error(err))
		return nil, fmt.Errorf("failed to decode upstream payload: %w", err)
	}

	report.Checksum = utils.HashBytes(payload)
	report.SnapshotPath, err = j.archive.Write(ctx, start, payload)
	if err != nil {
		metrics.IngestionRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to archive snapshot: %w", err)
	}

	report.Seen = len(records)
	err = j.store.WithTx(ctx, func(tx *sqlstore.Tx) error {
		return j.persist(ctx, tx, records, report, log)
	})
	if err != nil {
		metrics.IngestionRuns.WithLabelValues("failed").Inc()
		log.Error("Ingestion run rolled back", zap.Error(err), zap.String("snapshot", report.SnapshotPath))
		return nil, fmt.Errorf("failed to persist records: %w", err)
	}

	report.Duration = j.now().Sub(start)
	metrics.IngestionRuns.WithLabelValues("succeeded").Inc()
	metrics.IngestionDuration.Observe(report.Duration.Seconds())
	metrics.IngestionRecords.WithLabelValues("created").Add(float64(report.Created))
	metrics.IngestionRecords.WithLabelValues("updated").Add(float64(report.Updated))
	metrics.IngestionRecords.WithLabelValues("skipped").Add(float64(report.Skipped))

	log.Info("Ingestion run finished",
		zap.String("snapshot", report.SnapshotPath),
		zap.String("checksum", report.Checksum),
		zap.Int("seen", report.Seen),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration),
	)

	return report, nil
}

func (j *Job) persist(ctx context.Context, tx *sqlstore.Tx, records []snapshot.Record, report *RunReport, log *zap.Logger) error {
	at := j.now()
	districtIDs := make(map[string]int64)

	for i, rec := range records {
		name := rec.District()
		row, err := validate(rec, name)
		if err != nil {
			report.Skipped++
			log.Warn("Skipping record", zap.Int("index", i), zap.String("district", name), zap.Error(err))
			continue
		}

		districtID, seen := districtIDs[name]
		if !seen {
			districtID, err = tx.EnsureDistrict(ctx, j.region, name, at)
			if err != nil {
				return err
			}
			districtIDs[name] = districtID
		}

		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode raw record %d: %w", i, err)
		}

		res, err := tx.UpsertMonthlyMetric(ctx, &models.MonthlyMetric{
			DistrictID:        districtID,
			Year:              row.Year,
			Month:             row.Month,
			PersonsBenefitted: row.Persons,
			PersonDays:        row.PersonDays,
			WagesPaid:         row.Wages,
			HouseholdsWorked:  row.Households,
			SourceDate:        at,
			RawJSON:           raw,
		})
		if err != nil {
			return err
		}

		if res == models.Created {
			report.Created++
		} else {
			report.Updated++
		}
	}

	return nil
}

var (
	errNoDistrict   = errors.New("missing district name")
	errInvalidYear  = errors.New("missing or invalid year")
	errInvalidMonth = errors.New("missing or invalid month")
)

func validate(rec snapshot.Record, name string) (snapshot.Row, error) {
	if name == "" {
		return snapshot.Row{}, errNoDistrict
	}
	row, err := rec.Normalize()
	if err != nil {
		return row, err
	}
	if row.Year <= 0 {
		return row, errInvalidYear
	}
	if row.Month < 1 || row.Month > 12 {
		return row, errInvalidMonth
	}
	return row, nil
}

func (j *Job) acquire(ctx context.Context) (func(), error) {
	if j.locker == nil {
		return func() {}, nil
	}

	token, ok, err := j.locker.TryLock(ctx, lockKey, j.lockTTL)
	if err != nil {
		// Fall back to the in-process lock only.
		logger.Warn("Distributed run lock unavailable", zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := j.locker.Unlock(unlockCtx, lockKey, token); err != nil {
			logger.Warn("Failed to release run lock", zap.Error(err))
		}
	}, nil
}
