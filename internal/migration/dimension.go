package migration

import (
	"context"
	"strings"
	"sync"
	"time"

	"memstore-backup/internal/backup"
	"memstore-backup/internal/checksum"
	"memstore-backup/internal/logging"
	"memstore-backup/internal/store"
)

const (
	// DefaultBatchSize bounds how many points one scroll page holds
	DefaultBatchSize = 500

	// DefaultMaxConcurrency bounds in-flight batch writes
	DefaultMaxConcurrency = 4

	// DefaultIdempotencyPause separates the two dry runs of an
	// idempotency check.
	DefaultIdempotencyPause = 250 * time.Millisecond

	stagingSuffix = "__migrating"

	sampleSize = 10
)

// DimensionConfig describes one dimension migration
type DimensionConfig struct {
	// Collection is the vector collection to migrate
	Collection string

	// TargetDimension is the vector length after migration. Longer
	// vectors are truncated, shorter ones zero padded.
	TargetDimension int

	// BatchSize bounds how many points are read and written per batch
	BatchSize int

	// MaxConcurrency bounds simultaneously in-flight batch writes
	MaxConcurrency int

	// DryRun runs the full migration against a write-intercepting
	// overlay without touching the backend.
	DryRun bool

	// Filter limits the migration to points it accepts. Nil migrates
	// every point. Filtered-out points keep their original vectors and
	// are dropped from the migrated collection only if they no longer
	// fit the target dimension.
	Filter func(store.Point) bool

	// IdempotencyPause is the wait between the two dry runs of
	// CheckIdempotency. Zero means DefaultIdempotencyPause.
	IdempotencyPause time.Duration
}

// SetDefaults fills in zero-valued tuning knobs
func (dc *DimensionConfig) SetDefaults() {
	if dc.BatchSize <= 0 {
		dc.BatchSize = DefaultBatchSize
	}
	if dc.MaxConcurrency <= 0 {
		dc.MaxConcurrency = DefaultMaxConcurrency
	}
	if dc.IdempotencyPause <= 0 {
		dc.IdempotencyPause = DefaultIdempotencyPause
	}
}

// Validate checks the configuration before any backend I/O
func (dc *DimensionConfig) Validate() error {
	var errors backup.ValidationErrors

	if dc.Collection == "" {
		errors.Add("collection", "collection name is required", dc.Collection)
	}
	if strings.HasSuffix(dc.Collection, stagingSuffix) {
		errors.Add("collection", "collection name collides with the staging suffix", dc.Collection)
	}
	if dc.TargetDimension <= 0 {
		errors.Add("target_dimension", "target dimension must be positive", dc.TargetDimension)
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// DimensionMigrator rewrites a vector collection to a new dimensionality.
// The migration itself is not trusted to verify its own correctness: before
// and after fingerprints come from the checksum engine, and CheckIdempotency
// validates the migration design by comparing two independent dry runs.
type DimensionMigrator struct {
	client store.VectorClient
	engine *checksum.Engine
	logger *logging.Logger
}

// NewDimensionMigrator creates a migrator over the given vector backend
func NewDimensionMigrator(client store.VectorClient, engine *checksum.Engine, logger *logging.Logger) *DimensionMigrator {
	if engine == nil {
		engine = checksum.NewEngine()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &DimensionMigrator{
		client: client,
		engine: engine,
		logger: logger,
	}
}

// Run executes the migration. Live and dry-run mode share one code path:
// in dry-run the client is wrapped in a write-intercepting overlay, so the
// after checksum reflects the state the migration would produce.
//
// The collection is first copied, batch by batch, into a staging collection
// with the target dimension. Only when every batch succeeded is the source
// swapped for the staging copy. A failed or cancelled run therefore never
// leaves the source half migrated.
func (m *DimensionMigrator) Run(ctx context.Context, config DimensionConfig) (*Result, error) {
	start := time.Now()

	if err := config.Validate(); err != nil {
		return nil, backup.NewConfigurationError("invalid migration configuration", err)
	}
	config.SetDefaults()

	client := m.client
	if config.DryRun {
		client = NewDryRunVectorClient(m.client)
	}

	info, err := client.GetCollectionInfo(ctx, config.Collection)
	if err != nil {
		return nil, backup.NewConnectivityError("failed to read collection "+config.Collection, err).
			WithComponent("vector_store")
	}

	result := &Result{
		JobID:      backup.GenerateIDWithPrefix("migration"),
		Collection: config.Collection,
		SourceDim:  info.Dimension,
		TargetDim:  config.TargetDimension,
		DryRun:     config.DryRun,
		StartedAt:  start.UTC(),
	}

	before, err := m.fingerprint(ctx, client, config.Collection)
	if err != nil {
		return nil, err
	}
	result.BeforeChecksum = before

	// Re-running against an already migrated collection is a no-op
	if info.Dimension == config.TargetDimension {
		result.AlreadyMigrated = true
		result.Status = JobStatusCompleted
		result.AfterChecksum = before
		result.Duration = time.Since(start)
		m.logger.LogMigrationRun(result.JobID, config.Collection, 0, 0, config.DryRun, result.Duration, nil)
		return result, nil
	}

	job := NewJob(result.JobID, config, info.Dimension)
	job.SetStatus(JobStatusRunning)

	runErr := m.migrate(ctx, client, job, info)

	result.Status = job.Status()
	result.Processed = job.Processed()
	result.Succeeded = job.Succeeded()
	result.Failed = job.Failed()
	result.Errors = job.Errors()

	if runErr == nil {
		after, err := m.fingerprint(ctx, client, config.Collection)
		if err != nil {
			return result, err
		}
		result.AfterChecksum = after
	}

	result.Duration = time.Since(start)
	m.logger.LogMigrationRun(result.JobID, config.Collection, result.Succeeded, result.Failed, config.DryRun, result.Duration, runErr)

	return result, runErr
}

// CheckIdempotency runs the migration twice in dry-run mode, with a pause
// between runs, and asserts the two after checksums are byte-identical.
// Divergence means the migration design itself is broken, which is reported
// as an idempotency violation rather than a run failure.
func (m *DimensionMigrator) CheckIdempotency(ctx context.Context, config DimensionConfig) (*IdempotencyCheck, error) {
	config.SetDefaults()
	config.DryRun = true

	first, err := m.Run(ctx, config)
	if err != nil {
		return nil, err
	}

	select {
	case <-time.After(config.IdempotencyPause):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	second, err := m.Run(ctx, config)
	if err != nil {
		return nil, err
	}

	check := &IdempotencyCheck{
		FirstRun:   first,
		SecondRun:  second,
		Consistent: first.AfterChecksum == second.AfterChecksum,
	}

	if !check.Consistent {
		return check, backup.NewIdempotencyViolationError("dry runs produced diverging after checksums", nil).
			WithComponent("vector_store").
			WithContext("first_checksum", first.AfterChecksum).
			WithContext("second_checksum", second.AfterChecksum)
	}

	return check, nil
}

func (m *DimensionMigrator) migrate(ctx context.Context, client store.VectorClient, job *Job, info *store.CollectionInfo) error {
	staging := job.Collection + stagingSuffix

	// Drop staging left behind by an interrupted run
	if exists, err := collectionExists(ctx, client, staging); err != nil {
		return backup.NewConnectivityError("failed to list collections", err).WithComponent("vector_store")
	} else if exists {
		if err := client.DeleteCollection(ctx, staging); err != nil {
			return backup.NewStorageError("failed to drop stale staging collection", err)
		}
	}

	stagingInfo := *info
	stagingInfo.Name = staging
	stagingInfo.Dimension = job.TargetDim
	if err := client.CreateCollection(ctx, stagingInfo); err != nil {
		return backup.NewStorageError("failed to create staging collection", err)
	}

	if err := m.copyTransformed(ctx, client, job, staging); err != nil {
		if ctx.Err() != nil {
			job.SetStatus(JobStatusCancelled)
		} else {
			job.SetStatus(JobStatusFailed)
		}
		m.dropCollection(context.WithoutCancel(ctx), client, staging)
		return err
	}

	switch {
	case job.Failed() > 0 && job.Succeeded() == 0:
		job.SetStatus(JobStatusFailed)
		m.dropCollection(ctx, client, staging)
		return backup.NewPartialFailureError("every migration batch failed", nil).
			WithComponent("vector_store").
			WithContext("errors", job.Errors())
	case job.Failed() > 0:
		job.SetStatus(JobStatusPartial)
		m.dropCollection(ctx, client, staging)
		return backup.NewPartialFailureError("some migration batches failed", nil).
			WithComponent("vector_store").
			WithContext("errors", job.Errors())
	}

	if err := m.promote(ctx, client, job, staging); err != nil {
		job.SetStatus(JobStatusFailed)
		return err
	}

	job.SetStatus(JobStatusCompleted)
	return nil
}

// copyTransformed pages through the source collection and writes resized
// points into staging. Batch writes run concurrently, bounded by a counting
// semaphore; each batch records its own success or failure so one failing
// batch never cancels its siblings. A cancelled context stops the paging
// loop between batches.
func (m *DimensionMigrator) copyTransformed(ctx context.Context, client store.VectorClient, job *Job, staging string) error {
	semaphore := make(chan struct{}, job.MaxConcurrency)
	var wg sync.WaitGroup

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return backup.NewPartialFailureError("migration cancelled", err).WithComponent("vector_store")
		}

		points, next, err := client.ScrollPoints(ctx, job.Collection, cursor, job.BatchSize)
		if err != nil {
			wg.Wait()
			return backup.NewConnectivityError("failed to scroll collection "+job.Collection, err).
				WithComponent("vector_store")
		}

		batch := make([]store.Point, 0, len(points))
		for _, point := range points {
			if job.Filter != nil && !job.Filter(point) {
				continue
			}
			point.Vector = resizeVector(point.Vector, job.TargetDim)
			batch = append(batch, point)
		}

		if len(batch) > 0 {
			wg.Add(1)
			semaphore <- struct{}{}
			go func(batch []store.Point) {
				defer wg.Done()
				defer func() { <-semaphore }()

				if err := client.UpsertPoints(ctx, staging, batch); err != nil {
					job.RecordFailure(int64(len(batch)), err)
					return
				}
				job.RecordSuccess(int64(len(batch)))
			}(batch)
		}

		if next == "" {
			break
		}
		cursor = next
	}

	wg.Wait()
	return nil
}

// promote swaps the migrated staging collection in for the source
func (m *DimensionMigrator) promote(ctx context.Context, client store.VectorClient, job *Job, staging string) error {
	if err := client.DeleteCollection(ctx, job.Collection); err != nil {
		return backup.NewStorageError("failed to drop source collection "+job.Collection, err)
	}

	target := store.CollectionInfo{
		Name:      job.Collection,
		Dimension: job.TargetDim,
	}
	if info, err := client.GetCollectionInfo(ctx, staging); err == nil {
		target.Distance = info.Distance
	}
	if err := client.CreateCollection(ctx, target); err != nil {
		return backup.NewStorageError("failed to recreate collection "+job.Collection, err)
	}

	cursor := ""
	for {
		points, next, err := client.ScrollPoints(ctx, staging, cursor, job.BatchSize)
		if err != nil {
			return backup.NewStorageError("failed to read staging collection", err)
		}
		if len(points) > 0 {
			if err := client.UpsertPoints(ctx, job.Collection, points); err != nil {
				return backup.NewStorageError("failed to write migrated points", err)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if err := client.DeleteCollection(ctx, staging); err != nil {
		return backup.NewStorageError("failed to drop staging collection", err)
	}

	return nil
}

func (m *DimensionMigrator) fingerprint(ctx context.Context, client store.VectorClient, collection string) (string, error) {
	info, err := client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return "", backup.NewConnectivityError("failed to read collection "+collection, err).
			WithComponent("vector_store")
	}

	points, _, err := client.ScrollPoints(ctx, collection, "", sampleSize)
	if err != nil {
		return "", backup.NewConnectivityError("failed to sample collection "+collection, err).
			WithComponent("vector_store")
	}

	sampleLengths := make([]int, 0, len(points))
	for _, point := range points {
		sampleLengths = append(sampleLengths, len(point.Vector))
	}

	return m.engine.VectorFingerprint([]checksum.VectorCollectionState{{
		Name:          info.Name,
		PointCount:    info.PointCount,
		Dimension:     info.Dimension,
		SampleLengths: sampleLengths,
	}})
}

func (m *DimensionMigrator) dropCollection(ctx context.Context, client store.VectorClient, name string) {
	if err := client.DeleteCollection(ctx, name); err != nil {
		m.logger.WithFields(map[string]interface{}{
			"collection": name,
			"error":      err.Error(),
		}).Warn("Failed to clean up staging collection")
	}
}

// resizeVector truncates or zero pads a vector to dim
func resizeVector(vector []float32, dim int) []float32 {
	resized := make([]float32, dim)
	copy(resized, vector)
	return resized
}

func collectionExists(ctx context.Context, client store.VectorClient, name string) (bool, error) {
	names, err := client.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range names {
		if existing == name {
			return true, nil
		}
	}
	return false, nil
}
