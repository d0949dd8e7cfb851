// Package ingest watches an S3 bucket for dropped spot files and runs them
// through the validation pipeline, so bulk exports can bypass the upload UI.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sioma/spot-ingest/internal/config"
	"github.com/sioma/spot-ingest/internal/filereader"
	"github.com/sioma/spot-ingest/internal/sioma"
	"github.com/sioma/spot-ingest/internal/spots"
	"github.com/sioma/spot-ingest/internal/storage"
)

const processedPrefix = "processed/"

// ScanLock keeps bucket scans single-holder across service replicas.
type ScanLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// S3API is the subset of the S3 client the watcher uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Watcher polls the bucket on an interval, validates every new spot file
// against the configured finca's catalog, records the outcome, and moves
// the object under processed/ so it is seen once.
type Watcher struct {
	s3Client S3API
	bucket   string
	fincaID  string
	catalog  sioma.CatalogSource
	store    *storage.Store // nil means no run log
	opts     spots.Options
	interval time.Duration
	lock     ScanLock // nil means single-replica deployment

	ctx       context.Context
	cancel    context.CancelFunc
	running   int32
	healthy   atomic.Bool
	lastRunAt atomic.Pointer[time.Time]
}

// NewWatcher builds a bucket watcher from config. The store may be nil.
func NewWatcher(cfg config.IngestConfig, catalog sioma.CatalogSource, store *storage.Store, opts spots.Options) (*Watcher, error) {
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.AWSProfile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	w := &Watcher{
		s3Client: s3.NewFromConfig(awsCfg),
		bucket:   cfg.S3Bucket,
		fincaID:  cfg.FincaID,
		catalog:  catalog,
		store:    store,
		opts:     opts,
		interval: cfg.Interval(),
	}
	w.healthy.Store(true)
	return w, nil
}

// SetLock installs a cross-replica scan lock. Call before Start.
func (w *Watcher) SetLock(lock ScanLock) { w.lock = lock }

// Start launches the polling loop.
func (w *Watcher) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	go func() {
		w.runOnce()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runOnce()
			}
		}
	}()
}

// Stop cancels the polling loop.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

// IsHealthy reports whether the last cycle completed without bucket errors.
func (w *Watcher) IsHealthy() bool { return w.healthy.Load() }

// IsRunning reports whether a cycle is in flight.
func (w *Watcher) IsRunning() bool { return atomic.LoadInt32(&w.running) == 1 }

// LastRunAt returns when the last cycle started (zero before the first).
func (w *Watcher) LastRunAt() time.Time {
	if t := w.lastRunAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Trigger runs one cycle immediately, outside the ticker.
func (w *Watcher) Trigger() {
	go w.runOnce()
}

func (w *Watcher) runOnce() {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&w.running, 0)

	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if w.lock != nil {
		ok, err := w.lock.TryAcquire(ctx)
		if err != nil {
			log.Printf("[ingest] scan lock unavailable, proceeding unlocked: %v", err)
		} else if !ok {
			return
		} else {
			defer func() {
				if err := w.lock.Release(ctx); err != nil {
					log.Printf("[ingest] release scan lock: %v", err)
				}
			}()
		}
	}

	now := time.Now()
	w.lastRunAt.Store(&now)
	w.healthy.Store(true)

	keys, err := w.pendingKeys(ctx)
	if err != nil {
		log.Printf("[ingest] list bucket %s: %v", w.bucket, err)
		w.healthy.Store(false)
		return
	}
	if len(keys) == 0 {
		return
	}

	log.Printf("[ingest] processing %d new files", len(keys))

	lotes, err := w.catalog.Lotes(ctx, w.fincaID)
	if err != nil {
		log.Printf("[ingest] fetch lote catalog for finca %s: %v", w.fincaID, err)
		w.healthy.Store(false)
		return
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		if err := w.processObject(ctx, key, lotes); err != nil {
			log.Printf("[ingest] process %s: %v", key, err)
		}
	}
}

// pendingKeys lists spot files not yet moved under processed/.
func (w *Watcher) pendingKeys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(w.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(w.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if obj.Size == nil || *obj.Size == 0 {
				continue
			}
			if EligibleKey(key) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// EligibleKey reports whether a bucket object is a spot file the watcher
// should pick up.
func EligibleKey(key string) bool {
	if strings.HasPrefix(key, processedPrefix) {
		return false
	}
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".xlsx")
}

func (w *Watcher) processObject(ctx context.Context, key string, lotes []spots.Lote) error {
	obj, err := w.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object: %w", err)
	}
	data, err := io.ReadAll(obj.Body)
	obj.Body.Close()
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}

	rows, err := filereader.ReadSpotFile(data, key)
	if err != nil {
		// Unparseable files still get moved aside so they don't wedge
		// the queue.
		log.Printf("[ingest] unparseable file %s: %v", key, err)
		return w.archive(ctx, key)
	}

	result := spots.Validate(rows, lotes, w.opts)
	log.Printf("[ingest] validated %s: total=%d valid=%d removed=%d duplicates=%d isValid=%v",
		key, result.Stats.TotalRows, result.Stats.ValidRows,
		result.Stats.CleaningStats.RowsRemoved,
		result.Stats.CleaningStats.DuplicatesRemoved, result.IsValid)

	if w.store != nil {
		run := storage.RunFromResult(key, w.fincaID, "s3", result)
		if err := w.store.RecordRun(ctx, run); err != nil {
			log.Printf("[ingest] record run for %s: %v", key, err)
		}
	}

	return w.archive(ctx, key)
}

// archive moves the object under processed/ so the next cycle skips it.
func (w *Watcher) archive(ctx context.Context, key string) error {
	dest := processedPrefix + key
	if _, err := w.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(w.bucket),
		CopySource: aws.String(w.bucket + "/" + key),
		Key:        aws.String(dest),
	}); err != nil {
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	if _, err := w.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
	}); err != nil {
		log.Printf("[ingest] delete original %s: %v", key, err)
	}
	return nil
}
