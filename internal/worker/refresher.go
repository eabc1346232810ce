// Package worker runs background jobs against the intelligence service.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/leadintel/internal/config"
	"github.com/ignite/leadintel/internal/domain"
	"github.com/ignite/leadintel/internal/pkg/logger"
	"github.com/ignite/leadintel/internal/service/intelligence"
)

// ProfileService is the part of intelligence.Service the refresher drives.
type ProfileService interface {
	StaleSubjects(ctx context.Context, limit int) ([]domain.IntelligenceProfile, error)
	Analyze(ctx context.Context, orgID string, req intelligence.AnalyzeRequest) (*domain.ProfileView, error)
	MarkOrphaned(ctx context.Context, profileID string) error
}

// Refresher recomputes profiles that have aged out of the freshness window.
// It goes through Service.Analyze, so a refresh takes the same per-subject
// lock and writes the same rows as a request would.
type Refresher struct {
	svc          ProfileService
	workerID     string
	pollInterval time.Duration
	batchSize    int
	log          *logger.Logger

	// Stats
	totalProcessed int64
	totalErrors    int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewRefresher creates a refresher from the worker settings.
func NewRefresher(svc ProfileService, cfg config.WorkerConfig) *Refresher {
	interval := cfg.Interval()
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	id := uuid.NewString()
	return &Refresher{
		svc:          svc,
		workerID:     id,
		pollInterval: interval,
		batchSize:    batch,
		log:          logger.With("component", "refresher", "worker_id", id),
	}
}

// Start runs one pass immediately and then one per interval until Stop.
func (r *Refresher) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.mu.Unlock()

	r.log.Info("starting", "interval", r.pollInterval.String(), "batch_size", r.batchSize)

	r.wg.Add(1)
	go r.loop()
}

// Stop cancels the in-flight pass and waits for it to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	processed, failed := r.Stats()
	r.log.Info("stopped", "processed", processed, "errors", failed)
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	r.RunOnce(r.ctx)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(r.ctx)
		}
	}
}

// RunOnce refreshes one batch of stale profiles and reports how many were
// recomputed and how many failed. Subjects already being analyzed
// elsewhere are skipped without counting as failures. Profiles whose
// subject no longer exists are marked orphaned so later batches move past
// them.
func (r *Refresher) RunOnce(ctx context.Context) (refreshed, failed int) {
	start := time.Now()

	profiles, err := r.svc.StaleSubjects(ctx, r.batchSize)
	if err != nil {
		r.log.Error("list stale profiles failed", "error", err)
		atomic.AddInt64(&r.totalErrors, 1)
		return 0, 1
	}

	for i := range profiles {
		if ctx.Err() != nil {
			break
		}
		p := &profiles[i]
		_, err := r.svc.Analyze(ctx, p.OrganizationID, intelligence.AnalyzeRequest{Subject: refreshRef(p)})
		switch {
		case err == nil:
			refreshed++
		case intelligence.KindOf(err) == intelligence.KindConflict:
			r.log.Debug("profile busy, skipping", "profile_id", p.ID)
		case intelligence.KindOf(err) == intelligence.KindNotFound:
			if err := r.svc.MarkOrphaned(ctx, p.ID); err != nil {
				failed++
				r.log.Warn("mark orphaned failed", "profile_id", p.ID, "error", err)
			} else {
				r.log.Info("subject gone, profile orphaned", "profile_id", p.ID, "org_id", p.OrganizationID)
			}
		case errors.Is(err, context.Canceled):
			r.log.Debug("refresh cancelled", "profile_id", p.ID)
		default:
			failed++
			r.log.Warn("refresh failed", "profile_id", p.ID, "org_id", p.OrganizationID, "error", err)
		}
	}

	atomic.AddInt64(&r.totalProcessed, int64(refreshed))
	atomic.AddInt64(&r.totalErrors, int64(failed))
	if len(profiles) > 0 {
		r.log.Info("pass complete", "stale", len(profiles), "refreshed", refreshed, "failed", failed,
			"duration", time.Since(start).Round(time.Millisecond).String())
	}
	return refreshed, failed
}

// Stats returns the totals since the refresher was created.
func (r *Refresher) Stats() (processed, failed int64) {
	return atomic.LoadInt64(&r.totalProcessed), atomic.LoadInt64(&r.totalErrors)
}

// refreshRef names the subject the way a caller would: a lead profile by
// its lead alone, since Analyze rejects a lead and contact together.
func refreshRef(p *domain.IntelligenceProfile) domain.SubjectRef {
	if p.LeadID != "" {
		return domain.SubjectRef{LeadID: p.LeadID}
	}
	return domain.SubjectRef{ContactID: p.ContactID}
}
