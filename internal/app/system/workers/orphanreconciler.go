// internal/app/system/workers/orphanreconciler.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/heard/internal/app/system/auditlog"
	"github.com/dalemusser/heard/internal/app/system/identity"
	"github.com/dalemusser/heard/internal/app/system/metrics"
	"github.com/dalemusser/heard/internal/domain/models"
	"go.uber.org/zap"
)

// Orphans is the queue of credentials whose rollback failed.
type Orphans interface {
	Pending(ctx context.Context, limit int64) ([]models.OrphanedCredential, error)
	MarkAttempt(ctx context.Context, accountID string, cause error) error
	Resolve(ctx context.Context, accountID string) error
}

// OrphanReconciler is a background worker that retries the deletion of
// identity-provider accounts left behind by failed registrations.
type OrphanReconciler struct {
	orphans  Orphans
	idp      identity.Provider
	audit    *auditlog.Logger
	log      *zap.Logger
	interval time.Duration
	batch    int64
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOrphanReconciler creates a new reconciler.
//
// Parameters:
//   - orphans: the orphaned-credential queue
//   - idp: the provider the credentials live in
//   - audit: audit logger (may be nil)
//   - logger: zap logger for logging
//   - interval: how often to sweep the queue (e.g., 1 minute)
func NewOrphanReconciler(orphans Orphans, idp identity.Provider, audit *auditlog.Logger, logger *zap.Logger, interval time.Duration) *OrphanReconciler {
	return &OrphanReconciler{
		orphans:  orphans,
		idp:      idp,
		audit:    audit,
		log:      logger,
		interval: interval,
		batch:    50,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background reconcile loop.
func (w *OrphanReconciler) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("orphan reconciler started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *OrphanReconciler) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("orphan reconciler stopped")
	})
}

func (w *OrphanReconciler) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			w.Reconcile(ctx)
			cancel()
		}
	}
}

// Reconcile makes one pass over the queue and returns how many orphans were
// resolved.
func (w *OrphanReconciler) Reconcile(ctx context.Context) int {
	pending, err := w.orphans.Pending(ctx, w.batch)
	if err != nil {
		w.log.Error("failed to list orphaned credentials", zap.Error(err))
		return 0
	}

	resolved := 0
	for _, o := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := w.idp.DeleteAccount(ctx, o.AccountID); err != nil {
			w.log.Warn("orphaned credential still not deleted",
				zap.String("account_id", o.AccountID),
				zap.Int("attempts", o.Attempts+1),
				zap.Error(err))
			if merr := w.orphans.MarkAttempt(ctx, o.AccountID, err); merr != nil {
				w.log.Error("failed to record reconcile attempt", zap.String("account_id", o.AccountID), zap.Error(merr))
			}
			continue
		}
		if err := w.orphans.Resolve(ctx, o.AccountID); err != nil {
			w.log.Error("failed to resolve orphaned credential", zap.String("account_id", o.AccountID), zap.Error(err))
			continue
		}
		metrics.Compensations.WithLabelValues("reconciled").Inc()
		w.audit.OrphanReconciled(ctx, o.AccountID, o.Attempts+1)
		resolved++
	}

	if resolved > 0 {
		w.log.Info("reconciled orphaned credentials", zap.Int("count", resolved))
	}
	return resolved
}
