package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trackit-backend/internal/shared/metrics"
	"trackit-backend/internal/shared/storage/blob"
	"trackit-backend/internal/shared/telemetry"
)

// Sweeper reclaims orphan blobs: resume blobs with no referencing version
// row. Orphans appear when a crash lands between the blob write and the
// row insert, or when a best-effort blob delete fails. Blobs younger than
// GracePeriod are skipped because an in-flight upload writes its blob
// before its row.
type Sweeper struct {
	Repo        Repo
	Store       blob.Store
	GracePeriod time.Duration
	DryRun      bool
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Scanned    int
	Referenced int
	Deleted    []string
	Skipped    []string
	Failed     []string
}

// Run performs a single reconciliation pass.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	report := SweepReport{}

	paths, err := s.Repo.ListStoragePaths(ctx)
	if err != nil {
		return report, fmt.Errorf("list storage paths: %w", err)
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	infos, err := s.Store.List(ctx, resumeKeyPrefix)
	if err != nil {
		return report, fmt.Errorf("list blobs: %w", err)
	}

	cutoff := time.Now().Add(-s.GracePeriod)
	for _, info := range infos {
		report.Scanned++
		key := strings.TrimPrefix(info.Key, "/")
		if _, ok := referenced[key]; ok {
			report.Referenced++
			continue
		}
		if info.ModTime.After(cutoff) {
			report.Skipped = append(report.Skipped, key)
			continue
		}
		if s.DryRun {
			report.Deleted = append(report.Deleted, key)
			continue
		}
		if err := s.Store.Delete(ctx, key); err != nil {
			telemetry.Warn("sweep.delete_failed", map[string]any{
				"storage_path": key,
				"error":        err.Error(),
			})
			report.Failed = append(report.Failed, key)
			continue
		}
		report.Deleted = append(report.Deleted, key)
	}

	if !s.DryRun {
		metrics.AddSweepDeleted(len(report.Deleted))
	}
	telemetry.Info("sweep.complete", map[string]any{
		"scanned":    report.Scanned,
		"referenced": report.Referenced,
		"deleted":    len(report.Deleted),
		"skipped":    len(report.Skipped),
		"failed":     len(report.Failed),
		"dry_run":    s.DryRun,
	})
	return report, nil
}
