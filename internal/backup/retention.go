package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// dirLockName is the lock file guarding the backup directory. Both
// backup creation and retention sweeps hold it: a sweep deleting an
// in-progress archive, or the base of an incremental mid-diff, would
// leave the directory inconsistent.
const dirLockName = ".backups.lock"

// lockDir acquires the backup directory lock, retrying until the
// context expires. The caller must Unlock the returned lock.
func (s *Service) lockDir(ctx context.Context) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(s.cfg.Dir, dirLockName))
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring backup directory lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("backup directory lock unavailable")
	}
	return lock, nil
}

// RetentionResult reports one retention sweep.
type RetentionResult struct {
	Examined int      `json:"examined"`
	Removed  []string `json:"removed,omitempty"`
}

// ApplyRetention removes old backups per the configured policy:
// backups older than RetentionDays are removed, and within each
// instance only the newest RetentionCount completed backups are kept.
// A zero value disables the corresponding rule. Failed backups older
// than RetentionDays are always swept.
//
// The sweep holds the directory lock for the whole pass, so it cannot
// run while a backup is being created.
func (s *Service) ApplyRetention(ctx context.Context) (RetentionResult, error) {
	lock, err := s.lockDir(ctx)
	if err != nil {
		return RetentionResult{}, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release backup directory lock", "error", err)
		}
	}()

	backups, err := s.List("")
	if err != nil {
		return RetentionResult{}, err
	}

	result := RetentionResult{Examined: len(backups)}
	now := s.now().UTC()
	remove := make(map[string]bool)

	if s.cfg.RetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -s.cfg.RetentionDays)
		for _, meta := range backups {
			if meta.CreatedAt.Before(cutoff) {
				remove[meta.ID] = true
			}
		}
	}

	if s.cfg.RetentionCount > 0 {
		// List is newest first, so count down per instance.
		kept := make(map[string]int)
		for _, meta := range backups {
			if meta.Status != StatusCompleted || remove[meta.ID] {
				continue
			}
			kept[meta.InstanceName]++
			if kept[meta.InstanceName] > s.cfg.RetentionCount {
				remove[meta.ID] = true
			}
		}
	}

	for _, meta := range backups {
		if !remove[meta.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.Delete(meta.ID); err != nil {
			s.logger.Warn("retention failed to delete backup", "id", meta.ID, "error", err)
			continue
		}
		result.Removed = append(result.Removed, meta.ID)
	}

	if len(result.Removed) > 0 {
		s.logger.Info("retention sweep removed backups",
			"examined", result.Examined, "removed", len(result.Removed))
	}
	return result, nil
}
