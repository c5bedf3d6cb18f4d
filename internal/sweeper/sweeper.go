// Package sweeper reclaims locally stored files past their retention window
// and reconciles the metadata left behind.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Reconciler removes the metadata record for a backend path whose bytes are
// already gone. An already-missing record counts as success.
type Reconciler interface {
	DeleteByPath(ctx context.Context, path string) error
}

// Sweeper periodically scans the local upload directory and deletes files
// older than the retention window, physical bytes first, metadata second.
// It runs with system authority: no ACL applies.
type Sweeper struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	recon     Reconciler
}

// New creates a Sweeper over dir that reclaims files older than retention,
// sweeping once per interval.
func New(dir string, retention, interval time.Duration, recon Reconciler) *Sweeper {
	return &Sweeper{dir: dir, retention: retention, interval: interval, recon: recon}
}

// Run sweeps on a ticker until ctx is cancelled. It never runs on the
// request path and a failed sweep only logs; the next tick tries again.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("sweeper: reclaiming files older than %s every %s", s.retention, s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
			}
		}
	}
}

// Sweep performs one reclamation pass. A single bad entry is logged and
// skipped, never aborting the rest of the pass, so running a sweep twice
// with no new uploads in between converges to the same state.
func (s *Sweeper) Sweep(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list upload dir: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Printf("sweeper: stat %s: %v", entry.Name(), err)
			continue
		}
		if now.Sub(info.ModTime()) <= s.retention {
			continue
		}

		name := entry.Name()
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			log.Printf("sweeper: remove %s: %v", name, err)
			continue
		}
		// the record may already be gone if a user delete raced us;
		// DeleteByPath treats that as success
		if err := s.recon.DeleteByPath(ctx, name); err != nil {
			log.Printf("sweeper: reconcile metadata for %s: %v", name, err)
			continue
		}
		log.Printf("sweeper: reclaimed %s", name)
	}
	return nil
}
