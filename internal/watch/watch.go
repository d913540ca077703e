// Package watch ingests disclosure files dropped into a directory. Every
// .pdf and .txt that appears is run through the plan ingest pipeline once
// its writes settle.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/plans"
)

const defaultSettle = 2 * time.Second

// Watcher feeds dropped disclosure files into the ingest pipeline.
type Watcher struct {
	dir    string
	svc    *plans.Service
	log    *zap.Logger
	settle time.Duration
}

func New(dir string, svc *plans.Service, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{dir: dir, svc: svc, log: log, settle: defaultSettle}
}

// Run watches until the context is canceled. Files already present are
// ingested on start; new files wait out the settle delay so partially
// written drops are not picked up mid-copy.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.log.Info("watching for disclosures", zap.String("dir", w.dir))
	w.ingestExisting(ctx)

	poll := w.settle / 2
	if poll < 50*time.Millisecond {
		poll = 50 * time.Millisecond
	}
	flush := time.NewTicker(poll)
	defer flush.Stop()

	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !ingestable(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-flush.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				w.ingestFile(ctx, path)
			}
		}
	}
}

func (w *Watcher) ingestExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn("scan watch dir failed", zap.String("dir", w.dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !ingestable(e.Name()) {
			continue
		}
		w.ingestFile(ctx, filepath.Join(w.dir, e.Name()))
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("read dropped file failed", zap.String("path", path), zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var res *plans.EFLIngestResult
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		res, err = w.svc.IngestEFLText(ctx, string(data), name)
	} else {
		res, err = w.svc.IngestEFLBytes(ctx, data, name)
	}
	if err != nil {
		w.log.Warn("ingest dropped file failed", zap.String("path", path), zap.Error(err))
		return
	}

	w.log.Info("ingested dropped disclosure",
		zap.String("path", path),
		zap.String("plan_id", res.PlanID),
		zap.String("status", string(res.Classification.Status)))
}

func ingestable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt":
		return true
	}
	return false
}
