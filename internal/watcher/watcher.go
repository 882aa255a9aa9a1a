package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dubber/internal/logging"
	"dubber/internal/queue"
)

// Submitter accepts URLs for processing. Implemented by workflow.Manager.
type Submitter interface {
	Submit(ctx context.Context, url string) (*queue.Job, bool, error)
}

// Watcher submits URLs dropped into an inbox directory as .url files. Each
// file may carry one URL per line; files are deleted once every line has
// been handed to the queue.
type Watcher struct {
	dir       string
	submitter Submitter
	logger    *slog.Logger

	// settleDelay gives writers a moment to finish before the file is read.
	settleDelay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an inbox watcher. The directory is created on Start.
func New(dir string, submitter Submitter, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		dir:         dir,
		submitter:   submitter,
		logger:      logging.NewComponentLogger(logger, "inbox-watcher"),
		settleDelay: 200 * time.Millisecond,
	}
}

// Start begins watching the inbox. Files already present are processed
// immediately so URLs dropped while the daemon was down are not lost.
func (w *Watcher) Start(ctx context.Context) error {
	if strings.TrimSpace(w.dir) == "" {
		return errors.New("inbox directory not configured")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fsw.Close()
		w.scanExisting(runCtx)
		w.run(runCtx, fsw)
	}()

	w.logger.Info("watching inbox", logging.String("dir", w.dir))
	return nil
}

// Stop terminates the watcher and waits for in-flight submissions.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isURLFile(event.Name) {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.settleDelay):
			}
			w.processFile(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox scan failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isURLFile(entry.Name()) {
			continue
		}
		w.processFile(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("read inbox file failed",
				logging.String("file", path),
				logging.Error(err),
			)
		}
		return
	}

	submitted := 0
	failed := 0
	for _, line := range strings.Split(string(data), "\n") {
		url := strings.TrimSpace(line)
		if url == "" || strings.HasPrefix(url, "#") {
			continue
		}
		job, created, err := w.submitter.Submit(ctx, url)
		if err != nil {
			failed++
			w.logger.Warn("inbox submission rejected",
				logging.String("file", filepath.Base(path)),
				logging.String("url", url),
				logging.Error(err),
			)
			continue
		}
		submitted++
		w.logger.Info("inbox submission accepted",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Bool("created", created),
			logging.String("url", url),
		)
	}

	// Keep files whose every line was rejected so the user can inspect them.
	if submitted == 0 && failed > 0 {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("remove inbox file failed",
			logging.String("file", path),
			logging.Error(err),
		)
	}
}

func isURLFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".url")
}
