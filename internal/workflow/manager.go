package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dubber/internal/config"
	"dubber/internal/logging"
	"dubber/internal/notifications"
	"dubber/internal/queue"
	"dubber/internal/stage"
)

// Manager drives jobs through extraction, chunking, segment processing, and
// merging. One intake goroutine owns the pending-to-processing transitions,
// a pool of segment workers races for translate and synthesize claims, and a
// merge goroutine finishes jobs whose segments are all done.
type Manager struct {
	cfg         *config.Config
	store       *queue.Store
	logger      *slog.Logger
	notifier    notifications.Service
	extractor   stage.Extractor
	translator  stage.Translator
	synthesizer stage.Synthesizer

	workers            int
	pollInterval       time.Duration
	errorRetryInterval time.Duration
	staleClaimAge      time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// Stages bundles the pipeline implementations handed to the manager.
type Stages struct {
	Extractor   stage.Extractor
	Translator  stage.Translator
	Synthesizer stage.Synthesizer
}

// NewManager constructs a workflow manager with the default notifier.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, stages Stages) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, stages, notifications.NewService(cfg.Notifications))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, stages Stages, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}
	errRetry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if errRetry <= 0 {
		errRetry = poll
	}
	staleAge := time.Duration(cfg.Workflow.StaleClaimSeconds) * time.Second
	if staleAge <= 0 {
		staleAge = 15 * time.Minute
	}
	return &Manager{
		cfg:                cfg,
		store:              store,
		logger:             logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:           notifier,
		extractor:          stages.Extractor,
		translator:         stages.Translator,
		synthesizer:        stages.Synthesizer,
		workers:            workers,
		pollInterval:       poll,
		errorRetryInterval: errRetry,
		staleClaimAge:      staleAge,
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// LastError returns the most recent background processing error.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Running reports whether background processing is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
