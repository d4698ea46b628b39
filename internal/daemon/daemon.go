// Package daemon runs the long-lived stride coach process: it guards the
// data directory with an exclusive lock, serves the CLI over a Unix socket,
// and watches the coach directory for plan file changes.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/stridecoach/stride/internal/coach"
	"github.com/stridecoach/stride/internal/ipc"
	"github.com/stridecoach/stride/internal/llm"
	"github.com/stridecoach/stride/internal/lock"
	"github.com/stridecoach/stride/internal/model"
	"github.com/stridecoach/stride/internal/planfile"
	"github.com/stridecoach/stride/internal/store"
	"github.com/stridecoach/stride/internal/usage"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Daemon is the stride coach daemon process.
type Daemon struct {
	dataDir  string
	config   model.Config
	logLevel LogLevel
	logger   *log.Logger
	logFile  io.Closer

	fileLock *lock.FileLock
	server   *ipc.Server
	watcher  *fsnotify.Watcher

	store    *store.Store
	client   llm.Client
	coach    *coach.Coach
	executor *coach.Executor
	ledger   *usage.Ledger

	started time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	shutdown sync.Once
}

// New creates a Daemon logging to logs/daemon.log inside the data directory.
func New(dataDir string, cfg model.Config) (*Daemon, error) {
	logPath := filepath.Join(dataDir, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}

	return newDaemon(dataDir, cfg, logFile, logFile), nil
}

// newDaemon is the internal constructor for testing.
func newDaemon(dataDir string, cfg model.Config, w io.Writer, closer io.Closer) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	return &Daemon{
		dataDir:  dataDir,
		config:   cfg,
		logLevel: parseLogLevel(cfg.Logging.Level),
		logger:   log.New(w, "", 0),
		logFile:  closer,
		fileLock: lock.New(filepath.Join(dataDir, "locks", "daemon.lock")),
		server:   ipc.NewServer(filepath.Join(dataDir, ipc.SocketName)),
		store:    store.New(dataDir),
		ledger:   usage.NewLedger(filepath.Join(dataDir, "logs", "usage.jsonl"), 0),
		ctx:      gctx,
		cancel:   cancel,
		group:    group,
	}
}

// SetClient overrides the model client. Must be called before Run().
func (d *Daemon) SetClient(c llm.Client) {
	d.client = c
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	if err := os.MkdirAll(filepath.Join(d.dataDir, "locks"), 0755); err != nil {
		return fmt.Errorf("create locks dir: %w", err)
	}
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.started = time.Now()
	d.log(LogLevelInfo, "daemon starting pid=%d data=%s", os.Getpid(), d.dataDir)

	// Model client: chat stays disabled when no API key is configured, but
	// everything file-backed keeps working.
	if d.client == nil {
		key := os.Getenv(d.config.Coach.APIKeyEnv)
		if key == "" {
			d.log(LogLevelWarn, "no API key in $%s; chat and log parsing are disabled", d.config.Coach.APIKeyEnv)
		} else {
			client, err := llm.NewPerplexityClient(key, d.config.Coach.Model)
			if err != nil {
				d.fileLock.Unlock()
				return fmt.Errorf("create model client: %w", err)
			}
			client.SetMaxOutputTokens(d.config.Coach.MaxOutputTokens)
			d.client = client
		}
	}
	d.executor = coach.NewExecutor(d.store, d.logger)
	if d.client != nil {
		d.coach = coach.New(d.store, d.client, d.config.User.ID, d.logger)
		d.coach.SetUsage(d.ledger)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.fileLock.Unlock()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.watcher = watcher

	coachDir := filepath.Join(d.dataDir, coach.CoachDir)
	if err := os.MkdirAll(coachDir, 0755); err != nil {
		d.cleanup()
		return fmt.Errorf("ensure dir %s: %w", coachDir, err)
	}
	if err := watcher.Add(coachDir); err != nil {
		d.cleanup()
		return fmt.Errorf("watch %s: %w", coachDir, err)
	}

	d.registerHandlers()
	if err := d.server.Start(); err != nil {
		d.cleanup()
		return fmt.Errorf("start IPC server: %w", err)
	}
	d.log(LogLevelInfo, "IPC server listening on %s", filepath.Join(d.dataDir, ipc.SocketName))

	d.group.Go(d.watchLoop)
	d.group.Go(d.scanLoop)

	d.rescanPlans()
	d.log(LogLevelInfo, "daemon ready")

	d.waitSignals()
	return nil
}

// rescanPlans re-reads the plan file set and surfaces configuration
// problems. Selection itself happens per request; the scan exists to warn
// early instead of at 6am before a workout.
func (d *Daemon) rescanPlans() {
	names, err := d.store.List(coach.CoachDir)
	if err != nil {
		d.log(LogLevelError, "scan plan directory: %v", err)
		return
	}
	plans := planfile.Parse(names)
	for _, warning := range planfile.Overlaps(plans) {
		d.log(LogLevelWarn, "%s", warning)
	}

	if plan, ok := planfile.FindActive(names, time.Now()); ok {
		d.log(LogLevelDebug, "scan plans=%d active=%s", len(plans), plan.Name)
	} else {
		d.log(LogLevelDebug, "scan plans=%d active=none", len(plans))
	}
}

// watchLoop debounces coach directory events into plan rescans. Editors and
// the store's atomic rename both produce event bursts; one rescan per burst
// is enough.
func (d *Daemon) watchLoop() error {
	debounce := time.Duration(d.config.Daemon.DebounceSec * float64(time.Second))
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return nil
		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				d.log(LogLevelDebug, "fsnotify event=%s file=%s", event.Op, event.Name)
				timer.Reset(debounce)
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.log(LogLevelError, "fsnotify error=%v", err)
		case <-timer.C:
			d.rescanPlans()
		}
	}
}

// scanLoop rescans at the configured interval as a backstop for events
// fsnotify misses (network mounts, moved directories).
func (d *Daemon) scanLoop() error {
	ticker := time.NewTicker(time.Duration(d.config.Daemon.ScanIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return nil
		case <-ticker.C:
			d.rescanPlans()
		}
	}
}

// waitSignals blocks until a shutdown signal is received.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.log(LogLevelInfo, "received signal=%s, initiating graceful shutdown", sig)

	// Second signal → force exit
	go func() {
		<-sigCh
		d.log(LogLevelWarn, "received second signal, forcing exit")
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log(LogLevelInfo, "shutdown started")

		d.cancel()
		if d.watcher != nil {
			d.watcher.Close()
		}
		d.server.Stop()

		timeout := time.Duration(d.config.Daemon.ShutdownTimeoutSec) * time.Second
		done := make(chan struct{})
		go func() {
			_ = d.group.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.log(LogLevelInfo, "background loops drained")
		case <-time.After(timeout):
			d.log(LogLevelWarn, "shutdown timeout after %s, some operations may be incomplete", timeout)
		}

		d.cleanup()
		d.log(LogLevelInfo, "daemon stopped")
	})
}

// cleanup releases resources.
func (d *Daemon) cleanup() {
	os.Remove(filepath.Join(d.dataDir, ipc.SocketName))
	d.fileLock.Unlock()
	if d.logFile != nil {
		d.logFile.Close()
	}
}

func (d *Daemon) log(level LogLevel, format string, args ...any) {
	if level < d.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	d.logger.Printf("%s %s daemon: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
